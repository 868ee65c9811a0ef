package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

type stubBackend struct {
	call    func(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
	storage func(ctx context.Context, account common.Address, key common.Hash) ([]byte, error)
	block   func(ctx context.Context) (uint64, error)
	balance func(ctx context.Context, account common.Address) (*big.Int, error)
}

func (b *stubBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if b.call == nil {
		return nil, errors.New("unexpected call")
	}
	return b.call(ctx, msg)
}

func (b *stubBackend) StorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error) {
	if b.storage == nil {
		return nil, errors.New("unexpected storage read")
	}
	return b.storage(ctx, account, key)
}

func (b *stubBackend) BlockNumber(ctx context.Context) (uint64, error) {
	if b.block == nil {
		return 0, errors.New("unexpected block number read")
	}
	return b.block(ctx)
}

func (b *stubBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	if b.balance == nil {
		return nil, errors.New("unexpected balance read")
	}
	return b.balance(ctx, account)
}

func testAddresses() Addresses {
	return Addresses{
		Vat:        common.HexToAddress("0x35D1b3F3D7966A1DFe207aa4514C12a259A0492B"),
		FeeManager: common.HexToAddress("0x0000000000000000000000000000000000000fee"),
	}
}

// packSlot places a value in the low 16 bytes of a 32-byte storage word.
func packSlot(v *big.Int) []byte {
	buf := make([]byte, 32)
	v.FillBytes(buf[16:])
	return buf
}

func TestReaderCallFailsByDeadline(t *testing.T) {
	backend := &stubBackend{
		call: func(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	reader := NewReader(backend, testAddresses(), 10*time.Millisecond, zerolog.Nop())

	_, err := reader.Urn(context.Background(), IlkBytes("UNIV2DAIETH-A"), common.Address{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestReaderBlockNumberFailsByDeadline(t *testing.T) {
	backend := &stubBackend{
		block: func(ctx context.Context) (uint64, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		},
	}
	reader := NewReader(backend, testAddresses(), 10*time.Millisecond, zerolog.Nop())

	_, err := reader.BlockNumber(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestReaderNoTimeoutPassesContextThrough(t *testing.T) {
	backend := &stubBackend{
		block: func(ctx context.Context) (uint64, error) {
			if _, ok := ctx.Deadline(); ok {
				return 0, errors.New("unexpected deadline")
			}
			return 42, nil
		},
	}
	reader := NewReader(backend, testAddresses(), 0, zerolog.Nop())

	head, err := reader.BlockNumber(context.Background())
	if err != nil {
		t.Fatalf("block number failed: %v", err)
	}
	if head != 42 {
		t.Fatalf("expected head 42, got %d", head)
	}
}

func TestServiceFeeFallsBackToRatioSlot(t *testing.T) {
	addrs := testAddresses()
	ratio := new(big.Int).Exp(big.NewInt(10), big.NewInt(16), nil) // 1% of WAD

	backend := &stubBackend{
		call: func(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
			return nil, errors.New("execution reverted")
		},
		storage: func(ctx context.Context, account common.Address, key common.Hash) ([]byte, error) {
			if account != addrs.FeeManager || key != feeRatioSlot {
				return nil, fmt.Errorf("unexpected storage read at %s %s", account, key)
			}
			return packSlot(ratio), nil
		},
	}
	reader := NewReader(backend, addrs, 0, zerolog.Nop())

	gross := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	fee, err := reader.ServiceFee(context.Background(), gross)
	if err != nil {
		t.Fatalf("service fee failed: %v", err)
	}
	want := new(big.Int).Exp(big.NewInt(10), big.NewInt(16), nil)
	if fee.Cmp(want) != 0 {
		t.Fatalf("expected fee %s, got %s", want, fee)
	}
}

func TestServiceFeeUnconfiguredManagerIsZero(t *testing.T) {
	reader := NewReader(&stubBackend{}, Addresses{}, 0, zerolog.Nop())

	fee, err := reader.ServiceFee(context.Background(), big.NewInt(1000))
	if err != nil {
		t.Fatalf("service fee failed: %v", err)
	}
	if fee.Sign() != 0 {
		t.Fatalf("expected zero fee without a fee manager, got %s", fee)
	}
}

func TestServiceFeeRatioReadFailureSurfacesCallError(t *testing.T) {
	callErr := errors.New("execution reverted")
	backend := &stubBackend{
		call: func(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
			return nil, callErr
		},
		storage: func(ctx context.Context, account common.Address, key common.Hash) ([]byte, error) {
			return nil, errors.New("storage unavailable")
		},
	}
	reader := NewReader(backend, testAddresses(), 0, zerolog.Nop())

	_, err := reader.ServiceFee(context.Background(), big.NewInt(1000))
	if err == nil || !errors.Is(err, callErr) {
		t.Fatalf("expected the original call error, got %v", err)
	}
}
