package swap

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"deunifi/internal/chain"
	"deunifi/internal/fixedpoint"
)

var (
	dai  = common.HexToAddress("0x6b175474e89094c44da98b954eedeac495271d0f")
	weth = common.HexToAddress("0x0000000000000000000000000000000000000002")
	usdc = common.HexToAddress("0x0000000000000000000000000000000000000003")
	mkr  = common.HexToAddress("0x0000000000000000000000000000000000000004")
	wbtc = common.HexToAddress("0x0000000000000000000000000000000000000005")
)

type fakeSource struct {
	pairs   map[string]bool
	amounts map[string]*big.Int
	psm     chain.PsmParameters
	psmErr  error
}

func pairKey(a, b common.Address) string {
	return a.Hex() + "|" + b.Hex()
}

func pathKey(path []common.Address) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = p.Hex()
	}
	return strings.Join(parts, ">")
}

func (f *fakeSource) GetPair(ctx context.Context, a, b common.Address) (common.Address, error) {
	if f.pairs[pairKey(a, b)] || f.pairs[pairKey(b, a)] {
		return common.HexToAddress("0x00000000000000000000000000000000000000ff"), nil
	}
	return common.Address{}, nil
}

func (f *fakeSource) GetAmountsIn(ctx context.Context, amountOut *big.Int, path []common.Address) ([]*big.Int, error) {
	in, ok := f.amounts[pathKey(path)]
	if !ok {
		return nil, fmt.Errorf("no liquidity")
	}
	amounts := make([]*big.Int, len(path))
	amounts[0] = new(big.Int).Set(in)
	for i := 1; i < len(path); i++ {
		amounts[i] = new(big.Int).Set(amountOut)
	}
	return amounts, nil
}

func (f *fakeSource) PsmParameters(ctx context.Context) (chain.PsmParameters, error) {
	if f.psmErr != nil {
		return chain.PsmParameters{}, f.psmErr
	}
	return f.psm, nil
}

func newTestRouter(src ChainSource, opts Options) *Router {
	return NewRouter(src, opts, zerolog.Nop())
}

func TestQuoteIdentity(t *testing.T) {
	r := newTestRouter(&fakeSource{}, Options{Dai: dai})
	plan, err := r.Quote(context.Background(), weth, weth, big.NewInt(1000))
	if err != nil {
		t.Fatalf("identity quote must not fail: %v", err)
	}
	if plan.AmountFrom.Int64() != 1000 || len(plan.Path) != 0 {
		t.Fatalf("identity plan should pass the amount through with no path, got %+v", plan)
	}
}

func TestQuoteZeroAmount(t *testing.T) {
	r := newTestRouter(&fakeSource{}, Options{Dai: dai, DirectPath: true})
	plan, err := r.Quote(context.Background(), dai, weth, big.NewInt(0))
	if err != nil {
		t.Fatalf("zero quote must not fail: %v", err)
	}
	if plan.AmountFrom.Sign() != 0 {
		t.Fatalf("zero output requires zero input, got %s", plan.AmountFrom)
	}
}

func TestQuoteSelectsCheapestCandidate(t *testing.T) {
	src := &fakeSource{
		pairs: map[string]bool{
			pairKey(dai, mkr):  true,
			pairKey(dai, weth): true,
			pairKey(weth, mkr): true,
			pairKey(dai, usdc): true,
			pairKey(usdc, mkr): true,
		},
		amounts: map[string]*big.Int{
			pathKey([]common.Address{dai, mkr}):       big.NewInt(120),
			pathKey([]common.Address{dai, weth, mkr}): big.NewInt(100),
			pathKey([]common.Address{dai, usdc, mkr}): big.NewInt(110),
		},
	}
	r := newTestRouter(src, Options{
		Dai:           dai,
		Intermediates: []common.Address{weth, usdc},
		DirectPath:    true,
	})

	plan, err := r.Quote(context.Background(), dai, mkr, big.NewInt(50))
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if plan.AmountFrom.Int64() != 100 {
		t.Fatalf("expected the 100 candidate, got %s via %v", plan.AmountFrom, plan.Path)
	}
	if len(plan.Path) != 3 || plan.Path[1] != weth {
		t.Fatalf("expected the weth-routed path, got %v", plan.Path)
	}
	if len(plan.Path) != len(plan.PathAmounts) {
		t.Fatalf("path and amounts length must match: %d vs %d", len(plan.Path), len(plan.PathAmounts))
	}
}

func TestQuoteSkipsIntermediateMatchingEndpoint(t *testing.T) {
	src := &fakeSource{
		pairs: map[string]bool{pairKey(dai, weth): true},
		amounts: map[string]*big.Int{
			pathKey([]common.Address{dai, weth}): big.NewInt(42),
		},
	}
	r := newTestRouter(src, Options{
		Dai:           dai,
		Intermediates: []common.Address{weth, dai},
		DirectPath:    true,
	})

	plan, err := r.Quote(context.Background(), dai, weth, big.NewInt(10))
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if len(plan.Path) != 2 {
		t.Fatalf("only the direct path is viable, got %v", plan.Path)
	}
}

func TestQuoteNoRoute(t *testing.T) {
	r := newTestRouter(&fakeSource{}, Options{
		Dai:           dai,
		Intermediates: []common.Address{weth, usdc},
		DirectPath:    true,
	})
	_, err := r.Quote(context.Background(), wbtc, mkr, big.NewInt(50))
	if !errors.Is(err, ErrNoRoute) {
		t.Fatalf("expected ErrNoRoute, got %v", err)
	}
}

func TestQuotePsmBuyGem(t *testing.T) {
	tout := new(big.Int).Quo(fixedpoint.Wad, big.NewInt(1000)) // 0.1%
	src := &fakeSource{
		psm: chain.PsmParameters{Tin: new(big.Int), Tout: tout, Gem: usdc, GemDecimals: 6},
	}
	r := newTestRouter(src, Options{Dai: dai, UsePsm: true})

	amountTo := big.NewInt(1_000_000) // 1 USDC
	plan, err := r.Quote(context.Background(), dai, usdc, amountTo)
	if err != nil {
		t.Fatalf("psm buy quote failed: %v", err)
	}
	if !plan.UsedPsm {
		t.Fatal("plan should be psm-routed")
	}

	gemUnit := big.NewInt(1_000_000)
	want := new(big.Int).Quo(new(big.Int).Mul(amountTo, fixedpoint.Wad), gemUnit)
	want.Add(want, new(big.Int).Quo(new(big.Int).Mul(tout, amountTo), gemUnit))
	if plan.AmountFrom.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, plan.AmountFrom)
	}
	if len(plan.Path) != 2 || len(plan.PathAmounts) != 2 {
		t.Fatalf("psm plan must carry a synthetic two-element path, got %+v", plan)
	}
}

func TestQuotePsmSellGemCoversRequested(t *testing.T) {
	fees := []*big.Int{
		new(big.Int),
		new(big.Int).Quo(fixedpoint.Wad, big.NewInt(1000)),
		new(big.Int).Quo(fixedpoint.Wad, big.NewInt(7)),
		new(big.Int).Sub(fixedpoint.Wad, big.NewInt(1)),
	}
	amounts := []*big.Int{
		big.NewInt(1),
		big.NewInt(999_999_999_999),
		new(big.Int).Mul(big.NewInt(12345), fixedpoint.Wad),
	}

	for _, fee := range fees {
		src := &fakeSource{
			psm: chain.PsmParameters{Tin: fee, Tout: new(big.Int), Gem: usdc, GemDecimals: 6},
		}
		r := newTestRouter(src, Options{Dai: dai, UsePsm: true})

		for _, amountTo := range amounts {
			plan, err := r.Quote(context.Background(), usdc, dai, amountTo)
			if err != nil {
				t.Fatalf("psm sell quote (fee=%s, amount=%s) failed: %v", fee, amountTo, err)
			}
			net := new(big.Int).Sub(fixedpoint.Wad, fee)
			final := new(big.Int).Quo(new(big.Int).Mul(plan.AmountFrom, net), big.NewInt(1_000_000))
			if final.Cmp(amountTo) < 0 {
				t.Fatalf("derived gem amount under-funds: fee=%s amountTo=%s final=%s", fee, amountTo, final)
			}
		}
	}
}
