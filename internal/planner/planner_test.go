package planner

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"deunifi/internal/chain"
	"deunifi/internal/fixedpoint"
	"deunifi/internal/swap"
	"deunifi/internal/vault"
)

var (
	testDai    = common.HexToAddress("0x6b175474e89094c44da98b954eedeac495271d0f")
	testWeth   = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	testToken0 = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	testToken1 = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	testGem    = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	testSigner = common.HexToAddress("0x00000000000000000000000000000000000000d3")
)

func wad(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), fixedpoint.Wad)
}

// fakeQuoter prices swaps 1:1 unless a pair-specific rate is configured.
type fakeQuoter struct {
	routeErr error
}

func (q *fakeQuoter) Quote(ctx context.Context, from, to common.Address, amountTo *big.Int) (*swap.Plan, error) {
	if from == to || amountTo.Sign() == 0 {
		return &swap.Plan{
			TokenFrom:  from,
			TokenTo:    to,
			AmountFrom: new(big.Int).Set(amountTo),
			AmountTo:   new(big.Int).Set(amountTo),
		}, nil
	}
	if q.routeErr != nil {
		return nil, q.routeErr
	}
	return &swap.Plan{
		TokenFrom:   from,
		TokenTo:     to,
		AmountFrom:  new(big.Int).Set(amountTo),
		AmountTo:    new(big.Int).Set(amountTo),
		Path:        []common.Address{from, to},
		PathAmounts: []*big.Int{new(big.Int).Set(amountTo), new(big.Int).Set(amountTo)},
	}, nil
}

type fakeFees struct {
	premiumBps int64
	serviceFee *big.Int
}

func (f *fakeFees) FlashLoanPremium(ctx context.Context) (*big.Int, error) {
	return big.NewInt(f.premiumBps), nil
}

func (f *fakeFees) ServiceFee(ctx context.Context, gross *big.Int) (*big.Int, error) {
	if f.serviceFee == nil {
		return new(big.Int), nil
	}
	return new(big.Int).Set(f.serviceFee), nil
}

type fakeBalances struct {
	tokens map[common.Address]*big.Int
	native *big.Int
	err    error
}

func (f *fakeBalances) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	if f.err != nil {
		return nil, f.err
	}
	if b, ok := f.tokens[token]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (f *fakeBalances) NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.native == nil {
		return new(big.Int), nil
	}
	return new(big.Int).Set(f.native), nil
}

func richBalances() *fakeBalances {
	huge := wad(1_000_000)
	return &fakeBalances{
		tokens: map[common.Address]*big.Int{
			testDai:    new(big.Int).Set(huge),
			testToken0: new(big.Int).Set(huge),
			testToken1: new(big.Int).Set(huge),
			testGem:    new(big.Int).Set(huge),
		},
		native: new(big.Int).Set(huge),
	}
}

// testSnapshot builds a pool of 1000/500 reserves backing 100 LP tokens, with
// price 2 RAY, mat 1.5 RAY, rate 1 RAY and wide-open debt limits.
func testSnapshot(ink, art int64) *vault.Snapshot {
	mat := new(big.Int).Quo(new(big.Int).Mul(big.NewInt(3), fixedpoint.Ray), big.NewInt(2))
	snap := &vault.Snapshot{
		Ilk:             "UNIV2AB-A",
		Cdp:             big.NewInt(42),
		Ink:             wad(ink),
		Art:             wad(art),
		Rate:            new(big.Int).Set(fixedpoint.Ray),
		Price:           new(big.Int).Mul(big.NewInt(2), fixedpoint.Ray),
		Mat:             mat,
		Line:            new(big.Int).Mul(wad(1_000_000_000), fixedpoint.Ray),
		Dust:            new(big.Int),
		TotalArt:        new(big.Int),
		Gem:             testGem,
		Token0:          &chain.TokenInfo{Address: testToken0, Symbol: "TKA", Decimals: 18},
		Token1:          &chain.TokenInfo{Address: testToken1, Symbol: "TKB", Decimals: 18},
		PairTotalSupply: wad(100),
		Reserve0:        wad(1000),
		Reserve1:        wad(500),
	}
	snap.Dart = fixedpoint.NormalizedDebt(snap.Art, snap.Rate)
	return snap
}

func newTestPlanner(quoter Quoter, fees FeeSource, balances BalanceSource) *Planner {
	return NewPlanner(quoter, fees, balances, testDai, testWeth, zerolog.Nop())
}

var errNoRouteStub = fmt.Errorf("stub: %w", swap.ErrNoRoute)
