// Package planner computes the full expected outcome of a LockAndDraw or
// WipeAndFree operation against a vault snapshot: flash-loan sizing, swap
// amounts, slippage bounds, resulting risk metrics and per-field validation.
package planner

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"deunifi/internal/swap"
)

// Quoter prices exact-output swaps. *swap.Router implements it.
type Quoter interface {
	Quote(ctx context.Context, tokenFrom, tokenTo common.Address, amountTo *big.Int) (*swap.Plan, error)
}

// FeeSource supplies the lending-pool premium and the protocol service fee.
// *chain.Reader implements it.
type FeeSource interface {
	FlashLoanPremium(ctx context.Context) (*big.Int, error)
	ServiceFee(ctx context.Context, gross *big.Int) (*big.Int, error)
}

// BalanceSource reads signer balances. *chain.Reader implements it.
type BalanceSource interface {
	TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)
	NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error)
}

// FieldErrors maps an input field to a human-readable validation message.
// Validation never aborts a plan; the remainder of the result is always
// computed best-effort.
type FieldErrors map[string]string

// Add records a message for a field, keeping the first one.
func (e FieldErrors) Add(field, msg string) {
	if _, ok := e[field]; !ok {
		e[field] = msg
	}
}

// Merge folds other into e.
func (e FieldErrors) Merge(other FieldErrors) {
	for k, v := range other {
		e.Add(k, v)
	}
}

// Planner derives expected results from user parameters and vault snapshots.
type Planner struct {
	quoter   Quoter
	fees     FeeSource
	balances BalanceSource
	dai      common.Address
	weth     common.Address
	logger   zerolog.Logger
}

// NewPlanner constructs an operation planner.
func NewPlanner(quoter Quoter, fees FeeSource, balances BalanceSource, dai, weth common.Address, logger zerolog.Logger) *Planner {
	return &Planner{
		quoter:   quoter,
		fees:     fees,
		balances: balances,
		dai:      dai,
		weth:     weth,
		logger:   logger.With().Str("component", "planner").Logger(),
	}
}

func deadlineFrom(now time.Time, minutes int64) *big.Int {
	if minutes <= 0 {
		minutes = 20
	}
	return big.NewInt(now.Add(time.Duration(minutes) * time.Minute).Unix())
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
