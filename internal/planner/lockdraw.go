package planner

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"deunifi/internal/fixedpoint"
	"deunifi/internal/swap"
	"deunifi/internal/vault"
)

// LockAndDrawParams are the user-controlled quantities of a LockAndDraw
// operation. Nil amounts are treated as zero.
type LockAndDrawParams struct {
	TokenAToLock       *big.Int
	TokenBToLock       *big.Int
	TokenAFromSigner   *big.Int
	TokenBFromSigner   *big.Int
	DaiFromSigner      *big.Int
	CollateralFromUser *big.Int
	SlippageTolerance  *big.Int
	DeadlineMinutes    int64
	UseEth             bool
}

func (p *LockAndDrawParams) normalized() LockAndDrawParams {
	return LockAndDrawParams{
		TokenAToLock:       orZero(p.TokenAToLock),
		TokenBToLock:       orZero(p.TokenBToLock),
		TokenAFromSigner:   orZero(p.TokenAFromSigner),
		TokenBFromSigner:   orZero(p.TokenBFromSigner),
		DaiFromSigner:      orZero(p.DaiFromSigner),
		CollateralFromUser: orZero(p.CollateralFromUser),
		SlippageTolerance:  orZero(p.SlippageTolerance),
		DeadlineMinutes:    p.DeadlineMinutes,
		UseEth:             p.UseEth,
	}
}

// LockAndDrawResult is the fully derived outcome of a LockAndDraw plan.
// Every "min" field is the tolerance-adjusted bound of its nominal field.
type LockAndDrawResult struct {
	Params LockAndDrawParams

	TokenAToBuy *big.Int
	TokenBToBuy *big.Int

	DaiForTokenA *big.Int
	DaiForTokenB *big.Int
	PlanTokenA   *swap.Plan
	PlanTokenB   *swap.Plan

	DaiFromFlashLoan *big.Int
	FlashLoanFee     *big.Int
	ServiceFee       *big.Int
	DaiToDraw        *big.Int

	CollateralToBuy     *big.Int
	MinCollateralToBuy  *big.Int
	CollateralToLock    *big.Int
	MinCollateralToLock *big.Int

	CollateralizationRatio    *big.Int
	MinCollateralizationRatio *big.Int
	LiquidationPrice          *big.Int
	MaxLiquidationPrice       *big.Int

	Deadline *big.Int
	Errors   FieldErrors
}

func emptyLockAndDrawResult(p LockAndDrawParams) *LockAndDrawResult {
	z := func() *big.Int { return new(big.Int) }
	return &LockAndDrawResult{
		Params:                    p,
		TokenAToBuy:               z(),
		TokenBToBuy:               z(),
		DaiForTokenA:              z(),
		DaiForTokenB:              z(),
		DaiFromFlashLoan:          z(),
		FlashLoanFee:              z(),
		ServiceFee:                z(),
		DaiToDraw:                 z(),
		CollateralToBuy:           z(),
		MinCollateralToBuy:        z(),
		CollateralToLock:          z(),
		MinCollateralToLock:       z(),
		CollateralizationRatio:    z(),
		MinCollateralizationRatio: z(),
		LiquidationPrice:          z(),
		MaxLiquidationPrice:       z(),
		Deadline:                  z(),
		Errors:                    FieldErrors{},
	}
}

// PlanLockAndDraw derives every amount needed to open or increase a leveraged
// position. Missing upstream data (no signer, unresolved pool) yields an empty
// result; routing failure is the one fatal error.
func (pl *Planner) PlanLockAndDraw(ctx context.Context, snap *vault.Snapshot, signer common.Address, params LockAndDrawParams) (*LockAndDrawResult, error) {
	p := params.normalized()
	res := emptyLockAndDrawResult(p)

	if snap == nil || signer == (common.Address{}) || snap.Token0 == nil || snap.Token1 == nil {
		return res, nil
	}

	res.TokenAToBuy = fixedpoint.Clamp(new(big.Int).Sub(p.TokenAToLock, p.TokenAFromSigner))
	res.TokenBToBuy = fixedpoint.Clamp(new(big.Int).Sub(p.TokenBToLock, p.TokenBFromSigner))

	planA, err := pl.quoter.Quote(ctx, pl.dai, snap.Token0.Address, res.TokenAToBuy)
	if err != nil {
		return nil, fmt.Errorf("price %s purchase: %w", snap.Token0.Symbol, err)
	}
	planB, err := pl.quoter.Quote(ctx, pl.dai, snap.Token1.Address, res.TokenBToBuy)
	if err != nil {
		return nil, fmt.Errorf("price %s purchase: %w", snap.Token1.Symbol, err)
	}
	res.PlanTokenA, res.PlanTokenB = planA, planB
	res.DaiForTokenA = planA.AmountFrom
	res.DaiForTokenB = planB.AmountFrom

	daiNeeded := new(big.Int).Add(res.DaiForTokenA, res.DaiForTokenB)
	res.DaiFromFlashLoan = fixedpoint.Clamp(daiNeeded.Sub(daiNeeded, p.DaiFromSigner))

	premium, err := pl.fees.FlashLoanPremium(ctx)
	if err != nil {
		return nil, fmt.Errorf("read flash-loan premium: %w", err)
	}
	res.FlashLoanFee = fixedpoint.FlashLoanFee(res.DaiFromFlashLoan, premium)

	serviceFee, err := pl.fees.ServiceFee(ctx, res.DaiFromFlashLoan)
	if err != nil {
		return nil, fmt.Errorf("read service fee: %w", err)
	}
	res.ServiceFee = serviceFee

	res.DaiToDraw = new(big.Int).Add(res.DaiFromFlashLoan, res.FlashLoanFee)
	res.DaiToDraw.Add(res.DaiToDraw, res.ServiceFee)

	// Liquidity provision is limited by the scarcer side of the pool.
	collateralFromA := poolShare(p.TokenAToLock, snap.PairTotalSupply, snap.Reserve0)
	collateralFromB := poolShare(p.TokenBToLock, snap.PairTotalSupply, snap.Reserve1)
	res.CollateralToBuy = fixedpoint.Min(collateralFromA, collateralFromB)
	res.MinCollateralToBuy = fixedpoint.DecreaseWithTolerance(res.CollateralToBuy, p.SlippageTolerance)

	res.CollateralToLock = new(big.Int).Add(res.CollateralToBuy, p.CollateralFromUser)
	res.MinCollateralToLock = new(big.Int).Add(res.MinCollateralToBuy, p.CollateralFromUser)

	ink := new(big.Int).Add(snap.Ink, res.CollateralToLock)
	minInk := new(big.Int).Add(snap.Ink, res.MinCollateralToLock)
	dart := new(big.Int).Add(snap.Dart, res.DaiToDraw)

	res.CollateralizationRatio = fixedpoint.CollateralizationRatio(ink, dart, snap.Price)
	res.MinCollateralizationRatio = fixedpoint.CollateralizationRatio(minInk, dart, snap.Price)
	res.LiquidationPrice = fixedpoint.LiquidationPrice(ink, dart, snap.Mat)
	res.MaxLiquidationPrice = fixedpoint.LiquidationPrice(minInk, dart, snap.Mat)

	res.Deadline = deadlineFrom(time.Now(), p.DeadlineMinutes)

	pl.checkLockBalances(ctx, snap, signer, p, res.Errors)

	delta := OperationDelta{Collateral: res.MinCollateralToLock, Debt: res.DaiToDraw}
	_, projErrs := Project(snap, delta)
	res.Errors.Merge(projErrs)

	return res, nil
}

// poolShare returns amount*totalSupply/reserve, the LP tokens minted for a
// proportional deposit of amount on one side.
func poolShare(amount, totalSupply, reserve *big.Int) *big.Int {
	return fixedpoint.MulDiv(amount, totalSupply, reserve)
}

func (pl *Planner) checkLockBalances(ctx context.Context, snap *vault.Snapshot, signer common.Address, p LockAndDrawParams, errs FieldErrors) {
	pl.checkBalance(ctx, signer, snap.Token0.Address, p.TokenAFromSigner, p.UseEth, "tokenAFromSigner", errs)
	pl.checkBalance(ctx, signer, snap.Token1.Address, p.TokenBFromSigner, p.UseEth, "tokenBFromSigner", errs)
	pl.checkBalance(ctx, signer, pl.dai, p.DaiFromSigner, false, "daiFromSigner", errs)
	pl.checkBalance(ctx, signer, snap.Gem, p.CollateralFromUser, false, "collateralFromUser", errs)
}

// checkBalance flags an insufficient balance without blocking the rest of the
// computation; an unreadable balance is logged and skipped.
func (pl *Planner) checkBalance(ctx context.Context, signer, token common.Address, amount *big.Int, useNative bool, field string, errs FieldErrors) {
	if amount.Sign() == 0 {
		return
	}

	var (
		balance *big.Int
		err     error
	)
	if useNative && token == pl.weth {
		balance, err = pl.balances.NativeBalance(ctx, signer)
	} else {
		balance, err = pl.balances.TokenBalance(ctx, token, signer)
	}
	if err != nil {
		pl.logger.Warn().Err(err).Str("field", field).Msg("balance unavailable, skipping check")
		return
	}
	if amount.Cmp(balance) > 0 {
		errs.Add(field, "amount exceeds signer balance")
	}
}
