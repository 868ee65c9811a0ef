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

// WipeAndFreeParams are the user-controlled quantities of a WipeAndFree
// operation. DaiFromTokenA and DaiFromTokenB split the flash-loan-plus-fees
// amount between the two underlying tokens; the form layer keeps them linked.
type WipeAndFreeParams struct {
	DaiToPayback                  *big.Int
	DaiFromSigner                 *big.Int
	CollateralToFree              *big.Int
	CollateralToUseToPayFlashLoan *big.Int
	DaiFromTokenA                 *big.Int
	DaiFromTokenB                 *big.Int
	SlippageTolerance             *big.Int
	DeadlineMinutes               int64
	ReceiveEth                    bool
}

func (p *WipeAndFreeParams) normalized() WipeAndFreeParams {
	return WipeAndFreeParams{
		DaiToPayback:                  orZero(p.DaiToPayback),
		DaiFromSigner:                 orZero(p.DaiFromSigner),
		CollateralToFree:              orZero(p.CollateralToFree),
		CollateralToUseToPayFlashLoan: orZero(p.CollateralToUseToPayFlashLoan),
		DaiFromTokenA:                 orZero(p.DaiFromTokenA),
		DaiFromTokenB:                 orZero(p.DaiFromTokenB),
		SlippageTolerance:             orZero(p.SlippageTolerance),
		DeadlineMinutes:               p.DeadlineMinutes,
		ReceiveEth:                    p.ReceiveEth,
	}
}

// WipeAndFreeResult is the fully derived outcome of a WipeAndFree plan.
type WipeAndFreeResult struct {
	Params WipeAndFreeParams

	DaiFromFlashLoan *big.Int
	FlashLoanFee     *big.Int
	ServiceFee       *big.Int
	DaiLoanPlusFees  *big.Int

	TokenAToSell *big.Int
	TokenBToSell *big.Int
	PlanTokenA   *swap.Plan
	PlanTokenB   *swap.Plan
	UsedPsmA     bool
	UsedPsmB     bool

	CollateralToRemove    *big.Int
	MinCollateralToRemove *big.Int

	TokenAToReceive    *big.Int
	TokenBToReceive    *big.Int
	MinTokenAToReceive *big.Int
	MinTokenBToReceive *big.Int

	Delta      OperationDelta
	Projection *Projection

	Deadline *big.Int
	Errors   FieldErrors
}

func emptyWipeAndFreeResult(p WipeAndFreeParams) *WipeAndFreeResult {
	z := func() *big.Int { return new(big.Int) }
	return &WipeAndFreeResult{
		Params:                p,
		DaiFromFlashLoan:      z(),
		FlashLoanFee:          z(),
		ServiceFee:            z(),
		DaiLoanPlusFees:       z(),
		TokenAToSell:          z(),
		TokenBToSell:          z(),
		CollateralToRemove:    z(),
		MinCollateralToRemove: z(),
		TokenAToReceive:       z(),
		TokenBToReceive:       z(),
		MinTokenAToReceive:    z(),
		MinTokenBToReceive:    z(),
		Delta:                 OperationDelta{Collateral: z(), Debt: z()},
		Deadline:              z(),
		Errors:                FieldErrors{},
	}
}

// PlanWipeAndFree derives every amount needed to repay debt and withdraw
// collateral, funding the repayment by selling part of the freed underlying
// tokens.
func (pl *Planner) PlanWipeAndFree(ctx context.Context, snap *vault.Snapshot, signer common.Address, params WipeAndFreeParams) (*WipeAndFreeResult, error) {
	p := params.normalized()
	res := emptyWipeAndFreeResult(p)

	if snap == nil || signer == (common.Address{}) || snap.Token0 == nil || snap.Token1 == nil {
		return res, nil
	}

	res.DaiFromFlashLoan = fixedpoint.Clamp(new(big.Int).Sub(p.DaiToPayback, p.DaiFromSigner))

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

	res.DaiLoanPlusFees = new(big.Int).Add(res.DaiFromFlashLoan, res.FlashLoanFee)
	res.DaiLoanPlusFees.Add(res.DaiLoanPlusFees, res.ServiceFee)

	planA, err := pl.quoter.Quote(ctx, snap.Token0.Address, pl.dai, p.DaiFromTokenA)
	if err != nil {
		return nil, fmt.Errorf("price %s sale: %w", snap.Token0.Symbol, err)
	}
	planB, err := pl.quoter.Quote(ctx, snap.Token1.Address, pl.dai, p.DaiFromTokenB)
	if err != nil {
		return nil, fmt.Errorf("price %s sale: %w", snap.Token1.Symbol, err)
	}
	res.PlanTokenA, res.PlanTokenB = planA, planB
	res.TokenAToSell = planA.AmountFrom
	res.TokenBToSell = planB.AmountFrom
	res.UsedPsmA = planA.UsedPsm
	res.UsedPsmB = planB.UsedPsm

	// Enough liquidity must be removed to cover whichever side needs more.
	removalForA := poolShare(res.TokenAToSell, snap.PairTotalSupply, snap.Reserve0)
	removalForB := poolShare(res.TokenBToSell, snap.PairTotalSupply, snap.Reserve1)
	res.CollateralToRemove = fixedpoint.Max(removalForA, removalForB)
	res.MinCollateralToRemove = fixedpoint.IncreaseWithTolerance(res.CollateralToRemove, p.SlippageTolerance)

	// What the signer keeps after the sold portions are carved out of the
	// withdrawn liquidity.
	tokenAFreed := fixedpoint.MulDiv(p.CollateralToUseToPayFlashLoan, snap.Reserve0, snap.PairTotalSupply)
	tokenBFreed := fixedpoint.MulDiv(p.CollateralToUseToPayFlashLoan, snap.Reserve1, snap.PairTotalSupply)
	res.TokenAToReceive = fixedpoint.Clamp(new(big.Int).Sub(tokenAFreed, res.TokenAToSell))
	res.TokenBToReceive = fixedpoint.Clamp(new(big.Int).Sub(tokenBFreed, res.TokenBToSell))
	res.MinTokenAToReceive = fixedpoint.Clamp(new(big.Int).Sub(
		fixedpoint.DecreaseWithTolerance(tokenAFreed, p.SlippageTolerance), res.TokenAToSell))
	res.MinTokenBToReceive = fixedpoint.Clamp(new(big.Int).Sub(
		fixedpoint.DecreaseWithTolerance(tokenBFreed, p.SlippageTolerance), res.TokenBToSell))

	res.Deadline = deadlineFrom(time.Now(), p.DeadlineMinutes)

	pl.validateWipe(snap, p, res)

	res.Delta = OperationDelta{
		Collateral: new(big.Int).Neg(p.CollateralToFree),
		Debt:       new(big.Int).Neg(p.DaiToPayback),
	}
	proj, projErrs := Project(snap, res.Delta)
	res.Projection = proj
	res.Errors.Merge(projErrs)

	return res, nil
}

func (pl *Planner) validateWipe(snap *vault.Snapshot, p WipeAndFreeParams, res *WipeAndFreeResult) {
	if p.DaiToPayback.Cmp(snap.Dart) > 0 {
		res.Errors.Add("daiToPayback", "amount exceeds the vault's debt")
	}
	if p.CollateralToFree.Cmp(snap.Ink) > 0 {
		res.Errors.Add("collateralToFree", "amount exceeds the vault's locked collateral")
	}

	if p.CollateralToUseToPayFlashLoan.Cmp(res.MinCollateralToRemove) < 0 {
		if res.MinCollateralToRemove.Cmp(snap.Ink) > 0 {
			// Even freeing the whole vault cannot cover the split; one
			// allocation has to shrink.
			field := "daiFromTokenA"
			if res.TokenBToSell.Cmp(res.TokenAToSell) > 0 {
				field = "daiFromTokenB"
			}
			res.Errors.Add(field, "invalid combination: reduce this token's share of the repayment")
		} else {
			res.Errors.Add("collateralToUseToPayFlashLoan", "not enough collateral to cover the debt")
		}
	}

	if p.CollateralToFree.Cmp(p.CollateralToUseToPayFlashLoan) < 0 {
		res.Errors.Add("collateralToFree", "must be at least the collateral used to pay the flash loan")
	}

	covered := new(big.Int).Add(p.DaiFromTokenA, p.DaiFromTokenB)
	if covered.Cmp(res.DaiLoanPlusFees) < 0 {
		res.Errors.Add("daiFromTokenB", "token sales do not cover the flash loan plus fees")
	}
}
