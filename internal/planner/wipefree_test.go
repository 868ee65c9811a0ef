package planner

import (
	"context"
	"math/big"
	"testing"

	"deunifi/internal/fixedpoint"
)

func TestWipeAndFreeDerivesAmounts(t *testing.T) {
	pl := newTestPlanner(&fakeQuoter{}, &fakeFees{premiumBps: 9}, richBalances())
	snap := testSnapshot(50, 40)

	tolerance := big.NewInt(10_000) // 1%
	res, err := pl.PlanWipeAndFree(context.Background(), snap, testSigner, WipeAndFreeParams{
		DaiToPayback:                  wad(20),
		DaiFromSigner:                 wad(2),
		CollateralToFree:              wad(10),
		CollateralToUseToPayFlashLoan: wad(5),
		DaiFromTokenA:                 wad(10),
		DaiFromTokenB:                 wad(10),
		SlippageTolerance:             tolerance,
	})
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}

	if res.DaiFromFlashLoan.Cmp(wad(18)) != 0 {
		t.Fatalf("expected 18 WAD principal, got %s", res.DaiFromFlashLoan)
	}
	wantFee := fixedpoint.FlashLoanFee(wad(18), big.NewInt(9))
	wantTotal := new(big.Int).Add(wad(18), wantFee)
	if res.DaiLoanPlusFees.Cmp(wantTotal) != 0 {
		t.Fatalf("expected %s loan plus fees, got %s", wantTotal, res.DaiLoanPlusFees)
	}

	// 1:1 quoter: selling 10 of each token. Removal is bound by the side
	// needing more liquidity: 10*100/500 = 2 LP for token B.
	if res.TokenAToSell.Cmp(wad(10)) != 0 || res.TokenBToSell.Cmp(wad(10)) != 0 {
		t.Fatalf("expected 10/10 to sell, got %s/%s", res.TokenAToSell, res.TokenBToSell)
	}
	if res.CollateralToRemove.Cmp(wad(2)) != 0 {
		t.Fatalf("expected 2 LP removal, got %s", res.CollateralToRemove)
	}
	wantMin := fixedpoint.IncreaseWithTolerance(wad(2), tolerance)
	if res.MinCollateralToRemove.Cmp(wantMin) != 0 {
		t.Fatalf("expected min removal %s, got %s", wantMin, res.MinCollateralToRemove)
	}

	// 5 LP withdrawn frees 50 of token A and 25 of token B.
	if res.TokenAToReceive.Cmp(wad(40)) != 0 {
		t.Fatalf("expected 40 token A back, got %s", res.TokenAToReceive)
	}
	if res.TokenBToReceive.Cmp(wad(15)) != 0 {
		t.Fatalf("expected 15 token B back, got %s", res.TokenBToReceive)
	}

	// The published delta reverses the lock direction.
	if res.Delta.Collateral.Cmp(new(big.Int).Neg(wad(10))) != 0 {
		t.Fatalf("expected -10 collateral delta, got %s", res.Delta.Collateral)
	}
	if res.Delta.Debt.Cmp(new(big.Int).Neg(wad(20))) != 0 {
		t.Fatalf("expected -20 debt delta, got %s", res.Delta.Debt)
	}
	if res.Projection == nil {
		t.Fatal("projection must be published with the delta")
	}
	if res.Projection.Ink.Cmp(wad(40)) != 0 {
		t.Fatalf("projected ink should be 40, got %s", res.Projection.Ink)
	}
}

func TestWipeAndFreeValidations(t *testing.T) {
	pl := newTestPlanner(&fakeQuoter{}, &fakeFees{}, richBalances())
	snap := testSnapshot(50, 40)

	res, err := pl.PlanWipeAndFree(context.Background(), snap, testSigner, WipeAndFreeParams{
		DaiToPayback:                  wad(100), // exceeds debt
		CollateralToFree:              wad(60),  // exceeds locked collateral
		CollateralToUseToPayFlashLoan: wad(70),  // exceeds collateral to free
		DaiFromTokenA:                 wad(50),
		DaiFromTokenB:                 wad(10), // 60 < 100 plus fees
	})
	if err != nil {
		t.Fatalf("validation must not fail the plan: %v", err)
	}

	for _, field := range []string{"daiToPayback", "collateralToFree", "daiFromTokenB"} {
		if _, ok := res.Errors[field]; !ok {
			t.Fatalf("expected error on %s, got %v", field, res.Errors)
		}
	}
}

func TestWipeAndFreeNotEnoughCollateral(t *testing.T) {
	pl := newTestPlanner(&fakeQuoter{}, &fakeFees{}, richBalances())
	snap := testSnapshot(50, 40)

	// Selling 30 of token B needs 30*100/500 = 6 LP; only 1 offered.
	res, err := pl.PlanWipeAndFree(context.Background(), snap, testSigner, WipeAndFreeParams{
		DaiToPayback:                  wad(30),
		CollateralToFree:              wad(10),
		CollateralToUseToPayFlashLoan: wad(1),
		DaiFromTokenB:                 wad(30),
	})
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if _, ok := res.Errors["collateralToUseToPayFlashLoan"]; !ok {
		t.Fatalf("expected not-enough-collateral error, got %v", res.Errors)
	}
}

func TestWipeAndFreeStructurallyInvalidCombination(t *testing.T) {
	pl := newTestPlanner(&fakeQuoter{}, &fakeFees{}, richBalances())
	snap := testSnapshot(50, 40)

	// Selling 300 of token B needs 60 LP, more than the whole vault holds:
	// the token B allocation itself must shrink.
	res, err := pl.PlanWipeAndFree(context.Background(), snap, testSigner, WipeAndFreeParams{
		DaiToPayback:                  wad(40),
		CollateralToFree:              wad(50),
		CollateralToUseToPayFlashLoan: wad(50),
		DaiFromTokenB:                 wad(300),
	})
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if _, ok := res.Errors["daiFromTokenB"]; !ok {
		t.Fatalf("expected invalid-combination error on daiFromTokenB, got %v", res.Errors)
	}
}

func TestWipeAndFreeSlippageMonotonicity(t *testing.T) {
	pl := newTestPlanner(&fakeQuoter{}, &fakeFees{}, richBalances())
	snap := testSnapshot(50, 40)

	prevGap := big.NewInt(-1)
	for _, tol := range []int64{0, 1_000, 10_000, 100_000} {
		res, err := pl.PlanWipeAndFree(context.Background(), snap, testSigner, WipeAndFreeParams{
			DaiToPayback:                  wad(20),
			CollateralToFree:              wad(10),
			CollateralToUseToPayFlashLoan: wad(5),
			DaiFromTokenA:                 wad(10),
			DaiFromTokenB:                 wad(10),
			SlippageTolerance:             big.NewInt(tol),
		})
		if err != nil {
			t.Fatalf("plan failed at tolerance %d: %v", tol, err)
		}
		gap := new(big.Int).Sub(res.MinCollateralToRemove, res.CollateralToRemove)
		if gap.Cmp(prevGap) < 0 {
			t.Fatalf("removal gap shrank when tolerance grew: tol=%d", tol)
		}
		prevGap = gap
	}
}
