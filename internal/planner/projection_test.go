package planner

import (
	"math/big"
	"testing"

	"deunifi/internal/fixedpoint"
)

func TestProjectAppliesDelta(t *testing.T) {
	snap := testSnapshot(50, 40)
	proj, errs := Project(snap, OperationDelta{
		Collateral: new(big.Int).Neg(wad(10)),
		Debt:       new(big.Int).Neg(wad(20)),
	})
	if len(errs) != 0 {
		t.Fatalf("healthy projection must not flag errors: %v", errs)
	}
	if proj.Ink.Cmp(wad(40)) != 0 {
		t.Fatalf("expected ink 40, got %s", proj.Ink)
	}
	wantRatio := fixedpoint.CollateralizationRatio(proj.Ink, proj.Dart, snap.Price)
	if proj.CollateralizationRatio.Cmp(wantRatio) != 0 {
		t.Fatalf("ratio mismatch: %s vs %s", proj.CollateralizationRatio, wantRatio)
	}
}

func TestProjectFlagsDebtFloor(t *testing.T) {
	snap := testSnapshot(50, 40)
	snap.Dust = new(big.Int).Mul(wad(30), fixedpoint.Ray)

	_, errs := Project(snap, OperationDelta{Debt: new(big.Int).Neg(wad(20))})
	if errs["debt"] == "" {
		t.Fatalf("residual debt below dust must be flagged, got %v", errs)
	}

	// Paying the whole debt off is fine.
	_, errs = Project(snap, OperationDelta{Debt: new(big.Int).Neg(wad(41))})
	if errs["debt"] != "" {
		t.Fatalf("zero residual debt must not trip the floor, got %v", errs)
	}
}

func TestProjectFlagsDebtCeiling(t *testing.T) {
	snap := testSnapshot(50, 40)
	snap.Line = new(big.Int).Mul(wad(10), fixedpoint.Ray)

	_, errs := Project(snap, OperationDelta{Debt: wad(20), Collateral: wad(100)})
	if errs["debt"] == "" {
		t.Fatalf("ceiling breach must be flagged, got %v", errs)
	}
}

func TestProjectFlagsUndercollateralization(t *testing.T) {
	snap := testSnapshot(50, 40)

	// Freeing nearly all collateral while keeping the debt.
	_, errs := Project(snap, OperationDelta{Collateral: new(big.Int).Neg(wad(49))})
	if errs["collateralization"] == "" {
		t.Fatalf("projected ratio below mat must be flagged, got %v", errs)
	}
}
