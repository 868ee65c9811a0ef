package planner

import (
	"math/big"

	"deunifi/internal/fixedpoint"
	"deunifi/internal/vault"
)

// OperationDelta is the signed effect of a planned operation on a vault:
// collateral locked (negative = freed) and debt drawn (negative = repaid),
// both WAD. A WipeAndFree publishes a negative delta consumed here.
type OperationDelta struct {
	Collateral *big.Int
	Debt       *big.Int
}

// Negate returns the opposite delta.
func (d OperationDelta) Negate() OperationDelta {
	return OperationDelta{
		Collateral: new(big.Int).Neg(orZero(d.Collateral)),
		Debt:       new(big.Int).Neg(orZero(d.Debt)),
	}
}

// Projection is the vault's estimated post-operation state, derivable purely
// from a snapshot and a delta.
type Projection struct {
	Ink                    *big.Int
	Dart                   *big.Int
	CollateralizationRatio *big.Int
	LiquidationPrice       *big.Int
}

// Project applies a delta to a snapshot and checks the protocol invariants
// the operation would have to satisfy: debt floor, debt ceiling and minimum
// collateralization. Violations are field errors, never faults.
func Project(snap *vault.Snapshot, delta OperationDelta) (*Projection, FieldErrors) {
	errs := FieldErrors{}

	ink := fixedpoint.Clamp(new(big.Int).Add(snap.Ink, orZero(delta.Collateral)))
	dart := fixedpoint.Clamp(new(big.Int).Add(snap.Dart, orZero(delta.Debt)))

	proj := &Projection{
		Ink:                    ink,
		Dart:                   dart,
		CollateralizationRatio: fixedpoint.CollateralizationRatio(ink, dart, snap.Price),
		LiquidationPrice:       fixedpoint.LiquidationPrice(ink, dart, snap.Mat),
	}

	// Debt floor: a non-zero residual debt below dust would leave the vault
	// unmanageable.
	if dart.Sign() > 0 && snap.Dust != nil {
		debtRad := new(big.Int).Mul(dart, fixedpoint.Ray)
		if debtRad.Cmp(snap.Dust) < 0 {
			errs.Add("debt", "resulting debt is below the collateral type's floor")
		}
	}

	// Debt ceiling: only a debt increase can breach it.
	if delta.Debt != nil && delta.Debt.Sign() > 0 && snap.Line != nil && snap.TotalArt != nil && snap.Rate != nil {
		totalRad := new(big.Int).Mul(snap.TotalArt, snap.Rate)
		totalRad.Add(totalRad, new(big.Int).Mul(delta.Debt, fixedpoint.Ray))
		if totalRad.Cmp(snap.Line) > 0 {
			errs.Add("debt", "operation would exceed the collateral type's debt ceiling")
		}
	}

	// Minimum collateralization: the projected ratio (WAD) against mat (RAY).
	if dart.Sign() > 0 && snap.Mat != nil {
		matWad := fixedpoint.MulDiv(snap.Mat, fixedpoint.Wad, fixedpoint.Ray)
		if proj.CollateralizationRatio.Cmp(matWad) < 0 {
			errs.Add("collateralization", "projected collateralization is below the liquidation ratio")
		}
	}

	return proj, errs
}
