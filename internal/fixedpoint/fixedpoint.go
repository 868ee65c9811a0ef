// Package fixedpoint implements the protocol's fixed-point integer math.
//
// All quantities are arbitrary-precision unsigned integers scaled by 10^18
// (WAD), 10^27 (RAY) or 10^45 (RAD). Divisions truncate, matching on-chain
// semantics; the one deliberate exception is NormalizedDebt, which rounds up.
package fixedpoint

import "math/big"

var (
	// Wad is 10^18, the base token scale.
	Wad = exp10(18)
	// Ray is 10^27, the rate/price scale.
	Ray = exp10(27)
	// Rad is 10^45, the debt-ceiling/floor scale.
	Rad = exp10(45)

	// ToleranceUnit is the denominator of slippage-tolerance ratios.
	ToleranceUnit = big.NewInt(1_000_000)

	// BasisPoints is the denominator of flash-loan premium ratios.
	BasisPoints = big.NewInt(10_000)

	zero = new(big.Int)
	one  = big.NewInt(1)
)

func exp10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

// Exp10Unit returns 10^decimals, the unit of a token with the given precision.
func Exp10Unit(decimals uint8) *big.Int {
	return exp10(int64(decimals))
}

// CollateralizationRatio returns ink*price*WAD/RAY/dart, or zero when the
// vault carries no debt.
func CollateralizationRatio(ink, dart, price *big.Int) *big.Int {
	if dart.Sign() == 0 {
		return new(big.Int)
	}
	r := new(big.Int).Mul(ink, price)
	r.Mul(r, Wad)
	r.Quo(r, Ray)
	return r.Quo(r, dart)
}

// LiquidationPrice returns mat*dart/ink, or zero when the vault carries no
// debt or no collateral.
func LiquidationPrice(ink, dart, mat *big.Int) *big.Int {
	if dart.Sign() == 0 || ink.Sign() == 0 {
		return new(big.Int)
	}
	r := new(big.Int).Mul(mat, dart)
	return r.Quo(r, ink)
}

// IncreaseWithTolerance scales amount up by (unit+tolerance)/unit.
func IncreaseWithTolerance(amount, tolerance *big.Int) *big.Int {
	r := new(big.Int).Add(ToleranceUnit, tolerance)
	r.Mul(r, amount)
	return r.Quo(r, ToleranceUnit)
}

// DecreaseWithTolerance scales amount down by unit/(unit+tolerance). This is
// the multiplicative inverse direction of IncreaseWithTolerance, not a
// symmetric subtraction.
func DecreaseWithTolerance(amount, tolerance *big.Int) *big.Int {
	r := new(big.Int).Mul(amount, ToleranceUnit)
	return r.Quo(r, new(big.Int).Add(ToleranceUnit, tolerance))
}

// FlashLoanFee returns amount*premium/10000 where premium is in basis points.
func FlashLoanFee(amount, premiumBps *big.Int) *big.Int {
	r := new(big.Int).Mul(amount, premiumBps)
	return r.Quo(r, BasisPoints)
}

// NormalizedDebt converts raw urn debt units to rate-adjusted debt:
// art*rate/RAY rounded up by one. Rounding up guarantees the computed debt is
// never below the true on-chain debt, so a repayment sized from it can never
// under-draw.
func NormalizedDebt(art, rate *big.Int) *big.Int {
	if art.Sign() == 0 {
		return new(big.Int)
	}
	r := new(big.Int).Mul(art, rate)
	r.Quo(r, Ray)
	return r.Add(r, one)
}

// MulDiv returns a*b/c with truncation. c must be non-zero; a zero divisor
// yields zero rather than a runtime panic.
func MulDiv(a, b, c *big.Int) *big.Int {
	if c.Sign() == 0 {
		return new(big.Int)
	}
	r := new(big.Int).Mul(a, b)
	return r.Quo(r, c)
}

// CeilDiv returns a/b rounded up, or zero when b is zero.
func CeilDiv(a, b *big.Int) *big.Int {
	if b.Sign() == 0 {
		return new(big.Int)
	}
	r, m := new(big.Int).QuoRem(a, b, new(big.Int))
	if m.Sign() != 0 {
		r.Add(r, one)
	}
	return r
}

// Clamp returns v, or zero when v is negative.
func Clamp(v *big.Int) *big.Int {
	if v.Sign() < 0 {
		return new(big.Int)
	}
	return v
}

// Max returns the larger of a and b.
func Max(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// Min returns the smaller of a and b.
func Min(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}
