package fixedpoint

import (
	"math/big"
	"testing"
)

func wad(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), Wad)
}

func TestCollateralizationRatioZeroDebt(t *testing.T) {
	ratio := CollateralizationRatio(wad(100), big.NewInt(0), new(big.Int).Mul(big.NewInt(3), Ray))
	if ratio.Sign() != 0 {
		t.Fatalf("zero debt must yield zero ratio, got %s", ratio)
	}
}

func TestCollateralizationRatio(t *testing.T) {
	// 10 collateral at price 3 RAY against 15 debt -> ratio 2 WAD.
	ratio := CollateralizationRatio(wad(10), wad(15), new(big.Int).Mul(big.NewInt(3), Ray))
	if ratio.Cmp(wad(2)) != 0 {
		t.Fatalf("expected 2 WAD, got %s", ratio)
	}
}

func TestLiquidationPrice(t *testing.T) {
	if p := LiquidationPrice(wad(10), big.NewInt(0), Ray); p.Sign() != 0 {
		t.Fatalf("zero debt must yield zero price, got %s", p)
	}
	if p := LiquidationPrice(big.NewInt(0), wad(10), Ray); p.Sign() != 0 {
		t.Fatalf("zero collateral must yield zero price, got %s", p)
	}

	// mat = 1.5 RAY, dart = 10, ink = 5 -> 3 RAY.
	mat := new(big.Int).Quo(new(big.Int).Mul(big.NewInt(3), Ray), big.NewInt(2))
	p := LiquidationPrice(wad(5), wad(10), mat)
	if p.Cmp(new(big.Int).Mul(big.NewInt(3), Ray)) != 0 {
		t.Fatalf("expected 3 RAY, got %s", p)
	}
}

func TestToleranceInverse(t *testing.T) {
	amounts := []*big.Int{big.NewInt(1), big.NewInt(999), wad(1), wad(123456), new(big.Int).Mul(Wad, Wad)}
	tolerances := []*big.Int{big.NewInt(0), big.NewInt(1), big.NewInt(5_000), big.NewInt(100_000), big.NewInt(999_999)}

	for _, a := range amounts {
		for _, tol := range tolerances {
			up := IncreaseWithTolerance(a, tol)
			down := DecreaseWithTolerance(up, tol)
			if down.Cmp(a) > 0 {
				t.Fatalf("decrease(increase(%s, %s)) = %s exceeds original", a, tol, down)
			}
			diff := new(big.Int).Sub(a, down)
			if diff.Cmp(big.NewInt(1)) > 0 {
				t.Fatalf("round trip of %s with tolerance %s drifted by %s", a, tol, diff)
			}
		}
	}
}

func TestDecreaseIsMultiplicativeInverseDirection(t *testing.T) {
	// decrease(x, t) must be x*unit/(unit+t), not x - (increase(x,t) - x).
	a := wad(100)
	tol := big.NewInt(200_000) // 20%
	got := DecreaseWithTolerance(a, tol)
	want := new(big.Int).Quo(new(big.Int).Mul(a, ToleranceUnit), big.NewInt(1_200_000))
	if got.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestFlashLoanFee(t *testing.T) {
	fee := FlashLoanFee(wad(1000), big.NewInt(9))
	want := new(big.Int).Quo(new(big.Int).Mul(wad(1000), big.NewInt(9)), big.NewInt(10000))
	if fee.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, fee)
	}
}

func TestNormalizedDebtRoundsUp(t *testing.T) {
	if d := NormalizedDebt(big.NewInt(0), Ray); d.Sign() != 0 {
		t.Fatalf("zero art must yield zero debt, got %s", d)
	}

	// rate slightly above 1 RAY: computed debt must exceed art*rate/RAY.
	rate := new(big.Int).Add(Ray, big.NewInt(3))
	art := wad(7)
	d := NormalizedDebt(art, rate)
	truncated := new(big.Int).Quo(new(big.Int).Mul(art, rate), Ray)
	if d.Cmp(new(big.Int).Add(truncated, big.NewInt(1))) != 0 {
		t.Fatalf("expected truncated+1, got %s", d)
	}
}

func TestCeilDiv(t *testing.T) {
	if v := CeilDiv(big.NewInt(10), big.NewInt(3)); v.Int64() != 4 {
		t.Fatalf("expected 4, got %s", v)
	}
	if v := CeilDiv(big.NewInt(9), big.NewInt(3)); v.Int64() != 3 {
		t.Fatalf("expected 3, got %s", v)
	}
	if v := CeilDiv(big.NewInt(9), big.NewInt(0)); v.Sign() != 0 {
		t.Fatalf("zero divisor must yield zero, got %s", v)
	}
}

func TestClamp(t *testing.T) {
	if v := Clamp(big.NewInt(-5)); v.Sign() != 0 {
		t.Fatalf("negative must clamp to zero, got %s", v)
	}
	if v := Clamp(big.NewInt(5)); v.Int64() != 5 {
		t.Fatalf("positive must pass through, got %s", v)
	}
}
