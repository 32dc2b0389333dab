// Package fixedpoint converts between arbitrary-precision decimals and the
// 6-decimal-place int64 "raw units" used across the bridge boundary.
// USDC and Polymarket shares both carry 6 decimal places, so one raw unit
// is 1e-6 of a dollar or of a share.
package fixedpoint

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Scale is the raw-unit multiplier: 1_000_000 raw units = 1.0.
const Scale int64 = 1_000_000

const targetScale = 6

var pow10 = [...]int64{1, 10, 100, 1_000, 10_000, 100_000, 1_000_000}

// ToRaw scales d's mantissa to 6 decimal places and returns it as int64.
// Inputs with scale <= 6 convert exactly; excess precision beyond 6 decimals
// is truncated toward zero. Values outside int64 raw range overflow silently;
// callers deal in prices ([0,1]) and order sizes, which never get there.
func ToRaw(d decimal.Decimal) int64 {
	mantissa := d.Coefficient()
	// Exponent is the negated scale: 1.5 is (15, -1).
	scale := -d.Exponent()

	switch {
	case scale == targetScale:
		return mantissa.Int64()
	case scale < targetScale:
		factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(targetScale-scale)), nil)
		return new(big.Int).Mul(mantissa, factor).Int64()
	default:
		factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(scale-targetScale)), nil)
		return new(big.Int).Quo(mantissa, factor).Int64()
	}
}

// FromRaw is the inverse of ToRaw, for display and balance reporting only.
func FromRaw(raw int64) decimal.Decimal {
	return decimal.New(raw, -targetScale)
}

// FloorUSDC truncates a host-supplied dollar amount to USDC precision
// (6 decimals), rounding toward zero.
func FloorUSDC(amount float64) decimal.Decimal {
	return decimal.NewFromFloat(amount).RoundDown(6)
}

// FloorShares truncates a share quantity to the exchange's 2-decimal
// share precision, rounding toward zero.
func FloorShares(size float64) decimal.Decimal {
	return decimal.NewFromFloat(size).RoundDown(2)
}

// CeilShares computes spend/price rounded UP to 2 decimals. Ceiling keeps the
// resulting notional from dropping below the exchange's $1 order floor.
func CeilShares(spend, price decimal.Decimal) decimal.Decimal {
	return spend.DivRound(price, 8).RoundCeil(2)
}
