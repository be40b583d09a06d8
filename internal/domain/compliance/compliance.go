// Package compliance holds the advisory eligibility checks run over a
// consortium. A failed check is a structured result, never an error.
// Share and amount arithmetic is done in decimal so reported percentages
// do not drift.
package compliance

import (
	"math"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// dec converts v to a decimal; NaN and infinities become zero.
func dec(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

// percent turns a fraction into a percentage rounded to two places.
func percent(fraction decimal.Decimal) decimal.Decimal {
	return fraction.Mul(hundred).Round(2)
}

func f64(d decimal.Decimal) float64 {
	v, _ := d.Float64()
	return v
}
