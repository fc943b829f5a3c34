// Package money provides fixed-point arithmetic for cart totals.
// Amounts are int64 cents, so a sum of line items never accumulates
// floating-point drift and the totals invariant holds exactly.
package money

import "math"

// Cents is a monetary amount with 2 decimal places of precision.
type Cents int64

// FromFloat converts a dollar amount to Cents, rounding half away from zero.
func FromFloat(dollars float64) Cents {
	return Cents(math.Round(dollars * 100))
}

// Float64 converts back to dollars for display and wire payloads.
func (c Cents) Float64() float64 {
	return float64(c) / 100
}

// Add returns a + b.
func (a Cents) Add(b Cents) Cents { return a + b }

// MulInt multiplies by an integer factor (e.g. a line quantity).
func (a Cents) MulInt(n int) Cents { return a * Cents(n) }

// MulRate multiplies by a fractional rate (e.g. a tax rate), rounding
// half away from zero to whole cents.
func (a Cents) MulRate(rate float64) Cents {
	return Cents(math.Round(float64(a) * rate))
}

// GreaterThan returns a > b.
func (a Cents) GreaterThan(b Cents) bool { return a > b }
