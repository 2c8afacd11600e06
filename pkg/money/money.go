// Package money holds monetary amounts as integer minor units. Every amount
// that enters the system crosses exactly one rounding boundary (round half up
// to the cent); internal arithmetic never touches floating point.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Cents is a monetary amount in integer minor units.
type Cents int64

// Tolerance is the one-cent slack allowed when validating payments against the
// remaining balance.
const Tolerance Cents = 1

// FromDecimal rounds a decimal amount of major units half-up to the cent.
func FromDecimal(d decimal.Decimal) Cents {
	return Cents(d.Shift(2).Round(0).IntPart())
}

// FromFloat converts a caller-supplied 2-decimal value into cents.
func FromFloat(f float64) Cents {
	return FromDecimal(decimal.NewFromFloat(f))
}

// Parse converts a decimal string such as "34.01" into cents.
func Parse(value string) (Cents, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return FromDecimal(d), nil
}

// Decimal returns the amount in major units with two fractional digits.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// Float returns the amount as a 2-decimal value for interface edges.
func (c Cents) Float() float64 {
	f, _ := c.Decimal().Float64()
	return f
}

// String formats the amount with exactly two fractional digits.
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// MulRate multiplies the amount by a rate (e.g. a tax rate or a discount
// fraction) and rounds the product half-up to the cent.
func (c Cents) MulRate(rate decimal.Decimal) Cents {
	return FromDecimal(c.Decimal().Mul(rate))
}

// MulInt multiplies the amount by an integer quantity. No rounding occurs.
func (c Cents) MulInt(n int) Cents {
	return c * Cents(n)
}

// Min returns the smaller of two amounts.
func Min(a, b Cents) Cents {
	if a < b {
		return a
	}
	return b
}
