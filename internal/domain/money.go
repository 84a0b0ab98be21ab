package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Cents is a monetary amount in integer minor units (USD cents).
// All ledger arithmetic happens on this type; decimal USD exists only at
// the API and CLI boundary, so repeated small transactions cannot
// accumulate rounding drift.
type Cents int64

var centFactor = decimal.NewFromInt(100)

// CentsFromUSD converts a decimal USD amount to cents.
// Sub-cent precision is rejected rather than silently rounded.
func CentsFromUSD(usd decimal.Decimal) (Cents, error) {
	c := usd.Mul(centFactor)
	if !c.IsInteger() {
		return 0, fmt.Errorf("%w: %s has sub-cent precision", ErrInvalidAmount, usd)
	}
	return Cents(c.IntPart()), nil
}

// USD returns the decimal dollar representation.
func (c Cents) USD() decimal.Decimal {
	return decimal.NewFromInt(int64(c)).Div(centFactor)
}

// String formats the amount as dollars, e.g. "$12.00" or "-$5.00".
func (c Cents) String() string {
	if c < 0 {
		return "-$" + (-c).USD().StringFixed(2)
	}
	return "$" + c.USD().StringFixed(2)
}
