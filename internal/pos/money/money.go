// Package money holds the decimal helpers shared by the checkout packages.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of fraction digits kept for every displayed or transmitted amount.
const Places = 2

// ErrInvalidAmount is returned when text cannot be read as a monetary amount.
var ErrInvalidAmount = errors.New("money: invalid amount")

// Round rounds half-up (away from zero) to two fraction digits.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Parse reads an operator-entered amount. Blank input yields (nil, nil) so callers
// can tell "absent" apart from zero.
func Parse(raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	raw = strings.ReplaceAll(raw, ",", "")
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return &d, nil
}

// Ptr returns a pointer to a copy of d.
func Ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

// Wire renders d with exactly two fraction digits, the form sent to the backend.
func Wire(d decimal.Decimal) string {
	return Round(d).StringFixed(Places)
}
