// Package payment validates tendered amounts and computes change.
package payment

import (
	"strings"

	"github.com/shopspring/decimal"

	"finitefield.org/retail-pos/internal/pos/failure"
	"finitefield.org/retail-pos/internal/pos/money"
)

// Method is a tender type accepted by the backend.
type Method string

const (
	MethodCash    Method = "cash"
	MethodCredit  Method = "credit"
	MethodDigital Method = "digital"
)

var (
	// ErrInsufficientPayment is returned when cash tendered is below the total.
	ErrInsufficientPayment = failure.New(failure.KindValidation, "insufficient_payment", "The amount tendered is less than the total.")
	// ErrInvalidAmount is returned for a missing, zero or negative amount.
	ErrInvalidAmount = failure.New(failure.KindValidation, "invalid_amount", "Enter a valid payment amount.")
	// ErrUnknownMethod is returned for a method outside cash, credit and digital.
	ErrUnknownMethod = failure.New(failure.KindValidation, "unknown_method", "Choose a payment method.")
)

// Methods lists the supported methods in display order.
func Methods() []Method {
	return []Method{MethodCash, MethodCredit, MethodDigital}
}

// ParseMethod normalises user input into a Method.
func ParseMethod(raw string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(raw)))
	switch m {
	case MethodCash, MethodCredit, MethodDigital:
		return m, nil
	default:
		return "", ErrUnknownMethod
	}
}

// Label returns a human readable method name.
func (m Method) Label() string {
	switch m {
	case MethodCash:
		return "Cash"
	case MethodCredit:
		return "Credit card"
	case MethodDigital:
		return "Digital wallet"
	default:
		return string(m)
	}
}

// Tender is one payment line of a sale.
type Tender struct {
	Method Method
	Amount decimal.Decimal
	Change decimal.Decimal
}

// Validate checks a single tendered amount against the sale total.
// For cash, ErrInsufficientPayment is returned exactly when tendered < total.
func Validate(method Method, tendered *decimal.Decimal, total decimal.Decimal) error {
	if tendered == nil {
		return ErrInvalidAmount
	}
	if method == MethodCash && tendered.LessThan(total) {
		return ErrInsufficientPayment
	}
	if !tendered.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// ComputeChange returns max(tendered - total, 0) rounded half-up to two places.
func ComputeChange(tendered, total decimal.Decimal) decimal.Decimal {
	change := tendered.Sub(total)
	if change.IsNegative() {
		return decimal.Zero
	}
	return money.Round(change)
}

// Settlement is the validated outcome of paying a total.
type Settlement struct {
	Tenders    []Tender
	AmountPaid decimal.Decimal
	Change     decimal.Decimal
}

// Method returns the method of the first tender line.
func (s Settlement) Method() Method {
	if len(s.Tenders) == 0 {
		return ""
	}
	return s.Tenders[0].Method
}

// Settle validates one or more tender lines against total and attributes change.
// A single line follows Validate exactly. Split payments must cover the total; any
// overpayment is returned as change on the last cash line, or the last line when no
// cash was tendered.
func Settle(total decimal.Decimal, tenders ...Tender) (Settlement, error) {
	if len(tenders) == 0 {
		return Settlement{}, ErrInvalidAmount
	}
	for _, t := range tenders {
		if _, err := ParseMethod(string(t.Method)); err != nil {
			return Settlement{}, err
		}
	}

	if len(tenders) == 1 {
		t := tenders[0]
		amount := t.Amount
		if err := Validate(t.Method, &amount, total); err != nil {
			return Settlement{}, err
		}
		t.Change = ComputeChange(amount, total)
		return Settlement{Tenders: []Tender{t}, AmountPaid: amount, Change: t.Change}, nil
	}

	paid := decimal.Zero
	changeIdx := len(tenders) - 1
	lines := make([]Tender, len(tenders))
	for i, t := range tenders {
		if !t.Amount.IsPositive() {
			return Settlement{}, ErrInvalidAmount
		}
		paid = paid.Add(t.Amount)
		if t.Method == MethodCash {
			changeIdx = i
		}
		t.Change = decimal.Zero
		lines[i] = t
	}
	if paid.LessThan(total) {
		return Settlement{}, ErrInsufficientPayment
	}
	change := ComputeChange(paid, total)
	lines[changeIdx].Change = change
	return Settlement{Tenders: lines, AmountPaid: paid, Change: change}, nil
}
