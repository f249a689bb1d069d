// Package drawer tracks the cash drawer of a terminal between opening and closing.
package drawer

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finitefield.org/retail-pos/internal/pos/failure"
	"finitefield.org/retail-pos/internal/pos/money"
)

var (
	// ErrAlreadyOpen is returned when opening a drawer that is open.
	ErrAlreadyOpen = failure.New(failure.KindValidation, "drawer_open", "The cash drawer is already open.")
	// ErrNotOpen is returned when recording against or closing a closed drawer.
	ErrNotOpen = failure.New(failure.KindValidation, "drawer_closed", "Open the cash drawer first.")
	// ErrInvalidAmount is returned for a negative float, count or movement.
	ErrInvalidAmount = failure.New(failure.KindValidation, "drawer_invalid_amount", "Enter a valid amount.")
)

// MovementType classifies a drawer movement.
type MovementType string

const (
	MovementSale    MovementType = "sale"
	MovementCashIn  MovementType = "cash_in"
	MovementCashOut MovementType = "cash_out"
)

// Movement is one immutable entry of the drawer ledger. Amount is signed.
type Movement struct {
	Type        MovementType
	Amount      decimal.Decimal
	Description string
	Reference   int64
	At          time.Time
}

// Classification grades the variance found when closing.
type Classification string

const (
	ClassificationNormal   Classification = "normal"
	ClassificationWarning  Classification = "warning"
	ClassificationCritical Classification = "critical"
)

// Summary is the result of closing a drawer.
type Summary struct {
	SessionID      string
	OpenedAt       time.Time
	ClosedAt       time.Time
	OpeningFloat   decimal.Decimal
	CashSales      decimal.Decimal
	Sales          int
	Expected       decimal.Decimal
	Counted        decimal.Decimal
	Variance       decimal.Decimal
	Classification Classification
}

// Status is a point-in-time view of the drawer.
type Status struct {
	Open         bool
	SessionID    string
	OpenedAt     time.Time
	OpeningFloat decimal.Decimal
	Expected     decimal.Decimal
	Sales        int
	Movements    []Movement
	LastClose    *Summary
}

// Drawer is safe for concurrent use.
type Drawer struct {
	mu        sync.Mutex
	clock     func() time.Time
	open      bool
	sessionID string
	openedAt  time.Time
	float     decimal.Decimal
	movements []Movement
	lastClose *Summary
}

// New returns a closed drawer.
func New(clock func() time.Time) *Drawer {
	if clock == nil {
		clock = time.Now
	}
	return &Drawer{clock: clock}
}

// Open starts a drawer session with the given opening float.
func (d *Drawer) Open(float decimal.Decimal) error {
	if float.IsNegative() {
		return ErrInvalidAmount
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open {
		return ErrAlreadyOpen
	}
	d.open = true
	d.sessionID = uuid.NewString()
	d.openedAt = d.clock().UTC()
	d.float = money.Round(float)
	d.movements = nil
	return nil
}

// RecordSale adds the cash kept from a sale. Sales with no cash component are
// counted but move no money. Recording against a closed drawer is ignored.
func (d *Drawer) RecordSale(saleID int64, cash decimal.Decimal) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return false
	}
	d.movements = append(d.movements, Movement{
		Type:      MovementSale,
		Amount:    money.Round(cash),
		Reference: saleID,
		At:        d.clock().UTC(),
	})
	return true
}

// Move records a manual cash in (positive) or cash out (negative) with a description.
func (d *Drawer) Move(kind MovementType, amount decimal.Decimal, description string) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if kind == MovementCashOut {
		amount = amount.Neg()
	} else if kind != MovementCashIn {
		return ErrInvalidAmount
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return ErrNotOpen
	}
	d.movements = append(d.movements, Movement{
		Type:        kind,
		Amount:      money.Round(amount),
		Description: strings.TrimSpace(description),
		At:          d.clock().UTC(),
	})
	return nil
}

// Close ends the session, comparing the counted cash with the expected amount.
func (d *Drawer) Close(counted decimal.Decimal) (Summary, error) {
	if counted.IsNegative() {
		return Summary{}, ErrInvalidAmount
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return Summary{}, ErrNotOpen
	}
	sales, cashSales := d.salesLocked()
	expected := d.expectedLocked()
	counted = money.Round(counted)
	variance := counted.Sub(expected)
	summary := Summary{
		SessionID:      d.sessionID,
		OpenedAt:       d.openedAt,
		ClosedAt:       d.clock().UTC(),
		OpeningFloat:   d.float,
		CashSales:      cashSales,
		Sales:          sales,
		Expected:       expected,
		Counted:        counted,
		Variance:       variance,
		Classification: Classify(expected, variance),
	}
	d.open = false
	d.lastClose = &summary
	d.movements = nil
	return summary, nil
}

// Status returns the current state.
func (d *Drawer) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	sales, _ := d.salesLocked()
	st := Status{
		Open:         d.open,
		SessionID:    d.sessionID,
		OpenedAt:     d.openedAt,
		OpeningFloat: d.float,
		Sales:        sales,
		Movements:    append([]Movement(nil), d.movements...),
	}
	if d.open {
		st.Expected = d.expectedLocked()
	}
	if d.lastClose != nil {
		last := *d.lastClose
		st.LastClose = &last
	}
	return st
}

func (d *Drawer) expectedLocked() decimal.Decimal {
	total := d.float
	for _, m := range d.movements {
		total = total.Add(m.Amount)
	}
	return total
}

func (d *Drawer) salesLocked() (int, decimal.Decimal) {
	count := 0
	cash := decimal.Zero
	for _, m := range d.movements {
		if m.Type == MovementSale {
			count++
			cash = cash.Add(m.Amount)
		}
	}
	return count, cash
}

var (
	warningPct  = decimal.NewFromInt(1)
	criticalPct = decimal.NewFromInt(5)
	hundred     = decimal.NewFromInt(100)
)

// Classify grades a variance relative to the expected amount: up to 1% is normal,
// up to 5% a warning, anything beyond critical.
func Classify(expected, variance decimal.Decimal) Classification {
	abs := variance.Abs()
	if abs.IsZero() {
		return ClassificationNormal
	}
	if !expected.IsPositive() {
		return ClassificationCritical
	}
	pct := abs.Div(expected).Mul(hundred)
	switch {
	case pct.LessThanOrEqual(warningPct):
		return ClassificationNormal
	case pct.LessThanOrEqual(criticalPct):
		return ClassificationWarning
	default:
		return ClassificationCritical
	}
}
