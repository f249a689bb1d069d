package cart

import (
	"sync"

	"github.com/shopspring/decimal"
)

// State is the checkout state of an Engine.
type State string

const (
	StateEmpty      State = "empty"
	StatePopulated  State = "populated"
	StateSubmitting State = "submitting"
)

// Outcome records how the last submission ended.
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Snapshot is the immutable view of the cart taken when a submission starts.
type Snapshot struct {
	Items    []LineItem
	Subtotal decimal.Decimal
}

// Engine owns a Cart and enforces the checkout state machine:
//
//	empty -> populated -> submitting -> (succeeded -> empty | failed -> populated)
//
// Mutations are rejected while submitting.
type Engine struct {
	mu          sync.Mutex
	cart        *Cart
	submitting  bool
	lastOutcome Outcome
}

// NewEngine returns an engine with an empty cart.
func NewEngine() *Engine {
	return &Engine{cart: New()}
}

// AddItem adds one unit of p.
func (e *Engine) AddItem(p Product) (LineItem, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.submitting {
		return LineItem{}, ErrSubmissionInFlight
	}
	return e.cart.Add(p)
}

// UpdateQuantity changes a line's quantity by delta; the result never drops below 1.
func (e *Engine) UpdateQuantity(productID int64, delta int) (LineItem, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.submitting {
		return LineItem{}, ErrSubmissionInFlight
	}
	return e.cart.Adjust(productID, delta)
}

// RemoveItem deletes the line for productID.
func (e *Engine) RemoveItem(productID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.submitting {
		return ErrSubmissionInFlight
	}
	e.cart.Remove(productID)
	return nil
}

// Void discards every line.
func (e *Engine) Void() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.submitting {
		return ErrSubmissionInFlight
	}
	e.cart.Clear()
	return nil
}

// Items returns a copy of the current lines.
func (e *Engine) Items() []LineItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.Items()
}

// Len returns the number of lines.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.Len()
}

// Subtotal returns the current cart subtotal.
func (e *Engine) Subtotal() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.Subtotal()
}

// State reports the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

// LastOutcome reports how the most recent submission ended.
func (e *Engine) LastOutcome() Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastOutcome
}

func (e *Engine) stateLocked() State {
	switch {
	case e.submitting:
		return StateSubmitting
	case e.cart.Len() == 0:
		return StateEmpty
	default:
		return StatePopulated
	}
}

// BeginSubmit takes the submission lock and returns a snapshot of the cart.
// It fails with ErrEmptyCart for an empty cart and ErrSubmissionInFlight when
// another submission holds the lock.
func (e *Engine) BeginSubmit() (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.submitting {
		return Snapshot{}, ErrSubmissionInFlight
	}
	if e.cart.Len() == 0 {
		return Snapshot{}, ErrEmptyCart
	}
	e.submitting = true
	items := e.cart.Items()
	return Snapshot{Items: items, Subtotal: Subtotal(items)}, nil
}

// FinishSubmit releases the submission lock. A successful submission clears the cart;
// a failed one leaves it exactly as it was.
func (e *Engine) FinishSubmit(succeeded bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.submitting {
		return
	}
	e.submitting = false
	if succeeded {
		e.cart.Clear()
		e.lastOutcome = OutcomeSucceeded
		return
	}
	e.lastOutcome = OutcomeFailed
}

// AbortSubmit releases the submission lock without recording an outcome. It is used
// when local validation fails after the lock was taken and no request was sent.
func (e *Engine) AbortSubmit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.submitting = false
}
