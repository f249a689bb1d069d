// Package transaction turns a cart and a payment into a completed sale on the backend.
package transaction

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"finitefield.org/retail-pos/internal/pos/cart"
	"finitefield.org/retail-pos/internal/pos/failure"
	"finitefield.org/retail-pos/internal/pos/money"
	"finitefield.org/retail-pos/internal/pos/payment"
)

// ErrMissingContext is returned when the cashier or store of a sale is unknown.
var ErrMissingContext = failure.New(failure.KindMissingContext, "missing_context", "Cashier or store information is missing. Please sign in again.")

// Context identifies who is selling where. It is built from the signed-in user
// and passed explicitly to every submission.
type Context struct {
	CashierID   int64
	CashierName string
	StoreID     int64
	StoreName   string
	CustomerID  *int64
	Token       string
}

// Validate reports ErrMissingContext when the cashier or store id is absent.
func (c Context) Validate() error {
	if c.CashierID <= 0 || c.StoreID <= 0 {
		return ErrMissingContext
	}
	return nil
}

// Checkout is the payment the operator entered. When Tenders is empty a single
// tender of Method and Tendered is used.
type Checkout struct {
	Method   payment.Method
	Tendered *decimal.Decimal
	Tenders  []payment.Tender
}

// Line is one item of the backend request.
type Line struct {
	ProductID int64       `json:"product_id"`
	Quantity  int         `json:"quantity"`
	Price     json.Number `json:"price"`
}

// PaymentLine is one tender of the backend request.
type PaymentLine struct {
	Method string      `json:"method"`
	Amount json.Number `json:"amount"`
	Change json.Number `json:"change"`
}

// Request is the body of POST /transaction/complete. It is built once per
// submission and passed by value.
type Request struct {
	CashierID      int64         `json:"cashier_id"`
	StoreID        int64         `json:"store_id"`
	CustomerID     *int64        `json:"customer_id"`
	PaymentMethods []PaymentLine `json:"payment_methods"`
	Items          []Line        `json:"items"`
}

func newRequest(sc Context, items []cart.LineItem, settlement payment.Settlement) Request {
	req := Request{
		CashierID:      sc.CashierID,
		StoreID:        sc.StoreID,
		CustomerID:     sc.CustomerID,
		PaymentMethods: make([]PaymentLine, 0, len(settlement.Tenders)),
		Items:          make([]Line, 0, len(items)),
	}
	for _, t := range settlement.Tenders {
		req.PaymentMethods = append(req.PaymentMethods, PaymentLine{
			Method: string(t.Method),
			Amount: json.Number(money.Wire(t.Amount)),
			Change: json.Number(money.Wire(t.Change)),
		})
	}
	for _, item := range items {
		req.Items = append(req.Items, Line{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     json.Number(money.Wire(item.UnitPrice)),
		})
	}
	return req
}

// Outcome is the backend's answer: Accepted or Rejected.
type Outcome interface {
	isOutcome()
}

// Accepted is a completed sale. Optional amounts are authoritative when present.
type Accepted struct {
	SaleID   int64
	Change   *decimal.Decimal
	Total    *decimal.Decimal
	Discount *decimal.Decimal
	Message  string
}

// Rejected carries the backend's failure message verbatim.
type Rejected struct {
	Message string
}

func (Accepted) isOutcome() {}
func (Rejected) isOutcome() {}

// Gateway completes sales. Errors are reserved for transport failures; rejections
// are returned as Rejected outcomes.
type Gateway interface {
	Complete(ctx context.Context, token, idempotencyKey string, req Request) (Outcome, error)
}

// Result is a completed sale as shown on the receipt.
type Result struct {
	SaleID        int64
	SubmissionID  string
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	Total         decimal.Decimal
	AmountPaid    decimal.Decimal
	Change        decimal.Decimal
	PaymentMethod payment.Method
	Tenders       []payment.Tender
	Items         []cart.LineItem
	Timestamp     time.Time
	CashierName   string
	StoreName     string
	Message       string
}

// CashReceived is the cash kept in the drawer for this sale: cash tendered minus change.
func (r *Result) CashReceived() decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	received := decimal.Zero
	for _, t := range r.Tenders {
		if t.Method == payment.MethodCash {
			received = received.Add(t.Amount.Sub(t.Change))
		}
	}
	return received
}
