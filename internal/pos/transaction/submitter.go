package transaction

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"finitefield.org/retail-pos/internal/pos/cart"
	"finitefield.org/retail-pos/internal/pos/failure"
	"finitefield.org/retail-pos/internal/pos/money"
	"finitefield.org/retail-pos/internal/pos/observability"
	"finitefield.org/retail-pos/internal/pos/payment"
)

// Recorder counts submission outcomes.
type Recorder interface {
	ObserveTransaction(outcome string)
}

// SubmitterDeps wires a Submitter.
type SubmitterDeps struct {
	Gateway     Gateway
	Clock       func() time.Time
	IDGenerator func() string
	Metrics     Recorder
}

// Submitter validates a checkout, sends it to the backend and settles the cart.
type Submitter struct {
	gateway Gateway
	clock   func() time.Time
	newID   func() string
	metrics Recorder
}

// NewSubmitter constructs a Submitter.
func NewSubmitter(deps SubmitterDeps) (*Submitter, error) {
	if deps.Gateway == nil {
		return nil, errors.New("transaction: gateway is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	return &Submitter{
		gateway: deps.Gateway,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:   idGen,
		metrics: deps.Metrics,
	}, nil
}

// Submit completes a sale for the cart held by engine.
//
// Local failures (empty cart, missing context, invalid payment) return before any
// request is built. A backend rejection or network failure leaves the cart as it was;
// an accepted sale clears it.
func (s *Submitter) Submit(ctx context.Context, sc Context, engine *cart.Engine, co Checkout) (*Result, error) {
	snapshot, err := engine.BeginSubmit()
	if err != nil {
		s.observe("invalid")
		return nil, err
	}

	sent, succeeded := false, false
	defer func() {
		if sent {
			engine.FinishSubmit(succeeded)
		} else {
			engine.AbortSubmit()
		}
	}()

	if err := sc.Validate(); err != nil {
		s.observe("missing_context")
		return nil, err
	}

	total := money.Round(snapshot.Subtotal)
	settlement, err := settle(total, co)
	if err != nil {
		s.observe("invalid")
		return nil, err
	}

	req := newRequest(sc, snapshot.Items, settlement)
	submissionID := s.newID()
	logger := observability.FromContext(ctx).With(
		zap.String("submission_id", submissionID),
		zap.Int64("cashier_id", sc.CashierID),
		zap.Int64("store_id", sc.StoreID),
	)

	sent = true
	outcome, err := s.gateway.Complete(ctx, sc.Token, submissionID, req)
	if err != nil {
		s.observe("network_error")
		logger.Error("sale submission failed", zap.Error(err))
		if failure.KindOf(err) == failure.KindUnknown {
			err = failure.Network(err)
		}
		return nil, err
	}

	switch o := outcome.(type) {
	case Rejected:
		s.observe("rejected")
		logger.Warn("sale rejected", zap.String("reason", o.Message))
		return nil, failure.Rejection(o.Message)
	case Accepted:
		succeeded = true
		s.observe("accepted")
		result := &Result{
			SaleID:        o.SaleID,
			SubmissionID:  submissionID,
			Subtotal:      snapshot.Subtotal,
			Discount:      decimal.Zero,
			Total:         total,
			AmountPaid:    settlement.AmountPaid,
			Change:        settlement.Change,
			PaymentMethod: settlement.Method(),
			Tenders:       settlement.Tenders,
			Items:         snapshot.Items,
			Timestamp:     s.clock(),
			CashierName:   sc.CashierName,
			StoreName:     sc.StoreName,
			Message:       o.Message,
		}
		if o.Total != nil {
			result.Total = *o.Total
		}
		if o.Discount != nil {
			result.Discount = *o.Discount
		}
		if o.Change != nil {
			result.Change = *o.Change
			result.Tenders = withChange(settlement.Tenders, *o.Change)
		}
		logger.Info("sale completed",
			zap.Int64("sale_id", result.SaleID),
			zap.String("total", result.Total.StringFixed(2)),
			zap.Int("lines", len(result.Items)),
		)
		return result, nil
	default:
		s.observe("network_error")
		return nil, failure.Network(errors.New("transaction: unexpected gateway outcome"))
	}
}

// withChange moves the backend's change onto the last cash tender so the cash kept
// by the drawer matches what the backend settled.
func withChange(tenders []payment.Tender, change decimal.Decimal) []payment.Tender {
	out := append([]payment.Tender(nil), tenders...)
	last := -1
	for i := range out {
		if out[i].Method == payment.MethodCash {
			out[i].Change = decimal.Zero
			last = i
		}
	}
	if last < 0 {
		return tenders
	}
	out[last].Change = change
	return out
}

func settle(total decimal.Decimal, co Checkout) (payment.Settlement, error) {
	if len(co.Tenders) > 0 {
		return payment.Settle(total, co.Tenders...)
	}
	method, err := payment.ParseMethod(string(co.Method))
	if err != nil {
		return payment.Settlement{}, err
	}
	if err := payment.Validate(method, co.Tendered, total); err != nil {
		return payment.Settlement{}, err
	}
	return payment.Settle(total, payment.Tender{Method: method, Amount: *co.Tendered})
}

func (s *Submitter) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveTransaction(outcome)
	}
}
