package catalog

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"finitefield.org/retail-pos/internal/pos/backend"
	"finitefield.org/retail-pos/internal/pos/observability"
)

// Outcome is the result of a lookup: Found or NotFound.
type Outcome interface {
	isOutcome()
}

// Found carries the best match and any further matches.
type Found struct {
	Product Product
	Others  []Product
}

// NotFound reports that nothing matched the query.
type NotFound struct {
	Query string
}

func (Found) isOutcome()    {}
func (NotFound) isOutcome() {}

// Recorder counts lookup outcomes.
type Recorder interface {
	ObserveLookup(outcome string)
}

// Lookup validates queries and collapses identical in-flight searches.
// It never touches a cart.
type Lookup struct {
	svc     Service
	metrics Recorder
	group   singleflight.Group
}

// NewLookup wraps svc.
func NewLookup(svc Service, metrics Recorder) *Lookup {
	if svc == nil {
		panic("catalog: service is required")
	}
	return &Lookup{svc: svc, metrics: metrics}
}

// Search resolves query for storeID. Queries shorter than MinQueryLength fail with
// ErrQueryTooShort and are not sent.
func (l *Lookup) Search(ctx context.Context, token string, storeID int64, query string) (Outcome, error) {
	q, err := NormalizeQuery(query)
	if err != nil {
		l.observe("invalid")
		return nil, err
	}

	key := fmt.Sprintf("%d|%s|%s", storeID, strings.ToLower(q), token)
	v, err, _ := l.group.Do(key, func() (any, error) {
		return l.svc.Lookup(ctx, token, storeID, q)
	})
	if err != nil {
		if backend.IsNotFound(err) {
			l.observe("not_found")
			return NotFound{Query: q}, nil
		}
		l.observe("error")
		observability.FromContext(ctx).Warn("product lookup failed",
			zap.Int64("store_id", storeID),
			zap.Error(err),
		)
		return nil, err
	}

	products, _ := v.([]Product)
	if len(products) == 0 {
		l.observe("not_found")
		return NotFound{Query: q}, nil
	}
	l.observe("found")
	others := make([]Product, len(products)-1)
	copy(others, products[1:])
	return Found{Product: products[0], Others: others}, nil
}

func (l *Lookup) observe(outcome string) {
	if l.metrics != nil {
		l.metrics.ObserveLookup(outcome)
	}
}
