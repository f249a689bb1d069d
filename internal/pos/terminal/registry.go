// Package terminal keeps the in-memory state of each signed-in till: its cart,
// cash drawer, latest lookup results and the last completed sale.
package terminal

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"finitefield.org/retail-pos/internal/pos/cart"
	"finitefield.org/retail-pos/internal/pos/catalog"
	"finitefield.org/retail-pos/internal/pos/drawer"
	"finitefield.org/retail-pos/internal/pos/observability"
	"finitefield.org/retail-pos/internal/pos/transaction"
)

const defaultIdleTimeout = 2 * time.Hour

// Terminal is the state behind one session. Cart and Drawer guard themselves.
type Terminal struct {
	ID     string
	Cart   *cart.Engine
	Drawer *drawer.Drawer

	mu         sync.Mutex
	lastSale   *transaction.Result
	candidates []catalog.Product
	lastQuery  string
	lastSeen   time.Time
}

// LastSale returns the most recent completed sale, if any.
func (t *Terminal) LastSale() *transaction.Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSale
}

// RecordSale stores a completed sale and books its cash takings into the drawer.
func (t *Terminal) RecordSale(result *transaction.Result) {
	if result == nil {
		return
	}
	t.mu.Lock()
	t.lastSale = result
	t.mu.Unlock()
	t.Drawer.RecordSale(result.SaleID, result.CashReceived())
}

// Remember caches products returned by a lookup so they can be added by id
// without trusting client-submitted prices.
func (t *Terminal) Remember(query string, products ...catalog.Product) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastQuery = query
	t.candidates = append([]catalog.Product(nil), products...)
}

// Candidate returns a product from the latest lookup.
func (t *Terminal) Candidate(productID int64) (catalog.Product, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.candidates {
		if p.ID == productID {
			return p, true
		}
	}
	return catalog.Product{}, false
}

// Candidates returns the latest lookup query and its products, best match first.
func (t *Terminal) Candidates() (string, []catalog.Product) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastQuery, append([]catalog.Product(nil), t.candidates...)
}

func (t *Terminal) touch(now time.Time) {
	t.mu.Lock()
	t.lastSeen = now
	t.mu.Unlock()
}

func (t *Terminal) idleSince() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSeen
}

// Registry maps session ids to terminals.
type Registry struct {
	mu          sync.Mutex
	terminals   map[string]*Terminal
	clock       func() time.Time
	idleTimeout time.Duration
}

// NewRegistry builds an empty registry. A non-positive idle timeout uses the default.
func NewRegistry(idleTimeout time.Duration, clock func() time.Time) *Registry {
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}
	if clock == nil {
		clock = time.Now
	}
	return &Registry{
		terminals:   make(map[string]*Terminal),
		clock:       clock,
		idleTimeout: idleTimeout,
	}
}

// Get returns the terminal for sessionID, creating it on first use.
func (r *Registry) Get(sessionID string) *Terminal {
	now := r.clock()
	r.mu.Lock()
	term, ok := r.terminals[sessionID]
	if !ok {
		term = &Terminal{
			ID:     uuid.NewString(),
			Cart:   cart.NewEngine(),
			Drawer: drawer.New(r.clock),
		}
		r.terminals[sessionID] = term
	}
	r.mu.Unlock()
	term.touch(now)
	return term
}

// Release drops the terminal for sessionID, typically on logout.
func (r *Registry) Release(sessionID string) {
	r.mu.Lock()
	delete(r.terminals, sessionID)
	r.mu.Unlock()
}

// Len returns the number of live terminals.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.terminals)
}

// Sweep evicts terminals idle for longer than the idle timeout. Terminals with a
// submission in flight or an open drawer are kept.
func (r *Registry) Sweep() int {
	cutoff := r.clock().Add(-r.idleTimeout)
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, term := range r.terminals {
		if !term.idleSince().Before(cutoff) {
			continue
		}
		if term.Cart.State() == cart.StateSubmitting || term.Drawer.Status().Open {
			continue
		}
		delete(r.terminals, id)
		evicted++
	}
	return evicted
}

// Run sweeps on every tick until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.idleTimeout / 4
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger := observability.FromContext(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				logger.Info("evicted idle terminals", zap.Int("count", n), zap.Int("remaining", r.Len()))
			}
		}
	}
}
