package inventory

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"finitefield.org/retail-pos/internal/pos/observability"
)

// Recorder counts adjustment outcomes.
type Recorder interface {
	ObserveStockAdjustment(kind, outcome string)
}

// FilterLowStock returns the snapshots for which IsLowStock holds.
func FilterLowStock(items []StockSnapshot) []StockSnapshot {
	var low []StockSnapshot
	for _, item := range items {
		if IsLowStock(item) {
			low = append(low, item)
		}
	}
	return low
}

type storeView struct {
	items       []StockSnapshot
	refreshedAt time.Time
}

// Book caches per-store stock snapshots. The backend remains authoritative; the
// cache is only refreshed, never computed.
type Book struct {
	svc     Service
	metrics Recorder
	clock   func() time.Time

	mu     sync.RWMutex
	stores map[int64]storeView
}

// NewBook wraps svc.
func NewBook(svc Service, metrics Recorder, clock func() time.Time) *Book {
	if svc == nil {
		panic("inventory: service is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &Book{svc: svc, metrics: metrics, clock: clock, stores: make(map[int64]storeView)}
}

// Refresh reloads the store's stock from the backend.
func (b *Book) Refresh(ctx context.Context, token string, storeID int64) ([]StockSnapshot, error) {
	items, err := b.svc.ListStock(ctx, token, storeID)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.stores[storeID] = storeView{items: append([]StockSnapshot(nil), items...), refreshedAt: b.clock()}
	b.mu.Unlock()
	return items, nil
}

// Snapshot returns the cached stock and when it was loaded.
func (b *Book) Snapshot(storeID int64) ([]StockSnapshot, time.Time, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	view, ok := b.stores[storeID]
	if !ok {
		return nil, time.Time{}, false
	}
	return append([]StockSnapshot(nil), view.items...), view.refreshedAt, true
}

// Stock returns the cached snapshot, loading it when absent.
func (b *Book) Stock(ctx context.Context, token string, storeID int64) ([]StockSnapshot, error) {
	if items, _, ok := b.Snapshot(storeID); ok {
		return items, nil
	}
	return b.Refresh(ctx, token, storeID)
}

// LowStock asks the backend for the store's low-stock list.
func (b *Book) LowStock(ctx context.Context, token string, storeID int64) ([]StockSnapshot, error) {
	return b.svc.LowStock(ctx, token, storeID)
}

// Adjust validates adj, forwards it and refreshes the store's snapshot.
func (b *Book) Adjust(ctx context.Context, token string, storeID int64, adj Adjustment) ([]StockSnapshot, error) {
	normalized, err := adj.Normalize()
	if err != nil {
		b.observe(typeLabel(adj.Type), "invalid")
		return nil, err
	}
	logger := observability.FromContext(ctx).With(
		zap.Int64("store_id", storeID),
		zap.Int64("store_product_id", normalized.StoreProductID),
		zap.String("type", string(normalized.Type)),
		zap.Int("quantity", normalized.Quantity),
	)
	if err := b.svc.ManageStock(ctx, token, normalized); err != nil {
		b.observe(string(normalized.Type), "failed")
		logger.Warn("stock adjustment failed", zap.Error(err))
		return nil, err
	}
	b.observe(string(normalized.Type), "applied")
	logger.Info("stock adjusted")
	return b.Refresh(ctx, token, storeID)
}

func (b *Book) observe(kind, outcome string) {
	if b.metrics != nil {
		b.metrics.ObserveStockAdjustment(kind, outcome)
	}
}

func typeLabel(t AdjustmentType) string {
	t = AdjustmentType(strings.ToLower(strings.TrimSpace(string(t))))
	for _, known := range AdjustmentTypes() {
		if t == known {
			return string(t)
		}
	}
	return "unknown"
}
