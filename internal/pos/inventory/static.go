package inventory

import (
	"context"
	"sort"
	"sync"
)

// StaticService keeps stock in memory and applies adjustments locally, flooring at zero.
type StaticService struct {
	mu     sync.Mutex
	stores map[int64][]StockSnapshot
}

// NewStaticService seeds the service with per-store stock.
func NewStaticService(stock map[int64][]StockSnapshot) *StaticService {
	copied := make(map[int64][]StockSnapshot, len(stock))
	for store, list := range stock {
		copied[store] = append([]StockSnapshot(nil), list...)
	}
	return &StaticService{stores: copied}
}

// ListStock returns the store's stock ordered by product name.
func (s *StaticService) ListStock(_ context.Context, _ string, storeID int64) ([]StockSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append([]StockSnapshot(nil), s.stores[storeID]...)
	sort.SliceStable(list, func(i, j int) bool { return list[i].ProductName < list[j].ProductName })
	return list, nil
}

// LowStock returns the subset at or below threshold.
func (s *StaticService) LowStock(ctx context.Context, token string, storeID int64) ([]StockSnapshot, error) {
	all, err := s.ListStock(ctx, token, storeID)
	if err != nil {
		return nil, err
	}
	return FilterLowStock(all), nil
}

// ManageStock applies adj to whichever store holds the store product.
func (s *StaticService) ManageStock(_ context.Context, _ string, adj Adjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for store, list := range s.stores {
		for i := range list {
			if list[i].StoreProductID != adj.StoreProductID {
				continue
			}
			qty := list[i].QuantityOnHand + adj.Quantity
			if qty < 0 {
				qty = 0
			}
			s.stores[store][i].QuantityOnHand = qty
			return nil
		}
	}
	return ErrUnknownProduct
}
