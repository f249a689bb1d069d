package catalog

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"finitefield.org/retail-pos/internal/pos/inventory"
)

// StaticService matches against an in-memory product list. It backs local development
// when no backend is configured.
type StaticService struct {
	products map[int64][]Product
}

// NewStaticService returns a service holding products per store id.
func NewStaticService(products map[int64][]Product) *StaticService {
	copied := make(map[int64][]Product, len(products))
	for store, list := range products {
		copied[store] = append([]Product(nil), list...)
	}
	return &StaticService{products: copied}
}

// Lookup matches an exact barcode or SKU first, then name substrings.
func (s *StaticService) Lookup(_ context.Context, _ string, storeID int64, query string) ([]Product, error) {
	q, err := NormalizeQuery(query)
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(q)
	var exact, partial []Product
	for _, p := range s.products[storeID] {
		switch {
		case p.MatchesCode(q):
			exact = append(exact, p)
		case strings.Contains(strings.ToLower(p.Name), lower):
			partial = append(partial, p)
		}
	}
	return append(exact, partial...), nil
}

// DemoProducts is the product list served by StaticService in development.
func DemoProducts() []Product {
	return []Product{
		{ID: 1, StoreProductID: 101, Name: "Ballpoint Pen", SKU: "PEN-001", Barcode: "4800016644801", Category: "Stationery", Price: decimal.RequireFromString("10.00"), Stock: 120, LowStockThreshold: 20},
		{ID: 2, StoreProductID: 102, Name: "Spiral Notebook", SKU: "NBK-002", Barcode: "4800016644818", Category: "Stationery", Price: decimal.RequireFromString("45.50"), Stock: 8, LowStockThreshold: 10},
		{ID: 3, StoreProductID: 103, Name: "Bottled Water 500ml", SKU: "BEV-003", Barcode: "4800016644825", Category: "Beverages", Price: decimal.RequireFromString("18.00"), Stock: 300, LowStockThreshold: 50},
		{ID: 4, StoreProductID: 104, Name: "Instant Noodles", SKU: "FD-004", Barcode: "4800016644832", Category: "Food", Price: decimal.RequireFromString("14.75"), Stock: 5, LowStockThreshold: 5},
		{ID: 5, StoreProductID: 105, Name: "AA Batteries (4 pack)", SKU: "ELC-005", Barcode: "4800016644849", Category: "Electronics", Price: decimal.RequireFromString("120.00"), Stock: 32, LowStockThreshold: 10},
	}
}

// StockSnapshots derives the in-memory stock records for products, used to seed
// inventory.StaticService alongside the demo catalog.
func StockSnapshots(products []Product) []inventory.StockSnapshot {
	out := make([]inventory.StockSnapshot, 0, len(products))
	for _, p := range products {
		out = append(out, inventory.StockSnapshot{
			StoreProductID:    p.StoreProductID,
			ProductID:         p.ID,
			ProductName:       p.Name,
			SKU:               p.SKU,
			QuantityOnHand:    p.Stock,
			LowStockThreshold: p.LowStockThreshold,
		})
	}
	return out
}
