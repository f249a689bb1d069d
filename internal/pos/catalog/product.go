// Package catalog resolves scanned barcodes and typed searches into products.
package catalog

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"finitefield.org/retail-pos/internal/pos/cart"
	"finitefield.org/retail-pos/internal/pos/failure"
)

// MinQueryLength is the shortest query sent to the backend.
const MinQueryLength = 3

// ErrQueryTooShort is returned for queries under MinQueryLength characters.
var ErrQueryTooShort = failure.New(failure.KindValidation, "query_too_short", "Enter at least 3 characters to search.")

// Product is a sellable item as reported by the backend for one store.
type Product struct {
	ID                int64           `json:"id"`
	StoreProductID    int64           `json:"store_product_id,omitempty"`
	Name              string          `json:"name"`
	SKU               string          `json:"sku,omitempty"`
	Barcode           string          `json:"barcode,omitempty"`
	Category          string          `json:"category,omitempty"`
	Price             decimal.Decimal `json:"price"`
	Stock             int             `json:"stock"`
	LowStockThreshold int             `json:"low_stock_threshold,omitempty"`
}

// CartProduct converts p into the cart's product form.
func (p Product) CartProduct() cart.Product {
	return cart.Product{ID: p.ID, Name: p.Name, UnitPrice: p.Price}
}

// MatchesCode reports whether code is exactly p's barcode or, ignoring case, its SKU.
func (p Product) MatchesCode(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	return p.Barcode == code || (p.SKU != "" && strings.EqualFold(p.SKU, code))
}

// UnmarshalJSON accepts both "id" and "product_id" keys.
func (p *Product) UnmarshalJSON(data []byte) error {
	type alias Product
	var raw struct {
		alias
		ProductID int64 `json:"product_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Product(raw.alias)
	if p.ID == 0 {
		p.ID = raw.ProductID
	}
	return nil
}

// Service queries products for a store.
type Service interface {
	Lookup(ctx context.Context, token string, storeID int64, query string) ([]Product, error)
}

// NormalizeQuery trims q and checks its length.
func NormalizeQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if utf8.RuneCountInString(q) < MinQueryLength {
		return "", ErrQueryTooShort
	}
	return q, nil
}
