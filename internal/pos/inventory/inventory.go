// Package inventory keeps a read-mostly view of store stock and forwards stock
// adjustments to the backend.
package inventory

import (
	"context"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"finitefield.org/retail-pos/internal/pos/failure"
)

// MaxReasonLength bounds the free-text reason of an adjustment.
const MaxReasonLength = 255

var (
	// ErrInvalidQuantity is returned when an adjustment's sign does not match its type.
	ErrInvalidQuantity = failure.New(failure.KindValidation, "invalid_quantity", "The quantity does not match the adjustment type.")
	// ErrInvalidType is returned for an unknown adjustment type.
	ErrInvalidType = failure.New(failure.KindValidation, "invalid_adjustment_type", "Choose restock, damage or adjustment.")
	// ErrReasonTooLong is returned when the reason exceeds MaxReasonLength.
	ErrReasonTooLong = failure.New(failure.KindValidation, "reason_too_long", "The reason must be 255 characters or fewer.")
	// ErrUnknownProduct is returned when an adjustment targets a store product that is not stocked.
	ErrUnknownProduct = failure.New(failure.KindValidation, "unknown_store_product", "That product is not stocked in this store.")
)

// StockSnapshot is the backend's stock level for one store product.
type StockSnapshot struct {
	StoreProductID    int64  `json:"store_product_id"`
	ProductID         int64  `json:"product_id,omitempty"`
	ProductName       string `json:"product_name"`
	SKU               string `json:"sku,omitempty"`
	QuantityOnHand    int    `json:"quantity"`
	LowStockThreshold int    `json:"low_stock_threshold"`
}

// IsLowStock reports whether quantity on hand has reached the threshold.
func IsLowStock(s StockSnapshot) bool {
	return s.QuantityOnHand <= s.LowStockThreshold
}

// AdjustmentType is the kind of stock movement recorded.
type AdjustmentType string

const (
	AdjustmentRestock    AdjustmentType = "restock"
	AdjustmentDamage     AdjustmentType = "damage"
	AdjustmentCorrection AdjustmentType = "adjustment"
)

// AdjustmentTypes lists the types in display order.
func AdjustmentTypes() []AdjustmentType {
	return []AdjustmentType{AdjustmentRestock, AdjustmentDamage, AdjustmentCorrection}
}

// Adjustment is a requested stock movement. Quantity is signed.
type Adjustment struct {
	StoreProductID int64          `json:"-"`
	Type           AdjustmentType `json:"type"`
	Quantity       int            `json:"quantity"`
	Reason         string         `json:"reason"`
}

var reasonPolicy = bluemonday.StrictPolicy()

// Normalize validates a and strips markup from its reason. Restock must be positive,
// damage negative and a correction non-zero.
func (a Adjustment) Normalize() (Adjustment, error) {
	a.Type = AdjustmentType(strings.ToLower(strings.TrimSpace(string(a.Type))))
	switch a.Type {
	case AdjustmentRestock:
		if a.Quantity <= 0 {
			return Adjustment{}, ErrInvalidQuantity
		}
	case AdjustmentDamage:
		if a.Quantity >= 0 {
			return Adjustment{}, ErrInvalidQuantity
		}
	case AdjustmentCorrection:
		if a.Quantity == 0 {
			return Adjustment{}, ErrInvalidQuantity
		}
	default:
		return Adjustment{}, ErrInvalidType
	}
	// Sanitize escapes its output; the backend stores plain text.
	a.Reason = strings.TrimSpace(html.UnescapeString(reasonPolicy.Sanitize(a.Reason)))
	if utf8.RuneCountInString(a.Reason) > MaxReasonLength {
		return Adjustment{}, ErrReasonTooLong
	}
	return a, nil
}

// Service is the backend stock API.
type Service interface {
	ListStock(ctx context.Context, token string, storeID int64) ([]StockSnapshot, error)
	LowStock(ctx context.Context, token string, storeID int64) ([]StockSnapshot, error)
	ManageStock(ctx context.Context, token string, adj Adjustment) error
}
