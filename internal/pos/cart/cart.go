// Package cart keeps the in-memory line items of a checkout and the state machine
// that guards them while a sale is being submitted.
package cart

import (
	"github.com/shopspring/decimal"

	"finitefield.org/retail-pos/internal/pos/failure"
)

var (
	// ErrEmptyCart is returned when a sale is attempted without line items.
	ErrEmptyCart = failure.New(failure.KindValidation, "empty_cart", "The cart is empty. Add an item before taking payment.")
	// ErrItemNotFound is returned when a quantity change targets a product that is not in the cart.
	ErrItemNotFound = failure.New(failure.KindValidation, "item_not_found", "That item is no longer in the cart.")
	// ErrInvalidPrice is returned for a product with a negative unit price.
	ErrInvalidPrice = failure.New(failure.KindValidation, "invalid_price", "The product has an invalid price.")
	// ErrSubmissionInFlight is returned while a sale from this cart is being submitted.
	ErrSubmissionInFlight = failure.New(failure.KindValidation, "submission_in_flight", "A sale is already being submitted.")
)

// Product is the subset of catalog data the cart needs to add a line.
type Product struct {
	ID        int64
	Name      string
	UnitPrice decimal.Decimal
}

// LineItem is one product in the cart. Quantity is never below 1.
type LineItem struct {
	ProductID int64
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Total returns unit price times quantity.
func (l LineItem) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is an ordered collection of line items keyed by product id.
// It is not safe for concurrent use; Engine serialises access.
type Cart struct {
	items []LineItem
	index map[int64]int
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{index: make(map[int64]int)}
}

// Len reports the number of distinct line items.
func (c *Cart) Len() int {
	return len(c.items)
}

// Items returns a copy of the line items in insertion order.
func (c *Cart) Items() []LineItem {
	out := make([]LineItem, len(c.items))
	copy(out, c.items)
	return out
}

// Lookup returns the line for productID.
func (c *Cart) Lookup(productID int64) (LineItem, bool) {
	i, ok := c.index[productID]
	if !ok {
		return LineItem{}, false
	}
	return c.items[i], true
}

// Add increments an existing line or appends a new one with quantity 1.
func (c *Cart) Add(p Product) (LineItem, error) {
	if p.UnitPrice.IsNegative() {
		return LineItem{}, ErrInvalidPrice
	}
	if i, ok := c.index[p.ID]; ok {
		c.items[i].Quantity++
		return c.items[i], nil
	}
	line := LineItem{ProductID: p.ID, Name: p.Name, UnitPrice: p.UnitPrice, Quantity: 1}
	c.index[p.ID] = len(c.items)
	c.items = append(c.items, line)
	return line, nil
}

// Adjust changes a line's quantity by delta, clamping at 1.
func (c *Cart) Adjust(productID int64, delta int) (LineItem, error) {
	i, ok := c.index[productID]
	if !ok {
		return LineItem{}, ErrItemNotFound
	}
	qty := c.items[i].Quantity + delta
	if qty < 1 {
		qty = 1
	}
	c.items[i].Quantity = qty
	return c.items[i], nil
}

// Remove deletes the line for productID. Removing an absent product is a no-op.
func (c *Cart) Remove(productID int64) {
	i, ok := c.index[productID]
	if !ok {
		return
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	delete(c.index, productID)
	for j := i; j < len(c.items); j++ {
		c.index[c.items[j].ProductID] = j
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.items = nil
	c.index = make(map[int64]int)
}

// Subtotal folds unit price times quantity over every line.
func (c *Cart) Subtotal() decimal.Decimal {
	return Subtotal(c.items)
}

// Subtotal sums the line totals of items.
func Subtotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Total())
	}
	return total
}
