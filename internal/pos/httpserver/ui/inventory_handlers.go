package ui

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"finitefield.org/retail-pos/internal/pos/failure"
	custommw "finitefield.org/retail-pos/internal/pos/httpserver/middleware"
	"finitefield.org/retail-pos/internal/pos/inventory"
	"finitefield.org/retail-pos/internal/pos/observability"
	"finitefield.org/retail-pos/internal/pos/rbac"
	"finitefield.org/retail-pos/internal/pos/views"
)

// Inventory renders the store's stock, reloaded from the backend. When the reload
// fails the last loaded snapshot is shown with an error.
func (h *Handlers) Inventory(w http.ResponseWriter, r *http.Request) {
	h.renderInventory(w, r, false)
}

// LowStock renders the products at or below their threshold.
func (h *Handlers) LowStock(w http.ResponseWriter, r *http.Request) {
	h.renderInventory(w, r, true)
}

// AdjustStock applies a restock, damage or correction and re-renders the list it came from.
func (h *Handlers) AdjustStock(w http.ResponseWriter, r *http.Request) {
	user, _, ok := h.context(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "could not read the form", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	lowOnly := r.PostFormValue("view") == "low"

	adj, err := parseAdjustment(r)
	if err == nil {
		_, err = h.inventory.Adjust(ctx, user.Token, user.StoreID, adj)
	}
	if err != nil {
		flashError(r, err)
	} else {
		flashSuccess(r, "Stock updated.")
	}

	target := custommw.URL(ctx, "inventory")
	if lowOnly {
		target = custommw.URL(ctx, "inventory", "low-stock")
	}
	h.finish(w, r, target, func() {
		h.renderInventory(w, r, lowOnly)
	})
}

func (h *Handlers) renderInventory(w http.ResponseWriter, r *http.Request, lowOnly bool) {
	user, _, ok := h.context(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	logger := observability.FromContext(ctx).With(zap.Int64("store_id", user.StoreID))
	canAdjust := rbac.HasCapability(user.Roles, rbac.CapInventoryAdjust)

	var (
		items       []inventory.StockSnapshot
		refreshedAt = h.clock()
		errMsg      string
		err         error
	)
	if lowOnly {
		items, err = h.inventory.LowStock(ctx, user.Token, user.StoreID)
	} else {
		items, err = h.inventory.Refresh(ctx, user.Token, user.StoreID)
	}
	if err != nil {
		logger.Warn("inventory: load failed", zap.Bool("low_only", lowOnly), zap.Error(err))
		errMsg = failure.UserMessage(err)
		items = nil
		refreshedAt = time.Time{}
		if cached, at, ok := h.inventory.Snapshot(user.StoreID); ok {
			items = cached
			refreshedAt = at
		}
	}

	data := views.BuildInventory(items, lowOnly, canAdjust, refreshedAt, errMsg)
	h.render(w, r, data.Title, views.InventoryContent(data), http.StatusOK)
}

func parseAdjustment(r *http.Request) (inventory.Adjustment, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.PostFormValue("store_product_id")), 10, 64)
	if err != nil || id <= 0 {
		return inventory.Adjustment{}, inventory.ErrUnknownProduct
	}
	qty, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("quantity")))
	if err != nil {
		return inventory.Adjustment{}, inventory.ErrInvalidQuantity
	}
	return inventory.Adjustment{
		StoreProductID: id,
		Type:           inventory.AdjustmentType(r.PostFormValue("type")),
		Quantity:       qty,
		Reason:         r.PostFormValue("reason"),
	}, nil
}
