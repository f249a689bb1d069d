package ui

import (
	"net/http"

	"github.com/a-h/templ"

	"finitefield.org/retail-pos/internal/pos/views"
)

// LatestReceipt shows the receipt of the terminal's last sale.
func (h *Handlers) LatestReceipt(w http.ResponseWriter, r *http.Request) {
	_, term, ok := h.context(w, r)
	if !ok {
		return
	}
	last := term.LastSale()
	var component templ.Component
	if last != nil {
		component = h.receipts.Component(last)
	}
	h.render(w, r, "Receipt", views.ReceiptContent(component, last != nil), http.StatusOK)
}

// PrintReceipt serves the last receipt as a standalone printable document.
func (h *Handlers) PrintReceipt(w http.ResponseWriter, r *http.Request) {
	_, term, ok := h.context(w, r)
	if !ok {
		return
	}
	last := term.LastSale()
	if last == nil {
		http.Error(w, "no receipt to print", http.StatusNotFound)
		return
	}
	templ.Handler(h.receipts.Document(last)).ServeHTTP(w, r)
}
