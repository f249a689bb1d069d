package ui

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"finitefield.org/retail-pos/internal/pos/drawer"
	custommw "finitefield.org/retail-pos/internal/pos/httpserver/middleware"
	"finitefield.org/retail-pos/internal/pos/money"
	"finitefield.org/retail-pos/internal/pos/terminal"
	"finitefield.org/retail-pos/internal/pos/views"
)

// Drawer renders the cash drawer of the terminal.
func (h *Handlers) Drawer(w http.ResponseWriter, r *http.Request) {
	_, term, ok := h.context(w, r)
	if !ok {
		return
	}
	h.renderDrawer(w, r, term)
}

// OpenDrawer starts a drawer session with the posted float.
func (h *Handlers) OpenDrawer(w http.ResponseWriter, r *http.Request) {
	h.drawerAction(w, r, func(term *terminal.Terminal) (string, error) {
		float, err := parseAmount(r.PostFormValue("float"))
		if err != nil {
			return "", err
		}
		if err := term.Drawer.Open(float); err != nil {
			return "", err
		}
		return "Drawer opened with " + h.receipts.Formatter().Format(float) + ".", nil
	})
}

// MoveCash records a cash-in or cash-out.
func (h *Handlers) MoveCash(w http.ResponseWriter, r *http.Request) {
	h.drawerAction(w, r, func(term *terminal.Terminal) (string, error) {
		amount, err := parseAmount(r.PostFormValue("amount"))
		if err != nil {
			return "", err
		}
		kind := drawer.MovementType(strings.TrimSpace(r.PostFormValue("type")))
		if err := term.Drawer.Move(kind, amount, r.PostFormValue("description")); err != nil {
			return "", err
		}
		return "Movement recorded.", nil
	})
}

// CloseDrawer reconciles the counted cash and closes the session.
func (h *Handlers) CloseDrawer(w http.ResponseWriter, r *http.Request) {
	h.drawerAction(w, r, func(term *terminal.Terminal) (string, error) {
		counted, err := parseAmount(r.PostFormValue("counted"))
		if err != nil {
			return "", err
		}
		summary, err := term.Drawer.Close(counted)
		if err != nil {
			return "", err
		}
		return "Drawer closed. Variance " + h.receipts.Formatter().Format(summary.Variance) + " (" + string(summary.Classification) + ").", nil
	})
}

func (h *Handlers) drawerAction(w http.ResponseWriter, r *http.Request, apply func(*terminal.Terminal) (string, error)) {
	_, term, ok := h.context(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "could not read the form", http.StatusBadRequest)
		return
	}
	if message, err := apply(term); err != nil {
		flashError(r, err)
	} else {
		flashSuccess(r, message)
	}
	h.finish(w, r, custommw.URL(r.Context(), "drawer"), func() {
		h.renderDrawer(w, r, term)
	})
}

func (h *Handlers) renderDrawer(w http.ResponseWriter, r *http.Request, term *terminal.Terminal) {
	data := views.BuildDrawer(h.receipts.Formatter(), term.Drawer.Status())
	h.render(w, r, "Cash drawer", views.DrawerContent(data), http.StatusOK)
}

func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := money.Parse(raw)
	if err != nil || amount == nil {
		return decimal.Zero, drawer.ErrInvalidAmount
	}
	return *amount, nil
}
