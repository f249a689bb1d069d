package ui

import (
	"net/http"
	"time"

	"github.com/a-h/templ"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"finitefield.org/retail-pos/internal/pos/catalog"
	"finitefield.org/retail-pos/internal/pos/failure"
	custommw "finitefield.org/retail-pos/internal/pos/httpserver/middleware"
	"finitefield.org/retail-pos/internal/pos/inventory"
	"finitefield.org/retail-pos/internal/pos/observability"
	"finitefield.org/retail-pos/internal/pos/rbac"
	"finitefield.org/retail-pos/internal/pos/receipt"
	possession "finitefield.org/retail-pos/internal/pos/session"
	"finitefield.org/retail-pos/internal/pos/terminal"
	"finitefield.org/retail-pos/internal/pos/transaction"
	"finitefield.org/retail-pos/internal/pos/views"
)

// Dependencies collects the services required by the terminal handlers.
type Dependencies struct {
	Lookup    *catalog.Lookup
	Submitter *transaction.Submitter
	Inventory *inventory.Book
	Receipts  *receipt.Renderer
	Terminals *terminal.Registry
	Clock     func() time.Time
}

// Handlers exposes HTTP handlers for the terminal pages.
type Handlers struct {
	lookup    *catalog.Lookup
	submitter *transaction.Submitter
	inventory *inventory.Book
	receipts  *receipt.Renderer
	terminals *terminal.Registry
	clock     func() time.Time
}

// NewHandlers wires the handler set. Lookup, Submitter, Inventory and Receipts are required.
func NewHandlers(deps Dependencies) *Handlers {
	if deps.Lookup == nil || deps.Submitter == nil || deps.Inventory == nil || deps.Receipts == nil {
		panic("ui: lookup, submitter, inventory and receipts are required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	terminals := deps.Terminals
	if terminals == nil {
		terminals = terminal.NewRegistry(0, clock)
	}
	return &Handlers{
		lookup:    deps.Lookup,
		submitter: deps.Submitter,
		inventory: deps.Inventory,
		receipts:  deps.Receipts,
		terminals: terminals,
		clock:     clock,
	}
}

// Terminals returns the registry backing the handlers.
func (h *Handlers) Terminals() *terminal.Registry {
	return h.terminals
}

// Dashboard renders the cashier's summary of the terminal.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	user, term, ok := h.context(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	f := h.receipts.Formatter()

	items := term.Cart.Items()
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	status := term.Drawer.Status()
	data := views.DashboardData{
		CashierName:  user.DisplayName(),
		StoreName:    user.StoreName,
		CartItems:    count,
		CartSubtotal: f.Format(term.Cart.Subtotal()),
		DrawerOpen:   status.Open,
		DrawerExpect: f.Format(status.Expected),
		ShowLowStock: rbac.HasCapability(user.Roles, rbac.CapLowStockAlerts),
	}
	if last := term.LastSale(); last != nil {
		data.LastSaleID = last.SaleID
		data.LastSaleTotal = f.Format(last.Total)
	}
	if data.ShowLowStock {
		var low, all []inventory.StockSnapshot
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			low, err = h.inventory.LowStock(gctx, user.Token, user.StoreID)
			return err
		})
		g.Go(func() error {
			var err error
			all, err = h.inventory.Stock(gctx, user.Token, user.StoreID)
			return err
		})
		if err := g.Wait(); err != nil {
			observability.FromContext(ctx).Warn("dashboard: stock load failed", zap.Error(err))
			data.LowStockError = failure.UserMessage(err)
		} else {
			data.LowStock = views.BuildInventory(low, true, false, time.Time{}, "").Rows
			data.Tracked = len(all)
		}
	}

	h.render(w, r, "Dashboard", views.DashboardContent(data), http.StatusOK)
}

// context resolves the signed-in user and their terminal, answering 401 when
// either is missing.
func (h *Handlers) context(w http.ResponseWriter, r *http.Request) (*custommw.User, *terminal.Terminal, bool) {
	user, ok := custommw.UserFromContext(r.Context())
	if !ok || user == nil {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return nil, nil, false
	}
	sess, ok := custommw.SessionFromContext(r.Context())
	if !ok || sess == nil {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return nil, nil, false
	}
	return user, h.terminals.Get(sess.ID()), true
}

// Forbidden renders the refusal page for a screen the user's role does not cover.
func (h *Handlers) Forbidden(w http.ResponseWriter, r *http.Request, message string) {
	h.render(w, r, "Not allowed", views.ForbiddenContent(message), http.StatusForbidden)
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, title string, content templ.Component, status int) {
	flashes := custommw.PopFlashes(r.Context())
	templ.Handler(views.Page(title, flashes, content), templ.WithStatus(status)).ServeHTTP(w, r)
}

// finish answers a form post: htmx requests get the page re-rendered in place,
// plain posts are redirected to target.
func (h *Handlers) finish(w http.ResponseWriter, r *http.Request, target string, rerender func()) {
	if custommw.IsHTMXRequest(r.Context()) {
		rerender()
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func flashError(r *http.Request, err error) {
	observability.FromContext(r.Context()).Info("operation rejected",
		zap.String("kind", failure.KindOf(err).String()),
		zap.Error(err),
	)
	custommw.AddFlash(r.Context(), possession.FlashError, failure.UserMessage(err))
}

func flashSuccess(r *http.Request, message string) {
	custommw.AddFlash(r.Context(), possession.FlashSuccess, message)
}
