package ui

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	"finitefield.org/retail-pos/internal/pos/cart"
	"finitefield.org/retail-pos/internal/pos/catalog"
	"finitefield.org/retail-pos/internal/pos/failure"
	custommw "finitefield.org/retail-pos/internal/pos/httpserver/middleware"
	"finitefield.org/retail-pos/internal/pos/money"
	"finitefield.org/retail-pos/internal/pos/observability"
	"finitefield.org/retail-pos/internal/pos/payment"
	"finitefield.org/retail-pos/internal/pos/terminal"
	"finitefield.org/retail-pos/internal/pos/transaction"
	"finitefield.org/retail-pos/internal/pos/views"
)

var errProductNotListed = failure.New(failure.KindValidation, "product_not_listed", "Search for the product before adding it.")

// checkoutForm is what the payment form carries back when a submission fails.
type checkoutForm struct {
	method   payment.Method
	tendered string
}

// Checkout renders the checkout screen. A q parameter runs a product lookup;
// without it the terminal's last lookup is shown again.
func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	user, term, ok := h.context(w, r)
	if !ok {
		return
	}
	lookup := lastLookup(term)
	if values := r.URL.Query(); values.Has("q") {
		lookup = h.search(r.Context(), user, term, values.Get("q"))
	}
	h.renderCheckout(w, r, term, lookup, checkoutForm{})
}

// CheckoutAction applies one cart or payment action posted from the checkout screen.
func (h *Handlers) CheckoutAction(w http.ResponseWriter, r *http.Request) {
	user, term, ok := h.context(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "could not read the form", http.StatusBadRequest)
		return
	}
	ctx := r.Context()

	var (
		err    error
		form   checkoutForm
		lookup *views.LookupView
	)
	action := strings.TrimSpace(r.PostFormValue("action"))
	switch action {
	case "add":
		err = addCandidate(term, r.PostFormValue("product_id"))
	case "scan":
		found := h.search(ctx, user, term, r.PostFormValue("q"))
		lookup = &found
		// Only an exact barcode or SKU adds straight to the cart; name matches
		// stay on screen for the cashier to pick.
		if best, ok := found.Outcome.(catalog.Found); ok && best.Product.MatchesCode(found.Query) {
			_, err = term.Cart.AddItem(best.Product.CartProduct())
		}
	case "increment", "decrement":
		delta := 1
		if action == "decrement" {
			delta = -1
		}
		var id int64
		if id, err = productID(r.PostFormValue("product_id")); err == nil {
			_, err = term.Cart.UpdateQuantity(id, delta)
		}
	case "remove":
		var id int64
		if id, err = productID(r.PostFormValue("product_id")); err == nil {
			err = term.Cart.RemoveItem(id)
		}
	case "void":
		if err = term.Cart.Void(); err == nil {
			flashSuccess(r, "The sale was voided.")
		}
	case "submit":
		form, err = h.submit(ctx, user, term, r)
	default:
		http.Error(w, "unknown checkout action", http.StatusBadRequest)
		return
	}
	if err != nil {
		flashError(r, err)
	} else {
		form = checkoutForm{}
	}

	h.finish(w, r, custommw.URL(ctx, "checkout"), func() {
		view := lastLookup(term)
		if lookup != nil {
			view = *lookup
		}
		h.renderCheckout(w, r, term, view, form)
	})
}

// submit reads the payment form and hands the cart to the submitter. On success
// the sale is recorded on the terminal and sent to the receipt printer.
func (h *Handlers) submit(ctx context.Context, user *custommw.User, term *terminal.Terminal, r *http.Request) (checkoutForm, error) {
	form := checkoutForm{
		method:   payment.Method(strings.TrimSpace(r.PostFormValue("payment_method"))),
		tendered: strings.TrimSpace(r.PostFormValue("amount_tendered")),
	}
	method, err := payment.ParseMethod(string(form.method))
	if err != nil {
		return form, err
	}
	tendered, err := money.Parse(form.tendered)
	if err != nil {
		return form, payment.ErrInvalidAmount
	}

	sc := transaction.Context{
		CashierID:   user.CashierID,
		CashierName: user.DisplayName(),
		StoreID:     user.StoreID,
		StoreName:   user.StoreName,
		Token:       user.Token,
	}
	if raw := strings.TrimSpace(r.PostFormValue("customer_id")); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			sc.CustomerID = &id
		}
	}

	result, err := h.submitter.Submit(ctx, sc, term.Cart, transaction.Checkout{Method: method, Tendered: tendered})
	if err != nil {
		return form, err
	}

	term.RecordSale(result)
	h.receipts.Print(ctx, result)
	term.Remember("")

	message := fmt.Sprintf("Sale #%d completed.", result.SaleID)
	if result.Change.IsPositive() {
		message += " Change due " + h.receipts.Formatter().Format(result.Change) + "."
	}
	flashSuccess(r, message)
	observability.FromContext(ctx).Info("sale recorded on terminal",
		zap.String("terminal_id", term.ID),
		zap.Int64("sale_id", result.SaleID),
	)
	return checkoutForm{}, nil
}

// search runs a lookup and caches its products on the terminal so they can be
// added by id. A blank query clears the results.
func (h *Handlers) search(ctx context.Context, user *custommw.User, term *terminal.Terminal, query string) views.LookupView {
	query = strings.TrimSpace(query)
	if query == "" {
		term.Remember("")
		return views.LookupView{}
	}
	outcome, err := h.lookup.Search(ctx, user.Token, user.StoreID, query)
	if err != nil {
		term.Remember(query)
		return views.LookupView{Query: query, Err: failure.UserMessage(err)}
	}
	switch o := outcome.(type) {
	case catalog.Found:
		term.Remember(query, append([]catalog.Product{o.Product}, o.Others...)...)
	default:
		term.Remember(query)
	}
	return views.LookupView{Query: query, Outcome: outcome}
}

func (h *Handlers) renderCheckout(w http.ResponseWriter, r *http.Request, term *terminal.Terminal, lookup views.LookupView, form checkoutForm) {
	last := term.LastSale()
	var receiptView templ.Component
	if last != nil {
		receiptView = h.receipts.Component(last)
	}
	data := views.BuildCheckout(
		h.receipts.Formatter(),
		lookup,
		term.Cart.Items(),
		term.Cart.State(),
		form.method,
		form.tendered,
		last,
		receiptView,
	)
	h.render(w, r, "Checkout", views.CheckoutContent(data), http.StatusOK)
}

func lastLookup(term *terminal.Terminal) views.LookupView {
	query, products := term.Candidates()
	view := views.LookupView{Query: query}
	if len(products) > 0 {
		view.Outcome = catalog.Found{Product: products[0], Others: products[1:]}
	}
	return view
}

func addCandidate(term *terminal.Terminal, raw string) error {
	id, err := productID(raw)
	if err != nil {
		return err
	}
	product, ok := term.Candidate(id)
	if !ok {
		return errProductNotListed
	}
	_, err = term.Cart.AddItem(product.CartProduct())
	return err
}

func productID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, cart.ErrItemNotFound
	}
	return id, nil
}
