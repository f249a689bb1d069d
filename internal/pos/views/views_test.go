package views

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/a-h/templ"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"finitefield.org/retail-pos/internal/pos/cart"
	"finitefield.org/retail-pos/internal/pos/catalog"
	"finitefield.org/retail-pos/internal/pos/drawer"
	"finitefield.org/retail-pos/internal/pos/httpserver/middleware"
	"finitefield.org/retail-pos/internal/pos/inventory"
	"finitefield.org/retail-pos/internal/pos/money"
	"finitefield.org/retail-pos/internal/pos/payment"
	possession "finitefield.org/retail-pos/internal/pos/session"
	"finitefield.org/retail-pos/internal/pos/transaction"
)

func render(t *testing.T, ctx context.Context, c templ.Component) *goquery.Document {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(ctx, &buf))
	doc, err := goquery.NewDocumentFromReader(&buf)
	require.NoError(t, err)
	return doc
}

func usd() money.Formatter {
	return money.NewFormatter("USD", "en")
}

func TestCheckoutRendersCartAndLookup(t *testing.T) {
	products := catalog.DemoProducts()
	items := []cart.LineItem{
		{ProductID: 1, Name: "Item A", UnitPrice: decimal.NewFromInt(5), Quantity: 2},
		{ProductID: 2, Name: "Item B", UnitPrice: decimal.NewFromInt(10), Quantity: 1},
	}
	lookup := LookupView{Query: "cof", Outcome: catalog.Found{Product: products[0], Others: products[1:2]}}

	data := BuildCheckout(usd(), lookup, items, cart.StatePopulated, payment.MethodCredit, "", nil, nil)
	require.Equal(t, "$20.00", data.Subtotal)
	require.Equal(t, 3, data.ItemCount)

	doc := render(t, context.Background(), CheckoutContent(data))

	require.Equal(t, 2, doc.Find("tr.cart__line").Length())
	require.Equal(t, "$20.00", doc.Find("[data-subtotal]").Text())
	require.Equal(t, 2, doc.Find("li.lookup__result").Length())
	require.Equal(t, 1, doc.Find("li.lookup__result--best").Length())
	require.Equal(t, "credit", doc.Find(`input[name="payment_method"][checked]`).AttrOr("value", ""))
	require.Equal(t, 1, doc.Find(`tr.cart__line[data-product-id="2"] .cart-action--decrement button[disabled]`).Length(),
		"a single unit cannot be decremented below one")
	_, disabled := doc.Find(".payment__form button[type=submit]").Attr("disabled")
	require.False(t, disabled)
}

func TestCheckoutNotFoundAndSubmitting(t *testing.T) {
	items := []cart.LineItem{{ProductID: 1, Name: "Item A", UnitPrice: decimal.NewFromInt(5), Quantity: 1}}
	data := BuildCheckout(usd(), LookupView{Query: "zzz", Outcome: catalog.NotFound{Query: "zzz"}}, items, cart.StateSubmitting, "", "", nil, nil)

	doc := render(t, context.Background(), CheckoutContent(data))
	require.Contains(t, doc.Find(".lookup__empty").Text(), `"zzz"`)
	_, disabled := doc.Find(".payment__form button[type=submit]").Attr("disabled")
	require.True(t, disabled)
	require.Equal(t, "cash", doc.Find(`input[name="payment_method"][checked]`).AttrOr("value", ""))
}

func TestCheckoutShowsLastSale(t *testing.T) {
	last := &transaction.Result{SaleID: 42, Change: decimal.RequireFromString("4.50")}
	receipt := templ.Raw(`<section class="receipt">r</section>`)
	data := BuildCheckout(usd(), LookupView{}, nil, cart.StateEmpty, "", "", last, receipt)

	doc := render(t, context.Background(), CheckoutContent(data))
	require.Contains(t, doc.Find(".last-sale h2").Text(), "#42")
	require.Contains(t, doc.Find(".last-sale__change").Text(), "$4.50")
	require.Equal(t, 1, doc.Find(".last-sale .receipt").Length())
	require.Equal(t, "The cart is empty.", doc.Find(".cart__empty").Text())
}

func TestInventoryLowOnly(t *testing.T) {
	items := []inventory.StockSnapshot{
		{StoreProductID: 1, ProductName: "Notebook", QuantityOnHand: 8, LowStockThreshold: 10},
		{StoreProductID: 2, ProductName: "Pen", QuantityOnHand: 40, LowStockThreshold: 10},
		{StoreProductID: 3, ProductName: "Noodles", QuantityOnHand: 5, LowStockThreshold: 5},
	}

	all := BuildInventory(items, false, true, time.Time{}, "")
	require.Len(t, all.Rows, 3)
	require.Equal(t, 2, all.LowCount)

	low := BuildInventory(items, true, false, time.Date(2025, 1, 1, 9, 30, 0, 0, time.UTC), "")
	require.Len(t, low.Rows, 2)
	require.Equal(t, "Low stock", low.Title)

	doc := render(t, context.Background(), InventoryContent(all))
	require.Equal(t, 2, doc.Find("tr.inventory__row--low").Length())
	require.Equal(t, 3, doc.Find("form.adjust").Length())

	doc = render(t, context.Background(), InventoryContent(low))
	require.Equal(t, 0, doc.Find("form.adjust").Length())
	require.Contains(t, doc.Find(".muted").Text(), "09:30:00")
}

func TestDrawerViews(t *testing.T) {
	clock := func() time.Time { return time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC) }
	d := drawer.New(clock)
	require.NoError(t, d.Open(decimal.NewFromInt(100)))
	d.RecordSale(7, decimal.RequireFromString("15.50"))

	data := BuildDrawer(usd(), d.Status())
	require.True(t, data.Open)
	require.Equal(t, "$115.50", data.Expected)
	require.Equal(t, "Sale #7", data.Movements[0].Description)

	doc := render(t, context.Background(), DrawerContent(data))
	require.Equal(t, 1, doc.Find("form.drawer__form--close").Length())
	require.Equal(t, 1, doc.Find("tr.drawer__movement--sale").Length())

	_, err := d.Close(decimal.NewFromInt(115))
	require.NoError(t, err)
	doc = render(t, context.Background(), DrawerContent(BuildDrawer(usd(), d.Status())))
	require.Equal(t, 1, doc.Find("form.drawer__form--open").Length())
	require.Contains(t, doc.Find(".drawer__summary").Text(), "-$0.50")
}

func TestPageNavigationFollowsRoles(t *testing.T) {
	serve := func(user *middleware.User, headers map[string]string) *goquery.Document {
		handler := middleware.RequestInfoMiddleware("/pos")(middleware.HTMX()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.WithUser(r.Context(), user)
			flashes := []possession.Flash{{Kind: possession.FlashSuccess, Message: "Saved"}}
			templ.Handler(Page("Checkout", flashes, templ.Raw(`<p id="content">hi</p>`))).ServeHTTP(w, r.WithContext(ctx))
		})))
		req := httptest.NewRequest(http.MethodGet, "/pos/checkout", nil)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(rec.Body.String()))
		require.NoError(t, err)
		return doc
	}

	cashier := serve(&middleware.User{UID: "1", Name: "Ana", Roles: []string{"cashier"}, StoreName: "Main St"}, nil)
	require.Equal(t, "Ana", cashier.Find(".topbar__cashier").Text())
	require.Equal(t, 0, cashier.Find(`.topbar__nav a[href="/pos/inventory/low-stock"]`).Length())
	require.Equal(t, "page", cashier.Find(`.topbar__nav a[href="/pos/checkout"]`).AttrOr("aria-current", ""))
	require.Equal(t, "Saved", cashier.Find(".flash--success").Text())
	require.Equal(t, "Development", cashier.Find(".topbar__env").Text())

	manager := serve(&middleware.User{UID: "2", Roles: []string{"manager"}}, nil)
	require.Equal(t, 1, manager.Find(`.topbar__nav a[href="/pos/inventory/low-stock"]`).Length())

	partial := serve(&middleware.User{UID: "1", Roles: []string{"cashier"}}, map[string]string{"HX-Request": "true"})
	require.Equal(t, 0, partial.Find(".topbar").Length())
	require.Equal(t, 1, partial.Find("#content").Length())
}

func TestForbiddenContentLinksBackToDashboard(t *testing.T) {
	var doc *goquery.Document
	handler := middleware.RequestInfoMiddleware("/till")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		doc = render(t, r.Context(), ForbiddenContent("The cashier role is not allowed to adjust stock."))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/till/inventory/adjust", nil))

	require.Equal(t, "The cashier role is not allowed to adjust stock.", doc.Find(".forbidden__message").Text())
	require.Equal(t, "/till", doc.Find(".forbidden a").AttrOr("href", ""))
}

func TestLoginPage(t *testing.T) {
	doc := render(t, context.Background(), LoginPage(LoginData{Action: "/pos/login", Next: "/pos/checkout", Error: "Invalid token."}))
	require.Equal(t, "/pos/login", doc.Find("form.login__form").AttrOr("action", ""))
	require.Equal(t, "/pos/checkout", doc.Find(`input[name="next"]`).AttrOr("value", ""))
	require.Equal(t, "Invalid token.", doc.Find(".alert").Text())
}
