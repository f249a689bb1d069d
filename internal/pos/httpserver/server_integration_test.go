package httpserver_test

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"finitefield.org/retail-pos/internal/pos/httpserver/middleware"
	"finitefield.org/retail-pos/internal/pos/testutil"
	"finitefield.org/retail-pos/internal/pos/transaction"
)

func TestDashboardRedirectsWithoutAuth(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client := testutil.NewBrowser(t)

	resp, err := client.Get(ts.URL + "/pos")
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/pos/login", resp.Header.Get("Location"))
}

func TestHealthzIsPublic(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginStoresSessionAndLogoutClearsIt(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client := testutil.NewBrowser(t)

	login(t, client, ts.URL, "cashier-token", "/pos/checkout")

	status, body := get(t, client, ts.URL+"/pos")
	require.Equal(t, http.StatusOK, status)
	doc := testutil.ParsePage(t, body)
	require.Equal(t, "Dashboard · POS", doc.Find("title").Text())
	require.Equal(t, "Demo Cashier", doc.Find(".topbar__cashier").Text())
	require.Equal(t, "2", doc.Find("[data-card='low-stock'] .card__value").Text())
	require.Equal(t, "of 5 tracked products", doc.Find("[data-card='low-stock'] .muted").Text())

	resp := post(t, client, ts.URL, "/pos/logout", url.Values{})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/pos/login?status=logged_out", resp.Header.Get("Location"))

	resp, err := client.Get(ts.URL + "/pos")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestLoginRejectsBlankToken(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client := testutil.NewBrowser(t)

	status, _ := get(t, client, ts.URL+"/pos/login")
	require.Equal(t, http.StatusOK, status)

	resp := post(t, client, ts.URL, "/pos/login", url.Values{"token": {"  "}})
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	doc := testutil.ParsePage(t, body)
	require.Equal(t, "Enter your access token.", doc.Find(".alert").Text())
}

func TestCheckoutFlowCompletesSale(t *testing.T) {
	t.Parallel()

	gateway := transaction.NewStaticGateway(41)
	ts := testutil.NewServer(t, testutil.WithGateway(gateway))
	client := testutil.NewBrowser(t)
	login(t, client, ts.URL, "cashier-token", "")

	status, body := get(t, client, ts.URL+"/pos/checkout?q=PEN-001")
	require.Equal(t, http.StatusOK, status)
	doc := testutil.ParsePage(t, body)
	require.Equal(t, 1, doc.Find(".lookup__result--best[data-product-id='1']").Length())

	resp := post(t, client, ts.URL, "/pos/checkout", url.Values{"action": {"add"}, "product_id": {"1"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/pos/checkout", resp.Header.Get("Location"))

	post(t, client, ts.URL, "/pos/checkout", url.Values{"action": {"increment"}, "product_id": {"1"}})

	_, body = get(t, client, ts.URL+"/pos/checkout")
	doc = testutil.ParsePage(t, body)
	require.Equal(t, "2", doc.Find(".cart__line[data-product-id='1'] .cart__count").Text())
	require.Equal(t, "$20.00", doc.Find("[data-subtotal]").Text())
	require.Equal(t, 1, doc.Find(".lookup__result").Length(), "last lookup stays on screen")

	post(t, client, ts.URL, "/pos/checkout", url.Values{
		"action":          {"submit"},
		"payment_method":  {"cash"},
		"amount_tendered": {"50"},
	})

	_, body = get(t, client, ts.URL+"/pos/checkout")
	doc = testutil.ParsePage(t, body)
	require.Equal(t, "Sale #41 completed. Change due $30.00.", doc.Find(".flash--success").Text())
	require.Equal(t, 0, doc.Find(".cart__line").Length())
	require.Equal(t, "Last sale #41", doc.Find(".last-sale h2").Text())

	requests := gateway.Requests()
	require.Len(t, requests, 1)
	require.Equal(t, int64(1), requests[0].StoreID)
	require.Len(t, requests[0].Items, 1)
	require.Equal(t, 2, requests[0].Items[0].Quantity)

	status, body = get(t, client, ts.URL+"/pos/receipts/latest/print")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, string(body), "Ballpoint Pen")
}

func TestCheckoutKeepsCartWhenPaymentIsShort(t *testing.T) {
	t.Parallel()

	gateway := transaction.NewStaticGateway(1)
	ts := testutil.NewServer(t, testutil.WithGateway(gateway))
	client := testutil.NewBrowser(t)
	login(t, client, ts.URL, "cashier-token", "")

	get(t, client, ts.URL+"/pos/checkout?q=PEN-001")
	post(t, client, ts.URL, "/pos/checkout", url.Values{"action": {"add"}, "product_id": {"1"}})
	post(t, client, ts.URL, "/pos/checkout", url.Values{
		"action":          {"submit"},
		"payment_method":  {"cash"},
		"amount_tendered": {"5"},
	})

	_, body := get(t, client, ts.URL+"/pos/checkout")
	doc := testutil.ParsePage(t, body)
	require.Equal(t, "The amount tendered is less than the total.", doc.Find(".flash--error").Text())
	require.Equal(t, 1, doc.Find(".cart__line").Length())
	require.Empty(t, gateway.Requests())
}

func TestCheckoutRejectsProductsOutsideLookup(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client := testutil.NewBrowser(t)
	login(t, client, ts.URL, "cashier-token", "")

	post(t, client, ts.URL, "/pos/checkout", url.Values{"action": {"add"}, "product_id": {"3"}})

	_, body := get(t, client, ts.URL+"/pos/checkout")
	doc := testutil.ParsePage(t, body)
	require.Equal(t, "Search for the product before adding it.", doc.Find(".flash--error").Text())
	require.Equal(t, 0, doc.Find(".cart__line").Length())
}

func TestCheckoutHTMXRendersPartial(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client := testutil.NewBrowser(t)
	login(t, client, ts.URL, "cashier-token", "")

	resp := postWithHeaders(t, client, ts.URL, "/pos/checkout", url.Values{"action": {"scan"}, "q": {"4800016644818"}}, map[string]string{"HX-Request": "true"})
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	doc := testutil.ParsePage(t, body)
	require.Equal(t, 0, doc.Find("header.topbar").Length())
	require.Equal(t, 1, doc.Find("#checkout").Length())
	require.Equal(t, "1", doc.Find(".cart__line[data-product-id='2'] .cart__count").Text())
	require.Equal(t, "$45.50", doc.Find("[data-subtotal]").Text())
}

func TestCheckoutScanOfNameShowsCandidatesOnly(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client := testutil.NewBrowser(t)
	login(t, client, ts.URL, "cashier-token", "")

	resp := postWithHeaders(t, client, ts.URL, "/pos/checkout", url.Values{"action": {"scan"}, "q": {"Notebook"}}, map[string]string{"HX-Request": "true"})
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	doc := testutil.ParsePage(t, body)
	require.Equal(t, 0, doc.Find(".cart__line").Length())
	require.Equal(t, 1, doc.Find(".lookup__result--best[data-product-id='2']").Length())
}

func TestInventoryAdjustmentUpdatesStock(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client := testutil.NewBrowser(t)
	login(t, client, ts.URL, "manager-token", "")

	status, body := get(t, client, ts.URL+"/pos/inventory/low-stock")
	require.Equal(t, http.StatusOK, status)
	doc := testutil.ParsePage(t, body)
	require.Equal(t, 2, doc.Find(".inventory__row--low").Length())

	resp := post(t, client, ts.URL, "/pos/inventory/adjust", url.Values{
		"store_product_id": {"102"},
		"type":             {"restock"},
		"quantity":         {"5"},
		"reason":           {"<b>delivery</b>"},
		"view":             {"low"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/pos/inventory/low-stock", resp.Header.Get("Location"))

	_, body = get(t, client, ts.URL+"/pos/inventory")
	doc = testutil.ParsePage(t, body)
	require.Equal(t, "Stock updated.", doc.Find(".flash--success").Text())
	require.Equal(t, "13", doc.Find("tr[data-store-product-id='102'] .inventory__qty").Text())
	require.Equal(t, 1, doc.Find(".inventory__row--low").Length())
}

func TestInventoryAdjustmentRejectsWrongSign(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client := testutil.NewBrowser(t)
	login(t, client, ts.URL, "manager-token", "")

	post(t, client, ts.URL, "/pos/inventory/adjust", url.Values{
		"store_product_id": {"101"},
		"type":             {"damage"},
		"quantity":         {"3"},
	})

	_, body := get(t, client, ts.URL+"/pos/inventory")
	doc := testutil.ParsePage(t, body)
	require.Equal(t, "The quantity does not match the adjustment type.", doc.Find(".flash--error").Text())
	require.Equal(t, "120", doc.Find("tr[data-store-product-id='101'] .inventory__qty").Text())
}

func TestCashierCannotReachManagerRoutes(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t, testutil.WithAuthenticator(&roleAuthenticator{role: "cashier"}))
	client := testutil.NewBrowser(t)
	login(t, client, ts.URL, "cashier-token", "")

	status, body := get(t, client, ts.URL+"/pos/inventory/low-stock")
	require.Equal(t, http.StatusForbidden, status)
	doc := testutil.ParsePage(t, body)
	require.Equal(t, "The cashier role is not allowed to view low-stock alerts.", doc.Text(".forbidden__message"))
	require.Equal(t, 1, doc.Count("header.topbar"))

	status, _ = get(t, client, ts.URL+"/pos/metrics")
	require.Equal(t, http.StatusForbidden, status)

	status, body = get(t, client, ts.URL+"/pos/inventory")
	require.Equal(t, http.StatusOK, status)
	doc = testutil.ParsePage(t, body)
	require.Equal(t, 0, doc.Count("form.adjust"))

	resp := post(t, client, ts.URL, "/pos/inventory/adjust", url.Values{
		"store_product_id": {"101"},
		"type":             {"restock"},
		"quantity":         {"1"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/pos", resp.Header.Get("Location"))

	_, body = get(t, client, ts.URL+"/pos")
	require.Equal(t, "The cashier role is not allowed to adjust stock.", testutil.ParsePage(t, body).Flash("error"))

	_, body = get(t, client, ts.URL+"/pos/inventory")
	require.Equal(t, "120", testutil.ParsePage(t, body).Text("tr[data-store-product-id='101'] .inventory__qty"))
}

func TestDrawerTracksCashSales(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client := testutil.NewBrowser(t)
	login(t, client, ts.URL, "cashier-token", "")

	resp := post(t, client, ts.URL, "/pos/drawer/open", url.Values{"float": {"100"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	get(t, client, ts.URL+"/pos/checkout?q=BEV-003")
	post(t, client, ts.URL, "/pos/checkout", url.Values{"action": {"add"}, "product_id": {"3"}})
	post(t, client, ts.URL, "/pos/checkout", url.Values{
		"action":          {"submit"},
		"payment_method":  {"cash"},
		"amount_tendered": {"20"},
	})
	post(t, client, ts.URL, "/pos/drawer/move", url.Values{"type": {"cash_out"}, "amount": {"8"}, "description": {"change run"}})

	_, body := get(t, client, ts.URL+"/pos/drawer")
	doc := testutil.ParsePage(t, body)
	require.Contains(t, doc.Find(".drawer__status").Text(), "$110.00")

	post(t, client, ts.URL, "/pos/drawer/close", url.Values{"counted": {"110"}})
	_, body = get(t, client, ts.URL+"/pos/drawer")
	doc = testutil.ParsePage(t, body)
	require.Equal(t, "Drawer closed. Variance $0.00 (normal).", doc.Find(".flash--success").Text())
	require.Equal(t, 1, doc.Find(".drawer__summary--normal").Length())
}

func TestCSRFRequiredForPosts(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client := testutil.NewBrowser(t)
	login(t, client, ts.URL, "cashier-token", "")

	get(t, client, ts.URL+"/pos/checkout?q=PEN-001")
	post(t, client, ts.URL, "/pos/checkout", url.Values{"action": {"add"}, "product_id": {"1"}})

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/pos/checkout", strings.NewReader(url.Values{"action": {"void"}}.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", ts.URL+"/pos/checkout")
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/pos/checkout", resp.Header.Get("Location"))

	_, body := get(t, client, ts.URL+"/pos/checkout")
	doc := testutil.ParsePage(t, body)
	require.Equal(t, "That form had expired, so nothing was changed. Please try again.", doc.Flash("error"))
	require.Equal(t, 1, doc.Count(".cart__line"))
}

func TestCSRFTokenSurvivesSignIn(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	client := testutil.NewBrowser(t)

	get(t, client, ts.URL+"/pos/login")
	before := client.CSRFToken()
	require.NotEmpty(t, before)

	login(t, client, ts.URL, "cashier-token", "")
	_, body := get(t, client, ts.URL+"/pos/checkout")
	require.Equal(t, before, testutil.ParsePage(t, body).CSRFToken())
}

type roleAuthenticator struct {
	role string
}

func (a *roleAuthenticator) Authenticate(_ *http.Request, token string) (*middleware.User, error) {
	if token == "" {
		return nil, middleware.ErrUnauthorized
	}
	return &middleware.User{
		UID:       "user-" + a.role,
		Name:      "Test " + a.role,
		Token:     token,
		Roles:     []string{a.role},
		CashierID: 7,
		StoreID:   testutil.DemoStoreID,
		StoreName: "Demo Store",
	}, nil
}

func login(t *testing.T, client *testutil.Browser, baseURL, token, next string) {
	t.Helper()

	status, _ := get(t, client, baseURL+"/pos/login")
	require.Equal(t, http.StatusOK, status)

	form := url.Values{"token": {token}}
	if next != "" {
		form.Set("next", next)
	}
	resp := post(t, client, baseURL, "/pos/login", form)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	want := next
	if want == "" {
		want = "/pos"
	}
	require.Equal(t, want, resp.Header.Get("Location"))
}

func get(t *testing.T, client *testutil.Browser, target string) (int, []byte) {
	t.Helper()
	return client.Fetch(target)
}

func post(t *testing.T, client *testutil.Browser, baseURL, path string, form url.Values) *http.Response {
	t.Helper()
	return client.Submit(baseURL+path, form, nil)
}

func postWithHeaders(t *testing.T, client *testutil.Browser, baseURL, path string, form url.Values, headers map[string]string) *http.Response {
	t.Helper()
	return client.Submit(baseURL+path, form, headers)
}
