package views

import (
	"context"
	"strconv"

	"github.com/a-h/templ"

	"finitefield.org/retail-pos/internal/pos/cart"
	"finitefield.org/retail-pos/internal/pos/catalog"
	"finitefield.org/retail-pos/internal/pos/httpserver/middleware"
	"finitefield.org/retail-pos/internal/pos/markup"
	"finitefield.org/retail-pos/internal/pos/money"
	"finitefield.org/retail-pos/internal/pos/payment"
	"finitefield.org/retail-pos/internal/pos/transaction"
)

// ProductRow is one lookup result.
type ProductRow struct {
	ID       int64
	Name     string
	SKU      string
	Price    string
	Stock    int
	LowStock bool
	Best     bool
}

// CartLine is one cart row.
type CartLine struct {
	ProductID int64
	Name      string
	UnitPrice string
	Quantity  int
	Total     string
}

// MethodOption is one payment method radio.
type MethodOption struct {
	Value    string
	Label    string
	Selected bool
}

// CheckoutData drives the checkout screen.
type CheckoutData struct {
	Query       string
	Results     []ProductRow
	NotFound    string
	LookupError string
	Lines       []CartLine
	ItemCount   int
	Subtotal    string
	Submitting  bool
	Methods     []MethodOption
	Tendered    string
	LastSaleID  int64
	LastChange  string
	Receipt     templ.Component
}

// LookupView is the lookup part of the checkout screen.
type LookupView struct {
	Query   string
	Outcome catalog.Outcome
	Err     string
}

// BuildCheckout assembles the checkout data from the cart and the latest lookup.
func BuildCheckout(f money.Formatter, lookup LookupView, items []cart.LineItem, state cart.State, method payment.Method, tendered string, last *transaction.Result, receipt templ.Component) CheckoutData {
	data := CheckoutData{
		Query:       lookup.Query,
		LookupError: lookup.Err,
		Subtotal:    f.Format(cart.Subtotal(items)),
		Submitting:  state == cart.StateSubmitting,
		Tendered:    tendered,
		Receipt:     receipt,
	}

	switch o := lookup.Outcome.(type) {
	case catalog.Found:
		data.Results = append(data.Results, productRow(f, o.Product, true))
		for _, p := range o.Others {
			data.Results = append(data.Results, productRow(f, p, false))
		}
	case catalog.NotFound:
		data.NotFound = "No product matches \"" + o.Query + "\"."
	}

	for _, item := range items {
		data.Lines = append(data.Lines, CartLine{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: f.Format(item.UnitPrice),
			Quantity:  item.Quantity,
			Total:     f.Format(item.Total()),
		})
		data.ItemCount += item.Quantity
	}

	if method == "" {
		method = payment.MethodCash
	}
	for _, m := range payment.Methods() {
		data.Methods = append(data.Methods, MethodOption{Value: string(m), Label: m.Label(), Selected: m == method})
	}

	if last != nil {
		data.LastSaleID = last.SaleID
		data.LastChange = f.Format(last.Change)
	}
	return data
}

func productRow(f money.Formatter, p catalog.Product, best bool) ProductRow {
	return ProductRow{
		ID:       p.ID,
		Name:     p.Name,
		SKU:      p.SKU,
		Price:    f.Format(p.Price),
		Stock:    p.Stock,
		LowStock: p.LowStockThreshold > 0 && p.Stock <= p.LowStockThreshold,
		Best:     best,
	}
}

// CheckoutContent renders the checkout screen body.
func CheckoutContent(data CheckoutData) templ.Component {
	return markup.Component(func(ctx context.Context, w *markup.Writer) {
		action := middleware.URL(ctx, "checkout")
		w.Open("div", markup.A("id", "checkout", "class", "checkout"))

		w.Open("section", markup.A("class", "panel lookup"))
		w.Element("h2", nil, "Find product")
		w.Open("form", markup.A("method", "get", "action", action, "hx-get", action, "hx-target", "#main", "class", "lookup__form"))
		w.Open("input", markup.A("type", "search", "name", "q", "value", data.Query, "placeholder", "Barcode, SKU or name", "minlength", "3", "autofocus", "autofocus", "aria-label", "Product search"))
		w.Raw(`<button type="submit">Search</button>`)
		w.Close("form")
		w.Render(ctx, Alert(data.LookupError))
		if data.NotFound != "" {
			w.Element("p", markup.A("class", "lookup__empty"), data.NotFound)
		}
		if len(data.Results) > 0 {
			w.Open("ul", markup.A("class", "lookup__results"))
			for _, row := range data.Results {
				cls := "lookup__result"
				if row.Best {
					cls += " lookup__result--best"
				}
				w.Open("li", markup.A("class", cls, "data-product-id", strconv.FormatInt(row.ID, 10)))
				w.Element("span", markup.A("class", "lookup__name"), row.Name)
				if row.SKU != "" {
					w.Element("small", markup.A("class", "lookup__sku"), row.SKU)
				}
				w.Element("span", markup.A("class", "lookup__price"), row.Price)
				stockCls := "lookup__stock"
				if row.LowStock {
					stockCls += " lookup__stock--low"
				}
				w.Element("span", markup.A("class", stockCls), strconv.Itoa(row.Stock)+" in stock")
				w.Render(ctx, cartAction(action, "add", row.ID, "Add", data.Submitting))
				w.Close("li")
			}
			w.Close("ul")
		}
		w.Close("section")

		w.Open("section", markup.A("class", "panel cart", "id", "cart"))
		w.Element("h2", nil, "Cart")
		if len(data.Lines) == 0 {
			w.Element("p", markup.A("class", "cart__empty"), "The cart is empty.")
		} else {
			w.Raw(`<table class="cart__lines"><thead><tr><th>Item</th><th>Price</th><th>Qty</th><th>Total</th><th></th></tr></thead><tbody>`)
			for _, line := range data.Lines {
				w.Open("tr", markup.A("class", "cart__line", "data-product-id", strconv.FormatInt(line.ProductID, 10)))
				w.Element("td", markup.A("class", "cart__name"), line.Name)
				w.Element("td", markup.A("class", "cart__price"), line.UnitPrice)
				w.Open("td", markup.A("class", "cart__qty"))
				w.Render(ctx, cartAction(action, "decrement", line.ProductID, "−", data.Submitting || line.Quantity <= 1))
				w.Element("span", markup.A("class", "cart__count"), strconv.Itoa(line.Quantity))
				w.Render(ctx, cartAction(action, "increment", line.ProductID, "+", data.Submitting))
				w.Close("td")
				w.Element("td", markup.A("class", "cart__total"), line.Total)
				w.Open("td", nil)
				w.Render(ctx, cartAction(action, "remove", line.ProductID, "Remove", data.Submitting))
				w.Close("td")
				w.Close("tr")
			}
			w.Raw(`</tbody></table>`)
		}
		w.Open("p", markup.A("class", "cart__subtotal"))
		w.Text("Subtotal ")
		w.Element("strong", markup.A("data-subtotal", ""), data.Subtotal)
		w.Element("small", nil, " ("+strconv.Itoa(data.ItemCount)+" items)")
		w.Close("p")

		if len(data.Lines) > 0 {
			w.Render(ctx, cartAction(action, "void", 0, "Void sale", data.Submitting))
		}
		w.Close("section")

		w.Open("section", markup.A("class", "panel payment"))
		w.Element("h2", nil, "Payment")
		w.Open("form", markup.A("method", "post", "action", action, "hx-post", action, "hx-target", "#main", "class", "payment__form"))
		w.Render(ctx, CSRFField())
		w.Open("input", markup.A("type", "hidden", "name", "action", "value", "submit"))
		w.Open("fieldset", markup.A("class", "payment__methods"))
		w.Element("legend", nil, "Method")
		for _, m := range data.Methods {
			w.Open("label", nil)
			w.Open("input", markup.A("type", "radio", "name", "payment_method", "value", m.Value).Flag("checked", m.Selected))
			w.Text(" " + m.Label)
			w.Close("label")
		}
		w.Close("fieldset")
		w.Open("label", markup.A("class", "payment__tendered"))
		w.Text("Amount tendered ")
		w.Open("input", markup.A("type", "text", "inputmode", "decimal", "name", "amount_tendered", "value", data.Tendered, "autocomplete", "off"))
		w.Close("label")
		label := "Complete sale"
		if data.Submitting {
			label = "Processing…"
		}
		w.Open("button", markup.A("type", "submit", "class", "primary").Flag("disabled", data.Submitting || len(data.Lines) == 0))
		w.Text(label)
		w.Close("button")
		w.Close("form")
		w.Close("section")

		if data.LastSaleID > 0 && data.Receipt != nil {
			w.Open("section", markup.A("class", "panel last-sale"))
			w.Element("h2", nil, "Last sale #"+strconv.FormatInt(data.LastSaleID, 10))
			w.Element("p", markup.A("class", "last-sale__change"), "Change due: "+data.LastChange)
			w.Render(ctx, data.Receipt)
			w.Element("a", markup.A("class", "button", "href", middleware.URL(ctx, "receipts", "latest", "print"), "target", "_blank"), "Print receipt")
			w.Close("section")
		}

		w.Close("div")
	})
}

func cartAction(action, verb string, productID int64, label string, disabled bool) templ.Component {
	return markup.Component(func(ctx context.Context, w *markup.Writer) {
		w.Open("form", markup.A("method", "post", "action", action, "hx-post", action, "hx-target", "#main", "class", "cart-action cart-action--"+verb))
		w.Render(ctx, CSRFField())
		w.Open("input", markup.A("type", "hidden", "name", "action", "value", verb))
		if productID > 0 {
			w.Open("input", markup.A("type", "hidden", "name", "product_id", "value", strconv.FormatInt(productID, 10)))
		}
		w.Open("button", markup.A("type", "submit", "name", "do", "value", verb).Flag("disabled", disabled))
		w.Text(label)
		w.Close("button")
		w.Close("form")
	})
}
