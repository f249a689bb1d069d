package views

import (
	"context"
	"strconv"

	"github.com/a-h/templ"

	"finitefield.org/retail-pos/internal/pos/httpserver/middleware"
	"finitefield.org/retail-pos/internal/pos/markup"
)

// DashboardData summarises the terminal for the signed-in cashier.
type DashboardData struct {
	CashierName   string
	StoreName     string
	CartItems     int
	CartSubtotal  string
	DrawerOpen    bool
	DrawerExpect  string
	LastSaleID    int64
	LastSaleTotal string
	ShowLowStock  bool
	LowStock      []StockRow
	Tracked       int
	LowStockError string
}

// DashboardContent renders the summary cards.
func DashboardContent(data DashboardData) templ.Component {
	return markup.Component(func(ctx context.Context, w *markup.Writer) {
		w.Open("section", markup.A("class", "dashboard"))
		w.Element("h1", nil, "Welcome, "+data.CashierName)
		if data.StoreName != "" {
			w.Element("p", markup.A("class", "muted"), data.StoreName)
		}

		w.Open("div", markup.A("class", "cards"))

		card(w, "cart", "Current sale", middleware.URL(ctx, "checkout"), func() {
			w.Element("p", markup.A("class", "card__value"), data.CartSubtotal)
			w.Element("p", nil, strconv.Itoa(data.CartItems)+" items in cart")
		})

		card(w, "drawer", "Cash drawer", middleware.URL(ctx, "drawer"), func() {
			if data.DrawerOpen {
				w.Element("p", markup.A("class", "card__value"), data.DrawerExpect)
				w.Element("p", nil, "Open")
			} else {
				w.Element("p", markup.A("class", "card__value"), "Closed")
			}
		})

		card(w, "last-sale", "Last sale", middleware.URL(ctx, "receipts", "latest"), func() {
			if data.LastSaleID == 0 {
				w.Element("p", nil, "No sales yet on this terminal.")
				return
			}
			w.Element("p", markup.A("class", "card__value"), data.LastSaleTotal)
			w.Element("p", nil, "Sale #"+strconv.FormatInt(data.LastSaleID, 10))
		})

		if data.ShowLowStock {
			card(w, "low-stock", "Low stock", middleware.URL(ctx, "inventory", "low-stock"), func() {
				w.Render(ctx, Alert(data.LowStockError))
				if data.LowStockError != "" {
					return
				}
				w.Element("p", markup.A("class", "card__value"), strconv.Itoa(len(data.LowStock)))
				if data.Tracked > 0 {
					w.Element("p", markup.A("class", "muted"), "of "+strconv.Itoa(data.Tracked)+" tracked products")
				}
				w.Open("ul", markup.A("class", "card__list"))
				for i, row := range data.LowStock {
					if i == 5 {
						break
					}
					w.Element("li", nil, row.Name+" ("+strconv.Itoa(row.Quantity)+" left)")
				}
				w.Close("ul")
			})
		}

		w.Close("div")
		w.Close("section")
	})
}

func card(w *markup.Writer, key, title, href string, body func()) {
	w.Open("article", markup.A("class", "card", "data-card", key))
	w.Open("h2", nil)
	w.Element("a", markup.A("href", href), title)
	w.Close("h2")
	body()
	w.Close("article")
}
