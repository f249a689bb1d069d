package views

import (
	"context"
	"strconv"
	"time"

	"github.com/a-h/templ"

	"finitefield.org/retail-pos/internal/pos/httpserver/middleware"
	"finitefield.org/retail-pos/internal/pos/inventory"
	"finitefield.org/retail-pos/internal/pos/markup"
)

// StockRow is one inventory row.
type StockRow struct {
	StoreProductID int64
	Name           string
	SKU            string
	Quantity       int
	Threshold      int
	Low            bool
}

// InventoryData drives the stock and low-stock screens.
type InventoryData struct {
	Title       string
	LowOnly     bool
	Rows        []StockRow
	LowCount    int
	RefreshedAt string
	Error       string
	CanAdjust   bool
	Types       []string
}

// BuildInventory converts snapshots into display rows.
func BuildInventory(items []inventory.StockSnapshot, lowOnly, canAdjust bool, refreshedAt time.Time, errMsg string) InventoryData {
	data := InventoryData{
		Title:     "Inventory",
		LowOnly:   lowOnly,
		Error:     errMsg,
		CanAdjust: canAdjust,
	}
	if lowOnly {
		data.Title = "Low stock"
	}
	if !refreshedAt.IsZero() {
		data.RefreshedAt = refreshedAt.Format("15:04:05")
	}
	for _, item := range items {
		low := inventory.IsLowStock(item)
		if low {
			data.LowCount++
		}
		if lowOnly && !low {
			continue
		}
		data.Rows = append(data.Rows, StockRow{
			StoreProductID: item.StoreProductID,
			Name:           item.ProductName,
			SKU:            item.SKU,
			Quantity:       item.QuantityOnHand,
			Threshold:      item.LowStockThreshold,
			Low:            low,
		})
	}
	for _, t := range inventory.AdjustmentTypes() {
		data.Types = append(data.Types, string(t))
	}
	return data
}

// InventoryContent renders the stock table with optional adjustment forms.
func InventoryContent(data InventoryData) templ.Component {
	return markup.Component(func(ctx context.Context, w *markup.Writer) {
		w.Open("section", markup.A("class", "panel inventory", "id", "inventory"))
		w.Element("h2", nil, data.Title)
		if data.RefreshedAt != "" {
			w.Element("p", markup.A("class", "muted"), "Updated "+data.RefreshedAt)
		}
		w.Render(ctx, Alert(data.Error))
		if !data.LowOnly && data.LowCount > 0 {
			w.Element("p", markup.A("class", "inventory__alert"), strconv.Itoa(data.LowCount)+" products at or below their threshold.")
		}
		if len(data.Rows) == 0 {
			msg := "No stock records for this store."
			if data.LowOnly {
				msg = "Nothing is running low."
			}
			w.Element("p", markup.A("class", "inventory__empty"), msg)
			w.Close("section")
			return
		}

		w.Raw(`<table class="inventory__table"><thead><tr><th>Product</th><th>SKU</th><th>On hand</th><th>Threshold</th>`)
		if data.CanAdjust {
			w.Raw(`<th>Adjust</th>`)
		}
		w.Raw(`</tr></thead><tbody>`)
		action := middleware.URL(ctx, "inventory", "adjust")
		for _, row := range data.Rows {
			cls := "inventory__row"
			if row.Low {
				cls += " inventory__row--low"
			}
			w.Open("tr", markup.A("class", cls, "data-store-product-id", strconv.FormatInt(row.StoreProductID, 10)))
			w.Element("td", nil, row.Name)
			w.Element("td", nil, row.SKU)
			w.Element("td", markup.A("class", "inventory__qty"), strconv.Itoa(row.Quantity))
			w.Element("td", nil, strconv.Itoa(row.Threshold))
			if data.CanAdjust {
				w.Open("td", nil)
				w.Open("form", markup.A("method", "post", "action", action, "hx-post", action, "hx-target", "#main", "class", "adjust"))
				w.Render(ctx, CSRFField())
				w.Open("input", markup.A("type", "hidden", "name", "store_product_id", "value", strconv.FormatInt(row.StoreProductID, 10)))
				if data.LowOnly {
					w.Open("input", markup.A("type", "hidden", "name", "view", "value", "low"))
				}
				w.Open("select", markup.A("name", "type", "aria-label", "Adjustment type"))
				for _, t := range data.Types {
					w.Element("option", markup.A("value", t), t)
				}
				w.Close("select")
				w.Open("input", markup.A("type", "number", "name", "quantity", "step", "1", "required", "required", "aria-label", "Quantity"))
				w.Open("input", markup.A("type", "text", "name", "reason", "maxlength", strconv.Itoa(inventory.MaxReasonLength), "placeholder", "Reason", "aria-label", "Reason"))
				w.Raw(`<button type="submit">Save</button>`)
				w.Close("form")
				w.Close("td")
			}
			w.Close("tr")
		}
		w.Raw(`</tbody></table>`)
		w.Close("section")
	})
}
