package views

import (
	"context"

	"github.com/a-h/templ"

	"finitefield.org/retail-pos/internal/pos/httpserver/middleware"
	"finitefield.org/retail-pos/internal/pos/markup"
)

// ReceiptContent shows the last receipt with a print link, or a placeholder.
func ReceiptContent(receipt templ.Component, hasSale bool) templ.Component {
	return markup.Component(func(ctx context.Context, w *markup.Writer) {
		w.Open("section", markup.A("class", "panel receipt-preview"))
		w.Element("h2", nil, "Last receipt")
		if !hasSale {
			w.Element("p", markup.A("class", "muted"), "No sale has been completed on this terminal yet.")
			w.Close("section")
			return
		}
		w.Render(ctx, receipt)
		w.Element("a", markup.A("class", "button", "href", middleware.URL(ctx, "receipts", "latest", "print"), "target", "_blank"), "Print receipt")
		w.Close("section")
	})
}
