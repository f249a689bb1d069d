// Package receipt formats completed sales and hands them to a printer.
package receipt

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	"finitefield.org/retail-pos/internal/pos/markup"
	"finitefield.org/retail-pos/internal/pos/money"
	"finitefield.org/retail-pos/internal/pos/observability"
	"finitefield.org/retail-pos/internal/pos/transaction"
)

//go:embed receipt.css
var printCSS string

// PrintRecorder counts print attempts.
type PrintRecorder interface {
	ObserveReceiptPrint(outcome string)
}

// Option customises a Renderer.
type Option func(*Renderer)

// WithPrinter sets the printer used by Print.
func WithPrinter(p Printer) Option {
	return func(r *Renderer) {
		r.printer = p
	}
}

// WithMetrics sets the print recorder.
func WithMetrics(m PrintRecorder) Option {
	return func(r *Renderer) {
		r.metrics = m
	}
}

// Renderer turns transaction results into receipt components and documents.
type Renderer struct {
	settings   Settings
	formatter  money.Formatter
	location   *time.Location
	remarkHTML string
	printer    Printer
	metrics    PrintRecorder
}

// NewRenderer validates settings and pre-renders the closing remark.
func NewRenderer(settings Settings, opts ...Option) (*Renderer, error) {
	loc, err := settings.location()
	if err != nil {
		return nil, err
	}
	if settings.TimestampLayout == "" {
		settings.TimestampLayout = defaultTimestampLayout
	}
	remark, err := renderMarkdown(settings.Remark)
	if err != nil {
		return nil, err
	}
	r := &Renderer{
		settings:   settings,
		formatter:  money.NewFormatter(settings.Currency, settings.Locale),
		location:   loc,
		remarkHTML: remark,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Formatter returns the money formatter the receipts use.
func (r *Renderer) Formatter() money.Formatter {
	return r.formatter
}

// Component renders the receipt body. A nil result renders nothing.
func (r *Renderer) Component(result *transaction.Result) templ.Component {
	view := r.View(result)
	if view == nil {
		return templ.NopComponent
	}
	return body(view)
}

// Document renders a standalone printable page that opens the print dialog on load.
func (r *Renderer) Document(result *transaction.Result) templ.Component {
	view := r.View(result)
	if view == nil {
		return templ.NopComponent
	}
	width := r.settings.PaperWidth
	if width == "" {
		width = "80mm"
	}
	return markup.Component(func(ctx context.Context, w *markup.Writer) {
		w.Raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		w.Element("title", nil, "Receipt #"+view.TransactionID)
		w.Raw("<style>").Raw(printCSS).Raw("</style>")
		w.Open("style", nil).Text(":root{--paper-width:" + width + "}").Close("style")
		w.Raw(`</head><body onload="window.print()">`)
		w.Render(ctx, body(view))
		w.Raw(`<p class="no-print"><button type="button" onclick="window.close()">Close</button></p>`)
		w.Raw(`</body></html>`)
	})
}

// Print sends the receipt document to the configured printer. It is best effort:
// failures are logged and never returned.
func (r *Renderer) Print(ctx context.Context, result *transaction.Result) {
	if result == nil || r.printer == nil {
		return
	}
	logger := observability.FromContext(ctx).With(zap.Int64("sale_id", result.SaleID))
	var buf bytes.Buffer
	if err := r.Document(result).Render(ctx, &buf); err != nil {
		r.observe("failed")
		logger.Info("receipt render for print failed", zap.Error(err))
		return
	}
	if err := r.printer.Print(ctx, result.SaleID, buf.Bytes()); err != nil {
		r.observe("failed")
		logger.Info("receipt print failed", zap.Error(err))
		return
	}
	r.observe("printed")
}

func (r *Renderer) observe(outcome string) {
	if r.metrics != nil {
		r.metrics.ObserveReceiptPrint(outcome)
	}
}

func body(v *View) templ.Component {
	return markup.Component(func(ctx context.Context, w *markup.Writer) {
		w.Open("section", markup.A("class", "receipt", "data-receipt-id", v.TransactionID))

		w.Open("header", markup.A("class", "receipt__header"))
		if v.StoreName != "" {
			w.Element("h2", markup.A("class", "receipt__store"), v.StoreName)
		}
		for _, line := range v.Header {
			w.Element("p", markup.A("class", "receipt__address"), line)
		}
		w.Element("p", markup.A("class", "receipt__time"), v.Timestamp)
		w.Close("header")

		w.Raw(`<table class="receipt__lines"><thead><tr><th>Item</th><th class="receipt__qty">Qty</th><th class="receipt__amount">Total</th></tr></thead><tbody>`)
		for _, line := range v.Lines {
			w.Open("tr", markup.A("class", "receipt__line"))
			w.Open("td", markup.A("class", "receipt__name")).Text(line.Name)
			if line.Quantity > 1 {
				w.Element("small", markup.A("class", "receipt__unit"), fmt.Sprintf(" @ %s", line.UnitPrice))
			}
			w.Close("td")
			w.Element("td", markup.A("class", "receipt__qty"), strconv.Itoa(line.Quantity))
			w.Element("td", markup.A("class", "receipt__amount"), line.Total)
			w.Close("tr")
		}
		w.Raw(`</tbody></table>`)

		w.Open("dl", markup.A("class", "receipt__totals"))
		total := func(key, label, value string) {
			w.Open("div", markup.A("data-total", key))
			w.Element("dt", nil, label)
			w.Element("dd", nil, value)
			w.Close("div")
		}
		total("subtotal", "Subtotal", v.Subtotal)
		total("discount", "Discount", v.Discount)
		total("total", "Total", v.Total)
		for _, t := range v.Tenders {
			total("tender", t.Method, t.Amount)
		}
		total("paid", "Amount paid ("+v.PaymentMethod+")", v.AmountPaid)
		total("change", "Change", v.Change)
		w.Close("dl")

		w.Open("p", markup.A("class", "receipt__meta"))
		w.Element("span", markup.A("class", "receipt__id"), "Transaction #"+v.TransactionID)
		if v.CashierName != "" {
			w.Raw(" &middot; ")
			w.Element("span", markup.A("class", "receipt__cashier"), "Cashier: "+v.CashierName)
		}
		w.Close("p")

		if v.RemarkHTML != "" {
			w.Open("div", markup.A("class", "receipt__remark")).Raw(v.RemarkHTML).Close("div")
		}
		w.Close("section")
	})
}
