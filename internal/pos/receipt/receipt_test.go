package receipt

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"finitefield.org/retail-pos/internal/pos/cart"
	"finitefield.org/retail-pos/internal/pos/observability"
	"finitefield.org/retail-pos/internal/pos/payment"
	"finitefield.org/retail-pos/internal/pos/transaction"
)

func sampleResult() *transaction.Result {
	return &transaction.Result{
		SaleID:     42,
		Subtotal:   decimal.RequireFromString("130.00"),
		Discount:   decimal.RequireFromString("5.00"),
		Total:      decimal.RequireFromString("999.99"),
		AmountPaid: decimal.RequireFromString("1000.00"),
		Change:     decimal.RequireFromString("0.01"),
		Items: []cart.LineItem{
			{ProductID: 1, Name: "Pen <blue>", UnitPrice: decimal.RequireFromString("50.00"), Quantity: 2},
			{ProductID: 2, Name: "Pad", UnitPrice: decimal.RequireFromString("30.00"), Quantity: 1},
		},
		PaymentMethod: payment.MethodCash,
		Tenders:       []payment.Tender{{Method: payment.MethodCash, Amount: decimal.RequireFromString("1000.00")}},
		Timestamp:     time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
		CashierName:   "Dana",
		StoreName:     "Main Street",
	}
}

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func newRenderer(t *testing.T, opts ...Option) *Renderer {
	t.Helper()
	settings := DefaultSettings()
	settings.Remark = "Thank you! Visit **again**.\n\n<script>alert(1)</script>"
	settings.Header = "12 Main Street\nSpringfield"
	r, err := NewRenderer(settings, opts...)
	require.NoError(t, err)
	return r
}

func TestComponentRendersReceipt(t *testing.T) {
	r := newRenderer(t)
	var buf bytes.Buffer
	require.NoError(t, r.Component(sampleResult()).Render(context.Background(), &buf))
	doc := parse(t, buf.String())

	require.Equal(t, "Main Street", doc.Find(".receipt__store").Text())
	require.Equal(t, 2, doc.Find(".receipt__address").Length())
	require.Equal(t, "2024-05-01 09:30", doc.Find(".receipt__time").Text())

	lines := doc.Find(".receipt__line")
	require.Equal(t, 2, lines.Length())
	first := lines.First()
	require.Contains(t, first.Find(".receipt__name").Text(), "Pen <blue>")
	require.Equal(t, "2", first.Find(".receipt__qty").Text())
	require.Equal(t, "$100.00", first.Find(".receipt__amount").Text())

	require.Equal(t, "$130.00", doc.Find(`[data-total="subtotal"] dd`).Text())
	require.Equal(t, "$5.00", doc.Find(`[data-total="discount"] dd`).Text())
	require.Equal(t, "$999.99", doc.Find(`[data-total="total"] dd`).Text())
	require.Equal(t, "$1,000.00", doc.Find(`[data-total="paid"] dd`).Text())
	require.Equal(t, "$0.01", doc.Find(`[data-total="change"] dd`).Text())

	require.Equal(t, "Transaction #42", doc.Find(".receipt__id").Text())
	require.Equal(t, "Cashier: Dana", doc.Find(".receipt__cashier").Text())

	remark := doc.Find(".receipt__remark")
	require.Equal(t, "again", remark.Find("strong").Text())
	require.Zero(t, remark.Find("script").Length())
}

func TestComponentNilResultRendersNothing(t *testing.T) {
	r := newRenderer(t)
	var buf bytes.Buffer
	require.NoError(t, r.Component(nil).Render(context.Background(), &buf))
	require.Zero(t, buf.Len())
	require.Nil(t, r.View(nil))
}

func TestDocumentTriggersPrintDialog(t *testing.T) {
	r := newRenderer(t)
	var buf bytes.Buffer
	require.NoError(t, r.Document(sampleResult()).Render(context.Background(), &buf))
	doc := parse(t, buf.String())

	require.Equal(t, "Receipt #42", doc.Find("title").Text())
	onload, ok := doc.Find("body").Attr("onload")
	require.True(t, ok)
	require.Equal(t, "window.print()", onload)
	require.Equal(t, 1, doc.Find("section.receipt").Length())
}

type failingPrinter struct{}

func (failingPrinter) Print(context.Context, int64, []byte) error {
	return errors.New("printer offline")
}

type printRecorder struct{ outcomes []string }

func (p *printRecorder) ObserveReceiptPrint(outcome string) { p.outcomes = append(p.outcomes, outcome) }

func TestPrintIsBestEffort(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := observability.WithLogger(context.Background(), zap.New(core))
	rec := &printRecorder{}

	r := newRenderer(t, WithPrinter(failingPrinter{}), WithMetrics(rec))
	r.Print(ctx, sampleResult())
	r.Print(ctx, nil)

	require.Equal(t, []string{"failed"}, rec.outcomes)
	require.Equal(t, 1, logs.FilterMessage("receipt print failed").Len())

	var out bytes.Buffer
	r = newRenderer(t, WithPrinter(&WriterPrinter{W: &out}), WithMetrics(rec))
	r.Print(ctx, sampleResult())
	require.Contains(t, out.String(), "window.print()")
	require.Equal(t, []string{"failed", "printed"}, rec.outcomes)
}

func TestSpoolPrinterWritesFile(t *testing.T) {
	dir := t.TempDir()
	p := SpoolPrinter{Dir: dir, Clock: func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }}
	require.NoError(t, p.Print(context.Background(), 42, []byte("<html></html>")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "receipt-42-20240501T093000.000.html", entries[0].Name())
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	require.Equal(t, "<html></html>", string(data))
}

func TestParseSettings(t *testing.T) {
	s, err := ParseSettings([]byte("store_name: Corner Shop\ncurrency: EUR\nremark: \"See you soon\"\n"))
	require.NoError(t, err)
	require.Equal(t, "Corner Shop", s.StoreName)
	require.Equal(t, "EUR", s.Currency)
	require.Equal(t, "en", s.Locale)
	require.Equal(t, defaultTimestampLayout, s.TimestampLayout)

	_, err = ParseSettings([]byte("timezone: Mars/Olympus"))
	require.Error(t, err)

	s, err = LoadSettings("")
	require.NoError(t, err)
	require.Equal(t, DefaultSettings(), s)

	path := filepath.Join(t.TempDir(), "receipt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("paper_width: 58mm\n"), 0o600))
	s, err = LoadSettings(path)
	require.NoError(t, err)
	require.Equal(t, "58mm", s.PaperWidth)
}

func TestStoreNameFallsBackToSettings(t *testing.T) {
	settings := DefaultSettings()
	settings.StoreName = "Corner Shop"
	r, err := NewRenderer(settings)
	require.NoError(t, err)

	result := sampleResult()
	result.StoreName = ""
	require.Equal(t, "Corner Shop", r.View(result).StoreName)
}
