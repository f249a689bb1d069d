package receipt

import (
	"strconv"
	"strings"

	"finitefield.org/retail-pos/internal/pos/transaction"
)

// Line is a formatted receipt line. Total is price times quantity.
type Line struct {
	Name      string
	Quantity  int
	UnitPrice string
	Total     string
}

// Tender is a formatted payment line.
type Tender struct {
	Method string
	Amount string
}

// View is the fully formatted content of a receipt.
type View struct {
	SaleID        int64
	TransactionID string
	StoreName     string
	Header        []string
	Timestamp     string
	CashierName   string
	PaymentMethod string
	Lines         []Line
	Tenders       []Tender
	Subtotal      string
	Discount      string
	Total         string
	AmountPaid    string
	Change        string
	RemarkHTML    string
}

// View formats result. It returns nil for a nil result. Amounts come from the result
// unchanged; only line totals are derived here.
func (r *Renderer) View(result *transaction.Result) *View {
	if result == nil {
		return nil
	}
	f := r.formatter
	storeName := strings.TrimSpace(result.StoreName)
	if storeName == "" {
		storeName = r.settings.StoreName
	}
	v := &View{
		SaleID:        result.SaleID,
		TransactionID: transactionID(result),
		StoreName:     storeName,
		Header:        splitLines(r.settings.Header),
		Timestamp:     result.Timestamp.In(r.location).Format(r.settings.TimestampLayout),
		CashierName:   result.CashierName,
		PaymentMethod: result.PaymentMethod.Label(),
		Subtotal:      f.Format(result.Subtotal),
		Discount:      f.Format(result.Discount),
		Total:         f.Format(result.Total),
		AmountPaid:    f.Format(result.AmountPaid),
		Change:        f.Format(result.Change),
		RemarkHTML:    r.remarkHTML,
	}
	for _, item := range result.Items {
		v.Lines = append(v.Lines, Line{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: f.Format(item.UnitPrice),
			Total:     f.Format(item.Total()),
		})
	}
	if len(result.Tenders) > 1 {
		for _, t := range result.Tenders {
			v.Tenders = append(v.Tenders, Tender{Method: t.Method.Label(), Amount: f.Format(t.Amount)})
		}
	}
	return v
}

func transactionID(result *transaction.Result) string {
	if result.SaleID > 0 {
		return strconv.FormatInt(result.SaleID, 10)
	}
	return result.SubmissionID
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
