package money

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter renders amounts for a currency and display locale.
type Formatter struct {
	currency string
	printer  *message.Printer
}

// NewFormatter builds a Formatter. Unknown locales fall back to English.
func NewFormatter(currency, locale string) Formatter {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil || strings.TrimSpace(locale) == "" {
		tag = language.English
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "USD"
	}
	return Formatter{currency: currency, printer: message.NewPrinter(tag)}
}

// Currency returns the ISO code the formatter was built with.
func (f Formatter) Currency() string {
	return f.currency
}

// Format renders d with the currency symbol, grouping and two fraction digits.
func (f Formatter) Format(d decimal.Decimal) string {
	printer := f.printer
	if printer == nil {
		printer = message.NewPrinter(language.English)
	}
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	digits := printer.Sprint(number.Decimal(Round(d).InexactFloat64(), number.Scale(Places)))
	return sign + symbol(f.currency) + digits
}

func symbol(code string) string {
	switch code {
	case "USD":
		return "$"
	case "EUR":
		return "€"
	case "GBP":
		return "£"
	case "JPY":
		return "¥"
	case "PHP":
		return "₱"
	default:
		return code + " "
	}
}
