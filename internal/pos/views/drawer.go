package views

import (
	"context"
	"strconv"

	"github.com/a-h/templ"

	"finitefield.org/retail-pos/internal/pos/drawer"
	"finitefield.org/retail-pos/internal/pos/httpserver/middleware"
	"finitefield.org/retail-pos/internal/pos/markup"
	"finitefield.org/retail-pos/internal/pos/money"
)

const drawerTimeLayout = "2006-01-02 15:04"

// MovementRow is one drawer ledger entry.
type MovementRow struct {
	Type        string
	Amount      string
	Description string
	At          string
}

// CloseSummary is the last drawer closing.
type CloseSummary struct {
	Expected       string
	Counted        string
	Variance       string
	Classification string
	Sales          int
	ClosedAt       string
}

// DrawerData drives the cash drawer screen.
type DrawerData struct {
	Open         bool
	OpenedAt     string
	OpeningFloat string
	Expected     string
	Sales        int
	Movements    []MovementRow
	LastClose    *CloseSummary
}

// BuildDrawer formats a drawer status.
func BuildDrawer(f money.Formatter, st drawer.Status) DrawerData {
	data := DrawerData{
		Open:  st.Open,
		Sales: st.Sales,
	}
	if st.Open {
		data.OpenedAt = st.OpenedAt.Format(drawerTimeLayout)
		data.OpeningFloat = f.Format(st.OpeningFloat)
		data.Expected = f.Format(st.Expected)
	}
	for _, m := range st.Movements {
		row := MovementRow{
			Type:        string(m.Type),
			Amount:      f.Format(m.Amount),
			Description: m.Description,
			At:          m.At.Format("15:04"),
		}
		if m.Type == drawer.MovementSale && m.Reference > 0 {
			row.Description = "Sale #" + strconv.FormatInt(m.Reference, 10)
		}
		data.Movements = append(data.Movements, row)
	}
	if st.LastClose != nil {
		data.LastClose = &CloseSummary{
			Expected:       f.Format(st.LastClose.Expected),
			Counted:        f.Format(st.LastClose.Counted),
			Variance:       f.Format(st.LastClose.Variance),
			Classification: string(st.LastClose.Classification),
			Sales:          st.LastClose.Sales,
			ClosedAt:       st.LastClose.ClosedAt.Format(drawerTimeLayout),
		}
	}
	return data
}

// DrawerContent renders the drawer controls and ledger.
func DrawerContent(data DrawerData) templ.Component {
	return markup.Component(func(ctx context.Context, w *markup.Writer) {
		w.Open("section", markup.A("class", "panel drawer", "id", "drawer"))
		w.Element("h2", nil, "Cash drawer")

		if !data.Open {
			w.Element("p", markup.A("class", "drawer__state"), "The drawer is closed.")
			w.Render(ctx, drawerForm(ctx, "open", "Opening float", "float", "Open drawer"))
		} else {
			w.Open("dl", markup.A("class", "drawer__status"))
			pair(w, "Opened", data.OpenedAt)
			pair(w, "Opening float", data.OpeningFloat)
			pair(w, "Sales", strconv.Itoa(data.Sales))
			pair(w, "Expected in drawer", data.Expected)
			w.Close("dl")

			action := middleware.URL(ctx, "drawer", "move")
			w.Open("form", markup.A("method", "post", "action", action, "hx-post", action, "hx-target", "#main", "class", "drawer__form"))
			w.Render(ctx, CSRFField())
			w.Raw(`<select name="type" aria-label="Movement"><option value="cash_in">Cash in</option><option value="cash_out">Cash out</option></select>`)
			w.Open("input", markup.A("type", "text", "inputmode", "decimal", "name", "amount", "required", "required", "aria-label", "Amount"))
			w.Open("input", markup.A("type", "text", "name", "description", "placeholder", "Description", "aria-label", "Description"))
			w.Raw(`<button type="submit">Record</button>`)
			w.Close("form")

			if len(data.Movements) > 0 {
				w.Raw(`<table class="drawer__ledger"><thead><tr><th>Time</th><th>Type</th><th>Amount</th><th>Note</th></tr></thead><tbody>`)
				for _, m := range data.Movements {
					w.Open("tr", markup.A("class", "drawer__movement drawer__movement--"+m.Type))
					w.Element("td", nil, m.At)
					w.Element("td", nil, m.Type)
					w.Element("td", nil, m.Amount)
					w.Element("td", nil, m.Description)
					w.Close("tr")
				}
				w.Raw(`</tbody></table>`)
			}

			w.Render(ctx, drawerForm(ctx, "close", "Counted cash", "counted", "Close drawer"))
		}

		if data.LastClose != nil {
			lc := data.LastClose
			w.Open("div", markup.A("class", "drawer__summary drawer__summary--"+lc.Classification))
			w.Element("h3", nil, "Last closing")
			w.Open("dl", nil)
			pair(w, "Closed", lc.ClosedAt)
			pair(w, "Sales", strconv.Itoa(lc.Sales))
			pair(w, "Expected", lc.Expected)
			pair(w, "Counted", lc.Counted)
			pair(w, "Variance", lc.Variance+" ("+lc.Classification+")")
			w.Close("dl")
			w.Close("div")
		}
		w.Close("section")
	})
}

func drawerForm(ctx context.Context, verb, label, field, button string) templ.Component {
	action := middleware.URL(ctx, "drawer", verb)
	return markup.Component(func(ctx context.Context, w *markup.Writer) {
		w.Open("form", markup.A("method", "post", "action", action, "hx-post", action, "hx-target", "#main", "class", "drawer__form drawer__form--"+verb))
		w.Render(ctx, CSRFField())
		w.Open("label", nil)
		w.Text(label + " ")
		w.Open("input", markup.A("type", "text", "inputmode", "decimal", "name", field, "required", "required"))
		w.Close("label")
		w.Element("button", markup.A("type", "submit"), button)
		w.Close("form")
	})
}

func pair(w *markup.Writer, term, value string) {
	w.Open("div", nil)
	w.Element("dt", nil, term)
	w.Element("dd", nil, value)
	w.Close("div")
}
