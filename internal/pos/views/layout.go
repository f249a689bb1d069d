// Package views renders the terminal pages. Builders in this package turn domain
// values into display-ready data; components only lay that data out.
package views

import (
	"context"

	"github.com/a-h/templ"

	"finitefield.org/retail-pos/internal/pos/httpserver/middleware"
	"finitefield.org/retail-pos/internal/pos/markup"
	"finitefield.org/retail-pos/internal/pos/rbac"
	possession "finitefield.org/retail-pos/internal/pos/session"
)

// NavItem is one entry of the top navigation.
type NavItem struct {
	Label      string
	Path       string
	Capability rbac.Capability
}

var navItems = []NavItem{
	{Label: "Dashboard", Path: "", Capability: rbac.CapDashboardView},
	{Label: "Checkout", Path: "checkout", Capability: rbac.CapCheckout},
	{Label: "Last receipt", Path: "receipts/latest", Capability: rbac.CapReceiptReprint},
	{Label: "Cash drawer", Path: "drawer", Capability: rbac.CapDrawerOperate},
	{Label: "Inventory", Path: "inventory", Capability: rbac.CapInventoryView},
	{Label: "Low stock", Path: "inventory/low-stock", Capability: rbac.CapLowStockAlerts},
}

// Navigation returns the items roles may see, with paths resolved against base.
func Navigation(ctx context.Context, roles []string) []NavItem {
	out := make([]NavItem, 0, len(navItems))
	for _, item := range navItems {
		if !rbac.HasCapability(roles, item.Capability) {
			continue
		}
		item.Path = middleware.URL(ctx, item.Path)
		out = append(out, item)
	}
	return out
}

// Page wraps content in the terminal chrome. Partial htmx requests get the content only.
func Page(title string, flashes []possession.Flash, content templ.Component) templ.Component {
	return markup.Component(func(ctx context.Context, w *markup.Writer) {
		if middleware.Partial(ctx) {
			w.Render(ctx, Flashes(flashes))
			w.Render(ctx, content)
			return
		}

		user, _ := middleware.UserFromContext(ctx)
		csrf := middleware.CSRFTokenFromContext(ctx)

		w.Raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		w.Raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		if csrf != "" {
			w.Open("meta", markup.A("name", "csrf-token", "content", csrf))
		}
		w.Element("title", nil, title+" · POS")
		w.Open("link", markup.A("rel", "stylesheet", "href", "/public/static/pos.css"))
		w.Raw(`<script src="https://unpkg.com/htmx.org@1.9.12" defer></script>`)
		w.Raw(`</head>`)

		body := markup.A("class", "pos")
		if csrf != "" {
			body = append(body, markup.Attr{Name: "hx-headers", Value: `{"X-CSRF-Token":"` + csrf + `"}`})
		}
		w.Open("body", body)

		w.Open("header", markup.A("class", "topbar"))
		w.Element("span", markup.A("class", "topbar__brand"), "POS")
		if mode := middleware.ModeFromContext(ctx); mode.Training {
			w.Element("span", markup.A("class", "topbar__env", "title", "Training till"), mode.Label)
		}
		if user != nil {
			w.Open("nav", markup.A("class", "topbar__nav"))
			for _, item := range Navigation(ctx, user.Roles) {
				attrs := markup.A("href", item.Path)
				if middleware.IsCurrent(ctx, item.Path) {
					attrs = append(attrs, markup.Attr{Name: "aria-current", Value: "page"})
				}
				w.Element("a", attrs, item.Label)
			}
			w.Close("nav")

			w.Open("div", markup.A("class", "topbar__user"))
			w.Element("span", markup.A("class", "topbar__cashier"), user.DisplayName())
			if user.StoreName != "" {
				w.Element("span", markup.A("class", "topbar__store"), user.StoreName)
			}
			w.Open("form", markup.A("method", "post", "action", middleware.URL(ctx, "logout")))
			w.Render(ctx, CSRFField())
			w.Raw(`<button type="submit" class="link">Sign out</button>`)
			w.Close("form")
			w.Close("div")
		}
		w.Close("header")

		w.Open("main", markup.A("id", "main", "class", "content"))
		w.Render(ctx, Flashes(flashes))
		w.Render(ctx, content)
		w.Close("main")
		w.Raw(`</body></html>`)
	})
}

// Flashes renders queued notices.
func Flashes(flashes []possession.Flash) templ.Component {
	return markup.Component(func(ctx context.Context, w *markup.Writer) {
		if len(flashes) == 0 {
			return
		}
		w.Open("div", markup.A("class", "flashes", "role", "status"))
		for _, f := range flashes {
			w.Element("p", markup.A("class", "flash flash--"+string(f.Kind)), f.Message)
		}
		w.Close("div")
	})
}

// CSRFField renders the hidden token input for forms.
func CSRFField() templ.Component {
	return markup.Component(func(ctx context.Context, w *markup.Writer) {
		token := middleware.CSRFTokenFromContext(ctx)
		if token == "" {
			return
		}
		w.Open("input", markup.A("type", "hidden", "name", middleware.CSRFFieldName, "value", token))
	})
}

// ForbiddenContent explains that the signed-in role cannot use the requested screen.
func ForbiddenContent(message string) templ.Component {
	return markup.Component(func(ctx context.Context, w *markup.Writer) {
		w.Open("section", markup.A("class", "forbidden"))
		w.Element("h1", nil, "Not allowed")
		w.Element("p", markup.A("class", "forbidden__message"), message)
		w.Element("a", markup.A("href", middleware.URL(ctx)), "Back to the dashboard")
		w.Close("section")
	})
}

// Alert renders an inline error message.
func Alert(message string) templ.Component {
	return markup.Component(func(ctx context.Context, w *markup.Writer) {
		if message == "" {
			return
		}
		w.Element("p", markup.A("class", "alert", "role", "alert"), message)
	})
}
