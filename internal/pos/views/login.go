package views

import (
	"context"

	"github.com/a-h/templ"

	"finitefield.org/retail-pos/internal/pos/markup"
)

// LoginData drives the sign-in page.
type LoginData struct {
	Action string
	Next   string
	Error  string
	Notice string
}

// LoginPage renders a standalone sign-in page. Staff paste the bearer token issued
// by the identity provider.
func LoginPage(data LoginData) templ.Component {
	return markup.Component(func(ctx context.Context, w *markup.Writer) {
		w.Raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		w.Raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		w.Element("title", nil, "Sign in · POS")
		w.Open("link", markup.A("rel", "stylesheet", "href", "/public/static/pos.css"))
		w.Raw(`</head><body class="pos pos--login"><main class="login">`)
		w.Element("h1", nil, "Sign in to the terminal")
		if data.Notice != "" {
			w.Element("p", markup.A("class", "flash flash--info"), data.Notice)
		}
		w.Render(ctx, Alert(data.Error))
		w.Open("form", markup.A("method", "post", "action", data.Action, "class", "login__form"))
		w.Render(ctx, CSRFField())
		if data.Next != "" {
			w.Open("input", markup.A("type", "hidden", "name", "next", "value", data.Next))
		}
		w.Open("label", nil)
		w.Text("Access token ")
		w.Open("input", markup.A("type", "password", "name", "token", "required", "required", "autocomplete", "off", "autofocus", "autofocus"))
		w.Close("label")
		w.Raw(`<button type="submit" class="primary">Sign in</button>`)
		w.Close("form")
		w.Raw(`</main></body></html>`)
	})
}
