package testutil

import (
	"bytes"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"finitefield.org/retail-pos/internal/pos/httpserver/middleware"
)

// Browser drives the terminal like a till's browser: it keeps the session
// cookie, stops at redirects and posts with the CSRF token of the last page it
// loaded.
type Browser struct {
	*http.Client

	t    testing.TB
	csrf string
}

// NewBrowser returns a browser with an empty cookie jar.
func NewBrowser(t testing.TB) *Browser {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &Browser{
		Client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		t: t,
	}
}

// Fetch loads target and returns the status and body.
func (b *Browser) Fetch(target string) (int, []byte) {
	b.t.Helper()

	resp, err := b.Client.Get(target)
	if err != nil {
		b.t.Fatalf("GET %s: %v", target, err)
	}
	return resp.StatusCode, b.read(resp)
}

// Submit posts form to target as a terminal form would, with the session's CSRF
// token. The returned response body has already been read and can be read again.
func (b *Browser) Submit(target string, form url.Values, headers map[string]string) *http.Response {
	b.t.Helper()

	if b.csrf == "" {
		b.t.Fatalf("POST %s: no terminal page has been loaded yet", target)
	}
	form.Set(middleware.CSRFFieldName, b.csrf)
	req, err := http.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		b.t.Fatalf("POST %s: %v", target, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := b.Do(req)
	if err != nil {
		b.t.Fatalf("POST %s: %v", target, err)
	}
	body := b.read(resp)
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp
}

// CSRFToken is the token of the last page loaded.
func (b *Browser) CSRFToken() string {
	return b.csrf
}

func (b *Browser) read(resp *http.Response) []byte {
	b.t.Helper()
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		b.t.Fatalf("read body: %v", err)
	}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") && len(body) > 0 {
		if token := ParsePage(b.t, body).CSRFToken(); token != "" {
			b.csrf = token
		}
	}
	return body
}

// Page is a parsed terminal page.
type Page struct {
	*goquery.Document
}

// ParsePage parses an HTML page or htmx fragment.
func ParsePage(t testing.TB, body []byte) *Page {
	t.Helper()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return &Page{Document: doc}
}

// Text returns the trimmed text of the elements matching selector.
func (p *Page) Text(selector string) string {
	return strings.TrimSpace(p.Find(selector).Text())
}

// Count returns how many elements match selector.
func (p *Page) Count(selector string) int {
	return p.Find(selector).Length()
}

// Flash returns the notice of kind ("success", "error" or "info") shown on the page.
func (p *Page) Flash(kind string) string {
	return p.Text(".flash--" + kind)
}

// CSRFToken reads the token from the page's meta tag or, on pages without the
// terminal chrome, from the first form.
func (p *Page) CSRFToken() string {
	if token, ok := p.Find(`meta[name="csrf-token"]`).Attr("content"); ok && token != "" {
		return token
	}
	token, _ := p.Find(`input[name="` + middleware.CSRFFieldName + `"]`).First().Attr("value")
	return token
}
