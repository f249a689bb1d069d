package middleware

import (
	"context"
	"net/http"
	"strings"
)

type htmxKey struct{}

// HTMXInfo is what the terminal reads from the HX-* request headers. Checkout
// forms post with hx-target="#main", so a plain htmx request wants the page
// content without the chrome.
type HTMXInfo struct {
	Request        bool
	Boosted        bool
	HistoryRestore bool
}

// HTMX records the request's htmx headers on the context.
func HTMX() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := HTMXInfo{
				Request:        headerTrue(r, "HX-Request"),
				Boosted:        headerTrue(r, "HX-Boosted"),
				HistoryRestore: headerTrue(r, "HX-History-Restore-Request"),
			}
			// Full pages and fragments share a URL.
			w.Header().Add("Vary", "HX-Request")
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), htmxKey{}, info)))
		})
	}
}

func headerTrue(r *http.Request, name string) bool {
	return strings.EqualFold(strings.TrimSpace(r.Header.Get(name)), "true")
}

// HTMXInfoFromContext returns the recorded headers, or the zero value.
func HTMXInfoFromContext(ctx context.Context) HTMXInfo {
	info, _ := ctx.Value(htmxKey{}).(HTMXInfo)
	return info
}

// IsHTMXRequest reports whether htmx issued the request.
func IsHTMXRequest(ctx context.Context) bool {
	return HTMXInfoFromContext(ctx).Request
}

// Partial reports whether only the #main content should be rendered. Boosted
// navigations and history restores replace the whole body.
func Partial(ctx context.Context) bool {
	info := HTMXInfoFromContext(ctx)
	return info.Request && !info.Boosted && !info.HistoryRestore
}

// SeeOther ends a form post by sending the browser to target. htmx requests get
// HX-Redirect so the page navigates instead of swapping target into #main.
func SeeOther(w http.ResponseWriter, r *http.Request, target string) {
	if IsHTMXRequest(r.Context()) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
