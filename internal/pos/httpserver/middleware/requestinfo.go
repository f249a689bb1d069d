package middleware

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"
)

type mountKey struct{}

// mount is where the terminal is served and which page is being requested.
type mount struct {
	base    string
	current string
}

// RequestInfoMiddleware records the terminal's base path and the requested
// path so handlers and views can build links without knowing the mount point.
func RequestInfoMiddleware(basePath string) func(http.Handler) http.Handler {
	base := path.Clean("/" + strings.TrimSpace(basePath))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := mount{base: base, current: path.Clean("/" + r.URL.Path)}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), mountKey{}, m)))
		})
	}
}

func mountFromContext(ctx context.Context) mount {
	m, ok := ctx.Value(mountKey{}).(mount)
	if !ok || m.base == "" {
		return mount{base: "/"}
	}
	return m
}

// URL joins elem onto the terminal's base path.
func URL(ctx context.Context, elem ...string) string {
	return path.Join(append([]string{mountFromContext(ctx).base}, elem...)...)
}

// IsCurrent reports whether target is the page being requested.
func IsCurrent(ctx context.Context, target string) bool {
	current := mountFromContext(ctx).current
	return current != "" && current == path.Clean(target)
}

// ReturnPath is where a rejected form post sends the operator back to: the
// referring terminal page when it is on this host and under the base path,
// otherwise the dashboard.
func ReturnPath(r *http.Request) string {
	base := mountFromContext(r.Context()).base
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" || (ref.Host != "" && ref.Host != r.Host) {
		return base
	}
	p := path.Clean(ref.Path)
	if base != "/" && p != base && !strings.HasPrefix(p, base+"/") {
		return base
	}
	if ref.RawQuery != "" {
		p += "?" + ref.RawQuery
	}
	return p
}
