package middleware

import (
	"context"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Mode describes the deployment a terminal is running in. Anything other than
// production is a training till: the topbar says so on every page.
type Mode struct {
	Label    string
	Training bool
}

type modeKey struct{}

// Environment attaches the terminal Mode derived from the environment name.
func Environment(name string) func(http.Handler) http.Handler {
	mode := modeFor(name)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), modeKey{}, mode)))
		})
	}
}

// ModeFromContext returns the terminal mode, a development training till when unset.
func ModeFromContext(ctx context.Context) Mode {
	if ctx != nil {
		if mode, ok := ctx.Value(modeKey{}).(Mode); ok {
			return mode
		}
	}
	return modeFor("")
}

func modeFor(name string) Mode {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "development"
	}
	r, size := utf8.DecodeRuneInString(name)
	return Mode{
		Label:    string(unicode.ToUpper(r)) + name[size:],
		Training: name != "production" && name != "prod",
	}
}
