package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"finitefield.org/retail-pos/internal/pos/observability"
	possession "finitefield.org/retail-pos/internal/pos/session"
)

// CSRFFieldName is the hidden form field carrying the token.
const CSRFFieldName = "csrf_token"

const (
	defaultCSRFHeader = "X-CSRF-Token"
	csrfExpiredNotice = "That form had expired, so nothing was changed. Please try again."
)

type csrfKey struct{}

// CSRFConfig names where posts may carry the token.
type CSRFConfig struct {
	HeaderName string
	FieldName  string
}

// CSRF binds a token to the terminal session and requires it on every post.
// The token travels inside the encrypted session cookie, so a page must have
// been rendered for this session before it can post. Must run after Session.
func CSRF(cfg CSRFConfig) func(http.Handler) http.Handler {
	header := strings.TrimSpace(cfg.HeaderName)
	if header == "" {
		header = defaultCSRFHeader
	}
	field := strings.TrimSpace(cfg.FieldName)
	if field == "" {
		field = CSRFFieldName
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := SessionFromContext(r.Context())
			if !ok {
				http.Error(w, "session unavailable", http.StatusInternalServerError)
				return
			}
			if isUnsafeMethod(r.Method) && !csrfMatches(sess.CSRFToken(), submittedToken(r, header, field)) {
				rejectCSRF(w, r)
				return
			}
			token, err := sess.EnsureCSRFToken()
			if err != nil {
				observability.FromContext(r.Context()).Error("csrf token generation failed", zap.Error(err))
				http.Error(w, "csrf token error", http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfKey{}, token)))
		})
	}
}

// CSRFTokenFromContext returns the session token for embedding in forms.
func CSRFTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(csrfKey{}).(string)
	return token
}

func submittedToken(r *http.Request, header, field string) string {
	if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
		return v
	}
	return strings.TrimSpace(r.PostFormValue(field))
}

func csrfMatches(expected, submitted string) bool {
	return expected != "" && submitted != "" && expected == submitted
}

// rejectCSRF leaves a notice on the session and sends the operator back to the
// page they posted from.
func rejectCSRF(w http.ResponseWriter, r *http.Request) {
	observability.FromContext(r.Context()).Warn("csrf token mismatch",
		zap.String("path", r.URL.Path),
		zap.Bool("htmx", IsHTMXRequest(r.Context())),
	)
	AddFlash(r.Context(), possession.FlashError, csrfExpiredNotice)
	SeeOther(w, r, ReturnPath(r))
}

func isUnsafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	default:
		return true
	}
}
