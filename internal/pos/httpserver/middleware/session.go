package middleware

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"finitefield.org/retail-pos/internal/pos/observability"
	possession "finitefield.org/retail-pos/internal/pos/session"
)

type sessionContextKey string

const requestSessionKey sessionContextKey = "pos.session"

// SessionStore abstracts the session manager for middleware integration.
type SessionStore interface {
	Load(*http.Request) (*possession.Session, error)
	New() *possession.Session
	Save(http.ResponseWriter, *possession.Session) error
	Destroy(http.ResponseWriter)
}

// Session attaches the decoded session to the request context and persists
// changes back to the client cookie before the response header is written.
func Session(store SessionStore) func(http.Handler) http.Handler {
	if store == nil {
		panic("session store is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := observability.FromContext(r.Context())
			sess, err := store.Load(r)
			if errors.Is(err, possession.ErrExpired) {
				logger.Info("session expired: resetting")
				store.Destroy(w)
				sess = store.New()
			} else if err != nil || sess == nil {
				if err != nil {
					logger.Warn("session load failed", zap.Error(err))
				}
				sess = store.New()
			}

			sw := &savingWriter{ResponseWriter: w, save: func() {
				if err := store.Save(w, sess); err != nil {
					logger.Error("session save failed", zap.Error(err))
				}
			}}

			ctx := context.WithValue(r.Context(), requestSessionKey, sess)
			next.ServeHTTP(sw, r.WithContext(ctx))
			sw.flush()
		})
	}
}

// SessionFromContext retrieves the session attached to this request.
func SessionFromContext(ctx context.Context) (*possession.Session, bool) {
	if ctx == nil {
		return nil, false
	}
	sess, ok := ctx.Value(requestSessionKey).(*possession.Session)
	return sess, ok && sess != nil
}

// WithSession attaches sess to ctx.
func WithSession(ctx context.Context, sess *possession.Session) context.Context {
	return context.WithValue(ctx, requestSessionKey, sess)
}

// savingWriter writes the session cookie just before the first header flush.
type savingWriter struct {
	http.ResponseWriter
	save  func()
	saved bool
}

func (w *savingWriter) flush() {
	if w.saved {
		return
	}
	w.saved = true
	w.save()
}

func (w *savingWriter) WriteHeader(status int) {
	w.flush()
	w.ResponseWriter.WriteHeader(status)
}

func (w *savingWriter) Write(b []byte) (int, error) {
	w.flush()
	return w.ResponseWriter.Write(b)
}

func (w *savingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// NoStore keeps terminal pages out of the browser cache so a shared till never
// shows the previous cashier's cart on back navigation.
func NoStore() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Cache-Control", "no-store, max-age=0")
			h.Set("Pragma", "no-cache")
			next.ServeHTTP(w, r)
		})
	}
}
