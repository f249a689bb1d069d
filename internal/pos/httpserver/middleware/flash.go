package middleware

import (
	"context"

	possession "finitefield.org/retail-pos/internal/pos/session"
)

// AddFlash queues a notice on the request session. It is a no-op without a session.
func AddFlash(ctx context.Context, kind possession.FlashKind, message string) {
	if sess, ok := SessionFromContext(ctx); ok {
		sess.AddFlash(kind, message)
	}
}

// PopFlashes drains queued notices from the request session.
func PopFlashes(ctx context.Context) []possession.Flash {
	if sess, ok := SessionFromContext(ctx); ok {
		return sess.PopFlashes()
	}
	return nil
}
