package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"finitefield.org/retail-pos/internal/pos/observability"
	possession "finitefield.org/retail-pos/internal/pos/session"
)

type authContextKey string

const userContextKey authContextKey = "auth.user"

// User represents the signed-in cashier and the store the terminal serves.
type User struct {
	UID       string
	Name      string
	Email     string
	Roles     []string
	Token     string
	CashierID int64
	StoreID   int64
	StoreName string
}

// DisplayName returns the name shown in the header and on receipts.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	if u.Email != "" {
		return u.Email
	}
	return u.UID
}

// Authenticator resolves an incoming bearer token into a User.
type Authenticator interface {
	Authenticate(r *http.Request, token string) (*User, error)
}

var (
	// ErrUnauthorized is returned when authentication fails.
	ErrUnauthorized = errors.New("unauthorized")
)

// AuthError contains reason codes for failed authentication attempts.
type AuthError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return e.Reason + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError constructs an AuthError with the provided reason.
func NewAuthError(reason string, err error) error {
	return &AuthError{Reason: reason, Err: err}
}

const (
	// ReasonMissingToken indicates an auth attempt without credentials.
	ReasonMissingToken = "missing_token"
	// ReasonTokenInvalid indicates a malformed or invalid token.
	ReasonTokenInvalid = "token_invalid"
	// ReasonTokenExpired indicates an expired token which may be recoverable.
	ReasonTokenExpired = "token_expired"
	// ReasonUnavailable indicates the identity provider could not be reached.
	ReasonUnavailable = "auth_unavailable"
)

// AuthReason extracts the reason code from err, defaulting to ReasonTokenInvalid.
func AuthReason(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) && authErr.Reason != "" {
		return authErr.Reason
	}
	return ReasonTokenInvalid
}

// Auth validates incoming requests and either attaches a User to context or redirects to login.
// A user cached in the session is trusted for the token it was issued with.
func Auth(authenticator Authenticator, loginPath string) func(http.Handler) http.Handler {
	if authenticator == nil {
		authenticator = DefaultAuthenticator()
	}
	if loginPath == "" {
		loginPath = "/login"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := observability.FromContext(r.Context())
			sess, _ := SessionFromContext(r.Context())

			token := parseBearerToken(r.Header.Get("Authorization"))
			if token == "" && sess != nil {
				token = sess.Token()
			}
			if token == "" {
				token = cookieToken(r)
			}
			if strings.TrimSpace(token) == "" {
				logger.Info("auth failure", zap.String("reason", ReasonMissingToken))
				destroySession(r.Context())
				handleUnauthorized(w, r, loginPath, ReasonMissingToken)
				return
			}

			user := cachedUser(sess, token)
			if user == nil {
				authed, err := authenticator.Authenticate(r, token)
				if err != nil || authed == nil {
					if err == nil {
						err = ErrUnauthorized
					}
					reason := AuthReason(err)
					logger.Info("auth failure", zap.String("reason", reason), zap.Error(err))
					destroySession(r.Context())
					handleUnauthorized(w, r, loginPath, reason)
					return
				}
				user = authed
				storeUser(sess, user)
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			ctx = observability.With(ctx, zap.String("user_id", user.UID), zap.Int64("store_id", user.StoreID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext retrieves the authenticated user if present.
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userContextKey).(*User)
	return user, ok && user != nil
}

// WithUser attaches user to ctx.
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// SessionUser converts a User into its persisted session form.
func SessionUser(user *User) *possession.User {
	if user == nil {
		return nil
	}
	return &possession.User{
		UID:       user.UID,
		Name:      user.Name,
		Email:     user.Email,
		Roles:     append([]string(nil), user.Roles...),
		CashierID: user.CashierID,
		StoreID:   user.StoreID,
		StoreName: user.StoreName,
	}
}

func cachedUser(sess *possession.Session, token string) *User {
	if sess == nil || sess.Token() != token {
		return nil
	}
	stored := sess.User()
	if stored == nil {
		return nil
	}
	return &User{
		UID:       stored.UID,
		Name:      stored.Name,
		Email:     stored.Email,
		Roles:     append([]string(nil), stored.Roles...),
		Token:     token,
		CashierID: stored.CashierID,
		StoreID:   stored.StoreID,
		StoreName: stored.StoreName,
	}
}

func storeUser(sess *possession.Session, user *User) {
	if sess == nil {
		return
	}
	sess.SetToken(user.Token)
	sess.SetUser(SessionUser(user))
}

func parseBearerToken(header string) string {
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func cookieToken(r *http.Request) string {
	for _, name := range []string{"Authorization", "__session", "idToken"} {
		c, err := r.Cookie(name)
		if err != nil {
			continue
		}
		val := strings.TrimSpace(c.Value)
		if val == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(val), "bearer ") {
			return strings.TrimSpace(val[7:])
		}
		return val
	}
	return ""
}

func handleUnauthorized(w http.ResponseWriter, r *http.Request, loginPath, reason string) {
	if IsHTMXRequest(r.Context()) {
		if reason == ReasonTokenExpired {
			w.Header().Set("HX-Refresh", "true")
		} else {
			w.Header().Set("HX-Redirect", loginPath)
		}
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	redirectURL := loginPath
	if reason == ReasonTokenExpired || reason == ReasonUnavailable {
		if u, err := url.Parse(loginPath); err == nil {
			q := u.Query()
			if reason == ReasonTokenExpired {
				q.Set("reason", "expired")
			} else {
				q.Set("reason", "unavailable")
			}
			u.RawQuery = q.Encode()
			redirectURL = u.String()
		}
	}
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

func destroySession(ctx context.Context) {
	if sess, ok := SessionFromContext(ctx); ok {
		sess.Destroy()
	}
}
