package httpserver

import (
	"errors"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	custommw "finitefield.org/retail-pos/internal/pos/httpserver/middleware"
	"finitefield.org/retail-pos/internal/pos/observability"
	"finitefield.org/retail-pos/internal/pos/terminal"
	"finitefield.org/retail-pos/internal/pos/views"
)

type authHandlers struct {
	authenticator custommw.Authenticator
	terminals     *terminal.Registry
	basePath      string
	loginPath     string
}

func newAuthHandlers(authenticator custommw.Authenticator, terminals *terminal.Registry, basePath, loginPath string) *authHandlers {
	if authenticator == nil {
		panic("auth: authenticator is required")
	}
	if strings.TrimSpace(basePath) == "" {
		basePath = "/"
	}
	if strings.TrimSpace(loginPath) == "" {
		loginPath = resolveLoginPath(basePath, "")
	}
	return &authHandlers{
		authenticator: authenticator,
		terminals:     terminals,
		basePath:      basePath,
		loginPath:     loginPath,
	}
}

func (h *authHandlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	if h.isAuthenticated(r) {
		http.Redirect(w, r, h.redirectTarget(r.URL.Query().Get("next")), http.StatusFound)
		return
	}
	h.renderLoginPage(w, r, h.loginData(r, "", r.URL.Query().Get("next")), http.StatusOK)
}

func (h *authHandlers) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	logger := observability.FromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		h.renderLoginPage(w, r, h.loginData(r, "The form could not be read. Please try again.", ""), http.StatusBadRequest)
		return
	}

	next := r.PostFormValue("next")
	token := strings.TrimSpace(r.PostFormValue("token"))
	if token == "" {
		h.renderLoginPage(w, r, h.loginData(r, "Enter your access token.", next), http.StatusBadRequest)
		return
	}

	user, err := h.authenticator.Authenticate(r, token)
	if err != nil || user == nil {
		logger.Info("login failed", zap.String("reason", custommw.AuthReason(err)), zap.Error(err))
		status := http.StatusUnauthorized
		if custommw.AuthReason(err) == custommw.ReasonUnavailable {
			status = http.StatusServiceUnavailable
		}
		h.renderLoginPage(w, r, h.loginData(r, h.errorMessageFor(err), next), status)
		return
	}
	if user.Token == "" {
		user.Token = token
	}

	if sess, ok := custommw.SessionFromContext(r.Context()); ok && sess != nil {
		sess.SetToken(user.Token)
		sess.SetUser(custommw.SessionUser(user))
	}
	logger.Info("cashier signed in",
		zap.String("user_id", user.UID),
		zap.Int64("cashier_id", user.CashierID),
		zap.Int64("store_id", user.StoreID),
	)

	custommw.SeeOther(w, r, h.redirectTarget(next))
}

// Logout drops the terminal state held for the session and clears the session.
func (h *authHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := custommw.SessionFromContext(r.Context()); ok && sess != nil {
		if h.terminals != nil {
			h.terminals.Release(sess.ID())
		}
		sess.Destroy()
	}

	custommw.SeeOther(w, r, h.loginURLWithParams(map[string]string{
		"status": "logged_out",
	}))
}

func (h *authHandlers) loginData(r *http.Request, errorText, next string) views.LoginData {
	q := url.Values{}
	if r.URL != nil {
		q = r.URL.Query()
	}
	notice := ""
	if errorText == "" {
		notice = h.messageForQuery(q)
	}
	return views.LoginData{
		Action: h.loginPath,
		Next:   h.normalizeNext(next),
		Error:  errorText,
		Notice: notice,
	}
}

func (h *authHandlers) renderLoginPage(w http.ResponseWriter, r *http.Request, data views.LoginData, status int) {
	templ.Handler(views.LoginPage(data), templ.WithStatus(status)).ServeHTTP(w, r)
}

func (h *authHandlers) isAuthenticated(r *http.Request) bool {
	sess, ok := custommw.SessionFromContext(r.Context())
	if !ok || sess == nil {
		return false
	}
	user := sess.User()
	return user != nil && strings.TrimSpace(user.UID) != "" && sess.Token() != ""
}

func (h *authHandlers) errorMessageFor(err error) string {
	if err == nil {
		return "Sign-in failed. Please try again."
	}
	var authErr *custommw.AuthError
	if errors.As(err, &authErr) {
		switch authErr.Reason {
		case custommw.ReasonTokenExpired:
			return "Your access token has expired. Request a new one and sign in again."
		case custommw.ReasonMissingToken:
			return "Enter your access token."
		case custommw.ReasonUnavailable:
			return "The sign-in service is unavailable. Please try again shortly."
		default:
			return "That access token was not accepted."
		}
	}
	return "That access token was not accepted."
}

func (h *authHandlers) messageForQuery(q url.Values) string {
	if q.Get("status") == "logged_out" {
		return "You have signed out."
	}
	switch q.Get("reason") {
	case custommw.ReasonTokenExpired, "expired":
		return "Your session expired. Please sign in again."
	case "unavailable":
		return "The sign-in service could not be reached. Please sign in again."
	default:
		return ""
	}
}

func (h *authHandlers) redirectTarget(raw string) string {
	if next := h.normalizeNext(raw); next != "" {
		return next
	}
	return h.basePath
}

func (h *authHandlers) loginURLWithParams(params map[string]string) string {
	parsed, err := url.Parse(h.loginPath)
	if err != nil {
		return h.loginPath
	}
	q := parsed.Query()
	for key, val := range params {
		if strings.TrimSpace(val) == "" {
			continue
		}
		q.Set(key, val)
	}
	parsed.RawQuery = q.Encode()
	return parsed.String()
}

// normalizeNext keeps only same-origin paths under the base path that do not
// point back at the login page.
func (h *authHandlers) normalizeNext(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme != "" || parsed.Host != "" {
		return ""
	}
	unescaped, err := url.PathUnescape(parsed.Path)
	if err != nil || strings.Contains(unescaped, "\\") {
		return ""
	}
	cleaned := path.Clean("/" + unescaped)
	if strings.HasPrefix(cleaned, "//") || !hasSafePrefix(cleaned, h.basePath) {
		return ""
	}
	if cleaned == path.Clean(h.loginPath) {
		return ""
	}
	if parsed.RawQuery != "" {
		cleaned += "?" + parsed.RawQuery
	}
	return cleaned
}

func hasSafePrefix(pathValue, base string) bool {
	if base == "/" {
		return strings.HasPrefix(pathValue, "/")
	}
	if !strings.HasPrefix(pathValue, base) {
		return false
	}
	if len(pathValue) == len(base) {
		return true
	}
	return pathValue[len(base)] == '/'
}
