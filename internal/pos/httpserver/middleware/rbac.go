package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"finitefield.org/retail-pos/internal/pos/observability"
	"finitefield.org/retail-pos/internal/pos/rbac"
	possession "finitefield.org/retail-pos/internal/pos/session"
)

// DeniedFunc renders the page shown to a signed-in operator who reached a
// terminal screen their role does not cover. It must write status 403.
type DeniedFunc func(w http.ResponseWriter, r *http.Request, message string)

// Guard enforces role capabilities on terminal routes.
type Guard struct {
	denied DeniedFunc
}

// NewGuard returns a guard rendering refusals with denied. A nil denied answers
// with a bare 403.
func NewGuard(denied DeniedFunc) *Guard {
	return &Guard{denied: denied}
}

// Require lets the request through only when the signed-in user holds capability.
// Refused form posts are turned into an error notice on the dashboard; refused
// page loads render the denied page.
func (g *Guard) Require(capability rbac.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if ok && rbac.HasCapability(user.Roles, capability) {
				next.ServeHTTP(w, r)
				return
			}
			g.refuse(w, r, user, capability)
		})
	}
}

func (g *Guard) refuse(w http.ResponseWriter, r *http.Request, user *User, capability rbac.Capability) {
	var roles []string
	uid := ""
	if user != nil {
		roles, uid = user.Roles, user.UID
	}
	observability.FromContext(r.Context()).Info("capability refused",
		zap.String("user_id", uid),
		zap.Strings("roles", roles),
		zap.String("capability", string(capability)),
	)
	message := rbac.DeniedMessage(roles, capability)

	if user != nil && isUnsafeMethod(r.Method) {
		AddFlash(r.Context(), possession.FlashError, message)
		SeeOther(w, r, URL(r.Context()))
		return
	}
	if g == nil || g.denied == nil || user == nil {
		http.Error(w, message, http.StatusForbidden)
		return
	}
	g.denied(w, r, message)
}
