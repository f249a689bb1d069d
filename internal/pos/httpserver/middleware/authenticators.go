package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"finitefield.org/retail-pos/internal/pos/backend"
	"finitefield.org/retail-pos/internal/pos/rbac"
)

const (
	defaultDemoStoreID   = 1
	defaultDemoStoreName = "Demo Store"
	demoCashierID        = 1
)

// DefaultAuthenticator accepts any non-empty token and is intended for local development.
func DefaultAuthenticator() Authenticator {
	return NewPassthroughAuthenticator(defaultDemoStoreID, defaultDemoStoreName)
}

// NewPassthroughAuthenticator accepts any non-empty token as an admin of the given store.
func NewPassthroughAuthenticator(storeID int64, storeName string) Authenticator {
	if storeID <= 0 {
		storeID = defaultDemoStoreID
	}
	if storeName == "" {
		storeName = defaultDemoStoreName
	}
	return &passthroughAuthenticator{storeID: storeID, storeName: storeName}
}

type passthroughAuthenticator struct {
	storeID   int64
	storeName string
}

func (p *passthroughAuthenticator) Authenticate(_ *http.Request, token string) (*User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, NewAuthError(ReasonMissingToken, ErrUnauthorized)
	}
	return &User{
		UID:       token,
		Name:      "Demo Cashier",
		Roles:     []string{string(rbac.RoleAdmin)},
		Token:     token,
		CashierID: demoCashierID,
		StoreID:   p.storeID,
		StoreName: p.storeName,
	}, nil
}

const profileEndpoint = "/auth/me"

// BackendAuthenticator resolves tokens by asking the REST backend who the bearer is.
type BackendAuthenticator struct {
	client *backend.Client
}

// NewBackendAuthenticator builds an authenticator on top of the shared backend client.
func NewBackendAuthenticator(client *backend.Client) *BackendAuthenticator {
	if client == nil {
		panic("backend client is required")
	}
	return &BackendAuthenticator{client: client}
}

type profile struct {
	ID        json.Number `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      string      `json:"role"`
	Roles     []string    `json:"roles"`
	StoreID   json.Number `json:"store_id"`
	StoreName string      `json:"store_name"`
}

type profileEnvelope struct {
	profile
	Data *profile `json:"data"`
	User *profile `json:"user"`
}

// Authenticate calls GET /auth/me with the token.
func (b *BackendAuthenticator) Authenticate(r *http.Request, token string) (*User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, NewAuthError(ReasonMissingToken, ErrUnauthorized)
	}

	var env profileEnvelope
	if err := b.client.Get(r.Context(), token, profileEndpoint, nil, &env); err != nil {
		var statusErr *backend.StatusError
		if errors.As(err, &statusErr) && (statusErr.Status == http.StatusUnauthorized || statusErr.Status == http.StatusForbidden) {
			return nil, NewAuthError(ReasonTokenInvalid, err)
		}
		return nil, NewAuthError(ReasonUnavailable, err)
	}

	p := env.profile
	switch {
	case env.Data != nil:
		p = *env.Data
	case env.User != nil:
		p = *env.User
	}

	cashierID, err := p.ID.Int64()
	if err != nil || cashierID <= 0 {
		return nil, NewAuthError(ReasonTokenInvalid, errors.New("profile has no cashier id"))
	}
	storeID, _ := p.StoreID.Int64()

	roles := append([]string(nil), p.Roles...)
	if p.Role != "" {
		roles = append(roles, p.Role)
	}

	return &User{
		UID:       strconv.FormatInt(cashierID, 10),
		Name:      strings.TrimSpace(p.Name),
		Email:     strings.TrimSpace(p.Email),
		Roles:     roleStrings(rbac.NormaliseRoles(roles)),
		Token:     token,
		CashierID: cashierID,
		StoreID:   storeID,
		StoreName: strings.TrimSpace(p.StoreName),
	}, nil
}

func roleStrings(roles rbac.Roles) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}
