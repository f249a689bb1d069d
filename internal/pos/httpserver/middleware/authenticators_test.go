package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finitefield.org/retail-pos/internal/pos/backend"
)

type stubFirebaseVerifier struct {
	token *firebaseauth.Token
	err   error
}

func (s *stubFirebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error) {
	return s.token, s.err
}

func TestFirebaseAuthenticatorSuccess(t *testing.T) {
	verifier := &stubFirebaseVerifier{
		token: &firebaseauth.Token{
			UID: "user-123",
			Claims: map[string]interface{}{
				"email":      "ana@example.com",
				"name":       "Ana",
				"role":       []interface{}{"cashier", "manager"},
				"cashier_id": float64(7),
				"store_id":   "3",
				"store_name": "Main St",
			},
		},
	}

	auth := NewFirebaseAuthenticator(verifier)
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	user, err := auth.Authenticate(req, "good-token")
	require.NoError(t, err)
	require.Equal(t, "user-123", user.UID)
	require.Equal(t, "Ana", user.DisplayName())
	require.Equal(t, []string{"cashier", "manager"}, user.Roles)
	require.EqualValues(t, 7, user.CashierID)
	require.EqualValues(t, 3, user.StoreID)
	require.Equal(t, "Main St", user.StoreName)
	require.Equal(t, "good-token", user.Token)
}

func TestFirebaseAuthenticatorRequiresCashierClaim(t *testing.T) {
	auth := NewFirebaseAuthenticator(&stubFirebaseVerifier{
		token: &firebaseauth.Token{UID: "u", Claims: map[string]interface{}{"role": "cashier"}},
	})
	_, err := auth.Authenticate(httptest.NewRequest(http.MethodGet, "/", nil), "tok")
	require.Error(t, err)
	require.Equal(t, ReasonTokenInvalid, AuthReason(err))
}

func TestFirebaseAuthenticatorHandlesExpiredToken(t *testing.T) {
	auth := NewFirebaseAuthenticator(&stubFirebaseVerifier{err: ErrTokenExpired})
	_, err := auth.Authenticate(httptest.NewRequest(http.MethodGet, "/", nil), "expired")

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	require.Equal(t, ReasonTokenExpired, authErr.Reason)
}

func TestFirebaseAuthenticatorRejectsMissingToken(t *testing.T) {
	auth := NewFirebaseAuthenticator(&stubFirebaseVerifier{})
	_, err := auth.Authenticate(httptest.NewRequest(http.MethodGet, "/", nil), "  ")
	require.Equal(t, ReasonMissingToken, AuthReason(err))
}

func TestPassthroughAuthenticator(t *testing.T) {
	auth := NewPassthroughAuthenticator(9, "Harbour")
	user, err := auth.Authenticate(httptest.NewRequest(http.MethodGet, "/", nil), "dev")
	require.NoError(t, err)
	require.EqualValues(t, 9, user.StoreID)
	require.Equal(t, "Harbour", user.StoreName)
	require.EqualValues(t, 1, user.CashierID)
	require.Equal(t, []string{"admin"}, user.Roles)

	_, err = auth.Authenticate(httptest.NewRequest(http.MethodGet, "/", nil), "")
	require.Equal(t, ReasonMissingToken, AuthReason(err))
}

func TestBackendAuthenticator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/me", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			_, _ = w.Write([]byte(`{"data":{"id":12,"name":"Ben","email":"ben@example.com","role":"Cashier","store_id":4,"store_name":"Harbour"}}`))
		case "Bearer boom":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Unauthenticated."}`))
		}
	}))
	t.Cleanup(srv.Close)

	client, err := backend.NewClient(srv.URL+"/api", backend.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	auth := NewBackendAuthenticator(client)

	user, err := auth.Authenticate(httptest.NewRequest(http.MethodGet, "/", nil), "good")
	require.NoError(t, err)
	require.EqualValues(t, 12, user.CashierID)
	require.Equal(t, "12", user.UID)
	require.EqualValues(t, 4, user.StoreID)
	require.Equal(t, "Harbour", user.StoreName)
	require.Equal(t, []string{"cashier"}, user.Roles)

	_, err = auth.Authenticate(httptest.NewRequest(http.MethodGet, "/", nil), "bad")
	require.Equal(t, ReasonTokenInvalid, AuthReason(err))

	_, err = auth.Authenticate(httptest.NewRequest(http.MethodGet, "/", nil), "boom")
	require.Equal(t, ReasonUnavailable, AuthReason(err))
}
