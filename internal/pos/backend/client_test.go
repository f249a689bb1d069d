package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finitefield.org/retail-pos/internal/pos/failure"
)

func TestClientSendsBearerAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/products/3/lookup", r.URL.Path)
		assert.Equal(t, "pen & ink", r.URL.Query().Get("query"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Pen"}`))
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL+"/api", WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	var out struct {
		Name string `json:"name"`
	}
	err = client.Get(context.Background(), "secret", "/products/3/lookup", url.Values{"query": {"pen & ink"}}, &out)
	require.NoError(t, err)
	require.Equal(t, "Pen", out.Name)
}

func TestClientEncodesJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "abc", r.Header.Get("Idempotency-Key"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "<b>", body["reason"])
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	err = client.Send(context.Background(), http.MethodPut, "", "inventory/manage-stock/1", map[string]string{"reason": "<b>"}, nil, WithHeader("Idempotency-Key", "abc"))
	require.NoError(t, err)
}

func TestClientClassifiesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/reject":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"Insufficient stock for Pen"}`))
		case "/fields":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"errors":{"quantity":["The quantity must be positive."]}}`))
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/garbage":
			_, _ = w.Write([]byte(`{not json`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	ctx := context.Background()
	var out map[string]any

	err = client.Get(ctx, "", "/reject", nil, &out)
	require.ErrorIs(t, err, failure.ErrBackendRejection)
	require.Equal(t, "Insufficient stock for Pen", failure.UserMessage(err))

	err = client.Get(ctx, "", "/fields", nil, &out)
	require.Equal(t, "The quantity must be positive.", failure.UserMessage(err))

	err = client.Get(ctx, "", "/missing", nil, &out)
	require.True(t, IsNotFound(err))
	require.Equal(t, failure.KindNetwork, failure.KindOf(err))

	err = client.Get(ctx, "", "/garbage", nil, &out)
	require.ErrorIs(t, err, failure.ErrNetwork)

	err = client.Get(ctx, "", "/down", nil, &out)
	require.ErrorIs(t, err, failure.ErrNetwork)
}

func TestClientTransportFailureIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	client, err := NewClient(base, WithHTTPClient(&http.Client{Timeout: time.Second}))
	require.NoError(t, err)
	err = client.Get(context.Background(), "", "/anything", nil, nil)
	require.ErrorIs(t, err, failure.ErrNetwork)
	require.Equal(t, failure.GenericNetworkMessage, failure.UserMessage(err))
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL,
		WithHTTPClient(srv.Client()),
		WithBreaker(BreakerSettings{Failures: 2, Cooldown: time.Minute}),
	)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		err := client.Get(context.Background(), "", "/status", nil, nil)
		require.Equal(t, failure.KindNetwork, failure.KindOf(err))
	}
	require.Equal(t, int32(2), hits.Load())
}

func TestNewClientValidatesBaseURL(t *testing.T) {
	_, err := NewClient("")
	require.Error(t, err)
	_, err = NewClient("not-a-url")
	require.Error(t, err)
}
