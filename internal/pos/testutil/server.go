package testutil

import (
	"net/http/httptest"
	"testing"
	"time"

	"finitefield.org/retail-pos/internal/pos/catalog"
	"finitefield.org/retail-pos/internal/pos/httpserver"
	"finitefield.org/retail-pos/internal/pos/httpserver/middleware"
	"finitefield.org/retail-pos/internal/pos/inventory"
	"finitefield.org/retail-pos/internal/pos/receipt"
	possession "finitefield.org/retail-pos/internal/pos/session"
	"finitefield.org/retail-pos/internal/pos/transaction"
)

// DemoStoreID is the store the default test authenticator signs cashiers into.
const DemoStoreID int64 = 1

// ServerOption customises the HTTP server configuration for tests.
type ServerOption func(*httpserver.Config)

// WithAuthenticator overrides the authenticator used by the terminal server.
func WithAuthenticator(auth middleware.Authenticator) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Authenticator = auth
	}
}

// WithBasePath sets a custom base path for the terminal routes.
func WithBasePath(path string) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.BasePath = path
	}
}

// WithCatalogService wires a custom product lookup backend.
func WithCatalogService(service catalog.Service) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.CatalogService = service
	}
}

// WithInventoryService wires a custom stock backend.
func WithInventoryService(service inventory.Service) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.InventoryService = service
	}
}

// WithGateway wires a custom transaction gateway.
func WithGateway(gateway transaction.Gateway) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Gateway = gateway
	}
}

// WithReceipts overrides the receipt renderer.
func WithReceipts(renderer *receipt.Renderer) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Receipts = renderer
	}
}

// WithClock fixes the server clock.
func WithClock(clock func() time.Time) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Clock = clock
	}
}

// NewServer constructs an httptest server running the terminal HTTP stack backed by
// the in-memory demo catalog, stock and gateway.
func NewServer(t testing.TB, opts ...ServerOption) *httptest.Server {
	t.Helper()

	sessions, err := possession.NewManager(possession.Config{
		HashKey:     []byte("0123456789abcdef0123456789abcdef"),
		BlockKey:    []byte("fedcba9876543210fedcba9876543210"),
		IdleTimeout: time.Hour,
		Lifetime:    12 * time.Hour,
	})
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}

	products := catalog.DemoProducts()
	cfg := httpserver.Config{
		Address:          ":0",
		BasePath:         "/pos",
		Environment:      "test",
		CSRFHeaderName:   "X-CSRF-Token",
		Authenticator:    middleware.NewPassthroughAuthenticator(DemoStoreID, "Demo Store"),
		Sessions:         sessions,
		CatalogService:   catalog.NewStaticService(map[int64][]catalog.Product{DemoStoreID: products}),
		InventoryService: inventory.NewStaticService(map[int64][]inventory.StockSnapshot{DemoStoreID: catalog.StockSnapshots(products)}),
		Gateway:          transaction.NewStaticGateway(1),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	srv, err := httpserver.New(cfg)
	if err != nil {
		t.Fatalf("http server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}
