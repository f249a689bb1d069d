package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"finitefield.org/retail-pos/internal/pos/catalog"
	custommw "finitefield.org/retail-pos/internal/pos/httpserver/middleware"
	"finitefield.org/retail-pos/internal/pos/httpserver/ui"
	"finitefield.org/retail-pos/internal/pos/inventory"
	"finitefield.org/retail-pos/internal/pos/observability"
	"finitefield.org/retail-pos/internal/pos/rbac"
	"finitefield.org/retail-pos/internal/pos/receipt"
	"finitefield.org/retail-pos/internal/pos/terminal"
	"finitefield.org/retail-pos/internal/pos/transaction"
	"finitefield.org/retail-pos/public"
)

// Config holds runtime options for the terminal HTTP server.
type Config struct {
	Address        string
	BasePath       string
	LoginPath      string
	Environment    string
	Authenticator  custommw.Authenticator
	Sessions       custommw.SessionStore
	CSRFHeaderName string

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	HandlerTimeout time.Duration

	Logger  *zap.Logger
	Metrics *observability.Metrics

	CatalogService   catalog.Service
	InventoryService inventory.Service
	Gateway          transaction.Gateway
	Receipts         *receipt.Renderer
	Terminals        *terminal.Registry
	Clock            func() time.Time
}

// New constructs the HTTP server with middleware stack, embedded assets and terminal routes.
func New(cfg Config) (*http.Server, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("httpserver: session store is required")
	}
	if cfg.CatalogService == nil || cfg.InventoryService == nil || cfg.Gateway == nil {
		return nil, errors.New("httpserver: catalog, inventory and transaction backends are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	handlerTimeout := cfg.HandlerTimeout
	if handlerTimeout <= 0 {
		handlerTimeout = 60 * time.Second
	}

	handlers, err := newHandlers(cfg, metrics, clock)
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(observability.InjectLogger(logger))
	router.Use(observability.RequestLogger(metrics))
	router.Use(chimw.Recoverer)
	router.Use(chimw.Timeout(handlerTimeout))

	staticContent, err := public.StaticFS()
	if err != nil {
		return nil, fmt.Errorf("embed static: %w", err)
	}
	router.Handle("/public/static/*", http.StripPrefix("/public/static/", http.FileServer(http.FS(staticContent))))
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	basePath := normalizeBasePath(cfg.BasePath)
	loginPath := resolveLoginPath(basePath, cfg.LoginPath)

	authenticator := cfg.Authenticator
	if authenticator == nil {
		authenticator = custommw.DefaultAuthenticator()
	}

	csrfCfg := custommw.CSRFConfig{HeaderName: cfg.CSRFHeaderName}

	mountTerminalRoutes(router, basePath, routeOptions{
		Authenticator: authenticator,
		LoginPath:     loginPath,
		CSRF:          csrfCfg,
		Sessions:      cfg.Sessions,
		Environment:   cfg.Environment,
		Handlers:      handlers,
		Auth:          newAuthHandlers(authenticator, handlers.Terminals(), basePath, loginPath),
		Metrics:       metrics,
	})

	return &http.Server{
		Addr:         cfg.Address,
		Handler:      otelhttp.NewHandler(router, "pos"),
		ReadTimeout:  durationOr(cfg.ReadTimeout, 10*time.Second),
		WriteTimeout: durationOr(cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:  durationOr(cfg.IdleTimeout, 60*time.Second),
	}, nil
}

func newHandlers(cfg Config, metrics *observability.Metrics, clock func() time.Time) (*ui.Handlers, error) {
	submitter, err := transaction.NewSubmitter(transaction.SubmitterDeps{
		Gateway: cfg.Gateway,
		Clock:   clock,
		Metrics: metrics,
	})
	if err != nil {
		return nil, err
	}
	receipts := cfg.Receipts
	if receipts == nil {
		receipts, err = receipt.NewRenderer(receipt.DefaultSettings(), receipt.WithMetrics(metrics))
		if err != nil {
			return nil, err
		}
	}
	return ui.NewHandlers(ui.Dependencies{
		Lookup:    catalog.NewLookup(cfg.CatalogService, metrics),
		Submitter: submitter,
		Inventory: inventory.NewBook(cfg.InventoryService, metrics, clock),
		Receipts:  receipts,
		Terminals: cfg.Terminals,
		Clock:     clock,
	}), nil
}

type routeOptions struct {
	Authenticator custommw.Authenticator
	LoginPath     string
	CSRF          custommw.CSRFConfig
	Sessions      custommw.SessionStore
	Environment   string
	Handlers      *ui.Handlers
	Auth          *authHandlers
	Metrics       *observability.Metrics
}

func mountTerminalRoutes(router chi.Router, base string, opts routeOptions) {
	routes := func(r chi.Router) {
		r.Use(custommw.RequestInfoMiddleware(base))
		r.Use(custommw.Environment(opts.Environment))
		r.Use(custommw.HTMX())
		r.Use(custommw.NoStore())
		r.Use(custommw.Session(opts.Sessions))
		r.Use(custommw.CSRF(opts.CSRF))

		r.Get("/login", opts.Auth.LoginForm)
		r.Post("/login", opts.Auth.LoginSubmit)
		r.Post("/logout", opts.Auth.Logout)

		r.Group(func(r chi.Router) {
			r.Use(custommw.Auth(opts.Authenticator, opts.LoginPath))

			h := opts.Handlers
			guard := custommw.NewGuard(h.Forbidden)
			r.With(guard.Require(rbac.CapDashboardView)).Get("/", h.Dashboard)

			r.Group(func(r chi.Router) {
				r.Use(guard.Require(rbac.CapCheckout))
				r.Get("/checkout", h.Checkout)
				r.Post("/checkout", h.CheckoutAction)
			})

			r.Group(func(r chi.Router) {
				r.Use(guard.Require(rbac.CapReceiptReprint))
				r.Get("/receipts/latest", h.LatestReceipt)
				r.Get("/receipts/latest/print", h.PrintReceipt)
			})

			r.Group(func(r chi.Router) {
				r.Use(guard.Require(rbac.CapDrawerOperate))
				r.Get("/drawer", h.Drawer)
				r.Post("/drawer/open", h.OpenDrawer)
				r.Post("/drawer/move", h.MoveCash)
				r.Post("/drawer/close", h.CloseDrawer)
			})

			r.With(guard.Require(rbac.CapInventoryView)).Get("/inventory", h.Inventory)
			r.With(guard.Require(rbac.CapLowStockAlerts)).Get("/inventory/low-stock", h.LowStock)
			r.With(guard.Require(rbac.CapInventoryAdjust)).Post("/inventory/adjust", h.AdjustStock)

			r.With(guard.Require(rbac.CapMetricsView)).Handle("/metrics", opts.Metrics.Handler())
		})
	}

	if base == "/" {
		router.Group(routes)
		return
	}
	router.Route(base, routes)
}

func normalizeBasePath(path string) string {
	p := strings.TrimSpace(path)
	if p == "" {
		return "/pos"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	if p == "" {
		return "/"
	}
	return p
}

func resolveLoginPath(base string, override string) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	if base == "/" {
		return "/login"
	}
	return base + "/login"
}

func durationOr(value, fallback time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return fallback
}
