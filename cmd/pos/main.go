package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"finitefield.org/retail-pos/internal/pos/backend"
	"finitefield.org/retail-pos/internal/pos/catalog"
	"finitefield.org/retail-pos/internal/pos/config"
	"finitefield.org/retail-pos/internal/pos/httpserver"
	"finitefield.org/retail-pos/internal/pos/httpserver/middleware"
	"finitefield.org/retail-pos/internal/pos/inventory"
	"finitefield.org/retail-pos/internal/pos/observability"
	"finitefield.org/retail-pos/internal/pos/receipt"
	possession "finitefield.org/retail-pos/internal/pos/session"
	"finitefield.org/retail-pos/internal/pos/terminal"
	"finitefield.org/retail-pos/internal/pos/transaction"
)

func main() {
	rootCtx := context.Background()

	cfg, err := config.Load(rootCtx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("pos").With(zap.String("environment", cfg.Environment))
	rootCtx = observability.WithLogger(rootCtx, logger)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	metrics := observability.NewMetrics()

	sessions, err := possession.NewManager(possession.Config{
		HashKey:      cfg.Session.HashKey,
		BlockKey:     cfg.Session.BlockKey,
		CookiePath:   cfg.Server.BasePath,
		CookieSecure: cfg.Session.CookieSecure,
		IdleTimeout:  cfg.Session.IdleTimeout,
		Lifetime:     cfg.Session.Lifetime,
	})
	if err != nil {
		logger.Fatal("failed to initialise session manager", zap.Error(err))
	}

	receipts, err := buildReceipts(cfg, metrics)
	if err != nil {
		logger.Fatal("failed to initialise receipts", zap.Error(err))
	}

	terminals := terminal.NewRegistry(cfg.Terminal.IdleTimeout, time.Now)

	serverCfg := httpserver.Config{
		Address:        cfg.Server.Address,
		BasePath:       cfg.Server.BasePath,
		Environment:    cfg.Environment,
		Sessions:       sessions,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		HandlerTimeout: cfg.Server.HandlerTimeout,
		Logger:         logger,
		Metrics:        metrics,
		Receipts:       receipts,
		Terminals:      terminals,
	}

	var client *backend.Client
	if cfg.UsesBackend() {
		client, err = backend.NewClient(cfg.Backend.BaseURL,
			backend.WithHTTPClient(backend.NewHTTPClient(cfg.Backend.Timeout)),
			backend.WithBreaker(backend.BreakerSettings{
				Failures: uint32(cfg.Backend.BreakerFailures),
				Cooldown: cfg.Backend.BreakerCooldown,
			}),
			backend.WithLogger(logger),
		)
		if err != nil {
			logger.Fatal("failed to initialise backend client", zap.Error(err))
		}
		serverCfg.CatalogService = catalog.NewHTTPService(client)
		serverCfg.InventoryService = inventory.NewHTTPService(client)
		serverCfg.Gateway = transaction.NewHTTPGateway(client)
		logger.Info("using REST backend", zap.String("base_url", cfg.Backend.BaseURL))
	} else {
		storeID := cfg.Terminal.DefaultStoreID
		products := catalog.DemoProducts()
		serverCfg.CatalogService = catalog.NewStaticService(map[int64][]catalog.Product{storeID: products})
		serverCfg.InventoryService = inventory.NewStaticService(map[int64][]inventory.StockSnapshot{storeID: catalog.StockSnapshots(products)})
		serverCfg.Gateway = transaction.NewStaticGateway(1)
		logger.Warn("POS_BACKEND_URL not set; using in-memory demo services", zap.Int64("store_id", storeID))
	}
	serverCfg.Authenticator = buildAuthenticator(rootCtx, cfg, client)

	srv, err := httpserver.New(serverCfg)
	if err != nil {
		logger.Fatal("failed to build http server", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go terminals.Run(ctx, 0)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	logger.Info("terminal server listening",
		zap.String("addr", cfg.Server.Address),
		zap.String("base_path", cfg.Server.BasePath),
	)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		cancel()
		stop()
		os.Exit(1)
	}
	logger.Info("terminal server stopped")
}

func buildReceipts(cfg config.Config, metrics *observability.Metrics) (*receipt.Renderer, error) {
	settings, err := receipt.LoadSettings(cfg.Receipt.SettingsFile)
	if err != nil {
		return nil, err
	}
	if settings.StoreName == "" {
		settings.StoreName = cfg.Terminal.DefaultStoreName
	}
	opts := []receipt.Option{receipt.WithMetrics(metrics)}
	switch {
	case cfg.Receipt.Printer == config.PrinterStdout:
		opts = append(opts, receipt.WithPrinter(&receipt.WriterPrinter{W: os.Stdout}))
	case cfg.Receipt.SpoolDir != "":
		opts = append(opts, receipt.WithPrinter(receipt.SpoolPrinter{Dir: cfg.Receipt.SpoolDir}))
	}
	return receipt.NewRenderer(settings, opts...)
}

// buildAuthenticator prefers Firebase ID tokens, then the backend's /auth/me, and
// falls back to a passthrough authenticator for local development.
func buildAuthenticator(ctx context.Context, cfg config.Config, client *backend.Client) middleware.Authenticator {
	logger := observability.FromContext(ctx)

	if projectID := cfg.Firebase.ProjectID; projectID != "" {
		var opts []option.ClientOption
		if cfg.Firebase.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.Firebase.CredentialsFile))
		}
		app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
		if err != nil {
			logger.Fatal("failed to initialise Firebase app", zap.Error(err))
		}
		authClient, err := app.Auth(ctx)
		if err != nil {
			logger.Fatal("failed to initialise Firebase auth client", zap.Error(err))
		}
		logger.Info("Firebase authenticator enabled", zap.String("project", projectID))
		return middleware.NewFirebaseAuthenticator(authClient)
	}

	if client != nil {
		logger.Info("backend authenticator enabled")
		return middleware.NewBackendAuthenticator(client)
	}

	logger.Warn("no identity provider configured; using passthrough authenticator")
	return middleware.NewPassthroughAuthenticator(cfg.Terminal.DefaultStoreID, cfg.Terminal.DefaultStoreName)
}
