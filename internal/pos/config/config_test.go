package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Address != defaultAddress {
		t.Errorf("expected default address, got %s", cfg.Server.Address)
	}
	if cfg.Server.BasePath != "/pos" {
		t.Errorf("unexpected base path: %s", cfg.Server.BasePath)
	}
	if cfg.Backend.BaseURL != "" || cfg.UsesBackend() {
		t.Errorf("expected demo mode without backend url")
	}
	if cfg.Backend.BreakerFailures != 5 {
		t.Errorf("unexpected breaker failures: %d", cfg.Backend.BreakerFailures)
	}
	if !cfg.IsLocal() {
		t.Errorf("expected local environment")
	}
	if len(cfg.Session.HashKey) != 32 || len(cfg.Session.BlockKey) != 32 {
		t.Errorf("expected generated session keys in local mode")
	}
	if cfg.Terminal.DefaultStoreID != 1 || cfg.Terminal.DefaultStoreName != "Demo Store" {
		t.Errorf("unexpected terminal defaults: %+v", cfg.Terminal)
	}
	if cfg.Session.IdleTimeout != 30*time.Minute {
		t.Errorf("unexpected session idle timeout: %s", cfg.Session.IdleTimeout)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	env := map[string]string{
		"POS_ENVIRONMENT":              "Production",
		"POS_HTTP_ADDR":                ":9000",
		"POS_BASE_PATH":                "till/",
		"POS_BACKEND_URL":              "https://api.example.com/api/",
		"POS_BACKEND_TIMEOUT":          "3s",
		"POS_BACKEND_BREAKER_FAILURES": "2",
		"POS_SESSION_HASH_KEY":         "0123456789abcdef0123456789abcdef",
		"POS_SESSION_BLOCK_KEY":        "abcdef0123456789",
		"POS_SESSION_COOKIE_SECURE":    "yes",
		"POS_DEFAULT_STORE_ID":         "7",
		"POS_RECEIPT_SPOOL_DIR":        "/var/spool/receipts",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Environment != "production" || cfg.IsLocal() {
		t.Errorf("unexpected environment: %s", cfg.Environment)
	}
	if cfg.Server.Address != ":9000" || cfg.Server.BasePath != "/till" {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if !cfg.UsesBackend() || cfg.Backend.Timeout != 3*time.Second || cfg.Backend.BreakerFailures != 2 {
		t.Errorf("unexpected backend config: %+v", cfg.Backend)
	}
	if !cfg.Session.CookieSecure {
		t.Errorf("expected secure cookies")
	}
	if cfg.Terminal.DefaultStoreID != 7 {
		t.Errorf("unexpected store id: %d", cfg.Terminal.DefaultStoreID)
	}
	if cfg.Receipt.SpoolDir != "/var/spool/receipts" {
		t.Errorf("unexpected spool dir: %s", cfg.Receipt.SpoolDir)
	}
}

func TestLoadValidationError(t *testing.T) {
	env := map[string]string{
		"POS_ENVIRONMENT":       "production",
		"POS_BACKEND_URL":       "not a url",
		"POS_SESSION_BLOCK_KEY": "odd",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	fields := map[string]bool{}
	for _, f := range vErr.Fields() {
		fields[f] = true
	}
	for _, want := range []string{"Backend.BaseURL", "Session.HashKey", "Session.BlockKey"} {
		if !fields[want] {
			t.Errorf("expected %s in %v", want, vErr.Fields())
		}
	}
}

func TestLoadReceiptPrinter(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(map[string]string{"POS_RECEIPT_PRINTER": " Stdout "}), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Receipt.Printer != PrinterStdout {
		t.Errorf("unexpected printer: %q", cfg.Receipt.Printer)
	}

	cases := map[string]string{
		"laser": "Receipt.Printer",
		"spool": "Receipt.SpoolDir",
	}
	for printer, field := range cases {
		_, err := Load(context.Background(), WithEnvMap(map[string]string{"POS_RECEIPT_PRINTER": printer}), WithoutSystemEnv(), WithEnvFile(""))
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("%s: expected ValidationError, got %v", printer, err)
		}
		if len(vErr.Fields()) != 1 || vErr.Fields()[0] != field {
			t.Errorf("%s: unexpected fields %v", printer, vErr.Fields())
		}
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# terminal\nexport POS_DEFAULT_STORE_NAME=\"Harbour Branch\"\nPOS_LOG_LEVEL=DEBUG\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(path), WithoutSystemEnv(),
		WithEnvMap(map[string]string{"POS_LOG_LEVEL": "warn"}))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Terminal.DefaultStoreName != "Harbour Branch" {
		t.Errorf("expected dotenv store name, got %q", cfg.Terminal.DefaultStoreName)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("expected explicit map to win over dotenv, got %q", cfg.LogLevel)
	}
}
