package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
)

const (
	defaultEnvFile          = ".env"
	defaultAddress          = ":3060"
	defaultBasePath         = "/pos"
	defaultEnvironment      = "local"
	defaultLogLevel         = "info"
	defaultReadTimeout      = 15 * time.Second
	defaultWriteTimeout     = 30 * time.Second
	defaultIdleTimeout      = 120 * time.Second
	defaultHandlerTimeout   = 20 * time.Second
	defaultBackendTimeout   = 10 * time.Second
	defaultBreakerFailures  = 5
	defaultBreakerCooldown  = 30 * time.Second
	defaultSessionIdle      = 30 * time.Minute
	defaultSessionLifetime  = 12 * time.Hour
	defaultTerminalIdle     = 2 * time.Hour
	defaultStoreName        = "Demo Store"
	defaultStoreID          = 1
	defaultSessionKeyLength = 32
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Environment string
	LogLevel    string
	Server      ServerConfig
	Backend     BackendConfig
	Session     SessionConfig
	Firebase    FirebaseConfig
	Terminal    TerminalConfig
	Receipt     ReceiptConfig
}

// ServerConfig configures the terminal HTTP server.
type ServerConfig struct {
	Address        string
	BasePath       string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	HandlerTimeout time.Duration
}

// BackendConfig points the terminal at the REST backend. An empty BaseURL runs the
// terminal against in-memory demo services.
type BackendConfig struct {
	BaseURL         string
	Timeout         time.Duration
	BreakerFailures int
	BreakerCooldown time.Duration
}

// SessionConfig holds cookie keys and lifetimes.
type SessionConfig struct {
	HashKey      []byte
	BlockKey     []byte
	CookieSecure bool
	IdleTimeout  time.Duration
	Lifetime     time.Duration
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// TerminalConfig holds per-terminal defaults.
type TerminalConfig struct {
	DefaultStoreID   int64
	DefaultStoreName string
	IdleTimeout      time.Duration
}

// Receipt printer targets.
const (
	PrinterNone   = ""
	PrinterSpool  = "spool"
	PrinterStdout = "stdout"
)

// ReceiptConfig locates receipt settings and selects the print target. An unset
// printer spools when SpoolDir is configured.
type ReceiptConfig struct {
	SettingsFile string
	SpoolDir     string
	Printer      string
}

// UsesBackend reports whether a REST backend is configured.
func (c Config) UsesBackend() bool {
	return c.Backend.BaseURL != ""
}

// IsLocal reports whether the terminal runs in the local development environment.
func (c Config) IsLocal() bool {
	return c.Environment == defaultEnvironment
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// Option customises Load.
type Option func(*loaderOptions)

// WithEnvFile overrides the dotenv file path. An empty path disables dotenv loading.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap supplies explicit values that take precedence over every other source.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv stops Load from reading the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load resolves configuration from defaults, the dotenv file, the process environment
// and explicit overrides, in increasing order of precedence.
func Load(_ context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Environment: strings.ToLower(stringWithDefault(lookup, "POS_ENVIRONMENT", defaultEnvironment)),
		LogLevel:    strings.ToLower(stringWithDefault(lookup, "POS_LOG_LEVEL", defaultLogLevel)),
		Server: ServerConfig{
			Address:        stringWithDefault(lookup, "POS_HTTP_ADDR", defaultAddress),
			BasePath:       normalizeBasePath(stringWithDefault(lookup, "POS_BASE_PATH", defaultBasePath)),
			ReadTimeout:    durationWithDefault(lookup, "POS_HTTP_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:   durationWithDefault(lookup, "POS_HTTP_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:    durationWithDefault(lookup, "POS_HTTP_IDLE_TIMEOUT", defaultIdleTimeout),
			HandlerTimeout: durationWithDefault(lookup, "POS_HTTP_HANDLER_TIMEOUT", defaultHandlerTimeout),
		},
		Backend: BackendConfig{
			BaseURL:         strings.TrimSpace(stringWithDefault(lookup, "POS_BACKEND_URL", "")),
			Timeout:         durationWithDefault(lookup, "POS_BACKEND_TIMEOUT", defaultBackendTimeout),
			BreakerFailures: intWithDefault(lookup, "POS_BACKEND_BREAKER_FAILURES", defaultBreakerFailures),
			BreakerCooldown: durationWithDefault(lookup, "POS_BACKEND_BREAKER_COOLDOWN", defaultBreakerCooldown),
		},
		Session: SessionConfig{
			HashKey:      []byte(stringWithDefault(lookup, "POS_SESSION_HASH_KEY", "")),
			BlockKey:     []byte(stringWithDefault(lookup, "POS_SESSION_BLOCK_KEY", "")),
			CookieSecure: boolWithDefault(lookup, "POS_SESSION_COOKIE_SECURE", false),
			IdleTimeout:  durationWithDefault(lookup, "POS_SESSION_IDLE_TIMEOUT", defaultSessionIdle),
			Lifetime:     durationWithDefault(lookup, "POS_SESSION_LIFETIME", defaultSessionLifetime),
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "POS_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "POS_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Terminal: TerminalConfig{
			DefaultStoreID:   int64(intWithDefault(lookup, "POS_DEFAULT_STORE_ID", defaultStoreID)),
			DefaultStoreName: stringWithDefault(lookup, "POS_DEFAULT_STORE_NAME", defaultStoreName),
			IdleTimeout:      durationWithDefault(lookup, "POS_TERMINAL_IDLE_TIMEOUT", defaultTerminalIdle),
		},
		Receipt: ReceiptConfig{
			SettingsFile: stringWithDefault(lookup, "POS_RECEIPT_SETTINGS", ""),
			SpoolDir:     stringWithDefault(lookup, "POS_RECEIPT_SPOOL_DIR", ""),
			Printer:      strings.ToLower(strings.TrimSpace(stringWithDefault(lookup, "POS_RECEIPT_PRINTER", PrinterNone))),
		},
	}

	// Local runs get throwaway keys so the terminal starts without setup; sessions
	// do not survive a restart.
	if len(cfg.Session.HashKey) == 0 && cfg.IsLocal() {
		cfg.Session.HashKey = securecookie.GenerateRandomKey(defaultSessionKeyLength)
		cfg.Session.BlockKey = securecookie.GenerateRandomKey(defaultSessionKeyLength)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if strings.TrimSpace(cfg.Server.Address) == "" {
		missing = append(missing, "Server.Address")
	}
	if cfg.Backend.BaseURL != "" {
		if u, err := url.Parse(cfg.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			missing = append(missing, "Backend.BaseURL")
		}
	}
	if cfg.Backend.Timeout <= 0 {
		missing = append(missing, "Backend.Timeout")
	}
	if cfg.Backend.BreakerFailures < 0 {
		missing = append(missing, "Backend.BreakerFailures")
	}
	if len(cfg.Session.HashKey) < 32 {
		missing = append(missing, "Session.HashKey")
	}
	switch len(cfg.Session.BlockKey) {
	case 0, 16, 24, 32:
	default:
		missing = append(missing, "Session.BlockKey")
	}
	if cfg.Terminal.DefaultStoreID <= 0 {
		missing = append(missing, "Terminal.DefaultStoreID")
	}
	switch cfg.Receipt.Printer {
	case PrinterNone, PrinterStdout:
	case PrinterSpool:
		if cfg.Receipt.SpoolDir == "" {
			missing = append(missing, "Receipt.SpoolDir")
		}
	default:
		missing = append(missing, "Receipt.Printer")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func normalizeBasePath(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "/" {
		return "/"
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	return strings.TrimRight(trimmed, "/")
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
