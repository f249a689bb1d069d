// Package backend is the REST client every terminal service uses to reach the POS backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"finitefield.org/retail-pos/internal/pos/failure"
	"finitefield.org/retail-pos/internal/pos/observability"
)

// HTTPClient matches the subset of http.Client used by Client.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// BreakerSettings configures the optional circuit breaker. Zero Failures disables it.
type BreakerSettings struct {
	Failures uint32
	Cooldown time.Duration
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c HTTPClient) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithBreaker wraps every call in a circuit breaker that opens after consecutive failures.
func WithBreaker(s BreakerSettings) Option {
	return func(cl *Client) {
		if s.Failures == 0 {
			return
		}
		cooldown := s.Cooldown
		if cooldown <= 0 {
			cooldown = 30 * time.Second
		}
		threshold := s.Failures
		cl.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:    "pos-backend",
			Timeout: cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				cl.logger.Warn("backend circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}
}

// WithLogger sets the logger used outside of request scope.
func WithLogger(logger *zap.Logger) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

// Client sends JSON requests to the backend with the caller's bearer token.
type Client struct {
	base    *url.URL
	http    HTTPClient
	breaker *gobreaker.CircuitBreaker[*http.Response]
	logger  *zap.Logger
}

// NewHTTPClient returns an http.Client with tracing on the transport.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// NewClient constructs a Client for baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("backend: base URL is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("backend: parse base URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("backend: base URL %q must be absolute", baseURL)
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	c := &Client{base: parsed, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = NewHTTPClient(0)
	}
	return c, nil
}

// RequestOption customises a single request.
type RequestOption func(*http.Request)

// WithHeader sets a header on the outgoing request.
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) {
		if value != "" {
			r.Header.Set(key, value)
		}
	}
}

// Get issues a GET request and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, token, endpoint string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, token, endpoint, query, nil, out)
}

// Send issues a request with a JSON body and decodes the JSON response into out.
func (c *Client) Send(ctx context.Context, method, token, endpoint string, payload, out any, opts ...RequestOption) error {
	return c.Do(ctx, method, token, endpoint, nil, payload, out, opts...)
}

// Do performs a request. Transport failures, open breakers and unreadable bodies are
// returned as failure network errors; non-2xx responses as *StatusError.
func (c *Client) Do(ctx context.Context, method, token, endpoint string, query url.Values, payload, out any, opts ...RequestOption) error {
	req, err := c.newRequest(ctx, method, endpoint, query, payload, token)
	if err != nil {
		return err
	}
	for _, opt := range opts {
		opt(req)
	}

	logger := observability.FromContext(ctx)
	start := time.Now()
	resp, err := c.do(req)
	if err != nil {
		logger.Warn("backend request failed",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
		return failure.Network(err)
	}
	defer resp.Body.Close()
	logger.Debug("backend request",
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromResponse(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return failure.Network(fmt.Errorf("backend: decode %s %s: %w", method, endpoint, err))
	}
	return nil
}

var errServerStatus = errors.New("backend: server error status")

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("backend: request failed: %w", err)
		}
		return resp, nil
	}
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errServerStatus
		}
		return resp, nil
	})
	if errors.Is(err, errServerStatus) && resp != nil {
		return resp, nil
	}
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, fmt.Errorf("backend: request failed: %w", err)
	}
	return resp, nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, payload any, token string) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(payload); err != nil {
			return nil, fmt.Errorf("backend: encode payload: %w", err)
		}
		body = &buf
	}
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(endpoint, query), body)
	if err != nil {
		return nil, fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) resolve(endpoint string, query url.Values) string {
	ref := &url.URL{Path: strings.TrimPrefix(endpoint, "/")}
	if len(query) > 0 {
		ref.RawQuery = query.Encode()
	}
	return c.base.ResolveReference(ref).String()
}

// PathInt formats an integer path segment.
func PathInt(id int64) string {
	return url.PathEscape(fmt.Sprintf("%d", id))
}
