package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"hrportal/internal/metrics"
)

// Request carries the optional parts of a backend call.
type Request struct {
	Params url.Values
	Body   any
	// Route is the metrics label for the call, e.g. "/notifications/:id".
	// Defaults to the path.
	Route string
}

// Doer is the single collaborator every store and API wrapper talks to.
type Doer interface {
	Do(ctx context.Context, method, path string, req Request) ([]byte, error)
}

// TokenSource supplies a bearer token for calls that carry no user token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StatusError is returned for any response with status >= 300.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Client calls the HR backend REST API.
type Client struct {
	BaseURL string
	HTTP    *http.Client

	tokens  TokenSource
	limiter *rate.Limiter
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithTokenSource sets the fallback bearer token source.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithRateLimit throttles outgoing calls to r requests per second. Burst is
// at least 1.
func WithRateLimit(r float64, burst int) Option {
	return func(c *Client) {
		if r > 0 {
			burst = max(burst, 1)
			c.limiter = rate.NewLimiter(rate.Limit(r), burst)
		}
	}
}

// WithMetrics records request counts and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client rooted at baseURL with the given request timeout.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
		metrics: metrics.Nop(),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type bearerKey struct{}

// WithBearer attaches a caller's token to ctx; it takes precedence over the
// client's TokenSource.
func WithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

// Do performs one request and returns the raw response body.
func (c *Client) Do(ctx context.Context, method, path string, req Request) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	target := c.BaseURL + path
	if len(req.Params) > 0 {
		target += "?" + req.Params.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("X-Request-ID", requestID)

	token, err := c.bearer(ctx)
	if err != nil {
		return nil, fmt.Errorf("service token: %w", err)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	route := req.Route
	if route == "" {
		route = path
	}

	start := time.Now()
	resp, err := c.HTTP.Do(httpReq)
	c.metrics.APIDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.APIRequests.WithLabelValues(method, route, "error").Inc()
		c.log.Warn().Err(err).Str("method", method).Str("path", path).Str("request_id", requestID).Msg("backend request failed")
		return nil, fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.APIRequests.WithLabelValues(method, route, strconv.Itoa(resp.StatusCode)).Inc()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		c.log.Warn().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Str("request_id", requestID).Msg("backend returned error status")
		return nil, &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	c.log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("backend request")
	return respBody, nil
}

func (c *Client) bearer(ctx context.Context) (string, error) {
	if token, ok := ctx.Value(bearerKey{}).(string); ok && token != "" {
		return token, nil
	}
	if c.tokens == nil {
		return "", nil
	}
	return c.tokens.Token(ctx)
}

// Get issues a GET with query params.
func Get(ctx context.Context, d Doer, path string, params url.Values) ([]byte, error) {
	return d.Do(ctx, http.MethodGet, path, Request{Params: params})
}

// Post issues a POST with a JSON body.
func Post(ctx context.Context, d Doer, path string, body any) ([]byte, error) {
	return d.Do(ctx, http.MethodPost, path, Request{Body: body})
}

// Put issues a PUT with a JSON body.
func Put(ctx context.Context, d Doer, path string, body any) ([]byte, error) {
	return d.Do(ctx, http.MethodPut, path, Request{Body: body})
}

// Patch issues a PATCH with an optional JSON body.
func Patch(ctx context.Context, d Doer, path string, body any) ([]byte, error) {
	return d.Do(ctx, http.MethodPatch, path, Request{Body: body})
}

// Delete issues a DELETE.
func Delete(ctx context.Context, d Doer, path string) ([]byte, error) {
	return d.Do(ctx, http.MethodDelete, path, Request{})
}
