// Package client provides a typed REST client for the helpdesk backend.
//
// Every operation issues exactly one HTTP request. Non-2xx responses fail
// with *RequestError; requests that never got a response fail with
// *ConnectivityError. No operation retries on its own and none touches any
// local state.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/helpdesk-go/internal/metrics"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:8000"

// slowRequestThreshold is the duration above which requests are logged at WARN level.
const slowRequestThreshold = 500 * time.Millisecond

// maxErrorBody caps how much of a failed response body is kept on RequestError.
const maxErrorBody = 2048

// Client is a REST client for the helpdesk backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Collector
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets a per-request timeout. Zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records per-operation timings into m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a client for the backend at baseURL.
// If baseURL is empty, DefaultBaseURL is used.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured backend address.
func (c *Client) BaseURL() string { return c.baseURL }

// call describes one backend request.
type call struct {
	op     string // operation name for logs and metrics
	method string
	path   string // path plus optional query, relative to baseURL

	body        io.Reader
	contentType string
}

type requestIDKey struct{}

// WithRequestID makes the next request carry id as its X-Request-ID header.
// Callers use it to correlate local state with the request that caused it.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request id set by WithRequestID, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// doJSON marshals in (if non-nil) as the request body and decodes the
// response into out (if non-nil).
func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	cl := call{op: op, method: method, path: path}
	if in != nil {
		reqBody, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		cl.body = bytes.NewReader(reqBody)
		cl.contentType = "application/json"
	}
	return c.do(ctx, cl, out)
}

// do executes a request, classifies failures and decodes the response.
func (c *Client) do(ctx context.Context, cl call, out any) error {
	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, cl.body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", cl.op, err)
	}
	if cl.contentType != "" {
		req.Header.Set("Content-Type", cl.contentType)
	}
	req.Header.Set("Accept", "application/json")
	requestID := RequestIDFrom(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		duration := time.Since(start)
		if ctxErr := ctx.Err(); ctxErr != nil {
			c.logRequest(cl, requestID, 0, duration, ctxErr)
			return fmt.Errorf("%s: %w", cl.op, ctxErr)
		}
		connErr := &ConnectivityError{Op: cl.op, BaseURL: c.baseURL, Err: err}
		c.record(cl.op, duration, metrics.OutcomeConnectivity)
		c.logRequest(cl, requestID, 0, duration, err)
		return connErr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	duration := time.Since(start)
	if err != nil {
		// A response arrived, so this is not a connectivity failure.
		c.record(cl.op, duration, metrics.OutcomeRequestError)
		c.logRequest(cl, requestID, resp.StatusCode, duration, err)
		return fmt.Errorf("%s: read response: %w", cl.op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reqErr := &RequestError{
			Op:         cl.op,
			Status:     resp.StatusCode,
			StatusText: statusText(resp),
			Body:       truncate(string(body), maxErrorBody),
		}
		c.record(cl.op, duration, metrics.OutcomeRequestError)
		c.logRequest(cl, requestID, resp.StatusCode, duration, reqErr)
		return reqErr
	}

	c.record(cl.op, duration, metrics.OutcomeOK)
	c.logRequest(cl, requestID, resp.StatusCode, duration, nil)

	if out != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%s: unmarshal response: %w", cl.op, err)
		}
	}
	return nil
}

func (c *Client) record(op string, d time.Duration, outcome metrics.Outcome) {
	if c.metrics != nil {
		c.metrics.RecordRequest(op, d, outcome)
	}
}

// logRequest logs a finished request. Failures log at ERROR, slow requests
// at WARN, everything else at DEBUG.
func (c *Client) logRequest(cl call, requestID string, status int, d time.Duration, err error) {
	attrs := []any{
		"op", cl.op,
		"method", cl.method,
		"path", cl.path,
		"request_id", requestID,
		"duration_ms", d.Milliseconds(),
	}
	if status != 0 {
		attrs = append(attrs, "status", status)
	}

	switch {
	case err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		c.logger.Debug("request abandoned", append(attrs, "error", err.Error())...)
	case err != nil:
		c.logger.Error("request failed", append(attrs, "error", err.Error())...)
	case d > slowRequestThreshold:
		c.logger.Warn("slow request", attrs...)
	default:
		c.logger.Debug("request completed", attrs...)
	}
}

// statusText prefers the standard reason phrase for the code.
func statusText(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	// resp.Status is "418 I'm a teapot"; strip the code.
	if _, after, ok := strings.Cut(resp.Status, " "); ok {
		return after
	}
	return resp.Status
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
