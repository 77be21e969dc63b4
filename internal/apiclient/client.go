// Package apiclient executes requests against the habit refund backend.
//
// Every request carries the session token as a bearer credential when one is
// held. A 401 from any endpoint clears the token and sends the user back to
// the login view; this package is the only place that does so.
package apiclient

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

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"habitrefund/internal/idempotency"
	"habitrefund/internal/models"
	"habitrefund/internal/navigation"
	"habitrefund/internal/session"
	"habitrefund/internal/tracing"
)

// APIError is returned for any non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// Options configures a Client.
type Options struct {
	// BaseURL is prefixed to every request path.
	BaseURL    string
	HTTPClient *http.Client
	Tracer     *tracing.Tracer
	Logger     *slog.Logger
}

// Client is the single network client shared by every flow.
type Client struct {
	baseURL string
	http    *http.Client
	store   session.Store
	nav     navigation.Navigator
	tracer  *tracing.Tracer
	logger  *slog.Logger
}

// New creates a client reading and clearing tokens in store and redirecting
// through nav on authorization failure.
func New(store session.Store, nav navigation.Navigator, opts Options) *Client {
	if opts.HTTPClient == nil {
		// no client-side timeout: the transport defaults apply
		opts.HTTPClient = &http.Client{}
	}
	if opts.Tracer == nil {
		opts.Tracer = tracing.GetTracer()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    opts.HTTPClient,
		store:   store,
		nav:     nav,
		tracer:  opts.Tracer,
		logger:  opts.Logger,
	}
}

// Get issues a GET request and decodes the response into T.
// An empty response body yields a nil result.
func Get[T any](ctx context.Context, c *Client, path string) (*T, error) {
	data, err := c.Do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	return decode[T](data, path)
}

// Post issues a POST request with a JSON body. idempotencyKey is attached
// when non-empty.
func Post[T any](ctx context.Context, c *Client, path string, body any, idempotencyKey string) (*T, error) {
	data, err := c.Do(ctx, http.MethodPost, path, body, idempotencyKey)
	if err != nil {
		return nil, err
	}
	return decode[T](data, path)
}

func decode[T any](data []byte, path string) (*T, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode response from %s: %w", path, err)
	}
	return &out, nil
}

// Do executes one request and returns the raw response body on success.
func (c *Client) Do(ctx context.Context, method, path string, body any, idempotencyKey string) ([]byte, error) {
	ctx, span := c.tracer.StartSpan(ctx, method+" "+path, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set(idempotency.Header, idempotencyKey)
	}
	if token := c.store.Get(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	c.tracer.Inject(ctx, req.Header)

	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.Bool("http.idempotent", idempotencyKey != ""),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", path, err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, data)}
		span.SetStatus(codes.Error, apiErr.Message)

		if resp.StatusCode == http.StatusUnauthorized {
			c.handleUnauthorized(path)
		}

		c.logger.Warn("backend request failed",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"error", apiErr.Message,
		)
		return nil, apiErr
	}

	return data, nil
}

// handleUnauthorized clears the revoked session and leaves the current view
// for the login view unless the user is already there.
func (c *Client) handleUnauthorized(path string) {
	if err := c.store.Clear(); err != nil {
		c.logger.Error("failed to clear session token", "error", err)
	}
	if !navigation.IsLogin(c.nav.Current()) {
		c.nav.Navigate(navigation.LoginPath(navigation.ReasonUnlinked))
	}
	c.logger.Info("session revoked by backend", "path", path)
}

// errorMessage returns the server-provided error field, or a generic message
// when the body is absent or not JSON.
func errorMessage(status int, data []byte) string {
	if len(bytes.TrimSpace(data)) > 0 {
		var body models.ErrorResponse
		if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
			return body.Error
		}
	}
	return fmt.Sprintf("HTTP %d", status)
}
