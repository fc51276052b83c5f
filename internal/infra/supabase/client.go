// Package supabase provides a client for Supabase (PostgREST + RPC).
// It is the real data backend for accounts, transactions, bills and users.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dhruvpathak9305/OctopusFinanceAiAdvisor-sub000/internal/domain"
	"github.com/dhruvpathak9305/OctopusFinanceAiAdvisor-sub000/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to the Supabase PostgREST API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	logger         *zap.Logger
}

// NewClient creates a Supabase client.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		logger:         logger,
	}
}

// StatusError is a non-2xx PostgREST response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("supabase %s %s returned %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// IsPermission reports whether the response was an auth/RLS rejection.
// The balance reconciler surfaces these instead of falling back.
func (e *StatusError) IsPermission() bool {
	return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden
}

// IsMissing reports whether the target (usually an RPC function) does not
// exist on the backend.
func (e *StatusError) IsMissing() bool {
	return e.Code == http.StatusNotFound
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")
}

// statusErr wraps a non-2xx response. 4xx responses are marked permanent
// so RetryWithBackoff gives up on them immediately.
func statusErr(method, path string, code int, body []byte) error {
	err := &StatusError{Method: method, Path: path, Code: code, Body: string(body)}
	if code >= 400 && code < 500 {
		return resilience.Permanent(err)
	}
	return err
}

// doRequest executes an authenticated GET/DELETE-style request.
func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, statusErr(method, path, resp.StatusCode, body)
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)
	return body, nil
}

// doPost inserts a row and returns the representation.
func (c *Client) doPost(ctx context.Context, table string, data any) ([]byte, error) {
	return c.send(ctx, http.MethodPost, table, data)
}

// doPatch updates matching rows and returns the representation.
func (c *Client) doPatch(ctx context.Context, path string, data any) ([]byte, error) {
	return c.send(ctx, http.MethodPatch, path, data)
}

func (c *Client) send(ctx context.Context, method, path string, data any) ([]byte, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	jsonBody, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, statusErr(method, path, resp.StatusCode, body)
	}

	c.logger.Debug("supabase: request OK", zap.String("method", method), zap.String("path", path))
	return body, nil
}

// doDelete removes matching rows.
func (c *Client) doDelete(ctx context.Context, path string) error {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: DELETE request failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return statusErr(http.MethodDelete, path, resp.StatusCode, body)
	}
	return nil
}

// doCount returns the exact row count for a filter without fetching rows.
// PostgREST reports the total after the slash in Content-Range.
func (c *Client) doCount(ctx context.Context, path string) (int, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	c.setHeaders(req)
	req.Header.Set("Prefer", "count=exact")
	req.Header.Set("Range", "0-0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 && resp.StatusCode != http.StatusRequestedRangeNotSatisfiable {
		return 0, statusErr(http.MethodGet, path, resp.StatusCode, nil)
	}

	// Content-Range: 0-0/42
	var total int
	cr := resp.Header.Get("Content-Range")
	if i := strings.LastIndexByte(cr, '/'); i >= 0 {
		fmt.Sscanf(cr[i+1:], "%d", &total)
	}
	return total, nil
}

// rpc invokes a PostgREST stored procedure, with retry and circuit
// breaking like any other read.
func (c *Client) rpc(ctx context.Context, fn string, args map[string]any) ([]byte, error) {
	var body []byte
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			b, err := c.send(ctx, http.MethodPost, fmt.Sprintf("rpc/%s", fn), args)
			if err != nil {
				return err
			}
			body = b
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// readWithRetry wraps a GET in the retry/breaker pair used for all read
// paths the reconciler depends on.
func (c *Client) readWithRetry(ctx context.Context, path string) ([]byte, error) {
	var body []byte
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			b, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}
			body = b
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// parseWhen parses Supabase timestamps, which arrive either as RFC3339 or
// as bare dates.
func parseWhen(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	t, _ := time.Parse("2006-01-02", s)
	return t
}

// notFound builds the standard not-found error for an empty result set.
func notFound(resource, id string) error {
	return &domain.ErrNotFound{Resource: resource, ID: id}
}

// mapErr translates transport-level failures into domain errors. The
// original *StatusError stays reachable through Unwrap so callers can
// still distinguish a missing RPC from a broken one.
func mapErr(action string, err error) error {
	var se *StatusError
	if errors.As(err, &se) {
		if se.IsPermission() {
			return &domain.ErrForbidden{Action: action}
		}
		// PostgREST answers 404 when an RPC function does not exist.
		if se.IsMissing() {
			return &domain.ErrNotFound{Resource: action, ID: se.Path}
		}
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ErrCircuitOpen{Service: "supabase"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.ErrTimeout{Operation: action}
	}
	return &domain.ErrExternalService{Service: "supabase", Err: err}
}
