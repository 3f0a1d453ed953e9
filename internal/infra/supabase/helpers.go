package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/boddenberg/customer-registry-bff/internal/infra/resilience"

	"go.uber.org/zap"
)

// apiError is a non-2xx answer from Supabase.
type apiError struct {
	Method string
	Path   string
	Status int
	Body   []byte
}

func (e *apiError) Error() string {
	return fmt.Sprintf("supabase %s %s returned %d: %s", e.Method, e.Path, e.Status, string(e.Body))
}

// call is one HTTP exchange with Supabase.
type call struct {
	method string
	url    string
	path   string // for logs
	body   any
	prefer string
	apiKey string
	bearer string
}

// send executes c inside the bulkhead and returns the response body of a 2xx answer.
func (c *Client) send(ctx context.Context, req call) ([]byte, error) {
	if err := c.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	defer c.bulkhead.Release()

	var reader io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", req.path, err)
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, reader)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", req.method),
			zap.String("path", req.path),
			zap.Error(err),
		)
		return nil, err
	}

	httpReq.Header.Set("apikey", req.apiKey)
	httpReq.Header.Set("Authorization", "Bearer "+req.bearer)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if req.prefer != "" {
		httpReq.Header.Set("Prefer", req.prefer)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", req.method),
			zap.String("path", req.path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("supabase: failed to read response body",
			zap.String("method", req.method),
			zap.String("path", req.path),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", req.method),
			zap.String("path", req.path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, &apiError{Method: req.method, Path: req.path, Status: resp.StatusCode, Body: body}
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", req.method),
		zap.String("path", req.path),
		zap.Int("status", resp.StatusCode),
	)
	return body, nil
}

func (c *Client) restCall(ctx context.Context, method, path string, body any, prefer string) call {
	apiKey, bearer := c.credentials(ctx)
	return call{
		method: method,
		url:    fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path),
		path:   path,
		body:   body,
		prefer: prefer,
		apiKey: apiKey,
		bearer: bearer,
	}
}

// read runs an idempotent call through the breaker with retries.
// 4xx answers are not retried.
func (c *Client) read(ctx context.Context, req call) ([]byte, error) {
	var body []byte
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			b, err := c.send(ctx, req)
			if err != nil {
				var ae *apiError
				if errors.As(err, &ae) && ae.Status < http.StatusInternalServerError {
					return resilience.Permanent(err)
				}
				return err
			}
			body = b
			return nil
		})
	})
	return body, err
}

// write runs a non-idempotent call through the breaker, exactly once.
func (c *Client) write(ctx context.Context, req call) ([]byte, error) {
	out, err := c.cb.Execute(func() (any, error) {
		return c.send(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	b, _ := out.([]byte)
	return b, nil
}

// ============================================================
// PostgREST helpers
// ============================================================

// doRequest performs a GET against PostgREST.
func (c *Client) doRequest(ctx context.Context, path string) ([]byte, error) {
	return c.read(ctx, c.restCall(ctx, http.MethodGet, path, nil, ""))
}

func (c *Client) doPost(ctx context.Context, table string, data any) ([]byte, error) {
	return c.write(ctx, c.restCall(ctx, http.MethodPost, table, data, "return=representation"))
}

// doUpsert inserts data or merges it into the row matching onConflict.
func (c *Client) doUpsert(ctx context.Context, table, onConflict string, data any) ([]byte, error) {
	path := fmt.Sprintf("%s?on_conflict=%s", table, onConflict)
	return c.write(ctx, c.restCall(ctx, http.MethodPost, path, data, "resolution=merge-duplicates,return=representation"))
}

func (c *Client) doPatch(ctx context.Context, path string, data any) ([]byte, error) {
	return c.write(ctx, c.restCall(ctx, http.MethodPatch, path, data, "return=representation"))
}

// doDelete succeeds when no row matches.
func (c *Client) doDelete(ctx context.Context, path string) error {
	_, err := c.write(ctx, c.restCall(ctx, http.MethodDelete, path, nil, "return=minimal"))
	return err
}

// decodeRows decodes a PostgREST array body. An empty body yields no rows.
func decodeRows[T any](body []byte) ([]T, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var rows []T
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
