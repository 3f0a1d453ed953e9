package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/boddenberg/customer-registry-bff/internal/domain"
	"github.com/boddenberg/customer-registry-bff/internal/handler"
	"github.com/boddenberg/customer-registry-bff/internal/infra/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	router := handler.NewRouter(handler.Deps{Metrics: observability.NewMetrics(), Logger: zap.NewNop()})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	healthy := domain.Probe{Name: "supabase", Check: func(context.Context) error { return nil }}
	broken := domain.Probe{Name: "viacep", Check: func(context.Context) error { return errors.New("dial tcp: refused") }}

	router := handler.NewRouter(handler.Deps{Backend: "supabase", Probes: []domain.Probe{healthy}})
	rec := do(t, router, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	status := decode[map[string]any](t, rec)
	assert.Equal(t, "healthy", status["status"])
	assert.Equal(t, "supabase", status["backend"])

	router = handler.NewRouter(handler.Deps{Probes: []domain.Probe{healthy, broken}})
	rec = do(t, router, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "dial tcp: refused")
}

func TestMetrics(t *testing.T) {
	router := handler.NewRouter(handler.Deps{Metrics: observability.NewMetrics(), Logger: zap.NewNop()})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestPreflight(t *testing.T) {
	router := handler.NewRouter(handler.Deps{Logger: zap.NewNop()})

	for _, path := range []string{"/functions/v1/admin-create-user", "/functions/v1/admin-delete-user"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, path, nil)
			req.Header.Set("Origin", "https://app.example.com")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			req.Header.Set("Access-Control-Request-Headers", "authorization, content-type")
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Empty(t, rec.Body.String())
		})
	}

	// A bare OPTIONS without preflight headers still gets an empty 200.
	rec := do(t, router, http.MethodOptions, "/functions/v1/admin-create-user", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}
