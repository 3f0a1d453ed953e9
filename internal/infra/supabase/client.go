// Package supabase provides a client for Supabase (GoTrue Auth + PostgREST).
// It is the identity provider of the service and the hosted table backend.
package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/boddenberg/customer-registry-bff/internal/domain"
	"github.com/boddenberg/customer-registry-bff/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Options holds the project endpoint and keys.
type Options struct {
	BaseURL        string
	AnonKey        string
	ServiceRoleKey string
}

// Client wraps HTTP calls to the Supabase Auth and PostgREST APIs.
//
// A client built by NewClient is privileged: it authenticates with the service
// role key and bypasses row level security. UserScoped derives a client that
// forwards the caller's access token instead.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	anonKey        string
	serviceRoleKey string
	privileged     bool
	cb             *gobreaker.CircuitBreaker
	bulkhead       *resilience.Bulkhead
	cfg            resilience.Config
	logger         *zap.Logger
}

// NewClient creates a privileged Supabase client.
func NewClient(httpClient *http.Client, opts Options, cb *gobreaker.CircuitBreaker, bulkhead *resilience.Bulkhead, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		anonKey:        opts.AnonKey,
		serviceRoleKey: opts.ServiceRoleKey,
		privileged:     true,
		cb:             cb,
		bulkhead:       bulkhead,
		cfg:            cfg,
		logger:         logger,
	}
}

// UserScoped returns a client sharing the transport, breaker and bulkhead of c
// whose table calls carry the access token found in the request context
// (domain.WithAccessToken), falling back to the anon key.
func (c *Client) UserScoped() *Client {
	u := *c
	u.privileged = false
	return &u
}

// IsSuccessful tells the circuit breaker which errors are answers rather than outages.
// Rejections (4xx) mean the backend is up.
func IsSuccessful(err error) bool {
	if err == nil {
		return true
	}
	var ae *apiError
	return errors.As(err, &ae) && ae.Status < http.StatusInternalServerError
}

// credentials returns the apikey header and bearer token for a table call.
func (c *Client) credentials(ctx context.Context) (apiKey, bearer string) {
	if c.privileged {
		return c.serviceRoleKey, c.serviceRoleKey
	}
	if token := domain.AccessTokenFromContext(ctx); token != "" {
		return c.anonKey, token
	}
	return c.anonKey, c.anonKey
}

// publicKey is the apikey header for auth endpoints acting on behalf of a user.
func (c *Client) publicKey() string {
	if c.anonKey != "" {
		return c.anonKey
	}
	return c.serviceRoleKey
}

// mapError converts transport and PostgREST failures into domain errors.
// Only 5xx answers and transport failures are transient.
func (c *Client) mapError(service string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ErrCircuitOpen{Service: service}
	}

	var ae *apiError
	if errors.As(err, &ae) {
		switch ae.Status {
		case http.StatusUnauthorized:
			return &domain.ErrUnauthorized{Message: "Sessão inválida ou expirada"}
		case http.StatusForbidden:
			return &domain.ErrForbidden{Action: service}
		case http.StatusConflict:
			return &domain.ErrAlreadyExists{Message: "Registro já existe"}
		case http.StatusNotFound:
			return &domain.ErrNotFound{Resource: service}
		}
		if ae.Status < http.StatusInternalServerError {
			return &domain.ErrValidation{Message: rejectionMessage(ae.Body)}
		}
	}
	return &domain.ErrExternalService{Service: service, Err: err}
}

// restErrorBody is the PostgREST error document.
type restErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// rejectionMessage extracts the PostgREST message of a 4xx answer.
func rejectionMessage(body []byte) string {
	var eb restErrorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Message != "" {
		return eb.Message
	}
	return "Requisição rejeitada pelo banco de dados"
}
