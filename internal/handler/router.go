// Package handler exposes the registry over HTTP: the two privileged
// functions endpoints used by the admin screen and the /v1 API of the
// customer registration client.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/customer-registry-bff/internal/domain"
	"github.com/boddenberg/customer-registry-bff/internal/infra/observability"
	"github.com/boddenberg/customer-registry-bff/internal/port"
	"github.com/boddenberg/customer-registry-bff/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("handler")

// Deps are the services the router dispatches to.
type Deps struct {
	Sessions    *service.SessionService
	Roles       *service.RoleResolver
	Provisioner *service.Provisioner
	Customers   *service.CustomerService
	Postal      *service.PostalService
	Migrator    *service.Migrator

	// LocalSource is the pre-migration store; nil disables /v1/migrations/local.
	LocalSource     port.CustomerSource
	MigrationTarget port.CustomerStore

	Backend        string
	Probes         []domain.Probe
	AllowedOrigins []string

	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.TracingMiddleware)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type"},
		MaxAge:         300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler(d.Backend, d.Probes, logger))
	if d.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))
	}

	apiAuth := Authenticate(d.Sessions, logger)
	apiAdmin := RequireAdmin(logger)

	// --- Privileged endpoints ---
	r.Route("/functions/v1", func(r chi.Router) {
		r.Options("/*", preflightHandler)
		r.Group(func(r chi.Router) {
			r.Use(
				authenticate(d.Sessions, logger, functionStatus),
				requireAdmin(logger, functionStatus),
			)
			r.Post("/admin-create-user", adminCreateUserHandler(d.Provisioner, logger))
			r.Post("/admin-delete-user", adminDeleteUserHandler(d.Provisioner, logger))
		})
	})

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/login", loginHandler(d.Sessions, logger))

		r.Group(func(r chi.Router) {
			r.Use(apiAuth)

			r.Post("/auth/logout", logoutHandler(d.Sessions, logger))
			r.Get("/me", meHandler(d.Sessions))

			r.Get("/customers", listCustomersHandler(d.Customers, logger))
			r.Post("/customers", createCustomerHandler(d.Customers, logger))
			r.Get("/customers/{id}", getCustomerHandler(d.Customers, logger))
			r.Patch("/customers/{id}", updateCustomerHandler(d.Customers, logger))
			r.Delete("/customers/{id}", deleteCustomerHandler(d.Customers, logger))

			r.Get("/postal-codes/{cep}", postalLookupHandler(d.Postal, logger))
			r.Post("/migrations/local", migrateLocalHandler(d.Migrator, d.LocalSource, d.MigrationTarget, logger))

			r.Route("/admin", func(r chi.Router) {
				r.Use(apiAdmin)
				r.Get("/users", listUsersHandler(d.Provisioner, logger))
				r.Put("/users/{userId}/role", updateRoleHandler(d.Roles, logger))
			})
		})
	})

	return r
}

// ============================================================
// Operational handlers
// ============================================================

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// readyzHandler probes every dependency concurrently. Any failing probe makes
// the service unhealthy.
func readyzHandler(backend string, probes []domain.Probe, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		services := make([]domain.ServiceHealth, len(probes))
		var g errgroup.Group
		for i, p := range probes {
			g.Go(func() error {
				start := time.Now()
				err := p.Check(ctx)
				services[i] = domain.ServiceHealth{
					Name:      p.Name,
					Status:    "healthy",
					LatencyMs: time.Since(start).Milliseconds(),
				}
				if err != nil {
					logger.Warn("readiness probe failed", zap.String("probe", p.Name), zap.Error(err))
					services[i].Status = "unhealthy"
					services[i].Error = err.Error()
				}
				return nil
			})
		}
		_ = g.Wait()

		status := domain.HealthStatus{Status: "healthy", Backend: backend, Services: services}
		code := http.StatusOK
		for _, s := range services {
			if s.Status == "unhealthy" {
				status.Status = "unhealthy"
				code = http.StatusServiceUnavailable
				break
			}
		}
		writeJSON(w, code, status)
	}
}
