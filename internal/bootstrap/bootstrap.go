// Package bootstrap wires configuration into concrete stores. It is shared
// by the HTTP server and the operator CLI.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/boddenberg/customer-registry-bff/internal/config"
	"github.com/boddenberg/customer-registry-bff/internal/domain"
	"github.com/boddenberg/customer-registry-bff/internal/infra/localstore"
	"github.com/boddenberg/customer-registry-bff/internal/infra/postgres"
	"github.com/boddenberg/customer-registry-bff/internal/infra/resilience"
	"github.com/boddenberg/customer-registry-bff/internal/infra/supabase"
	"github.com/boddenberg/customer-registry-bff/internal/port"

	"go.uber.org/zap"
)

// Stores are the storage ports selected by STORE_BACKEND.
type Stores struct {
	Identity port.IdentityStore
	Profiles port.ProfileStore
	Roles    port.RoleStore

	// Customers runs under the caller's access token where the backend supports it.
	Customers port.CustomerStore
	// AdminCustomers bypasses row level security; for operator tooling only.
	AdminCustomers port.CustomerStore
	// LocalSource is the pre-migration file store, nil when it is the primary store.
	LocalSource port.CustomerSource

	// Postgres is set when STORE_BACKEND=postgres.
	Postgres *postgres.Store

	Probes []domain.Probe
	close  []func()
}

// Close releases pooled connections.
func (s *Stores) Close() {
	for i := len(s.close) - 1; i >= 0; i-- {
		s.close[i]()
	}
}

// ResilienceConfig extracts the retry and bulkhead settings.
func ResilienceConfig(cfg *config.Config) resilience.Config {
	return resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
}

// NewSupabase builds the privileged Supabase client. Auth is always Supabase.
func NewSupabase(cfg *config.Config, httpClient *http.Client, logger *zap.Logger) *supabase.Client {
	rc := ResilienceConfig(cfg)
	return supabase.NewClient(
		httpClient,
		supabase.Options{
			BaseURL:        cfg.SupabaseURL,
			AnonKey:        cfg.SupabaseAnonKey,
			ServiceRoleKey: cfg.SupabaseServiceKey,
		},
		resilience.NewCircuitBreaker("supabase", supabase.IsSuccessful),
		resilience.NewBulkhead(rc.MaxConcurrency),
		rc,
		logger,
	)
}

// OpenStores connects the configured backend.
func OpenStores(ctx context.Context, cfg *config.Config, httpClient *http.Client, logger *zap.Logger) (*Stores, error) {
	sb := NewSupabase(cfg, httpClient, logger)
	s := &Stores{
		Identity: sb,
		Profiles: sb,
		Roles:    sb,
		Probes:   []domain.Probe{{Name: "supabase", Check: sb.Ping}},
	}
	local := localstore.New(cfg.LocalStorePath, logger)

	switch cfg.StoreBackend {
	case config.BackendSupabase:
		s.Customers = sb.UserScoped()
		s.AdminCustomers = sb
		s.LocalSource = local

	case config.BackendPostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		s.close = append(s.close, pool.Close)

		store := postgres.New(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		s.Postgres = store
		s.Profiles = store
		s.Roles = store
		s.Customers = store
		s.AdminCustomers = store
		s.LocalSource = local
		s.Probes = append(s.Probes, domain.Probe{Name: "postgres", Check: store.Ping})

	case config.BackendLocal:
		s.Customers = local
		s.AdminCustomers = local

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	logger.Info("stores ready",
		zap.String("backend", cfg.StoreBackend),
		zap.Bool("local_migration", s.LocalSource != nil),
	)
	return s, nil
}
