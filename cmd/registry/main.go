package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/customer-registry-bff/internal/bootstrap"
	"github.com/boddenberg/customer-registry-bff/internal/config"
	"github.com/boddenberg/customer-registry-bff/internal/domain"
	"github.com/boddenberg/customer-registry-bff/internal/handler"
	"github.com/boddenberg/customer-registry-bff/internal/infra/cache"
	"github.com/boddenberg/customer-registry-bff/internal/infra/observability"
	"github.com/boddenberg/customer-registry-bff/internal/infra/resilience"
	"github.com/boddenberg/customer-registry-bff/internal/infra/viacep"
	"github.com/boddenberg/customer-registry-bff/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFile)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("supabase_url", cfg.SupabaseURL),
		zap.Bool("local_jwt_verification", cfg.SupabaseJWTSecret != ""),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("postal_cache_ttl", cfg.PostalCacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "customer-registry-bff")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Stores ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	stores, err := bootstrap.OpenStores(startCtx, cfg, httpClient, logger)
	cancelStart()
	if err != nil {
		logger.Fatal("failed to open stores", zap.Error(err))
	}
	defer stores.Close()

	// --- Postal code lookup ---
	postalCache := cache.New[*domain.PostalAddress](cfg.PostalCacheTTL)
	defer postalCache.Close()
	postalClient := viacep.NewClient(
		httpClient,
		cfg.ViaCEPURL,
		resilience.NewCircuitBreaker("viacep", viacep.IsSuccessful),
		bootstrap.ResilienceConfig(cfg),
	)

	// --- Services ---
	resolver := service.NewRoleResolver(stores.Roles, logger)
	deps := handler.Deps{
		Sessions:        service.NewSessionService(stores.Identity, resolver, cfg.SupabaseJWTSecret, logger),
		Roles:           resolver,
		Provisioner:     service.NewProvisioner(stores.Identity, stores.Profiles, stores.Roles, metrics, logger),
		Customers:       service.NewCustomerService(stores.Customers, metrics, logger),
		Postal:          service.NewPostalService(postalClient, postalCache, metrics, logger),
		Migrator:        service.NewMigrator(metrics, logger),
		LocalSource:     stores.LocalSource,
		MigrationTarget: stores.Customers,
		Backend:         cfg.StoreBackend,
		Probes:          stores.Probes,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		Metrics:         metrics,
		Logger:          logger,
	}

	// --- Router ---
	router := handler.NewRouter(deps)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
