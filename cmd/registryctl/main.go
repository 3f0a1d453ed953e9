// Command registryctl is the operator tool of the customer registry: it
// migrates exported local records, applies the Postgres schema and inspects
// or assigns roles without going through the HTTP API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/boddenberg/customer-registry-bff/internal/bootstrap"
	"github.com/boddenberg/customer-registry-bff/internal/config"
	"github.com/boddenberg/customer-registry-bff/internal/infra/observability"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "registryctl",
		Short:        "Operator commands for the customer registry",
		SilenceUsage: true,
	}
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newSchemaCommand())
	root.AddCommand(newRoleCommand())
	return root
}

// env is the configuration and stores every command runs against.
type env struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *observability.Metrics
	stores  *bootstrap.Stores
}

func openEnv(ctx context.Context) (*env, error) {
	_ = config.LoadDotEnv(".env")
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFile)

	stores, err := bootstrap.OpenStores(ctx, cfg, &http.Client{Timeout: cfg.HTTPTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("opening stores: %w", err)
	}
	return &env{cfg: cfg, logger: logger, metrics: observability.NewMetrics(), stores: stores}, nil
}

func (e *env) close() {
	e.stores.Close()
	_ = e.logger.Sync()
}
