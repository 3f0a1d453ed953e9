package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/customer-registry-bff/internal/domain"
	"github.com/boddenberg/customer-registry-bff/internal/infra/observability"
	"github.com/boddenberg/customer-registry-bff/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var migrationTracer = otel.Tracer("service/migrator")

// Migrator copies customer records from local storage into the hosted store.
type Migrator struct {
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewMigrator creates a new migrator.
func NewMigrator(metrics *observability.Metrics, logger *zap.Logger) *Migrator {
	return &Migrator{metrics: metrics, logger: logger}
}

// Migrate copies every source record missing from target, with createdBy set to userID.
// Records whose id is already in target are skipped, so a rerun after a partial
// failure does not duplicate anything. The source is cleared only when every
// record made it across.
//
// Failures are reported in the MigrationReport; the error return is reserved
// for a cancelled context.
func (m *Migrator) Migrate(ctx context.Context, userID string, source port.CustomerSource, target port.CustomerStore) (*domain.MigrationReport, error) {
	ctx, span := migrationTracer.Start(ctx, "Migrator.Migrate")
	defer span.End()

	start := time.Now()
	defer func() {
		m.metrics.RecordRequestDuration("migrate_local", time.Since(start))
	}()

	report := &domain.MigrationReport{Errors: []string{}}

	records, err := source.ListCustomers(ctx)
	if err != nil {
		m.logger.Error("migration: reading local records failed", zap.Error(err))
		report.Errors = append(report.Errors, err.Error())
		return report, nil
	}
	if len(records) == 0 {
		report.Success = true
		return report, nil
	}

	existing, err := target.ListCustomers(ctx)
	if err != nil {
		m.logger.Error("migration: reading hosted records failed", zap.Error(err))
		report.Errors = append(report.Errors, err.Error())
		return report, nil
	}
	present := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		present[c.ID] = struct{}{}
	}

	for _, c := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if _, ok := present[c.ID]; ok && c.ID != "" {
			report.Skipped++
			continue
		}

		record := c
		record.CreatedBy = userID
		created, err := target.CreateCustomer(ctx, &record)
		if err != nil {
			m.logger.Warn("migration: record failed",
				zap.String("customer_id", c.ID),
				zap.Error(err),
			)
			report.Errors = append(report.Errors, fmt.Sprintf("Erro ao migrar cliente %s: %v", c.FullName, err))
			continue
		}
		present[created.ID] = struct{}{}
		report.Migrated++
	}

	if len(report.Errors) == 0 {
		if err := source.Clear(ctx); err != nil {
			m.logger.Error("migration: clearing local records failed", zap.Error(err))
			report.Errors = append(report.Errors, fmt.Sprintf("Erro ao limpar dados locais: %v", err))
		}
	}
	report.Success = len(report.Errors) == 0

	m.metrics.AddMigrated(observability.MigrationMigrated, report.Migrated)
	m.metrics.AddMigrated(observability.MigrationSkipped, report.Skipped)
	m.metrics.AddMigrated(observability.MigrationFailed, len(records)-report.Migrated-report.Skipped)

	span.SetAttributes(
		attribute.Int("migration.migrated", report.Migrated),
		attribute.Int("migration.skipped", report.Skipped),
		attribute.Int("migration.errors", len(report.Errors)),
	)
	m.logger.Info("migration finished",
		zap.String("user_id", userID),
		zap.Int("migrated", report.Migrated),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}
