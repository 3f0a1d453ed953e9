package observability

import (
	"time"

	"github.com/boddenberg/customer-registry-bff/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Migration result labels.
const (
	MigrationMigrated = "migrated"
	MigrationSkipped  = "skipped"
	MigrationFailed   = "failed"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	provisioning    *prometheus.CounterVec
	removals        *prometheus.CounterVec
	migrated        *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "registry_request_duration_seconds",
				Help:    "Duration of service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registry_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		provisioning: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registry_provisioning_total",
				Help: "User provisioning requests by outcome.",
			},
			[]string{"outcome"},
		),
		removals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registry_user_removals_total",
				Help: "User removal requests by result.",
			},
			[]string{"result"},
		),
		migrated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registry_migrated_records_total",
				Help: "Local customer records processed by migrations.",
			},
			[]string{"result"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registry_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registry_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrProvisioning counts one create-user request by its outcome.
func (m *Metrics) IncrProvisioning(outcome domain.ProvisionOutcome) {
	m.provisioning.WithLabelValues(string(outcome)).Inc()
}

// IncrRemoval counts one delete-user request ("removed", "removed_with_warning", "failed").
func (m *Metrics) IncrRemoval(result string) {
	m.removals.WithLabelValues(result).Inc()
}

// AddMigrated adds n records to the migration counter for result.
func (m *Metrics) AddMigrated(result string, n int) {
	if n <= 0 {
		return
	}
	m.migrated.WithLabelValues(result).Add(float64(n))
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}
