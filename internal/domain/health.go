package domain

import "context"

// ============================================================
// Readiness
// ============================================================

// HealthStatus is returned by GET /readyz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Backend  string          `json:"backend"`
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth is the result of probing one dependency.
type ServiceHealth struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

// Probe is a named readiness check of one dependency.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}
