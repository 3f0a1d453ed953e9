package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Store backends selectable with STORE_BACKEND.
const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
	BackendLocal    = "local"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE"`

	// Storage
	StoreBackend   string `envconfig:"STORE_BACKEND" default:"supabase"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	LocalStorePath string `envconfig:"LOCAL_STORE_PATH" default:"data/customers.json"`

	// Supabase
	SupabaseURL        string `envconfig:"SUPABASE_URL"`
	SupabaseAnonKey    string `envconfig:"SUPABASE_ANON_KEY"`
	SupabaseServiceKey string `envconfig:"SUPABASE_SERVICE_ROLE_KEY"`
	SupabaseJWTSecret  string `envconfig:"SUPABASE_JWT_SECRET"`

	// Postal code lookup
	ViaCEPURL      string        `envconfig:"VIACEP_URL" default:"https://viacep.com.br"`
	PostalCacheTTL time.Duration `envconfig:"POSTAL_CACHE_TTL" default:"24h"`

	// HTTP client / resilience
	HTTPTimeout    time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`
	MaxRetries     int           `envconfig:"MAX_RETRIES" default:"3"`
	InitialBackoff time.Duration `envconfig:"INITIAL_BACKOFF" default:"100ms"`
	MaxConcurrency int           `envconfig:"MAX_CONCURRENCY" default:"50"`

	// Observability
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// CORS
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements envconfig cannot express.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendSupabase, BackendLocal:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required when STORE_BACKEND=%s", BackendPostgres)
		}
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}

	// The identity provider is always Supabase Auth, whatever the table backend.
	if c.SupabaseURL == "" {
		return fmt.Errorf("config: SUPABASE_URL is required")
	}
	if c.SupabaseServiceKey == "" {
		return fmt.Errorf("config: SUPABASE_SERVICE_ROLE_KEY is required")
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("config: MAX_CONCURRENCY must be positive")
	}
	return nil
}
