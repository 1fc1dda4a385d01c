// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database selection, order pricing, rate
// limiting, background jobs and observability.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"` // CORS_ALLOWED_ORIGINS
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool          `envconfig:"ENABLED" default:"false"`  // HSTS_ENABLED
	HSTSMaxAge time.Duration `envconfig:"MAX_AGE" default:"4320h"` // HSTS_MAX_AGE
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    `envconfig:"ENABLED" default:"false"`                         // OTEL_ENABLED
	Endpoint    string  `envconfig:"EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"` // OTEL_EXPORTER_OTLP_ENDPOINT
	Insecure    bool    `envconfig:"EXPORTER_OTLP_INSECURE" default:"true"`           // OTEL_EXPORTER_OTLP_INSECURE
	ServiceName string  `envconfig:"SERVICE_NAME" default:"go-pickup-backend"`        // OTEL_SERVICE_NAME
	SampleRatio float64 `envconfig:"TRACES_SAMPLER_ARG" default:"1.0"`                // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// OrdersConfig holds the pricing and timing rules of the order pipeline.
// Keys are read as ORDERS_<NAME> and fall back to the bare name, so
// TAX_RATE works as well as ORDERS_TAX_RATE.
type OrdersConfig struct {
	MinLeadTime     time.Duration   `envconfig:"MIN_LEAD_TIME" default:"15m"`   // ORDERS_MIN_LEAD_TIME
	PickupCodeTTL   time.Duration   `envconfig:"PICKUP_CODE_TTL" default:"30m"` // ORDERS_PICKUP_CODE_TTL
	TaxRate         decimal.Decimal `envconfig:"TAX_RATE" default:"0"`          // ORDERS_TAX_RATE, fraction e.g. 0.0825
	ServiceFeeCents int64           `envconfig:"SERVICE_FEE_CENTS" default:"0"` // ORDERS_SERVICE_FEE_CENTS
	Currency        string          `envconfig:"CURRENCY" default:"USD"`        // ORDERS_CURRENCY (ISO 4217)
}

// EffectsConfig sizes the post-commit effects queue.
type EffectsConfig struct {
	Workers     int           `envconfig:"WORKERS" default:"4"`        // EFFECTS_WORKERS
	Buffer      int           `envconfig:"BUFFER" default:"256"`       // EFFECTS_BUFFER
	TaskTimeout time.Duration `envconfig:"TASK_TIMEOUT" default:"10s"` // EFFECTS_TASK_TIMEOUT
}

// JobsConfig schedules the background sweepers.
type JobsConfig struct {
	RateLimitCleanupInterval time.Duration `envconfig:"RATE_LIMIT_CLEANUP_INTERVAL" default:"1h"`  // JOBS_RATE_LIMIT_CLEANUP_INTERVAL
	RateLimitRetention       time.Duration `envconfig:"RATE_LIMIT_RETENTION" default:"168h"`       // JOBS_RATE_LIMIT_RETENTION
	IdempotencyPurgeInterval time.Duration `envconfig:"IDEMPOTENCY_PURGE_INTERVAL" default:"10m"` // JOBS_IDEMPOTENCY_PURGE_INTERVAL
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        `envconfig:"PORT" default:"8080"`                // just the number
	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`         // e.g. 15s
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"10s"`  // e.g. 10s
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"20s"`        // e.g. 20s
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`         // e.g. 60s
	MaxHeaderBytes    int           `envconfig:"MAX_HEADER_BYTES" default:"1048576"` // bytes
	GinMode           string        `envconfig:"GIN_MODE" default:"release"`         // debug|release|test

	// Logging / Docs
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error|fatal|panic
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`
	SwaggerEnabled bool   `envconfig:"SWAGGER_ENABLED" default:"false"`
	APIBasePath    string `envconfig:"API_BASE_PATH" default:"/api/v1"`

	// Datastore
	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"` // sqlite|postgres
	DBPath      string `envconfig:"DB_PATH" default:"app.db"`   // SQLite path
	DatabaseURL string `envconfig:"DATABASE_URL"`               // postgres DSN

	// Auth
	JWTSecret string `envconfig:"JWT_SECRET"` // HS256 key; empty disables bearer tokens

	// Edge throttle (token bucket per caller)
	RateRPS   float64 `envconfig:"RATE_RPS" default:"5"`    // tokens per second (>= 0)
	RateBurst int     `envconfig:"RATE_BURST" default:"10"` // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig     `envconfig:"CORS"`
	Security SecurityConfig `envconfig:"HSTS"`

	// Idempotency
	IdempotencyTTL           time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
	IdempotencyProcessingTTL time.Duration `envconfig:"IDEMPOTENCY_PROCESSING_TTL" default:"5m"`

	Orders  OrdersConfig  `envconfig:"ORDERS"`
	Effects EffectsConfig `envconfig:"EFFECTS"`
	Jobs    JobsConfig    `envconfig:"JOBS"`

	// Observability
	OTEL OTELConfig `envconfig:"OTEL"`
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}

	// --- normalization ---
	cfg.GinMode = strings.ToLower(strings.TrimSpace(cfg.GinMode))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	cfg.APIBasePath = normalizeBasePath(cfg.APIBasePath)
	cfg.CORS.AllowedOrigins = trimAll(cfg.CORS.AllowedOrigins)
	cfg.Orders.Currency = strings.ToUpper(strings.TrimSpace(cfg.Orders.Currency))
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DBDriver {
	case "sqlite":
		if strings.TrimSpace(cfg.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return cfg, errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.IdempotencyProcessingTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_PROCESSING_TTL must be > 0")
	}
	if cfg.Orders.MinLeadTime < 0 {
		return cfg, errors.New("ORDERS_MIN_LEAD_TIME must be >= 0")
	}
	if cfg.Orders.PickupCodeTTL <= 0 {
		return cfg, errors.New("ORDERS_PICKUP_CODE_TTL must be > 0")
	}
	if cfg.Orders.TaxRate.IsNegative() || cfg.Orders.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return cfg, errors.New("ORDERS_TAX_RATE must be in [0,1)")
	}
	if cfg.Orders.ServiceFeeCents < 0 {
		return cfg, errors.New("ORDERS_SERVICE_FEE_CENTS must be >= 0")
	}
	if len(cfg.Orders.Currency) != 3 {
		return cfg, errors.New("ORDERS_CURRENCY must be a 3-letter code")
	}
	if cfg.Effects.Workers < 1 || cfg.Effects.Buffer < 1 || cfg.Effects.TaskTimeout <= 0 {
		return cfg, errors.New("effects queue needs workers >= 1, buffer >= 1 and a positive task timeout")
	}
	if cfg.Jobs.RateLimitCleanupInterval <= 0 || cfg.Jobs.IdempotencyPurgeInterval <= 0 || cfg.Jobs.RateLimitRetention <= 0 {
		return cfg, errors.New("background job intervals and retention must be positive")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// DSN returns the connection string for the configured driver.
func (c Config) DSN() string {
	if c.DBDriver == "postgres" {
		return c.DatabaseURL
	}
	return c.DBPath
}

func trimAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, p := range in {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
