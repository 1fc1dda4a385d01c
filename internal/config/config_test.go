package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

func TestMustLoad_Success_NoPanic(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MustLoad should not panic on valid defaults, got: %v", r)
		}
	}()
	cfg := MustLoad()
	if cfg.APIBasePath == "" {
		t.Fatalf("unexpected empty config from MustLoad")
	}
}

// --- defaults ---

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != "8080" || cfg.GinMode != "release" || cfg.APIBasePath != "/api/v1" {
		t.Fatalf("server defaults unexpected: %+v", cfg)
	}
	if cfg.DBDriver != "sqlite" || cfg.DSN() != "app.db" {
		t.Fatalf("datastore defaults unexpected: driver=%q dsn=%q", cfg.DBDriver, cfg.DSN())
	}
	if cfg.IdempotencyTTL != 24*time.Hour || cfg.IdempotencyProcessingTTL != 5*time.Minute {
		t.Fatalf("idempotency defaults unexpected: %v %v", cfg.IdempotencyTTL, cfg.IdempotencyProcessingTTL)
	}
	o := cfg.Orders
	if o.MinLeadTime != 15*time.Minute || o.PickupCodeTTL != 30*time.Minute ||
		!o.TaxRate.IsZero() || o.ServiceFeeCents != 0 || o.Currency != "USD" {
		t.Fatalf("order defaults unexpected: %+v", o)
	}
	if cfg.Effects.Workers != 4 || cfg.Effects.Buffer != 256 || cfg.Effects.TaskTimeout != 10*time.Second {
		t.Fatalf("effects defaults unexpected: %+v", cfg.Effects)
	}
	if cfg.Jobs.RateLimitCleanupInterval != time.Hour || cfg.Jobs.RateLimitRetention != 7*24*time.Hour || cfg.Jobs.IdempotencyPurgeInterval != 10*time.Minute {
		t.Fatalf("job defaults unexpected: %+v", cfg.Jobs)
	}
	if cfg.CORS.AllowedOrigins != nil {
		t.Fatalf("no CORS origins by default, got %#v", cfg.CORS.AllowedOrigins)
	}
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_Overrides(t *testing.T) {
	// Server
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird") // will normalize to "release"

	// Logging / Docs
	t.Setenv("LOG_LEVEL", "WARNING") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "true")
	t.Setenv("SWAGGER_ENABLED", "1")
	t.Setenv("API_BASE_PATH", "api/v2/") // -> "/api/v2"

	// Datastore
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/pickup?sslmode=disable")

	// Web protection
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("HSTS_ENABLED", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")

	// Orders
	t.Setenv("ORDERS_TAX_RATE", "0.0825")
	t.Setenv("ORDERS_SERVICE_FEE_CENTS", "99")
	t.Setenv("ORDERS_CURRENCY", "eur")
	t.Setenv("PICKUP_CODE_TTL", "45m") // unprefixed alias

	// OTEL
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}
	if cfg.LogLevel != "warn" || !cfg.LogPretty || !cfg.SwaggerEnabled || cfg.APIBasePath != "/api/v2" {
		t.Fatalf("logging/docs unexpected: %+v", cfg)
	}
	if cfg.DBDriver != "postgres" || !strings.HasPrefix(cfg.DSN(), "postgres://") {
		t.Fatalf("datastore unexpected: %q %q", cfg.DBDriver, cfg.DSN())
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security unexpected: %+v", cfg.Security)
	}
	if !cfg.Orders.TaxRate.Equal(decimal.RequireFromString("0.0825")) ||
		cfg.Orders.ServiceFeeCents != 99 ||
		cfg.Orders.Currency != "EUR" ||
		cfg.Orders.PickupCodeTTL != 45*time.Minute {
		t.Fatalf("orders unexpected: %+v", cfg.Orders)
	}
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

func TestLoad_ParseErrorSurfaces(t *testing.T) {
	t.Setenv("RATE_BURST", "nope")
	_, err := Load()
	if err == nil || !containsErr(err, "RATE_BURST") {
		t.Fatalf("expected parse error naming RATE_BURST, got %v", err)
	}
}

// --- Load validations (each case triggers exactly one validation error) ---

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"invalid LOG_LEVEL", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"empty PORT via spaces", map[string]string{"PORT": "   "}, "PORT must not be empty"},
		{"non-positive timeouts", map[string]string{"READ_TIMEOUT": "0s"}, "timeouts must be positive"},
		{"max header bytes <= 0", map[string]string{"MAX_HEADER_BYTES": "0"}, "MAX_HEADER_BYTES"},
		{"empty DB_PATH", map[string]string{"DB_PATH": "   "}, "DB_PATH must not be empty"},
		{"unknown driver", map[string]string{"DB_DRIVER": "mysql"}, "DB_DRIVER"},
		{"postgres without url", map[string]string{"DB_DRIVER": "postgres"}, "DATABASE_URL"},
		{"rate rps negative", map[string]string{"RATE_RPS": "-1"}, "RATE_RPS"},
		{"rate burst < 1", map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		{"hsts max age negative", map[string]string{"HSTS_MAX_AGE": "-1s"}, "HSTS_MAX_AGE"},
		{"idempotency ttl non-positive", map[string]string{"IDEMPOTENCY_TTL": "0s"}, "IDEMPOTENCY_TTL"},
		{"processing ttl non-positive", map[string]string{"IDEMPOTENCY_PROCESSING_TTL": "0s"}, "IDEMPOTENCY_PROCESSING_TTL"},
		{"negative lead time", map[string]string{"ORDERS_MIN_LEAD_TIME": "-1m"}, "MIN_LEAD_TIME"},
		{"tax rate of 100%", map[string]string{"ORDERS_TAX_RATE": "1"}, "TAX_RATE"},
		{"negative fee", map[string]string{"ORDERS_SERVICE_FEE_CENTS": "-5"}, "SERVICE_FEE_CENTS"},
		{"bad currency", map[string]string{"ORDERS_CURRENCY": "dollars"}, "CURRENCY"},
		{"no effect workers", map[string]string{"EFFECTS_WORKERS": "0"}, "effects queue"},
		{"zero cleanup interval", map[string]string{"JOBS_RATE_LIMIT_CLEANUP_INTERVAL": "0s"}, "background job"},
		{"otel sample ratio out of range", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil || !containsErr(err, tc.want) {
				t.Fatalf("expected error containing %q, got: %v", tc.want, err)
			}
		})
	}
}

// --- helpers ---

func TestHelpers_trimAll_and_normalizeBasePath(t *testing.T) {
	if out := trimAll(nil); out != nil {
		t.Fatalf("trimAll nil should return nil")
	}
	if out := trimAll([]string{" ", ""}); out != nil {
		t.Fatalf("trimAll of blanks should return nil, got %#v", out)
	}
	want := []string{"a", "b", "c"}
	if got := trimAll([]string{" a", " ", "b ", "  c  ", ""}); !reflect.DeepEqual(got, want) {
		t.Fatalf("trimAll mismatch: got %#v want %#v", got, want)
	}

	if normalizeBasePath("") != "/" {
		t.Fatalf("normalizeBasePath empty -> '/' failed")
	}
	if normalizeBasePath("v1") != "/v1" {
		t.Fatalf("normalizeBasePath missing leading slash failed")
	}
	if normalizeBasePath("/v1/") != "/v1" {
		t.Fatalf("normalizeBasePath trailing slash trim failed")
	}
	if normalizeBasePath(" / ") != "/" {
		t.Fatalf("normalizeBasePath whitespace failed")
	}
}

// Ensure tests don't pick up a developer's shell environment.
func TestMain(m *testing.M) {
	for _, k := range []string{"PORT", "DB_DRIVER", "DATABASE_URL", "LOG_LEVEL", "GIN_MODE", "JWT_SECRET", "ENABLED", "CURRENCY"} {
		os.Unsetenv(k)
	}
	os.Exit(m.Run())
}

// containsErr reports whether err's message contains the given substring.
func containsErr(err error, want string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), want)
}
