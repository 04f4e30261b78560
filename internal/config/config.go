// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, storage, engagement rules (boost cooldown,
// transaction retry budget, page sizes), rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "design-engagement")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
	Environment string  // DEPLOYMENT_ENVIRONMENT, resource attribute when set
}

// DBConfig selects the storage backend.
type DBConfig struct {
	Driver       string // DB_DRIVER: sqlite|postgres
	Path         string // DB_PATH: SQLite file
	DSN          string // DB_DSN: PostgreSQL connection string
	MaxOpenConns int    // DB_MAX_OPEN_CONNS: 0 → driver default
}

// EngagementConfig holds the like/boost/feed business settings.
type EngagementConfig struct {
	BoostCooldown     time.Duration // BOOST_COOLDOWN, global per-actor window
	TxMaxAttempts     int           // TX_MAX_ATTEMPTS
	TxBaseBackoff     time.Duration // TX_BASE_BACKOFF
	TxMaxBackoff      time.Duration // TX_MAX_BACKOFF
	GalleryPageSize   int           // GALLERY_PAGE_SIZE
	MaxPageSize       int           // MAX_PAGE_SIZE
	RankingLimit      int           // RANKING_LIMIT
	SyntheticPrefixes []string      // SYNTHETIC_ACTOR_PREFIXES
}

// NotifyConfig guards the notification sink with a circuit breaker.
type NotifyConfig struct {
	BreakerFailures int           // NOTIFY_BREAKER_FAILURES: consecutive failures before opening
	BreakerTimeout  time.Duration // NOTIFY_BREAKER_TIMEOUT: open → half-open delay
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test
	ShutdownTimeout   time.Duration // graceful shutdown budget

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DB DBConfig

	// Engagement
	Engagement EngagementConfig
	Notify     NotifyConfig

	// Rate limiting
	RateRPS        float64 // tokens per second (>= 0)
	RateBurst      int     // bucket size (>= 1)
	RateWriteRPS   float64 // engagement writes per second per actor (>= 0)
	RateWriteBurst int     // engagement write bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
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
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),
		ShutdownTimeout:   getdur("SHUTDOWN_TIMEOUT", 10*time.Second),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Storage
		DB: DBConfig{
			Driver:       strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:         getenv("DB_PATH", "app.db"),
			DSN:          getenv("DB_DSN", ""),
			MaxOpenConns: getint("DB_MAX_OPEN_CONNS", 0),
		},

		// Engagement
		Engagement: EngagementConfig{
			BoostCooldown:     getdur("BOOST_COOLDOWN", 7*24*time.Hour),
			TxMaxAttempts:     getint("TX_MAX_ATTEMPTS", 5),
			TxBaseBackoff:     getdur("TX_BASE_BACKOFF", 10*time.Millisecond),
			TxMaxBackoff:      getdur("TX_MAX_BACKOFF", 250*time.Millisecond),
			GalleryPageSize:   getint("GALLERY_PAGE_SIZE", 12),
			MaxPageSize:       getint("MAX_PAGE_SIZE", 100),
			RankingLimit:      getint("RANKING_LIMIT", 50),
			SyntheticPrefixes: splitCSV(getenv("SYNTHETIC_ACTOR_PREFIXES", "sim-,bot-,test-agent-")),
		},
		Notify: NotifyConfig{
			BreakerFailures: getint("NOTIFY_BREAKER_FAILURES", 5),
			BreakerTimeout:  getdur("NOTIFY_BREAKER_TIMEOUT", 30*time.Second),
		},

		// Rate limiting
		RateRPS:        getfloat("RATE_RPS", 5.0),
		RateBurst:      getint("RATE_BURST", 10),
		RateWriteRPS:   getfloat("RATE_WRITE_RPS", 2.0),
		RateWriteBurst: getint("RATE_WRITE_BURST", 5),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "design-engagement"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
			Environment: strings.TrimSpace(os.Getenv("DEPLOYMENT_ENVIRONMENT")),
		},
	}

	// --- normalization ---
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
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 || cfg.ShutdownTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DB.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DB.DSN) == "" {
			return cfg, errors.New("DB_DSN must not be empty when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if cfg.DB.MaxOpenConns < 0 {
		return cfg, errors.New("DB_MAX_OPEN_CONNS must be >= 0")
	}
	e := cfg.Engagement
	if e.BoostCooldown <= 0 {
		return cfg, errors.New("BOOST_COOLDOWN must be > 0")
	}
	if e.TxMaxAttempts < 1 || e.TxMaxAttempts > 20 {
		return cfg, errors.New("TX_MAX_ATTEMPTS must be between 1 and 20")
	}
	if e.TxBaseBackoff <= 0 || e.TxMaxBackoff < e.TxBaseBackoff {
		return cfg, errors.New("TX_BASE_BACKOFF must be > 0 and <= TX_MAX_BACKOFF")
	}
	if e.GalleryPageSize < 1 || e.MaxPageSize < e.GalleryPageSize {
		return cfg, errors.New("GALLERY_PAGE_SIZE must be >= 1 and <= MAX_PAGE_SIZE")
	}
	if e.RankingLimit < 1 {
		return cfg, errors.New("RANKING_LIMIT must be >= 1")
	}
	if cfg.Notify.BreakerFailures < 1 {
		return cfg, errors.New("NOTIFY_BREAKER_FAILURES must be >= 1")
	}
	if cfg.Notify.BreakerTimeout <= 0 {
		return cfg, errors.New("NOTIFY_BREAKER_TIMEOUT must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.RateWriteRPS < 0 || cfg.RateWriteBurst < 1 {
		return cfg, errors.New("RATE_WRITE_RPS must be >= 0 and RATE_WRITE_BURST >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
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
