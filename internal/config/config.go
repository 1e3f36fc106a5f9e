// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrInvalidConfig is returned when an environment value cannot be used.
var ErrInvalidConfig = errors.New("invalid configuration")

// Cache backends.
const (
	CacheMemory   = "memory"
	CacheRedis    = "redis"
	CachePostgres = "postgres"
	CacheNone     = "none"
)

// Config holds all runtime configuration.
type Config struct {
	Port        string
	Environment string
	RequireTLS  bool

	Google   GoogleConfig
	OpenAI   OpenAIConfig
	Cache    CacheConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Provider ProviderConfig
	Search   SearchConfig
	OTel     OTelConfig
}

// GoogleConfig configures the Google Maps collaborators.
type GoogleConfig struct {
	APIKey  string
	BaseURL string
}

// OpenAIConfig configures the venue describer. Descriptions are disabled
// when APIKey is empty.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// CacheConfig selects the response cache backend and its TTLs.
type CacheConfig struct {
	Backend        string
	RouteTTL       time.Duration
	SearchTTL      time.Duration
	DetailsTTL     time.Duration
	DescriptionTTL time.Duration
}

// RedisConfig configures the redis cache backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DatabaseConfig configures the postgres cache backend.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ConnectionString returns the PostgreSQL connection string.
func (c DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// ProviderConfig tunes the resilient HTTP clients.
type ProviderConfig struct {
	Timeout       time.Duration
	MaxRetries    uint64
	RetryInterval time.Duration
}

// SearchConfig tunes the search pipeline.
type SearchConfig struct {
	ResultLimit          int
	KeywordsPath         string
	ClusterRadiusMeters  float64
	ClusterMinNeighbors  int
	VibrancyRadiusMeters float64
	RateLimitPerMinute   int
}

// OTelConfig configures OpenTelemetry export.
type OTelConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SampleRatio  float64
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads configuration from the environment only.
func FromEnv() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		Port:        getEnvOrDefault("APP_PORT", "8080"),
		Environment: getEnvOrDefault("APP_ENV", "development"),
		RequireTLS:  p.bool("REQUIRE_TLS", false),
		Google: GoogleConfig{
			APIKey:  os.Getenv("GOOGLE_MAPS_API_KEY"),
			BaseURL: os.Getenv("GOOGLE_MAPS_BASE_URL"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   os.Getenv("OPENAI_MODEL"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
		},
		Cache: CacheConfig{
			Backend:        strings.ToLower(getEnvOrDefault("CACHE_BACKEND", CacheMemory)),
			RouteTTL:       p.duration("CACHE_ROUTE_TTL", time.Hour),
			SearchTTL:      p.duration("CACHE_TTL", 30*time.Minute),
			DetailsTTL:     p.duration("CACHE_DETAILS_TTL", 24*time.Hour),
			DescriptionTTL: p.duration("CACHE_DESCRIPTION_TTL", 24*time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       p.int("REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			Host:            getEnvOrDefault("DB_HOST", "localhost"),
			Port:            p.int("DB_PORT", 5432),
			User:            getEnvOrDefault("DB_USER", "midway"),
			Password:        getEnvOrDefault("DB_PASSWORD", "localdev"),
			Name:            getEnvOrDefault("DB_NAME", "midway"),
			SSLMode:         getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxOpenConns:    p.int("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    p.int("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: p.duration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Provider: ProviderConfig{
			Timeout:       p.duration("PROVIDER_TIMEOUT", 10*time.Second),
			MaxRetries:    uint64(max(p.int("PROVIDER_MAX_RETRIES", 2), 0)), //nolint:gosec // clamped non-negative
			RetryInterval: p.duration("PROVIDER_RETRY_INTERVAL", 250*time.Millisecond),
		},
		Search: SearchConfig{
			ResultLimit:          p.int("SEARCH_RESULT_LIMIT", 6),
			KeywordsPath:         os.Getenv("VIBE_KEYWORDS_PATH"),
			ClusterRadiusMeters:  p.float("CLUSTER_RADIUS_METERS", 500),
			ClusterMinNeighbors:  p.int("CLUSTER_MIN_NEIGHBORS", 2),
			VibrancyRadiusMeters: p.float("VIBRANCY_RADIUS_METERS", 300),
			RateLimitPerMinute:   p.int("SEARCH_RATE_LIMIT_PER_MINUTE", 30),
		},
		OTel: OTelConfig{
			Enabled:      p.bool("OTEL_ENABLED", false),
			OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRatio:  p.float("OTEL_TRACES_SAMPLE_RATIO", 1),
		},
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case CacheMemory, CacheRedis, CachePostgres, CacheNone:
	default:
		return fmt.Errorf("%w: CACHE_BACKEND must be one of memory, redis, postgres, none; got %q", ErrInvalidConfig, c.Cache.Backend)
	}
	if c.Search.ResultLimit <= 0 {
		return fmt.Errorf("%w: SEARCH_RESULT_LIMIT must be positive", ErrInvalidConfig)
	}
	if c.Search.ClusterMinNeighbors < 1 {
		return fmt.Errorf("%w: CLUSTER_MIN_NEIGHBORS must be at least 1", ErrInvalidConfig)
	}
	if c.Search.ClusterRadiusMeters <= 0 || c.Search.VibrancyRadiusMeters <= 0 {
		return fmt.Errorf("%w: cluster and vibrancy radii must be positive", ErrInvalidConfig)
	}
	if !(c.OTel.SampleRatio > 0 && c.OTel.SampleRatio <= 1) {
		return fmt.Errorf("%w: OTEL_TRACES_SAMPLE_RATIO must be in (0, 1]", ErrInvalidConfig)
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// parser collects every malformed value so they can be reported together.
type parser struct {
	errs []error
}

func (p *parser) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, v))
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, key, v))
		return def
	}
	return f
}

func (p *parser) bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidConfig, key, v))
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%w: %s=%q is not a duration", ErrInvalidConfig, key, v))
		return def
	}
	return d
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
