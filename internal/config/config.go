// Package config loads service configuration from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/heyysiri/EcoTrail/internal/database"
)

// Points backends.
const (
	PointsBackendMemory   = "memory"
	PointsBackendPostgres = "postgres"
	PointsBackendRedis    = "redis"
)

// Config holds all service configuration.
type Config struct {
	Port     string `mapstructure:"APP_PORT"`
	Env      string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	GoogleMapsAPIKey  string        `mapstructure:"GOOGLE_MAPS_API_KEY"`
	GoogleMapsBaseURL string        `mapstructure:"GOOGLE_MAPS_BASE_URL"`
	RouteCallTimeout  time.Duration `mapstructure:"ROUTE_CALL_TIMEOUT"`
	RouteCacheTTL     time.Duration `mapstructure:"ROUTE_CACHE_TTL"`
	RouteStaleTTL     time.Duration `mapstructure:"ROUTE_STALE_TTL"`

	DBHost            string        `mapstructure:"DB_HOST"`
	DBPort            int           `mapstructure:"DB_PORT"`
	DBUser            string        `mapstructure:"DB_USER"`
	DBPassword        string        `mapstructure:"DB_PASSWORD"`
	DBName            string        `mapstructure:"DB_NAME"`
	DBSSLMode         string        `mapstructure:"DB_SSL_MODE"`
	DBMaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetime time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME"`

	RedisURL      string `mapstructure:"REDIS_URL"`
	PointsBackend string `mapstructure:"POINTS_BACKEND"`

	JWTSigningKey string        `mapstructure:"JWT_SIGNING_KEY"`
	JWTIssuer     string        `mapstructure:"JWT_ISSUER"`
	JWTAudience   string        `mapstructure:"JWT_AUDIENCE"`
	JWTAccessTTL  time.Duration `mapstructure:"JWT_ACCESS_TTL"`
	JWTRefreshTTL time.Duration `mapstructure:"JWT_REFRESH_TTL"`

	OTelEnabled     bool    `mapstructure:"OTEL_ENABLED"`
	OTelEndpoint    string  `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelSampleRatio float64 `mapstructure:"OTEL_SAMPLE_RATIO"`
	RequireTLS      bool    `mapstructure:"REQUIRE_TLS"`

	// Requests per minute; 0 disables the tier.
	RateLimitAuth     int `mapstructure:"RATE_LIMIT_AUTH"`
	RateLimitRouting  int `mapstructure:"RATE_LIMIT_ROUTING"`
	RateLimitStandard int `mapstructure:"RATE_LIMIT_STANDARD"`

	PubSubProjectID    string `mapstructure:"PUBSUB_PROJECT_ID"`
	PubSubSubscription string `mapstructure:"PUBSUB_SUBSCRIPTION"`
	WarmupConcurrency  int    `mapstructure:"WARMUP_CONCURRENCY"`
}

var defaults = map[string]any{
	"APP_PORT":  "8080",
	"APP_ENV":   "development",
	"LOG_LEVEL": "info",

	"GOOGLE_MAPS_API_KEY":  "",
	"GOOGLE_MAPS_BASE_URL": "https://maps.googleapis.com",
	"ROUTE_CALL_TIMEOUT":   "10s",
	"ROUTE_CACHE_TTL":      "5m",
	"ROUTE_STALE_TTL":      "15m",

	"DB_HOST":              "localhost",
	"DB_PORT":              5432,
	"DB_USER":              "ecotrail",
	"DB_PASSWORD":          "localdev",
	"DB_NAME":              "ecotrail",
	"DB_SSL_MODE":          "disable",
	"DB_MAX_OPEN_CONNS":    10,
	"DB_MAX_IDLE_CONNS":    5,
	"DB_CONN_MAX_LIFETIME": "5m",

	"REDIS_URL":      "",
	"POINTS_BACKEND": PointsBackendPostgres,

	"JWT_SIGNING_KEY": "",
	"JWT_ISSUER":      "ecotrail",
	"JWT_AUDIENCE":    "ecotrail-app",
	"JWT_ACCESS_TTL":  "1h",
	"JWT_REFRESH_TTL": "720h",

	"OTEL_ENABLED":                false,
	"OTEL_EXPORTER_OTLP_ENDPOINT": "localhost:4317",
	"OTEL_SAMPLE_RATIO":           1.0,
	"REQUIRE_TLS":                 false,
	"RATE_LIMIT_AUTH":             10,
	"RATE_LIMIT_ROUTING":          30,
	"RATE_LIMIT_STANDARD":         100,
	"PUBSUB_PROJECT_ID":           "",
	"PUBSUB_SUBSCRIPTION":         "route-warmup",
	"WARMUP_CONCURRENCY":          3,
}

// Load reads configuration from path/.env (if present) and the environment.
// Environment variables take precedence over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	// Unmarshal only sees keys viper knows about, so every key gets a default.
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that have no safe fallback.
func (c *Config) Validate() error {
	switch c.PointsBackend {
	case PointsBackendMemory, PointsBackendPostgres:
	case PointsBackendRedis:
		if c.RedisURL == "" {
			return errors.New("POINTS_BACKEND=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown POINTS_BACKEND %q", c.PointsBackend)
	}

	if c.RouteCallTimeout < 0 || c.RouteCacheTTL < 0 || c.RouteStaleTTL < 0 {
		return errors.New("route timeouts and TTLs must not be negative")
	}
	if c.RateLimitAuth < 0 || c.RateLimitRouting < 0 || c.RateLimitStandard < 0 {
		return errors.New("rate limits must not be negative")
	}

	if c.IsProduction() && c.JWTSigningKey == "" {
		return errors.New("JWT_SIGNING_KEY is required in production")
	}

	return nil
}

// IsProduction reports whether the service runs in the production environment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// UsesPostgres reports whether accounts and points need a database connection.
// The memory backend keeps accounts in memory too.
func (c *Config) UsesPostgres() bool {
	return c.PointsBackend != PointsBackendMemory
}

// Database returns the connection settings for the database package.
func (c *Config) Database() database.Config {
	return database.Config{
		Host:            c.DBHost,
		Port:            c.DBPort,
		User:            c.DBUser,
		Password:        c.DBPassword,
		Database:        c.DBName,
		SSLMode:         c.DBSSLMode,
		MaxOpenConns:    c.DBMaxOpenConns,
		MaxIdleConns:    c.DBMaxIdleConns,
		ConnMaxLifetime: c.DBConnMaxLifetime,
	}
}
