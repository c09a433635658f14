package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/larpkeep/characterhub/pkg/observability"
	"github.com/larpkeep/characterhub/pkg/orgtree"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Identity service configuration
	Identity IdentityConfig

	// Org tree cache configuration
	OrgTree OrgTreeConfig

	// Observability configuration
	Observability ObservabilityConfig

	// VenueFile optionally overrides the built-in venue list (YAML)
	VenueFile string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// IdentityConfig holds identity-service client configuration
type IdentityConfig struct {
	BaseURL      string
	ServiceToken string

	// Token->identity cache
	CacheSize int
	CacheTTL  time.Duration
}

// OrgTreeConfig holds org tree cache configuration
type OrgTreeConfig struct {
	TTL time.Duration

	// Optional shared cache across replicas
	RedisURL string

	// Cron spec for background refresh; empty disables it
	RefreshSchedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel string

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTel observability.OTelConfig
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Identity:      loadIdentityConfig(),
		OrgTree:       loadOrgTreeConfig(),
		Observability: loadObservabilityConfig(),
		VenueFile:     getEnv("CHARHUB_VENUE_FILE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("CHARHUB_HOST", "0.0.0.0"),
		Port:            getEnv("CHARHUB_PORT", "8080"),
		ReadTimeout:     getEnvDuration("CHARHUB_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("CHARHUB_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("CHARHUB_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("CHARHUB_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("CHARHUB_HEALTH_PORT", "9090"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:             getEnv("CHARHUB_POSTGRES_URL", ""),
		MaxOpenConns:    getEnvInt("CHARHUB_POSTGRES_MAX_CONNS", 20),
		MaxIdleConns:    getEnvInt("CHARHUB_POSTGRES_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDuration("CHARHUB_POSTGRES_CONN_LIFETIME", 30*time.Minute),
	}
}

func loadIdentityConfig() IdentityConfig {
	return IdentityConfig{
		BaseURL:      getEnv("CHARHUB_IDENTITY_URL", ""),
		ServiceToken: getEnv("CHARHUB_IDENTITY_SERVICE_TOKEN", ""),
		CacheSize:    getEnvInt("CHARHUB_IDENTITY_CACHE_SIZE", 1024),
		CacheTTL:     getEnvDuration("CHARHUB_IDENTITY_CACHE_TTL", 5*time.Minute),
	}
}

func loadOrgTreeConfig() OrgTreeConfig {
	return OrgTreeConfig{
		TTL:             getEnvDuration("CHARHUB_ORGTREE_TTL", orgtree.DefaultTTL),
		RedisURL:        getEnv("CHARHUB_REDIS_URL", ""),
		RefreshSchedule: getEnv("CHARHUB_ORGTREE_REFRESH_SCHEDULE", "@every 10m"),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       getEnv("CHARHUB_LOG_LEVEL", "info"),
		MetricsEnabled: getEnvBool("CHARHUB_METRICS_ENABLED", true),
		OTel: observability.OTelConfig{
			Enabled:        getEnvBool("CHARHUB_OTEL_ENABLED", false),
			Endpoint:       getEnv("CHARHUB_OTEL_ENDPOINT", "localhost:4317"),
			ServiceName:    getEnv("CHARHUB_OTEL_SERVICE_NAME", "characterhub"),
			ServiceVersion: getEnv("CHARHUB_OTEL_SERVICE_VERSION", "1.0.0"),
			Insecure:       getEnvBool("CHARHUB_OTEL_INSECURE", true),
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Identity.BaseURL == "" {
		return fmt.Errorf("identity service URL is required")
	}

	if c.Observability.OTel.Enabled {
		if c.Observability.OTel.Endpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTel.ServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
