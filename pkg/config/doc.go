// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for everything except the postgres and identity-service URLs.
//
// # Configuration Structure
//
// Server settings:
//
//	CHARHUB_HOST="0.0.0.0"
//	CHARHUB_PORT="8080"
//	CHARHUB_HEALTH_PORT="9090"
//	CHARHUB_READ_TIMEOUT="15s"
//	CHARHUB_WRITE_TIMEOUT="15s"
//
// Database settings:
//
//	CHARHUB_POSTGRES_URL="postgres://localhost/characterhub"
//	CHARHUB_POSTGRES_MAX_CONNS="20"
//
// Identity service settings:
//
//	CHARHUB_IDENTITY_URL="https://hub.example.org/api"
//	CHARHUB_IDENTITY_SERVICE_TOKEN="..."
//	CHARHUB_IDENTITY_CACHE_TTL="5m"
//
// Org tree settings:
//
//	CHARHUB_ORGTREE_TTL="15m"
//	CHARHUB_ORGTREE_REFRESH_SCHEDULE="@every 10m"
//	CHARHUB_REDIS_URL="redis://localhost:6379"
//
// Observability settings:
//
//	CHARHUB_LOG_LEVEL="info"  # debug, info, warn, error
//	CHARHUB_METRICS_ENABLED="true"
//	CHARHUB_OTEL_ENABLED="true"
//	CHARHUB_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
package config
