// Package observability provides Prometheus metrics and optional
// OpenTelemetry tracing for the service. Metrics live in a dedicated registry
// exposed on the health port; tracing exports over OTLP/gRPC when enabled.
package observability
