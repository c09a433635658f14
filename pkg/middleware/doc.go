// Package middleware provides the HTTP middleware chain: caller
// authentication against the identity service, structured request logging
// with request IDs, and per-route prometheus instrumentation.
package middleware
