// Package contextkeys provides centralized context key definitions.
//
// All context keys used across the application are defined here. This
// prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import (
	"context"

	"github.com/larpkeep/characterhub/pkg/authz"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// ActorKey contains *authz.Actor
	// Set by: middleware.Authenticator (pkg/middleware/auth.go)
	// Required by: every guarded resource handler
	ActorKey Key = "actor"

	// RequestIDKey contains the request ID string (UUID)
	// Set by: middleware.RequestLogger
	// Used by: logging, error responses
	RequestIDKey Key = "request_id"
)

// WithActor adds the resolved caller to the context.
func WithActor(ctx context.Context, actor *authz.Actor) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// ActorFrom extracts the resolved caller, or nil when the request is
// unauthenticated.
func ActorFrom(ctx context.Context) *authz.Actor {
	actor, _ := ctx.Value(ActorKey).(*authz.Actor)
	return actor
}

// WithRequestID adds the request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestIDFrom extracts the request ID, or "" when absent.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
