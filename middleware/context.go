package middleware

import (
	"context"

	"github.com/glazeworks/actiongate/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	// ActorKey is the context key for the authenticated actor context
	ActorKey contextKey = "actor"

	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
)

// WithActor adds an actor context to the request context
func WithActor(ctx context.Context, actor *models.ActorContext) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// GetActorFromContext retrieves the actor context, or nil when absent
func GetActorFromContext(ctx context.Context) *models.ActorContext {
	if val := ctx.Value(ActorKey); val != nil {
		if actor, ok := val.(*models.ActorContext); ok {
			return actor
		}
	}
	return nil
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestIDFromContext retrieves the request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return ""
}
