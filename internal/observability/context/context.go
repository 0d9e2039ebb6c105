// Package obscontext carries request identity for logs and traces.
package obscontext

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type orgIDKey struct{}
type actorKey struct{}

type actorValue struct {
	actorType string
	actorID   string
}

// WithRequestID stores the request id in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request id or empty.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithOrgID stores the org id, as a string, for log enrichment.
func WithOrgID(ctx context.Context, orgID string) context.Context {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return ctx
	}
	return context.WithValue(ctx, orgIDKey{}, orgID)
}

// OrgIDFromContext returns the org id or empty.
func OrgIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(orgIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithActor stores the acting principal for log enrichment.
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorValue{
		actorType: strings.TrimSpace(actorType),
		actorID:   strings.TrimSpace(actorID),
	})
}

// ActorFromContext returns the actor type and id, or empty strings.
func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	if v, ok := ctx.Value(actorKey{}).(actorValue); ok {
		return v.actorType, v.actorID
	}
	return "", ""
}
