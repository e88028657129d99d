// Package requestcontext provides HTTP-independent accessors for
// request-scoped values.
//
// Middleware sets these; services read them. Keeping the package free of
// net/http lets services depend on request metadata without pulling in
// transport code. Tests inject values directly:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithActorID(ctx, adminID)
package requestcontext

import (
	"context"
	"time"

	id "foodlink/pkg/domain"
)

type (
	actorIDKey     struct{}
	actorRoleKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// ActorID retrieves the authenticated account id from the context.
// Returns the zero value if not set.
func ActorID(ctx context.Context) id.AccountID {
	if actor, ok := ctx.Value(actorIDKey{}).(id.AccountID); ok {
		return actor
	}
	return id.AccountID{}
}

// WithActorID injects the authenticated account id into the context.
func WithActorID(ctx context.Context, actor id.AccountID) context.Context {
	return context.WithValue(ctx, actorIDKey{}, actor)
}

// ActorRole retrieves the authenticated account role from the context.
func ActorRole(ctx context.Context) string {
	if role, ok := ctx.Value(actorRoleKey{}).(string); ok {
		return role
	}
	return ""
}

// WithActorRole injects the authenticated account role into the context.
func WithActorRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, actorRoleKey{}, role)
}

// RequestID retrieves the correlation id set by middleware.
func RequestID(ctx context.Context) string {
	if rid, ok := ctx.Value(requestIDKey{}).(string); ok {
		return rid
	}
	return ""
}

// WithRequestID injects a correlation id into the context.
func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, rid)
}

// Now returns the request time when one was injected, else the wall clock.
// Services use this instead of time.Now so expiry logic is testable.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the request time in the context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
