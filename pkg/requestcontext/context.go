// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets the values; services read them without importing net/http.
//
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests inject a fixed clock:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

type (
	requestIDKey   struct{}
	dealIDKey      struct{}
	requestTimeKey struct{}
)

// RequestID retrieves the correlation ID of the current request.
func RequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return requestID
	}
	return ""
}

// WithRequestID injects a request correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// DealID retrieves the deal the request operates on.
func DealID(ctx context.Context) string {
	if dealID, ok := ctx.Value(dealIDKey{}).(string); ok {
		return dealID
	}
	return ""
}

// WithDealID injects the deal identifier into the context.
func WithDealID(ctx context.Context, dealID string) context.Context {
	return context.WithValue(ctx, dealIDKey{}, dealID)
}

// Now returns the request time captured by middleware, falling back to the
// wall clock when none was set.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a fixed request time.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
