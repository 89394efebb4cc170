// Package requestcontext carries request-scoped values from middleware to
// services without either side importing net/http.
package requestcontext

import (
	"context"
	"time"

	id "whisper/pkg/domain"
)

type key int

const (
	keyUserID key = iota
	keyOperatorID
	keyClientIP
	keyUserAgent
	keyRequestID
	keyRequestTime
)

func value[T any](ctx context.Context, k key) T {
	v, _ := ctx.Value(k).(T)
	return v
}

// UserID is the authenticated inbox owner, empty for anonymous requests.
func UserID(ctx context.Context) id.RecipientID { return value[id.RecipientID](ctx, keyUserID) }

func WithUserID(ctx context.Context, userID id.RecipientID) context.Context {
	return context.WithValue(ctx, keyUserID, userID)
}

// OperatorID is the subject of a validated console capability.
func OperatorID(ctx context.Context) string { return value[string](ctx, keyOperatorID) }

func WithOperatorID(ctx context.Context, operatorID string) context.Context {
	return context.WithValue(ctx, keyOperatorID, operatorID)
}

func ClientIP(ctx context.Context) string { return value[string](ctx, keyClientIP) }

func UserAgent(ctx context.Context) string { return value[string](ctx, keyUserAgent) }

// WithClientMetadata records what the sender's connection revealed. Service
// tests use it in place of the metadata middleware.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, keyClientIP, clientIP)
	return context.WithValue(ctx, keyUserAgent, userAgent)
}

func RequestID(ctx context.Context) string { return value[string](ctx, keyRequestID) }

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, keyRequestID, requestID)
}

// Now is the request's pinned clock, or the wall clock outside a request.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(keyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, keyRequestTime, t)
}
