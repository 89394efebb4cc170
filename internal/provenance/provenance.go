// Package provenance determines best-effort sender metadata for a submission.
// Nothing here is proof of identity and no failure ever blocks a send.
package provenance

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"whisper/internal/message/models"
	"whisper/pkg/requestcontext"
)

// ErrLookupFailed is returned by lookups that could not determine the origin.
// Resolve absorbs it.
var ErrLookupFailed = errors.New("provenance lookup failed")

// DefaultTimeout bounds a lookup when none is configured.
const DefaultTimeout = 2 * time.Second

// Lookup determines the sender's origin from the request context.
type Lookup interface {
	Lookup(ctx context.Context) (models.Provenance, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context) (models.Provenance, error)

func (f LookupFunc) Lookup(ctx context.Context) (models.Provenance, error) {
	return f(ctx)
}

type result struct {
	p   models.Provenance
	err error
}

// Resolve runs lookup within timeout and never fails: any error, timeout or
// empty field becomes "unknown". The client summary comes from the request's
// User-Agent even when the lookup fails.
func Resolve(ctx context.Context, lookup Lookup, timeout time.Duration, logger *slog.Logger) (models.Provenance, bool) {
	fallback := models.Provenance{IP: models.Unknown, Client: ClientSummary(requestcontext.UserAgent(ctx))}
	if lookup == nil {
		return fallback.Normalized(), false
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		p, err := lookup.Lookup(ctx)
		done <- result{p: p, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			logFallback(ctx, logger, r.err)
			return fallback.Normalized(), false
		}
		if r.p.Client == "" {
			r.p.Client = fallback.Client
		}
		return r.p.Normalized(), r.p.IP != "" && r.p.IP != models.Unknown
	case <-ctx.Done():
		logFallback(ctx, logger, ctx.Err())
		return fallback.Normalized(), false
	}
}

func logFallback(ctx context.Context, logger *slog.Logger, err error) {
	if logger == nil {
		return
	}
	logger.DebugContext(ctx, "provenance unavailable, recording unknown",
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
}
