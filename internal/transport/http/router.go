package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	consolehandler "whisper/internal/console/handler"
	identityhandler "whisper/internal/identity/handler"
	inboxhandler "whisper/internal/inbox/handler"
	"whisper/internal/platform/metrics"
	relayhandler "whisper/internal/relay/handler"
	reporthandler "whisper/internal/report/handler"
	"whisper/pkg/platform/httputil"
	"whisper/pkg/platform/middleware/admin"
	"whisper/pkg/platform/middleware/auth"
	"whisper/pkg/platform/middleware/metadata"
	request "whisper/pkg/platform/middleware/request"
	"whisper/pkg/platform/middleware/requesttime"
)

const healthTimeout = 2 * time.Second

// HealthCheck reports whether a backing dependency can serve requests.
type HealthCheck func(ctx context.Context) error

// Deps holds everything the router mounts. Handlers left nil are not routed.
type Deps struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Tokens  auth.TokenValidator
	Health  map[string]HealthCheck

	Identity *identityhandler.Handler
	Relay    *relayhandler.Handler
	Inbox    *inboxhandler.Handler
	Report   *reporthandler.Handler
	Console  *consolehandler.Handler
}

// NewRouter wires public, owner and console routes. The handlers stay thin and
// delegate to their services; authentication happens here.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}

	r.Get("/healthz", healthHandler(d.Health))
	r.Handle("/metrics", metrics.Handler())

	// Anonymous: profile lookup and submission through the share link.
	if d.Identity != nil {
		d.Identity.RegisterPublic(r)
	}
	if d.Relay != nil {
		d.Relay.Register(r)
	}
	if d.Console != nil {
		d.Console.Register(r)
	}

	// Inbox owner.
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(d.Tokens, d.Logger))
		if d.Identity != nil {
			d.Identity.RegisterOwner(r)
		}
		if d.Inbox != nil {
			d.Inbox.Register(r)
		}
	})

	// Privileged console.
	r.Group(func(r chi.Router) {
		r.Use(admin.RequireCapability(d.Tokens, admin.ScopeReportRead, d.Logger))
		if d.Report != nil {
			d.Report.Register(r)
		}
	})

	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		var (
			mu      sync.Mutex
			g       errgroup.Group
			results = make(map[string]string, len(checks))
			failed  bool
		)
		for name, check := range checks {
			g.Go(func() error {
				err := check(ctx)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					results[name] = err.Error()
					failed = true
					return nil
				}
				results[name] = "ok"
				return nil
			})
		}
		_ = g.Wait()

		status := http.StatusOK
		resp := healthResponse{Status: "ok"}
		if failed {
			status = http.StatusServiceUnavailable
			resp.Status = "degraded"
		}
		if len(results) > 0 {
			resp.Checks = results
		}
		httputil.WriteJSON(w, status, resp)
	}
}
