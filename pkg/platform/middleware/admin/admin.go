// Package admin gates the privileged console behind a server-issued, signed
// capability instead of a shared secret compared in the client.
package admin

import (
	"log/slog"
	"net/http"

	"whisper/pkg/platform/middleware/auth"
	request "whisper/pkg/platform/middleware/request"
	"whisper/pkg/requestcontext"
)

// ScopeReportRead grants access to the message/recipient audit join.
const ScopeReportRead = "report:read"

// RequireCapability admits requests carrying a capability token with scope.
func RequireCapability(validator auth.TokenValidator, scope string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.BearerClaims(w, r, validator, logger)
			if !ok {
				return
			}
			ctx := r.Context()
			if claims.Kind != auth.KindCapability || !claims.HasScope(scope) {
				logger.WarnContext(ctx, "console capability rejected",
					"subject", claims.Subject,
					"scope", scope,
					"request_id", request.GetRequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"capability does not grant this scope"}`))
				return
			}

			ctx = requestcontext.WithOperatorID(ctx, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
