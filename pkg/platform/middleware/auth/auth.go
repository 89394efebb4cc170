package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	id "whisper/pkg/domain"
	request "whisper/pkg/platform/middleware/request"
	"whisper/pkg/requestcontext"
)

// Token kinds carried in the "kind" claim.
const (
	KindUser       = "user"
	KindCapability = "capability"
)

// TokenValidator defines the interface for validating bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims represents the claims the middleware needs from a validated token.
type Claims struct {
	Subject string
	Kind    string
	Scopes  []string
}

// HasScope reports whether the token grants scope.
func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// BearerClaims validates the Authorization header and returns its claims.
// It writes a 401 response and returns false when the header is missing or invalid.
func BearerClaims(w http.ResponseWriter, r *http.Request, validator TokenValidator, logger *slog.Logger) (*Claims, bool) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		logger.WarnContext(ctx, "unauthorized access - missing token",
			"request_id", requestID,
		)
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
		return nil, false
	}

	claims, err := validator.ValidateToken(token)
	if err != nil {
		logger.WarnContext(ctx, "unauthorized access - invalid token",
			"error", err,
			"request_id", requestID,
		)
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
		return nil, false
	}
	return claims, true
}

// RequireAuth admits requests carrying a valid user token and exposes the
// inbox owner through requestcontext.UserID.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := BearerClaims(w, r, validator, logger)
			if !ok {
				return
			}
			ctx := r.Context()
			if claims.Kind != KindUser {
				logger.WarnContext(ctx, "unauthorized access - wrong token kind",
					"kind", claims.Kind,
					"request_id", request.GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "User token required")
				return
			}
			userID, err := id.ParseRecipientID(claims.Subject)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid token subject")
				return
			}

			ctx = requestcontext.WithUserID(ctx, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
