package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "armory/pkg/domain-errors"
	"armory/pkg/platform/httputil"
)

// AdminTokenHeader carries the shared secret for admin routes.
const AdminTokenHeader = "X-Admin-Token"

// RequireAdminToken guards admin routes with a shared secret. An empty
// expected token leaves the routes open, which is only meant for local use.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if expectedToken == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(AdminTokenHeader)
			if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", GetRequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
