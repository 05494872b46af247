// Package admin guards the staff dashboard routes.
package admin

import (
	"log/slog"
	"net/http"

	"proctor/pkg/platform/middleware/auth"
)

// RequireAdmin chains bearer-token authentication with a role check, so a
// route group needs a single r.Use call.
func RequireAdmin(validator auth.JWTValidator, role string, logger *slog.Logger) func(http.Handler) http.Handler {
	authenticate := auth.RequireAuth(validator, logger)
	authorize := auth.RequireRole(role, logger)
	return func(next http.Handler) http.Handler {
		return authenticate(authorize(next))
	}
}
