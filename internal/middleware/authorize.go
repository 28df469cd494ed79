package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/tgiokas/dms-auth/internal/auth"
	"github.com/tgiokas/dms-auth/internal/models"
	"github.com/tgiokas/dms-auth/internal/services"
	pkghttp "github.com/tgiokas/dms-auth/pkg/http"
)

// Authorize enforces the rule engine's decision on every request it wraps.
// It must run after auth.Authenticate, which puts the caller's UserContext on
// the request. A missing context or malformed claims is a 401; a deny
// decision is a 403.
func Authorize(engine *services.AuthorizationEngine, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := auth.GetUserFromContext(r)

			allowed, err := engine.Authorize(r.Context(), caller, r.Method, r.URL.Path)
			if err != nil {
				if errors.Is(err, models.ErrMalformedClaims) {
					pkghttp.WriteError(w, http.StatusUnauthorized, "malformed_claims",
						"Token is missing the department/role claim structure")
					return
				}
				logger.Error("authorization evaluation failed", slog.Any("error", err))
				pkghttp.WriteInternalError(w, "Authorization unavailable")
				return
			}
			if !allowed {
				pkghttp.WriteForbidden(w, "You do not have permission to perform this action")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
