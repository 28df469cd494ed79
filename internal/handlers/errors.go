package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/tgiokas/dms-auth/internal/models"
	pkghttp "github.com/tgiokas/dms-auth/pkg/http"
)

// writeServiceError maps the service error taxonomy to HTTP responses. The
// mapping lives here and nowhere else; services never see status codes.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password")
	case errors.Is(err, models.ErrSessionExpired):
		pkghttp.WriteError(w, http.StatusUnauthorized, "session_expired", "Session expired or already used, restart the flow")
	case errors.Is(err, models.ErrInvalidCode):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_code", "Verification code rejected")
	case errors.Is(err, models.ErrMalformedClaims):
		pkghttp.WriteError(w, http.StatusUnauthorized, "malformed_claims", "Token is missing the department/role claim structure")
	case errors.Is(err, models.ErrUpstreamUnavailable):
		pkghttp.WriteServiceUnavailable(w, "Identity provider is unavailable, try again later")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, err.Error())
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Resource not found")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "Resource already exists")
	default:
		logger.Error("unhandled service error", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
