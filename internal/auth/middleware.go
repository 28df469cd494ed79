package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/tgiokas/dms-auth/internal/models"
	pkghttp "github.com/tgiokas/dms-auth/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

// UserContextKey is the key for storing the caller's UserContext in context
const UserContextKey contextKey = "user_context"

// Authenticate validates the Bearer token on the request, derives the
// caller's UserContext from its claims, and injects it into the request
// context. Malformed claims are rejected here, before any authorization
// decision can be made.
func Authenticate(verifier *TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				pkghttp.WriteUnauthorized(w, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				pkghttp.WriteUnauthorized(w, "invalid authorization header format")
				return
			}

			claims, err := verifier.Verify(parts[1])
			if err != nil {
				pkghttp.WriteUnauthorized(w, "invalid or expired token")
				return
			}

			userCtx, err := UserContextFromClaims(claims)
			if err != nil {
				pkghttp.WriteError(w, http.StatusUnauthorized, "malformed_claims",
					"token is missing the department/role claim structure")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, userCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserFromContext returns the caller's UserContext, or nil when the
// request did not pass Authenticate.
func GetUserFromContext(r *http.Request) *models.UserContext {
	userCtx, _ := r.Context().Value(UserContextKey).(*models.UserContext)
	return userCtx
}
