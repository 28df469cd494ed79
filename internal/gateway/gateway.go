// Package gateway is the boundary to the external identity provider. The
// core depends only on the capability interfaces below; the Keycloak HTTP
// client is the single implementation of all of them.
package gateway

import (
	"context"

	"github.com/tgiokas/dms-auth/internal/models"
)

// TokenClient is the credential-validation and token-lifecycle capability.
// Every call is a synchronous request/response to the provider; transport
// failures and unexpected statuses surface uniformly as
// models.ErrUpstreamUnavailable, kept distinct from ErrInvalidCredentials so
// callers never mistake an outage for a bad password.
type TokenClient interface {
	// ValidateCredentials checks a username/password pair without keeping
	// the issued tokens.
	ValidateCredentials(ctx context.Context, username, password string) error

	// IssueTokens exchanges credentials for an access/refresh token pair.
	IssueTokens(ctx context.Context, username, password string) (*models.TokenPair, error)

	// RefreshTokens exchanges a refresh token for a fresh pair.
	RefreshTokens(ctx context.Context, refreshToken string) (*models.TokenPair, error)

	// Invalidate revokes a refresh token.
	Invalidate(ctx context.Context, refreshToken string) error
}

// UserDirectory resolves usernames to the provider's durable user records
// and performs administrative password updates.
type UserDirectory interface {
	// Lookup returns the user record for a username, or models.ErrNotFound.
	Lookup(ctx context.Context, username string) (*models.IdentityUser, error)

	// SetPassword replaces a user's password.
	SetPassword(ctx context.Context, userID, password string) error
}

// Role is a role definition in the identity provider.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RoleDirectory lists the provider's role definitions, used by rule
// administration to validate role IDs.
type RoleDirectory interface {
	ListRoles(ctx context.Context) ([]Role, error)
}
