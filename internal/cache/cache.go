// Package cache provides the ephemeral store for short-lived session
// artifacts: pending TOTP enrollments, pending login attempts, delivered
// verification codes, and password-reset tokens.
//
// Two backends are supported: in-process memory (development, tests) and
// Redis (production). Expiry is enforced at read time in both backends, so
// an expired entry is indistinguishable from one that was never written,
// whether or not physical eviction has happened yet.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned when a key is absent or expired.
var ErrKeyNotFound = errors.New("cache: key not found")

// Store is the ephemeral store contract. Put is visible to a subsequent Get
// as soon as it returns; callers never observe partial writes.
type Store interface {
	// Put stores value under key for the given TTL.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value for key, or ErrKeyNotFound if absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Take atomically reads and deletes the value for key. When two callers
	// race on the same key, exactly one receives the value; the other gets
	// ErrKeyNotFound. Single-use artifacts are consumed through Take.
	Take(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
}

// Sweeper is implemented by backends that need a periodic eviction pass.
// Correctness never depends on sweeping; it only bounds memory.
type Sweeper interface {
	DeleteExpired()
}

// Key namespaces. Artifact kinds share one store instance, so every key is
// prefixed to avoid collisions between kinds.
const (
	nsTotpPending   = "totp:"
	nsLoginPending  = "login:"
	nsLoginCode     = "code:"
	nsPasswordReset = "reset:"
	nsAdminToken    = "kc:admin-token"
)

// TotpPendingKey keys a pending TOTP enrollment by its setup token.
func TotpPendingKey(setupToken string) string { return nsTotpPending + setupToken }

// LoginPendingKey keys a pending login attempt by its setup token.
func LoginPendingKey(setupToken string) string { return nsLoginPending + setupToken }

// LoginCodeKey keys the hash of a delivered login code by its setup token.
func LoginCodeKey(setupToken string) string { return nsLoginCode + setupToken }

// PasswordResetKey keys a password-reset artifact by its reset token.
func PasswordResetKey(resetToken string) string { return nsPasswordReset + resetToken }

// AdminTokenKey keys the cached identity-provider admin token.
func AdminTokenKey() string { return nsAdminToken }
