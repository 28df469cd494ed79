package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrBadRequest     = errors.New("bad request")
	ErrForbidden      = errors.New("forbidden")
	ErrInternalServer = errors.New("internal server error")

	// Login flow errors
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUpstreamUnavailable = errors.New("identity provider unavailable")
	ErrSessionExpired      = errors.New("session expired or already consumed")
	ErrInvalidCode         = errors.New("invalid verification code")

	// Authorization errors. A missing or unparseable department/role claim is
	// an authentication failure, never a deny decision.
	ErrMalformedClaims = errors.New("malformed authorization claims")
)
