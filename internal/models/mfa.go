package models

import (
	"time"
)

// Challenge channels for the second login factor
const (
	ChallengeTOTP  = "totp"
	ChallengeEmail = "email"
	ChallengeSMS   = "sms"
)

// PendingTotpSecret is an enrollment in progress. It lives only in the
// ephemeral store, keyed by its setup token, and is consumed exactly once
// when the user confirms the first code.
type PendingTotpSecret struct {
	SetupToken string    `json:"setup_token"`
	Username   string    `json:"username"`
	UserID     string    `json:"user_id"`
	Secret     string    `json:"secret"` // base32, credential-equivalent
	Replace    bool      `json:"replace"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// PendingLoginAttempt is a login that passed the password check and is
// waiting for its second factor. The password is kept so the gateway can be
// asked for tokens again once the factor verifies; it must never reach
// durable storage or logs.
type PendingLoginAttempt struct {
	SetupToken string    `json:"setup_token"`
	Username   string    `json:"username"`
	Password   string    `json:"password"`
	UserID     string    `json:"user_id"`
	Channel    string    `json:"channel"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// TotpSecret is a user's confirmed second factor. One per user, durable.
type TotpSecret struct {
	UserID         string
	Secret         string // base32, credential-equivalent
	Enabled        bool
	Verified       bool
	CreatedAt      time.Time
	LastVerifiedAt *time.Time
}

// EnrollmentResponse is returned when TOTP enrollment begins. The secret is
// shown to the user exactly once.
type EnrollmentResponse struct {
	SetupToken string `json:"setup_token"`
	Secret     string `json:"secret"`
	OtpAuthURI string `json:"otpauth_uri"`
	QRCode     string `json:"qr_code"` // PNG data URL
}

// MFARequiredResponse is returned when login needs a second factor.
type MFARequiredResponse struct {
	MFARequired bool   `json:"mfa_required"`
	SetupToken  string `json:"setup_token"`
	Channel     string `json:"channel"`
}
