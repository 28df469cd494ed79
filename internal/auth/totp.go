package auth

import (
	"encoding/base64"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
)

// TotpEngine generates and validates time-based one-time codes. It is a pure
// function of its inputs and wall-clock time; secrets are handed to the
// caller and never retained here.
type TotpEngine struct {
	issuer string
}

// NewTotpEngine creates a TOTP engine. The issuer appears in enrollment URIs
// and authenticator apps.
func NewTotpEngine(issuer string) *TotpEngine {
	return &TotpEngine{issuer: issuer}
}

// GenerateSecret creates a fresh 20-byte secret and its enrollment URI
// (otpauth://totp/..., SHA1, 6 digits, 30-second period, issuer and label
// URL-encoded by the otp library).
func (e *TotpEngine) GenerateSecret(username string) (secret, enrollmentURI string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: username,
		SecretSize:  20,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// QRCodeDataURL renders an enrollment URI as a PNG data URL for clients that
// display the QR code inline.
func (e *TotpEngine) QRCodeDataURL(enrollmentURI string) (string, error) {
	png, err := qrcode.Encode(enrollmentURI, qrcode.Medium, 200)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// ValidateCode checks a submitted code against the current time window and
// its two neighbors (±1 step, 90 seconds total) to absorb clock drift. A
// malformed secret rejects the code; no error escapes to the caller.
func (e *TotpEngine) ValidateCode(secret, code string) bool {
	valid, err := totp.ValidateCustom(code, secret, time.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false
	}
	return valid
}

// ValidateCodeAt is ValidateCode against an explicit reference time. Used by
// tests to pin the window.
func (e *TotpEngine) ValidateCodeAt(secret, code string, at time.Time) bool {
	valid, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false
	}
	return valid
}
