package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tgiokas/dms-auth/internal/auth"
	"github.com/tgiokas/dms-auth/internal/cache"
	"github.com/tgiokas/dms-auth/internal/gateway"
	"github.com/tgiokas/dms-auth/internal/metrics"
	"github.com/tgiokas/dms-auth/internal/models"
	"github.com/tgiokas/dms-auth/internal/repositories"
	"github.com/tgiokas/dms-auth/pkg/logger"
)

const (
	pendingLoginTTL  = 5 * time.Minute
	pendingEnrollTTL = 5 * time.Minute
	passwordResetTTL = 30 * time.Minute
	loginCodeDigits  = 6
)

// ChallengeSender delivers login codes and password-reset links.
type ChallengeSender interface {
	SendLoginCode(ctx context.Context, user *models.IdentityUser, channel, code string) error
	SendPasswordReset(ctx context.Context, user *models.IdentityUser, resetToken string) error
}

// LoginService drives the login state machine: a credential submission either
// yields tokens immediately or parks a pending attempt in the ephemeral store
// and challenges the caller for a second factor. The pending attempt holds
// the password so the provider can be asked for tokens once the factor
// verifies; it lives only in the store, with a TTL, and never reaches logs.
type LoginService struct {
	tokens       gateway.TokenClient
	users        gateway.UserDirectory
	secondFactor repositories.TotpSecretRepository
	store        cache.Store
	totp         *auth.TotpEngine
	sender       ChallengeSender
	audit        *logger.AuditLogger
	delay        *auth.TimingDelay
	logger       *slog.Logger
}

// NewLoginService creates a new login service
func NewLoginService(
	tokens gateway.TokenClient,
	users gateway.UserDirectory,
	secondFactor repositories.TotpSecretRepository,
	store cache.Store,
	totp *auth.TotpEngine,
	sender ChallengeSender,
	audit *logger.AuditLogger,
	delay *auth.TimingDelay,
	log *slog.Logger,
) *LoginService {
	return &LoginService{
		tokens:       tokens,
		users:        users,
		secondFactor: secondFactor,
		store:        store,
		totp:         totp,
		sender:       sender,
		audit:        audit,
		delay:        delay,
		logger:       log,
	}
}

// Login validates the credentials and either issues tokens directly or opens
// a second-factor challenge. channel selects the delivery channel for users
// without an enrolled authenticator ("email" or "sms"); an empty channel
// means TOTP when enrolled and direct issuance otherwise. Exactly one of the
// two results is non-nil on success.
func (s *LoginService) Login(ctx context.Context, username, password, channel, clientIP string) (*models.TokenPair, *models.MFARequiredResponse, error) {
	if err := s.tokens.ValidateCredentials(ctx, username, password); err != nil {
		outcome := "error"
		switch {
		case errors.Is(err, models.ErrInvalidCredentials):
			outcome = "invalid_credentials"
		case errors.Is(err, models.ErrUpstreamUnavailable):
			outcome = "upstream_unavailable"
		}
		metrics.LoginAttempts.WithLabelValues(outcome).Inc()
		s.audit.LogAuthAttempt(logger.AuditEvent{
			EventType:     "login",
			IPAddress:     clientIP,
			Success:       false,
			FailureReason: outcome,
		})
		s.delay.Wait(false)
		return nil, nil, err
	}

	user, err := s.users.Lookup(ctx, username)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		return nil, nil, fmt.Errorf("failed to resolve user %q after credential check: %w", username, err)
	}

	enrolled, err := s.secondFactor.Exists(ctx, user.ID)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		return nil, nil, fmt.Errorf("failed to check second factor for user: %w", err)
	}

	switch {
	case enrolled:
		challenge, err := s.openChallenge(ctx, user, username, password, models.ChallengeTOTP)
		if err != nil {
			return nil, nil, err
		}
		return nil, challenge, nil

	case channel == models.ChallengeEmail || channel == models.ChallengeSMS:
		challenge, err := s.openChallenge(ctx, user, username, password, channel)
		if err != nil {
			return nil, nil, err
		}
		return nil, challenge, nil

	case channel == models.ChallengeTOTP:
		return nil, nil, fmt.Errorf("%w: no authenticator enrolled for this account", models.ErrBadRequest)

	case channel != "":
		return nil, nil, fmt.Errorf("%w: unsupported challenge channel %q", models.ErrBadRequest, channel)
	}

	pair, err := s.tokens.IssueTokens(ctx, username, password)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		return nil, nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	s.audit.LogAuthAttempt(logger.AuditEvent{
		EventType: "login",
		UserID:    user.ID,
		IPAddress: clientIP,
		Success:   true,
	})
	return pair, nil, nil
}

// openChallenge parks the validated credentials under a fresh setup token and
// issues the challenge. For email and SMS a one-time code is generated and
// delivered; only its bcrypt hash is stored.
func (s *LoginService) openChallenge(ctx context.Context, user *models.IdentityUser, username, password, channel string) (*models.MFARequiredResponse, error) {
	setupToken, err := auth.NewSetupToken()
	if err != nil {
		return nil, fmt.Errorf("failed to create setup token: %w", err)
	}

	attempt := models.PendingLoginAttempt{
		SetupToken: setupToken,
		Username:   username,
		Password:   password,
		UserID:     user.ID,
		Channel:    channel,
		ExpiresAt:  time.Now().Add(pendingLoginTTL),
	}
	payload, err := json.Marshal(attempt)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pending login: %w", err)
	}
	if err := s.store.Put(ctx, cache.LoginPendingKey(setupToken), payload, pendingLoginTTL); err != nil {
		return nil, fmt.Errorf("failed to store pending login: %w", err)
	}

	if channel == models.ChallengeEmail || channel == models.ChallengeSMS {
		code, err := auth.NewNumericCode(loginCodeDigits)
		if err != nil {
			return nil, fmt.Errorf("failed to generate login code: %w", err)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash login code: %w", err)
		}
		if err := s.store.Put(ctx, cache.LoginCodeKey(setupToken), hash, pendingLoginTTL); err != nil {
			return nil, fmt.Errorf("failed to store login code: %w", err)
		}
		if err := s.sender.SendLoginCode(ctx, user, channel, code); err != nil {
			_ = s.store.Delete(ctx, cache.LoginPendingKey(setupToken))
			_ = s.store.Delete(ctx, cache.LoginCodeKey(setupToken))
			return nil, fmt.Errorf("failed to deliver login code: %w", err)
		}
	}

	metrics.LoginAttempts.WithLabelValues("mfa_required").Inc()
	metrics.MfaChallenges.WithLabelValues(channel).Inc()
	s.logger.Info("second factor challenge issued",
		slog.String("user_id", user.ID),
		slog.String("channel", channel),
	)
	return &models.MFARequiredResponse{
		MFARequired: true,
		SetupToken:  setupToken,
		Channel:     channel,
	}, nil
}

// VerifyCode completes a pending login. A wrong code leaves the attempt in
// place so the caller can retry within the TTL; a correct code consumes the
// attempt atomically, so of two racing submissions exactly one receives
// tokens and the other models.ErrSessionExpired.
func (s *LoginService) VerifyCode(ctx context.Context, setupToken, code, clientIP string) (*models.TokenPair, error) {
	raw, err := s.store.Get(ctx, cache.LoginPendingKey(setupToken))
	if err != nil {
		if errors.Is(err, cache.ErrKeyNotFound) {
			metrics.MfaVerifications.WithLabelValues("session_expired").Inc()
			s.delay.Wait(false)
			return nil, models.ErrSessionExpired
		}
		return nil, fmt.Errorf("failed to read pending login: %w", err)
	}

	var attempt models.PendingLoginAttempt
	if err := json.Unmarshal(raw, &attempt); err != nil {
		return nil, fmt.Errorf("failed to decode pending login: %w", err)
	}

	valid, err := s.checkCode(ctx, &attempt, code)
	if err != nil {
		return nil, err
	}
	if !valid {
		metrics.MfaVerifications.WithLabelValues("invalid_code").Inc()
		s.audit.LogAuthAttempt(logger.AuditEvent{
			EventType:     "mfa_verify",
			UserID:        attempt.UserID,
			IPAddress:     clientIP,
			Success:       false,
			FailureReason: "invalid_code",
		})
		s.delay.Wait(false)
		return nil, models.ErrInvalidCode
	}

	// Single-winner gate: only the caller that consumes the attempt mints
	// tokens. A concurrent duplicate sees the key as absent.
	if _, err := s.store.Take(ctx, cache.LoginPendingKey(setupToken)); err != nil {
		if errors.Is(err, cache.ErrKeyNotFound) {
			metrics.MfaVerifications.WithLabelValues("session_expired").Inc()
			return nil, models.ErrSessionExpired
		}
		return nil, fmt.Errorf("failed to consume pending login: %w", err)
	}
	_ = s.store.Delete(ctx, cache.LoginCodeKey(setupToken))

	pair, err := s.tokens.IssueTokens(ctx, attempt.Username, attempt.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens after verification: %w", err)
	}

	if attempt.Channel == models.ChallengeTOTP {
		if err := s.secondFactor.TouchVerified(ctx, attempt.UserID, time.Now()); err != nil {
			s.logger.Warn("failed to record verification time",
				slog.String("user_id", attempt.UserID),
				slog.String("error", err.Error()),
			)
		}
	}

	metrics.MfaVerifications.WithLabelValues("success").Inc()
	s.audit.LogAuthAttempt(logger.AuditEvent{
		EventType: "mfa_verify",
		UserID:    attempt.UserID,
		IPAddress: clientIP,
		Success:   true,
	})
	return pair, nil
}

// checkCode validates the submitted code without consuming anything, so a
// rejection keeps the attempt retryable.
func (s *LoginService) checkCode(ctx context.Context, attempt *models.PendingLoginAttempt, code string) (bool, error) {
	switch attempt.Channel {
	case models.ChallengeTOTP:
		secret, err := s.secondFactor.Get(ctx, attempt.UserID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return false, models.ErrSessionExpired
			}
			return false, fmt.Errorf("failed to load second factor: %w", err)
		}
		if !secret.Enabled || !secret.Verified {
			return false, nil
		}
		return s.totp.ValidateCode(secret.Secret, code), nil

	case models.ChallengeEmail, models.ChallengeSMS:
		hash, err := s.store.Get(ctx, cache.LoginCodeKey(attempt.SetupToken))
		if err != nil {
			if errors.Is(err, cache.ErrKeyNotFound) {
				return false, models.ErrSessionExpired
			}
			return false, fmt.Errorf("failed to read login code: %w", err)
		}
		return bcrypt.CompareHashAndPassword(hash, []byte(code)) == nil, nil

	default:
		return false, fmt.Errorf("pending login has unknown channel %q", attempt.Channel)
	}
}

// Refresh exchanges a refresh token for a fresh pair.
func (s *LoginService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	pair, err := s.tokens.RefreshTokens(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Logout revokes a refresh token at the identity provider.
func (s *LoginService) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.Invalidate(ctx, refreshToken)
}

// ForgotPassword opens a password reset. The response is identical whether or
// not the username exists, so the endpoint cannot be used for enumeration.
func (s *LoginService) ForgotPassword(ctx context.Context, username, clientIP string) error {
	user, err := s.users.Lookup(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("password reset requested for unknown username")
			return nil
		}
		return fmt.Errorf("failed to resolve user: %w", err)
	}

	resetToken, err := auth.NewSetupToken()
	if err != nil {
		return fmt.Errorf("failed to create reset token: %w", err)
	}
	if err := s.store.Put(ctx, cache.PasswordResetKey(resetToken), []byte(user.ID), passwordResetTTL); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}
	if err := s.sender.SendPasswordReset(ctx, user, resetToken); err != nil {
		_ = s.store.Delete(ctx, cache.PasswordResetKey(resetToken))
		return fmt.Errorf("failed to deliver reset link: %w", err)
	}

	s.audit.LogAccountAction("password_reset_requested", user.ID, clientIP, nil)
	return nil
}

// ResetPassword consumes a reset token and updates the password at the
// identity provider. The token is single use; a replay or an expired token
// fails with models.ErrSessionExpired.
func (s *LoginService) ResetPassword(ctx context.Context, resetToken, newPassword, clientIP string) error {
	userID, err := s.store.Take(ctx, cache.PasswordResetKey(resetToken))
	if err != nil {
		if errors.Is(err, cache.ErrKeyNotFound) {
			return models.ErrSessionExpired
		}
		return fmt.Errorf("failed to consume reset token: %w", err)
	}

	if err := s.users.SetPassword(ctx, string(userID), newPassword); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.audit.LogAccountAction("password_reset_completed", string(userID), clientIP, nil)
	return nil
}
