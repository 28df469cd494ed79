package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tgiokas/dms-auth/internal/auth"
	"github.com/tgiokas/dms-auth/internal/cache"
	"github.com/tgiokas/dms-auth/internal/models"
	"github.com/tgiokas/dms-auth/internal/repositories"
	"github.com/tgiokas/dms-auth/pkg/logger"
)

// MFAService manages authenticator enrollment. A fresh secret lives in the
// ephemeral store until the user proves possession by confirming one code;
// only then does it reach durable storage.
type MFAService struct {
	secrets repositories.TotpSecretRepository
	store   cache.Store
	totp    *auth.TotpEngine
	audit   *logger.AuditLogger
	logger  *slog.Logger
}

// NewMFAService creates a new MFA service
func NewMFAService(
	secrets repositories.TotpSecretRepository,
	store cache.Store,
	totp *auth.TotpEngine,
	audit *logger.AuditLogger,
	log *slog.Logger,
) *MFAService {
	return &MFAService{secrets: secrets, store: store, totp: totp, audit: audit, logger: log}
}

// BeginEnrollment generates a secret and parks it under a setup token. The
// secret and QR code are returned to the caller exactly once. An account that
// already has a verified authenticator gets models.ErrConflict; swapping it
// is the explicit Reenroll operation.
func (s *MFAService) BeginEnrollment(ctx context.Context, userID, username string) (*models.EnrollmentResponse, error) {
	enrolled, err := s.secrets.Exists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check enrollment: %w", err)
	}
	if enrolled {
		return nil, fmt.Errorf("%w: an authenticator is already enrolled", models.ErrConflict)
	}

	return s.stagePending(ctx, userID, username, false)
}

// Reenroll replaces an enrolled authenticator. The caller must first prove
// possession of the current one; the swap itself still goes through code
// confirmation, so a lost confirmation leaves the old secret in force.
func (s *MFAService) Reenroll(ctx context.Context, userID, username, currentCode string) (*models.EnrollmentResponse, error) {
	current, err := s.secrets.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !s.totp.ValidateCode(current.Secret, currentCode) {
		return nil, models.ErrInvalidCode
	}

	return s.stagePending(ctx, userID, username, true)
}

func (s *MFAService) stagePending(ctx context.Context, userID, username string, replace bool) (*models.EnrollmentResponse, error) {
	secret, uri, err := s.totp.GenerateSecret(username)
	if err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}
	qr, err := s.totp.QRCodeDataURL(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to render QR code: %w", err)
	}
	setupToken, err := auth.NewSetupToken()
	if err != nil {
		return nil, fmt.Errorf("failed to create setup token: %w", err)
	}

	pending := models.PendingTotpSecret{
		SetupToken: setupToken,
		Username:   username,
		UserID:     userID,
		Secret:     secret,
		Replace:    replace,
		ExpiresAt:  time.Now().Add(pendingEnrollTTL),
	}
	payload, err := json.Marshal(pending)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pending enrollment: %w", err)
	}
	if err := s.store.Put(ctx, cache.TotpPendingKey(setupToken), payload, pendingEnrollTTL); err != nil {
		return nil, fmt.Errorf("failed to store pending enrollment: %w", err)
	}

	s.logger.Info("enrollment started",
		slog.String("user_id", userID),
		slog.Bool("replace", replace),
	)
	return &models.EnrollmentResponse{
		SetupToken: setupToken,
		Secret:     secret,
		OtpAuthURI: uri,
		QRCode:     qr,
	}, nil
}

// ConfirmEnrollment validates the first code against the pending secret and
// persists it. A wrong code keeps the pending enrollment retryable within its
// TTL; a correct code consumes it atomically, so a replayed confirmation
// fails with models.ErrSessionExpired instead of silently succeeding.
func (s *MFAService) ConfirmEnrollment(ctx context.Context, setupToken, code, clientIP string) error {
	raw, err := s.store.Get(ctx, cache.TotpPendingKey(setupToken))
	if err != nil {
		if errors.Is(err, cache.ErrKeyNotFound) {
			return models.ErrSessionExpired
		}
		return fmt.Errorf("failed to read pending enrollment: %w", err)
	}

	var pending models.PendingTotpSecret
	if err := json.Unmarshal(raw, &pending); err != nil {
		return fmt.Errorf("failed to decode pending enrollment: %w", err)
	}

	if !s.totp.ValidateCode(pending.Secret, code) {
		return models.ErrInvalidCode
	}

	if _, err := s.store.Take(ctx, cache.TotpPendingKey(setupToken)); err != nil {
		if errors.Is(err, cache.ErrKeyNotFound) {
			return models.ErrSessionExpired
		}
		return fmt.Errorf("failed to consume pending enrollment: %w", err)
	}

	confirmed := &models.TotpSecret{
		UserID:    pending.UserID,
		Secret:    pending.Secret,
		Enabled:   true,
		Verified:  true,
		CreatedAt: time.Now(),
	}
	if pending.Replace {
		err = s.secrets.Replace(ctx, confirmed)
	} else {
		err = s.secrets.Save(ctx, confirmed)
	}
	if err != nil {
		return fmt.Errorf("failed to persist second factor: %w", err)
	}

	s.audit.LogAccountAction("mfa_enrolled", pending.UserID, clientIP, map[string]string{
		"replace": fmt.Sprintf("%t", pending.Replace),
	})
	return nil
}

// DisableSecondFactor removes an enrolled authenticator after the caller
// proves possession of it.
func (s *MFAService) DisableSecondFactor(ctx context.Context, userID, currentCode, clientIP string) error {
	current, err := s.secrets.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !s.totp.ValidateCode(current.Secret, currentCode) {
		return models.ErrInvalidCode
	}

	if err := s.secrets.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to remove second factor: %w", err)
	}

	s.audit.LogAccountAction("mfa_disabled", userID, clientIP, nil)
	return nil
}
