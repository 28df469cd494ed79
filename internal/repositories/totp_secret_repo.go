package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tgiokas/dms-auth/internal/database"
	"github.com/tgiokas/dms-auth/internal/models"
)

// TotpSecretRepository is the durable store for confirmed second factors.
// One row per user; the row appears only after enrollment is confirmed.
type TotpSecretRepository interface {
	Exists(ctx context.Context, userID string) (bool, error)
	Get(ctx context.Context, userID string) (*models.TotpSecret, error)
	Save(ctx context.Context, secret *models.TotpSecret) error
	Replace(ctx context.Context, secret *models.TotpSecret) error
	TouchVerified(ctx context.Context, userID string, at time.Time) error
	Delete(ctx context.Context, userID string) error
}

type totpSecretRepoImpl struct {
	db *pgxpool.Pool
}

// NewTotpSecretRepository creates a postgres-backed TotpSecretRepository.
func NewTotpSecretRepository(db *pgxpool.Pool) TotpSecretRepository {
	return &totpSecretRepoImpl{db: db}
}

func (r *totpSecretRepoImpl) Exists(ctx context.Context, userID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM totp_secrets WHERE user_id = $1 AND enabled AND verified)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, userID).Scan(&exists); err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

func (r *totpSecretRepoImpl) Get(ctx context.Context, userID string) (*models.TotpSecret, error) {
	query := `
		SELECT user_id, secret, enabled, verified, created_at, last_verified_at
		FROM totp_secrets WHERE user_id = $1
	`

	var s models.TotpSecret
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&s.UserID, &s.Secret, &s.Enabled, &s.Verified, &s.CreatedAt, &s.LastVerifiedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &s, nil
}

// Save inserts a newly confirmed secret. A row that is already verified is
// never overwritten here; re-enrollment goes through Replace explicitly.
func (r *totpSecretRepoImpl) Save(ctx context.Context, secret *models.TotpSecret) error {
	query := `
		INSERT INTO totp_secrets (user_id, secret, enabled, verified, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Exec(ctx, query,
		secret.UserID, secret.Secret, secret.Enabled, secret.Verified, secret.CreatedAt,
	)
	return database.MapPostgresError(err)
}

// Replace swaps a user's secret during explicit re-enrollment.
func (r *totpSecretRepoImpl) Replace(ctx context.Context, secret *models.TotpSecret) error {
	query := `
		UPDATE totp_secrets
		SET secret = $2, enabled = $3, verified = $4, created_at = $5, last_verified_at = NULL
		WHERE user_id = $1
	`

	tag, err := r.db.Exec(ctx, query,
		secret.UserID, secret.Secret, secret.Enabled, secret.Verified, secret.CreatedAt,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *totpSecretRepoImpl) TouchVerified(ctx context.Context, userID string, at time.Time) error {
	query := `UPDATE totp_secrets SET last_verified_at = $2 WHERE user_id = $1`

	_, err := r.db.Exec(ctx, query, userID, at)
	return database.MapPostgresError(err)
}

func (r *totpSecretRepoImpl) Delete(ctx context.Context, userID string) error {
	query := `DELETE FROM totp_secrets WHERE user_id = $1`

	_, err := r.db.Exec(ctx, query, userID)
	return database.MapPostgresError(err)
}
