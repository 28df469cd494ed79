package database

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tgiokas/dms-auth/internal/models"
)

// MapPostgresError translates driver errors into the service's sentinel
// errors so callers never depend on pgx internals.
func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return models.ErrConflict
		case "23502", "23503": // not_null_violation, foreign_key_violation
			return models.ErrBadRequest
		}
	}

	return err
}
