// Package resetcodes stores single-use password reset codes.
package resetcodes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sporthack/internal/common"
	"github.com/dmitrijs2005/sporthack/internal/dbx"
	"github.com/dmitrijs2005/sporthack/internal/server/models"
)

// PostgresRepository implements reset code storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, rc *models.ResetCode) error {
	query := `
		INSERT INTO reset_codes (id, user_id, code, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query, rc.ID, rc.UserID, rc.Code, rc.IssuedAt, rc.ExpiresAt)
	if err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return nil
}

// Consume is a single lookup-and-delete statement. A concurrent consumer of
// the same row skips it and finds nothing.
func (r *PostgresRepository) Consume(ctx context.Context, userID string, code int, now time.Time) (*models.ResetCode, error) {
	query := `
		DELETE FROM reset_codes
		WHERE id = (
			SELECT id FROM reset_codes
			WHERE user_id = $1 AND code = $2 AND expires_at > $3
			ORDER BY expires_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, user_id, code, issued_at, expires_at
	`
	var rc models.ResetCode
	err := r.db.QueryRowContext(ctx, query, userID, code, now).
		Scan(&rc.ID, &rc.UserID, &rc.Code, &rc.IssuedAt, &rc.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return &rc, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.delete(ctx, `DELETE FROM reset_codes WHERE expires_at <= $1`, now)
}

func (r *PostgresRepository) DeleteExpiredForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	return r.delete(ctx, `DELETE FROM reset_codes WHERE user_id = $1 AND expires_at <= $2`, userID, now)
}

func (r *PostgresRepository) delete(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
