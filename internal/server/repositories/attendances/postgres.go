// Package attendances stores registrations of users to trainings and events.
package attendances

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/sporthack/internal/common"
	"github.com/dmitrijs2005/sporthack/internal/dbx"
	"github.com/dmitrijs2005/sporthack/internal/server/models"
)

// PostgresRepository implements attendance storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create relies on the (occurrence_id, user_id) unique constraint: a
// conflicting insert returns no row instead of failing the transaction.
func (r *PostgresRepository) Create(ctx context.Context, a *models.Attendance) error {
	query := `
		INSERT INTO attendances (id, occurrence_id, user_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (occurrence_id, user_id) DO NOTHING
		RETURNING id
	`
	var id string
	err := r.db.QueryRowContext(ctx, query, a.ID, a.OccurrenceID, a.UserID, a.CreatedAt).Scan(&id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return common.ErrAlreadyRegistered
	case dbx.IsForeignKeyViolation(err):
		return common.ErrorNotFound
	default:
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
}

// Delete removes the attendance of userID; common.ErrorNotFound if there is none.
func (r *PostgresRepository) Delete(ctx context.Context, occurrenceID, userID string) error {
	query := `DELETE FROM attendances WHERE occurrence_id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, occurrenceID, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// ListUserIDs returns the registered users of an occurrence ordered by user
// id, the order in which rating rows are locked.
func (r *PostgresRepository) ListUserIDs(ctx context.Context, occurrenceID string) ([]string, error) {
	query := `SELECT user_id FROM attendances WHERE occurrence_id = $1 ORDER BY user_id`
	rows, err := r.db.QueryContext(ctx, query, occurrenceID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return ids, nil
}
