// Package ratings provides PostgreSQL-backed rating accumulators and the
// training completion markers that make rating application idempotent.
package ratings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/sporthack/internal/common"
	"github.com/dmitrijs2005/sporthack/internal/dbx"
	"github.com/dmitrijs2005/sporthack/internal/server/models"
)

// PostgresRepository implements rating storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) RecordCompletion(ctx context.Context, c *models.TrainingCompletion) (bool, error) {
	query := `
		INSERT INTO training_completions (training_id, duration_minutes, attendees, applied_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (training_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, c.TrainingID, c.DurationMinutes, c.Attendees, c.AppliedAt)
	if err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return false, common.ErrorNotFound
		}
		return false, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) Completion(ctx context.Context, trainingID string) (*models.TrainingCompletion, error) {
	query := `SELECT training_id, duration_minutes, attendees, applied_at FROM training_completions WHERE training_id = $1`
	var c models.TrainingCompletion
	err := r.db.QueryRowContext(ctx, query, trainingID).Scan(&c.TrainingID, &c.DurationMinutes, &c.Attendees, &c.AppliedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return &c, nil
}

func (r *PostgresRepository) AddUserRating(ctx context.Context, userID string, delta int64) error {
	query := `UPDATE users SET rating = rating + $2 WHERE id = $1`
	return r.execOne(ctx, query, userID, delta)
}

func (r *PostgresRepository) AddSectionResult(ctx context.Context, sectionID, userID string, delta int64) error {
	query := `
		UPDATE section_members
		SET rating = rating + $3, completed_count = completed_count + 1
		WHERE section_id = $1 AND user_id = $2
	`
	return r.execOne(ctx, query, sectionID, userID, delta)
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func (r *PostgresRepository) UserRating(ctx context.Context, userID string) (int64, error) {
	var rating int64
	err := r.db.QueryRowContext(ctx, `SELECT rating FROM users WHERE id = $1`, userID).Scan(&rating)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return rating, nil
}

func (r *PostgresRepository) Membership(ctx context.Context, sectionID, userID string) (*models.SectionMembership, error) {
	query := `
		SELECT section_id, user_id, rating, completed_count
		FROM section_members WHERE section_id = $1 AND user_id = $2
	`
	var m models.SectionMembership
	err := r.db.QueryRowContext(ctx, query, sectionID, userID).Scan(&m.SectionID, &m.UserID, &m.Rating, &m.CompletedCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return &m, nil
}

func (r *PostgresRepository) ListUserRatings(ctx context.Context) ([]models.UserRating, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, rating FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	defer rows.Close()

	var result []models.UserRating
	for rows.Next() {
		var u models.UserRating
		if err := rows.Scan(&u.UserID, &u.Rating); err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return result, nil
}

func (r *PostgresRepository) ListMemberships(ctx context.Context) ([]models.SectionMembership, error) {
	query := `SELECT section_id, user_id, rating, completed_count FROM section_members ORDER BY section_id, user_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	defer rows.Close()

	var result []models.SectionMembership
	for rows.Next() {
		var m models.SectionMembership
		if err := rows.Scan(&m.SectionID, &m.UserID, &m.Rating, &m.CompletedCount); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return result, nil
}

func (r *PostgresRepository) ListCompletedTrainings(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT training_id FROM training_completions ORDER BY training_id`)
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
