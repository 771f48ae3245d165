// Package occurrences provides the PostgreSQL-backed store of trainings and
// events, including the atomic claim statements of the reconciliation engine.
package occurrences

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

const columns = `id, section_id, kind, title, place, scheduled_at, status, closed_at,
	COALESCE(duration_minutes, 0), COALESCE(level, '')`

// PostgresRepository implements occurrence storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOccurrence(row scanner) (*models.Occurrence, error) {
	var (
		o        models.Occurrence
		closedAt sql.NullTime
		level    string
	)
	if err := row.Scan(&o.ID, &o.SectionID, &o.Kind, &o.Title, &o.Place, &o.ScheduledAt,
		&o.Status, &closedAt, &o.DurationMinutes, &level); err != nil {
		return nil, err
	}
	if closedAt.Valid {
		t := closedAt.Time
		o.ClosedAt = &t
	}
	o.Level = models.EventLevel(level)
	return &o, nil
}

// Create inserts a new active occurrence. Invalid fields yield
// common.ErrInvalidOccurrence and a missing section common.ErrorNotFound.
func (r *PostgresRepository) Create(ctx context.Context, o *models.Occurrence) error {
	if err := o.Validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO occurrences (id, section_id, kind, title, place, scheduled_at, status, duration_minutes, level)
		VALUES ($1, $2, $3, $4, $5, $6, 'active', NULLIF($7, 0), NULLIF($8, ''))
	`
	_, err := r.db.ExecContext(ctx, query,
		o.ID, o.SectionID, string(o.Kind), o.Title, o.Place, o.ScheduledAt, o.DurationMinutes, string(o.Level))
	if err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	o.Status = models.StatusActive
	return nil
}

// Get returns the occurrence by id or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Occurrence, error) {
	query := `SELECT ` + columns + ` FROM occurrences WHERE id = $1`
	o, err := scanOccurrence(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return o, nil
}

// ClaimNext selects and closes a single row in one statement. Rows locked by
// a concurrent claimer are skipped rather than waited for, so parallel
// callers always walk disjoint rows.
func (r *PostgresRepository) ClaimNext(ctx context.Context, kind models.OccurrenceKind, now time.Time, after models.ClaimCursor) (*models.Occurrence, error) {
	query := `
		UPDATE occurrences
		SET status = 'closed', closed_at = $2
		WHERE id = (
			SELECT id FROM occurrences
			WHERE kind = $1 AND status = 'active' AND scheduled_at <= $2
			  AND (scheduled_at, id) > ($3, $4)
			ORDER BY scheduled_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		AND status = 'active'
		RETURNING ` + columns

	o, err := scanOccurrence(r.db.QueryRowContext(ctx, query, string(kind), now, after.ScheduledAt, after.ID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return o, nil
}

// ClaimDue flips every due active row of kind and returns exactly the rows
// updated by this statement.
func (r *PostgresRepository) ClaimDue(ctx context.Context, kind models.OccurrenceKind, now time.Time) ([]*models.Occurrence, error) {
	query := `
		UPDATE occurrences
		SET status = 'closed', closed_at = $2
		WHERE kind = $1 AND status = 'active' AND scheduled_at <= $2
		RETURNING ` + columns

	rows, err := r.db.QueryContext(ctx, query, string(kind), now)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	defer rows.Close()

	var result []*models.Occurrence
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return result, nil
}
