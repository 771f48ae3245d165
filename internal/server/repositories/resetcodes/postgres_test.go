package resetcodes

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/sporthack/internal/common"
	"github.com/dmitrijs2005/sporthack/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rc := &models.ResetCode{ID: "rc1", UserID: "u1", Code: 4821, IssuedAt: t0, ExpiresAt: t0.Add(30 * time.Minute)}

	mock.ExpectExec(`INSERT INTO reset_codes \(id, user_id, code, issued_at, expires_at\)`).
		WithArgs("rc1", "u1", 4821, t0, t0.Add(30*time.Minute)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO reset_codes`).
		WillReturnError(&pgconn.PgError{Code: "23503"})

	require.NoError(t, repo.Create(context.Background(), rc))
	assert.ErrorIs(t, repo.Create(context.Background(), &models.ResetCode{ID: "rc2", UserID: "ghost"}), common.ErrorNotFound)
}

const consumeQuery = `DELETE FROM reset_codes WHERE id = \( SELECT id FROM reset_codes WHERE user_id = \$1 AND code = \$2 AND expires_at > \$3 .* FOR UPDATE SKIP LOCKED \) RETURNING`

func TestConsume_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := t0.Add(29 * time.Minute)
	mock.ExpectQuery(consumeQuery).
		WithArgs("u1", 4821, now).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "code", "issued_at", "expires_at"}).
			AddRow("rc1", "u1", 4821, t0, t0.Add(30*time.Minute)))

	rc, err := repo.Consume(context.Background(), "u1", 4821, now)
	require.NoError(t, err)
	assert.Equal(t, "rc1", rc.ID)
	assert.Equal(t, 4821, rc.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConsume_NothingMatches(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(consumeQuery).WillReturnError(sql.ErrNoRows)

	_, err := repo.Consume(context.Background(), "u1", 1111, t0)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestConsume_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(consumeQuery).WillReturnError(errors.New("db is down"))

	_, err := repo.Consume(context.Background(), "u1", 1111, t0)
	if err == nil || !regexp.MustCompile(`db error: .*db is down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestDeleteExpired(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM reset_codes WHERE expires_at <= \$1`).WithArgs(t0).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM reset_codes WHERE user_id = \$1 AND expires_at <= \$2`).WithArgs("u1", t0).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM reset_codes`).WillReturnResult(sqlmock.NewErrorResult(errors.New("rows-err")))

	n, err := repo.DeleteExpired(context.Background(), t0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = repo.DeleteExpiredForUser(context.Background(), "u1", t0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.DeleteExpired(context.Background(), t0)
	require.Error(t, err)
}
