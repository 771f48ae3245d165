package attendances

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

const insertQuery = `INSERT INTO attendances .* ON CONFLICT \(occurrence_id, user_id\) DO NOTHING RETURNING id`

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQuery).
		WithArgs("a1", "tr1", "u1", t0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a1"))

	err := repo.Create(context.Background(), &models.Attendance{ID: "a1", OccurrenceID: "tr1", UserID: "u1", CreatedAt: t0})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_Duplicate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQuery).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err := repo.Create(context.Background(), &models.Attendance{ID: "a2", OccurrenceID: "tr1", UserID: "u1", CreatedAt: t0})
	assert.ErrorIs(t, err, common.ErrAlreadyRegistered)
}

func TestCreate_UnknownUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQuery).WillReturnError(&pgconn.PgError{Code: "23503"})

	err := repo.Create(context.Background(), &models.Attendance{ID: "a3", OccurrenceID: "tr1", UserID: "ghost", CreatedAt: t0})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQuery).WillReturnError(errors.New("db is down"))

	err := repo.Create(context.Background(), &models.Attendance{ID: "a4", OccurrenceID: "tr1", UserID: "u1", CreatedAt: t0})
	if err == nil || !regexp.MustCompile(`db error: .*db is down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `DELETE FROM attendances WHERE occurrence_id = \$1 AND user_id = \$2`
	mock.ExpectExec(q).WithArgs("tr1", "u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("tr1", "u1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q).WithArgs("tr1", "u2").WillReturnResult(sqlmock.NewErrorResult(errors.New("rows-err")))

	require.NoError(t, repo.Delete(context.Background(), "tr1", "u1"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "tr1", "u1"), common.ErrorNotFound)

	err := repo.Delete(context.Background(), "tr1", "u2")
	if err == nil || !regexp.MustCompile(`rows affected error: .*rows-err`).MatchString(err.Error()) {
		t.Fatalf("expected rows affected error, got %v", err)
	}
}

func TestListUserIDs(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT user_id FROM attendances WHERE occurrence_id = \$1 ORDER BY user_id$`).
		WithArgs("tr1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("a").AddRow("b"))

	ids, err := repo.ListUserIDs(context.Background(), "tr1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestListUserIDs_RowError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT user_id FROM attendances`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("a").RowError(0, &pgconn.PgError{Code: "08006"}))

	_, err := repo.ListUserIDs(context.Background(), "tr1")
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
}
