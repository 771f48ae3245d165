// Package memory is an in-memory implementation of the repositories used
// when no database is configured and by service tests. Transactions are
// serialised by a single lock and applied to a private copy of the state,
// so a failed unit of work leaves nothing behind.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"maps"
	"sync"

	"github.com/dmitrijs2005/sporthack/internal/dbx"
	"github.com/dmitrijs2005/sporthack/internal/server/models"
)

// ErrRawSQL is returned by the DBTX methods: the memory store has no SQL engine.
var ErrRawSQL = errors.New("memory store: raw SQL is not supported")

type attendanceKey struct{ occurrenceID, userID string }
type memberKey struct{ sectionID, userID string }

type state struct {
	users       map[string]int64
	sections    map[string]struct{}
	members     map[memberKey]models.SectionMembership
	occurrences map[string]models.Occurrence
	attendances map[attendanceKey]models.Attendance
	completions map[string]models.TrainingCompletion
	resetCodes  map[string]models.ResetCode
}

func newState() *state {
	return &state{
		users:       map[string]int64{},
		sections:    map[string]struct{}{},
		members:     map[memberKey]models.SectionMembership{},
		occurrences: map[string]models.Occurrence{},
		attendances: map[attendanceKey]models.Attendance{},
		completions: map[string]models.TrainingCompletion{},
		resetCodes:  map[string]models.ResetCode{},
	}
}

func (s *state) clone() *state {
	return &state{
		users:       maps.Clone(s.users),
		sections:    maps.Clone(s.sections),
		members:     maps.Clone(s.members),
		occurrences: maps.Clone(s.occurrences),
		attendances: maps.Clone(s.attendances),
		completions: maps.Clone(s.completions),
		resetCodes:  maps.Clone(s.resetCodes),
	}
}

// handle gives repositories access to a state, either directly under the
// store lock or inside a transaction that already holds it.
type handle interface {
	do(fn func(st *state) error) error
}

// Store is the shared in-memory database. It implements dbx.Transactor and
// dbx.DBTX (the latter only as an opaque handle for the repository manager).
type Store struct {
	mu sync.Mutex
	st *state
}

var (
	_ dbx.Transactor = (*Store)(nil)
	_ dbx.DBTX       = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{st: newState()}
}

func (s *Store) do(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

func (s *Store) DB() dbx.DBTX { return s }

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// WithTx runs fn against a copy of the state and publishes the copy only if
// fn succeeds. Transactions are fully serialised. Panics are rethrown with
// the state untouched.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{st: s.st.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

func (s *Store) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, ErrRawSQL
}

func (s *Store) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, ErrRawSQL
}

func (s *Store) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

// Tx is the transactional handle passed to WithTx callbacks.
type Tx struct {
	st         *state
	savepoints map[string]*state
}

var (
	_ dbx.DBTX        = (*Tx)(nil)
	_ dbx.Savepointer = (*Tx)(nil)
)

func (t *Tx) do(fn func(st *state) error) error { return fn(t.st) }

func (t *Tx) Savepoint(_ context.Context, name string) error {
	if t.savepoints == nil {
		t.savepoints = map[string]*state{}
	}
	t.savepoints[name] = t.st.clone()
	return nil
}

func (t *Tx) RollbackToSavepoint(_ context.Context, name string) error {
	sp, ok := t.savepoints[name]
	if !ok {
		return errors.New("memory store: no such savepoint " + name)
	}
	t.st = sp.clone()
	return nil
}

func (t *Tx) ReleaseSavepoint(_ context.Context, name string) error {
	if _, ok := t.savepoints[name]; !ok {
		return errors.New("memory store: no such savepoint " + name)
	}
	delete(t.savepoints, name)
	return nil
}

func (t *Tx) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, ErrRawSQL
}

func (t *Tx) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, ErrRawSQL
}

func (t *Tx) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

func handleFor(db dbx.DBTX) handle {
	if h, ok := db.(handle); ok {
		return h
	}
	panic("memory: repository bound to a foreign DBTX")
}
