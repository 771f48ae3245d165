package dbx

import (
	"context"
)

// Savepointer is implemented by transactional handles that manage partial
// rollback themselves. Handles that do not implement it (*sql.Tx) get plain
// SQL SAVEPOINT statements.
type Savepointer interface {
	Savepoint(ctx context.Context, name string) error
	RollbackToSavepoint(ctx context.Context, name string) error
	ReleaseSavepoint(ctx context.Context, name string) error
}

// WithSavepoint runs fn between a savepoint and its release. If fn fails or
// panics the work done since the savepoint is undone while the enclosing
// transaction stays usable. name must be a plain SQL identifier.
func WithSavepoint(ctx context.Context, tx DBTX, name string, fn func(ctx context.Context) error) (err error) {
	sp, ok := tx.(Savepointer)
	if !ok {
		sp = sqlSavepointer{tx: tx}
	}

	if err := sp.Savepoint(ctx, name); err != nil {
		return Classify(err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sp.RollbackToSavepoint(context.WithoutCancel(ctx), name)
			panic(p)
		}
		if err != nil {
			_ = sp.RollbackToSavepoint(context.WithoutCancel(ctx), name)
			return
		}
		err = Classify(sp.ReleaseSavepoint(ctx, name))
	}()

	err = fn(ctx)
	return err
}

type sqlSavepointer struct {
	tx DBTX
}

func (s sqlSavepointer) Savepoint(ctx context.Context, name string) error {
	_, err := s.tx.ExecContext(ctx, "SAVEPOINT "+name)
	return err
}

func (s sqlSavepointer) RollbackToSavepoint(ctx context.Context, name string) error {
	_, err := s.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name)
	return err
}

func (s sqlSavepointer) ReleaseSavepoint(ctx context.Context, name string) error {
	_, err := s.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return err
}
