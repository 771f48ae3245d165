package dbx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithSavepoint_RollsBackOnlyInnerWork(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO credits(user_id, minutes) VALUES ('u1', 60)`); err != nil {
			return err
		}
		spErr := WithSavepoint(ctx, tx, "attendee", func(ctx context.Context) error {
			_, err := tx.ExecContext(ctx, `INSERT INTO credits(user_id, minutes) VALUES ('u2', 60)`)
			require.NoError(t, err)
			return errors.New("increment failed")
		})
		require.Error(t, spErr)
		return nil
	})
	require.NoError(t, err)

	var v string
	require.NoError(t, db.QueryRow(`SELECT user_id FROM credits`).Scan(&v))
	require.Equal(t, "u1", v)
	require.Equal(t, 1, countRows(t, db))
}

func TestWithSavepoint_ReleasesOnSuccess(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		for _, name := range []string{"a1", "a2"} {
			if err := WithSavepoint(ctx, tx, name, func(ctx context.Context) error {
				_, err := tx.ExecContext(ctx, `INSERT INTO credits(user_id, minutes) VALUES ('u9', 60)`)
				return err
			}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, countRows(t, db))
}

func TestWithSavepoint_PanicRollsBackAndPropagates(t *testing.T) {
	db := setupDB(t)

	defer func() {
		require.NotNil(t, recover())
		require.Equal(t, 0, countRows(t, db))
	}()

	_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		return WithSavepoint(ctx, tx, "p", func(ctx context.Context) error {
			_, err := tx.ExecContext(ctx, `INSERT INTO credits(user_id, minutes) VALUES ('u9', 60)`)
			require.NoError(t, err)
			panic("kaput")
		})
	})
}

type recordingSavepointer struct {
	DBTX
	calls []string
}

func (r *recordingSavepointer) Savepoint(_ context.Context, name string) error {
	r.calls = append(r.calls, "sp:"+name)
	return nil
}

func (r *recordingSavepointer) RollbackToSavepoint(_ context.Context, name string) error {
	r.calls = append(r.calls, "rollback:"+name)
	return nil
}

func (r *recordingSavepointer) ReleaseSavepoint(_ context.Context, name string) error {
	r.calls = append(r.calls, "release:"+name)
	return nil
}

func TestWithSavepoint_PrefersHandleImplementation(t *testing.T) {
	h := &recordingSavepointer{}

	require.NoError(t, WithSavepoint(context.Background(), h, "ok", func(context.Context) error { return nil }))
	require.Error(t, WithSavepoint(context.Background(), h, "bad", func(context.Context) error { return errors.New("x") }))

	require.Equal(t, []string{"sp:ok", "release:ok", "sp:bad", "rollback:bad"}, h.calls)
}
