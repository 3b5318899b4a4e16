package pg

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	sq "github.com/n-r-w/squirrel"
	"github.com/n-r-w/testdock/v2"
	"github.com/n-r-w/txscope"
	"github.com/n-r-w/txscope/uow"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// startIntegrationDB boots a DB against a disposable database and returns the
// scope facade over it.
func startIntegrationDB(t *testing.T) (*DB, *uow.UnitOfWork) {
	t.Helper()

	_, informer := testdock.GetPgxPool(t, testdock.DefaultPostgresDSN)

	db := New(
		WithName("integration"),
		WithDSN(informer.DSN()),
		WithLogQueries(),
	)
	require.Equal(t, "integration", db.name)

	ctxStart, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancelStart)
	require.NoError(t, db.Start(ctxStart))

	t.Cleanup(func() {
		ctxStop, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelStop()
		require.NoError(t, db.Stop(ctxStop))
	})

	return db, uow.New(db, db, db)
}

func execSQL(ctx context.Context, u *uow.UnitOfWork, sql string, args ...any) error {
	return u.WithClient(ctx, func(ctxCl context.Context, client txscope.IClient) error {
		_, err := txscope.ExecPlain(ctxCl, client, sql, args)
		return err
	})
}

func selectInts(ctx context.Context, u *uow.UnitOfWork, sql string) ([]int, error) {
	var ids []int
	err := u.WithClient(ctx, func(ctxCl context.Context, client txscope.IClient) error {
		return txscope.SelectPlain(ctxCl, client, sql, &ids, nil)
	})
	return ids, err
}

// TestIntegration_PresetPool verifies that Start keeps a pool supplied via
// WithPool instead of building a new one from the DSN.
func TestIntegration_PresetPool(t *testing.T) {
	t.Parallel()

	pool, _ := testdock.GetPgxPool(t, testdock.DefaultPostgresDSN)

	db := New(
		WithName("preset-pool"),
		WithPool(pool),
	)

	ctxStart, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancelStart)
	require.NoError(t, db.Start(ctxStart))
	require.Same(t, pool, db.pool)

	u := uow.New(db, db, db)

	var one int
	err := u.WithClient(context.Background(), func(ctxCl context.Context, client txscope.IClient) error {
		return txscope.SelectOnePlain(ctxCl, client, "SELECT 1", &one, nil)
	})
	require.NoError(t, err)
	require.Equal(t, 1, one)
}

func TestIntegration_CommitVisibility(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, u := startIntegrationDB(t)

	err := u.Scope(ctx, func(ctxTr context.Context) error {
		require.True(t, u.InScope(ctxTr))

		if err := execSQL(ctxTr, u, "CREATE TABLE accounts (id int)"); err != nil {
			return err
		}
		if err := execSQL(ctxTr, u, "INSERT INTO accounts (id) VALUES (1), (2), (3)"); err != nil {
			return err
		}

		// the scope reads its own writes
		ids, err := selectInts(ctxTr, u, "SELECT id FROM accounts ORDER BY id")
		require.NoError(t, err)
		require.Equal(t, []int{1, 2, 3}, ids)

		// batch goes through the same boundary
		return u.WithClient(ctxTr, func(ctxCl context.Context, client txscope.IClient) error {
			affected, errBatch := txscope.ExecBatch(ctxCl, client, []sq.Sqlizer{
				txscope.Builder().Insert("accounts").Columns("id").Values(4),
				txscope.Builder().Insert("accounts").Columns("id").Values(5),
			})
			require.NoError(t, errBatch)
			require.EqualValues(t, 2, affected)

			// CopyFrom inside the transaction
			copied, errCopy := client.CopyFrom(ctxCl,
				pgx.Identifier{"accounts"}, []string{"id"},
				pgx.CopyFromRows([][]any{{6}, {7}}))
			require.NoError(t, errCopy)
			require.EqualValues(t, 2, copied)

			return nil
		})
	})
	require.NoError(t, err)
	require.False(t, u.InScope(ctx))

	// committed data is visible from a fresh connection
	ids, err := selectInts(ctx, u, "SELECT id FROM accounts ORDER BY id")
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, ids)
}

func TestIntegration_RollbackDiscards(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, u := startIntegrationDB(t)

	require.NoError(t, execSQL(ctx, u, "CREATE TABLE events (id int)"))

	errBoom := errors.New("boom")
	err := u.Scope(ctx, func(ctxTr context.Context) error {
		if err := execSQL(ctxTr, u, "INSERT INTO events (id) VALUES (1)"); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	ids, err := selectInts(ctx, u, "SELECT id FROM events")
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestIntegration_NestedContainment(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, u := startIntegrationDB(t)

	require.NoError(t, execSQL(ctx, u, "CREATE TABLE items (id int)"))

	errBoom := errors.New("boom")
	err := u.Scope(ctx, func(ctxTr context.Context) error {
		if err := execSQL(ctxTr, u, "INSERT INTO items (id) VALUES (1)"); err != nil {
			return err
		}

		errInner := u.Scope(ctxTr, func(ctxInner context.Context) error {
			if err := execSQL(ctxInner, u, "INSERT INTO items (id) VALUES (2)"); err != nil {
				return err
			}
			return errBoom
		}, uow.WithPropagation(uow.PropagationNested))
		require.ErrorIs(t, errInner, errBoom)

		return execSQL(ctxTr, u, "INSERT INTO items (id) VALUES (3)")
	})
	require.NoError(t, err)

	// the savepoint swallowed 2, the owner kept 1 and 3
	ids, err := selectInts(ctx, u, "SELECT id FROM items ORDER BY id")
	require.NoError(t, err)
	require.Equal(t, []int{1, 3}, ids)
}

func TestIntegration_CascadingAbort(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, u := startIntegrationDB(t)

	require.NoError(t, execSQL(ctx, u, "CREATE TABLE audit (id int)"))

	errBoom := errors.New("boom")
	err := u.Scope(ctx, func(ctxTr context.Context) error {
		if err := execSQL(ctxTr, u, "INSERT INTO audit (id) VALUES (1)"); err != nil {
			return err
		}

		// the shared boundary is doomed even though the error is caught here
		errInner := u.Scope(ctxTr, func(context.Context) error { return errBoom })
		require.ErrorIs(t, errInner, errBoom)

		require.ErrorIs(t, execSQL(ctxTr, u, "INSERT INTO audit (id) VALUES (2)"),
			txscope.ErrAborted)

		return nil
	})
	require.ErrorIs(t, err, txscope.ErrAborted)

	ids, err := selectInts(ctx, u, "SELECT id FROM audit")
	require.NoError(t, err)
	require.Empty(t, ids)
}

// TestIntegration_PropagationNew verifies that PropagationNew opens a truly
// independent transaction, including from inside another scope and under
// concurrency.
func TestIntegration_PropagationNew(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, u := startIntegrationDB(t)

	txid := func(ctxTr context.Context) (id int64, err error) {
		err = u.WithClient(ctxTr, func(ctxCl context.Context, client txscope.IClient) error {
			return txscope.SelectOnePlain(ctxCl, client, "SELECT txid_current()", &id, nil)
		})
		return id, err
	}

	err := u.Scope(ctx, func(ctxTr context.Context) error {
		outerID, errOuter := txid(ctxTr)
		require.NoError(t, errOuter)

		var (
			mu  sync.Mutex
			ids = map[int64]struct{}{}
		)

		g, ctxGroup := errgroup.WithContext(ctxTr)
		for range 5 {
			g.Go(func() error {
				return u.Scope(ctxGroup, func(ctxNew context.Context) error {
					id, errID := txid(ctxNew)
					if errID != nil {
						return errID
					}

					mu.Lock()
					ids[id] = struct{}{}
					mu.Unlock()

					return nil
				}, uow.WithPropagation(uow.PropagationNew))
			})
		}
		require.NoError(t, g.Wait())

		// five independent transactions, none of them the outer one
		require.Len(t, ids, 5)
		require.NotContains(t, ids, outerID)

		// the outer boundary is still alive and unchanged
		stillOuterID, errStill := txid(ctxTr)
		require.NoError(t, errStill)
		require.Equal(t, outerID, stillOuterID)

		return nil
	})
	require.NoError(t, err)
}

func TestIntegration_IsolationAndAccessMode(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, u := startIntegrationDB(t)

	require.NoError(t, execSQL(ctx, u, "CREATE TABLE frozen (id int)"))

	err := u.Scope(ctx, func(ctxTr context.Context) error {
		var level string
		errSel := u.WithClient(ctxTr, func(ctxCl context.Context, client txscope.IClient) error {
			return txscope.SelectOnePlain(ctxCl, client, "SHOW transaction_isolation", &level, nil)
		})
		require.NoError(t, errSel)
		require.Equal(t, "serializable", level)

		return nil
	}, uow.WithTxLevel(uow.TxSerializable))
	require.NoError(t, err)

	// a read-only scope rejects writes at the server
	err = u.Scope(ctx, func(ctxTr context.Context) error {
		return execSQL(ctxTr, u, "INSERT INTO frozen (id) VALUES (1)")
	}, uow.WithTxMode(uow.TxReadOnly))
	require.Error(t, err)

	ids, err := selectInts(ctx, u, "SELECT id FROM frozen")
	require.NoError(t, err)
	require.Empty(t, ids)
}
