// Package lock implements a named mutual-exclusion lock on top of a unique
// key, for polling components that must not run on two instances at once.
// Acquisition is an insert into the lock table: losing the race surfaces as a
// unique violation, which is translated into a boolean instead of an error.
package lock

import (
	"context"
	"fmt"
	"time"

	sq "github.com/n-r-w/squirrel"
	"github.com/n-r-w/txscope"
	"github.com/n-r-w/txscope/uow"
)

// DefaultTable is the lock table used unless WithTable overrides it.
const DefaultTable = "txscope_locks"

// Schema returns the DDL for the lock table.
func Schema(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		name TEXT PRIMARY KEY,
		locked_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, table)
}

// Manager acquires and releases named locks through the unit of work, so a
// lock taken inside a scope commits or vanishes together with it.
type Manager struct {
	u     *uow.UnitOfWork
	table string
}

// ManagerOption option for Manager.
type ManagerOption func(*Manager)

// WithTable sets the lock table name.
func WithTable(table string) ManagerOption {
	return func(m *Manager) {
		m.table = table
	}
}

// NewManager creates a new lock Manager.
func NewManager(u *uow.UnitOfWork, opt ...ManagerOption) *Manager {
	m := &Manager{u: u, table: DefaultTable}

	for _, o := range opt {
		o(m)
	}

	return m
}

// TryAcquire attempts to take the named lock. It returns (false, nil) when
// the lock is already held; any other failure is returned as an error.
// The insert joins the ambient scope when one is open, so the lock is held
// until that scope finalizes.
func (m *Manager) TryAcquire(ctx context.Context, name string) (bool, error) {
	err := m.u.Scope(ctx, func(ctxTr context.Context) error {
		return m.u.WithClient(ctxTr, func(ctxCl context.Context, client txscope.IClient) error {
			query := txscope.Builder().
				Insert(m.table).
				Columns("name", "locked_at").
				Values(name, time.Now().UTC())

			_, errExec := txscope.Exec(ctxCl, client, query)
			return errExec
		})
	}, uow.WithPropagation(uow.PropagationNested))
	if err != nil {
		if txscope.IsUniqueViolation(err) {
			// held by someone else: not an error, just not acquired
			return false, nil
		}
		return false, fmt.Errorf("acquire lock %q: %w", name, err)
	}

	return true, nil
}

// Release drops the named lock. Releasing a lock that is not held is a no-op.
func (m *Manager) Release(ctx context.Context, name string) error {
	err := m.u.Scope(ctx, func(ctxTr context.Context) error {
		return m.u.WithClient(ctxTr, func(ctxCl context.Context, client txscope.IClient) error {
			query := txscope.Builder().
				Delete(m.table).
				Where(sq.Eq{"name": name})

			_, errExec := txscope.Exec(ctxCl, client, query)
			return errExec
		})
	})
	if err != nil {
		return fmt.Errorf("release lock %q: %w", name, err)
	}

	return nil
}

// IsHeld reports whether the named lock currently exists.
func (m *Manager) IsHeld(ctx context.Context, name string) (bool, error) {
	var held bool

	err := m.u.WithClient(ctx, func(ctxCl context.Context, client txscope.IClient) error {
		return txscope.SelectOnePlain(ctxCl, client,
			fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE name = $1)", m.table),
			&held, txscope.Args{name})
	})
	if err != nil {
		return false, fmt.Errorf("check lock %q: %w", name, err)
	}

	return held, nil
}
