// Package uow implements the database-agnostic unit-of-work facade.
// It resolves the requested propagation policy against the ambient scope and
// delegates the actual transaction work to an IScopeBeginner implementation.
package uow

import (
	"context"
	"fmt"

	"github.com/n-r-w/txscope"
)

// Options represents scope configuration options.
type Options struct {
	// Propagation defines how the scope relates to an ambient transaction.
	Propagation Propagation
	// Level defines the transaction isolation level.
	Level TxLevel
	// Mode defines the transaction access mode.
	Mode TxMode
}

// Option scope option function.
type Option func(*Options)

// WithPropagation sets the propagation policy.
func WithPropagation(p Propagation) Option {
	return func(opts *Options) {
		opts.Propagation = p
	}
}

// WithTxLevel sets the transaction isolation level.
func WithTxLevel(level TxLevel) Option {
	return func(opts *Options) {
		opts.Level = level
	}
}

// WithTxMode sets the transaction access mode.
func WithTxMode(mode TxMode) Option {
	return func(opts *Options) {
		opts.Mode = mode
	}
}

// UnitOfWork is the public transactional boundary for application code.
// The ambient transaction travels in the context, so nothing has to be
// passed through call chains explicitly.
type UnitOfWork struct {
	beginner IScopeBeginner
	informer IScopeInformer
	clients  IClientSource
}

// New creates a new UnitOfWork.
func New(beginner IScopeBeginner, informer IScopeInformer, clients IClientSource) *UnitOfWork {
	return &UnitOfWork{
		beginner: beginner,
		informer: informer,
		clients:  clients,
	}
}

// Scope runs f inside a transactional boundary resolved from the requested
// propagation and the ambient scope:
//
//	PropagationExisting: join the ambient scope, or begin a new one.
//	PropagationNew:      always begin a new scope on a fresh connection.
//	PropagationNested:   open a savepoint under the ambient scope, or begin
//	                     a new one when there is nothing to nest under.
//
// The boundary is lazy: a body that never touches the client acquires no
// connection. Errors returned by f are rethrown unchanged; the coordinator
// intercepts them only to decide commit versus rollback.
func (u *UnitOfWork) Scope(ctx context.Context, f func(ctxTr context.Context) error, opts ...Option) error {
	sOpts := &Options{
		Propagation: PropagationExisting,
		Level:       TxLevelDefault,
		Mode:        TxModeDefault,
	}
	for _, opt := range opts {
		opt(sOpts)
	}

	switch sOpts.Propagation {
	case PropagationNew:
		// a fresh transaction must never share the ambient connection
		return u.beginner.Begin(u.beginner.WithoutScope(ctx), f, *sOpts)

	case PropagationNested:
		if u.informer.InScope(ctx) {
			// a savepoint shares the ambient connection, so it cannot
			// change the isolation level or access mode either
			if err := u.checkCompatible(ctx, sOpts); err != nil {
				return err
			}
			return u.beginner.Nest(ctx, f)
		}
		return u.beginner.Begin(ctx, f, *sOpts)

	case PropagationExisting:
		if u.informer.InScope(ctx) {
			if err := u.checkCompatible(ctx, sOpts); err != nil {
				return err
			}
			return u.beginner.Join(ctx, f)
		}
		return u.beginner.Begin(ctx, f, *sOpts)

	default:
		return fmt.Errorf("unknown propagation: %d", sOpts.Propagation)
	}
}

// Wrap is the legacy eager entry point: same boundary semantics as Scope, but
// the connection is acquired immediately and handed to f.
// Historically Wrap defaulted to a savepoint per call; it now shares Scope's
// PropagationExisting default, pass WithPropagation(PropagationNested) to get
// the old behavior.
func (u *UnitOfWork) Wrap(ctx context.Context,
	f func(ctx context.Context, client txscope.IClient) error, opts ...Option,
) error {
	return u.Scope(ctx, func(ctxTr context.Context) error {
		return u.clients.WithClient(ctxTr, func(ctxCl context.Context, client txscope.IClient) error {
			if starter, ok := client.(txscope.IStarter); ok {
				if err := starter.Start(ctxCl); err != nil {
					return err
				}
			}
			return f(ctxCl, client)
		})
	}, opts...)
}

// WithClient runs f with the ambient scope's client. Without an ambient scope
// it acquires an autocommit connection for exactly this call and releases it
// right after, with no BEGIN or COMMIT.
func (u *UnitOfWork) WithClient(ctx context.Context,
	f func(ctx context.Context, client txscope.IClient) error,
) error {
	return u.clients.WithClient(ctx, f)
}

// Client returns the ambient scope's client.
// Returns txscope.ErrNotStarted when called outside any scope.
func (u *UnitOfWork) Client(ctx context.Context) (txscope.IClient, error) {
	return u.clients.Client(ctx)
}

// InScope returns true if a scope is open on this call chain.
func (u *UnitOfWork) InScope(ctx context.Context) bool {
	return u.informer.InScope(ctx)
}

// ScopeOptions returns the ambient scope's options, or zero options outside
// any scope.
func (u *UnitOfWork) ScopeOptions(ctx context.Context) Options {
	return u.informer.ScopeOptions(ctx)
}

// WithoutScope returns a context stripped of the ambient scope.
func (u *UnitOfWork) WithoutScope(ctx context.Context) context.Context {
	return u.beginner.WithoutScope(ctx)
}

// checkCompatible verifies that an explicitly requested isolation level or
// access mode does not contradict the ambient scope: a joined scope cannot
// change either mid-transaction. Default requests always join.
func (u *UnitOfWork) checkCompatible(ctx context.Context, requested *Options) error {
	ambient := u.informer.ScopeOptions(ctx)

	if requested.Level != TxLevelDefault && requested.Level.normalized() != ambient.Level.normalized() {
		return fmt.Errorf("isolation level mismatch: %d != %d", ambient.Level, requested.Level)
	}
	if requested.Mode != TxModeDefault && requested.Mode.normalized() != ambient.Mode.normalized() {
		return fmt.Errorf("access mode mismatch: %d != %d", ambient.Mode, requested.Mode)
	}

	return nil
}
