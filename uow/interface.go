package uow

//go:generate mockgen -source interface.go -destination interface_mock.go -package uow

import (
	"context"

	"github.com/n-r-w/txscope"
)

// IScopeBeginner starts and joins transactional boundaries. Implemented in pg package.
type IScopeBeginner interface {
	// Begin opens a fresh root boundary and runs f inside it. The boundary is
	// lazy: no connection is acquired and no BEGIN is issued until the first
	// client use inside f.
	Begin(ctx context.Context, f func(ctxTr context.Context) error, opts Options) error

	// Join runs f inside the ambient boundary, sharing its connection, its
	// depth tracking and its fate: an error returned by f dooms the boundary
	// even if the caller swallows the error.
	Join(ctx context.Context, f func(ctxTr context.Context) error) error

	// Nest runs f under a savepoint of the ambient boundary. An error
	// returned by f rolls back to the savepoint and is rethrown, leaving the
	// ambient boundary intact.
	Nest(ctx context.Context, f func(ctxTr context.Context) error) error

	// WithoutScope returns a context stripped of the ambient scope.
	WithoutScope(ctx context.Context) context.Context
}

// IScopeInformer reports on the ambient scope. Implemented in pg package.
type IScopeInformer interface {
	// InScope returns true if a scope is open on this call chain.
	InScope(ctx context.Context) bool
	// ScopeOptions returns the ambient scope's options.
	ScopeOptions(ctx context.Context) Options
}

// IClientSource hands out query clients bound to the ambient scope.
// Implemented in pg package.
type IClientSource interface {
	// Client returns the ambient scope's client or txscope.ErrNotStarted.
	Client(ctx context.Context) (txscope.IClient, error)

	// WithClient runs f with the ambient scope's client. Without an ambient
	// scope it runs f against a short-lived autocommit connection instead.
	WithClient(ctx context.Context, f func(ctx context.Context, client txscope.IClient) error) error
}
