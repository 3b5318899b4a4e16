// Package pg implements the PostgreSQL side of the transaction coordinator:
// the DB service owning the pgxpool, the Tx state machine with its savepoint
// stack, the guarded client and the savepoint-only TestDB variant for tests
// that run inside an externally owned transaction.
package pg

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/n-r-w/bootstrap"
	"github.com/n-r-w/txscope"
	"github.com/n-r-w/txscope/uow"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver
)

// DB is a service for working with a PostgreSQL database. It implements the
// bootstrap.IService lifecycle and the uow scope contracts, so one instance
// serves both as the connection owner and as the transaction coordinator.
type DB struct {
	name           string
	restartPolicy  []backoff.RetryOption
	dsn            string
	logQueries     bool
	afterStartFunc func(context.Context, *DB) error

	config  *pgxpool.Config
	pool    *pgxpool.Pool
	acquire AcquireFunc

	logger txscope.ILogger
	spSeq  atomic.Int64
}

var (
	_ bootstrap.IService = (*DB)(nil)
	_ uow.IScopeBeginner = (*DB)(nil)
	_ uow.IScopeInformer = (*DB)(nil)
	_ uow.IClientSource  = (*DB)(nil)
)

// New creates a new instance of DB.
func New(opt ...Option) *DB {
	p := &DB{}

	for _, o := range opt {
		o(p)
	}

	if p.name == "" {
		p.name = "txscope"
	}

	return p
}

// Start starts the service.
func (p *DB) Start(ctx context.Context) (err error) {
	if p.logger != nil {
		p.logger.Debug(ctx, "starting database service", "database", p.name)
	}

	defer func() {
		if err == nil && p.afterStartFunc != nil {
			err = p.afterStartFunc(ctx, p)
			if err != nil {
				err = fmt.Errorf("failed to run after start function: %w", err)
			}
		}
	}()

	if p.pool == nil {
		var pool *pgxpool.Pool
		if p.config != nil {
			pool, err = pgxpool.NewWithConfig(ctx, p.config)
		} else {
			pool, err = pgxpool.New(ctx, p.dsn)
		}
		if err != nil {
			return fmt.Errorf("failed to create pgx pool for database %s: %w", p.name, err)
		}

		if err = pool.Ping(ctx); err != nil {
			pool.Close()
			return fmt.Errorf("failed to connect to database %s: %w", p.name, err)
		}

		p.pool = pool
	} else if err = p.pool.Ping(ctx); err != nil {
		// a preset pool stays owned by the caller, so it is not closed here
		return fmt.Errorf("failed to connect to database %s: %w", p.name, err)
	}

	if p.logger != nil {
		p.logger.Debug(ctx, "connected to database", "database", p.name)
	}

	return nil
}

// Stop stops the service.
func (p *DB) Stop(_ context.Context) error {
	if p.pool != nil {
		p.pool.Close()
	}

	return nil
}

// Info returns service information.
func (p *DB) Info() bootstrap.Info {
	return bootstrap.Info{
		Name:          p.name,
		RestartPolicy: p.restartPolicy,
	}
}

// Begin opens a fresh root boundary and runs f inside it. The connection is
// acquired and BEGIN is issued lazily, on the first client use inside f; a
// body that never touches the client costs no connection at all.
func (p *DB) Begin(ctx context.Context, f func(ctxTr context.Context) error, opts uow.Options) error {
	t := newTx(p, opts, frameRoot)
	return t.begin(ctx, f)
}

// Join runs f inside the ambient boundary, sharing its connection and fate.
func (p *DB) Join(ctx context.Context, f func(ctxTr context.Context) error) error {
	t, ok := txFromContext(ctx)
	if !ok {
		return txscope.ErrNotStarted
	}

	return t.join(ctx, f)
}

// Nest runs f under a savepoint of the ambient boundary.
func (p *DB) Nest(ctx context.Context, f func(ctxTr context.Context) error) error {
	t, ok := txFromContext(ctx)
	if !ok {
		return txscope.ErrNotStarted
	}

	return t.nest(ctx, f)
}

// WithoutScope returns a context without the ambient scope.
func (p *DB) WithoutScope(ctx context.Context) context.Context {
	return WithoutScope(ctx)
}

// InScope returns true if a scope is open on this call chain.
func (p *DB) InScope(ctx context.Context) bool {
	_, ok := txFromContext(ctx)
	return ok
}

// ScopeOptions returns the ambient scope's options, or zero options outside a scope.
func (p *DB) ScopeOptions(ctx context.Context) uow.Options {
	t, ok := txFromContext(ctx)
	if !ok {
		//nolint:exhaustruct // zero values are the documented defaults
		return uow.Options{}
	}

	return t.opts
}

// Client returns the ambient scope's guarded client.
// Returns txscope.ErrNotStarted when called outside any scope.
func (p *DB) Client(ctx context.Context) (txscope.IClient, error) {
	t, ok := txFromContext(ctx)
	if !ok {
		return nil, txscope.ErrNotStarted
	}

	return &Client{t: t, logQueries: p.logQueries}, nil
}

// WithClient runs f with the ambient scope's client. Outside any scope it
// acquires one connection for exactly this call, runs f against it in
// autocommit mode (no BEGIN, no COMMIT) and releases it right after.
func (p *DB) WithClient(ctx context.Context, f func(ctx context.Context, client txscope.IClient) error) error {
	if client, err := p.Client(ctx); err == nil {
		return f(ctx, client)
	}

	conn, release, err := p.acquireConn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer release()

	return f(ctx, &plainClient{conn: conn, host: p, logQueries: p.logQueries})
}

// acquireConn hands a transaction its dedicated connection. The default
// factory is the pgxpool; WithAcquireFunc overrides it.
func (p *DB) acquireConn(ctx context.Context) (Conn, func(), error) {
	if p.acquire != nil {
		return p.acquire(ctx)
	}

	con, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	return con, con.Release, nil
}

// savepointName allocates a savepoint name. The counter is service-wide, so
// names never collide on a connection regardless of how scopes interleave.
func (p *DB) savepointName() string {
	return "sp_" + strconv.FormatInt(p.spSeq.Add(1), 10)
}

func (p *DB) hostName() string {
	return p.name
}

func (p *DB) queryLogger() (txscope.ILogger, bool) {
	return p.logger, p.logQueries
}
