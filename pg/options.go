package pg

import (
	"context"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/n-r-w/txscope"
)

// Option option for DB.
type Option func(*DB)

// WithName sets service name.
func WithName(name string) Option {
	return func(p *DB) {
		p.name = name
	}
}

// WithDSN sets DSN for database connection.
// If WithConfig is used, this option is ignored.
func WithDSN(dsn string) Option {
	return func(p *DB) {
		p.dsn = dsn
	}
}

// WithConfig sets connection pool configuration.
func WithConfig(cfg *pgxpool.Config) Option {
	return func(p *DB) {
		p.config = cfg
	}
}

// WithPool sets the connection pool when creating a DB instance.
// Start skips pool creation for a preset pool and only verifies connectivity;
// WithDSN and WithConfig are ignored then.
func WithPool(pool *pgxpool.Pool) Option {
	return func(p *DB) {
		p.pool = pool
	}
}

// WithAcquireFunc replaces the pool as the transaction connection factory.
// The returned cleanup is invoked exactly once per created connection, after
// the root boundary finalizes.
func WithAcquireFunc(acquire AcquireFunc) Option {
	return func(p *DB) {
		p.acquire = acquire
	}
}

// WithRestartPolicy sets service restart policy on error.
// Only works when using https://github.com/n-r-w/bootstrap
func WithRestartPolicy(policy ...backoff.RetryOption) Option {
	return func(p *DB) {
		p.restartPolicy = policy
	}
}

// WithLogQueries enables query logging at the service level.
func WithLogQueries() Option {
	return func(p *DB) {
		p.logQueries = true
	}
}

// WithAfterStartFunc sets a function that will be called after successful service start.
func WithAfterStartFunc(f func(context.Context, *DB) error) Option {
	return func(p *DB) {
		p.afterStartFunc = f
	}
}

// WithLogger sets the logger.
func WithLogger(logger txscope.ILogger) Option {
	return func(p *DB) {
		p.logger = logger
	}
}
