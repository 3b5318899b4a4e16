package txscope

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// IQuerier is a subset of pgxpool.Pool, pgx.Conn and pgx.Tx interfaces for queries
type IQuerier interface {
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (commandTag pgconn.CommandTag, err error)
}

// IBatcher is a subset of pgxpool.Pool, pgx.Conn and pgx.Tx interfaces for batches
type IBatcher interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// IClient is the query surface handed to scope bodies. It mirrors the shared
// methods of pgxpool.Pool, pgx.Conn and pgx.Tx, so repository code does not
// care whether it runs inside a transaction, a savepoint or in autocommit mode.
type IClient interface {
	IQuerier
	IBatcher

	// QueryRow executes a query that should return no more than one row.
	// Errors are deferred until the pgx.Row.Scan method is called.
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row

	// CopyFrom implements bulk data insertion into a table.
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)

	// InScope returns true if the client belongs to an open transactional scope.
	InScope() bool
}

// IStarter is implemented by clients whose scope supports eager startup:
// Start forces connection acquisition and BEGIN before the first query.
// The legacy Wrap entry point uses it; lazy callers never need it.
type IStarter interface {
	Start(ctx context.Context) error
}
