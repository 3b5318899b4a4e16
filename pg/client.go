package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/n-r-w/txscope"
	"go.opentelemetry.io/otel/trace"
)

// Client is the guarded query surface handed to scope bodies. Before any call
// reaches the driver it consults the owning transaction, so a doomed boundary
// fails fast with txscope.ErrAborted instead of surfacing a confusing
// protocol error or silently running against a rolled-back state.
// The first call on a lazy scope acquires the connection and issues BEGIN.
type Client struct {
	t          *Tx
	logQueries bool
}

var (
	_ txscope.IClient  = (*Client)(nil)
	_ txscope.IStarter = (*Client)(nil)
)

// InScope returns true: a Client always belongs to a scope.
func (c *Client) InScope() bool {
	return true
}

// Start eagerly acquires the connection and issues BEGIN instead of waiting
// for the first query.
func (c *Client) Start(ctx context.Context) error {
	return c.t.ensureStarted(ctx)
}

// Exec executes a query without returning data.
func (c *Client) Exec(ctx context.Context, sql string, arguments ...any) (tag pgconn.CommandTag, err error) {
	if err = c.t.ensureStarted(ctx); err != nil {
		return pgconn.CommandTag{}, err
	}

	logQueryHelper(ctx, c.t.host, c.logQueries, "Exec", sql, arguments, func() error {
		tag, err = c.t.conn.Exec(ctx, sql, arguments...)
		return err
	})

	return tag, err
}

// Query executes a query and returns the result.
func (c *Client) Query(ctx context.Context, sql string, args ...any) (rows pgx.Rows, err error) {
	if err = c.t.ensureStarted(ctx); err != nil {
		return nil, err
	}

	logQueryHelper(ctx, c.t.host, c.logQueries, "Query", sql, args, func() error {
		rows, err = c.t.conn.Query(ctx, sql, args...) //nolint:sqlclosecheck // will be closed by caller
		return err
	})

	return rows, err
}

// QueryRow executes a query that should return no more than one row.
// Errors, including txscope.ErrAborted, are deferred until pgx.Row.Scan.
func (c *Client) QueryRow(ctx context.Context, sql string, args ...any) (row pgx.Row) {
	if err := c.t.ensureStarted(ctx); err != nil {
		return errRow{err: err}
	}

	logQueryHelper(ctx, c.t.host, c.logQueries, "QueryRow", sql, args, func() error {
		row = c.t.conn.QueryRow(ctx, sql, args...)
		return nil
	})

	return row
}

// SendBatch sends a set of queries for execution, combining them into one package.
func (c *Client) SendBatch(ctx context.Context, b *pgx.Batch) (res pgx.BatchResults) {
	if err := c.t.ensureStarted(ctx); err != nil {
		return errBatchResults{err: err}
	}

	logQueryHelper(ctx, c.t.host, c.logQueries, "SendBatch", "", nil, func() error {
		res = c.t.conn.SendBatch(ctx, b)
		return nil
	})

	return res
}

// CopyFrom implements bulk data insertion into a table.
func (c *Client) CopyFrom(ctx context.Context, tableName pgx.Identifier,
	columnNames []string, rowSrc pgx.CopyFromSource,
) (n int64, err error) {
	if err = c.t.ensureStarted(ctx); err != nil {
		return 0, err
	}

	logQueryHelper(ctx, c.t.host, c.logQueries, fmt.Sprintf("COPY %s", tableName.Sanitize()), "", nil, func() error {
		n, err = c.t.conn.CopyFrom(ctx, tableName, columnNames, rowSrc)
		return err
	})

	return n, err
}

// plainClient is the autocommit client used by WithClient outside any scope:
// every statement runs on its own, with no BEGIN and no guard to consult.
type plainClient struct {
	conn       Conn
	host       txHost
	logQueries bool
}

var _ txscope.IClient = (*plainClient)(nil)

func (c *plainClient) InScope() bool {
	return false
}

func (c *plainClient) Exec(ctx context.Context, sql string, arguments ...any) (tag pgconn.CommandTag, err error) {
	logQueryHelper(ctx, c.host, c.logQueries, "Exec", sql, arguments, func() error {
		tag, err = c.conn.Exec(ctx, sql, arguments...)
		return err
	})

	return tag, err
}

func (c *plainClient) Query(ctx context.Context, sql string, args ...any) (rows pgx.Rows, err error) {
	logQueryHelper(ctx, c.host, c.logQueries, "Query", sql, args, func() error {
		rows, err = c.conn.Query(ctx, sql, args...) //nolint:sqlclosecheck // will be closed by caller
		return err
	})

	return rows, err
}

func (c *plainClient) QueryRow(ctx context.Context, sql string, args ...any) (row pgx.Row) {
	logQueryHelper(ctx, c.host, c.logQueries, "QueryRow", sql, args, func() error {
		row = c.conn.QueryRow(ctx, sql, args...)
		return nil
	})

	return row
}

func (c *plainClient) SendBatch(ctx context.Context, b *pgx.Batch) (res pgx.BatchResults) {
	logQueryHelper(ctx, c.host, c.logQueries, "SendBatch", "", nil, func() error {
		res = c.conn.SendBatch(ctx, b)
		return nil
	})

	return res
}

func (c *plainClient) CopyFrom(ctx context.Context, tableName pgx.Identifier,
	columnNames []string, rowSrc pgx.CopyFromSource,
) (n int64, err error) {
	logQueryHelper(ctx, c.host, c.logQueries, fmt.Sprintf("COPY %s", tableName.Sanitize()), "", nil, func() error {
		n, err = c.conn.CopyFrom(ctx, tableName, columnNames, rowSrc)
		return err
	})

	return n, err
}

// errRow defers a guard error to the Scan call, matching pgx.Row semantics.
type errRow struct {
	err error
}

func (r errRow) Scan(_ ...any) error {
	return r.err
}

// errBatchResults defers a guard error to every result of the batch.
type errBatchResults struct {
	err error
}

func (b errBatchResults) Exec() (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, b.err
}

func (b errBatchResults) Query() (pgx.Rows, error) {
	return nil, b.err
}

func (b errBatchResults) QueryRow() pgx.Row {
	return errRow{err: b.err}
}

func (b errBatchResults) Close() error {
	return b.err
}

// logQueryHelper performs query logging and calls function f.
func logQueryHelper(ctx context.Context, host txHost, logQueries bool,
	command, query string, args []any, f func() error,
) {
	logger, hostLogQueries := host.queryLogger()
	if logger == nil || (!logQueries && !hostLogQueries) {
		_ = f() // the result is handled inside f
		return
	}

	start := time.Now()

	err := f()

	attrs := []any{
		"database", host.hostName(),
		"command", command,
		"latency", time.Since(start),
		"args", args,
	}

	if query != "" {
		attrs = append(attrs, "query", query)
	}

	spanContext := trace.SpanFromContext(ctx).SpanContext()
	if spanContext.TraceID().IsValid() {
		attrs = append(attrs, "trace_id", spanContext.TraceID().String())
	}

	if err != nil {
		attrs = append(attrs, "error", err)
		logger.Error(ctx, "dbquery", attrs...)
	} else {
		logger.Debug(ctx, "dbquery", attrs...)
	}
}
