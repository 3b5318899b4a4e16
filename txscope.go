// Package txscope is a nested-transaction coordinator (unit of work) for
// PostgreSQL on top of pgx. The root package carries the shared surface:
// error classification, logging, client interfaces and query helpers.
// Scope management lives in the uow and pg subpackages.
package txscope

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	sq "github.com/n-r-w/squirrel"
)

// Args is a slice of values for binding.
// Used to explicitly separate query parameters from other arguments.
type Args []any

// Builder creates a new instance of squirrel.StatementBuilderType for building queries
func Builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

const sqlTruncLen = 100

// TruncSQL truncates sql to sqlTruncLen characters.
func TruncSQL(sql string) string {
	if len(sql) > sqlTruncLen {
		return sql[0:sqlTruncLen] + "..."
	}

	return sql
}

func sqToSQL(sqlizer sq.Sqlizer) (string, []any, error) {
	sql, args, err := sqlizer.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("to sql: %w", err)
	}

	return sql, args, nil
}

// Exec executes a modification query. Querier can be pgx.Tx, a pool or an IClient.
func Exec(ctx context.Context, querier IQuerier, sqlizer sq.Sqlizer) (pgconn.CommandTag, error) {
	sql, args, err := sqToSQL(sqlizer)
	if err != nil {
		return pgconn.CommandTag{}, fmt.Errorf("txscope.Exec: %w", err)
	}

	return ExecPlain(ctx, querier, sql, args)
}

// ExecPlain executes a modification query without a builder.
func ExecPlain(ctx context.Context, querier IQuerier, sql string, args Args) (pgconn.CommandTag, error) {
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return tag, fmt.Errorf("sql exec: %w [%s]", err, TruncSQL(sql))
	}

	return tag, nil
}

// Select executes a query and scans all rows into dst.
func Select[T any](ctx context.Context, querier IQuerier, sqlizer sq.Sqlizer, dst *[]T) error {
	sql, args, err := sqToSQL(sqlizer)
	if err != nil {
		return fmt.Errorf("txscope.Select: %w", err)
	}

	return SelectPlain(ctx, querier, sql, dst, args)
}

// SelectPlain executes a query without a builder and scans all rows into dst.
func SelectPlain[T any](ctx context.Context, querier IQuerier, sql string, dst *[]T, args Args) error {
	if err := pgxscan.Select(ctx, querier, dst, sql, args...); err != nil {
		return fmt.Errorf("sql select: %w [%s]", err, TruncSQL(sql))
	}

	return nil
}

// SelectOne executes a query and scans a single row into dst.
// dst must contain a variable, not a slice.
func SelectOne[T any](ctx context.Context, querier IQuerier, sqlizer sq.Sqlizer, dst *T) error {
	sql, args, err := sqToSQL(sqlizer)
	if err != nil {
		return fmt.Errorf("txscope.SelectOne: %w", err)
	}

	return SelectOnePlain(ctx, querier, sql, dst, args)
}

// SelectOnePlain executes a query without a builder and scans a single row into dst.
func SelectOnePlain[T any](ctx context.Context, querier IQuerier, sql string, dst *T, args Args) error {
	if err := pgxscan.Get(ctx, querier, dst, sql, args...); err != nil {
		return fmt.Errorf("sql select one: %w [%s]", err, TruncSQL(sql))
	}

	return nil
}

// SelectFunc executes a query and passes each row to function f.
func SelectFunc(ctx context.Context, querier IQuerier, sqlizer sq.Sqlizer, f func(pgx.Row) error) error {
	sql, args, err := sqToSQL(sqlizer)
	if err != nil {
		return fmt.Errorf("txscope.SelectFunc: %w", err)
	}

	rows, err := querier.Query(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("sql select: %w [%s]", err, TruncSQL(sql))
	}
	defer rows.Close()

	for rows.Next() {
		if err := f(rows); err != nil {
			return err
		}
	}

	return rows.Err()
}

// ExecBatch executes a batch of queries with error checking.
func ExecBatch(ctx context.Context, batcher IBatcher, queries []sq.Sqlizer) (rowsAffected int64, err error) {
	batch := pgx.Batch{}

	for _, query := range queries {
		sql, args, err := sqToSQL(query)
		if err != nil {
			return 0, fmt.Errorf("txscope.ExecBatch: %w", err)
		}

		batch.Queue(sql, args...)
	}

	res := batcher.SendBatch(ctx, &batch)
	defer func() {
		if errClose := res.Close(); errClose != nil && err == nil {
			err = fmt.Errorf("close batch: %w", errClose)
		}
	}()

	for range batch.Len() {
		tag, errExec := res.Exec()
		if errExec != nil {
			return 0, fmt.Errorf("batch exec: %w", errExec)
		}
		rowsAffected += tag.RowsAffected()
	}

	return rowsAffected, nil
}
