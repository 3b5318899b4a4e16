package txscope

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Coordinator errors. Everything the driver returns is passed through
// unchanged; these cover only the coordinator's own failure modes.
var (
	// ErrNotStarted is returned when a client is requested outside any scope.
	ErrNotStarted = errors.New("txscope: no ambient scope")

	// ErrAborted is returned when a query is attempted on a doomed boundary.
	// Once a scope is aborted no statement of that scope may reach the
	// driver, even if the original error was caught by the caller.
	ErrAborted = errors.New("txscope: scope aborted")
)

// Helpers for classifying Postgres errors.
// The pgerrcode package contains Postgres error codes and many useful functions
// like IsIntegrityConstraintViolation. If something is missing there, it is added here.
// https://www.postgresql.org/docs/16/errcodes-appendix.html

// IsNoRows checks if the error is a "no rows" error.
func IsNoRows(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}

	if pgErr, ok := toPgError(err); ok {
		if pgErr.Code == pgerrcode.NoDataFound {
			return true
		}
	}
	return false
}

// IsUniqueViolation checks if the error is a unique constraint violation.
// Collaborators that use unique keys as mutual-exclusion locks translate
// this to a boolean "not acquired" instead of propagating it.
func IsUniqueViolation(err error) bool {
	if pgErr, ok := toPgError(err); ok {
		if pgErr.Code == pgerrcode.UniqueViolation {
			return true
		}
	}
	return false
}

// IsForeignKeyViolation checks if the error is a foreign key constraint violation.
func IsForeignKeyViolation(err error) bool {
	if pgErr, ok := toPgError(err); ok {
		if pgErr.Code == pgerrcode.ForeignKeyViolation {
			return true
		}
	}
	return false
}

// IsSerializationFailure checks if the error is a serialization failure.
// Scopes running at Serializable isolation should treat this as retryable.
func IsSerializationFailure(err error) bool {
	if pgErr, ok := toPgError(err); ok {
		if pgErr.Code == pgerrcode.SerializationFailure {
			return true
		}
	}
	return false
}

func toPgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
