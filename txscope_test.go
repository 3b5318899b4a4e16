package txscope

import (
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	sq "github.com/n-r-w/squirrel"
	"github.com/stretchr/testify/require"
)

func Test_TruncSQL(t *testing.T) {
	t.Parallel()

	var sqlOK, sqlTrunc string
	for range sqlTruncLen {
		sqlOK += "1"
		sqlTrunc += "1"
	}
	sqlTrunc += "1"

	require.Len(t, TruncSQL(sqlTrunc), sqlTruncLen+3)
	require.Equal(t, sqlOK, TruncSQL(sqlOK))
}

func Test_Builder(t *testing.T) {
	t.Parallel()

	sql, args, err := Builder().
		Select("id").
		From("accounts").
		Where(sq.Eq{"name": "x"}).
		ToSql()
	require.NoError(t, err)
	require.Equal(t, "SELECT id FROM accounts WHERE name = $1", sql)
	require.Equal(t, []any{"x"}, args)
}

func pgErrWithCode(code string) error {
	//nolint:exhaustruct // only the code matters for classification
	return fmt.Errorf("exec: %w", &pgconn.PgError{Code: code})
}

func Test_ErrorClassification(t *testing.T) {
	t.Parallel()

	require.True(t, IsNoRows(pgx.ErrNoRows))
	require.True(t, IsNoRows(fmt.Errorf("get: %w", pgx.ErrNoRows)))
	require.True(t, IsNoRows(pgErrWithCode(pgerrcode.NoDataFound)))
	require.False(t, IsNoRows(pgErrWithCode(pgerrcode.UniqueViolation)))
	require.False(t, IsNoRows(nil))

	require.True(t, IsUniqueViolation(pgErrWithCode(pgerrcode.UniqueViolation)))
	require.False(t, IsUniqueViolation(pgErrWithCode(pgerrcode.ForeignKeyViolation)))
	require.False(t, IsUniqueViolation(ErrAborted))

	require.True(t, IsForeignKeyViolation(pgErrWithCode(pgerrcode.ForeignKeyViolation)))
	require.False(t, IsForeignKeyViolation(pgErrWithCode(pgerrcode.UniqueViolation)))

	require.True(t, IsSerializationFailure(pgErrWithCode(pgerrcode.SerializationFailure)))
	require.False(t, IsSerializationFailure(pgErrWithCode(pgerrcode.UniqueViolation)))
}
