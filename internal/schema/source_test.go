package schema_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-merge/internal/dialect"
	"db-merge/internal/errs"
	"db-merge/internal/schema"
)

func newConn(t *testing.T, d dialect.Dialect) (*schema.Conn, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return schema.NewConn(db, d, nil, zerolog.Nop()), mock
}

func TestConn_DefaultSchema(t *testing.T) {
	conn, mock := newConn(t, &dialect.MysqlDialect{})
	mock.ExpectQuery("SELECT DATABASE()").WillReturnRows(sqlmock.NewRows([]string{"db"}).AddRow("shop"))

	name, err := conn.DefaultSchema(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "shop", name)

	mock.ExpectQuery("SELECT DATABASE()").WillReturnRows(sqlmock.NewRows([]string{"db"}).AddRow(nil))
	_, err = conn.DefaultSchema(context.Background())
	assert.True(t, errs.IsConfiguration(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_ObjectID(t *testing.T) {
	d := &dialect.MSSQLDialect{}
	conn, mock := newConn(t, d)
	ctx := context.Background()

	mock.ExpectQuery(d.ObjectIDQuery()).WithArgs("dbo", "Region").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
	id, err := conn.ObjectID(ctx, "dbo", "Region")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	mock.ExpectQuery(d.ObjectIDQuery()).WithArgs("dbo", "Missing").
		WillReturnError(sql.ErrNoRows)
	id, err = conn.ObjectID(ctx, "dbo", "Missing")
	require.NoError(t, err)
	assert.Zero(t, id)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_IsTableEmpty(t *testing.T) {
	d := &dialect.MSSQLDialect{}
	conn, mock := newConn(t, d)
	ctx := context.Background()
	query := "SELECT TOP 1 1 FROM [dbo].[Customer]"

	mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows([]string{"one"}))
	empty, err := conn.IsTableEmpty(ctx, "dbo", "Customer")
	require.NoError(t, err)
	assert.True(t, empty)

	mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	empty, err = conn.IsTableEmpty(ctx, "dbo", "Customer")
	require.NoError(t, err)
	assert.False(t, empty)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_PrimaryKeyAndReferences(t *testing.T) {
	d := &dialect.PostgresDialect{}
	conn, mock := newConn(t, d)
	ctx := context.Background()

	mock.ExpectQuery(d.PrimaryKeyQuery()).WithArgs("public", "order_line").
		WillReturnRows(sqlmock.NewRows([]string{"constraint", "column"}).
			AddRow("order_line_pkey", "order_id").
			AddRow("order_line_pkey", "line_no"))
	keys, err := conn.PrimaryKey(ctx, "public", "order_line")
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "line_no", keys[1].Column)
	assert.Equal(t, 2, keys[1].Ordinal)
	assert.Equal(t, "order_line_pkey", keys[0].Constraint)

	mock.ExpectQuery(d.ReferencingForeignKeysQuery()).WithArgs("public", "order_line").
		WillReturnRows(sqlmock.NewRows([]string{"name", "schema", "table", "column", "ref"}).
			AddRow("fk_note_line", "public", "note", "line_id", "line_no"))
	refs, err := conn.ReferencingForeignKeys(ctx, "public", "order_line")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "note", refs[0].Table)
	assert.Equal(t, "order_line", refs[0].RefTable)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_ExistsAndEnumNames(t *testing.T) {
	d := &dialect.OracleDialect{}
	conn, mock := newConn(t, d)
	ctx := context.Background()

	mock.ExpectQuery(d.IndexExistsQuery()).WithArgs("APP", "ORDERS", "IX_APP_ORDERS_CUSTOMER").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	ok, err := conn.IndexExists(ctx, "APP", "ORDERS", "IX_APP_ORDERS_CUSTOMER")
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectQuery(d.ColumnExistsQuery()).WithArgs("APP", "ORDERS", "NOTE").
		WillReturnError(assert.AnError)
	_, err = conn.ColumnExists(ctx, "APP", "ORDERS", "NOTE")
	assert.True(t, errs.IsQuery(err))

	mock.ExpectQuery(`SELECT "Name" FROM "APP"."STATUS"`).
		WillReturnRows(sqlmock.NewRows([]string{"Name"}).AddRow("Open").AddRow("Closed"))
	names, err := conn.EnumNames(ctx, "APP", "STATUS")
	require.NoError(t, err)
	assert.Equal(t, []string{"Open", "Closed"}, names)

	require.NoError(t, mock.ExpectationsWereMet())
}
