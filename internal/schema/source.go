package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"db-merge/internal/dialect"
	"db-merge/internal/errs"
)

// Source is the read side of a database connection as the diff engine and
// the merge actions see it. Every method is a catalog or row-count read;
// nothing here mutates the database.
type Source interface {
	Dialect() dialect.Dialect
	DefaultSchema(ctx context.Context) (string, error)
	Snapshot(ctx context.Context) (*Catalog, error)
	// ObjectID returns 0 when the table does not exist.
	ObjectID(ctx context.Context, schema, table string) (int64, error)
	IsTableEmpty(ctx context.Context, schema, table string) (bool, error)
	ColumnExists(ctx context.Context, schema, table, column string) (bool, error)
	IndexExists(ctx context.Context, schema, table, index string) (bool, error)
	// PrimaryKey returns the key columns in key order, empty when the
	// table has no primary key.
	PrimaryKey(ctx context.Context, schema, table string) ([]*KeyColumnInfo, error)
	// ReferencingForeignKeys returns the foreign keys of any table that
	// point at schema.table.
	ReferencingForeignKeys(ctx context.Context, schema, table string) ([]*ForeignKeyInfo, error)
	// EnumNames returns the Name column of an enum lookup table.
	EnumNames(ctx context.Context, schema, table string) ([]string, error)
}

// Conn is a Source backed by a database/sql connection pool.
type Conn struct {
	db       *sql.DB
	d        dialect.Dialect
	excluded []string
	log      zerolog.Logger
}

var _ Source = (*Conn)(nil)

// NewConn wraps db. Tables in excluded schemas are invisible to Snapshot.
func NewConn(db *sql.DB, d dialect.Dialect, excluded []string, log zerolog.Logger) *Conn {
	return &Conn{db: db, d: d, excluded: excluded, log: log}
}

// DB returns the underlying pool.
func (c *Conn) DB() *sql.DB { return c.db }

func (c *Conn) Dialect() dialect.Dialect { return c.d }

func (c *Conn) DefaultSchema(ctx context.Context) (string, error) {
	var name sql.NullString
	if err := c.db.QueryRowContext(ctx, c.d.DefaultSchemaQuery()).Scan(&name); err != nil {
		return "", errs.Query("failed to resolve default schema", err)
	}
	if !name.Valid || name.String == "" {
		return "", errs.Configuration("connection has no default schema (no database selected?)")
	}
	return name.String, nil
}

func (c *Conn) Snapshot(ctx context.Context) (*Catalog, error) {
	return Analyze(ctx, c.db, c.d, c.excluded, c.log)
}

func (c *Conn) ObjectID(ctx context.Context, schema, table string) (int64, error) {
	var id int64
	err := c.db.QueryRowContext(ctx, c.d.ObjectIDQuery(), schema, table).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errs.Query(fmt.Sprintf("failed to resolve object id of %s.%s", schema, table), err)
	}
	return id, nil
}

func (c *Conn) IsTableEmpty(ctx context.Context, schema, table string) (bool, error) {
	query := c.d.LimitRowQuery(fmt.Sprintf("SELECT 1 FROM %s", c.d.QualifiedName(schema, table)), 1)
	var one int
	err := c.db.QueryRowContext(ctx, query).Scan(&one)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, errs.Query(fmt.Sprintf("failed to check rows of %s.%s", schema, table), err)
	}
	return false, nil
}

func (c *Conn) ColumnExists(ctx context.Context, schema, table, column string) (bool, error) {
	return c.exists(ctx, c.d.ColumnExistsQuery(), schema, table, column)
}

func (c *Conn) IndexExists(ctx context.Context, schema, table, index string) (bool, error) {
	return c.exists(ctx, c.d.IndexExistsQuery(), schema, table, index)
}

func (c *Conn) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, errs.Query(fmt.Sprintf("failed to check existence of %s", strings.Join(toStrings(args), ".")), err)
	}
	return n > 0, nil
}

func (c *Conn) PrimaryKey(ctx context.Context, schema, table string) ([]*KeyColumnInfo, error) {
	rows, err := c.db.QueryContext(ctx, c.d.PrimaryKeyQuery(), schema, table)
	if err != nil {
		return nil, errs.Query(fmt.Sprintf("failed to query primary key of %s.%s", schema, table), err)
	}
	defer rows.Close()

	var keys []*KeyColumnInfo
	for rows.Next() {
		k := &KeyColumnInfo{Schema: schema, Table: table, Ordinal: len(keys) + 1}
		if err := rows.Scan(&k.Constraint, &k.Column); err != nil {
			return nil, errs.Query("failed to scan primary key column", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Query("error iterating primary key columns", err)
	}
	return keys, nil
}

func (c *Conn) ReferencingForeignKeys(ctx context.Context, schema, table string) ([]*ForeignKeyInfo, error) {
	rows, err := c.db.QueryContext(ctx, c.d.ReferencingForeignKeysQuery(), schema, table)
	if err != nil {
		return nil, errs.Query(fmt.Sprintf("failed to query foreign keys referencing %s.%s", schema, table), err)
	}
	defer rows.Close()

	var fks []*ForeignKeyInfo
	for rows.Next() {
		fk := &ForeignKeyInfo{RefSchema: schema, RefTable: table}
		if err := rows.Scan(&fk.Name, &fk.Schema, &fk.Table, &fk.Column, &fk.RefColumn); err != nil {
			return nil, errs.Query("failed to scan foreign key", err)
		}
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Query("error iterating foreign keys", err)
	}
	return fks, nil
}

func (c *Conn) EnumNames(ctx context.Context, schema, table string) ([]string, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", c.d.QuoteIdent(enumNameColumn), c.d.QualifiedName(schema, table))
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errs.Query(fmt.Sprintf("failed to read enum table %s.%s", schema, table), err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errs.Query("failed to scan enum name", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Query("error iterating enum names", err)
	}
	return names, nil
}

func toStrings(args []any) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = fmt.Sprint(a)
	}
	return out
}
