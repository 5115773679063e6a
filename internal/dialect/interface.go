package dialect

import "db-merge/internal/model"

// Dialect renders everything engine-specific: identifier quoting, catalog
// queries, canonical type names and DDL. The diff engine and every merge
// action go through it for anything that differs between databases.
type Dialect interface {
	// Name is the canonical driver name, e.g. "sqlserver".
	Name() string

	// Script layout
	BatchSeparator() string      // line written after every statement, e.g. "GO"
	StatementTerminator() string // appended to every statement, e.g. ";"

	// Identifiers and literals
	QuoteIdent(name string) string
	QuoteString(value string) string
	QualifiedName(schema, table string) string
	Placeholder(index int) string // Returns ?, $1, @p1, etc.

	// Catalog Queries (Schema Introspection)
	DefaultSchemaQuery() string
	SystemSchemas() []string
	SchemasQuery() string
	// TablesQuery yields object_id, schema, table.
	TablesQuery() string
	// ColumnsQuery yields, ordered by object id and column position:
	// object_id, column, data_type, max_length, precision, scale,
	// is_nullable (0/1), is_computed (0/1), collation,
	// fk_name, fk_schema, fk_table, fk_column.
	ColumnsQuery() string
	// ObjectIDQuery takes (schema, table) and yields the object id.
	ObjectIDQuery() string
	// ColumnExistsQuery takes (schema, table, column) and yields a count.
	ColumnExistsQuery() string
	// IndexExistsQuery takes (schema, table, index) and yields a count.
	IndexExistsQuery() string
	// PrimaryKeyQuery takes (schema, table) and yields constraint, column
	// in key order.
	PrimaryKeyQuery() string
	// ReferencingForeignKeysQuery takes (schema, table) of the referenced
	// table and yields constraint, schema, table, column, referenced column.
	ReferencingForeignKeysQuery() string
	LimitRowQuery(query string, limit int) string

	// Types
	TypeName(spec TypeSpec) (string, error)
	// NormalizeType renders a catalog-reported type, whose length,
	// precision and scale arrive separately, in the same canonical text
	// TypeName produces.
	NormalizeType(dataType string, maxLength, precision, scale int) string
	KeyTypes() map[model.KeyGeneration]string

	// DDL
	CreateSchema(schema string) string
	CreateTable(t TableDef) string
	DropTable(schema, table string) string
	AddColumn(schema, table string, c ColumnDef) string
	AlterColumn(schema, table string, from, to ColumnDef) string
	DropColumn(schema, table, column string) string
	AddPrimaryKey(schema, table, name string, columns []string) string
	DropPrimaryKey(schema, table, name string) string
	AddForeignKey(fk ForeignKeyDef) string
	DropForeignKey(schema, table, name string) string
	CreateIndex(idx IndexDef) string
	DropIndex(schema, table, name string) string

	// DML used by backfills and enum tables
	Update(schema, table, column, expression string) string
	Insert(schema, table string, columns, values []string) string
}

// DefaultConstraints is implemented by dialects that bind column defaults
// as named constraints. Such a constraint blocks ALTER COLUMN until it is
// dropped.
type DefaultConstraints interface {
	DropDefault(schema, table, column string) string
	AddDefault(schema, table string, c ColumnDef) string
}

// ImplicitCommit is implemented by dialects whose DDL statements commit
// on their own. An action of several statements is then not atomic.
type ImplicitCommit interface {
	CommitsDDL() bool
}

// TypeSpec is the model-side description of a column type.
type TypeSpec struct {
	Kind      model.Kind
	Length    int // <= 0 means unbounded
	Precision int
	Scale     int
}

// ColumnDef is a fully resolved column definition ready to render.
type ColumnDef struct {
	Name     string
	Type     string
	Nullable bool
	// Default is a rendered default expression, empty for none.
	Default string
	// KeyFragment is the native key-generation clause from KeyTypes.
	KeyFragment string
	// Computed is the expression of a calculated column.
	Computed  string
	Persisted bool
	Collation string
}

// TableDef describes a table to create.
type TableDef struct {
	Schema         string
	Name           string
	Columns        []ColumnDef
	PrimaryKeyName string
	PrimaryKey     []string
}

// ForeignKeyDef describes a foreign key constraint.
type ForeignKeyDef struct {
	Name          string
	Schema        string
	Table         string
	Column        string
	RefSchema     string
	RefTable      string
	RefColumn     string
	CascadeDelete bool
}

// IndexDef describes an index.
type IndexDef struct {
	Name      string
	Schema    string
	Table     string
	Columns   []string
	Unique    bool
	Clustered bool
}
