package schema

import (
	"fmt"
	"strings"

	"db-merge/internal/dialect"
	"db-merge/internal/model"
)

// TableInfo identifies a table on either side of a compare. Identity is
// (schema, name), case-insensitive.
type TableInfo struct {
	Schema string
	Name   string
	// Model owns the table on the model side; nil for live tables.
	Model *model.Model
	// ObjectID is the catalog object id, 0 until resolved against the
	// live schema.
	ObjectID int64
	// Droppable tables may be altered, rebuilt and dropped. Tables owned
	// elsewhere only ever get columns added.
	Droppable bool
	// 참조하는 테이블들의 Key() 목록 (의존성 분석용)
	Dependencies []string
}

func tableKey(schema, name string) string {
	return strings.ToLower(schema + "." + name)
}

// Key is the case-insensitive identity of the table.
func (t *TableInfo) Key() string { return tableKey(t.Schema, t.Name) }

// Equal compares identities.
func (t *TableInfo) Equal(o *TableInfo) bool {
	return o != nil && t.Key() == o.Key()
}

func (t *TableInfo) String() string { return t.Schema + "." + t.Name }

// ForeignKeyInfo is a single-column foreign key.
type ForeignKeyInfo struct {
	Name          string
	Schema        string
	Table         string
	Column        string
	RefSchema     string
	RefTable      string
	RefColumn     string
	CascadeDelete bool
	// CreateIndex requests an index on the referencing column.
	CreateIndex bool
}

// Key is the case-insensitive constraint identity.
func (f *ForeignKeyInfo) Key() string {
	return strings.ToLower(f.Schema + "." + f.Table + "." + f.Name)
}

// RefKey is the table key of the referenced table.
func (f *ForeignKeyInfo) RefKey() string { return tableKey(f.RefSchema, f.RefTable) }

// SameTarget reports whether both keys point at the same column.
func (f *ForeignKeyInfo) SameTarget(o *ForeignKeyInfo) bool {
	return o != nil &&
		strings.EqualFold(f.RefSchema, o.RefSchema) &&
		strings.EqualFold(f.RefTable, o.RefTable) &&
		strings.EqualFold(f.RefColumn, o.RefColumn)
}

// IndexName is the name of the index that accompanies the key.
func (f *ForeignKeyInfo) IndexName() string {
	return dialect.IndexName(f.Schema, f.Table, f.Column)
}

// Def converts to the dialect rendering input.
func (f *ForeignKeyInfo) Def() dialect.ForeignKeyDef {
	return dialect.ForeignKeyDef{
		Name:          f.Name,
		Schema:        f.Schema,
		Table:         f.Table,
		Column:        f.Column,
		RefSchema:     f.RefSchema,
		RefTable:      f.RefTable,
		RefColumn:     f.RefColumn,
		CascadeDelete: f.CascadeDelete,
	}
}

func (f *ForeignKeyInfo) String() string {
	return fmt.Sprintf("%s.%s.%s -> %s.%s.%s", f.Schema, f.Table, f.Column, f.RefSchema, f.RefTable, f.RefColumn)
}

// KeyColumnInfo is one column of a primary key constraint.
type KeyColumnInfo struct {
	Constraint string
	Schema     string
	Table      string
	Column     string
	Ordinal    int
}

// ColumnInfo describes a column on either side of a compare.
type ColumnInfo struct {
	Schema string
	Table  string
	Name   string
	// DataType is the canonical type text, e.g. nvarchar(100).
	DataType     string
	IsNullable   bool
	IsCalculated bool
	ForeignKey   *ForeignKeyInfo
	Precision    int
	Scale        int
	Collation    string

	// The fields below are only known on the model side.
	Property        *model.Property
	Default         string
	DefaultConstant bool
	Computed        string
	Persisted       bool
	KeyGeneration   model.KeyGeneration
	IsKey           bool
}

// Key is the case-insensitive identity (schema, table, column).
func (c *ColumnInfo) Key() string {
	return strings.ToLower(c.Schema + "." + c.Table + "." + c.Name)
}

// Equal compares identities.
func (c *ColumnInfo) Equal(o *ColumnInfo) bool {
	return o != nil && c.Key() == o.Key()
}

func (c *ColumnInfo) String() string { return c.Schema + "." + c.Table + "." + c.Name }

// IsAlteredFrom reports whether the column differs from the live one in
// anything an ALTER would change. The live type must already be
// normalized by the dialect.
func (c *ColumnInfo) IsAlteredFrom(live *ColumnInfo) bool {
	if c.IsCalculated != live.IsCalculated {
		return true
	}
	if c.IsCalculated {
		// Computed column types and nullability are derived by the engine.
		return false
	}
	if c.IsNullable != live.IsNullable {
		return true
	}
	if canonicalType(c.DataType) != canonicalType(live.DataType) {
		return true
	}
	if c.Precision > 0 && (c.Precision != live.Precision || c.Scale != live.Scale) {
		return true
	}
	if c.Collation != "" && !strings.EqualFold(c.Collation, live.Collation) {
		return true
	}
	return false
}

func canonicalType(t string) string {
	return strings.Join(strings.Fields(strings.ToLower(t)), "")
}

// Def converts to the dialect rendering input.
func (c *ColumnInfo) Def(d dialect.Dialect) dialect.ColumnDef {
	def := dialect.ColumnDef{
		Name:      c.Name,
		Type:      c.DataType,
		Nullable:  c.IsNullable,
		Default:   c.Default,
		Computed:  c.Computed,
		Persisted: c.Persisted,
		Collation: c.Collation,
	}
	if c.KeyGeneration != model.KeyNone {
		def.KeyFragment = d.KeyTypes()[c.KeyGeneration]
	}
	return def
}

// EnumInfo is an enum materialised as a lookup table with an Id and a
// Name column.
type EnumInfo struct {
	Table   *TableInfo
	Enum    *model.Enum
	Columns []*ColumnInfo
}

// Pinned reports whether member values are written as keys.
func (e *EnumInfo) Pinned() bool {
	return e.Enum.KeyGeneration != model.KeyIdentity
}

// Catalog is a schema snapshot, built either from model descriptors or
// from the live database.
type Catalog struct {
	Schemas     []string
	Tables      []*TableInfo
	Columns     map[string][]*ColumnInfo
	ForeignKeys []*ForeignKeyInfo
	Enums       []*EnumInfo
	// Indexes holds unique indexes by table key; model side only.
	Indexes map[string][]dialect.IndexDef
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		Columns: make(map[string][]*ColumnInfo),
		Indexes: make(map[string][]dialect.IndexDef),
	}
}

// Table looks a table up by identity.
func (c *Catalog) Table(schema, name string) *TableInfo {
	key := tableKey(schema, name)
	for _, t := range c.Tables {
		if t.Key() == key {
			return t
		}
	}
	return nil
}

// ColumnsOf returns the columns of t in ordinal order.
func (c *Catalog) ColumnsOf(t *TableInfo) []*ColumnInfo {
	return c.Columns[t.Key()]
}

// Column looks a column up by name.
func (c *Catalog) Column(t *TableInfo, name string) *ColumnInfo {
	for _, col := range c.ColumnsOf(t) {
		if strings.EqualFold(col.Name, name) {
			return col
		}
	}
	return nil
}

// ForeignKeysOf returns the foreign keys declared on t.
func (c *Catalog) ForeignKeysOf(t *TableInfo) []*ForeignKeyInfo {
	var fks []*ForeignKeyInfo
	for _, fk := range c.ForeignKeys {
		if tableKey(fk.Schema, fk.Table) == t.Key() {
			fks = append(fks, fk)
		}
	}
	return fks
}

// HasSchema reports whether the schema exists, case-insensitively.
func (c *Catalog) HasSchema(name string) bool {
	for _, s := range c.Schemas {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// AddTable registers t with its columns and collects their foreign keys.
func (c *Catalog) AddTable(t *TableInfo, columns ...*ColumnInfo) {
	c.Tables = append(c.Tables, t)
	c.Columns[t.Key()] = append(c.Columns[t.Key()], columns...)
	for _, col := range columns {
		if col.ForeignKey != nil {
			c.ForeignKeys = append(c.ForeignKeys, col.ForeignKey)
		}
	}
}
