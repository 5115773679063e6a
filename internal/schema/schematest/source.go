// Package schematest provides an in-memory schema.Source for tests.
package schematest

import (
	"context"
	"strings"

	"db-merge/internal/dialect"
	"db-merge/internal/schema"
)

// Source is a live catalog held in memory. Tables, row counts, primary
// keys, indexes and enum rows are set up by the test; foreign keys come
// from the columns added with AddTable.
type Source struct {
	D       dialect.Dialect
	Default string
	Live    *schema.Catalog

	rows     map[string]int
	keys     map[string][]*schema.KeyColumnInfo
	indexes  map[string]bool
	enumRows map[string][]string
	nextID   int64
}

var _ schema.Source = (*Source)(nil)

// New returns an empty database with only the default schema.
func New(d dialect.Dialect, defaultSchema string) *Source {
	live := schema.NewCatalog()
	live.Schemas = []string{defaultSchema}
	return &Source{
		D:        d,
		Default:  defaultSchema,
		Live:     live,
		rows:     make(map[string]int),
		keys:     make(map[string][]*schema.KeyColumnInfo),
		indexes:  make(map[string]bool),
		enumRows: make(map[string][]string),
		nextID:   1000,
	}
}

func key(parts ...string) string {
	return strings.ToLower(strings.Join(parts, "."))
}

// AddSchema makes a schema exist.
func (s *Source) AddSchema(name string) {
	if !s.Live.HasSchema(name) {
		s.Live.Schemas = append(s.Live.Schemas, name)
	}
}

// AddTable creates a live table. Column schema and table names are filled
// in; foreign keys on the columns become live constraints.
func (s *Source) AddTable(schemaName, table string, columns ...*schema.ColumnInfo) *schema.TableInfo {
	s.AddSchema(schemaName)
	s.nextID++
	t := &schema.TableInfo{Schema: schemaName, Name: table, ObjectID: s.nextID, Droppable: true}
	for _, c := range columns {
		c.Schema, c.Table = schemaName, table
		if c.ForeignKey != nil {
			c.ForeignKey.Schema, c.ForeignKey.Table, c.ForeignKey.Column = schemaName, table, c.Name
			if c.ForeignKey.Name == "" {
				c.ForeignKey.Name = dialect.ForeignKeyName(schemaName, table, c.Name)
			}
		}
	}
	s.Live.AddTable(t, columns...)
	return t
}

// SetRows sets the row count of a table.
func (s *Source) SetRows(schemaName, table string, n int) {
	s.rows[key(schemaName, table)] = n
}

// SetPrimaryKey declares the primary key constraint of a table.
func (s *Source) SetPrimaryKey(schemaName, table, constraint string, columns ...string) {
	keys := make([]*schema.KeyColumnInfo, len(columns))
	for i, c := range columns {
		keys[i] = &schema.KeyColumnInfo{Constraint: constraint, Schema: schemaName, Table: table, Column: c, Ordinal: i + 1}
	}
	s.keys[key(schemaName, table)] = keys
}

// AddIndex makes an index exist.
func (s *Source) AddIndex(schemaName, table, index string) {
	s.indexes[key(schemaName, table, index)] = true
}

// SetEnumRows sets the Name values present in an enum lookup table.
func (s *Source) SetEnumRows(schemaName, table string, names ...string) {
	s.enumRows[key(schemaName, table)] = names
}

func (s *Source) Dialect() dialect.Dialect { return s.D }

func (s *Source) DefaultSchema(context.Context) (string, error) { return s.Default, nil }

// Snapshot returns the live catalog itself; callers must not modify it.
func (s *Source) Snapshot(context.Context) (*schema.Catalog, error) { return s.Live, nil }

func (s *Source) ObjectID(_ context.Context, schemaName, table string) (int64, error) {
	if t := s.Live.Table(schemaName, table); t != nil {
		return t.ObjectID, nil
	}
	return 0, nil
}

func (s *Source) IsTableEmpty(_ context.Context, schemaName, table string) (bool, error) {
	return s.rows[key(schemaName, table)] == 0, nil
}

func (s *Source) ColumnExists(_ context.Context, schemaName, table, column string) (bool, error) {
	t := s.Live.Table(schemaName, table)
	return t != nil && s.Live.Column(t, column) != nil, nil
}

func (s *Source) IndexExists(_ context.Context, schemaName, table, index string) (bool, error) {
	return s.indexes[key(schemaName, table, index)], nil
}

func (s *Source) PrimaryKey(_ context.Context, schemaName, table string) ([]*schema.KeyColumnInfo, error) {
	return s.keys[key(schemaName, table)], nil
}

func (s *Source) ReferencingForeignKeys(_ context.Context, schemaName, table string) ([]*schema.ForeignKeyInfo, error) {
	var fks []*schema.ForeignKeyInfo
	for _, fk := range s.Live.ForeignKeys {
		if strings.EqualFold(fk.RefSchema, schemaName) && strings.EqualFold(fk.RefTable, table) {
			fks = append(fks, fk)
		}
	}
	return fks, nil
}

func (s *Source) EnumNames(_ context.Context, schemaName, table string) ([]string, error) {
	return s.enumRows[key(schemaName, table)], nil
}

// Mirror copies a model-side catalog into the live one, as if every
// pending action had been applied: schemas, tables, enum tables with all
// members and every foreign key.
func (s *Source) Mirror(want *schema.Catalog) {
	for _, e := range want.Enums {
		s.AddTable(e.Table.Schema, e.Table.Name, cloneColumns(e.Columns)...)
		names := make([]string, len(e.Enum.Members))
		for i, m := range e.Enum.Members {
			names[i] = m.Name
		}
		s.SetEnumRows(e.Table.Schema, e.Table.Name, names...)
	}
	for _, t := range want.Tables {
		s.AddTable(t.Schema, t.Name, cloneColumns(want.ColumnsOf(t))...)
		s.SetPrimaryKey(t.Schema, t.Name, dialect.PrimaryKeyName(t.Schema, t.Name), schema.PrimaryKeyColumns(want.ColumnsOf(t))...)
	}
}

// cloneColumns keeps only what a live catalog read would report.
func cloneColumns(cols []*schema.ColumnInfo) []*schema.ColumnInfo {
	out := make([]*schema.ColumnInfo, len(cols))
	for i, c := range cols {
		live := &schema.ColumnInfo{
			Name:         c.Name,
			DataType:     c.DataType,
			IsNullable:   c.IsNullable,
			IsCalculated: c.IsCalculated,
			Precision:    c.Precision,
			Scale:        c.Scale,
			Collation:    c.Collation,
		}
		if c.ForeignKey != nil {
			fk := *c.ForeignKey
			fk.CreateIndex = false
			fk.CascadeDelete = false
			live.ForeignKey = &fk
		}
		out[i] = live
	}
	return out
}
