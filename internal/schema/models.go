package schema

import (
	"strings"

	"db-merge/internal/dialect"
	"db-merge/internal/errs"
	"db-merge/internal/model"
)

const (
	enumIDColumn   = "Id"
	enumNameColumn = "Name"
	enumNameLength = 100
)

// ReadModels builds the model-side catalog. Tables keep declaration order;
// key columns come first in key order, the remaining persisted columns
// follow in declaration order. Unmapped types and dangling references are
// configuration errors.
func ReadModels(d dialect.Dialect, set *model.Set, defaultSchema string) (*Catalog, error) {
	cat := NewCatalog()
	enums := make(map[string]*EnumInfo)

	schemaOf := func(s string) string {
		if s == "" {
			return defaultSchema
		}
		return s
	}

	for _, m := range set.Models {
		if !m.Mapped() {
			continue
		}
		t := &TableInfo{
			Schema:    schemaOf(m.Schema),
			Name:      m.TableName(),
			Model:     m,
			Droppable: !m.External,
		}

		var columns []*ColumnInfo
		for _, p := range orderedProperties(m) {
			col, err := modelColumn(d, t, m, p)
			if err != nil {
				return nil, err
			}

			switch {
			case p.ForeignKey != nil:
				target := set.Model(p.ForeignKey.Model)
				if target == nil || !target.Mapped() {
					// Only keys between modeled tables are managed.
					break
				}
				keys := target.Keys()
				if len(keys) != 1 {
					return nil, errs.Configuration("model %s: foreign key %s targets %s, which has a composite key",
						m.Name, p.Name, target.Name)
				}
				ref := target.Property(keys[0])
				col.ForeignKey = &ForeignKeyInfo{
					Schema:        t.Schema,
					Table:         t.Name,
					Column:        col.Name,
					RefSchema:     schemaOf(target.Schema),
					RefTable:      target.TableName(),
					RefColumn:     ref.ColumnName(),
					CascadeDelete: p.ForeignKey.CascadeDelete,
					CreateIndex:   !p.ForeignKey.NoIndex,
				}
			case p.Kind == model.KindEnum:
				e := set.Enum(p.Enum)
				if e == nil {
					return nil, errs.Configuration("model %s: property %s references unknown enum %s", m.Name, p.Name, p.Enum)
				}
				info, ok := enums[strings.ToLower(e.Name)]
				if !ok {
					info, err = enumTable(d, e, schemaOf(e.Schema))
					if err != nil {
						return nil, err
					}
					enums[strings.ToLower(e.Name)] = info
					cat.Enums = append(cat.Enums, info)
				}
				col.ForeignKey = &ForeignKeyInfo{
					Schema:      t.Schema,
					Table:       t.Name,
					Column:      col.Name,
					RefSchema:   info.Table.Schema,
					RefTable:    info.Table.Name,
					RefColumn:   enumIDColumn,
					CreateIndex: true,
				}
			}
			if col.ForeignKey != nil {
				col.ForeignKey.Name = dialect.ForeignKeyName(t.Schema, t.Name, col.Name)
				if col.ForeignKey.RefKey() != t.Key() {
					t.Dependencies = append(t.Dependencies, col.ForeignKey.RefKey())
				}
			}
			columns = append(columns, col)
		}

		cat.AddTable(t, columns...)
		cat.Indexes[t.Key()] = uniqueIndexes(t, m)
	}

	return cat, nil
}

func orderedProperties(m *model.Model) []*model.Property {
	var keys, rest []*model.Property
	for _, k := range m.Keys() {
		if p := m.Property(k); p != nil && p.Persisted() {
			keys = append(keys, p)
		}
	}
	for _, p := range m.Properties {
		if p.Persisted() && !m.IsKey(p.Name) {
			rest = append(rest, p)
		}
	}
	return append(keys, rest...)
}

func modelColumn(d dialect.Dialect, t *TableInfo, m *model.Model, p *model.Property) (*ColumnInfo, error) {
	typeName, err := d.TypeName(dialect.TypeSpec{
		Kind:      p.Kind,
		Length:    p.Length,
		Precision: p.Precision,
		Scale:     p.Scale,
	})
	if err != nil {
		return nil, errs.Configuration("model %s: property %s: %v", m.Name, p.Name, err)
	}

	isKey := m.IsKey(p.Name)
	col := &ColumnInfo{
		Schema:        t.Schema,
		Table:         t.Name,
		Name:          p.ColumnName(),
		DataType:      typeName,
		IsNullable:    p.AllowsNull(isKey),
		Collation:     p.Collation,
		Property:      p,
		KeyGeneration: p.KeyGeneration,
		IsKey:         isKey,
	}
	if p.Kind == model.KindDecimal {
		col.Precision, col.Scale = p.Precision, p.Scale
	}
	if p.Default != nil {
		col.Default = p.Default.Expression
		col.DefaultConstant = p.Default.Constant
	}
	if p.Calculated != nil {
		col.IsCalculated = true
		col.Computed = p.Calculated.Expression
		col.Persisted = p.Calculated.Persisted
		col.IsNullable = true
	}
	return col, nil
}

func enumTable(d dialect.Dialect, e *model.Enum, schema string) (*EnumInfo, error) {
	info := &EnumInfo{
		Table: &TableInfo{Schema: schema, Name: e.TableName(), Droppable: true},
		Enum:  e,
	}

	idType, err := d.TypeName(dialect.TypeSpec{Kind: model.KindInt32})
	if err != nil {
		return nil, errs.Configuration("enum %s: %v", e.Name, err)
	}
	nameType, err := d.TypeName(dialect.TypeSpec{Kind: model.KindString, Length: enumNameLength})
	if err != nil {
		return nil, errs.Configuration("enum %s: %v", e.Name, err)
	}

	id := &ColumnInfo{Schema: schema, Table: info.Table.Name, Name: enumIDColumn, DataType: idType, IsKey: true}
	if !info.Pinned() {
		id.KeyGeneration = model.KeyIdentity
	}
	name := &ColumnInfo{Schema: schema, Table: info.Table.Name, Name: enumNameColumn, DataType: nameType}
	info.Columns = []*ColumnInfo{id, name}
	return info, nil
}

func uniqueIndexes(t *TableInfo, m *model.Model) []dialect.IndexDef {
	var out []dialect.IndexDef
	add := func(props []string, clustered bool, name string) {
		cols := make([]string, 0, len(props))
		for _, n := range props {
			if p := m.Property(n); p != nil {
				cols = append(cols, p.ColumnName())
			}
		}
		if name == "" {
			name = dialect.UniqueKeyName(t.Schema, t.Name, cols)
		}
		out = append(out, dialect.IndexDef{
			Name:      name,
			Schema:    t.Schema,
			Table:     t.Name,
			Columns:   cols,
			Unique:    true,
			Clustered: clustered,
		})
	}
	for _, uk := range m.UniqueKeys {
		add(uk.Columns, uk.Clustered, uk.Name)
	}
	for _, p := range m.Properties {
		if p.Unique && p.Persisted() {
			add([]string{p.Name}, false, "")
		}
	}
	return out
}

// PrimaryKeyColumns returns the key column names of a model table.
func PrimaryKeyColumns(cols []*ColumnInfo) []string {
	var keys []string
	for _, c := range cols {
		if c.IsKey {
			keys = append(keys, c.Name)
		}
	}
	return keys
}
