package model

import "strings"

// Kind is the logical type of a property. Dialects map each kind to a
// native column type.
type Kind string

const (
	KindBool       Kind = "bool"
	KindInt16      Kind = "int16"
	KindInt32      Kind = "int32"
	KindInt64      Kind = "int64"
	KindDecimal    Kind = "decimal"
	KindFloat32    Kind = "float32"
	KindFloat64    Kind = "float64"
	KindString     Kind = "string"
	KindAnsiString Kind = "ansistring"
	KindDateTime   Kind = "datetime"
	KindDate       Kind = "date"
	KindTime       Kind = "time"
	KindGUID       Kind = "guid"
	KindBinary     Kind = "binary"
	// KindEnum columns store the enum's underlying int32 value and reference
	// the enum's lookup table.
	KindEnum Kind = "enum"
)

// Kinds lists every kind a dialect must be able to render.
var Kinds = []Kind{
	KindBool, KindInt16, KindInt32, KindInt64, KindDecimal, KindFloat32,
	KindFloat64, KindString, KindAnsiString, KindDateTime, KindDate,
	KindTime, KindGUID, KindBinary, KindEnum,
}

// KeyGeneration describes how the database produces key values.
type KeyGeneration string

const (
	KeyNone KeyGeneration = ""
	// KeyIdentity is an auto-incrementing integer.
	KeyIdentity KeyGeneration = "identity"
	// KeySequential is a database-generated sequential GUID.
	KeySequential KeyGeneration = "sequential"
	// KeyPinned stores an enum member's own value as its key.
	KeyPinned KeyGeneration = "pinned"
)

// Set is the complete declared data model.
type Set struct {
	Models []*Model `yaml:"models"`
	Enums  []*Enum  `yaml:"enums"`
}

// Model describes one table.
type Model struct {
	Name   string `yaml:"name"`
	Schema string `yaml:"schema"`
	Table  string `yaml:"table"`
	// Abstract and NotMapped models never produce tables.
	Abstract  bool `yaml:"abstract"`
	NotMapped bool `yaml:"not_mapped"`
	// External tables are owned by someone else: the engine may add columns
	// but never alters, drops or rebuilds them.
	External   bool        `yaml:"external"`
	PrimaryKey []string    `yaml:"primary_key"`
	UniqueKeys []UniqueKey `yaml:"unique_keys"`
	Properties []*Property `yaml:"properties"`
}

// UniqueKey declares a unique index over one or more properties.
type UniqueKey struct {
	Name      string   `yaml:"name"`
	Columns   []string `yaml:"columns"`
	Clustered bool     `yaml:"clustered"`
}

// Property describes one column.
type Property struct {
	Name string `yaml:"name"`
	// Column overrides the column name; defaults to Name.
	Column    string `yaml:"column"`
	Kind      Kind   `yaml:"kind"`
	Length    int    `yaml:"length"` // 0 or -1 means unbounded
	Precision int    `yaml:"precision"`
	Scale     int    `yaml:"scale"`
	Collation string `yaml:"collation"`

	Required  bool `yaml:"required"`
	Nullable  bool `yaml:"nullable"`
	NotMapped bool `yaml:"not_mapped"`
	// ReadOnly properties have no setter and are not persisted unless
	// calculated.
	ReadOnly bool `yaml:"read_only"`
	Unique   bool `yaml:"unique"`

	KeyGeneration KeyGeneration `yaml:"key_generation"`
	Default       *Default      `yaml:"default"`
	Calculated    *Calculated   `yaml:"calculated"`
	ForeignKey    *ForeignKey   `yaml:"foreign_key"`
	// Enum names the enum a KindEnum property is backed by.
	Enum string `yaml:"enum"`
}

// Default is a column default. Constant defaults are rendered inline;
// anything else is treated as an expression that must be backfilled.
type Default struct {
	Expression string `yaml:"expression"`
	Constant   bool   `yaml:"constant"`
}

// Calculated marks a computed column.
type Calculated struct {
	Expression string `yaml:"expression"`
	Persisted  bool   `yaml:"persisted"`
}

// ForeignKey references another model's primary key.
type ForeignKey struct {
	Model         string `yaml:"model"`
	CascadeDelete bool   `yaml:"cascade_delete"`
	// NoIndex suppresses the index normally created on the referencing
	// column.
	NoIndex bool `yaml:"no_index"`
}

// Enum describes an enumeration materialised as a lookup table.
type Enum struct {
	Name          string        `yaml:"name"`
	Schema        string        `yaml:"schema"`
	Table         string        `yaml:"table"`
	KeyGeneration KeyGeneration `yaml:"key_generation"`
	Members       []EnumMember  `yaml:"members"`
}

// EnumMember is one named value, in declaration order.
type EnumMember struct {
	Name  string `yaml:"name"`
	Value int    `yaml:"value"`
}

// TableName returns the table name, defaulting to the model name.
func (m *Model) TableName() string {
	if m.Table != "" {
		return m.Table
	}
	return m.Name
}

// Mapped reports whether the model produces a table.
func (m *Model) Mapped() bool {
	return !m.Abstract && !m.NotMapped
}

// Property finds a property by name, case-insensitively.
func (m *Model) Property(name string) *Property {
	for _, p := range m.Properties {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return nil
}

// Keys returns the primary key property names. When none are declared a
// property named "Id" is the key.
func (m *Model) Keys() []string {
	if len(m.PrimaryKey) > 0 {
		return m.PrimaryKey
	}
	if p := m.Property("Id"); p != nil {
		return []string{p.Name}
	}
	return nil
}

// IsKey reports whether the named property is part of the primary key.
func (m *Model) IsKey(name string) bool {
	for _, k := range m.Keys() {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

// ColumnName returns the column name, defaulting to the property name.
func (p *Property) ColumnName() string {
	if p.Column != "" {
		return p.Column
	}
	return p.Name
}

// Persisted reports whether the property maps to a column at all.
func (p *Property) Persisted() bool {
	if p.NotMapped {
		return false
	}
	return !p.ReadOnly || p.Calculated != nil
}

// AllowsNull applies the nullability rules: keys and required properties
// never allow NULL, Nullable forces it, and reference-like kinds default to
// nullable.
func (p *Property) AllowsNull(isKey bool) bool {
	if isKey || p.Required {
		return false
	}
	if p.Nullable {
		return true
	}
	switch p.Kind {
	case KindString, KindAnsiString, KindBinary:
		return true
	}
	return false
}

// TableName returns the lookup table name, defaulting to the enum name.
func (e *Enum) TableName() string {
	if e.Table != "" {
		return e.Table
	}
	return e.Name
}

// Model finds a model by name, case-insensitively.
func (s *Set) Model(name string) *Model {
	for _, m := range s.Models {
		if strings.EqualFold(m.Name, name) {
			return m
		}
	}
	return nil
}

// Enum finds an enum by name, case-insensitively.
func (s *Set) Enum(name string) *Enum {
	for _, e := range s.Enums {
		if strings.EqualFold(e.Name, name) {
			return e
		}
	}
	return nil
}
