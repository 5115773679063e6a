package dialect

import (
	"fmt"
	"strings"
)

// params returns the first n bind parameters of d, in order, for use as
// fmt arguments when building catalog queries.
func params(d Dialect, n int) []any {
	ps := make([]any, n)
	for i := range ps {
		ps[i] = d.Placeholder(i)
	}
	return ps
}

// ForeignKeyName is the deterministic constraint name for a foreign key on
// (schema, table, column), so repeated compares converge.
func ForeignKeyName(schema, table, column string) string {
	return fmt.Sprintf("FK_%s_%s_%s", schema, table, column)
}

// IndexName is the name of the index created alongside a foreign key.
func IndexName(schema, table, column string) string {
	return fmt.Sprintf("IX_%s_%s_%s", schema, table, column)
}

// PrimaryKeyName is the primary key constraint name of a table.
func PrimaryKeyName(schema, table string) string {
	return fmt.Sprintf("PK_%s_%s", schema, table)
}

// UniqueKeyName is the name of a unique index over columns.
func UniqueKeyName(schema, table string, columns []string) string {
	return fmt.Sprintf("UK_%s_%s_%s", schema, table, strings.Join(columns, "_"))
}

// DefaultConstraintName names a column default constraint.
func DefaultConstraintName(schema, table, column string) string {
	return fmt.Sprintf("DF_%s_%s_%s", schema, table, column)
}

func quoteAll(names []string, quote func(string) string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quote(n)
	}
	return strings.Join(quoted, ", ")
}

func sizedType(name string, length int, unbounded string) string {
	if length <= 0 {
		return fmt.Sprintf("%s(%s)", name, unbounded)
	}
	return fmt.Sprintf("%s(%d)", name, length)
}

func decimalType(name string, precision, scale int) string {
	if precision <= 0 {
		precision, scale = 18, 2
	}
	return fmt.Sprintf("%s(%d,%d)", name, precision, scale)
}

func unsupported(d Dialect, spec TypeSpec) error {
	return fmt.Errorf("dialect %s has no type mapping for %s", d.Name(), spec.Kind)
}

func nullClause(nullable bool) string {
	if nullable {
		return "NULL"
	}
	return "NOT NULL"
}

// createTableBody renders the shared "CREATE TABLE name (defs, PK)" layout.
func createTableBody(qualified string, defs []string, pk string) string {
	if pk != "" {
		defs = append(defs, pk)
	}
	return fmt.Sprintf("CREATE TABLE %s (\n    %s\n)", qualified, strings.Join(defs, ",\n    "))
}
