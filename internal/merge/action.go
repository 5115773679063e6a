// Package merge holds the schema changes the diff engine emits. Every
// action validates and renders itself against a schema.Source; none of
// them keeps state beyond what it was constructed with.
package merge

import (
	"context"
	"fmt"
	"strings"

	"db-merge/internal/schema"
)

// ObjectType is the kind of object an action changes.
type ObjectType string

const (
	ObjectSchema     ObjectType = "SCHEMA"
	ObjectTable      ObjectType = "TABLE"
	ObjectColumn     ObjectType = "COLUMN"
	ObjectForeignKey ObjectType = "FOREIGN KEY"
	ObjectEnumTable  ObjectType = "ENUM TABLE"
)

// ActionType is what an action does to its object.
type ActionType string

const (
	ActionCreate ActionType = "CREATE"
	ActionAdd    ActionType = "ADD"
	ActionAlter  ActionType = "ALTER"
	ActionDrop   ActionType = "DROP"
)

// Action is one schema change.
type Action interface {
	ObjectType() ObjectType
	ActionType() ActionType
	Description() string
	// Target identifies the changed object, lowercased: schema, table or
	// schema.table.column.
	Target() string
	// ValidationErrors returns the reasons the action is unsafe; empty
	// means it may run.
	ValidationErrors(ctx context.Context, src schema.Source) ([]string, error)
	// SQLCommands renders the ordered statements. Statements of one action
	// belong in one transaction.
	SQLCommands(ctx context.Context, src schema.Source) ([]string, error)
}

func target(parts ...string) string {
	return strings.ToLower(strings.Join(parts, "."))
}

func tableExists(ctx context.Context, src schema.Source, t *schema.TableInfo) (bool, error) {
	id, err := src.ObjectID(ctx, t.Schema, t.Name)
	if err != nil {
		return false, err
	}
	return id != 0, nil
}

// hasRows is false for tables that do not exist yet.
func hasRows(ctx context.Context, src schema.Source, t *schema.TableInfo) (bool, error) {
	exists, err := tableExists(ctx, src, t)
	if err != nil || !exists {
		return false, err
	}
	empty, err := src.IsTableEmpty(ctx, t.Schema, t.Name)
	if err != nil {
		return false, err
	}
	return !empty, nil
}

// primaryKey splits the live primary key of a table into its constraint
// name and column names.
func primaryKey(ctx context.Context, src schema.Source, schemaName, table string) (string, []string, error) {
	keys, err := src.PrimaryKey(ctx, schemaName, table)
	if err != nil || len(keys) == 0 {
		return "", nil, err
	}
	cols := make([]string, len(keys))
	for i, k := range keys {
		cols[i] = k.Column
	}
	return keys[0].Constraint, cols, nil
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// dropForeignKeys renders the drops for fks, each followed by its index
// when that index exists.
func dropForeignKeys(ctx context.Context, src schema.Source, fks []*schema.ForeignKeyInfo, withIndex bool) ([]string, error) {
	d := src.Dialect()
	var stmts []string
	for _, fk := range fks {
		stmts = append(stmts, d.DropForeignKey(fk.Schema, fk.Table, fk.Name))
		if !withIndex {
			continue
		}
		exists, err := src.IndexExists(ctx, fk.Schema, fk.Table, fk.IndexName())
		if err != nil {
			return nil, err
		}
		if exists {
			stmts = append(stmts, d.DropIndex(fk.Schema, fk.Table, fk.IndexName()))
		}
	}
	return stmts, nil
}

func addForeignKeys(src schema.Source, fks []*schema.ForeignKeyInfo) []string {
	d := src.Dialect()
	stmts := make([]string, len(fks))
	for i, fk := range fks {
		stmts[i] = d.AddForeignKey(fk.Def())
	}
	return stmts
}

// excludeTable drops foreign keys declared on the given table; those go
// away with the table itself.
func excludeTable(fks []*schema.ForeignKeyInfo, t *schema.TableInfo) []*schema.ForeignKeyInfo {
	var out []*schema.ForeignKeyInfo
	for _, fk := range fks {
		if !strings.EqualFold(fk.Schema, t.Schema) || !strings.EqualFold(fk.Table, t.Name) {
			out = append(out, fk)
		}
	}
	return out
}

func describe(verb string, obj fmt.Stringer) string {
	return fmt.Sprintf("%s %s", verb, obj)
}
