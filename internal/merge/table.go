package merge

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"db-merge/internal/dialect"
	"db-merge/internal/errs"
	"db-merge/internal/schema"
)

// CreateSchema creates a missing schema.
type CreateSchema struct {
	Name string
}

func (a *CreateSchema) ObjectType() ObjectType { return ObjectSchema }
func (a *CreateSchema) ActionType() ActionType { return ActionCreate }
func (a *CreateSchema) Description() string    { return "Create schema " + a.Name }
func (a *CreateSchema) Target() string         { return target(a.Name) }

func (a *CreateSchema) ValidationErrors(context.Context, schema.Source) ([]string, error) {
	return nil, nil
}

func (a *CreateSchema) SQLCommands(_ context.Context, src schema.Source) ([]string, error) {
	return []string{src.Dialect().CreateSchema(a.Name)}, nil
}

// CreateTable creates a new table, or rebuilds an existing empty one from
// scratch when Rebuild is set. Foreign keys are added separately.
type CreateTable struct {
	Table   *schema.TableInfo
	Columns []*schema.ColumnInfo
	Indexes []dialect.IndexDef

	Rebuild bool
	// Column names behind a rebuild, for the audit trail only.
	Added    []string
	Modified []string
	Removed  []string
}

func (a *CreateTable) ObjectType() ObjectType { return ObjectTable }
func (a *CreateTable) ActionType() ActionType { return ActionCreate }
func (a *CreateTable) Target() string         { return target(a.Table.Schema, a.Table.Name) }

func (a *CreateTable) Description() string {
	if !a.Rebuild {
		return describe("Create table", a.Table)
	}
	var parts []string
	for _, p := range []struct {
		label string
		names []string
	}{{"added", a.Added}, {"modified", a.Modified}, {"removed", a.Removed}} {
		if len(p.names) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %s", p.label, strings.Join(p.names, ", ")))
		}
	}
	return fmt.Sprintf("Rebuild table %s (%s)", a.Table, strings.Join(parts, "; "))
}

func (a *CreateTable) ValidationErrors(ctx context.Context, src schema.Source) ([]string, error) {
	if !a.Rebuild {
		return nil, nil
	}
	rows, err := hasRows(ctx, src, a.Table)
	if err != nil {
		return nil, err
	}
	if rows {
		return []string{fmt.Sprintf("table %s has rows; it can only be rebuilt while empty", a.Table)}, nil
	}
	return nil, nil
}

func (a *CreateTable) SQLCommands(ctx context.Context, src schema.Source) ([]string, error) {
	d := src.Dialect()
	var stmts []string

	if a.Rebuild {
		exists, err := tableExists(ctx, src, a.Table)
		if err != nil {
			return nil, err
		}
		if exists {
			refs, err := src.ReferencingForeignKeys(ctx, a.Table.Schema, a.Table.Name)
			if err != nil {
				return nil, err
			}
			drops, err := dropForeignKeys(ctx, src, excludeTable(refs, a.Table), false)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, drops...)
			stmts = append(stmts, d.DropTable(a.Table.Schema, a.Table.Name))
		}
	}

	stmts = append(stmts, d.CreateTable(tableDef(d, a.Table, a.Columns)))
	for _, idx := range a.Indexes {
		stmts = append(stmts, d.CreateIndex(idx))
	}
	return stmts, nil
}

func tableDef(d dialect.Dialect, t *schema.TableInfo, cols []*schema.ColumnInfo) dialect.TableDef {
	def := dialect.TableDef{
		Schema:     t.Schema,
		Name:       t.Name,
		Columns:    make([]dialect.ColumnDef, len(cols)),
		PrimaryKey: schema.PrimaryKeyColumns(cols),
	}
	for i, c := range cols {
		def.Columns[i] = c.Def(d)
	}
	if len(def.PrimaryKey) > 0 {
		def.PrimaryKeyName = dialect.PrimaryKeyName(t.Schema, t.Name)
	}
	return def
}

// DropTable drops a live table after every foreign key pointing at it.
type DropTable struct {
	Table *schema.TableInfo
}

func (a *DropTable) ObjectType() ObjectType { return ObjectTable }
func (a *DropTable) ActionType() ActionType { return ActionDrop }
func (a *DropTable) Description() string    { return describe("Drop table", a.Table) }
func (a *DropTable) Target() string         { return target(a.Table.Schema, a.Table.Name) }

func (a *DropTable) resolved() error {
	if a.Table.ObjectID == 0 {
		return errs.Configuration("table %s has no resolved object id", a.Table)
	}
	return nil
}

func (a *DropTable) ValidationErrors(ctx context.Context, src schema.Source) ([]string, error) {
	if err := a.resolved(); err != nil {
		return nil, err
	}
	empty, err := src.IsTableEmpty(ctx, a.Table.Schema, a.Table.Name)
	if err != nil {
		return nil, err
	}
	if !empty {
		return []string{fmt.Sprintf("table %s has rows and cannot be dropped", a.Table)}, nil
	}
	return nil, nil
}

func (a *DropTable) SQLCommands(ctx context.Context, src schema.Source) ([]string, error) {
	if err := a.resolved(); err != nil {
		return nil, err
	}
	refs, err := src.ReferencingForeignKeys(ctx, a.Table.Schema, a.Table.Name)
	if err != nil {
		return nil, err
	}
	stmts, err := dropForeignKeys(ctx, src, excludeTable(refs, a.Table), false)
	if err != nil {
		return nil, err
	}
	return append(stmts, src.Dialect().DropTable(a.Table.Schema, a.Table.Name)), nil
}

// CreateEnumTable creates an enum lookup table if needed and inserts the
// members it lacks. Members are matched by name so renumbered values are
// left alone, and inserted in declaration order.
type CreateEnumTable struct {
	Enum *schema.EnumInfo
}

func (a *CreateEnumTable) ObjectType() ObjectType { return ObjectEnumTable }
func (a *CreateEnumTable) ActionType() ActionType { return ActionCreate }
func (a *CreateEnumTable) Target() string {
	return target(a.Enum.Table.Schema, a.Enum.Table.Name)
}

func (a *CreateEnumTable) Description() string {
	return fmt.Sprintf("Create enum table %s (%s)", a.Enum.Table, a.Enum.Enum.Name)
}

func (a *CreateEnumTable) ValidationErrors(context.Context, schema.Source) ([]string, error) {
	return nil, nil
}

func (a *CreateEnumTable) SQLCommands(ctx context.Context, src schema.Source) ([]string, error) {
	d := src.Dialect()
	t := a.Enum.Table

	exists, err := tableExists(ctx, src, t)
	if err != nil {
		return nil, err
	}

	var stmts []string
	var present []string
	if exists {
		if present, err = src.EnumNames(ctx, t.Schema, t.Name); err != nil {
			return nil, err
		}
	} else {
		stmts = append(stmts, d.CreateTable(tableDef(d, t, a.Enum.Columns)))
	}

	for _, m := range a.Enum.Enum.Members {
		if containsFold(present, m.Name) {
			continue
		}
		if a.Enum.Pinned() {
			stmts = append(stmts, d.Insert(t.Schema, t.Name,
				[]string{a.Enum.Columns[0].Name, a.Enum.Columns[1].Name},
				[]string{strconv.Itoa(m.Value), d.QuoteString(m.Name)}))
		} else {
			stmts = append(stmts, d.Insert(t.Schema, t.Name,
				[]string{a.Enum.Columns[1].Name},
				[]string{d.QuoteString(m.Name)}))
		}
	}
	return stmts, nil
}

// MissingMembers lists the members not yet present, in declaration order.
func MissingMembers(info *schema.EnumInfo, present []string) []string {
	var missing []string
	for _, m := range info.Enum.Members {
		if !containsFold(present, m.Name) {
			missing = append(missing, m.Name)
		}
	}
	return missing
}
