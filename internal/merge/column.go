package merge

import (
	"context"
	"fmt"

	"db-merge/internal/dialect"
	"db-merge/internal/model"
	"db-merge/internal/schema"
)

// AddColumn adds a model column to an existing table.
type AddColumn struct {
	Table  *schema.TableInfo
	Column *schema.ColumnInfo
}

func (a *AddColumn) ObjectType() ObjectType { return ObjectColumn }
func (a *AddColumn) ActionType() ActionType { return ActionAdd }
func (a *AddColumn) Description() string    { return describe("Add column", a.Column) }
func (a *AddColumn) Target() string {
	return target(a.Table.Schema, a.Table.Name, a.Column.Name)
}

func (a *AddColumn) ValidationErrors(ctx context.Context, src schema.Source) ([]string, error) {
	c := a.Column
	if c.IsNullable || c.IsCalculated || c.Default != "" || c.KeyGeneration != model.KeyNone {
		return nil, nil
	}
	rows, err := hasRows(ctx, src, a.Table)
	if err != nil {
		return nil, err
	}
	if rows {
		return []string{fmt.Sprintf("column %s does not allow NULL and has no default, but table %s has rows", c, a.Table)}, nil
	}
	return nil, nil
}

// SQLCommands adds the column directly unless its default is an
// expression: then the column is added nullable, backfilled with the
// expression and only afterwards made NOT NULL.
func (a *AddColumn) SQLCommands(_ context.Context, src schema.Source) ([]string, error) {
	d := src.Dialect()
	c := a.Column
	def := c.Def(d)

	if c.Default == "" || c.DefaultConstant || c.IsCalculated {
		return []string{d.AddColumn(a.Table.Schema, a.Table.Name, def)}, nil
	}

	staged := def
	staged.Nullable = true
	stmts := []string{
		d.AddColumn(a.Table.Schema, a.Table.Name, staged),
		d.Update(a.Table.Schema, a.Table.Name, c.Name, c.Default),
	}
	if !def.Nullable {
		stmts = append(stmts, alter(d, a.Table, staged, def)...)
	}
	return stmts, nil
}

// AlterColumn changes a live column to the model definition. Columns in
// the primary key are altered with the key and every foreign key pointing
// at the table dropped and recreated around them. The column's own foreign
// key is dropped as well and comes back only if the model still points it
// at the same column; a retargeted key is added by its own action.
type AlterColumn struct {
	Table  *schema.TableInfo
	Column *schema.ColumnInfo
	// From is the live column.
	From *schema.ColumnInfo
}

func (a *AlterColumn) ObjectType() ObjectType { return ObjectColumn }
func (a *AlterColumn) ActionType() ActionType { return ActionAlter }
func (a *AlterColumn) Description() string {
	return fmt.Sprintf("Alter column %s (%s -> %s)", a.Column, summary(a.From), summary(a.Column))
}
func (a *AlterColumn) Target() string {
	return target(a.Table.Schema, a.Table.Name, a.Column.Name)
}

func summary(c *schema.ColumnInfo) string {
	if c.IsCalculated {
		return "computed"
	}
	s := c.DataType
	if c.IsNullable {
		return s + " NULL"
	}
	return s + " NOT NULL"
}

func (a *AlterColumn) ValidationErrors(context.Context, schema.Source) ([]string, error) {
	return nil, nil
}

func (a *AlterColumn) SQLCommands(ctx context.Context, src schema.Source) ([]string, error) {
	d := src.Dialect()
	t := a.Table
	to := a.Column.Def(d)

	// Computed columns cannot be altered in place.
	if a.Column.IsCalculated || a.From.IsCalculated {
		return []string{
			d.DropColumn(t.Schema, t.Name, a.From.Name),
			d.AddColumn(t.Schema, t.Name, to),
		}, nil
	}

	pkName, pkCols, err := primaryKey(ctx, src, t.Schema, t.Name)
	if err != nil {
		return nil, err
	}
	inKey := containsFold(pkCols, a.Column.Name)

	var stmts []string
	var refs []*schema.ForeignKeyInfo
	if inKey {
		if refs, err = src.ReferencingForeignKeys(ctx, t.Schema, t.Name); err != nil {
			return nil, err
		}
		drops, err := dropForeignKeys(ctx, src, refs, false)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, drops...)
		stmts = append(stmts, d.DropPrimaryKey(t.Schema, t.Name, pkName))
	}

	// The column's own foreign key and its index pin the type as well. A
	// self reference was already dropped with the referencing keys.
	own := a.From.ForeignKey
	if own != nil && inKey && containsKey(refs, own) {
		own = nil
	}
	var ownIndex bool
	if own != nil {
		if ownIndex, err = src.IndexExists(ctx, own.Schema, own.Table, own.IndexName()); err != nil {
			return nil, err
		}
		stmts = append(stmts, d.DropForeignKey(own.Schema, own.Table, own.Name))
		if ownIndex {
			stmts = append(stmts, d.DropIndex(own.Schema, own.Table, own.IndexName()))
		}
	}

	stmts = append(stmts, alter(d, t, a.From.Def(d), to)...)

	if want := a.Column.ForeignKey; own != nil && want != nil && want.SameTarget(own) {
		if ownIndex {
			stmts = append(stmts, d.CreateIndex(fkIndex(own)))
		}
		readd := own.Def()
		readd.CascadeDelete = want.CascadeDelete
		stmts = append(stmts, d.AddForeignKey(readd))
	}
	if inKey {
		stmts = append(stmts, d.AddPrimaryKey(t.Schema, t.Name, pkName, pkCols))
		stmts = append(stmts, addForeignKeys(src, refs)...)
	}
	return stmts, nil
}

// alter renders a column change. Where defaults are named constraints the
// live one is dropped first and the model default bound again afterwards.
func alter(d dialect.Dialect, t *schema.TableInfo, from, to dialect.ColumnDef) []string {
	dc, ok := d.(dialect.DefaultConstraints)
	if !ok {
		return []string{d.AlterColumn(t.Schema, t.Name, from, to)}
	}
	stmts := []string{
		dc.DropDefault(t.Schema, t.Name, to.Name),
		d.AlterColumn(t.Schema, t.Name, from, to),
	}
	if to.Default != "" {
		stmts = append(stmts, dc.AddDefault(t.Schema, t.Name, to))
	}
	return stmts
}

func containsKey(fks []*schema.ForeignKeyInfo, fk *schema.ForeignKeyInfo) bool {
	for _, f := range fks {
		if f.Key() == fk.Key() {
			return true
		}
	}
	return false
}

// DropColumn drops a live column. Key columns are handled like
// AlterColumn, except that the primary key is recreated over the
// remaining columns and the dropped referencing keys are not restored.
type DropColumn struct {
	Table *schema.TableInfo
	// Column is the live column.
	Column *schema.ColumnInfo
}

func (a *DropColumn) ObjectType() ObjectType { return ObjectColumn }
func (a *DropColumn) ActionType() ActionType { return ActionDrop }
func (a *DropColumn) Description() string    { return describe("Drop column", a.Column) }
func (a *DropColumn) Target() string {
	return target(a.Table.Schema, a.Table.Name, a.Column.Name)
}

func (a *DropColumn) ValidationErrors(context.Context, schema.Source) ([]string, error) {
	return nil, nil
}

func (a *DropColumn) SQLCommands(ctx context.Context, src schema.Source) ([]string, error) {
	d := src.Dialect()
	t := a.Table

	pkName, pkCols, err := primaryKey(ctx, src, t.Schema, t.Name)
	if err != nil {
		return nil, err
	}
	inKey := containsFold(pkCols, a.Column.Name)

	var stmts []string
	var refs []*schema.ForeignKeyInfo
	if inKey {
		if refs, err = src.ReferencingForeignKeys(ctx, t.Schema, t.Name); err != nil {
			return nil, err
		}
		drops, err := dropForeignKeys(ctx, src, refs, false)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, drops...)
		stmts = append(stmts, d.DropPrimaryKey(t.Schema, t.Name, pkName))
	}

	if own := a.Column.ForeignKey; own != nil && !containsKey(refs, own) {
		drops, err := dropForeignKeys(ctx, src, []*schema.ForeignKeyInfo{own}, true)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, drops...)
	}

	stmts = append(stmts, d.DropColumn(t.Schema, t.Name, a.Column.Name))

	if inKey {
		var remaining []string
		for _, c := range pkCols {
			if !containsFold([]string{a.Column.Name}, c) {
				remaining = append(remaining, c)
			}
		}
		if len(remaining) > 0 {
			stmts = append(stmts, d.AddPrimaryKey(t.Schema, t.Name, pkName, remaining))
		}
	}
	return stmts, nil
}
