package merge

import (
	"context"

	"db-merge/internal/dialect"
	"db-merge/internal/schema"
)

// AddForeignKey adds a foreign key constraint and, unless suppressed, an
// index on the referencing column.
type AddForeignKey struct {
	ForeignKey *schema.ForeignKeyInfo
}

func (a *AddForeignKey) ObjectType() ObjectType { return ObjectForeignKey }
func (a *AddForeignKey) ActionType() ActionType { return ActionAdd }
func (a *AddForeignKey) Description() string    { return describe("Add foreign key", a.ForeignKey) }
func (a *AddForeignKey) Target() string {
	return target(a.ForeignKey.Schema, a.ForeignKey.Table, a.ForeignKey.Column)
}

func (a *AddForeignKey) ValidationErrors(context.Context, schema.Source) ([]string, error) {
	return nil, nil
}

func (a *AddForeignKey) SQLCommands(ctx context.Context, src schema.Source) ([]string, error) {
	d := src.Dialect()
	fk := a.ForeignKey
	stmts := []string{d.AddForeignKey(fk.Def())}
	if !fk.CreateIndex {
		return stmts, nil
	}
	exists, err := src.IndexExists(ctx, fk.Schema, fk.Table, fk.IndexName())
	if err != nil {
		return nil, err
	}
	if !exists {
		stmts = append(stmts, d.CreateIndex(fkIndex(fk)))
	}
	return stmts, nil
}

// DropForeignKey drops a live foreign key together with its index.
type DropForeignKey struct {
	ForeignKey *schema.ForeignKeyInfo
}

func (a *DropForeignKey) ObjectType() ObjectType { return ObjectForeignKey }
func (a *DropForeignKey) ActionType() ActionType { return ActionDrop }
func (a *DropForeignKey) Description() string    { return describe("Drop foreign key", a.ForeignKey) }
func (a *DropForeignKey) Target() string {
	return target(a.ForeignKey.Schema, a.ForeignKey.Table, a.ForeignKey.Column)
}

func (a *DropForeignKey) ValidationErrors(context.Context, schema.Source) ([]string, error) {
	return nil, nil
}

func (a *DropForeignKey) SQLCommands(ctx context.Context, src schema.Source) ([]string, error) {
	return dropForeignKeys(ctx, src, []*schema.ForeignKeyInfo{a.ForeignKey}, true)
}

func fkIndex(fk *schema.ForeignKeyInfo) dialect.IndexDef {
	return dialect.IndexDef{
		Name:    fk.IndexName(),
		Schema:  fk.Schema,
		Table:   fk.Table,
		Columns: []string{fk.Column},
	}
}
