package engine

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"db-merge/internal/dialect"
	"db-merge/internal/merge"
	"db-merge/internal/model"
	"db-merge/internal/schema"
)

// Options tune a compare.
type Options struct {
	// Logger receives the diff decisions at debug level. Nil disables
	// logging.
	Logger *zerolog.Logger
	// DropOrphans decides whether a live table absent from the model is
	// dropped. Nil keeps every orphan.
	DropOrphans func(t *schema.TableInfo) bool
}

func (o Options) logger() zerolog.Logger {
	if o.Logger == nil {
		return zerolog.Nop()
	}
	return *o.Logger
}

// Compare diffs the model against the live database and returns the
// actions that make the database match, in execution order. It only reads
// from src.
func Compare(ctx context.Context, src schema.Source, set *model.Set, opts Options) ([]merge.Action, error) {
	d := src.Dialect()
	defaultSchema, err := src.DefaultSchema(ctx)
	if err != nil {
		return nil, err
	}
	want, err := schema.ReadModels(d, set, defaultSchema)
	if err != nil {
		return nil, err
	}
	live, err := src.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	p := &pass{
		src:     src,
		d:       d,
		want:    want,
		live:    live,
		opts:    opts,
		log:     opts.logger(),
		emitted: make(map[string]bool),
		queued:  make(map[string]bool),
		gone:    make(map[string]bool),
	}
	p.schemas()
	if err := p.enums(ctx); err != nil {
		return nil, err
	}
	if err := p.tables(ctx); err != nil {
		return nil, err
	}
	p.orphans()
	for _, fk := range p.pending {
		p.emit(&merge.AddForeignKey{ForeignKey: fk})
	}

	p.log.Debug().Int("actions", len(p.actions)).Msg("compare finished")
	return p.actions, nil
}

// pass holds the state of one Compare call.
type pass struct {
	src  schema.Source
	d    dialect.Dialect
	want *schema.Catalog
	live *schema.Catalog
	opts Options
	log  zerolog.Logger

	actions []merge.Action
	emitted map[string]bool
	pending []*schema.ForeignKeyInfo
	queued  map[string]bool
	// gone holds live foreign keys already dropped by a rebuild.
	gone    map[string]bool
}

// emit appends a, dropping repeats of the same change to the same target.
func (p *pass) emit(a merge.Action) {
	key := string(a.ObjectType()) + "|" + string(a.ActionType()) + "|" + a.Target()
	if p.emitted[key] {
		p.log.Debug().Str("action", a.Description()).Msg("duplicate action skipped")
		return
	}
	p.emitted[key] = true
	p.actions = append(p.actions, a)
}

// queue defers a foreign key add to the end of the pass. One key per
// referencing column.
func (p *pass) queue(fk *schema.ForeignKeyInfo) {
	key := strings.ToLower(fk.Schema + "." + fk.Table + "." + fk.Column)
	if p.queued[key] {
		return
	}
	p.queued[key] = true
	p.pending = append(p.pending, fk)
	p.log.Debug().Str("foreign_key", fk.String()).Msg("foreign key queued")
}

func (p *pass) schemas() {
	seen := make(map[string]bool)
	check := func(name string) {
		key := strings.ToLower(name)
		if seen[key] || p.live.HasSchema(name) {
			return
		}
		seen[key] = true
		p.emit(&merge.CreateSchema{Name: name})
	}
	for _, t := range p.want.Tables {
		check(t.Schema)
	}
	for _, e := range p.want.Enums {
		check(e.Table.Schema)
	}
}

func (p *pass) enums(ctx context.Context) error {
	for _, e := range p.want.Enums {
		lt := p.live.Table(e.Table.Schema, e.Table.Name)
		if lt == nil {
			p.log.Debug().Str("enum", e.Enum.Name).Msg("new enum table")
			p.emit(&merge.CreateEnumTable{Enum: e})
			continue
		}
		e.Table.ObjectID = lt.ObjectID

		present, err := p.src.EnumNames(ctx, lt.Schema, lt.Name)
		if err != nil {
			return err
		}
		if missing := merge.MissingMembers(e, present); len(missing) > 0 {
			p.log.Debug().Str("enum", e.Enum.Name).Strs("members", missing).Msg("enum members missing")
			p.emit(&merge.CreateEnumTable{Enum: e})
		}
	}
	return nil
}

func (p *pass) tables(ctx context.Context) error {
	for _, t := range schema.SortTablesByFKCount(p.want.Tables) {
		cols := p.want.ColumnsOf(t)
		lt := p.live.Table(t.Schema, t.Name)
		if lt == nil {
			p.log.Debug().Str("table", t.String()).Msg("new table")
			p.emit(&merge.CreateTable{Table: t, Columns: cols, Indexes: p.want.Indexes[t.Key()]})
			for _, fk := range p.want.ForeignKeysOf(t) {
				p.queue(fk)
			}
			continue
		}
		t.ObjectID = lt.ObjectID

		if err := p.table(ctx, t, lt, cols); err != nil {
			return err
		}
	}
	return nil
}

// table diffs one existing table.
func (p *pass) table(ctx context.Context, t, lt *schema.TableInfo, cols []*schema.ColumnInfo) error {
	var added, modified, from, removed []*schema.ColumnInfo
	for _, c := range cols {
		lc := p.live.Column(lt, c.Name)
		switch {
		case lc == nil:
			added = append(added, c)
		case c.IsAlteredFrom(lc):
			modified = append(modified, c)
			from = append(from, lc)
		}
	}
	for _, lc := range p.live.ColumnsOf(lt) {
		if p.want.Column(t, lc.Name) == nil {
			removed = append(removed, lc)
		}
	}
	if !t.Droppable {
		// Columns the model does not know about belong to someone else.
		modified, from, removed = nil, nil, nil
	}

	if len(added)+len(modified)+len(removed) > 0 && t.Droppable {
		empty, err := p.src.IsTableEmpty(ctx, t.Schema, t.Name)
		if err != nil {
			return err
		}
		if empty {
			p.rebuild(t, cols, added, modified, removed)
			return nil
		}
	}

	altered := make(map[string]bool, len(from))
	for _, lc := range from {
		altered[lc.Key()] = true
	}

	// Foreign keys that changed on columns present on both sides.
	dropped := make(map[string]bool)
	for _, c := range cols {
		lc := p.live.Column(lt, c.Name)
		if lc == nil {
			continue
		}
		wfk, lfk := c.ForeignKey, lc.ForeignKey
		if lfk != nil && p.gone[lfk.Key()] {
			// Dropped with a rebuilt parent; only the re-add remains.
			dropped[lc.Key()] = true
			if wfk != nil {
				p.queue(wfk)
			}
			continue
		}
		if altered[lc.Key()] {
			// AlterColumn drops the live key and restores it only when the
			// target is unchanged.
			if wfk != nil && !wfk.SameTarget(lfk) {
				p.queue(wfk)
			}
			continue
		}
		switch {
		case wfk != nil && lfk == nil:
			p.queue(wfk)
		case wfk == nil && lfk != nil && t.Droppable:
			p.emit(&merge.DropForeignKey{ForeignKey: lfk})
			dropped[lc.Key()] = true
		case wfk != nil && lfk != nil && !wfk.SameTarget(lfk) && t.Droppable:
			p.emit(&merge.DropForeignKey{ForeignKey: lfk})
			dropped[lc.Key()] = true
			p.queue(wfk)
		}
	}

	for _, c := range added {
		p.log.Debug().Str("column", c.String()).Msg("column added")
		p.emit(&merge.AddColumn{Table: t, Column: c})
		if c.ForeignKey != nil {
			p.queue(c.ForeignKey)
		}
	}
	for i, c := range modified {
		lc := from[i]
		if dropped[lc.Key()] {
			stripped := *lc
			stripped.ForeignKey = nil
			lc = &stripped
		}
		p.log.Debug().Str("column", c.String()).Msg("column altered")
		p.emit(&merge.AlterColumn{Table: t, Column: c, From: lc})
	}
	for _, lc := range removed {
		if lc.ForeignKey != nil && p.gone[lc.ForeignKey.Key()] {
			stripped := *lc
			stripped.ForeignKey = nil
			lc = &stripped
		}
		p.log.Debug().Str("column", lc.String()).Msg("column removed")
		p.emit(&merge.DropColumn{Table: t, Column: lc})
	}
	return nil
}

// rebuild replaces an empty table wholesale and re-queues every foreign
// key on it and pointing at it.
func (p *pass) rebuild(t *schema.TableInfo, cols, added, modified, removed []*schema.ColumnInfo) {
	p.log.Debug().Str("table", t.String()).Msg("empty table rebuilt")
	p.emit(&merge.CreateTable{
		Table:    t,
		Columns:  cols,
		Indexes:  p.want.Indexes[t.Key()],
		Rebuild:  true,
		Added:    names(added),
		Modified: names(modified),
		Removed:  names(removed),
	})
	for _, fk := range p.want.ForeignKeysOf(t) {
		p.queue(fk)
	}

	for _, lfk := range p.live.ForeignKeys {
		if lfk.RefKey() != t.Key() || strings.EqualFold(lfk.Schema+"."+lfk.Table, t.Schema+"."+t.Name) {
			continue
		}
		p.gone[lfk.Key()] = true
		owner := p.want.Table(lfk.Schema, lfk.Table)
		if owner == nil {
			p.queue(lfk)
			continue
		}
		// Modeled tables get their key back in its model form, if the
		// model still wants it.
		if c := p.want.Column(owner, lfk.Column); c != nil && c.ForeignKey != nil && c.ForeignKey.SameTarget(lfk) {
			p.queue(c.ForeignKey)
		}
	}
}

func (p *pass) orphans() {
	if p.opts.DropOrphans == nil {
		return
	}
	for _, lt := range p.live.Tables {
		if p.want.Table(lt.Schema, lt.Name) != nil || p.isEnumTable(lt) {
			continue
		}
		if p.opts.DropOrphans(lt) {
			p.log.Debug().Str("table", lt.String()).Msg("orphaned table dropped")
			p.emit(&merge.DropTable{Table: lt})
		}
	}
}

func (p *pass) isEnumTable(t *schema.TableInfo) bool {
	for _, e := range p.want.Enums {
		if e.Table.Equal(t) {
			return true
		}
	}
	return false
}

func names(cols []*schema.ColumnInfo) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}
