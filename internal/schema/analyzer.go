package schema

import (
	"context"
	"database/sql"
	"strings"

	"github.com/rs/zerolog"

	"db-merge/internal/dialect"
	"db-merge/internal/errs"
)

// ---------------------------------------------------------------------
// 1. Live Schema Analysis
// ---------------------------------------------------------------------

// Analyze reads the live catalog: schemas, tables outside the system and
// excluded schemas, and their columns grouped by object id with inline
// foreign key targets. Types are normalized through the dialect so they
// compare equal to model-rendered types.
func Analyze(ctx context.Context, db *sql.DB, d dialect.Dialect, excluded []string, log zerolog.Logger) (*Catalog, error) {
	cat := NewCatalog()

	skip := make(map[string]bool)
	for _, s := range append(d.SystemSchemas(), excluded...) {
		skip[strings.ToLower(s)] = true
	}

	// --- Step 1: Fetch Schemas ---
	rows, err := db.QueryContext(ctx, d.SchemasQuery())
	if err != nil {
		return nil, errs.Query("failed to query schemas", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, errs.Query("failed to scan schema name", err)
		}
		cat.Schemas = append(cat.Schemas, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errs.Query("error iterating schemas", err)
	}

	// --- Step 2: Fetch Tables ---
	// Use map for O(1) lookups by object id
	byID := make(map[int64]*TableInfo)
	tableRows, err := db.QueryContext(ctx, d.TablesQuery())
	if err != nil {
		return nil, errs.Query("failed to query tables", err)
	}
	for tableRows.Next() {
		var id int64
		var schemaName, name string
		if err := tableRows.Scan(&id, &schemaName, &name); err != nil {
			tableRows.Close()
			return nil, errs.Query("failed to scan table", err)
		}
		if skip[strings.ToLower(schemaName)] {
			continue
		}
		t := &TableInfo{Schema: schemaName, Name: name, ObjectID: id, Droppable: true}
		byID[id] = t
		cat.Tables = append(cat.Tables, t)
	}
	tableRows.Close()
	if err := tableRows.Err(); err != nil {
		return nil, errs.Query("error iterating tables", err)
	}

	// --- Step 3: Fetch Columns ---
	colRows, err := db.QueryContext(ctx, d.ColumnsQuery())
	if err != nil {
		return nil, errs.Query("failed to query columns", err)
	}
	defer colRows.Close()

	for colRows.Next() {
		var id int64
		var name, dataType string
		var maxLength, precision, scale sql.NullInt64
		var nullable, computed int
		var collation, fkName, fkSchema, fkTable, fkColumn sql.NullString
		if err := colRows.Scan(&id, &name, &dataType, &maxLength, &precision, &scale,
			&nullable, &computed, &collation, &fkName, &fkSchema, &fkTable, &fkColumn); err != nil {
			return nil, errs.Query("failed to scan column", err)
		}

		t, ok := byID[id]
		if !ok {
			continue // excluded schema
		}
		if cols := cat.Columns[t.Key()]; len(cols) > 0 && strings.EqualFold(cols[len(cols)-1].Name, name) {
			continue // second foreign key on the same column
		}

		col := &ColumnInfo{
			Schema:       t.Schema,
			Table:        t.Name,
			Name:         name,
			DataType:     d.NormalizeType(dataType, int(maxLength.Int64), int(precision.Int64), int(scale.Int64)),
			IsNullable:   nullable != 0,
			IsCalculated: computed != 0,
			Precision:    int(precision.Int64),
			Scale:        int(scale.Int64),
			Collation:    collation.String,
		}
		if fkName.Valid && fkTable.Valid {
			col.ForeignKey = &ForeignKeyInfo{
				Name:      fkName.String,
				Schema:    t.Schema,
				Table:     t.Name,
				Column:    name,
				RefSchema: fkSchema.String,
				RefTable:  fkTable.String,
				RefColumn: fkColumn.String,
			}
			if col.ForeignKey.RefKey() != t.Key() {
				t.Dependencies = append(t.Dependencies, col.ForeignKey.RefKey())
			}
			cat.ForeignKeys = append(cat.ForeignKeys, col.ForeignKey)
		}
		cat.Columns[t.Key()] = append(cat.Columns[t.Key()], col)
	}
	if err := colRows.Err(); err != nil {
		return nil, errs.Query("error iterating columns", err)
	}

	log.Debug().Int("schemas", len(cat.Schemas)).Int("tables", len(cat.Tables)).
		Int("foreign_keys", len(cat.ForeignKeys)).Msg("live schema analyzed")
	return cat, nil
}

// ---------------------------------------------------------------------
// 2. Sorting Algorithm (Topological / Greedy)
// ---------------------------------------------------------------------

// SortTablesByFKCount sorts tables by dependency order, keeping input
// order among tables whose dependencies are satisfied. Dependencies on
// tables outside the list are ignored. Cycles are broken with a scoring
// heuristic.
func SortTablesByFKCount(tables []*TableInfo) []*TableInfo {
	var sorted []*TableInfo
	processed := make(map[string]bool)

	known := make(map[string]*TableInfo, len(tables))
	for _, t := range tables {
		known[t.Key()] = t
	}
	// Dependencies 는 대소문자가 섞여 들어올 수 있다. Key() 는 항상 소문자
	pending := func(dep string) bool {
		dep = strings.ToLower(dep)
		_, inList := known[dep]
		return inList && !processed[dep]
	}

	// Keep looping until all tables are processed
	for len(sorted) < len(tables) {
		added := false

		// Pass 1: Add tables whose dependencies are fully satisfied
		for _, t := range tables {
			if processed[t.Key()] {
				continue
			}

			allDepsProcessed := true
			for _, dep := range t.Dependencies {
				if pending(dep) {
					allDepsProcessed = false
					break
				}
			}

			if allDepsProcessed {
				sorted = append(sorted, t)
				processed[t.Key()] = true
				added = true
			}
		}

		// Pass 2: 순환 참조. 점수가 가장 높은 테이블부터 끊는다.
		if !added {
			var best *TableInfo
			bestScore := 0

			for _, t := range tables {
				if processed[t.Key()] {
					continue
				}

				// Penalty: unprocessed dependencies. Bonus: being part of a
				// two-table cycle.
				score := 0
				isCircular := false
				for _, dep := range t.Dependencies {
					if !pending(dep) {
						continue
					}
					score -= 100
					for _, back := range known[strings.ToLower(dep)].Dependencies {
						if strings.EqualFold(back, t.Key()) {
							isCircular = true
						}
					}
				}
				if isCircular {
					score += 500
				}

				// Tie-breaker: first in input order (deterministic)
				if best == nil || score > bestScore {
					best, bestScore = t, score
				}
			}

			sorted = append(sorted, best)
			processed[best.Key()] = true
		}
	}

	return sorted
}
