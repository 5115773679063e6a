package dialect

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"db-merge/internal/model"
)

var (
	_ Dialect = (*MSSQLDialect)(nil)
	_ Dialect = (*PostgresDialect)(nil)
	_ Dialect = (*MysqlDialect)(nil)
	_ Dialect = (*OracleDialect)(nil)
)

var (
	mu       sync.RWMutex
	registry = make(map[string]Dialect)
)

func init() {
	mustRegister(&MSSQLDialect{}, "sqlserver", "mssql")
	mustRegister(&PostgresDialect{}, "postgres", "postgresql")
	mustRegister(&MysqlDialect{}, "mysql")
	mustRegister(&OracleDialect{}, "oracle")
}

// Register validates d and makes it available under its name and the given
// driver aliases. An incomplete dialect is rejected here rather than at the
// first diff.
func Register(d Dialect, aliases ...string) error {
	if err := Check(d); err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	for _, name := range append([]string{d.Name()}, aliases...) {
		registry[strings.ToLower(name)] = d
	}
	return nil
}

func mustRegister(d Dialect, aliases ...string) {
	if err := Register(d, aliases...); err != nil {
		panic(err)
	}
}

// Get returns the dialect registered for a driver name.
func Get(driver string) (Dialect, error) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := registry[strings.ToLower(driver)]
	if !ok {
		return nil, fmt.Errorf("no dialect registered for driver %q", driver)
	}
	return d, nil
}

// Names lists every registered name and alias, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Check verifies that d renders every model kind and key generation and
// provides the catalog queries the engine relies on.
func Check(d Dialect) error {
	if d == nil || d.Name() == "" {
		return fmt.Errorf("dialect has no name")
	}

	var missing []string
	for _, k := range model.Kinds {
		if _, err := d.TypeName(TypeSpec{Kind: k}); err != nil {
			missing = append(missing, fmt.Sprintf("type %s", k))
		}
	}
	keys := d.KeyTypes()
	for _, k := range []model.KeyGeneration{model.KeyIdentity, model.KeySequential} {
		if keys[k] == "" {
			missing = append(missing, fmt.Sprintf("key generation %s", k))
		}
	}

	queries := map[string]string{
		"default schema query":           d.DefaultSchemaQuery(),
		"schemas query":                  d.SchemasQuery(),
		"tables query":                   d.TablesQuery(),
		"columns query":                  d.ColumnsQuery(),
		"object id query":                d.ObjectIDQuery(),
		"column exists query":            d.ColumnExistsQuery(),
		"index exists query":             d.IndexExistsQuery(),
		"primary key query":              d.PrimaryKeyQuery(),
		"referencing foreign keys query": d.ReferencingForeignKeysQuery(),
	}
	for name, q := range queries {
		if strings.TrimSpace(q) == "" {
			missing = append(missing, name)
		}
	}
	if d.BatchSeparator() == "" && d.StatementTerminator() == "" {
		missing = append(missing, "batch separator or statement terminator")
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("dialect %s is incomplete: missing %s", d.Name(), strings.Join(missing, ", "))
	}
	return nil
}
