package dialect

import (
	"fmt"
	"regexp"
	"strings"

	_ "github.com/go-sql-driver/mysql" // MySQL Driver

	"db-merge/internal/model"
)

// MysqlDialect treats a MySQL database as a schema.
type MysqlDialect struct{}

var intDisplayWidth = regexp.MustCompile(`^(smallint|mediumint|int|integer|bigint)\(\d+\)`)

func (d *MysqlDialect) Name() string { return "mysql" }

func (d *MysqlDialect) CommitsDDL() bool { return true }

func (d *MysqlDialect) BatchSeparator() string      { return "" }
func (d *MysqlDialect) StatementTerminator() string { return ";" }

func (d *MysqlDialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d *MysqlDialect) QuoteString(value string) string {
	v := strings.ReplaceAll(value, `\`, `\\`)
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

func (d *MysqlDialect) QualifiedName(schema, table string) string {
	return d.QuoteIdent(schema) + "." + d.QuoteIdent(table)
}

func (d *MysqlDialect) Placeholder(index int) string {
	return "?"
}

func (d *MysqlDialect) DefaultSchemaQuery() string {
	return `SELECT DATABASE()`
}

func (d *MysqlDialect) SystemSchemas() []string {
	return []string{"mysql", "sys", "information_schema", "performance_schema"}
}

func (d *MysqlDialect) SchemasQuery() string {
	return `SELECT SCHEMA_NAME FROM information_schema.SCHEMATA`
}

// TablesQuery uses the InnoDB dictionary id as the catalog object id.
func (d *MysqlDialect) TablesQuery() string {
	return `SELECT it.TABLE_ID, t.TABLE_SCHEMA, t.TABLE_NAME
		FROM information_schema.TABLES t
		JOIN information_schema.INNODB_TABLES it ON it.NAME = CONCAT(t.TABLE_SCHEMA, '/', t.TABLE_NAME)
		WHERE t.TABLE_TYPE = 'BASE TABLE'
		ORDER BY t.TABLE_SCHEMA, t.TABLE_NAME`
}

func (d *MysqlDialect) ColumnsQuery() string {
	return `SELECT it.TABLE_ID, c.COLUMN_NAME, c.COLUMN_TYPE, c.CHARACTER_MAXIMUM_LENGTH, c.NUMERIC_PRECISION, c.NUMERIC_SCALE,
		IF(c.IS_NULLABLE = 'YES', 1, 0),
		IF(c.GENERATION_EXPRESSION IS NOT NULL AND c.GENERATION_EXPRESSION <> '', 1, 0),
		c.COLLATION_NAME,
		k.CONSTRAINT_NAME, k.REFERENCED_TABLE_SCHEMA, k.REFERENCED_TABLE_NAME, k.REFERENCED_COLUMN_NAME
	FROM information_schema.COLUMNS c
	JOIN information_schema.INNODB_TABLES it ON it.NAME = CONCAT(c.TABLE_SCHEMA, '/', c.TABLE_NAME)
	LEFT JOIN information_schema.KEY_COLUMN_USAGE k
		ON k.TABLE_SCHEMA = c.TABLE_SCHEMA AND k.TABLE_NAME = c.TABLE_NAME AND k.COLUMN_NAME = c.COLUMN_NAME
		AND k.REFERENCED_TABLE_NAME IS NOT NULL
	ORDER BY it.TABLE_ID, c.ORDINAL_POSITION`
}

func (d *MysqlDialect) ObjectIDQuery() string {
	return fmt.Sprintf(`SELECT TABLE_ID FROM information_schema.INNODB_TABLES WHERE NAME = CONCAT(%s, '/', %s)`, params(d, 2)...)
}

func (d *MysqlDialect) ColumnExistsQuery() string {
	return fmt.Sprintf(`SELECT COUNT(*) FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = %s AND TABLE_NAME = %s AND COLUMN_NAME = %s`, params(d, 3)...)
}

func (d *MysqlDialect) IndexExistsQuery() string {
	return fmt.Sprintf(`SELECT COUNT(*) FROM information_schema.STATISTICS WHERE TABLE_SCHEMA = %s AND TABLE_NAME = %s AND INDEX_NAME = %s`, params(d, 3)...)
}

func (d *MysqlDialect) PrimaryKeyQuery() string {
	// MySQL names every primary key PRIMARY.
	return fmt.Sprintf(`SELECT CONSTRAINT_NAME, COLUMN_NAME FROM information_schema.KEY_COLUMN_USAGE WHERE TABLE_SCHEMA = %s AND TABLE_NAME = %s AND CONSTRAINT_NAME = 'PRIMARY' ORDER BY ORDINAL_POSITION`, params(d, 2)...)
}

func (d *MysqlDialect) ReferencingForeignKeysQuery() string {
	return fmt.Sprintf(`SELECT CONSTRAINT_NAME, TABLE_SCHEMA, TABLE_NAME, COLUMN_NAME, REFERENCED_COLUMN_NAME FROM information_schema.KEY_COLUMN_USAGE WHERE REFERENCED_TABLE_SCHEMA = %s AND REFERENCED_TABLE_NAME = %s ORDER BY CONSTRAINT_NAME`, params(d, 2)...)
}

func (d *MysqlDialect) LimitRowQuery(query string, limit int) string {
	return fmt.Sprintf("%s LIMIT %d", query, limit)
}

func (d *MysqlDialect) TypeName(spec TypeSpec) (string, error) {
	switch spec.Kind {
	case model.KindBool:
		return "tinyint(1)", nil
	case model.KindInt16:
		return "smallint", nil
	case model.KindInt32, model.KindEnum:
		return "int", nil
	case model.KindInt64:
		return "bigint", nil
	case model.KindDecimal:
		return decimalType("decimal", spec.Precision, spec.Scale), nil
	case model.KindFloat32:
		return "float", nil
	case model.KindFloat64:
		return "double", nil
	case model.KindString, model.KindAnsiString:
		if spec.Length <= 0 {
			return "longtext", nil
		}
		return fmt.Sprintf("varchar(%d)", spec.Length), nil
	case model.KindDateTime:
		return "datetime", nil
	case model.KindDate:
		return "date", nil
	case model.KindTime:
		return "time", nil
	case model.KindGUID:
		return "char(36)", nil
	case model.KindBinary:
		if spec.Length <= 0 {
			return "longblob", nil
		}
		return fmt.Sprintf("varbinary(%d)", spec.Length), nil
	}
	return "", unsupported(d, spec)
}

// NormalizeType expects COLUMN_TYPE, which already carries length and
// precision; only legacy integer display widths are stripped.
func (d *MysqlDialect) NormalizeType(dataType string, maxLength, precision, scale int) string {
	t := strings.ToLower(strings.TrimSpace(dataType))
	return intDisplayWidth.ReplaceAllString(t, "$1")
}

func (d *MysqlDialect) KeyTypes() map[model.KeyGeneration]string {
	return map[model.KeyGeneration]string{
		model.KeyIdentity:   "AUTO_INCREMENT",
		model.KeySequential: "DEFAULT (UUID())",
	}
}

func (d *MysqlDialect) CreateSchema(schema string) string {
	return fmt.Sprintf("CREATE SCHEMA %s", d.QuoteIdent(schema))
}

func (d *MysqlDialect) CreateTable(t TableDef) string {
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = d.columnSQL(c)
	}
	var pk string
	if len(t.PrimaryKey) > 0 {
		pk = fmt.Sprintf("CONSTRAINT %s PRIMARY KEY (%s)", d.QuoteIdent(t.PrimaryKeyName), quoteAll(t.PrimaryKey, d.QuoteIdent))
	}
	return createTableBody(d.QualifiedName(t.Schema, t.Name), defs, pk)
}

func (d *MysqlDialect) DropTable(schema, table string) string {
	return fmt.Sprintf("DROP TABLE %s", d.QualifiedName(schema, table))
}

func (d *MysqlDialect) AddColumn(schema, table string, c ColumnDef) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.QualifiedName(schema, table), d.columnSQL(c))
}

// AlterColumn restates the whole definition; MODIFY drops anything omitted.
func (d *MysqlDialect) AlterColumn(schema, table string, from, to ColumnDef) string {
	return fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", d.QualifiedName(schema, table), d.columnSQL(to))
}

func (d *MysqlDialect) DropColumn(schema, table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", d.QualifiedName(schema, table), d.QuoteIdent(column))
}

func (d *MysqlDialect) AddPrimaryKey(schema, table, name string, columns []string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY (%s)",
		d.QualifiedName(schema, table), d.QuoteIdent(name), quoteAll(columns, d.QuoteIdent))
}

func (d *MysqlDialect) DropPrimaryKey(schema, table, name string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP PRIMARY KEY", d.QualifiedName(schema, table))
}

func (d *MysqlDialect) AddForeignKey(fk ForeignKeyDef) string {
	sql := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		d.QualifiedName(fk.Schema, fk.Table), d.QuoteIdent(fk.Name), d.QuoteIdent(fk.Column),
		d.QualifiedName(fk.RefSchema, fk.RefTable), d.QuoteIdent(fk.RefColumn))
	if fk.CascadeDelete {
		sql += " ON DELETE CASCADE"
	}
	return sql
}

func (d *MysqlDialect) DropForeignKey(schema, table, name string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s", d.QualifiedName(schema, table), d.QuoteIdent(name))
}

func (d *MysqlDialect) CreateIndex(idx IndexDef) string {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)", unique, d.QuoteIdent(idx.Name),
		d.QualifiedName(idx.Schema, idx.Table), quoteAll(idx.Columns, d.QuoteIdent))
}

func (d *MysqlDialect) DropIndex(schema, table, name string) string {
	return fmt.Sprintf("DROP INDEX %s ON %s", d.QuoteIdent(name), d.QualifiedName(schema, table))
}

func (d *MysqlDialect) Update(schema, table, column, expression string) string {
	return fmt.Sprintf("UPDATE %s SET %s = %s", d.QualifiedName(schema, table), d.QuoteIdent(column), expression)
}

func (d *MysqlDialect) Insert(schema, table string, columns, values []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.QualifiedName(schema, table),
		quoteAll(columns, d.QuoteIdent), strings.Join(values, ", "))
}

func (d *MysqlDialect) columnSQL(c ColumnDef) string {
	parts := []string{d.QuoteIdent(c.Name), c.Type}
	if c.Collation != "" {
		parts = append(parts, "COLLATE "+c.Collation)
	}
	if c.Computed != "" {
		storage := "VIRTUAL"
		if c.Persisted {
			storage = "STORED"
		}
		return strings.Join(append(parts, fmt.Sprintf("AS (%s) %s", c.Computed, storage)), " ")
	}
	parts = append(parts, nullClause(c.Nullable))
	if c.KeyFragment != "" {
		parts = append(parts, c.KeyFragment)
	}
	if c.Default != "" {
		parts = append(parts, "DEFAULT "+c.Default)
	}
	return strings.Join(parts, " ")
}
