package dialect

import (
	"fmt"
	"strings"

	_ "github.com/lib/pq" // PostgreSQL Driver

	"db-merge/internal/model"
)

type PostgresDialect struct{}

func (d *PostgresDialect) Name() string { return "postgres" }

func (d *PostgresDialect) BatchSeparator() string      { return "" }
func (d *PostgresDialect) StatementTerminator() string { return ";" }

func (d *PostgresDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *PostgresDialect) QuoteString(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (d *PostgresDialect) QualifiedName(schema, table string) string {
	return d.QuoteIdent(schema) + "." + d.QuoteIdent(table)
}

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index+1)
}

func (d *PostgresDialect) DefaultSchemaQuery() string {
	return `SELECT current_schema()`
}

func (d *PostgresDialect) SystemSchemas() []string {
	return []string{"pg_catalog", "information_schema", "pg_toast"}
}

func (d *PostgresDialect) SchemasQuery() string {
	return `SELECT nspname FROM pg_catalog.pg_namespace`
}

func (d *PostgresDialect) TablesQuery() string {
	return `SELECT cls.oid::bigint, ns.nspname, cls.relname
		FROM pg_catalog.pg_class cls
		JOIN pg_catalog.pg_namespace ns ON ns.oid = cls.relnamespace
		WHERE cls.relkind IN ('r', 'p') AND ns.nspname NOT LIKE 'pg_temp%'
		ORDER BY ns.nspname, cls.relname`
}

func (d *PostgresDialect) ColumnsQuery() string {
	// udt_name (int4, varchar, ...) is normalized later; data_type reports
	// "character varying" which no DDL renders.
	return `SELECT
    cls.oid::bigint,
    c.column_name,
    c.udt_name,
    c.character_maximum_length,
    c.numeric_precision,
    c.numeric_scale,
    CASE WHEN c.is_nullable = 'YES' THEN 1 ELSE 0 END,
    CASE WHEN c.is_generated = 'ALWAYS' THEN 1 ELSE 0 END,
    c.collation_name,
    fk.constraint_name,
    fk.ref_schema,
    fk.ref_table,
    fk.ref_column
FROM information_schema.columns c
JOIN pg_catalog.pg_namespace ns ON ns.nspname = c.table_schema
JOIN pg_catalog.pg_class cls ON cls.relnamespace = ns.oid AND cls.relname = c.table_name
LEFT JOIN (
    SELECT kcu.table_schema, kcu.table_name, kcu.column_name, kcu.constraint_name,
        ccu.table_schema AS ref_schema, ccu.table_name AS ref_table, ccu.column_name AS ref_column
    FROM information_schema.table_constraints tc
    JOIN information_schema.key_column_usage kcu
        ON kcu.constraint_schema = tc.constraint_schema AND kcu.constraint_name = tc.constraint_name
    JOIN information_schema.constraint_column_usage ccu
        ON ccu.constraint_schema = tc.constraint_schema AND ccu.constraint_name = tc.constraint_name
    WHERE tc.constraint_type = 'FOREIGN KEY'
) fk ON fk.table_schema = c.table_schema AND fk.table_name = c.table_name AND fk.column_name = c.column_name
WHERE cls.relkind IN ('r', 'p')
ORDER BY cls.oid, c.ordinal_position`
}

func (d *PostgresDialect) ObjectIDQuery() string {
	return fmt.Sprintf(`SELECT cls.oid::bigint FROM pg_catalog.pg_class cls JOIN pg_catalog.pg_namespace ns ON ns.oid = cls.relnamespace WHERE ns.nspname = %s AND cls.relname = %s AND cls.relkind IN ('r', 'p')`, params(d, 2)...)
}

func (d *PostgresDialect) ColumnExistsQuery() string {
	return fmt.Sprintf(`SELECT COUNT(*) FROM information_schema.columns WHERE table_schema = %s AND table_name = %s AND column_name = %s`, params(d, 3)...)
}

func (d *PostgresDialect) IndexExistsQuery() string {
	return fmt.Sprintf(`SELECT COUNT(*) FROM pg_catalog.pg_indexes WHERE schemaname = %s AND tablename = %s AND indexname = %s`, params(d, 3)...)
}

func (d *PostgresDialect) PrimaryKeyQuery() string {
	return fmt.Sprintf(`SELECT tc.constraint_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_schema = tc.constraint_schema AND kcu.constraint_name = tc.constraint_name
		WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = %s AND tc.table_name = %s
		ORDER BY kcu.ordinal_position`, params(d, 2)...)
}

func (d *PostgresDialect) ReferencingForeignKeysQuery() string {
	return fmt.Sprintf(`SELECT tc.constraint_name, kcu.table_schema, kcu.table_name, kcu.column_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_schema = tc.constraint_schema AND kcu.constraint_name = tc.constraint_name
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_schema = tc.constraint_schema AND ccu.constraint_name = tc.constraint_name
		WHERE tc.constraint_type = 'FOREIGN KEY' AND ccu.table_schema = %s AND ccu.table_name = %s
		ORDER BY tc.constraint_name`, params(d, 2)...)
}

func (d *PostgresDialect) LimitRowQuery(query string, limit int) string {
	return fmt.Sprintf("%s LIMIT %d", query, limit)
}

func (d *PostgresDialect) TypeName(spec TypeSpec) (string, error) {
	switch spec.Kind {
	case model.KindBool:
		return "boolean", nil
	case model.KindInt16:
		return "smallint", nil
	case model.KindInt32, model.KindEnum:
		return "integer", nil
	case model.KindInt64:
		return "bigint", nil
	case model.KindDecimal:
		return decimalType("numeric", spec.Precision, spec.Scale), nil
	case model.KindFloat32:
		return "real", nil
	case model.KindFloat64:
		return "double precision", nil
	case model.KindString, model.KindAnsiString:
		if spec.Length <= 0 {
			return "text", nil
		}
		return fmt.Sprintf("varchar(%d)", spec.Length), nil
	case model.KindDateTime:
		return "timestamp", nil
	case model.KindDate:
		return "date", nil
	case model.KindTime:
		return "time", nil
	case model.KindGUID:
		return "uuid", nil
	case model.KindBinary:
		return "bytea", nil
	}
	return "", unsupported(d, spec)
}

func (d *PostgresDialect) NormalizeType(dataType string, maxLength, precision, scale int) string {
	t := strings.ToLower(dataType)
	switch t {
	case "int4":
		return "integer"
	case "int2":
		return "smallint"
	case "int8":
		return "bigint"
	case "bool":
		return "boolean"
	case "float4":
		return "real"
	case "float8":
		return "double precision"
	case "varchar", "bpchar":
		if t == "bpchar" {
			t = "char"
		}
		if maxLength <= 0 {
			return t
		}
		return fmt.Sprintf("%s(%d)", t, maxLength)
	case "numeric":
		if precision <= 0 {
			return t
		}
		return fmt.Sprintf("numeric(%d,%d)", precision, scale)
	default:
		return t
	}
}

func (d *PostgresDialect) KeyTypes() map[model.KeyGeneration]string {
	return map[model.KeyGeneration]string{
		model.KeyIdentity:   "GENERATED BY DEFAULT AS IDENTITY",
		model.KeySequential: "DEFAULT gen_random_uuid()",
	}
}

func (d *PostgresDialect) CreateSchema(schema string) string {
	return fmt.Sprintf("CREATE SCHEMA %s", d.QuoteIdent(schema))
}

func (d *PostgresDialect) CreateTable(t TableDef) string {
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

func (d *PostgresDialect) DropTable(schema, table string) string {
	return fmt.Sprintf("DROP TABLE %s", d.QualifiedName(schema, table))
}

func (d *PostgresDialect) AddColumn(schema, table string, c ColumnDef) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.QualifiedName(schema, table), d.columnSQL(c))
}

func (d *PostgresDialect) AlterColumn(schema, table string, from, to ColumnDef) string {
	col := d.QuoteIdent(to.Name)
	var clauses []string
	if !strings.EqualFold(from.Type, to.Type) || !strings.EqualFold(from.Collation, to.Collation) {
		clause := fmt.Sprintf("ALTER COLUMN %s TYPE %s", col, to.Type)
		if to.Collation != "" {
			clause += " COLLATE " + d.QuoteIdent(to.Collation)
		}
		clauses = append(clauses, clause)
	}
	if from.Nullable != to.Nullable || len(clauses) == 0 {
		if to.Nullable {
			clauses = append(clauses, fmt.Sprintf("ALTER COLUMN %s DROP NOT NULL", col))
		} else {
			clauses = append(clauses, fmt.Sprintf("ALTER COLUMN %s SET NOT NULL", col))
		}
	}
	return fmt.Sprintf("ALTER TABLE %s %s", d.QualifiedName(schema, table), strings.Join(clauses, ", "))
}

func (d *PostgresDialect) DropColumn(schema, table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", d.QualifiedName(schema, table), d.QuoteIdent(column))
}

func (d *PostgresDialect) AddPrimaryKey(schema, table, name string, columns []string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY (%s)",
		d.QualifiedName(schema, table), d.QuoteIdent(name), quoteAll(columns, d.QuoteIdent))
}

func (d *PostgresDialect) DropPrimaryKey(schema, table, name string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", d.QualifiedName(schema, table), d.QuoteIdent(name))
}

func (d *PostgresDialect) AddForeignKey(fk ForeignKeyDef) string {
	sql := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		d.QualifiedName(fk.Schema, fk.Table), d.QuoteIdent(fk.Name), d.QuoteIdent(fk.Column),
		d.QualifiedName(fk.RefSchema, fk.RefTable), d.QuoteIdent(fk.RefColumn))
	if fk.CascadeDelete {
		sql += " ON DELETE CASCADE"
	}
	return sql
}

func (d *PostgresDialect) DropForeignKey(schema, table, name string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", d.QualifiedName(schema, table), d.QuoteIdent(name))
}

// CreateIndex ignores Clustered; PostgreSQL has no clustered indexes.
func (d *PostgresDialect) CreateIndex(idx IndexDef) string {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)", unique, d.QuoteIdent(idx.Name),
		d.QualifiedName(idx.Schema, idx.Table), quoteAll(idx.Columns, d.QuoteIdent))
}

func (d *PostgresDialect) DropIndex(schema, table, name string) string {
	return fmt.Sprintf("DROP INDEX %s", d.QualifiedName(schema, name))
}

func (d *PostgresDialect) Update(schema, table, column, expression string) string {
	return fmt.Sprintf("UPDATE %s SET %s = %s", d.QualifiedName(schema, table), d.QuoteIdent(column), expression)
}

func (d *PostgresDialect) Insert(schema, table string, columns, values []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.QualifiedName(schema, table),
		quoteAll(columns, d.QuoteIdent), strings.Join(values, ", "))
}

func (d *PostgresDialect) columnSQL(c ColumnDef) string {
	parts := []string{d.QuoteIdent(c.Name), c.Type}
	if c.Collation != "" {
		parts = append(parts, "COLLATE "+d.QuoteIdent(c.Collation))
	}
	if c.Computed != "" {
		// PostgreSQL only supports stored generated columns.
		return strings.Join(append(parts, fmt.Sprintf("GENERATED ALWAYS AS (%s) STORED", c.Computed)), " ")
	}
	if c.KeyFragment != "" {
		parts = append(parts, c.KeyFragment)
	}
	parts = append(parts, nullClause(c.Nullable))
	if c.Default != "" {
		parts = append(parts, "DEFAULT "+c.Default)
	}
	return strings.Join(parts, " ")
}
