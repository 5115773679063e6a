package dialect

import (
	"fmt"
	"strings"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server Driver

	"db-merge/internal/model"
)

type MSSQLDialect struct{}

func (d *MSSQLDialect) Name() string { return "sqlserver" }

func (d *MSSQLDialect) BatchSeparator() string      { return "GO" }
func (d *MSSQLDialect) StatementTerminator() string { return "" }

func (d *MSSQLDialect) QuoteIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (d *MSSQLDialect) QuoteString(value string) string {
	return "N'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (d *MSSQLDialect) QualifiedName(schema, table string) string {
	return d.QuoteIdent(schema) + "." + d.QuoteIdent(table)
}

// Helper: MSSQL Driver (go-mssqldb) often prefers @p1, @p2 named parameters over ?
// especially when prepared statements are involved or simple Exec.
func (d *MSSQLDialect) Placeholder(index int) string {
	return fmt.Sprintf("@p%d", index+1)
}

func (d *MSSQLDialect) DefaultSchemaQuery() string {
	return `SELECT SCHEMA_NAME()`
}

func (d *MSSQLDialect) SystemSchemas() []string {
	return []string{
		"sys", "INFORMATION_SCHEMA", "guest",
		"db_owner", "db_accessadmin", "db_securityadmin", "db_ddladmin",
		"db_backupoperator", "db_datareader", "db_datawriter",
		"db_denydatareader", "db_denydatawriter",
	}
}

func (d *MSSQLDialect) SchemasQuery() string {
	return `SELECT name FROM sys.schemas`
}

func (d *MSSQLDialect) TablesQuery() string {
	return `SELECT CAST(t.object_id AS bigint), s.name, t.name
		FROM sys.tables t
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		WHERE t.is_ms_shipped = 0
		ORDER BY s.name, t.name`
}

func (d *MSSQLDialect) ColumnsQuery() string {
	// Foreign key target info is joined inline; CHARACTER_MAXIMUM_LENGTH semantics
	// (characters, -1 for max) come from COLUMNPROPERTY rather than max_length bytes.
	return `
		SELECT
			CAST(c.object_id AS bigint),
			c.name,
			ty.name,
			COLUMNPROPERTY(c.object_id, c.name, 'charmaxlen'),
			CAST(c.precision AS int),
			CAST(c.scale AS int),
			CAST(c.is_nullable AS int),
			CAST(c.is_computed AS int),
			c.collation_name,
			fk.name,
			rs.name,
			rt.name,
			rc.name
		FROM sys.columns c
		JOIN sys.tables t ON t.object_id = c.object_id
		JOIN sys.types ty ON ty.user_type_id = c.user_type_id
		LEFT JOIN sys.foreign_key_columns fkc
			ON fkc.parent_object_id = c.object_id AND fkc.parent_column_id = c.column_id
		LEFT JOIN sys.foreign_keys fk ON fk.object_id = fkc.constraint_object_id
		LEFT JOIN sys.tables rt ON rt.object_id = fkc.referenced_object_id
		LEFT JOIN sys.schemas rs ON rs.schema_id = rt.schema_id
		LEFT JOIN sys.columns rc
			ON rc.object_id = fkc.referenced_object_id AND rc.column_id = fkc.referenced_column_id
		WHERE t.is_ms_shipped = 0
		ORDER BY c.object_id, c.column_id
	`
}

func (d *MSSQLDialect) ObjectIDQuery() string {
	return fmt.Sprintf(`SELECT CAST(t.object_id AS bigint) FROM sys.tables t JOIN sys.schemas s ON s.schema_id = t.schema_id WHERE s.name = %s AND t.name = %s`, params(d, 2)...)
}

func (d *MSSQLDialect) ColumnExistsQuery() string {
	return fmt.Sprintf(`SELECT COUNT(*) FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = %s AND TABLE_NAME = %s AND COLUMN_NAME = %s`, params(d, 3)...)
}

func (d *MSSQLDialect) IndexExistsQuery() string {
	return fmt.Sprintf(`SELECT COUNT(*) FROM sys.indexes i JOIN sys.tables t ON t.object_id = i.object_id JOIN sys.schemas s ON s.schema_id = t.schema_id WHERE s.name = %s AND t.name = %s AND i.name = %s`, params(d, 3)...)
}

func (d *MSSQLDialect) PrimaryKeyQuery() string {
	return fmt.Sprintf(`SELECT tc.CONSTRAINT_NAME, kcu.COLUMN_NAME
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
			ON kcu.CONSTRAINT_SCHEMA = tc.CONSTRAINT_SCHEMA AND kcu.CONSTRAINT_NAME = tc.CONSTRAINT_NAME
		WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY' AND tc.TABLE_SCHEMA = %s AND tc.TABLE_NAME = %s
		ORDER BY kcu.ORDINAL_POSITION`, params(d, 2)...)
}

func (d *MSSQLDialect) ReferencingForeignKeysQuery() string {
	return fmt.Sprintf(`SELECT fk.name, ps.name, pt.name, pc.name, rc.name
		FROM sys.foreign_keys fk
		JOIN sys.foreign_key_columns fkc ON fkc.constraint_object_id = fk.object_id
		JOIN sys.tables pt ON pt.object_id = fkc.parent_object_id
		JOIN sys.schemas ps ON ps.schema_id = pt.schema_id
		JOIN sys.columns pc ON pc.object_id = fkc.parent_object_id AND pc.column_id = fkc.parent_column_id
		JOIN sys.tables rt ON rt.object_id = fkc.referenced_object_id
		JOIN sys.schemas rs ON rs.schema_id = rt.schema_id
		JOIN sys.columns rc ON rc.object_id = fkc.referenced_object_id AND rc.column_id = fkc.referenced_column_id
		WHERE rs.name = %s AND rt.name = %s
		ORDER BY fk.name`, params(d, 2)...)
}

func (d *MSSQLDialect) LimitRowQuery(query string, limit int) string {
	// Simple T-SQL TOP injection
	trimmed := strings.TrimSpace(query)
	if strings.HasPrefix(strings.ToUpper(trimmed), "SELECT") {
		return fmt.Sprintf("SELECT TOP %d%s", limit, trimmed[len("SELECT"):])
	}
	return query
}

func (d *MSSQLDialect) TypeName(spec TypeSpec) (string, error) {
	switch spec.Kind {
	case model.KindBool:
		return "bit", nil
	case model.KindInt16:
		return "smallint", nil
	case model.KindInt32, model.KindEnum:
		return "int", nil
	case model.KindInt64:
		return "bigint", nil
	case model.KindDecimal:
		return decimalType("decimal", spec.Precision, spec.Scale), nil
	case model.KindFloat32:
		return "real", nil
	case model.KindFloat64:
		return "float", nil
	case model.KindString:
		return sizedType("nvarchar", spec.Length, "max"), nil
	case model.KindAnsiString:
		return sizedType("varchar", spec.Length, "max"), nil
	case model.KindDateTime:
		return "datetime2", nil
	case model.KindDate:
		return "date", nil
	case model.KindTime:
		return "time", nil
	case model.KindGUID:
		return "uniqueidentifier", nil
	case model.KindBinary:
		return sizedType("varbinary", spec.Length, "max"), nil
	}
	return "", unsupported(d, spec)
}

func (d *MSSQLDialect) NormalizeType(dataType string, maxLength, precision, scale int) string {
	t := strings.ToLower(dataType)
	switch t {
	case "nvarchar", "varchar", "nchar", "char", "varbinary", "binary":
		if maxLength < 0 {
			return t + "(max)"
		}
		return fmt.Sprintf("%s(%d)", t, maxLength)
	case "decimal", "numeric":
		return fmt.Sprintf("%s(%d,%d)", t, precision, scale)
	default:
		return t
	}
}

func (d *MSSQLDialect) KeyTypes() map[model.KeyGeneration]string {
	return map[model.KeyGeneration]string{
		model.KeyIdentity:   "IDENTITY(1,1)",
		model.KeySequential: "DEFAULT NEWSEQUENTIALID()",
	}
}

func (d *MSSQLDialect) CreateSchema(schema string) string {
	return fmt.Sprintf("CREATE SCHEMA %s", d.QuoteIdent(schema))
}

func (d *MSSQLDialect) CreateTable(t TableDef) string {
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = d.columnSQL(t.Schema, t.Name, c)
	}
	var pk string
	if len(t.PrimaryKey) > 0 {
		pk = fmt.Sprintf("CONSTRAINT %s PRIMARY KEY (%s)", d.QuoteIdent(t.PrimaryKeyName), quoteAll(t.PrimaryKey, d.QuoteIdent))
	}
	return createTableBody(d.QualifiedName(t.Schema, t.Name), defs, pk)
}

func (d *MSSQLDialect) DropTable(schema, table string) string {
	return fmt.Sprintf("DROP TABLE %s", d.QualifiedName(schema, table))
}

func (d *MSSQLDialect) AddColumn(schema, table string, c ColumnDef) string {
	return fmt.Sprintf("ALTER TABLE %s ADD %s", d.QualifiedName(schema, table), d.columnSQL(schema, table, c))
}

func (d *MSSQLDialect) AlterColumn(schema, table string, from, to ColumnDef) string {
	def := d.QuoteIdent(to.Name) + " " + to.Type
	if to.Collation != "" {
		def += " COLLATE " + to.Collation
	}
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s", d.QualifiedName(schema, table), def, nullClause(to.Nullable))
}

// DropColumn removes any default constraint bound to the column first;
// SQL Server refuses to drop a column a constraint depends on.
func (d *MSSQLDialect) DropColumn(schema, table, column string) string {
	return d.DropDefault(schema, table, column) + ";\n" +
		fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", d.QualifiedName(schema, table), d.QuoteIdent(column))
}

// DropDefault drops whatever default constraint is bound to the column,
// looked up by column since its name is not always ours.
func (d *MSSQLDialect) DropDefault(schema, table, column string) string {
	qualified := d.QualifiedName(schema, table)
	return fmt.Sprintf(`DECLARE @df sysname = (SELECT dc.name FROM sys.default_constraints dc JOIN sys.columns c ON c.object_id = dc.parent_object_id AND c.column_id = dc.parent_column_id WHERE dc.parent_object_id = OBJECT_ID(%s) AND c.name = %s);
IF @df IS NOT NULL EXEC(N'ALTER TABLE %s DROP CONSTRAINT [' + @df + N']')`,
		d.QuoteString(qualified), d.QuoteString(column),
		strings.ReplaceAll(qualified, "'", "''"))
}

func (d *MSSQLDialect) AddDefault(schema, table string, c ColumnDef) string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s DEFAULT %s FOR %s", d.QualifiedName(schema, table),
		d.QuoteIdent(DefaultConstraintName(schema, table, c.Name)), c.Default, d.QuoteIdent(c.Name))
}

func (d *MSSQLDialect) AddPrimaryKey(schema, table, name string, columns []string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY (%s)",
		d.QualifiedName(schema, table), d.QuoteIdent(name), quoteAll(columns, d.QuoteIdent))
}

func (d *MSSQLDialect) DropPrimaryKey(schema, table, name string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", d.QualifiedName(schema, table), d.QuoteIdent(name))
}

func (d *MSSQLDialect) AddForeignKey(fk ForeignKeyDef) string {
	sql := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		d.QualifiedName(fk.Schema, fk.Table), d.QuoteIdent(fk.Name), d.QuoteIdent(fk.Column),
		d.QualifiedName(fk.RefSchema, fk.RefTable), d.QuoteIdent(fk.RefColumn))
	if fk.CascadeDelete {
		sql += " ON DELETE CASCADE"
	}
	return sql
}

func (d *MSSQLDialect) DropForeignKey(schema, table, name string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", d.QualifiedName(schema, table), d.QuoteIdent(name))
}

func (d *MSSQLDialect) CreateIndex(idx IndexDef) string {
	var b strings.Builder
	b.WriteString("CREATE ")
	if idx.Unique {
		b.WriteString("UNIQUE ")
	}
	if idx.Clustered {
		b.WriteString("CLUSTERED ")
	} else {
		b.WriteString("NONCLUSTERED ")
	}
	fmt.Fprintf(&b, "INDEX %s ON %s (%s)", d.QuoteIdent(idx.Name),
		d.QualifiedName(idx.Schema, idx.Table), quoteAll(idx.Columns, d.QuoteIdent))
	return b.String()
}

func (d *MSSQLDialect) DropIndex(schema, table, name string) string {
	return fmt.Sprintf("DROP INDEX %s ON %s", d.QuoteIdent(name), d.QualifiedName(schema, table))
}

func (d *MSSQLDialect) Update(schema, table, column, expression string) string {
	return fmt.Sprintf("UPDATE %s SET %s = %s", d.QualifiedName(schema, table), d.QuoteIdent(column), expression)
}

func (d *MSSQLDialect) Insert(schema, table string, columns, values []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.QualifiedName(schema, table),
		quoteAll(columns, d.QuoteIdent), strings.Join(values, ", "))
}

func (d *MSSQLDialect) columnSQL(schema, table string, c ColumnDef) string {
	if c.Computed != "" {
		sql := fmt.Sprintf("%s AS (%s)", d.QuoteIdent(c.Name), c.Computed)
		if c.Persisted {
			sql += " PERSISTED"
		}
		return sql
	}

	parts := []string{d.QuoteIdent(c.Name), c.Type}
	if c.Collation != "" {
		parts = append(parts, "COLLATE "+c.Collation)
	}
	if c.KeyFragment != "" {
		parts = append(parts, c.KeyFragment)
	}
	parts = append(parts, nullClause(c.Nullable))
	if c.Default != "" {
		parts = append(parts, fmt.Sprintf("CONSTRAINT %s DEFAULT %s",
			d.QuoteIdent(DefaultConstraintName(schema, table, c.Name)), c.Default))
	}
	return strings.Join(parts, " ")
}
