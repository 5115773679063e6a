package dialect

import (
	"fmt"
	"regexp"
	"strings"

	_ "github.com/sijms/go-ora/v2" // Oracle Driver

	"db-merge/internal/model"
)

// OracleDialect treats an Oracle user as a schema.
type OracleDialect struct{}

var fractionalPrecision = regexp.MustCompile(`\(\d+\)`)

func (d *OracleDialect) Name() string { return "oracle" }

func (d *OracleDialect) CommitsDDL() bool { return true }

func (d *OracleDialect) BatchSeparator() string      { return "" }
func (d *OracleDialect) StatementTerminator() string { return ";" }

func (d *OracleDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *OracleDialect) QuoteString(value string) string {
	return "N'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (d *OracleDialect) QualifiedName(schema, table string) string {
	return d.QuoteIdent(schema) + "." + d.QuoteIdent(table)
}

func (d *OracleDialect) Placeholder(index int) string {
	// Oracle uses :1, :2, etc. (1-based index)
	return fmt.Sprintf(":%d", index+1)
}

func (d *OracleDialect) DefaultSchemaQuery() string {
	return `SELECT SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA') FROM DUAL`
}

func (d *OracleDialect) SystemSchemas() []string {
	return []string{"SYS", "SYSTEM", "XDB", "OUTLN", "DBSNMP", "APPQOSSYS", "AUDSYS", "GSMADMIN_INTERNAL"}
}

func (d *OracleDialect) SchemasQuery() string {
	return `SELECT USERNAME FROM ALL_USERS WHERE ORACLE_MAINTAINED = 'N'`
}

func (d *OracleDialect) TablesQuery() string {
	return `SELECT o.OBJECT_ID, o.OWNER, o.OBJECT_NAME
		FROM ALL_OBJECTS o
		JOIN ALL_USERS u ON u.USERNAME = o.OWNER
		WHERE o.OBJECT_TYPE = 'TABLE' AND u.ORACLE_MAINTAINED = 'N'
		ORDER BY o.OWNER, o.OBJECT_NAME`
}

func (d *OracleDialect) ColumnsQuery() string {
	return `
SELECT
    o.OBJECT_ID,
    t.COLUMN_NAME,
    t.DATA_TYPE,
    t.CHAR_LENGTH,
    t.DATA_PRECISION,
    t.DATA_SCALE,
    CASE WHEN t.NULLABLE = 'Y' THEN 1 ELSE 0 END,
    CASE WHEN t.VIRTUAL_COLUMN = 'YES' THEN 1 ELSE 0 END,
    t.COLLATION,
    fk.CONSTRAINT_NAME,
    fk.REF_OWNER,
    fk.REF_TABLE,
    fk.REF_COLUMN
FROM ALL_TAB_COLS t
JOIN ALL_OBJECTS o ON o.OWNER = t.OWNER AND o.OBJECT_NAME = t.TABLE_NAME AND o.OBJECT_TYPE = 'TABLE'
LEFT JOIN (
    SELECT cc.OWNER, cc.TABLE_NAME, cc.COLUMN_NAME, c.CONSTRAINT_NAME,
        r.OWNER AS REF_OWNER, r.TABLE_NAME AS REF_TABLE, rcc.COLUMN_NAME AS REF_COLUMN
    FROM ALL_CONSTRAINTS c
    JOIN ALL_CONS_COLUMNS cc ON cc.OWNER = c.OWNER AND cc.CONSTRAINT_NAME = c.CONSTRAINT_NAME
    JOIN ALL_CONSTRAINTS r ON r.OWNER = c.R_OWNER AND r.CONSTRAINT_NAME = c.R_CONSTRAINT_NAME
    JOIN ALL_CONS_COLUMNS rcc
        ON rcc.OWNER = r.OWNER AND rcc.CONSTRAINT_NAME = r.CONSTRAINT_NAME AND rcc.POSITION = cc.POSITION
    WHERE c.CONSTRAINT_TYPE = 'R'
) fk ON fk.OWNER = t.OWNER AND fk.TABLE_NAME = t.TABLE_NAME AND fk.COLUMN_NAME = t.COLUMN_NAME
WHERE t.HIDDEN_COLUMN = 'NO'
ORDER BY o.OBJECT_ID, t.COLUMN_ID`
}

func (d *OracleDialect) ObjectIDQuery() string {
	return fmt.Sprintf(`SELECT OBJECT_ID FROM ALL_OBJECTS WHERE OWNER = %s AND OBJECT_NAME = %s AND OBJECT_TYPE = 'TABLE'`, params(d, 2)...)
}

func (d *OracleDialect) ColumnExistsQuery() string {
	return fmt.Sprintf(`SELECT COUNT(*) FROM ALL_TAB_COLS WHERE OWNER = %s AND TABLE_NAME = %s AND COLUMN_NAME = %s`, params(d, 3)...)
}

func (d *OracleDialect) IndexExistsQuery() string {
	return fmt.Sprintf(`SELECT COUNT(*) FROM ALL_INDEXES WHERE TABLE_OWNER = %s AND TABLE_NAME = %s AND INDEX_NAME = %s`, params(d, 3)...)
}

func (d *OracleDialect) PrimaryKeyQuery() string {
	return fmt.Sprintf(`SELECT c.CONSTRAINT_NAME, cc.COLUMN_NAME
		FROM ALL_CONSTRAINTS c
		JOIN ALL_CONS_COLUMNS cc ON cc.OWNER = c.OWNER AND cc.CONSTRAINT_NAME = c.CONSTRAINT_NAME
		WHERE c.CONSTRAINT_TYPE = 'P' AND c.OWNER = %s AND c.TABLE_NAME = %s
		ORDER BY cc.POSITION`, params(d, 2)...)
}

func (d *OracleDialect) ReferencingForeignKeysQuery() string {
	return fmt.Sprintf(`SELECT c.CONSTRAINT_NAME, c.OWNER, c.TABLE_NAME, cc.COLUMN_NAME, rcc.COLUMN_NAME
		FROM ALL_CONSTRAINTS c
		JOIN ALL_CONS_COLUMNS cc ON cc.OWNER = c.OWNER AND cc.CONSTRAINT_NAME = c.CONSTRAINT_NAME
		JOIN ALL_CONSTRAINTS r ON r.OWNER = c.R_OWNER AND r.CONSTRAINT_NAME = c.R_CONSTRAINT_NAME
		JOIN ALL_CONS_COLUMNS rcc
			ON rcc.OWNER = r.OWNER AND rcc.CONSTRAINT_NAME = r.CONSTRAINT_NAME AND rcc.POSITION = cc.POSITION
		WHERE c.CONSTRAINT_TYPE = 'R' AND r.OWNER = %s AND r.TABLE_NAME = %s
		ORDER BY c.CONSTRAINT_NAME`, params(d, 2)...)
}

func (d *OracleDialect) LimitRowQuery(query string, limit int) string {
	return fmt.Sprintf("SELECT * FROM (%s) WHERE ROWNUM <= %d", query, limit)
}

func (d *OracleDialect) TypeName(spec TypeSpec) (string, error) {
	switch spec.Kind {
	case model.KindBool:
		return "number(1)", nil
	case model.KindInt16:
		return "number(5)", nil
	case model.KindInt32, model.KindEnum:
		return "number(10)", nil
	case model.KindInt64:
		return "number(19)", nil
	case model.KindDecimal:
		return decimalType("number", spec.Precision, spec.Scale), nil
	case model.KindFloat32:
		return "binary_float", nil
	case model.KindFloat64:
		return "binary_double", nil
	case model.KindString:
		if spec.Length <= 0 {
			return "nclob", nil
		}
		return fmt.Sprintf("nvarchar2(%d)", spec.Length), nil
	case model.KindAnsiString:
		if spec.Length <= 0 {
			return "clob", nil
		}
		return fmt.Sprintf("varchar2(%d)", spec.Length), nil
	case model.KindDateTime:
		return "timestamp", nil
	case model.KindDate:
		return "date", nil
	case model.KindTime:
		return "interval day to second", nil
	case model.KindGUID:
		return "raw(16)", nil
	case model.KindBinary:
		if spec.Length <= 0 {
			return "blob", nil
		}
		return fmt.Sprintf("raw(%d)", spec.Length), nil
	}
	return "", unsupported(d, spec)
}

// NormalizeType drops the fractional second precision ALL_TAB_COLS appends
// to TIMESTAMP and INTERVAL types and re-attaches sizes the catalog reports
// in separate columns.
func (d *OracleDialect) NormalizeType(dataType string, maxLength, precision, scale int) string {
	t := strings.ToLower(strings.TrimSpace(dataType))
	if strings.HasPrefix(t, "timestamp") || strings.HasPrefix(t, "interval") {
		return fractionalPrecision.ReplaceAllString(t, "")
	}
	switch t {
	case "number":
		if precision <= 0 {
			return t
		}
		if scale <= 0 && precision < 38 {
			return fmt.Sprintf("number(%d)", precision)
		}
		return fmt.Sprintf("number(%d,%d)", precision, scale)
	case "varchar2", "nvarchar2", "char", "nchar", "raw":
		return fmt.Sprintf("%s(%d)", t, maxLength)
	default:
		return t
	}
}

func (d *OracleDialect) KeyTypes() map[model.KeyGeneration]string {
	return map[model.KeyGeneration]string{
		model.KeyIdentity:   "GENERATED BY DEFAULT AS IDENTITY",
		model.KeySequential: "DEFAULT SYS_GUID()",
	}
}

// CreateSchema creates a schema-only user that nobody can log in as.
func (d *OracleDialect) CreateSchema(schema string) string {
	return fmt.Sprintf("CREATE USER %s NO AUTHENTICATION", d.QuoteIdent(schema))
}

func (d *OracleDialect) CreateTable(t TableDef) string {
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

func (d *OracleDialect) DropTable(schema, table string) string {
	return fmt.Sprintf("DROP TABLE %s", d.QualifiedName(schema, table))
}

func (d *OracleDialect) AddColumn(schema, table string, c ColumnDef) string {
	return fmt.Sprintf("ALTER TABLE %s ADD (%s)", d.QualifiedName(schema, table), d.columnSQL(c))
}

// AlterColumn only restates what changed; Oracle rejects a MODIFY that sets
// a column NOT NULL when it already is.
func (d *OracleDialect) AlterColumn(schema, table string, from, to ColumnDef) string {
	parts := []string{d.QuoteIdent(to.Name)}
	if !strings.EqualFold(from.Type, to.Type) {
		parts = append(parts, to.Type)
	}
	if to.Collation != "" && !strings.EqualFold(from.Collation, to.Collation) {
		parts = append(parts, "COLLATE "+to.Collation)
	}
	if from.Nullable != to.Nullable || len(parts) == 1 {
		parts = append(parts, nullClause(to.Nullable))
	}
	return fmt.Sprintf("ALTER TABLE %s MODIFY (%s)", d.QualifiedName(schema, table), strings.Join(parts, " "))
}

func (d *OracleDialect) DropColumn(schema, table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", d.QualifiedName(schema, table), d.QuoteIdent(column))
}

func (d *OracleDialect) AddPrimaryKey(schema, table, name string, columns []string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY (%s)",
		d.QualifiedName(schema, table), d.QuoteIdent(name), quoteAll(columns, d.QuoteIdent))
}

func (d *OracleDialect) DropPrimaryKey(schema, table, name string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", d.QualifiedName(schema, table), d.QuoteIdent(name))
}

func (d *OracleDialect) AddForeignKey(fk ForeignKeyDef) string {
	sql := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		d.QualifiedName(fk.Schema, fk.Table), d.QuoteIdent(fk.Name), d.QuoteIdent(fk.Column),
		d.QualifiedName(fk.RefSchema, fk.RefTable), d.QuoteIdent(fk.RefColumn))
	if fk.CascadeDelete {
		sql += " ON DELETE CASCADE"
	}
	return sql
}

func (d *OracleDialect) DropForeignKey(schema, table, name string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", d.QualifiedName(schema, table), d.QuoteIdent(name))
}

func (d *OracleDialect) CreateIndex(idx IndexDef) string {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)", unique, d.QualifiedName(idx.Schema, idx.Name),
		d.QualifiedName(idx.Schema, idx.Table), quoteAll(idx.Columns, d.QuoteIdent))
}

func (d *OracleDialect) DropIndex(schema, table, name string) string {
	return fmt.Sprintf("DROP INDEX %s", d.QualifiedName(schema, name))
}

func (d *OracleDialect) Update(schema, table, column, expression string) string {
	return fmt.Sprintf("UPDATE %s SET %s = %s", d.QualifiedName(schema, table), d.QuoteIdent(column), expression)
}

func (d *OracleDialect) Insert(schema, table string, columns, values []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.QualifiedName(schema, table),
		quoteAll(columns, d.QuoteIdent), strings.Join(values, ", "))
}

func (d *OracleDialect) columnSQL(c ColumnDef) string {
	parts := []string{d.QuoteIdent(c.Name), c.Type}
	if c.Computed != "" {
		return strings.Join(append(parts, fmt.Sprintf("GENERATED ALWAYS AS (%s) VIRTUAL", c.Computed)), " ")
	}
	if c.Collation != "" {
		parts = append(parts, "COLLATE "+c.Collation)
	}
	if c.KeyFragment != "" {
		parts = append(parts, c.KeyFragment)
	} else if c.Default != "" {
		parts = append(parts, "DEFAULT "+c.Default)
	}
	parts = append(parts, nullClause(c.Nullable))
	return strings.Join(parts, " ")
}
