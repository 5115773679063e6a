package dialect_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-merge/internal/dialect"
	"db-merge/internal/model"
)

func TestGet_Aliases(t *testing.T) {
	cases := map[string]string{
		"sqlserver":  "sqlserver",
		"MSSQL":      "sqlserver",
		"postgres":   "postgres",
		"postgresql": "postgres",
		"mysql":      "mysql",
		"oracle":     "oracle",
	}
	for driver, want := range cases {
		d, err := dialect.Get(driver)
		require.NoError(t, err, driver)
		assert.Equal(t, want, d.Name())
	}

	_, err := dialect.Get("sqlite")
	assert.Error(t, err)
}

func TestBuiltinDialectsAreComplete(t *testing.T) {
	for _, d := range []dialect.Dialect{
		&dialect.MSSQLDialect{}, &dialect.PostgresDialect{}, &dialect.MysqlDialect{}, &dialect.OracleDialect{},
	} {
		assert.NoError(t, dialect.Check(d), d.Name())
	}
	assert.Contains(t, dialect.Names(), "mssql")
}

type partialDialect struct {
	*dialect.MysqlDialect
}

func (partialDialect) Name() string { return "partial" }

func (partialDialect) TypeName(spec dialect.TypeSpec) (string, error) {
	if spec.Kind == model.KindGUID {
		return "", assert.AnError
	}
	return "int", nil
}

func (partialDialect) KeyTypes() map[model.KeyGeneration]string {
	return map[model.KeyGeneration]string{model.KeyIdentity: "AUTO_INCREMENT"}
}

func TestRegister_RejectsIncompleteDialect(t *testing.T) {
	err := dialect.Register(partialDialect{&dialect.MysqlDialect{}}, "partial-alias")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type guid")
	assert.Contains(t, err.Error(), "key generation sequential")

	_, err = dialect.Get("partial-alias")
	assert.Error(t, err)
}

// A type rendered from the model must read back identically from the
// catalog, otherwise every compare reports a spurious alter.
func TestNormalizeType_RoundTripsTypeName(t *testing.T) {
	type catalogType struct {
		dataType                  string
		maxLength, precision, scl int
	}
	cases := []struct {
		d    dialect.Dialect
		spec dialect.TypeSpec
		live catalogType
	}{
		{&dialect.MSSQLDialect{}, dialect.TypeSpec{Kind: model.KindString, Length: 100}, catalogType{"nvarchar", 100, 0, 0}},
		{&dialect.MSSQLDialect{}, dialect.TypeSpec{Kind: model.KindString}, catalogType{"nvarchar", -1, 0, 0}},
		{&dialect.MSSQLDialect{}, dialect.TypeSpec{Kind: model.KindDecimal, Precision: 10, Scale: 4}, catalogType{"decimal", 0, 10, 4}},
		{&dialect.MSSQLDialect{}, dialect.TypeSpec{Kind: model.KindGUID}, catalogType{"uniqueidentifier", 0, 0, 0}},
		{&dialect.PostgresDialect{}, dialect.TypeSpec{Kind: model.KindInt32}, catalogType{"int4", 0, 32, 0}},
		{&dialect.PostgresDialect{}, dialect.TypeSpec{Kind: model.KindString, Length: 50}, catalogType{"varchar", 50, 0, 0}},
		{&dialect.PostgresDialect{}, dialect.TypeSpec{Kind: model.KindFloat64}, catalogType{"float8", 0, 53, 0}},
		{&dialect.MysqlDialect{}, dialect.TypeSpec{Kind: model.KindInt32}, catalogType{"int(11)", 0, 10, 0}},
		{&dialect.MysqlDialect{}, dialect.TypeSpec{Kind: model.KindBool}, catalogType{"tinyint(1)", 0, 3, 0}},
		{&dialect.MysqlDialect{}, dialect.TypeSpec{Kind: model.KindString, Length: 20}, catalogType{"varchar(20)", 20, 0, 0}},
		{&dialect.OracleDialect{}, dialect.TypeSpec{Kind: model.KindDateTime}, catalogType{"TIMESTAMP(6)", 0, 0, 6}},
		{&dialect.OracleDialect{}, dialect.TypeSpec{Kind: model.KindInt64}, catalogType{"NUMBER", 0, 19, 0}},
		{&dialect.OracleDialect{}, dialect.TypeSpec{Kind: model.KindDecimal}, catalogType{"NUMBER", 0, 18, 2}},
		{&dialect.OracleDialect{}, dialect.TypeSpec{Kind: model.KindString, Length: 40}, catalogType{"NVARCHAR2", 40, 0, 0}},
	}

	for _, tc := range cases {
		want, err := tc.d.TypeName(tc.spec)
		require.NoError(t, err)
		got := tc.d.NormalizeType(tc.live.dataType, tc.live.maxLength, tc.live.precision, tc.live.scl)
		assert.Equal(t, want, got, "%s %s", tc.d.Name(), tc.spec.Kind)
	}
}

func TestMSSQL_Widening(t *testing.T) {
	d := &dialect.MSSQLDialect{}
	from := d.NormalizeType("nvarchar", 50, 0, 0)
	to, err := d.TypeName(dialect.TypeSpec{Kind: model.KindString, Length: 100})
	require.NoError(t, err)
	assert.NotEqual(t, from, to)

	sql := d.AlterColumn("dbo", "Customer", dialect.ColumnDef{Name: "Name", Type: from},
		dialect.ColumnDef{Name: "Name", Type: to})
	assert.Equal(t, "ALTER TABLE [dbo].[Customer] ALTER COLUMN [Name] nvarchar(100) NOT NULL", sql)
}

func TestMSSQL_CreateTable(t *testing.T) {
	d := &dialect.MSSQLDialect{}
	sql := d.CreateTable(dialect.TableDef{
		Schema: "dbo",
		Name:   "Region",
		Columns: []dialect.ColumnDef{
			{Name: "Id", Type: "int", KeyFragment: "IDENTITY(1,1)"},
			{Name: "Name", Type: "nvarchar(50)", Nullable: true},
			{Name: "Active", Type: "bit", Default: "1"},
		},
		PrimaryKeyName: "PK_dbo_Region",
		PrimaryKey:     []string{"Id"},
	})

	want := "CREATE TABLE [dbo].[Region] (\n" +
		"    [Id] int IDENTITY(1,1) NOT NULL,\n" +
		"    [Name] nvarchar(50) NULL,\n" +
		"    [Active] bit NOT NULL CONSTRAINT [DF_dbo_Region_Active] DEFAULT 1,\n" +
		"    CONSTRAINT [PK_dbo_Region] PRIMARY KEY ([Id])\n" +
		")"
	assert.Equal(t, want, sql)
}

func TestMSSQL_ForeignKeyAndIndex(t *testing.T) {
	d := &dialect.MSSQLDialect{}
	name := dialect.ForeignKeyName("dbo", "Customer", "RegionId")
	assert.Equal(t, "FK_dbo_Customer_RegionId", name)

	fk := d.AddForeignKey(dialect.ForeignKeyDef{
		Name: name, Schema: "dbo", Table: "Customer", Column: "RegionId",
		RefSchema: "dbo", RefTable: "Region", RefColumn: "Id", CascadeDelete: true,
	})
	assert.Equal(t, "ALTER TABLE [dbo].[Customer] ADD CONSTRAINT [FK_dbo_Customer_RegionId] FOREIGN KEY ([RegionId]) REFERENCES [dbo].[Region] ([Id]) ON DELETE CASCADE", fk)

	idx := d.CreateIndex(dialect.IndexDef{
		Name: dialect.IndexName("dbo", "Customer", "RegionId"), Schema: "dbo", Table: "Customer", Columns: []string{"RegionId"},
	})
	assert.Equal(t, "CREATE NONCLUSTERED INDEX [IX_dbo_Customer_RegionId] ON [dbo].[Customer] ([RegionId])", idx)
}

func TestMSSQL_DropColumnRemovesDefaultConstraint(t *testing.T) {
	sql := (&dialect.MSSQLDialect{}).DropColumn("dbo", "Customer", "Legacy")
	assert.Contains(t, sql, "sys.default_constraints")
	assert.True(t, strings.HasSuffix(sql, "ALTER TABLE [dbo].[Customer] DROP COLUMN [Legacy]"))
}

func TestMSSQL_DefaultConstraints(t *testing.T) {
	var d dialect.Dialect = &dialect.MSSQLDialect{}
	dc, ok := d.(dialect.DefaultConstraints)
	require.True(t, ok)

	drop := dc.DropDefault("dbo", "Customer", "Status")
	assert.Contains(t, drop, "OBJECT_ID(N'[dbo].[Customer]') AND c.name = N'Status'")
	assert.True(t, strings.HasSuffix(drop, "N']')"))

	assert.Equal(t, "ALTER TABLE [dbo].[Customer] ADD CONSTRAINT [DF_dbo_Customer_Status] DEFAULT 0 FOR [Status]",
		dc.AddDefault("dbo", "Customer", dialect.ColumnDef{Name: "Status", Type: "int", Default: "0"}))

	_, ok = dialect.Dialect(&dialect.PostgresDialect{}).(dialect.DefaultConstraints)
	assert.False(t, ok, "postgres defaults are plain column properties")
}

func TestPostgres_AlterColumnOnlyChangedClauses(t *testing.T) {
	d := &dialect.PostgresDialect{}

	sql := d.AlterColumn("public", "customer", dialect.ColumnDef{Name: "name", Type: "varchar(50)"},
		dialect.ColumnDef{Name: "name", Type: "varchar(100)"})
	assert.Equal(t, `ALTER TABLE "public"."customer" ALTER COLUMN "name" TYPE varchar(100)`, sql)

	sql = d.AlterColumn("public", "customer", dialect.ColumnDef{Name: "name", Type: "text", Nullable: true},
		dialect.ColumnDef{Name: "name", Type: "text"})
	assert.Equal(t, `ALTER TABLE "public"."customer" ALTER COLUMN "name" SET NOT NULL`, sql)
}

func TestMysql_Rendering(t *testing.T) {
	d := &dialect.MysqlDialect{}
	assert.Equal(t, "?", d.Placeholder(3))
	assert.Equal(t, "ALTER TABLE `shop`.`orders` DROP PRIMARY KEY", d.DropPrimaryKey("shop", "orders", "PRIMARY"))
	assert.Equal(t, "ALTER TABLE `shop`.`orders` DROP FOREIGN KEY `FK_shop_orders_customer`",
		d.DropForeignKey("shop", "orders", "FK_shop_orders_customer"))
	assert.Equal(t, "ALTER TABLE `shop`.`orders` MODIFY COLUMN `note` varchar(200) NULL",
		d.AlterColumn("shop", "orders", dialect.ColumnDef{Name: "note", Type: "varchar(100)", Nullable: true},
			dialect.ColumnDef{Name: "note", Type: "varchar(200)", Nullable: true}))
	assert.Equal(t, "SELECT 1 LIMIT 5", d.LimitRowQuery("SELECT 1", 5))
}

func TestOracle_Rendering(t *testing.T) {
	d := &dialect.OracleDialect{}
	assert.Equal(t, ":2", d.Placeholder(1))
	assert.Equal(t, `CREATE USER "SALES" NO AUTHENTICATION`, d.CreateSchema("SALES"))
	assert.Equal(t, `ALTER TABLE "SALES"."ORDERS" ADD ("NOTE" nvarchar2(100) NULL)`,
		d.AddColumn("SALES", "ORDERS", dialect.ColumnDef{Name: "NOTE", Type: "nvarchar2(100)", Nullable: true}))
	assert.Equal(t, `ALTER TABLE "SALES"."ORDERS" MODIFY ("NOTE" NOT NULL)`,
		d.AlterColumn("SALES", "ORDERS", dialect.ColumnDef{Name: "NOTE", Type: "nvarchar2(100)", Nullable: true},
			dialect.ColumnDef{Name: "NOTE", Type: "nvarchar2(100)"}))
	assert.Equal(t, "SELECT * FROM (SELECT 1 FROM DUAL) WHERE ROWNUM <= 1", d.LimitRowQuery("SELECT 1 FROM DUAL", 1))
}

func TestCatalogQueries_BindWithDialectPlaceholders(t *testing.T) {
	assert.Equal(t,
		`SELECT COUNT(*) FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2 AND COLUMN_NAME = @p3`,
		(&dialect.MSSQLDialect{}).ColumnExistsQuery())
	assert.Equal(t,
		`SELECT COUNT(*) FROM pg_catalog.pg_indexes WHERE schemaname = $1 AND tablename = $2 AND indexname = $3`,
		(&dialect.PostgresDialect{}).IndexExistsQuery())
	assert.Equal(t,
		`SELECT OBJECT_ID FROM ALL_OBJECTS WHERE OWNER = :1 AND OBJECT_NAME = :2 AND OBJECT_TYPE = 'TABLE'`,
		(&dialect.OracleDialect{}).ObjectIDQuery())
	assert.Equal(t,
		"SELECT TABLE_ID FROM information_schema.INNODB_TABLES WHERE NAME = CONCAT(?, '/', ?)",
		(&dialect.MysqlDialect{}).ObjectIDQuery())

	for _, name := range dialect.Names() {
		d, err := dialect.Get(name)
		require.NoError(t, err)
		for _, q := range []string{d.ObjectIDQuery(), d.PrimaryKeyQuery(), d.ReferencingForeignKeysQuery()} {
			assert.NotContains(t, q, "%!", name)
			assert.Contains(t, q, d.Placeholder(1), name)
		}
	}
}
