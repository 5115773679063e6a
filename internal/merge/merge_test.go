package merge_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-merge/internal/dialect"
	"db-merge/internal/errs"
	"db-merge/internal/merge"
	"db-merge/internal/model"
	"db-merge/internal/schema"
	"db-merge/internal/schema/schematest"
)

var ctx = context.Background()

func col(name, dataType string, nullable bool) *schema.ColumnInfo {
	return &schema.ColumnInfo{Schema: "dbo", Name: name, DataType: dataType, IsNullable: nullable}
}

func commands(t *testing.T, a merge.Action, src schema.Source) []string {
	t.Helper()
	stmts, err := a.SQLCommands(ctx, src)
	require.NoError(t, err)
	return stmts
}

func dropDefault(schema, table, column string) string {
	return (&dialect.MSSQLDialect{}).DropDefault(schema, table, column)
}

func validation(t *testing.T, a merge.Action, src schema.Source) []string {
	t.Helper()
	msgs, err := a.ValidationErrors(ctx, src)
	require.NoError(t, err)
	return msgs
}

func TestAddColumn_SafetyGate(t *testing.T) {
	src := schematest.New(&dialect.MSSQLDialect{}, "dbo")
	tbl := src.AddTable("dbo", "Customer", col("Id", "int", false))

	c := &schema.ColumnInfo{Schema: "dbo", Table: "Customer", Name: "Code", DataType: "varchar(10)"}
	a := &merge.AddColumn{Table: tbl, Column: c}

	assert.Empty(t, validation(t, a, src), "empty table")

	src.SetRows("dbo", "Customer", 3)
	msgs := validation(t, a, src)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "dbo.Customer.Code")

	c.Default, c.DefaultConstant = "''", true
	assert.Empty(t, validation(t, a, src), "a default fills existing rows")

	assert.Equal(t, []string{
		"ALTER TABLE [dbo].[Customer] ADD [Code] varchar(10) NOT NULL CONSTRAINT [DF_dbo_Customer_Code] DEFAULT ''",
	}, commands(t, a, src))
}

func TestAddColumn_ExpressionDefaultIsBackfilled(t *testing.T) {
	src := schematest.New(&dialect.PostgresDialect{}, "public")
	tbl := src.AddTable("public", "customer", col("id", "integer", false))
	src.SetRows("public", "customer", 10)

	c := &schema.ColumnInfo{Schema: "public", Table: "customer", Name: "created", DataType: "timestamp", Default: "now()"}
	a := &merge.AddColumn{Table: tbl, Column: c}

	assert.Empty(t, validation(t, a, src))
	assert.Equal(t, []string{
		`ALTER TABLE "public"."customer" ADD COLUMN "created" timestamp NULL DEFAULT now()`,
		`UPDATE "public"."customer" SET "created" = now()`,
		`ALTER TABLE "public"."customer" ALTER COLUMN "created" SET NOT NULL`,
	}, commands(t, a, src))
}

func TestAlterColumn_Simple(t *testing.T) {
	src := schematest.New(&dialect.MSSQLDialect{}, "dbo")
	live := col("Name", "nvarchar(50)", true)
	tbl := src.AddTable("dbo", "Customer", col("Id", "int", false), live)
	src.SetPrimaryKey("dbo", "Customer", "PK_dbo_Customer", "Id")

	want := &schema.ColumnInfo{Schema: "dbo", Table: "Customer", Name: "Name", DataType: "nvarchar(100)", IsNullable: true}
	a := &merge.AlterColumn{Table: tbl, Column: want, From: live}

	assert.Equal(t, []string{
		dropDefault("dbo", "Customer", "Name"),
		"ALTER TABLE [dbo].[Customer] ALTER COLUMN [Name] nvarchar(100) NULL",
	}, commands(t, a, src))
	assert.Equal(t, "Alter column dbo.Customer.Name (nvarchar(50) NULL -> nvarchar(100) NULL)", a.Description())
}

func TestAlterColumn_KeyColumn(t *testing.T) {
	src := schematest.New(&dialect.MSSQLDialect{}, "dbo")
	live := col("Code", "varchar(5)", false)
	tbl := src.AddTable("dbo", "Country", live)
	src.SetPrimaryKey("dbo", "Country", "PK_Country", "Code")
	src.AddTable("dbo", "City",
		col("Id", "int", false),
		&schema.ColumnInfo{Name: "CountryCode", DataType: "varchar(5)", ForeignKey: &schema.ForeignKeyInfo{
			Name: "FK_City_Country", RefSchema: "dbo", RefTable: "Country", RefColumn: "Code",
		}})

	want := &schema.ColumnInfo{Schema: "dbo", Table: "Country", Name: "Code", DataType: "varchar(10)", IsKey: true}
	a := &merge.AlterColumn{Table: tbl, Column: want, From: live}

	assert.Equal(t, []string{
		"ALTER TABLE [dbo].[City] DROP CONSTRAINT [FK_City_Country]",
		"ALTER TABLE [dbo].[Country] DROP CONSTRAINT [PK_Country]",
		dropDefault("dbo", "Country", "Code"),
		"ALTER TABLE [dbo].[Country] ALTER COLUMN [Code] varchar(10) NOT NULL",
		"ALTER TABLE [dbo].[Country] ADD CONSTRAINT [PK_Country] PRIMARY KEY ([Code])",
		"ALTER TABLE [dbo].[City] ADD CONSTRAINT [FK_City_Country] FOREIGN KEY ([CountryCode]) REFERENCES [dbo].[Country] ([Code])",
	}, commands(t, a, src))
}

func TestAlterColumn_OwnForeignKeyAndIndex(t *testing.T) {
	src := schematest.New(&dialect.MSSQLDialect{}, "dbo")
	src.AddTable("dbo", "Region", col("Id", "int", false))
	live := &schema.ColumnInfo{Name: "RegionId", DataType: "int", IsNullable: true, ForeignKey: &schema.ForeignKeyInfo{
		RefSchema: "dbo", RefTable: "Region", RefColumn: "Id",
	}}
	tbl := src.AddTable("dbo", "Customer", col("Id", "int", false), live)
	src.SetPrimaryKey("dbo", "Customer", "PK_dbo_Customer", "Id")
	src.AddIndex("dbo", "Customer", "IX_dbo_Customer_RegionId")

	want := &schema.ColumnInfo{Schema: "dbo", Table: "Customer", Name: "RegionId", DataType: "int",
		ForeignKey: &schema.ForeignKeyInfo{RefSchema: "dbo", RefTable: "Region", RefColumn: "Id", CascadeDelete: true}}
	a := &merge.AlterColumn{Table: tbl, Column: want, From: live}

	assert.Equal(t, []string{
		"ALTER TABLE [dbo].[Customer] DROP CONSTRAINT [FK_dbo_Customer_RegionId]",
		"DROP INDEX [IX_dbo_Customer_RegionId] ON [dbo].[Customer]",
		dropDefault("dbo", "Customer", "RegionId"),
		"ALTER TABLE [dbo].[Customer] ALTER COLUMN [RegionId] int NOT NULL",
		"CREATE NONCLUSTERED INDEX [IX_dbo_Customer_RegionId] ON [dbo].[Customer] ([RegionId])",
		"ALTER TABLE [dbo].[Customer] ADD CONSTRAINT [FK_dbo_Customer_RegionId] FOREIGN KEY ([RegionId]) REFERENCES [dbo].[Region] ([Id]) ON DELETE CASCADE",
	}, commands(t, a, src))
}

func TestAlterColumn_RemovedForeignKeyIsNotRestored(t *testing.T) {
	src := schematest.New(&dialect.MSSQLDialect{}, "dbo")
	src.AddTable("dbo", "Region", col("Id", "int", false))
	src.AddTable("dbo", "Area", col("Id", "int", false))
	live := &schema.ColumnInfo{Name: "RegionId", DataType: "smallint", IsNullable: true, ForeignKey: &schema.ForeignKeyInfo{
		RefSchema: "dbo", RefTable: "Region", RefColumn: "Id",
	}}
	tbl := src.AddTable("dbo", "Customer", col("Id", "int", false), live)
	src.SetPrimaryKey("dbo", "Customer", "PK_dbo_Customer", "Id")
	src.AddIndex("dbo", "Customer", "IX_dbo_Customer_RegionId")

	dropped := []string{
		"ALTER TABLE [dbo].[Customer] DROP CONSTRAINT [FK_dbo_Customer_RegionId]",
		"DROP INDEX [IX_dbo_Customer_RegionId] ON [dbo].[Customer]",
		dropDefault("dbo", "Customer", "RegionId"),
		"ALTER TABLE [dbo].[Customer] ALTER COLUMN [RegionId] int NULL",
	}

	want := &schema.ColumnInfo{Schema: "dbo", Table: "Customer", Name: "RegionId", DataType: "int", IsNullable: true}
	a := &merge.AlterColumn{Table: tbl, Column: want, From: live}
	assert.Equal(t, dropped, commands(t, a, src), "key removed from the model")

	want.ForeignKey = &schema.ForeignKeyInfo{RefSchema: "dbo", RefTable: "Area", RefColumn: "Id"}
	assert.Equal(t, dropped, commands(t, a, src), "a retargeted key is added separately")
}

func TestAlterColumn_RebindsDefaultConstraint(t *testing.T) {
	src := schematest.New(&dialect.MSSQLDialect{}, "dbo")
	live := &schema.ColumnInfo{Name: "Status", DataType: "tinyint", Default: "0", DefaultConstant: true}
	tbl := src.AddTable("dbo", "Customer", col("Id", "int", false), live)
	src.SetPrimaryKey("dbo", "Customer", "PK_dbo_Customer", "Id")
	src.SetRows("dbo", "Customer", 5)

	want := &schema.ColumnInfo{Schema: "dbo", Table: "Customer", Name: "Status", DataType: "int", Default: "1", DefaultConstant: true}
	a := &merge.AlterColumn{Table: tbl, Column: want, From: live}

	assert.Equal(t, []string{
		dropDefault("dbo", "Customer", "Status"),
		"ALTER TABLE [dbo].[Customer] ALTER COLUMN [Status] int NOT NULL",
		"ALTER TABLE [dbo].[Customer] ADD CONSTRAINT [DF_dbo_Customer_Status] DEFAULT 1 FOR [Status]",
	}, commands(t, a, src))

	pg := schematest.New(&dialect.PostgresDialect{}, "public")
	plive := &schema.ColumnInfo{Name: "status", DataType: "smallint"}
	ptbl := pg.AddTable("public", "customer", col("id", "integer", false), plive)
	pwant := &schema.ColumnInfo{Schema: "public", Table: "customer", Name: "status", DataType: "integer"}
	pa := &merge.AlterColumn{Table: ptbl, Column: pwant, From: plive}
	assert.Equal(t, []string{`ALTER TABLE "public"."customer" ALTER COLUMN "status" TYPE integer`}, commands(t, pa, pg))
}

func TestAlterColumn_ComputedIsDroppedAndAdded(t *testing.T) {
	src := schematest.New(&dialect.PostgresDialect{}, "public")
	live := &schema.ColumnInfo{Name: "total", DataType: "numeric(18,2)", IsNullable: true}
	tbl := src.AddTable("public", "invoice", col("id", "integer", false), live)

	want := &schema.ColumnInfo{Schema: "public", Table: "invoice", Name: "total", DataType: "numeric(18,2)",
		IsNullable: true, IsCalculated: true, Computed: "net + tax", Persisted: true}
	a := &merge.AlterColumn{Table: tbl, Column: want, From: live}

	assert.Equal(t, []string{
		`ALTER TABLE "public"."invoice" DROP COLUMN "total"`,
		`ALTER TABLE "public"."invoice" ADD COLUMN "total" numeric(18,2) GENERATED ALWAYS AS (net + tax) STORED`,
	}, commands(t, a, src))
}

func TestDropColumn_KeyAware(t *testing.T) {
	src := schematest.New(&dialect.MSSQLDialect{}, "dbo")
	tenant := col("TenantId", "int", false)
	tbl := src.AddTable("dbo", "Account", tenant, col("Number", "int", false))
	src.SetPrimaryKey("dbo", "Account", "PK_Account", "TenantId", "Number")
	src.AddTable("dbo", "Payment",
		col("Id", "int", false),
		&schema.ColumnInfo{Name: "AccountNumber", DataType: "int", ForeignKey: &schema.ForeignKeyInfo{
			Name: "FK_Payment_Account", RefSchema: "dbo", RefTable: "Account", RefColumn: "Number",
		}})

	a := &merge.DropColumn{Table: tbl, Column: tenant}

	stmts := commands(t, a, src)
	require.Len(t, stmts, 4)
	assert.Equal(t, "ALTER TABLE [dbo].[Payment] DROP CONSTRAINT [FK_Payment_Account]", stmts[0])
	assert.Equal(t, "ALTER TABLE [dbo].[Account] DROP CONSTRAINT [PK_Account]", stmts[1])
	assert.Contains(t, stmts[2], "ALTER TABLE [dbo].[Account] DROP COLUMN [TenantId]")
	assert.Equal(t, "ALTER TABLE [dbo].[Account] ADD CONSTRAINT [PK_Account] PRIMARY KEY ([Number])", stmts[3])
}

func TestDropColumn_OwnForeignKey(t *testing.T) {
	src := schematest.New(&dialect.MysqlDialect{}, "shop")
	src.AddTable("shop", "region", col("id", "int", false))
	live := &schema.ColumnInfo{Name: "region_id", DataType: "int", ForeignKey: &schema.ForeignKeyInfo{
		Name: "fk_customer_region", RefSchema: "shop", RefTable: "region", RefColumn: "id",
	}}
	tbl := src.AddTable("shop", "customer", col("id", "int", false), live)
	src.SetPrimaryKey("shop", "customer", "PRIMARY", "id")
	src.AddIndex("shop", "customer", "IX_shop_customer_region_id")

	assert.Equal(t, []string{
		"ALTER TABLE `shop`.`customer` DROP FOREIGN KEY `fk_customer_region`",
		"DROP INDEX `IX_shop_customer_region_id` ON `shop`.`customer`",
		"ALTER TABLE `shop`.`customer` DROP COLUMN `region_id`",
	}, commands(t, &merge.DropColumn{Table: tbl, Column: live}, src))
}

func TestDropTable(t *testing.T) {
	src := schematest.New(&dialect.MSSQLDialect{}, "dbo")
	tbl := src.AddTable("dbo", "Region", col("Id", "int", false))
	src.AddTable("dbo", "Customer", &schema.ColumnInfo{Name: "RegionId", DataType: "int", ForeignKey: &schema.ForeignKeyInfo{
		Name: "FK_Customer_Region", RefSchema: "dbo", RefTable: "Region", RefColumn: "Id",
	}})

	a := &merge.DropTable{Table: tbl}
	assert.Empty(t, validation(t, a, src))
	assert.Equal(t, []string{
		"ALTER TABLE [dbo].[Customer] DROP CONSTRAINT [FK_Customer_Region]",
		"DROP TABLE [dbo].[Region]",
	}, commands(t, a, src))

	src.SetRows("dbo", "Region", 1)
	assert.Len(t, validation(t, a, src), 1)

	unresolved := &merge.DropTable{Table: &schema.TableInfo{Schema: "dbo", Name: "Ghost"}}
	_, err := unresolved.SQLCommands(ctx, src)
	assert.True(t, errs.IsConfiguration(err))
	_, err = unresolved.ValidationErrors(ctx, src)
	assert.True(t, errs.IsConfiguration(err))
}

func TestCreateTable_New(t *testing.T) {
	src := schematest.New(&dialect.PostgresDialect{}, "public")
	tbl := &schema.TableInfo{Schema: "public", Name: "region", Droppable: true}
	cols := []*schema.ColumnInfo{
		{Name: "id", DataType: "integer", IsKey: true, KeyGeneration: model.KeyIdentity},
		{Name: "name", DataType: "varchar(50)"},
	}
	a := &merge.CreateTable{Table: tbl, Columns: cols, Indexes: []dialect.IndexDef{{
		Name: "UK_public_region_name", Schema: "public", Table: "region", Columns: []string{"name"}, Unique: true,
	}}}

	assert.Empty(t, validation(t, a, src))
	assert.Equal(t, []string{
		"CREATE TABLE \"public\".\"region\" (\n" +
			"    \"id\" integer GENERATED BY DEFAULT AS IDENTITY NOT NULL,\n" +
			"    \"name\" varchar(50) NOT NULL,\n" +
			"    CONSTRAINT \"PK_public_region\" PRIMARY KEY (\"id\")\n" +
			")",
		`CREATE UNIQUE INDEX "UK_public_region_name" ON "public"."region" ("name")`,
	}, commands(t, a, src))
	assert.Equal(t, "Create table public.region", a.Description())
}

func TestCreateTable_Rebuild(t *testing.T) {
	src := schematest.New(&dialect.MSSQLDialect{}, "dbo")
	tbl := src.AddTable("dbo", "Region", col("Id", "int", false), col("Name", "nvarchar(50)", true))
	src.AddTable("dbo", "Customer", &schema.ColumnInfo{Name: "RegionId", DataType: "int", ForeignKey: &schema.ForeignKeyInfo{
		Name: "FK_Customer_Region", RefSchema: "dbo", RefTable: "Region", RefColumn: "Id",
	}})

	a := &merge.CreateTable{
		Table:    tbl,
		Columns:  []*schema.ColumnInfo{{Name: "Id", DataType: "int", IsKey: true}, {Name: "Name", DataType: "nvarchar(80)", IsNullable: true}},
		Rebuild:  true,
		Modified: []string{"Name"},
	}
	assert.Equal(t, "Rebuild table dbo.Region (modified: Name)", a.Description())
	assert.Empty(t, validation(t, a, src))

	stmts := commands(t, a, src)
	require.Len(t, stmts, 3)
	assert.Equal(t, "ALTER TABLE [dbo].[Customer] DROP CONSTRAINT [FK_Customer_Region]", stmts[0])
	assert.Equal(t, "DROP TABLE [dbo].[Region]", stmts[1])
	assert.Contains(t, stmts[2], "CREATE TABLE [dbo].[Region]")

	src.SetRows("dbo", "Region", 2)
	assert.Len(t, validation(t, a, src), 1, "rebuild of a table with rows is blocked")
}

func TestCreateEnumTable(t *testing.T) {
	d := &dialect.MSSQLDialect{}
	set := &model.Set{
		Enums: []*model.Enum{{Name: "Status", KeyGeneration: model.KeyPinned, Members: []model.EnumMember{
			{Name: "A", Value: 0}, {Name: "B", Value: 1}, {Name: "C", Value: 2},
		}}},
		Models: []*model.Model{{Name: "Ticket", Properties: []*model.Property{
			{Name: "Id", Kind: model.KindInt32},
			{Name: "Status", Kind: model.KindEnum, Enum: "Status"},
		}}},
	}
	cat, err := schema.ReadModels(d, set, "dbo")
	require.NoError(t, err)
	a := &merge.CreateEnumTable{Enum: cat.Enums[0]}

	src := schematest.New(d, "dbo")
	stmts := commands(t, a, src)
	require.Len(t, stmts, 4)
	assert.Contains(t, stmts[0], "CREATE TABLE [dbo].[Status]")
	assert.Equal(t, "INSERT INTO [dbo].[Status] ([Id], [Name]) VALUES (0, N'A')", stmts[1])
	assert.Equal(t, "INSERT INTO [dbo].[Status] ([Id], [Name]) VALUES (2, N'C')", stmts[3])

	// Existing table, renumbered B, missing C: only C is inserted.
	src.Mirror(&schema.Catalog{Enums: cat.Enums, Columns: map[string][]*schema.ColumnInfo{}})
	src.SetEnumRows("dbo", "Status", "a", "B")
	assert.Equal(t, []string{"INSERT INTO [dbo].[Status] ([Id], [Name]) VALUES (2, N'C')"}, commands(t, a, src))
	assert.Equal(t, []string{"C"}, merge.MissingMembers(cat.Enums[0], []string{"a", "B"}))
}

func TestCreateEnumTable_Identity(t *testing.T) {
	d := &dialect.PostgresDialect{}
	info := &schema.EnumInfo{
		Table: &schema.TableInfo{Schema: "public", Name: "color"},
		Enum:  &model.Enum{Name: "Color", KeyGeneration: model.KeyIdentity, Members: []model.EnumMember{{Name: "Red"}, {Name: "Blue"}}},
		Columns: []*schema.ColumnInfo{
			{Name: "Id", DataType: "integer", IsKey: true, KeyGeneration: model.KeyIdentity},
			{Name: "Name", DataType: "varchar(100)"},
		},
	}
	src := schematest.New(d, "public")
	stmts := commands(t, &merge.CreateEnumTable{Enum: info}, src)
	require.Len(t, stmts, 3)
	assert.Equal(t, `INSERT INTO "public"."color" ("Name") VALUES ('Red')`, stmts[1])
	assert.Equal(t, `INSERT INTO "public"."color" ("Name") VALUES ('Blue')`, stmts[2])
}

func TestForeignKeyActions(t *testing.T) {
	d := &dialect.MSSQLDialect{}
	src := schematest.New(d, "dbo")
	fk := &schema.ForeignKeyInfo{
		Name: dialect.ForeignKeyName("dbo", "Customer", "RegionId"), Schema: "dbo", Table: "Customer", Column: "RegionId",
		RefSchema: "dbo", RefTable: "Region", RefColumn: "Id", CreateIndex: true,
	}

	add := &merge.AddForeignKey{ForeignKey: fk}
	assert.Equal(t, []string{
		"ALTER TABLE [dbo].[Customer] ADD CONSTRAINT [FK_dbo_Customer_RegionId] FOREIGN KEY ([RegionId]) REFERENCES [dbo].[Region] ([Id])",
		"CREATE NONCLUSTERED INDEX [IX_dbo_Customer_RegionId] ON [dbo].[Customer] ([RegionId])",
	}, commands(t, add, src))

	src.AddIndex("dbo", "Customer", "IX_dbo_Customer_RegionId")
	assert.Len(t, commands(t, add, src), 1, "existing index is reused")

	drop := &merge.DropForeignKey{ForeignKey: fk}
	assert.Equal(t, []string{
		"ALTER TABLE [dbo].[Customer] DROP CONSTRAINT [FK_dbo_Customer_RegionId]",
		"DROP INDEX [IX_dbo_Customer_RegionId] ON [dbo].[Customer]",
	}, commands(t, drop, src))

	assert.Equal(t, merge.ObjectForeignKey, drop.ObjectType())
	assert.Equal(t, merge.ActionDrop, drop.ActionType())
	assert.Equal(t, "dbo.customer.regionid", drop.Target())
}

func TestCreateSchema(t *testing.T) {
	src := schematest.New(&dialect.OracleDialect{}, "APP")
	a := &merge.CreateSchema{Name: "LOOKUP"}
	assert.Equal(t, []string{`CREATE USER "LOOKUP" NO AUTHENTICATION`}, commands(t, a, src))
	assert.Equal(t, "Create schema LOOKUP", a.Description())
}
