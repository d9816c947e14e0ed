package internal

import (
	"testing"

	"github.com/lychee-technology/sweet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func peopleModel(t *testing.T, dialect sweet.Dialect) *sweet.TableModel {
	t.Helper()
	model, err := BuildTableModel(decodeFixture(t, peopleSchemaJSON), dialect, "id_")
	require.NoError(t, err)
	return model
}

func TestRenderCreateTable_PostgreSQL(t *testing.T) {
	stmts, err := RenderCreateTable(peopleModel(t, sweet.DialectPostgreSQL), sweet.DialectPostgreSQL, nil)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	assert.Equal(t, `CREATE TABLE "people" (
	"id_" INTEGER GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	"id" INTEGER NOT NULL,
	"full_name" TEXT NOT NULL,
	"email" TEXT UNIQUE,
	"manager_id" INTEGER,
	CONSTRAINT "unique_people_id" UNIQUE ("id"),
	CONSTRAINT "fk_people_manager_id" FOREIGN KEY ("manager_id") REFERENCES "people" ("id")
)`, stmts[0])
}

func TestRenderCreateTable_SQLite(t *testing.T) {
	stmts, err := RenderCreateTable(peopleModel(t, sweet.DialectSQLite), sweet.DialectSQLite, nil)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], `"id_" INTEGER PRIMARY KEY AUTOINCREMENT,`)
	assert.Contains(t, stmts[0], `CONSTRAINT "fk_people_manager_id" FOREIGN KEY ("manager_id") REFERENCES "people" ("id")`)
}

func TestRenderCreateTable_DuckDBSequence(t *testing.T) {
	stmts, err := RenderCreateTable(peopleModel(t, sweet.DialectDuckDB), sweet.DialectDuckDB, nil)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Equal(t, `CREATE SEQUENCE IF NOT EXISTS "people_id__seq"`, stmts[0])
	assert.Contains(t, stmts[1], `"id_" INTEGER PRIMARY KEY DEFAULT nextval('people_id__seq'),`)
	assert.Contains(t, stmts[1], `"full_name" VARCHAR NOT NULL,`)
}

func TestRenderCreateTable_DeferredForeignKeys(t *testing.T) {
	model := peopleModel(t, sweet.DialectPostgreSQL)
	stmts, err := RenderCreateTable(model, sweet.DialectPostgreSQL, func(c sweet.ConstraintSpec) bool {
		return c.Name == "fk_people_manager_id"
	})
	require.NoError(t, err)
	assert.NotContains(t, stmts[0], "FOREIGN KEY")
	assert.Contains(t, stmts[0], `CONSTRAINT "unique_people_id" UNIQUE ("id")`+"\n)")

	alter, err := RenderAddForeignKey(model.Name, model.ForeignKeys()[0], sweet.DialectPostgreSQL)
	require.NoError(t, err)
	assert.Equal(t, `ALTER TABLE "people" ADD CONSTRAINT "fk_people_manager_id" FOREIGN KEY ("manager_id") REFERENCES "people" ("id")`, alter)
}

func TestRenderAddForeignKey_Unsupported(t *testing.T) {
	fk := sweet.ConstraintSpec{Kind: sweet.ConstraintForeignKey, Name: "fk", Columns: []string{"a"}, RefTable: "t", RefColumns: []string{"b"}}

	for _, d := range []sweet.Dialect{sweet.DialectSQLite, sweet.DialectDuckDB} {
		_, err := RenderAddForeignKey("x", fk, d)
		requireSweetError(t, err, sweet.ErrorTypeInput, sweet.ErrCodeUnsupportedDialect)
	}

	_, err := RenderAddForeignKey("x", sweet.ConstraintSpec{Kind: sweet.ConstraintUnique, Name: "u"}, sweet.DialectPostgreSQL)
	requireSweetError(t, err, sweet.ErrorTypeInternal, sweet.ErrCodeInternalError)
}

func TestRenderCreateTable_Errors(t *testing.T) {
	_, err := RenderCreateTable(nil, sweet.DialectSQLite, nil)
	requireSweetError(t, err, sweet.ErrorTypeInput, sweet.ErrCodeInvalidSource)

	_, err = RenderCreateTable(&sweet.TableModel{Name: "empty"}, sweet.DialectSQLite, nil)
	requireSweetError(t, err, sweet.ErrorTypeInput, sweet.ErrCodeInvalidSource)

	_, err = RenderCreateTable(&sweet.TableModel{Name: "t", Columns: []sweet.ColumnSpec{{Name: "a", Type: "TEXT"}}}, "oracle", nil)
	requireSweetError(t, err, sweet.ErrorTypeInput, sweet.ErrCodeUnsupportedDialect)
}

func TestRenderCreateTable_QuotesIdentifiers(t *testing.T) {
	model := &sweet.TableModel{
		Name:    `odd"name`,
		Columns: []sweet.ColumnSpec{{Name: "select", Type: "TEXT", Nullable: true}},
	}
	stmts, err := RenderCreateTable(model, sweet.DialectPostgreSQL, nil)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE \"odd\"\"name\" (\n\t\"select\" TEXT\n)", stmts[0])
}

func TestCapabilitiesOf(t *testing.T) {
	sqlite, err := CapabilitiesOf(sweet.DialectSQLite)
	require.NoError(t, err)
	assert.True(t, sqlite.InlineForwardReferences)
	assert.False(t, sqlite.AlterAddForeignKey)

	pg, err := CapabilitiesOf(sweet.DialectPostgreSQL)
	require.NoError(t, err)
	assert.False(t, pg.InlineForwardReferences)
	assert.True(t, pg.AlterAddForeignKey)

	duck, err := CapabilitiesOf(sweet.DialectDuckDB)
	require.NoError(t, err)
	assert.Equal(t, DialectCapabilities{}, duck)

	_, err = CapabilitiesOf("mssql")
	assert.Error(t, err)
}

func TestRenderCreateTable_DottedNamesStayOneIdentifier(t *testing.T) {
	model := &sweet.TableModel{
		Name:    "a.b",
		Columns: []sweet.ColumnSpec{{Name: "id", Type: "INTEGER", Nullable: true}},
		Constraints: []sweet.ConstraintSpec{{
			Kind:       sweet.ConstraintForeignKey,
			Name:       "fk_a.b_id",
			Columns:    []string{"id"},
			RefTable:   "c.d",
			RefColumns: []string{"id"},
		}},
	}
	stmts, err := RenderCreateTable(model, sweet.DialectSQLite, nil)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	assert.Equal(t, "CREATE TABLE \"a.b\" (\n\t\"id\" INTEGER,\n\tCONSTRAINT \"fk_a.b_id\" FOREIGN KEY (\"id\") REFERENCES \"c.d\" (\"id\")\n)", stmts[0])

	alter, err := RenderAddForeignKey("a.b", model.Constraints[0], sweet.DialectPostgreSQL)
	require.NoError(t, err)
	assert.Equal(t, `ALTER TABLE "a.b" ADD CONSTRAINT "fk_a.b_id" FOREIGN KEY ("id") REFERENCES "c.d" ("id")`, alter)
}
