package internal

import (
	"testing"

	"github.com/lychee-technology/sweet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeFixture(t *testing.T, raw string) *sweet.SchemaDocument {
	t.Helper()
	canonical, err := newTestValidator(t).Validate(sweet.FromBytes([]byte(raw)))
	require.NoError(t, err)
	doc, err := DecodeDocument(canonical)
	require.NoError(t, err)
	return doc
}

func TestBuildTableModel_People(t *testing.T) {
	doc := decodeFixture(t, peopleSchemaJSON)

	model, err := BuildTableModel(doc, sweet.DialectPostgreSQL, "id_")
	require.NoError(t, err)

	assert.Equal(t, "people", model.Name)
	require.Len(t, model.Columns, 5)

	surrogate := model.Columns[0]
	assert.Equal(t, sweet.ColumnSpec{
		Name:          "id_",
		FieldType:     sweet.FieldTypeInteger,
		Type:          "INTEGER",
		PrimaryKey:    true,
		AutoIncrement: true,
	}, surrogate)

	id, _ := model.Column("id")
	assert.False(t, id.Nullable)
	fullName, _ := model.Column("full_name")
	assert.False(t, fullName.Nullable)
	assert.Equal(t, sweet.ColumnType("TEXT"), fullName.Type)
	email, _ := model.Column("email")
	assert.True(t, email.Nullable)
	assert.True(t, email.Unique)
	manager, _ := model.Column("manager_id")
	assert.True(t, manager.Nullable)

	require.Len(t, model.Constraints, 2)
	assert.Equal(t, sweet.ConstraintSpec{
		Kind:    sweet.ConstraintUnique,
		Name:    "unique_people_id",
		Columns: []string{"id"},
	}, model.Constraints[0])
	assert.Equal(t, sweet.ConstraintSpec{
		Kind:       sweet.ConstraintForeignKey,
		Name:       "fk_people_manager_id",
		Columns:    []string{"manager_id"},
		RefTable:   "people",
		RefColumns: []string{"id"},
	}, model.Constraints[1])
}

func TestBuildTableModel_NoSurrogate(t *testing.T) {
	doc := decodeFixture(t, referencingSchema("orders", "customers"))

	model, err := BuildTableModel(doc, sweet.DialectDuckDB, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "ref_id"}, model.ColumnNames())
	assert.False(t, model.Columns[0].AutoIncrement)

	fks := model.ForeignKeys()
	require.Len(t, fks, 1)
	assert.Equal(t, "customers", fks[0].RefTable)
	assert.Equal(t, []string{"customers.id"}, fks[0].References())
}

func TestBuildTableModel_CompositeKeys(t *testing.T) {
	doc := &sweet.SchemaDocument{
		Name: "memberships",
		Fields: []sweet.Field{
			{Name: "team_id", Type: sweet.FieldTypeInteger},
			{Name: "person_id", Type: sweet.FieldTypeInteger},
			{Name: "since", Type: sweet.FieldTypeDate},
		},
		PrimaryKey: sweet.StringList{"team_id", "person_id"},
		ForeignKeys: []sweet.ForeignKey{{
			Fields:    sweet.StringList{"team_id", "person_id"},
			Reference: sweet.ForeignKeyReference{Resource: "rosters", Fields: sweet.StringList{"team", "person"}},
		}},
	}

	model, err := BuildTableModel(doc, sweet.DialectSQLite, "")
	require.NoError(t, err)
	assert.Equal(t, "unique_memberships_team_id_person_id", model.Constraints[0].Name)
	assert.Equal(t, "fk_memberships_team_id_person_id", model.Constraints[1].Name)
	assert.Equal(t, []string{"rosters.team", "rosters.person"}, model.Constraints[1].References())

	since, _ := model.Column("since")
	assert.Equal(t, sweet.ColumnType("DATE"), since.Type)
	assert.True(t, since.Nullable)
}

func TestBuildTableModel_Errors(t *testing.T) {
	people := decodeFixture(t, peopleSchemaJSON)

	_, err := BuildTableModel(people, sweet.DialectSQLite, "email")
	requireSweetError(t, err, sweet.ErrorTypeValidation, sweet.ErrCodeColumnConflict)

	_, err = BuildTableModel(nil, sweet.DialectSQLite, "")
	requireSweetError(t, err, sweet.ErrorTypeValidation, sweet.ErrCodeValidationFailed)

	_, err = BuildTableModel(people, "oracle", "")
	requireSweetError(t, err, sweet.ErrorTypeInput, sweet.ErrCodeUnsupportedDialect)

	withUUID := &sweet.SchemaDocument{Name: "tokens", Fields: []sweet.Field{{Name: "token", Type: sweet.FieldTypeUUID}}}
	_, err = BuildTableModel(withUUID, sweet.DialectSQLite, "")
	se := requireSweetError(t, err, sweet.ErrorTypeInput, sweet.ErrCodeUnsupportedFieldType)
	assert.Equal(t, "token", se.Field)
	_, err = BuildTableModel(withUUID, sweet.DialectPostgreSQL, "")
	assert.NoError(t, err)

	badPK := &sweet.SchemaDocument{Name: "t", Fields: []sweet.Field{{Name: "a"}}, PrimaryKey: sweet.StringList{"b"}}
	_, err = BuildTableModel(badPK, sweet.DialectSQLite, "")
	requireSweetError(t, err, sweet.ErrorTypeReference, sweet.ErrCodePrimaryKeyNotInTable)

	badArity := &sweet.SchemaDocument{Name: "t", Fields: []sweet.Field{{Name: "a"}}, ForeignKeys: []sweet.ForeignKey{{
		Fields:    sweet.StringList{"a"},
		Reference: sweet.ForeignKeyReference{Fields: sweet.StringList{"x", "y"}},
	}}}
	_, err = BuildTableModel(badArity, sweet.DialectSQLite, "")
	requireSweetError(t, err, sweet.ErrorTypeReference, sweet.ErrCodeForeignKeyCardinality)

	badLocal := &sweet.SchemaDocument{Name: "t", Fields: []sweet.Field{{Name: "a"}}, ForeignKeys: []sweet.ForeignKey{{
		Fields:    sweet.StringList{"z"},
		Reference: sweet.ForeignKeyReference{Fields: sweet.StringList{"a"}},
	}}}
	_, err = BuildTableModel(badLocal, sweet.DialectSQLite, "")
	requireSweetError(t, err, sweet.ErrorTypeReference, sweet.ErrCodeForeignKeyNotInTable)
}
