package internal

import (
	"testing"

	"github.com/lychee-technology/sweet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaValidator_Valid(t *testing.T) {
	v := newTestValidator(t)

	doc, err := v.Validate(sweet.FromBytes([]byte(peopleSchemaJSON)))
	require.NoError(t, err)
	assert.Equal(t, "people", doc["name"])
	assert.Equal(t, "id", doc["primaryKey"])

	// foreign keys to tables that do not exist are accepted here
	_, err = v.Validate(sweet.FromBytes([]byte(referencingSchema("orders", "customers"))))
	assert.NoError(t, err)
}

func TestSchemaValidator_ReportsViolations(t *testing.T) {
	v := newTestValidator(t)

	_, err := v.Validate(sweet.FromMapping(map[string]any{
		"name":        "people",
		"description": "x",
		"fields":      []any{map[string]any{"name": "id", "type": "bigint"}},
		"colour":      "blue",
	}))
	se := requireSweetError(t, err, sweet.ErrorTypeValidation, sweet.ErrCodeValidationFailed)

	violations, ok := se.Details["violations"].([]Violation)
	require.True(t, ok)
	require.NotEmpty(t, violations)

	var instances []string
	for _, viol := range violations {
		instances = append(instances, viol.Instance)
	}
	assert.Contains(t, instances, "/fields/0/type")
}

func TestSchemaValidator_KeyChecks(t *testing.T) {
	v := newTestValidator(t)

	_, err := v.Validate(sweet.FromMapping(map[string]any{
		"name":        "people",
		"description": "x",
		"fields":      []any{map[string]any{"name": "id", "type": "integer"}},
		"foreignKeys": []any{map[string]any{
			"fields":    "boss_id",
			"reference": map[string]any{"resource": "", "fields": "id"},
		}},
	}))
	requireSweetError(t, err, sweet.ErrorTypeReference, sweet.ErrCodeForeignKeyNotInTable)

	_, err = v.Validate(sweet.FromMapping(map[string]any{
		"name":        "people",
		"description": "x",
		"fields":      []any{map[string]any{"name": "id", "type": "integer"}},
		"primaryKey":  []any{"id", "other"},
	}))
	se := requireSweetError(t, err, sweet.ErrorTypeReference, sweet.ErrCodePrimaryKeyNotInTable)
	assert.Equal(t, "other", se.Details["key"])

	_, err = v.Validate(sweet.FromMapping(map[string]any{
		"name":        "dup",
		"description": "x",
		"fields": []any{
			map[string]any{"name": "id", "type": "integer"},
			map[string]any{"name": "id", "type": "string"},
		},
	}))
	se = requireSweetError(t, err, sweet.ErrorTypeValidation, sweet.ErrCodeDuplicateField)
	assert.Equal(t, "fields[1].name", se.Field)
	assert.Equal(t, "id", se.Details["name"])
}

const boundedSchemaYAML = `
name: scores
description: Bounded scores
fields:
  - name: id
    type: integer
    constraints:
      required: true
      minimum: 1
  - name: score
    type: number
    constraints:
      minimum: 0
      maximum: 100
  - name: code
    type: string
    constraints:
      minLength: 2
      maxLength: 8
primaryKey: [id]
`

func TestSchemaValidator_Idempotent(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name string
		raw  string
	}{
		{name: "json", raw: peopleSchemaJSON},
		{name: "yaml", raw: peopleSchemaYAML},
		{name: "yaml integer constraints", raw: boundedSchemaYAML},
		{name: "json foreign key", raw: referencingSchema("orders", "customers")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once, err := v.Validate(sweet.FromBytes([]byte(tt.raw)))
			require.NoError(t, err)
			twice, err := v.Validate(sweet.FromMapping(once))
			require.NoError(t, err)
			assert.Equal(t, once, twice)
		})
	}

	once, err := v.Validate(sweet.FromBytes([]byte(boundedSchemaYAML)))
	require.NoError(t, err)
	constraints := once["fields"].([]any)[1].(map[string]any)["constraints"].(map[string]any)
	assert.Equal(t, float64(100), constraints["maximum"])
}

func TestDecodeDocument(t *testing.T) {
	doc, err := DecodeDocument(map[string]any{
		"name":       "people",
		"fields":     []any{map[string]any{"name": "id"}, map[string]any{"name": "n", "type": "number"}},
		"primaryKey": "id",
		"foreignKeys": []any{map[string]any{
			"fields":    []any{"id"},
			"reference": map[string]any{"resource": "teams", "fields": "id"},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, sweet.StringList{"id"}, doc.PrimaryKey)
	assert.Equal(t, sweet.FieldTypeString, doc.Fields[0].LogicalType())
	assert.Equal(t, sweet.FieldTypeNumber, doc.Fields[1].LogicalType())
	assert.Equal(t, "teams", doc.ForeignKeys[0].Target("people"))
	assert.False(t, doc.ForeignKeys[0].IsSelfReference("people"))

	_, err = DecodeDocument(map[string]any{"fields": "nope"})
	requireSweetError(t, err, sweet.ErrorTypeValidation, sweet.ErrCodeValidationFailed)
}
