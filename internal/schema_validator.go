package internal

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lychee-technology/sweet"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Violation is one leaf failure of the structural meta-schema check.
type Violation struct {
	Instance string `json:"instance"`
	Keyword  string `json:"keyword"`
	Message  string `json:"message"`
}

// SchemaValidator checks schema documents against a meta-schema and then
// checks that primary and foreign keys name declared fields.
type SchemaValidator struct {
	meta *MetaSchema
}

func NewSchemaValidator(meta *MetaSchema) *SchemaValidator {
	return &SchemaValidator{meta: meta}
}

// MetaSchema returns the meta-schema the validator checks against.
func (v *SchemaValidator) MetaSchema() *MetaSchema {
	return v.meta
}

// Validate loads src and returns its canonical form if it is a valid table
// schema. Referenced tables are not checked here; they may not exist yet.
func (v *SchemaValidator) Validate(src sweet.SchemaSource) (map[string]any, error) {
	loaded, err := LoadSchema(src)
	if err != nil {
		return nil, err
	}
	canonical, err := CanonicalizeDocument(loaded)
	if err != nil {
		return nil, err
	}

	if err := v.meta.validate(canonical); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return nil, sweet.NewValidationError("", "schema does not conform to the meta-schema").
				WithDetail("violations", collectViolations(ve)).
				WithCause(err)
		}
		return nil, sweet.NewInternalError("meta-schema validation failed", err)
	}

	doc, err := DecodeDocument(canonical)
	if err != nil {
		return nil, err
	}
	if err := checkKeys(doc); err != nil {
		return nil, err
	}
	return canonical, nil
}

// DecodeDocument converts a canonical mapping to the typed document view.
func DecodeDocument(m map[string]any) (*sweet.SchemaDocument, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, sweet.NewFormatError(sweet.ErrCodeInvalidFormat, "document is not JSON compatible").WithCause(err)
	}
	var doc sweet.SchemaDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, sweet.NewValidationError("", "schema document has an unexpected shape").WithCause(err)
	}
	return &doc, nil
}

func checkKeys(doc *sweet.SchemaDocument) error {
	seen := make(map[string]int, len(doc.Fields))
	for i, f := range doc.Fields {
		if first, ok := seen[f.Name]; ok {
			dup := sweet.NewValidationError(fmt.Sprintf("fields[%d].name", i), "field name declared more than once").
				WithDetail("name", f.Name).
				WithDetail("first_index", first)
			dup.Code = sweet.ErrCodeDuplicateField
			return dup
		}
		seen[f.Name] = i
	}

	for _, key := range doc.PrimaryKey {
		if !doc.HasField(key) {
			return sweet.NewReferenceError(sweet.ErrCodePrimaryKeyNotInTable, "primaryKey", "primary key field not part of the table").
				WithDetail("key", key).
				WithDetail("fields", doc.FieldNames())
		}
	}

	for i, fk := range doc.ForeignKeys {
		field := fmt.Sprintf("foreignKeys[%d]", i)
		if len(fk.Fields) != len(fk.Reference.Fields) {
			return sweet.NewReferenceError(sweet.ErrCodeForeignKeyCardinality, field, "foreign key fields and reference fields differ in length").
				WithDetail("fields", []string(fk.Fields)).
				WithDetail("reference_fields", []string(fk.Reference.Fields))
		}
		for _, name := range fk.Fields {
			if !doc.HasField(name) {
				return sweet.NewReferenceError(sweet.ErrCodeForeignKeyNotInTable, field, "foreign key field not part of the table").
					WithDetail("key", name).
					WithDetail("fields", doc.FieldNames())
			}
		}
	}
	return nil
}

func collectViolations(ve *jsonschema.ValidationError) []Violation {
	var out []Violation
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			out = append(out, Violation{
				Instance: e.InstanceLocation,
				Keyword:  e.KeywordLocation,
				Message:  e.Message,
			})
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return out
}
