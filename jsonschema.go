package sweet

import (
	"encoding/json"
	"fmt"
)

// FieldType is the logical type of a schema field.
type FieldType string

const (
	FieldTypeAny      FieldType = "any"
	FieldTypeBoolean  FieldType = "boolean"
	FieldTypeDate     FieldType = "date"
	FieldTypeDatetime FieldType = "datetime"
	FieldTypeInteger  FieldType = "integer"
	FieldTypeNumber   FieldType = "number"
	FieldTypeString   FieldType = "string"
	FieldTypeTime     FieldType = "time"
	FieldTypeYear     FieldType = "year"
	FieldTypeUUID     FieldType = "uuid"
	FieldTypeJSON     FieldType = "json"
)

// FieldTypes lists every logical field type.
func FieldTypes() []FieldType {
	return []FieldType{
		FieldTypeAny, FieldTypeBoolean, FieldTypeDate, FieldTypeDatetime,
		FieldTypeInteger, FieldTypeNumber, FieldTypeString, FieldTypeTime,
		FieldTypeYear, FieldTypeUUID, FieldTypeJSON,
	}
}

// SchemaDocument is the typed view of a validated table schema.
type SchemaDocument struct {
	Name        string       `json:"name"`
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Fields      []Field      `json:"fields"`
	PrimaryKey  StringList   `json:"primaryKey,omitempty"`
	ForeignKeys []ForeignKey `json:"foreignKeys,omitempty"`
}

// Field describes one column of a table schema.
type Field struct {
	Name        string            `json:"name"`
	Type        FieldType         `json:"type,omitempty"`
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description,omitempty"`
	Format      string            `json:"format,omitempty"`
	Constraints *FieldConstraints `json:"constraints,omitempty"`
}

// LogicalType returns the declared type, defaulting to string when absent.
func (f Field) LogicalType() FieldType {
	if f.Type == "" {
		return FieldTypeString
	}
	return f.Type
}

// FieldConstraints carries the per-field constraints of the table schema format.
type FieldConstraints struct {
	Required  bool   `json:"required,omitempty"`
	Unique    bool   `json:"unique,omitempty"`
	Minimum   any    `json:"minimum,omitempty"`
	Maximum   any    `json:"maximum,omitempty"`
	MinLength *int   `json:"minLength,omitempty"`
	MaxLength *int   `json:"maxLength,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
	Enum      []any  `json:"enum,omitempty"`
}

// ForeignKey maps local fields onto fields of a referenced resource.
type ForeignKey struct {
	Fields    StringList          `json:"fields"`
	Reference ForeignKeyReference `json:"reference"`
}

// ForeignKeyReference names the referenced resource. An empty resource
// refers to the schema itself.
type ForeignKeyReference struct {
	Resource string     `json:"resource"`
	Fields   StringList `json:"fields"`
}

// IsSelfReference reports whether the foreign key points at the table named table.
func (fk ForeignKey) IsSelfReference(table string) bool {
	return fk.Reference.Resource == "" || fk.Reference.Resource == table
}

// Target returns the referenced table name, resolving self references to table.
func (fk ForeignKey) Target(table string) string {
	if fk.Reference.Resource == "" {
		return table
	}
	return fk.Reference.Resource
}

// StringList decodes from either a single string or a list of strings.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = nil
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = StringList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*l = many
	return nil
}

// FieldNames returns the declared field names in order.
func (d *SchemaDocument) FieldNames() []string {
	names := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		names = append(names, f.Name)
	}
	return names
}

// HasField reports whether the schema declares a field called name.
func (d *SchemaDocument) HasField(name string) bool {
	for _, f := range d.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}
