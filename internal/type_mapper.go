package internal

import (
	"fmt"

	"github.com/lychee-technology/sweet"
)

// baseFieldTypes must be mapped by every dialect. uuid and json are
// optional extensions.
var baseFieldTypes = []sweet.FieldType{
	sweet.FieldTypeAny,
	sweet.FieldTypeBoolean,
	sweet.FieldTypeDate,
	sweet.FieldTypeDatetime,
	sweet.FieldTypeInteger,
	sweet.FieldTypeNumber,
	sweet.FieldTypeString,
	sweet.FieldTypeTime,
	sweet.FieldTypeYear,
}

// typeMappings is the fixed (dialect, logical type) lookup table. number
// is a float on sqlite and duckdb and an exact NUMERIC on PostgreSQL.
var typeMappings = map[sweet.Dialect]map[sweet.FieldType]sweet.ColumnType{
	sweet.DialectSQLite: {
		sweet.FieldTypeAny:      "TEXT",
		sweet.FieldTypeBoolean:  "BOOLEAN",
		sweet.FieldTypeDate:     "DATE",
		sweet.FieldTypeDatetime: "DATETIME",
		sweet.FieldTypeInteger:  "INTEGER",
		sweet.FieldTypeNumber:   "FLOAT",
		sweet.FieldTypeString:   "TEXT",
		sweet.FieldTypeTime:     "TIME",
		sweet.FieldTypeYear:     "INTEGER",
	},
	sweet.DialectPostgreSQL: {
		sweet.FieldTypeAny:      "TEXT",
		sweet.FieldTypeBoolean:  "BOOLEAN",
		sweet.FieldTypeDate:     "DATE",
		sweet.FieldTypeDatetime: "TIMESTAMP WITHOUT TIME ZONE",
		sweet.FieldTypeInteger:  "INTEGER",
		sweet.FieldTypeNumber:   "NUMERIC",
		sweet.FieldTypeString:   "TEXT",
		sweet.FieldTypeTime:     "TIME WITHOUT TIME ZONE",
		sweet.FieldTypeYear:     "INTEGER",
		sweet.FieldTypeUUID:     "UUID",
		sweet.FieldTypeJSON:     "JSONB",
	},
	sweet.DialectDuckDB: {
		sweet.FieldTypeAny:      "VARCHAR",
		sweet.FieldTypeBoolean:  "BOOLEAN",
		sweet.FieldTypeDate:     "DATE",
		sweet.FieldTypeDatetime: "TIMESTAMP",
		sweet.FieldTypeInteger:  "INTEGER",
		sweet.FieldTypeNumber:   "DOUBLE",
		sweet.FieldTypeString:   "VARCHAR",
		sweet.FieldTypeTime:     "TIME",
		sweet.FieldTypeYear:     "INTEGER",
		sweet.FieldTypeUUID:     "UUID",
		sweet.FieldTypeJSON:     "JSON",
	},
}

func init() {
	if err := validateTypeMappings(typeMappings); err != nil {
		panic(err)
	}
}

func validateTypeMappings(mappings map[sweet.Dialect]map[sweet.FieldType]sweet.ColumnType) error {
	for _, d := range sweet.Dialects() {
		table, ok := mappings[d]
		if !ok {
			return fmt.Errorf("type mapping: dialect %s has no mapping table", d)
		}
		for _, ft := range baseFieldTypes {
			if table[ft] == "" {
				return fmt.Errorf("type mapping: dialect %s does not map %s", d, ft)
			}
		}
	}
	return nil
}

// MapType returns the physical column type of a logical field type.
func MapType(fieldType sweet.FieldType, dialect sweet.Dialect) (sweet.ColumnType, error) {
	table, ok := typeMappings[dialect]
	if !ok {
		return "", sweet.NewUnsupportedDialectError(string(dialect))
	}
	colType, ok := table[fieldType]
	if !ok {
		return "", sweet.NewInputError(sweet.ErrCodeUnsupportedFieldType,
			fmt.Sprintf("field type %q is not supported by dialect %s", fieldType, dialect)).
			WithDetail("type", string(fieldType)).
			WithDetail("dialect", string(dialect))
	}
	return colType, nil
}

// SupportedFieldTypes lists the logical types a dialect can store.
func SupportedFieldTypes(dialect sweet.Dialect) []sweet.FieldType {
	table := typeMappings[dialect]
	var out []sweet.FieldType
	for _, ft := range sweet.FieldTypes() {
		if _, ok := table[ft]; ok {
			out = append(out, ft)
		}
	}
	return out
}
