package internal

import (
	"fmt"
	"strings"

	"github.com/lychee-technology/sweet"
)

// UniqueConstraintName is the stable name of the primary key uniqueness
// constraint, e.g. unique_people_id.
func UniqueConstraintName(table string, columns []string) string {
	return "unique_" + table + "_" + strings.Join(columns, "_")
}

// ForeignKeyConstraintName is the stable name of a foreign key constraint.
func ForeignKeyConstraintName(table string, columns []string) string {
	return "fk_" + table + "_" + strings.Join(columns, "_")
}

// BuildTableModel lays out the columns and constraints of doc for dialect.
// A non-empty idColumn prepends a surrogate integer primary key. Foreign
// keys reference their target by table name, so the target does not need
// to exist yet.
func BuildTableModel(doc *sweet.SchemaDocument, dialect sweet.Dialect, idColumn string) (*sweet.TableModel, error) {
	if doc == nil || doc.Name == "" {
		return nil, sweet.NewValidationError("name", "schema has no name")
	}

	model := &sweet.TableModel{
		Name:    doc.Name,
		Columns: make([]sweet.ColumnSpec, 0, len(doc.Fields)+1),
	}

	if idColumn != "" {
		if doc.HasField(idColumn) {
			return nil, sweet.NewSweetError(sweet.ErrorTypeValidation, sweet.ErrCodeColumnConflict, "surrogate id column collides with a declared field").
				WithField(idColumn)
		}
		colType, err := MapType(sweet.FieldTypeInteger, dialect)
		if err != nil {
			return nil, err
		}
		model.Columns = append(model.Columns, sweet.ColumnSpec{
			Name:          idColumn,
			FieldType:     sweet.FieldTypeInteger,
			Type:          colType,
			Nullable:      false,
			PrimaryKey:    true,
			AutoIncrement: true,
		})
	}

	for _, field := range doc.Fields {
		colType, err := MapType(field.LogicalType(), dialect)
		if err != nil {
			if se, ok := sweet.AsSweetError(err); ok {
				return nil, se.WithField(field.Name)
			}
			return nil, err
		}
		col := sweet.ColumnSpec{
			Name:        field.Name,
			FieldType:   field.LogicalType(),
			Type:        colType,
			Nullable:    true,
			Description: field.Description,
		}
		if c := field.Constraints; c != nil {
			col.Nullable = !c.Required
			col.Unique = c.Unique
		}
		model.Columns = append(model.Columns, col)
	}

	if len(doc.PrimaryKey) > 0 {
		for _, key := range doc.PrimaryKey {
			idx := columnIndex(model.Columns, key)
			if idx < 0 {
				return nil, sweet.NewReferenceError(sweet.ErrCodePrimaryKeyNotInTable, "primaryKey", "primary key field not part of the table").
					WithDetail("key", key)
			}
			model.Columns[idx].Nullable = false
		}
		model.Constraints = append(model.Constraints, sweet.ConstraintSpec{
			Kind:    sweet.ConstraintUnique,
			Name:    UniqueConstraintName(doc.Name, doc.PrimaryKey),
			Columns: append([]string(nil), doc.PrimaryKey...),
		})
	}

	for i, fk := range doc.ForeignKeys {
		if len(fk.Fields) != len(fk.Reference.Fields) {
			return nil, sweet.NewReferenceError(sweet.ErrCodeForeignKeyCardinality, fmt.Sprintf("foreignKeys[%d]", i),
				"foreign key fields and reference fields differ in length")
		}
		for _, name := range fk.Fields {
			if columnIndex(model.Columns, name) < 0 {
				return nil, sweet.NewReferenceError(sweet.ErrCodeForeignKeyNotInTable, fmt.Sprintf("foreignKeys[%d]", i),
					"foreign key field not part of the table").WithDetail("key", name)
			}
		}
		model.Constraints = append(model.Constraints, sweet.ConstraintSpec{
			Kind:       sweet.ConstraintForeignKey,
			Name:       ForeignKeyConstraintName(doc.Name, fk.Fields),
			Columns:    append([]string(nil), fk.Fields...),
			RefTable:   fk.Target(doc.Name),
			RefColumns: append([]string(nil), fk.Reference.Fields...),
		})
	}

	return model, nil
}

func columnIndex(cols []sweet.ColumnSpec, name string) int {
	for i, c := range cols {
		if c.Name == name {
			return i
		}
	}
	return -1
}
