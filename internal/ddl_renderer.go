package internal

import (
	"fmt"
	"strings"

	"github.com/lychee-technology/sweet"
)

// DialectCapabilities describes how foreign keys to not yet created tables
// can be expressed on a dialect.
type DialectCapabilities struct {
	// InlineForwardReferences is true when CREATE TABLE may reference a
	// table that does not exist yet.
	InlineForwardReferences bool
	// AlterAddForeignKey is true when a foreign key can be attached to an
	// existing table with ALTER TABLE ... ADD CONSTRAINT.
	AlterAddForeignKey bool
}

var dialectCapabilities = map[sweet.Dialect]DialectCapabilities{
	sweet.DialectSQLite:     {InlineForwardReferences: true, AlterAddForeignKey: false},
	sweet.DialectPostgreSQL: {InlineForwardReferences: false, AlterAddForeignKey: true},
	sweet.DialectDuckDB:     {InlineForwardReferences: false, AlterAddForeignKey: false},
}

func CapabilitiesOf(dialect sweet.Dialect) (DialectCapabilities, error) {
	caps, ok := dialectCapabilities[dialect]
	if !ok {
		return DialectCapabilities{}, sweet.NewUnsupportedDialectError(string(dialect))
	}
	return caps, nil
}

// SequenceName is the sequence backing a DuckDB surrogate key column.
func SequenceName(table, column string) string {
	return table + "_" + column + "_seq"
}

// RenderCreateTable returns the statements that create model on dialect, in
// execution order. Foreign keys for which deferFK returns true are left out
// so they can be added later with RenderAddForeignKey.
func RenderCreateTable(model *sweet.TableModel, dialect sweet.Dialect, deferFK func(sweet.ConstraintSpec) bool) ([]string, error) {
	if _, err := CapabilitiesOf(dialect); err != nil {
		return nil, err
	}
	if model == nil || model.Name == "" {
		return nil, sweet.NewInputError(sweet.ErrCodeInvalidSource, "table model has no name")
	}
	if len(model.Columns) == 0 {
		return nil, sweet.NewInputError(sweet.ErrCodeInvalidSource, "table model has no columns").WithField(model.Name)
	}

	var stmts []string
	defs := make([]string, 0, len(model.Columns)+len(model.Constraints))

	for _, col := range model.Columns {
		if col.AutoIncrement {
			def, pre := renderSurrogateColumn(model.Name, col, dialect)
			stmts = append(stmts, pre...)
			defs = append(defs, def)
			continue
		}
		defs = append(defs, renderColumn(col))
	}

	for _, c := range model.Constraints {
		switch c.Kind {
		case sweet.ConstraintUnique:
			defs = append(defs, fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)",
				quoteIdent(c.Name), quoteIdentList(c.Columns)))
		case sweet.ConstraintForeignKey:
			if deferFK != nil && deferFK(c) {
				continue
			}
			defs = append(defs, renderForeignKey(c))
		default:
			return nil, sweet.NewInternalError(fmt.Sprintf("unknown constraint kind %q", c.Kind), nil)
		}
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(quoteIdent(model.Name))
	b.WriteString(" (\n")
	for i, d := range defs {
		b.WriteString("\t")
		b.WriteString(d)
		if i < len(defs)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(")")

	return append(stmts, b.String()), nil
}

// RenderAddForeignKey attaches fk to an existing table. Only dialects with
// AlterAddForeignKey support it.
func RenderAddForeignKey(table string, fk sweet.ConstraintSpec, dialect sweet.Dialect) (string, error) {
	caps, err := CapabilitiesOf(dialect)
	if err != nil {
		return "", err
	}
	if !caps.AlterAddForeignKey {
		return "", sweet.NewInputError(sweet.ErrCodeUnsupportedDialect,
			fmt.Sprintf("dialect %s cannot add a foreign key to an existing table", dialect)).
			WithDetail("dialect", string(dialect))
	}
	if fk.Kind != sweet.ConstraintForeignKey {
		return "", sweet.NewInternalError(fmt.Sprintf("constraint %s is not a foreign key", fk.Name), nil)
	}
	return fmt.Sprintf("ALTER TABLE %s ADD %s", quoteIdent(table), renderForeignKey(fk)), nil
}

func renderColumn(col sweet.ColumnSpec) string {
	parts := []string{quoteIdent(col.Name), string(col.Type)}
	if col.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	}
	if !col.Nullable && !col.PrimaryKey {
		parts = append(parts, "NOT NULL")
	}
	if col.Unique && !col.PrimaryKey {
		parts = append(parts, "UNIQUE")
	}
	return strings.Join(parts, " ")
}

// renderSurrogateColumn returns the column definition and any statement
// that must run before CREATE TABLE.
func renderSurrogateColumn(table string, col sweet.ColumnSpec, dialect sweet.Dialect) (string, []string) {
	name := quoteIdent(col.Name)
	switch dialect {
	case sweet.DialectPostgreSQL:
		return name + " INTEGER GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY", nil
	case sweet.DialectDuckDB:
		seq := SequenceName(table, col.Name)
		pre := fmt.Sprintf("CREATE SEQUENCE IF NOT EXISTS %s", quoteIdent(seq))
		return fmt.Sprintf("%s INTEGER PRIMARY KEY DEFAULT nextval(%s)", name, quoteLiteral(seq)), []string{pre}
	default:
		return name + " INTEGER PRIMARY KEY AUTOINCREMENT", nil
	}
}

func renderForeignKey(c sweet.ConstraintSpec) string {
	return fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		quoteIdent(c.Name),
		quoteIdentList(c.Columns),
		quoteIdent(c.RefTable),
		quoteIdentList(c.RefColumns))
}
