package sweet

// ColumnType is a dialect-specific physical column type such as "INTEGER".
type ColumnType string

// ColumnSpec is one column of a table model.
type ColumnSpec struct {
	Name          string     `json:"name"`
	FieldType     FieldType  `json:"field_type,omitempty"`
	Type          ColumnType `json:"type"`
	Nullable      bool       `json:"nullable"`
	PrimaryKey    bool       `json:"primary_key,omitempty"`
	AutoIncrement bool       `json:"auto_increment,omitempty"`
	Unique        bool       `json:"unique,omitempty"`
	Description   string     `json:"description,omitempty"`
}

// ConstraintKind distinguishes table-level constraints.
type ConstraintKind string

const (
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintForeignKey ConstraintKind = "foreign_key"
)

// ConstraintSpec is a table-level constraint. Foreign keys reference their
// target by table name so that self references and not yet created tables
// can be expressed.
type ConstraintSpec struct {
	Kind       ConstraintKind `json:"kind"`
	Name       string         `json:"name"`
	Columns    []string       `json:"columns"`
	RefTable   string         `json:"ref_table,omitempty"`
	RefColumns []string       `json:"ref_columns,omitempty"`
}

// References returns the "<table>.<field>" targets of a foreign key, in
// local column order.
func (c ConstraintSpec) References() []string {
	if c.Kind != ConstraintForeignKey {
		return nil
	}
	refs := make([]string, 0, len(c.RefColumns))
	for _, col := range c.RefColumns {
		refs = append(refs, c.RefTable+"."+col)
	}
	return refs
}

// TableModel is the column and constraint layout produced from a schema.
type TableModel struct {
	Name        string           `json:"name"`
	Columns     []ColumnSpec     `json:"columns"`
	Constraints []ConstraintSpec `json:"constraints,omitempty"`
}

// Column looks up a column by name.
func (m *TableModel) Column(name string) (ColumnSpec, bool) {
	for _, c := range m.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// ColumnNames returns the column names in order.
func (m *TableModel) ColumnNames() []string {
	names := make([]string, 0, len(m.Columns))
	for _, c := range m.Columns {
		names = append(names, c.Name)
	}
	return names
}

// ForeignKeys returns the foreign-key constraints in declaration order.
func (m *TableModel) ForeignKeys() []ConstraintSpec {
	var fks []ConstraintSpec
	for _, c := range m.Constraints {
		if c.Kind == ConstraintForeignKey {
			fks = append(fks, c)
		}
	}
	return fks
}
