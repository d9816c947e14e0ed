package sweet

import (
	"strconv"
	"strings"
	"time"
)

// Dialect names a target database engine's type and constraint vocabulary.
type Dialect string

const (
	DialectSQLite     Dialect = "sqlite"
	DialectPostgreSQL Dialect = "postgresql"
	DialectDuckDB     Dialect = "duckdb"
)

// Dialects lists every supported dialect in a stable order.
func Dialects() []Dialect {
	return []Dialect{DialectSQLite, DialectPostgreSQL, DialectDuckDB}
}

// ParseDialect resolves a dialect name, accepting the common aliases.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgresql", "postgres", "pg":
		return DialectPostgreSQL, nil
	case "duckdb":
		return DialectDuckDB, nil
	default:
		return "", NewUnsupportedDialectError(name)
	}
}

// SchemaRecord is a persisted schema.
type SchemaRecord struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	JSONSchema  map[string]any `json:"jsonschema"`
	IsActive    bool           `json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// SchemaSelector picks one schema record by id or by name. Exactly one of
// the two must be set.
type SchemaSelector struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// ByID selects a record by surrogate id.
func ByID(id int64) SchemaSelector {
	return SchemaSelector{ID: id}
}

// ByName selects a record by its unique name.
func ByName(name string) SchemaSelector {
	return SchemaSelector{Name: name}
}

// Validate rejects selectors that name both or neither of id and name.
func (s SchemaSelector) Validate() error {
	hasID := s.ID != 0
	hasName := s.Name != ""
	if hasID == hasName {
		return NewSelectorError()
	}
	if s.ID < 0 {
		return NewInputError(ErrCodeInvalidSelector, "id must be positive").WithDetail("id", s.ID)
	}
	return nil
}

func (s SchemaSelector) String() string {
	if s.Name != "" {
		return "name=" + s.Name
	}
	return "id=" + strconv.FormatInt(s.ID, 10)
}

// MaterializeOptions controls how a stored schema becomes a table.
type MaterializeOptions struct {
	// Dialect must match the store's dialect. Empty means the store's dialect.
	Dialect Dialect `json:"dialect,omitempty"`
	// IDColumn names a surrogate integer primary key prepended to the
	// columns. Empty means no surrogate column.
	IDColumn string `json:"id_column,omitempty"`
}
