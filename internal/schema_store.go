package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/lychee-technology/sweet"
)

var (
	// ErrRecordNotFound is returned when no schema record matches a selector.
	ErrRecordNotFound = errors.New("schema record not found")
	// ErrUniqueViolation is returned when an insert collides with an existing name.
	ErrUniqueViolation = errors.New("unique constraint violation")
	// ErrDuplicateTable is returned when DDL creates a table that already exists.
	ErrDuplicateTable = errors.New("table already exists")
)

const (
	pgUniqueViolation = "23505"
	pgDuplicateTable  = "42P07"
	pgDuplicateObject = "42710"
)

// SchemaStore hands out transactional sessions over the schema registry and
// the live catalog of one database.
type SchemaStore interface {
	Dialect() sweet.Dialect
	// EnsureSchemaTable creates the registry table if it is missing.
	EnsureSchemaTable(ctx context.Context) error
	// WithTx runs fn in one transaction. It commits when fn returns nil and
	// rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx StoreTx) error) error
	Ping(ctx context.Context) error
	Close() error
}

// StoreTx is one transaction over the registry and the catalog.
type StoreTx interface {
	Dialect() sweet.Dialect
	InsertSchema(ctx context.Context, rec *sweet.SchemaRecord) error
	GetSchema(ctx context.Context, sel sweet.SchemaSelector) (*sweet.SchemaRecord, error)
	ListSchemas(ctx context.Context) ([]sweet.SchemaRecord, error)
	DeleteSchema(ctx context.Context, id int64) (bool, error)
	SetSchemaActive(ctx context.Context, id int64, active bool) (bool, error)
	// TableNames lists the base tables of the current schema.
	TableNames(ctx context.Context) ([]string, error)
	// TableColumns lists the columns of table in ordinal order.
	TableColumns(ctx context.Context, table string) ([]string, error)
	Exec(ctx context.Context, stmt string) error
}

// TableExists reports whether name is among the live catalog tables.
func TableExists(ctx context.Context, tx StoreTx, name string) (bool, error) {
	names, err := tx.TableNames(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// registrySQL renders the registry statements for one dialect and
// placeholder style.
type registrySQL struct {
	table    string
	dialect  sweet.Dialect
	numbered bool
}

func newRegistrySQL(table string, dialect sweet.Dialect) registrySQL {
	return registrySQL{
		table:    table,
		dialect:  dialect,
		numbered: dialect == sweet.DialectPostgreSQL,
	}
}

const registryColumns = "id, name, description, jsonschema, is_active, created_at, updated_at"

func (q registrySQL) ph(n int) string {
	if q.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (q registrySQL) createTable() []string {
	t := quoteTable(q.table)
	switch q.dialect {
	case sweet.DialectPostgreSQL:
		return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id          BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	jsonschema  JSONB NOT NULL,
	is_active   BOOLEAN NOT NULL DEFAULT false,
	created_at  BIGINT NOT NULL,
	updated_at  BIGINT NOT NULL
)`, t)}
	case sweet.DialectDuckDB:
		seq := SequenceName(q.table, "id")
		return []string{
			fmt.Sprintf("CREATE SEQUENCE IF NOT EXISTS %s", quoteIdent(seq)),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id          BIGINT PRIMARY KEY DEFAULT nextval(%s),
	name        VARCHAR NOT NULL UNIQUE,
	description VARCHAR NOT NULL DEFAULT '',
	jsonschema  VARCHAR NOT NULL,
	is_active   BOOLEAN NOT NULL DEFAULT false,
	created_at  BIGINT NOT NULL,
	updated_at  BIGINT NOT NULL
)`, t, quoteLiteral(seq)),
		}
	default:
		return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	jsonschema  TEXT NOT NULL,
	is_active   BOOLEAN NOT NULL DEFAULT false,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
)`, t)}
	}
}

func (q registrySQL) insert() string {
	return fmt.Sprintf(
		"INSERT INTO %s (name, description, jsonschema, is_active, created_at, updated_at) VALUES (%s, %s, %s, %s, %s, %s) RETURNING id",
		quoteTable(q.table), q.ph(1), q.ph(2), q.ph(3), q.ph(4), q.ph(5), q.ph(6))
}

func (q registrySQL) selectBy(sel sweet.SchemaSelector) (string, any) {
	if sel.Name != "" {
		return fmt.Sprintf("SELECT %s FROM %s WHERE name = %s", registryColumns, quoteTable(q.table), q.ph(1)), sel.Name
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE id = %s", registryColumns, quoteTable(q.table), q.ph(1)), sel.ID
}

func (q registrySQL) list() string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY id", registryColumns, quoteTable(q.table))
}

func (q registrySQL) delete() string {
	return fmt.Sprintf("DELETE FROM %s WHERE id = %s", quoteTable(q.table), q.ph(1))
}

func (q registrySQL) setActive() string {
	return fmt.Sprintf("UPDATE %s SET is_active = %s, updated_at = %s WHERE id = %s",
		quoteTable(q.table), q.ph(1), q.ph(2), q.ph(3))
}

func (q registrySQL) tableNames() string {
	switch q.dialect {
	case sweet.DialectSQLite:
		return "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
	case sweet.DialectDuckDB:
		return "SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() ORDER BY table_name"
	default:
		return "SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() AND table_type = 'BASE TABLE' ORDER BY table_name"
	}
}

func (q registrySQL) tableColumns() string {
	if q.dialect == sweet.DialectSQLite {
		return "SELECT name FROM pragma_table_info(?) ORDER BY cid"
	}
	return fmt.Sprintf("SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = %s ORDER BY ordinal_position", q.ph(1))
}

func encodeDocument(doc map[string]any) (string, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode schema document: %w", err)
	}
	return string(raw), nil
}

func decodeRecord(id int64, name, description string, raw []byte, active bool, createdAt, updatedAt int64) (*sweet.SchemaRecord, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode schema document %s: %w", name, err)
	}
	return &sweet.SchemaRecord{
		ID:          id,
		Name:        name,
		Description: description,
		JSONSchema:  doc,
		IsActive:    active,
		CreatedAt:   time.UnixMilli(createdAt).UTC(),
		UpdatedAt:   time.UnixMilli(updatedAt).UTC(),
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*sweet.SchemaRecord, error) {
	var (
		id          int64
		name        string
		description string
		raw         []byte
		active      bool
		createdAt   int64
		updatedAt   int64
	)
	if err := row.Scan(&id, &name, &description, &raw, &active, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return decodeRecord(id, name, description, raw, active, createdAt, updatedAt)
}

// classifyStoreError maps driver errors onto the store sentinels so that
// callers never inspect engine-specific error types.
func classifyStoreError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
		case pgDuplicateTable, pgDuplicateObject:
			return fmt.Errorf("%w: %w", ErrDuplicateTable, err)
		}
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
		case pgDuplicateTable, pgDuplicateObject:
			return fmt.Errorf("%w: %w", ErrDuplicateTable, err)
		}
		return err
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint"), strings.Contains(msg, "duplicate key"):
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	case strings.Contains(msg, "already exists"):
		return fmt.Errorf("%w: %w", ErrDuplicateTable, err)
	}
	return err
}
