package internal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lychee-technology/sweet"
)

// SQLSchemaStore keeps the registry in any database/sql backend: sqlite,
// DuckDB, or PostgreSQL through lib/pq.
type SQLSchemaStore struct {
	db      *sql.DB
	dialect sweet.Dialect
	sql     registrySQL
	nowFunc func() time.Time
}

func NewSQLSchemaStore(db *sql.DB, dialect sweet.Dialect, schemaTable string) (*SQLSchemaStore, error) {
	if _, err := CapabilitiesOf(dialect); err != nil {
		return nil, err
	}
	if db == nil {
		return nil, fmt.Errorf("sql schema store: db cannot be nil")
	}
	return &SQLSchemaStore{
		db:      db,
		dialect: dialect,
		sql:     newRegistrySQL(schemaTable, dialect),
		nowFunc: time.Now,
	}, nil
}

func (s *SQLSchemaStore) withClock(now func() time.Time) {
	if now == nil {
		return
	}
	s.nowFunc = now
}

func (s *SQLSchemaStore) Dialect() sweet.Dialect { return s.dialect }

// DB exposes the underlying handle for health checks.
func (s *SQLSchemaStore) DB() *sql.DB { return s.db }

func (s *SQLSchemaStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLSchemaStore) Close() error {
	return s.db.Close()
}

func (s *SQLSchemaStore) EnsureSchemaTable(ctx context.Context) error {
	return s.WithTx(ctx, func(tx StoreTx) error {
		for _, stmt := range s.sql.createTable() {
			if err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("ensure schema registry table: %w", err)
			}
		}
		return nil
	})
}

func (s *SQLSchemaStore) WithTx(ctx context.Context, fn func(tx StoreTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	if err := fn(&sqlStoreTx{tx: tx, dialect: s.dialect, sql: s.sql, now: s.nowFunc}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", classifyStoreError(err))
	}
	return nil
}

type sqlStoreTx struct {
	tx      *sql.Tx
	dialect sweet.Dialect
	sql     registrySQL
	now     func() time.Time
}

func (t *sqlStoreTx) Dialect() sweet.Dialect { return t.dialect }

func (t *sqlStoreTx) InsertSchema(ctx context.Context, rec *sweet.SchemaRecord) error {
	doc, err := encodeDocument(rec.JSONSchema)
	if err != nil {
		return err
	}
	now := t.now().UTC().Truncate(time.Millisecond)
	millis := now.UnixMilli()

	var id int64
	err = t.tx.QueryRowContext(ctx, t.sql.insert(), rec.Name, rec.Description, doc, rec.IsActive, millis, millis).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert schema %s: %w", rec.Name, classifyStoreError(err))
	}
	rec.ID = id
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return nil
}

func (t *sqlStoreTx) GetSchema(ctx context.Context, sel sweet.SchemaSelector) (*sweet.SchemaRecord, error) {
	query, arg := t.sql.selectBy(sel)
	rec, err := scanRecord(t.tx.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get schema %s: %w", sel, err)
	}
	return rec, nil
}

func (t *sqlStoreTx) ListSchemas(ctx context.Context) ([]sweet.SchemaRecord, error) {
	rows, err := t.tx.QueryContext(ctx, t.sql.list())
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	defer rows.Close()

	var out []sweet.SchemaRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schema: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schemas: %w", err)
	}
	return out, nil
}

func (t *sqlStoreTx) DeleteSchema(ctx context.Context, id int64) (bool, error) {
	res, err := t.tx.ExecContext(ctx, t.sql.delete(), id)
	if err != nil {
		return false, fmt.Errorf("delete schema %d: %w", id, err)
	}
	return rowsAffected(res)
}

func (t *sqlStoreTx) SetSchemaActive(ctx context.Context, id int64, active bool) (bool, error) {
	res, err := t.tx.ExecContext(ctx, t.sql.setActive(), active, t.now().UnixMilli(), id)
	if err != nil {
		return false, fmt.Errorf("update schema %d: %w", id, err)
	}
	return rowsAffected(res)
}

func (t *sqlStoreTx) TableNames(ctx context.Context) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx, t.sql.tableNames())
	if err != nil {
		return nil, fmt.Errorf("query catalog tables: %w", err)
	}
	return collectStrings(rows)
}

func (t *sqlStoreTx) TableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx, t.sql.tableColumns(), table)
	if err != nil {
		return nil, fmt.Errorf("query catalog columns of %s: %w", table, err)
	}
	return collectStrings(rows)
}

func (t *sqlStoreTx) Exec(ctx context.Context, stmt string) error {
	if _, err := t.tx.ExecContext(ctx, stmt); err != nil {
		return classifyStoreError(err)
	}
	return nil
}

func collectStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func rowsAffected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
