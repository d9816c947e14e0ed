package internal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lychee-technology/sweet"
)

type schemaStorePool interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresSchemaStore keeps the registry in PostgreSQL through a pgx pool.
type PostgresSchemaStore struct {
	pool    schemaStorePool
	sql     registrySQL
	nowFunc func() time.Time
}

func NewPostgresSchemaStore(pool schemaStorePool, schemaTable string) *PostgresSchemaStore {
	return &PostgresSchemaStore{
		pool:    pool,
		sql:     newRegistrySQL(schemaTable, sweet.DialectPostgreSQL),
		nowFunc: time.Now,
	}
}

func (s *PostgresSchemaStore) withClock(now func() time.Time) {
	if now == nil {
		return
	}
	s.nowFunc = now
}

func (s *PostgresSchemaStore) Dialect() sweet.Dialect { return sweet.DialectPostgreSQL }

func (s *PostgresSchemaStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresSchemaStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresSchemaStore) EnsureSchemaTable(ctx context.Context) error {
	return s.WithTx(ctx, func(tx StoreTx) error {
		for _, stmt := range s.sql.createTable() {
			if err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("ensure schema registry table: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresSchemaStore) WithTx(ctx context.Context, fn func(tx StoreTx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op if committed

	if err := fn(&pgxStoreTx{tx: tx, sql: s.sql, now: s.nowFunc}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", classifyStoreError(err))
	}
	return nil
}

type pgxStoreTx struct {
	tx  pgx.Tx
	sql registrySQL
	now func() time.Time
}

func (t *pgxStoreTx) Dialect() sweet.Dialect { return sweet.DialectPostgreSQL }

func (t *pgxStoreTx) InsertSchema(ctx context.Context, rec *sweet.SchemaRecord) error {
	doc, err := encodeDocument(rec.JSONSchema)
	if err != nil {
		return err
	}
	now := t.now().UTC().Truncate(time.Millisecond)
	millis := now.UnixMilli()

	var id int64
	err = t.tx.QueryRow(ctx, t.sql.insert(), rec.Name, rec.Description, doc, rec.IsActive, millis, millis).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert schema %s: %w", rec.Name, classifyStoreError(err))
	}
	rec.ID = id
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return nil
}

func (t *pgxStoreTx) GetSchema(ctx context.Context, sel sweet.SchemaSelector) (*sweet.SchemaRecord, error) {
	query, arg := t.sql.selectBy(sel)
	rec, err := scanRecord(t.tx.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get schema %s: %w", sel, err)
	}
	return rec, nil
}

func (t *pgxStoreTx) ListSchemas(ctx context.Context) ([]sweet.SchemaRecord, error) {
	rows, err := t.tx.Query(ctx, t.sql.list())
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

func (t *pgxStoreTx) DeleteSchema(ctx context.Context, id int64) (bool, error) {
	tag, err := t.tx.Exec(ctx, t.sql.delete(), id)
	if err != nil {
		return false, fmt.Errorf("delete schema %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (t *pgxStoreTx) SetSchemaActive(ctx context.Context, id int64, active bool) (bool, error) {
	tag, err := t.tx.Exec(ctx, t.sql.setActive(), active, t.now().UnixMilli(), id)
	if err != nil {
		return false, fmt.Errorf("update schema %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (t *pgxStoreTx) TableNames(ctx context.Context) ([]string, error) {
	rows, err := t.tx.Query(ctx, t.sql.tableNames())
	if err != nil {
		return nil, fmt.Errorf("query catalog tables: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (t *pgxStoreTx) TableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := t.tx.Query(ctx, t.sql.tableColumns(), table)
	if err != nil {
		return nil, fmt.Errorf("query catalog columns of %s: %w", table, err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (t *pgxStoreTx) Exec(ctx context.Context, stmt string) error {
	if _, err := t.tx.Exec(ctx, stmt); err != nil {
		return classifyStoreError(err)
	}
	return nil
}
