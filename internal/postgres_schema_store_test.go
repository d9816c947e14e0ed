package internal

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lychee-technology/sweet"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recordColumns = []string{"id", "name", "description", "jsonschema", "is_active", "created_at", "updated_at"}

func TestPostgresSchemaStore_InsertSchema(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.MatchExpectationsInOrder(true)

	store := NewPostgresSchemaStore(mock, "sweet_schemas")
	fixed := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	store.withClock(func() time.Time { return fixed })

	rec := &sweet.SchemaRecord{
		Name:        "people",
		Description: "People",
		JSONSchema:  map[string]any{"name": "people"},
	}

	insertQuery := newRegistrySQL("sweet_schemas", sweet.DialectPostgreSQL).insert()
	mock.ExpectBegin()
	mock.ExpectQuery("^"+regexp.QuoteMeta(insertQuery)+"$").
		WithArgs("people", "People", `{"name":"people"}`, false, fixed.UnixMilli(), fixed.UnixMilli()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectCommit()
	mock.ExpectRollback()

	err = store.WithTx(ctx, func(tx StoreTx) error {
		return tx.InsertSchema(ctx, rec)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), rec.ID)
	assert.Equal(t, fixed, rec.CreatedAt)
	assert.Equal(t, fixed, rec.UpdatedAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSchemaStore_InsertUniqueViolation(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.MatchExpectationsInOrder(true)

	store := NewPostgresSchemaStore(mock, "sweet_schemas")

	mock.ExpectBegin()
	mock.ExpectQuery(`^INSERT INTO "sweet_schemas"`).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation, Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	err = store.WithTx(ctx, func(tx StoreTx) error {
		return tx.InsertSchema(ctx, &sweet.SchemaRecord{Name: "people", JSONSchema: map[string]any{}})
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUniqueViolation))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSchemaStore_GetAndList(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.MatchExpectationsInOrder(true)

	store := NewPostgresSchemaStore(mock, "sweet_schemas")
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM "sweet_schemas" WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows(recordColumns).
			AddRow(int64(3), "people", "People", []byte(`{"name":"people"}`), true, created.UnixMilli(), created.UnixMilli()))
	mock.ExpectQuery(`FROM "sweet_schemas" WHERE name = \$1`).
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows(recordColumns))
	mock.ExpectQuery(`FROM "sweet_schemas" ORDER BY id`).
		WillReturnRows(pgxmock.NewRows(recordColumns).
			AddRow(int64(3), "people", "People", []byte(`{"name":"people"}`), true, created.UnixMilli(), created.UnixMilli()).
			AddRow(int64(4), "teams", "", []byte(`{"name":"teams"}`), false, created.UnixMilli(), created.UnixMilli()))
	mock.ExpectCommit()
	mock.ExpectRollback()

	err = store.WithTx(ctx, func(tx StoreTx) error {
		rec, err := tx.GetSchema(ctx, sweet.ByID(3))
		require.NoError(t, err)
		assert.Equal(t, "people", rec.Name)
		assert.True(t, rec.IsActive)
		assert.Equal(t, map[string]any{"name": "people"}, rec.JSONSchema)
		assert.Equal(t, created, rec.CreatedAt)

		_, err = tx.GetSchema(ctx, sweet.ByName("ghost"))
		assert.ErrorIs(t, err, ErrRecordNotFound)

		all, err := tx.ListSchemas(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "teams", all[1].Name)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSchemaStore_DeleteAndSetActive(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.MatchExpectationsInOrder(true)

	store := NewPostgresSchemaStore(mock, "sweet_schemas")
	fixed := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	store.withClock(func() time.Time { return fixed })

	mock.ExpectBegin()
	mock.ExpectExec(`^UPDATE "sweet_schemas" SET is_active = \$1, updated_at = \$2 WHERE id = \$3$`).
		WithArgs(true, fixed.UnixMilli(), int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`^DELETE FROM "sweet_schemas" WHERE id = \$1$`).
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`^DELETE FROM "sweet_schemas" WHERE id = \$1$`).
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCommit()
	mock.ExpectRollback()

	err = store.WithTx(ctx, func(tx StoreTx) error {
		ok, err := tx.SetSchemaActive(ctx, 3, true)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = tx.DeleteSchema(ctx, 3)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = tx.DeleteSchema(ctx, 3)
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSchemaStore_Catalog(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.MatchExpectationsInOrder(true)

	store := NewPostgresSchemaStore(mock, "sweet_schemas")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT table_name FROM information_schema.tables`).
		WillReturnRows(pgxmock.NewRows([]string{"table_name"}).AddRow("people").AddRow("sweet_schemas"))
	mock.ExpectQuery(`SELECT column_name FROM information_schema.columns`).
		WithArgs("people").
		WillReturnRows(pgxmock.NewRows([]string{"column_name"}).AddRow("id_").AddRow("id"))
	mock.ExpectCommit()
	mock.ExpectRollback()

	err = store.WithTx(ctx, func(tx StoreTx) error {
		ok, err := TableExists(ctx, tx, "people")
		require.NoError(t, err)
		assert.True(t, ok)

		cols, err := tx.TableColumns(ctx, "people")
		require.NoError(t, err)
		assert.Equal(t, []string{"id_", "id"}, cols)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSchemaStore_EnsureSchemaTable(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.MatchExpectationsInOrder(true)

	store := NewPostgresSchemaStore(mock, "sweet_schemas")
	assert.Equal(t, sweet.DialectPostgreSQL, store.Dialect())

	mock.ExpectBegin()
	mock.ExpectExec(`^CREATE TABLE IF NOT EXISTS "sweet_schemas"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCommit()
	mock.ExpectRollback()

	require.NoError(t, store.EnsureSchemaTable(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSchemaStore_RollsBackOnCallbackError(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.MatchExpectationsInOrder(true)

	store := NewPostgresSchemaStore(mock, "sweet_schemas")

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = store.WithTx(ctx, func(tx StoreTx) error { return boom })
	assert.ErrorIs(t, err, boom)

	require.NoError(t, mock.ExpectationsWereMet())
}
