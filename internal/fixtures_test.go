package internal

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/lychee-technology/sweet"
	"github.com/lychee-technology/sweet/internal/filestorage"
	"github.com/stretchr/testify/require"
)

const peopleSchemaJSON = `{
  "name": "people",
  "description": "People and their managers",
  "fields": [
    {"name": "id", "type": "integer", "constraints": {"required": true}},
    {"name": "full_name", "type": "string", "constraints": {"required": true}},
    {"name": "email", "type": "string", "constraints": {"unique": true}},
    {"name": "manager_id", "type": "integer"}
  ],
  "primaryKey": "id",
  "foreignKeys": [
    {"fields": "manager_id", "reference": {"resource": "", "fields": "id"}}
  ]
}`

const peopleSchemaYAML = `
name: people
description: People and their managers
fields:
  - name: id
    type: integer
    constraints:
      required: true
  - name: full_name
    type: string
    constraints:
      required: true
  - name: email
    type: string
    constraints:
      unique: true
  - name: manager_id
    type: integer
primaryKey: id
foreignKeys:
  - fields: manager_id
    reference:
      resource: ""
      fields: id
`

// referencingSchema builds a two-column schema whose ref_id points at
// target.id. An empty target produces a schema without foreign keys.
func referencingSchema(name, target string) string {
	if target == "" {
		return fmt.Sprintf(`{
  "name": %q,
  "description": "table %s",
  "fields": [
    {"name": "id", "type": "integer", "constraints": {"required": true}},
    {"name": "label", "type": "string"}
  ],
  "primaryKey": ["id"]
}`, name, name)
	}
	return fmt.Sprintf(`{
  "name": %q,
  "description": "table %s",
  "fields": [
    {"name": "id", "type": "integer", "constraints": {"required": true}},
    {"name": "ref_id", "type": "integer"}
  ],
  "primaryKey": ["id"],
  "foreignKeys": [
    {"fields": ["ref_id"], "reference": {"resource": %q, "fields": ["id"]}}
  ]
}`, name, name, target)
}

func newTestValidator(t *testing.T) *SchemaValidator {
	t.Helper()
	meta, err := NewMetaSchema(nil, nil)
	require.NoError(t, err)
	return NewSchemaValidator(meta)
}

func newTestSQLiteStore(t *testing.T) *SQLSchemaStore {
	t.Helper()
	ctx := context.Background()
	db, err := OpenSQLite(ctx, sweet.SQLiteConfig{Path: filepath.Join(t.TempDir(), "sweet.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewSQLSchemaStore(db, sweet.DialectSQLite, "sweet_schemas")
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchemaTable(ctx))
	return store
}

type testManager struct {
	sweet.SchemaManager
	store   *SQLSchemaStore
	archive *filestorage.LocalStorage
}

func newTestManager(t *testing.T) *testManager {
	t.Helper()
	store := newTestSQLiteStore(t)
	archive, err := filestorage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return &testManager{
		SchemaManager: NewSchemaManager(newTestValidator(t), store, archive, nil),
		store:         store,
		archive:       archive,
	}
}

func (m *testManager) mustCreate(t *testing.T, raw string) *sweet.SchemaRecord {
	t.Helper()
	rec, err := m.CreateSchema(context.Background(), []byte(raw))
	require.NoError(t, err)
	return rec
}

func (m *testManager) tables(t *testing.T) []string {
	t.Helper()
	var names []string
	err := m.store.WithTx(context.Background(), func(tx StoreTx) error {
		var err error
		names, err = tx.TableNames(context.Background())
		return err
	})
	require.NoError(t, err)
	return names
}

func (m *testManager) columns(t *testing.T, table string) []string {
	t.Helper()
	var cols []string
	err := m.store.WithTx(context.Background(), func(tx StoreTx) error {
		var err error
		cols, err = tx.TableColumns(context.Background(), table)
		return err
	})
	require.NoError(t, err)
	return cols
}

func requireSweetError(t *testing.T, err error, typ sweet.ErrorType, code string) *sweet.SweetError {
	t.Helper()
	require.Error(t, err)
	se, ok := sweet.AsSweetError(err)
	require.Truef(t, ok, "expected SweetError, got %T: %v", err, err)
	require.Equal(t, typ, se.Type, "error: %v", err)
	if code != "" {
		require.Equal(t, code, se.Code, "error: %v", err)
	}
	return se
}
