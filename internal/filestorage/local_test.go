package filestorage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(filepath.Join(t.TempDir(), "archive"))
	require.NoError(t, err)

	key, err := store.Save(ctx, "schemas/people", []byte("name: people"))
	require.NoError(t, err)
	assert.Equal(t, "schemas/people", key)

	ok, err := store.Exists(ctx, "schemas/people")
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := store.Load(ctx, "schemas/people")
	require.NoError(t, err)
	assert.Equal(t, "name: people", string(data))

	_, err = store.Save(ctx, "schemas/people", []byte("name: people2"))
	require.NoError(t, err)
	data, err = store.Load(ctx, "schemas/people")
	require.NoError(t, err)
	assert.Equal(t, "name: people2", string(data), "save replaces")

	deleted, err := store.Delete(ctx, "schemas/people")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.Delete(ctx, "schemas/people")
	require.NoError(t, err)
	assert.False(t, deleted, "second delete reports nothing removed")

	_, err = store.Load(ctx, "schemas/people")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorage_List(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, k := range []string{"schemas/orders", "schemas/people", "other/x"} {
		_, err := store.Save(ctx, k, []byte(k))
		require.NoError(t, err)
	}

	keys, err := store.List(ctx, "schemas/")
	require.NoError(t, err)
	assert.Equal(t, []string{"schemas/orders", "schemas/people"}, keys)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "  ", "../outside", "schemas/../../outside", "."} {
		_, err := store.Save(ctx, key, []byte("x"))
		assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
	}
}

func TestNewLocalStorage_EmptyPath(t *testing.T) {
	_, err := NewLocalStorage("")
	require.Error(t, err)
}
