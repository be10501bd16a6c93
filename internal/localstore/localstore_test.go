package localstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *Store {
	store, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_SetAndGet(t *testing.T) {
	store := setupStore(t)

	require.NoError(t, store.Set(KeyToken, "abc123"))

	got, err := store.Get(KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "abc123", got)
}

func TestStore_GetMissingKey(t *testing.T) {
	store := setupStore(t)

	_, err := store.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SetOverwrites(t *testing.T) {
	store := setupStore(t)

	require.NoError(t, store.Set(KeyUseProxy, "true"))
	require.NoError(t, store.Set(KeyUseProxy, "false"))

	got, err := store.Get(KeyUseProxy)
	require.NoError(t, err)
	assert.Equal(t, "false", got)
}

func TestStore_DeleteMultipleKeys(t *testing.T) {
	store := setupStore(t)

	require.NoError(t, store.Set(KeyToken, "t"))
	require.NoError(t, store.Set(KeyUser, "u"))
	require.NoError(t, store.Set(KeyExpiration, "123"))

	require.NoError(t, store.Delete(KeyToken, KeyUser, KeyExpiration))

	for _, key := range []string{KeyToken, KeyUser, KeyExpiration} {
		_, err := store.Get(key)
		assert.ErrorIs(t, err, ErrNotFound, "key %s should be gone", key)
	}
}

func TestStore_DeleteMissingKeyIsNotAnError(t *testing.T) {
	store := setupStore(t)
	assert.NoError(t, store.Delete("never-set"))
}

func TestStore_ValuesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(KeyToken, "persisted"))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got)
}
