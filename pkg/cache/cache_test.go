package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardsync/boardsync.go/pkg/models"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreRoundtrip(t *testing.T) {
	store := openTestStore(t)

	_, ok, err := store.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put("k", "v1"))
	v, ok, err := store.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1", v)

	// Put replaces.
	require.NoError(t, store.Put("k", "v2"))
	v, _, err = store.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}

func TestStateRoundtrip(t *testing.T) {
	store := openTestStore(t)

	loaded, err := LoadState(store)
	require.NoError(t, err)
	assert.Nil(t, loaded, "fresh cache holds no state")

	state := models.Bootstrap(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	state.StateVersion = 7
	require.NoError(t, SaveState(store, state))

	loaded, err = LoadState(store)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, int64(7), loaded.StateVersion)
	assert.Equal(t, "main", loaded.ActiveBoardID)
	require.Len(t, loaded.Boards, 1)
	assert.Len(t, loaded.Boards[0].Lists, 5)
	assert.NotNil(t, loaded.Locks)
}

func TestLoadStateCorrupt(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Put(StateKey, "{not json"))

	_, err := LoadState(store)
	require.Error(t, err)
}

func TestStateSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	store, err := Open(path)
	require.NoError(t, err)

	state := models.Bootstrap(time.Now())
	require.NoError(t, SaveState(store, state))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := LoadState(reopened)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "main", loaded.ActiveBoardID)
}
