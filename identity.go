package boardsync

import (
	"github.com/boardsync/boardsync.go/internal/rand"
	"github.com/boardsync/boardsync.go/pkg/cache"
)

// GetOrCreateUserID returns the stable pseudo-random identifier that
// attributes this client's locks and edits. The first call on a fresh cache
// mints "user-" plus eight hex characters and persists it; later calls read
// it back unchanged.
func GetOrCreateUserID(store cache.Store) (string, error) {
	id, ok, err := store.Get(cache.UserIDKey)
	if err != nil {
		return "", err
	}
	if ok && id != "" {
		return id, nil
	}

	id = "user-" + rand.NewHexID(8)
	if err := store.Put(cache.UserIDKey, id); err != nil {
		return "", err
	}
	return id, nil
}
