// Package cache is the durable local fallback: a sqlite-backed key/value
// mirror holding the last-known root state and the stable user identifier.
//
// It is read at cold start before any connection attempt and written through
// on every accepted state change, so an offline restart still sees the most
// recent board.
package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/boardsync/boardsync.go/pkg/models"
)

// Well-known keys.
const (
	StateKey  = "state"
	UserIDKey = "userId"
)

// Store is the persistence interface the engine depends on.
// Abstracted for testability.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Put(key, value string) error
	Close() error
}

// SQLiteStore implements Store on a single-file sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing cache schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Get reads a value. ok is false when the key has never been written.
func (s *SQLiteStore) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading cache key %q: %w", key, err)
	}
	return value, true, nil
}

// Put writes or replaces a value.
func (s *SQLiteStore) Put(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("writing cache key %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// LoadState reads the cached root state. Returns (nil, nil) when no state
// has ever been cached.
func LoadState(s Store) (*models.RootState, error) {
	raw, ok, err := s.Get(StateKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var state models.RootState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("parsing cached state: %w", err)
	}
	if state.Locks == nil {
		state.Locks = map[string]models.Lock{}
	}
	return &state, nil
}

// SaveState mirrors the root state to durable storage as a single JSON blob.
func SaveState(s Store, state *models.RootState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	return s.Put(StateKey, string(data))
}
