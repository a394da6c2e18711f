package boardsync

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/boardsync/boardsync.go/pkg/cache"
	"github.com/boardsync/boardsync.go/pkg/connection"
	"github.com/boardsync/boardsync.go/pkg/logger"
	"github.com/boardsync/boardsync.go/pkg/models"
)

// DefaultServerBaseURL is the loopback coordination server port used when
// Config.ServerBaseURL is empty.
const DefaultServerBaseURL = "http://127.0.0.1:3456"

// DefaultCachePath is the durable cache location used when Config.CachePath
// is empty and no Store is injected.
const DefaultCachePath = "boardsync.db"

// Config configures an Engine.
type Config struct {
	// ServerBaseURL of the coordination server.
	ServerBaseURL string

	// CachePath is the sqlite file backing the durable local fallback.
	// Ignored when Store is set.
	CachePath string

	// Store overrides the durable cache, mainly for tests. The engine does
	// not close an injected store.
	Store cache.Store

	// UserID overrides the persisted identity. Normally left empty so the
	// engine reads or mints the stable id itself.
	UserID string

	Logger logger.Logger

	// HTTPClient used for command requests. The push channel always uses
	// its own timeout-free client.
	HTTPClient *http.Client

	// Retryer overrides the reconnection backoff, mainly for tests.
	Retryer connection.Retryer

	// StartLocalServer lets the host application spawn a local coordination
	// server before each dial. Best-effort, failures are ignored.
	StartLocalServer func(context.Context) error
}

// Engine is the shared-board synchronization engine: the single state
// container holding the board document, the lock mirror, the push channel
// and the durable fallback. Construct with New, inject where needed, tear
// down with Close.
type Engine struct {
	userID  string
	logger  logger.Logger
	client  *Client
	channel *connection.Channel

	store    cache.Store
	ownStore bool

	mu        sync.Mutex
	state     *models.RootState
	connected bool
	lastErr   string

	// now is replaceable in tests.
	now func() time.Time
}

// New builds an Engine: opens (or adopts) the durable cache, resolves the
// stable user identity, loads the last-known state or bootstraps the default
// board, and prepares the push channel. No network traffic happens until
// Connect.
func New(cfg Config) (*Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = logger.New(nil)
	}

	baseURL := cfg.ServerBaseURL
	if baseURL == "" {
		baseURL = GetEnvOrDefault("BOARDSYNC_SERVER_URL", DefaultServerBaseURL)
	}

	store := cfg.Store
	ownStore := false
	if store == nil {
		path := cfg.CachePath
		if path == "" {
			path = GetEnvOrDefault("BOARDSYNC_CACHE_PATH", DefaultCachePath)
		}
		var err error
		store, err = cache.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening durable cache: %w", err)
		}
		ownStore = true
	}

	userID := cfg.UserID
	if userID == "" {
		var err error
		userID, err = GetOrCreateUserID(store)
		if err != nil {
			if ownStore {
				store.Close()
			}
			return nil, fmt.Errorf("resolving user identity: %w", err)
		}
	}

	e := &Engine{
		userID:   userID,
		logger:   log,
		store:    store,
		ownStore: ownStore,
		now:      time.Now,
	}

	state, err := cache.LoadState(store)
	if err != nil {
		log.Warn("cached state unreadable, starting from the default board", "error", err)
		state = nil
	}
	if state == nil {
		state = models.Bootstrap(e.now())
		if err := cache.SaveState(store, state); err != nil {
			log.Warn("cache write failed", "error", err)
		}
	}
	e.state = state

	e.client = NewClient(baseURL, userID, cfg.HTTPClient)
	e.channel = connection.NewChannel(connection.Config{
		BaseURL:          baseURL,
		UserID:           userID,
		Retryer:          cfg.Retryer,
		Logger:           log,
		StartLocalServer: cfg.StartLocalServer,
		OnEvent:          e.handleEvent,
		OnUp:             e.handleUp,
		OnDown:           e.handleDown,
		OnFatal:          e.handleFatal,
	})

	return e, nil
}

// UserID returns the stable identity attributed to this client's edits.
func (e *Engine) UserID() string {
	return e.userID
}

// Connect opens the push channel. Failures schedule background retries; an
// exhausted retry schedule surfaces through Err until Connect is called again.
func (e *Engine) Connect(ctx context.Context) error {
	return e.channel.Connect(ctx)
}

// Disconnect closes the push channel and switches the engine to local-only
// operation. Mutations keep applying against the durable cache.
func (e *Engine) Disconnect() {
	e.channel.Disconnect()
	e.mu.Lock()
	e.connected = false
	e.mu.Unlock()
}

// Close tears the engine down: channel first, then the cache handle if the
// engine opened it.
func (e *Engine) Close() error {
	e.channel.Close()
	e.mu.Lock()
	e.connected = false
	e.mu.Unlock()
	if e.ownStore {
		return e.store.Close()
	}
	return nil
}

// Connected reports whether the push channel is currently open.
func (e *Engine) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected
}

// ReconnectAttempts returns the current retry count of the push channel.
func (e *Engine) ReconnectAttempts() int {
	return e.channel.ReconnectAttempts()
}

// Err returns the current user-visible transient error, or "".
func (e *Engine) Err() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// ClearErr dismisses the user-visible error.
func (e *Engine) ClearErr() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastErr = ""
}

func (e *Engine) setErr(msg string) {
	e.mu.Lock()
	e.lastErr = msg
	e.mu.Unlock()
}

// State returns a deep-copy snapshot of the root state. Callers can read it
// freely; mutations only happen through engine operations.
func (e *Engine) State() *models.RootState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// ActiveBoard returns a snapshot of the currently selected board, or nil
// when no board exists.
func (e *Engine) ActiveBoard() *models.Board {
	s := e.State()
	return s.Board(s.ActiveBoardID)
}

func (e *Engine) handleUp() {
	e.mu.Lock()
	e.connected = true
	e.mu.Unlock()
}

func (e *Engine) handleDown(err error) {
	e.mu.Lock()
	e.connected = false
	e.mu.Unlock()
}

func (e *Engine) handleFatal(err error) {
	e.setErr(err.Error())
}

// applyLocal runs an optimistic mutation against the root state under the
// engine lock, then writes through to the durable cache. It returns the
// state version the mutation was based on, for echoing to the server.
func (e *Engine) applyLocal(mutate func(s *models.RootState) error) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	version := e.state.StateVersion
	if err := mutate(e.state); err != nil {
		return version, err
	}
	e.writeThroughLocked()
	return version, nil
}

// writeThroughLocked mirrors the state to the cache. Best-effort: a failing
// disk never blocks a mutation.
func (e *Engine) writeThroughLocked() {
	if err := cache.SaveState(e.store, e.state); err != nil {
		e.logger.Warn("cache write failed", "error", err)
	}
}

// confirm reconciles a command response with the optimistic local state.
// A canonical state in the response replaces the local guess wholesale;
// failures only surface as the user-visible error, the optimistic mutation
// stays applied.
func (e *Engine) confirm(resp *CommandResponse, err error) {
	if err != nil {
		e.logger.Warn("remote command failed", "error", err)
		e.setErr(err.Error())
		return
	}
	if resp.Error != "" {
		e.setErr(resp.Error)
	}
	if resp.State == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	previous := e.state.ActiveBoardID
	e.replaceStateLocked(resp.State, previous, resp.State.ActiveBoardID)
}

// replaceStateLocked installs a canonical snapshot, normalizes the active
// board selection and mirrors the result. Callers must hold e.mu.
func (e *Engine) replaceStateLocked(next *models.RootState, previousActive, incomingActive string) {
	if next.Locks == nil {
		next.Locks = map[string]models.Lock{}
	}
	e.state = next
	e.state.NormalizeActiveBoard(previousActive, incomingActive)
	e.writeThroughLocked()
}

// Resync fetches the full canonical state from the server, replacing the
// local state and healing the lock mirror.
func (e *Engine) Resync(ctx context.Context) error {
	resp, err := e.client.FetchState(ctx)
	if err != nil {
		e.setErr(err.Error())
		return err
	}
	if resp.State == nil {
		err := fmt.Errorf("resync response carried no state")
		e.setErr(err.Error())
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.replaceStateLocked(resp.State, e.state.ActiveBoardID, resp.State.ActiveBoardID)
	return nil
}
