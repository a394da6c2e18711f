// Package fakeboard provides a fake coordination server for testing.
// It speaks the board server's contract: the /sse push channel with named
// JSON events, and the /api command endpoints answering {state} envelopes.
//
// There is no executable binary for this package; integration tests mount
// its handler on an httptest server.
package fakeboard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/boardsync/boardsync.go/pkg/models"
)

// DefaultLockTTL bounds how long an acquired card lock stays effective.
const DefaultLockTTL = 30 * time.Second

type frame struct {
	name string
	data []byte
}

// Server is an in-memory coordination server.
type Server struct {
	// LockTTL for freshly acquired locks.
	LockTTL time.Duration

	mu    sync.Mutex
	state *models.RootState
	subs  map[chan frame]struct{}

	// forcedErrors maps a command path to an error message; matching
	// requests are rejected with a 500 and {"error": msg}.
	forcedErrors map[string]string

	mux *http.ServeMux
}

// New creates a server owning a copy of the given initial state.
func New(initial *models.RootState) *Server {
	s := &Server{
		LockTTL:      DefaultLockTTL,
		state:        initial.Clone(),
		subs:         make(map[chan frame]struct{}),
		forcedErrors: make(map[string]string),
		mux:          http.NewServeMux(),
	}

	s.mux.HandleFunc("/sse", s.serveSSE)
	s.mux.HandleFunc("/api/state", s.handleState)
	s.mux.HandleFunc("/api/board/create", s.command(s.boardCreate))
	s.mux.HandleFunc("/api/board/delete", s.command(s.boardDelete))
	s.mux.HandleFunc("/api/list/add", s.command(s.listAdd))
	s.mux.HandleFunc("/api/list/rename", s.command(s.listRename))
	s.mux.HandleFunc("/api/list/delete", s.command(s.listDelete))
	s.mux.HandleFunc("/api/card/add", s.command(s.cardAdd))
	s.mux.HandleFunc("/api/card/update", s.command(s.cardUpdate))
	s.mux.HandleFunc("/api/card/delete", s.command(s.cardDelete))
	s.mux.HandleFunc("/api/card/move", s.command(s.cardMove))
	s.mux.HandleFunc("/api/lock/acquire", s.handleLockAcquire)
	s.mux.HandleFunc("/api/lock/release", s.handleLockRelease)
	s.mux.HandleFunc("/api/epic/create", s.command(s.epicCreate))
	s.mux.HandleFunc("/api/epic/update", s.command(s.epicUpdate))
	s.mux.HandleFunc("/api/sprint/create", s.command(s.sprintCreate))
	s.mux.HandleFunc("/api/sprint/update", s.command(s.sprintUpdate))
	s.mux.HandleFunc("/api/sprint/delete", s.command(s.sprintDelete))

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// State returns a copy of the server's current state.
func (s *Server) State() *models.RootState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// SetState replaces the server state and pushes a state_update.
func (s *Server) SetState(state *models.RootState) {
	s.mu.Lock()
	s.state = state.Clone()
	s.state.StateVersion++
	snapshot := s.state.Clone()
	s.mu.Unlock()
	s.broadcast("state_update", map[string]any{"data": snapshot})
}

// SetLock installs a lock directly, bypassing the protocol. For tests.
func (s *Server) SetLock(cardID, userID string, expiresAt time.Time) {
	s.mu.Lock()
	s.state.Locks[cardID] = models.Lock{UserID: userID, ExpiresAt: expiresAt}
	s.mu.Unlock()
	s.broadcast("card_locked", map[string]any{"data": map[string]any{
		"cardId": cardID, "userId": userID, "expiresAt": expiresAt,
	}})
}

// ForceError makes the given command path fail with a 500 and the message.
// An empty message clears the injection.
func (s *Server) ForceError(path, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg == "" {
		delete(s.forcedErrors, path)
		return
	}
	s.forcedErrors[path] = msg
}

// Subscribers returns how many push channels are currently open.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Server) subscribe() (chan frame, func()) {
	ch := make(chan frame, 32)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	return ch, func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
	}
}

func (s *Server) broadcast(name string, payload any) {
	data, _ := json.Marshal(payload)
	s.mu.Lock()
	for ch := range s.subs {
		select {
		case ch <- frame{name: name, data: data}:
		default: // drop if slow
		}
	}
	s.mu.Unlock()
}

func (s *Server) serveSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	ch, cancel := s.subscribe()
	defer cancel()

	s.mu.Lock()
	hello, _ := json.Marshal(map[string]any{
		"state":         s.state,
		"activeBoardId": s.state.ActiveBoardID,
	})
	s.mu.Unlock()
	writeEvent(w, "connected", hello)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case f := <-ch:
			writeEvent(w, f.name, f.data)
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, data []byte) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.mu.Lock()
		snapshot := s.state.Clone()
		s.mu.Unlock()
		writeJSON(w, map[string]any{"state": snapshot})
		return
	}

	s.command(func(body json.RawMessage) error {
		var req struct {
			State *models.RootState `json:"state"`
		}
		if err := json.Unmarshal(body, &req); err != nil || req.State == nil {
			return fmt.Errorf("missing state")
		}
		version := s.state.StateVersion
		s.state = req.State.Clone()
		s.state.StateVersion = version
		return nil
	})(w, r)
}

// command wraps a mutation: inject forced errors, decode the body, run the
// mutation under the lock, bump the state version, answer with the new
// canonical state and broadcast it as a state_update.
func (s *Server) command(mutate func(body json.RawMessage) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		forced := s.forcedErrors[r.URL.Path]
		s.mu.Unlock()
		if forced != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]any{"error": forced})
			return
		}

		var body json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		if err := mutate(body); err != nil {
			s.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{"error": err.Error()})
			return
		}
		s.state.StateVersion++
		snapshot := s.state.Clone()
		s.mu.Unlock()

		s.broadcast("state_update", map[string]any{"data": snapshot})
		writeJSON(w, map[string]any{"state": snapshot})
	}
}

func (s *Server) handleLockAcquire(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	var req struct {
		CardID string `json:"cardId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	now := time.Now()
	if lock, ok := s.state.Locks[req.CardID]; ok && lock.Live(now) && lock.UserID != userID {
		s.mu.Unlock()
		writeJSON(w, map[string]any{"success": false, "lockedBy": lock.UserID})
		return
	}
	expiresAt := now.Add(s.LockTTL)
	s.state.Locks[req.CardID] = models.Lock{UserID: userID, ExpiresAt: expiresAt}
	s.mu.Unlock()

	s.broadcast("card_locked", map[string]any{"data": map[string]any{
		"cardId": req.CardID, "userId": userID, "expiresAt": expiresAt,
	}})
	writeJSON(w, map[string]any{"success": true})
}

func (s *Server) handleLockRelease(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	var req struct {
		CardID string `json:"cardId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if lock, ok := s.state.Locks[req.CardID]; ok && lock.UserID == userID {
		delete(s.state.Locks, req.CardID)
	}
	s.mu.Unlock()

	s.broadcast("card_unlocked", map[string]any{"data": map[string]any{
		"cardId": req.CardID, "userId": userID,
	}})
	writeJSON(w, map[string]any{"success": true})
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}
