package boardsync

import (
	"encoding/json"
	"time"

	"github.com/boardsync/boardsync.go/pkg/models"
)

// Named events carried by the push channel.
const (
	eventConnected    = "connected"
	eventStateUpdate  = "state_update"
	eventCardLocked   = "card_locked"
	eventCardUnlocked = "card_unlocked"
	eventCardMoved    = "card_moved"
	eventCardCreated  = "card_created"
	eventCardUpdated  = "card_updated"
	eventCardDeleted  = "card_deleted"
)

// handleEvent applies one inbound push event. Events arrive in order from a
// single read loop. A malformed payload is logged and dropped whole; the
// state is never left partially applied.
func (e *Engine) handleEvent(name string, data []byte) {
	switch name {
	case eventConnected:
		e.applyConnected(data)
	case eventStateUpdate:
		e.applyStateUpdate(data)
	case eventCardLocked:
		e.applyCardLocked(data)
	case eventCardUnlocked:
		e.applyCardUnlocked(data)
	case eventCardMoved, eventCardCreated, eventCardUpdated, eventCardDeleted:
		// Observational only: the authoritative change arrives via the
		// following state_update.
		e.logger.Info("card activity", "event", name)
	default:
		e.logger.Debug("ignoring unknown push event", "event", name)
	}
}

func (e *Engine) applyConnected(data []byte) {
	var payload struct {
		State         *models.RootState `json:"state"`
		ActiveBoardID string            `json:"activeBoardId"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.State == nil {
		e.logger.Warn("dropping malformed connected payload", "error", err)
		return
	}

	incoming := payload.ActiveBoardID
	if incoming == "" {
		incoming = payload.State.ActiveBoardID
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.replaceStateLocked(payload.State, "", incoming)
}

func (e *Engine) applyStateUpdate(data []byte) {
	var payload struct {
		Data *models.RootState `json:"data"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.Data == nil {
		e.logger.Warn("dropping malformed state_update payload", "error", err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// Active-board continuity: keep the current selection when it survives
	// the snapshot, otherwise defer to the incoming choice.
	e.replaceStateLocked(payload.Data, e.state.ActiveBoardID, payload.Data.ActiveBoardID)
}

type lockEventPayload struct {
	Data struct {
		CardID    string    `json:"cardId"`
		UserID    string    `json:"userId"`
		ExpiresAt time.Time `json:"expiresAt"`
	} `json:"data"`
}

// Lock events patch only the lock map. Lock churn is high-frequency; a full
// state replace per lock would be wasteful, and the cache stays untouched
// because every lock read is expiry-aware anyway.
func (e *Engine) applyCardLocked(data []byte) {
	var payload lockEventPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Data.CardID == "" {
		e.logger.Warn("dropping malformed card_locked payload", "error", err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Locks[payload.Data.CardID] = models.Lock{
		UserID:    payload.Data.UserID,
		ExpiresAt: payload.Data.ExpiresAt,
	}
}

func (e *Engine) applyCardUnlocked(data []byte) {
	var payload lockEventPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Data.CardID == "" {
		e.logger.Warn("dropping malformed card_unlocked payload", "error", err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.state.Locks, payload.Data.CardID)
}
