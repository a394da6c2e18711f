package boardsync

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrNoSuchBoard  = errors.New("no such board")
	ErrNoSuchList   = errors.New("no such list")
	ErrNoSuchCard   = errors.New("no such card")
	ErrNoSuchEpic   = errors.New("no such epic")
	ErrNoSuchSprint = errors.New("no such sprint")
)

// LockedError reports that a card mutation was rejected because another
// identity holds a live lock on the card.
type LockedError struct {
	CardID   string
	LockedBy string
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("card %s is locked by %s", e.CardID, e.LockedBy)
}

// CommandError is a non-2xx rejection from the coordination server, carrying
// the server's error message when one could be parsed from the body.
type CommandError struct {
	StatusCode int
	Message    string
}

func (e *CommandError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("command rejected (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("command rejected (status %d)", e.StatusCode)
}
