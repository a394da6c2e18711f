package boardsync

import (
	"context"
	"fmt"
	"time"

	"github.com/boardsync/boardsync.go/internal/rand"
	"github.com/boardsync/boardsync.go/pkg/models"
)

// Every mutation follows the same dual path: compute the new state locally
// and apply it immediately (write-through to the durable cache), then ask
// the server to confirm. A canonical state in the response supersedes the
// optimistic guess; a remote failure leaves the optimistic result in place
// and only sets the user-visible error.

const generatedIDLength = 8

// workflowLists builds the fixed five-stage list set for a workflow board.
func workflowLists(now time.Time) []*models.List {
	stages := []struct{ status, name string }{
		{models.StatusBacklog, "Backlog"},
		{models.StatusReadyForDev, "Ready for Dev"},
		{models.StatusInProgress, "In Progress"},
		{models.StatusReview, "Review"},
		{models.StatusDone, "Done"},
	}

	lists := make([]*models.List, 0, len(stages))
	for _, s := range stages {
		lists = append(lists, &models.List{
			ID:        rand.NewID(generatedIDLength),
			StatusID:  s.status,
			Name:      s.name,
			Cards:     []*models.Card{},
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return lists
}

// CreateBoard adds a board. A workflow board starts with the five fixed
// stage lists, a freeform board starts empty.
func (e *Engine) CreateBoard(ctx context.Context, name, boardType string) (*models.Board, error) {
	if boardType == "" {
		boardType = models.BoardTypeWorkflow
	}
	now := e.now()

	board := &models.Board{
		ID:        rand.NewID(generatedIDLength),
		Name:      name,
		Type:      boardType,
		Lists:     []*models.List{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if boardType == models.BoardTypeWorkflow {
		board.Lists = workflowLists(now)
	}

	version, err := e.applyLocal(func(s *models.RootState) error {
		s.Boards = append(s.Boards, board)
		if s.ActiveBoardID == "" {
			s.ActiveBoardID = board.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	created := e.State().Board(board.ID)
	if e.Connected() {
		e.confirm(e.client.CreateBoard(ctx, version, created))
	}
	return created, nil
}

// DeleteBoard removes a board and re-resolves the active selection.
func (e *Engine) DeleteBoard(ctx context.Context, boardID string) error {
	version, err := e.applyLocal(func(s *models.RootState) error {
		idx := -1
		for i, b := range s.Boards {
			if b.ID == boardID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrNoSuchBoard, boardID)
		}
		s.Boards = append(s.Boards[:idx], s.Boards[idx+1:]...)
		s.NormalizeActiveBoard(s.ActiveBoardID, "")
		return nil
	})
	if err != nil {
		return err
	}

	if e.Connected() {
		e.confirm(e.client.DeleteBoard(ctx, version, boardID))
	}
	return nil
}

// SelectBoard switches the active board. The selection is part of the
// shared root state and has no dedicated endpoint, so the full state is
// published to the authority.
func (e *Engine) SelectBoard(ctx context.Context, boardID string) error {
	version, err := e.applyLocal(func(s *models.RootState) error {
		if s.Board(boardID) == nil {
			return fmt.Errorf("%w: %s", ErrNoSuchBoard, boardID)
		}
		s.ActiveBoardID = boardID
		return nil
	})
	if err != nil {
		return err
	}

	if e.Connected() {
		e.confirm(e.client.SaveState(ctx, version, e.State()))
	}
	return nil
}

// AddList appends a list to a board.
func (e *Engine) AddList(ctx context.Context, boardID, name, color string) (*models.List, error) {
	now := e.now()
	list := &models.List{
		ID:        rand.NewID(generatedIDLength),
		Name:      name,
		Color:     color,
		Cards:     []*models.Card{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	version, err := e.applyLocal(func(s *models.RootState) error {
		b := s.Board(boardID)
		if b == nil {
			return fmt.Errorf("%w: %s", ErrNoSuchBoard, boardID)
		}
		b.Lists = append(b.Lists, list)
		b.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	created := e.State().Board(boardID).List(list.ID)
	if e.Connected() {
		e.confirm(e.client.AddList(ctx, version, boardID, created))
	}
	return created, nil
}

// RenameList renames a list.
func (e *Engine) RenameList(ctx context.Context, boardID, listID, name string) error {
	now := e.now()
	version, err := e.applyLocal(func(s *models.RootState) error {
		b := s.Board(boardID)
		if b == nil {
			return fmt.Errorf("%w: %s", ErrNoSuchBoard, boardID)
		}
		l := b.List(listID)
		if l == nil {
			return fmt.Errorf("%w: %s", ErrNoSuchList, listID)
		}
		l.Name = name
		l.UpdatedAt = now
		b.UpdatedAt = now
		return nil
	})
	if err != nil {
		return err
	}

	if e.Connected() {
		e.confirm(e.client.RenameList(ctx, version, boardID, listID, name))
	}
	return nil
}

// DeleteList removes a list and every card in it.
func (e *Engine) DeleteList(ctx context.Context, boardID, listID string) error {
	now := e.now()
	version, err := e.applyLocal(func(s *models.RootState) error {
		b := s.Board(boardID)
		if b == nil {
			return fmt.Errorf("%w: %s", ErrNoSuchBoard, boardID)
		}
		idx := -1
		for i, l := range b.Lists {
			if l.ID == listID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrNoSuchList, listID)
		}
		b.Lists = append(b.Lists[:idx], b.Lists[idx+1:]...)
		b.UpdatedAt = now
		return nil
	})
	if err != nil {
		return err
	}

	if e.Connected() {
		e.confirm(e.client.DeleteList(ctx, version, boardID, listID))
	}
	return nil
}
