package boardsync

import (
	"context"
	"fmt"

	"github.com/boardsync/boardsync.go/pkg/models"
)

// CardInput is the caller-provided content of a new card. The engine owns
// id assignment and timestamps.
type CardInput struct {
	Title       string
	Description string
	Points      int
	Assignee    string
	Priority    string
	EpicID      string
	SprintID    string
	Labels      []string
	Attachments []models.Attachment
	Status      string
}

// CardPatch updates individual card fields; nil pointers leave the field
// untouched. Labels and Attachments replace wholesale when non-nil.
type CardPatch struct {
	Title       *string             `json:"title,omitempty"`
	Description *string             `json:"description,omitempty"`
	Points      *int                `json:"points,omitempty"`
	Assignee    *string             `json:"assignee,omitempty"`
	Priority    *string             `json:"priority,omitempty"`
	EpicID      *string             `json:"epicId,omitempty"`
	SprintID    *string             `json:"sprintId,omitempty"`
	Labels      []string            `json:"labels,omitempty"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
	Status      *string             `json:"status,omitempty"`
}

// reidentifyAttachments rewrites attachment ids as "{cardId}-{n}" with a
// 1-based sequence, discarding whatever ids they carried before. Applied on
// every card write.
func reidentifyAttachments(card *models.Card) {
	for i := range card.Attachments {
		card.Attachments[i].ID = fmt.Sprintf("%s-%d", card.ID, i+1)
	}
}

// AddCard creates a card at the end of a list. The id is derived locally as
// max(existing numeric ids)+1 across the whole state, so the optimistic card
// and the server-confirmed card agree under single-writer conditions.
func (e *Engine) AddCard(ctx context.Context, boardID, listID string, input CardInput) (*models.Card, error) {
	now := e.now()
	var cardID string

	version, err := e.applyLocal(func(s *models.RootState) error {
		b := s.Board(boardID)
		if b == nil {
			return fmt.Errorf("%w: %s", ErrNoSuchBoard, boardID)
		}
		l := b.List(listID)
		if l == nil {
			return fmt.Errorf("%w: %s", ErrNoSuchList, listID)
		}

		card := &models.Card{
			ID:          s.NextCardID(),
			Title:       input.Title,
			Description: input.Description,
			Points:      input.Points,
			Assignee:    input.Assignee,
			Priority:    input.Priority,
			EpicID:      input.EpicID,
			SprintID:    input.SprintID,
			Labels:      input.Labels,
			Attachments: input.Attachments,
			Status:      input.Status,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		reidentifyAttachments(card)
		cardID = card.ID

		l.Cards = append(l.Cards, card)
		l.UpdatedAt = now
		b.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	_, _, created := e.State().FindCard(cardID)
	if e.Connected() {
		e.confirm(e.client.AddCard(ctx, version, boardID, listID, created))
	}
	return created, nil
}

// UpdateCard patches a card in place. Rejected with a LockedError when
// another live identity holds the card.
func (e *Engine) UpdateCard(ctx context.Context, boardID, listID, cardID string, patch CardPatch) (*models.Card, error) {
	if err := e.checkUnlocked(cardID); err != nil {
		return nil, err
	}
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
		card, _ := l.Card(cardID)
		if card == nil {
			return fmt.Errorf("%w: %s", ErrNoSuchCard, cardID)
		}

		if patch.Title != nil {
			card.Title = *patch.Title
		}
		if patch.Description != nil {
			card.Description = *patch.Description
		}
		if patch.Points != nil {
			card.Points = *patch.Points
		}
		if patch.Assignee != nil {
			card.Assignee = *patch.Assignee
		}
		if patch.Priority != nil {
			card.Priority = *patch.Priority
		}
		if patch.EpicID != nil {
			card.EpicID = *patch.EpicID
		}
		if patch.SprintID != nil {
			card.SprintID = *patch.SprintID
		}
		if patch.Labels != nil {
			card.Labels = patch.Labels
		}
		if patch.Attachments != nil {
			card.Attachments = patch.Attachments
		}
		if patch.Status != nil {
			card.Status = *patch.Status
		}
		reidentifyAttachments(card)
		card.UpdatedAt = now
		l.UpdatedAt = now
		b.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	_, _, updated := e.State().FindCard(cardID)
	if e.Connected() {
		e.confirm(e.client.UpdateCard(ctx, version, boardID, listID, cardID, patch))
	}
	return updated, nil
}

// DeleteCard removes a card from its list.
func (e *Engine) DeleteCard(ctx context.Context, boardID, listID, cardID string) error {
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
		_, idx := l.Card(cardID)
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrNoSuchCard, cardID)
		}
		l.Cards = append(l.Cards[:idx], l.Cards[idx+1:]...)
		l.UpdatedAt = now
		b.UpdatedAt = now
		return nil
	})
	if err != nil {
		return err
	}

	if e.Connected() {
		e.confirm(e.client.DeleteCard(ctx, version, boardID, listID, cardID))
	}
	return nil
}

// MoveCard removes the card from its source list and inserts it into the
// target list at toIndex. Moving into a "done" list stamps completedAt when
// unset; moving out of one clears it. Rejected with a LockedError when
// another live identity holds the card.
func (e *Engine) MoveCard(ctx context.Context, boardID, cardID, fromListID, toListID string, toIndex int) error {
	if err := e.checkUnlocked(cardID); err != nil {
		return err
	}
	now := e.now()

	version, err := e.applyLocal(func(s *models.RootState) error {
		b := s.Board(boardID)
		if b == nil {
			return fmt.Errorf("%w: %s", ErrNoSuchBoard, boardID)
		}
		source := b.List(fromListID)
		if source == nil {
			return fmt.Errorf("%w: %s", ErrNoSuchList, fromListID)
		}
		target := b.List(toListID)
		if target == nil {
			return fmt.Errorf("%w: %s", ErrNoSuchList, toListID)
		}
		card, idx := source.Card(cardID)
		if card == nil {
			return fmt.Errorf("%w: %s in list %s", ErrNoSuchCard, cardID, fromListID)
		}

		source.Cards = append(source.Cards[:idx], source.Cards[idx+1:]...)

		// Removing the card shifts positions past the removal point when
		// moving within the same list.
		if fromListID == toListID && toIndex > idx {
			toIndex--
		}
		if toIndex < 0 {
			toIndex = 0
		}
		if toIndex > len(target.Cards) {
			toIndex = len(target.Cards)
		}

		target.Cards = append(target.Cards, nil)
		copy(target.Cards[toIndex+1:], target.Cards[toIndex:])
		target.Cards[toIndex] = card

		if target.IsDone() {
			if card.CompletedAt == nil {
				completed := now
				card.CompletedAt = &completed
			}
		} else if source.IsDone() {
			card.CompletedAt = nil
		}

		card.UpdatedAt = now
		source.UpdatedAt = now
		target.UpdatedAt = now
		b.UpdatedAt = now
		return nil
	})
	if err != nil {
		return err
	}

	if e.Connected() {
		e.confirm(e.client.MoveCard(ctx, version, boardID, cardID, fromListID, toListID, toIndex))
	}
	return nil
}
