package boardsync

import (
	"context"
	"fmt"

	"github.com/boardsync/boardsync.go/internal/rand"
	"github.com/boardsync/boardsync.go/pkg/models"
)

// EpicInput is the caller-provided content of a new epic.
type EpicInput struct {
	Name        string
	Description string
	ProjectKey  string
	Status      string
	SprintID    string
}

// EpicPatch updates individual epic fields; nil pointers leave the field
// untouched.
type EpicPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	ProjectKey  *string `json:"projectKey,omitempty"`
	Status      *string `json:"status,omitempty"`
	SprintID    *string `json:"sprintId,omitempty"`
}

// CreateEpic adds an epic. Cards reference epics loosely; the engine never
// enforces referential integrity on epicId.
func (e *Engine) CreateEpic(ctx context.Context, input EpicInput) (*models.Epic, error) {
	now := e.now()
	status := input.Status
	if status == "" {
		status = "open"
	}

	epic := &models.Epic{
		ID:          rand.NewID(generatedIDLength),
		Name:        input.Name,
		Description: input.Description,
		ProjectKey:  input.ProjectKey,
		Status:      status,
		SprintID:    input.SprintID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	version, err := e.applyLocal(func(s *models.RootState) error {
		s.Epics = append(s.Epics, epic)
		return nil
	})
	if err != nil {
		return nil, err
	}

	created := e.State().Epic(epic.ID)
	if e.Connected() {
		e.confirm(e.client.CreateEpic(ctx, version, created))
	}
	return created, nil
}

// UpdateEpic patches an epic in place.
func (e *Engine) UpdateEpic(ctx context.Context, epicID string, patch EpicPatch) (*models.Epic, error) {
	now := e.now()
	version, err := e.applyLocal(func(s *models.RootState) error {
		epic := s.Epic(epicID)
		if epic == nil {
			return fmt.Errorf("%w: %s", ErrNoSuchEpic, epicID)
		}

		if patch.Name != nil {
			epic.Name = *patch.Name
		}
		if patch.Description != nil {
			epic.Description = *patch.Description
		}
		if patch.ProjectKey != nil {
			epic.ProjectKey = *patch.ProjectKey
		}
		if patch.Status != nil {
			epic.Status = *patch.Status
		}
		if patch.SprintID != nil {
			epic.SprintID = *patch.SprintID
		}
		epic.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated := e.State().Epic(epicID)
	if e.Connected() {
		e.confirm(e.client.UpdateEpic(ctx, version, epicID, patch))
	}
	return updated, nil
}
