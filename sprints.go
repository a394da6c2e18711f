package boardsync

import (
	"context"
	"fmt"
	"time"

	"github.com/boardsync/boardsync.go/internal/rand"
	"github.com/boardsync/boardsync.go/pkg/models"
)

// SprintInput is the caller-provided content of a new sprint.
type SprintInput struct {
	Name           string
	Goal           string
	StartDate      *time.Time
	EndDate        *time.Time
	CapacityPoints int
	Status         string
}

// SprintPatch updates individual sprint fields; nil pointers leave the
// field untouched.
type SprintPatch struct {
	Name           *string    `json:"name,omitempty"`
	Goal           *string    `json:"goal,omitempty"`
	StartDate      *time.Time `json:"startDate,omitempty"`
	EndDate        *time.Time `json:"endDate,omitempty"`
	CapacityPoints *int       `json:"capacityPoints,omitempty"`
	Status         *string    `json:"status,omitempty"`
}

// CreateSprint adds a sprint.
func (e *Engine) CreateSprint(ctx context.Context, input SprintInput) (*models.Sprint, error) {
	now := e.now()
	status := input.Status
	if status == "" {
		status = "planned"
	}

	sprint := &models.Sprint{
		ID:             rand.NewID(generatedIDLength),
		Name:           input.Name,
		Goal:           input.Goal,
		StartDate:      input.StartDate,
		EndDate:        input.EndDate,
		CapacityPoints: input.CapacityPoints,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	version, err := e.applyLocal(func(s *models.RootState) error {
		s.Sprints = append(s.Sprints, sprint)
		return nil
	})
	if err != nil {
		return nil, err
	}

	created := e.State().Sprint(sprint.ID)
	if e.Connected() {
		e.confirm(e.client.CreateSprint(ctx, version, created))
	}
	return created, nil
}

// UpdateSprint patches a sprint in place.
func (e *Engine) UpdateSprint(ctx context.Context, sprintID string, patch SprintPatch) (*models.Sprint, error) {
	now := e.now()
	version, err := e.applyLocal(func(s *models.RootState) error {
		sprint := s.Sprint(sprintID)
		if sprint == nil {
			return fmt.Errorf("%w: %s", ErrNoSuchSprint, sprintID)
		}

		if patch.Name != nil {
			sprint.Name = *patch.Name
		}
		if patch.Goal != nil {
			sprint.Goal = *patch.Goal
		}
		if patch.StartDate != nil {
			sprint.StartDate = patch.StartDate
		}
		if patch.EndDate != nil {
			sprint.EndDate = patch.EndDate
		}
		if patch.CapacityPoints != nil {
			sprint.CapacityPoints = *patch.CapacityPoints
		}
		if patch.Status != nil {
			sprint.Status = *patch.Status
		}
		sprint.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated := e.State().Sprint(sprintID)
	if e.Connected() {
		e.confirm(e.client.UpdateSprint(ctx, version, sprintID, patch))
	}
	return updated, nil
}

// DeleteSprint removes a sprint and nulls the sprintId of every card and
// epic that referenced it. A cascading null, never a cascading delete.
func (e *Engine) DeleteSprint(ctx context.Context, sprintID string) error {
	now := e.now()
	version, err := e.applyLocal(func(s *models.RootState) error {
		idx := -1
		for i, sp := range s.Sprints {
			if sp.ID == sprintID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrNoSuchSprint, sprintID)
		}

		for _, b := range s.Boards {
			for _, l := range b.Lists {
				for _, c := range l.Cards {
					if c.SprintID == sprintID {
						c.SprintID = ""
						c.UpdatedAt = now
					}
				}
			}
		}
		for _, epic := range s.Epics {
			if epic.SprintID == sprintID {
				epic.SprintID = ""
				epic.UpdatedAt = now
			}
		}

		s.Sprints = append(s.Sprints[:idx], s.Sprints[idx+1:]...)
		return nil
	})
	if err != nil {
		return err
	}

	if e.Connected() {
		e.confirm(e.client.DeleteSprint(ctx, version, sprintID))
	}
	return nil
}
