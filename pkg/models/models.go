// Package models defines the board data model shared between the sync engine,
// the durable cache and the coordination server wire contract.
//
// All types marshal to the camelCase JSON the coordination server speaks.
package models

import "time"

// Board types. A workflow board carries the fixed five-stage list set,
// a freeform board starts empty.
const (
	BoardTypeWorkflow = "workflow"
	BoardTypeFreeform = "freeform"
)

// Well-known workflow stage ids. A list bound to one of these via StatusID
// participates in statistics and done-detection.
const (
	StatusBacklog     = "backlog"
	StatusReadyForDev = "ready-for-dev"
	StatusInProgress  = "in-progress"
	StatusReview      = "review"
	StatusDone        = "done"
)

type Board struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Lists     []*List   `json:"lists"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type List struct {
	ID        string    `json:"id"`
	StatusID  string    `json:"statusId,omitempty"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	Cards     []*Card   `json:"cards"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Card struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Points      int          `json:"points,omitempty"`
	Assignee    string       `json:"assignee,omitempty"`
	Priority    string       `json:"priority,omitempty"`
	EpicID      string       `json:"epicId,omitempty"`
	SprintID    string       `json:"sprintId,omitempty"`
	Labels      []string     `json:"labels,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Status      string       `json:"status,omitempty"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
}

type Epic struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ProjectKey  string    `json:"projectKey,omitempty"`
	Status      string    `json:"status"`
	SprintID    string    `json:"sprintId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Sprint struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Goal           string     `json:"goal,omitempty"`
	StartDate      *time.Time `json:"startDate,omitempty"`
	EndDate        *time.Time `json:"endDate,omitempty"`
	CapacityPoints int        `json:"capacityPoints,omitempty"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Lock is a per-card edit reservation. A lock is effective only while
// now < ExpiresAt; an expired entry is treated as absent (lazy expiry,
// nothing sweeps the map).
type Lock struct {
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Live reports whether the lock is still effective at the given instant.
func (l Lock) Live(now time.Time) bool {
	return now.Before(l.ExpiresAt)
}

// RootState is the single document holding every board, epic, sprint and
// lock. The coordination server maintains StateVersion; clients echo it on
// mutating requests for optimistic-concurrency signaling.
type RootState struct {
	Version       int             `json:"version"`
	StateVersion  int64           `json:"stateVersion"`
	ActiveBoardID string          `json:"activeBoardId,omitempty"`
	Boards        []*Board        `json:"boards"`
	Epics         []*Epic         `json:"epics"`
	Sprints       []*Sprint       `json:"sprints"`
	Locks         map[string]Lock `json:"locks"`
}
