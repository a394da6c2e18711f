package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Bootstrap builds the default local state used the very first time no board
// exists anywhere: one workflow board with the five fixed stage lists and no
// cards. List ids reuse the stage ids, which keeps a cold start deterministic.
func Bootstrap(now time.Time) *RootState {
	stages := []struct{ id, name string }{
		{StatusBacklog, "Backlog"},
		{StatusReadyForDev, "Ready for Dev"},
		{StatusInProgress, "In Progress"},
		{StatusReview, "Review"},
		{StatusDone, "Done"},
	}

	lists := make([]*List, 0, len(stages))
	for _, s := range stages {
		lists = append(lists, &List{
			ID:        s.id,
			StatusID:  s.id,
			Name:      s.name,
			Cards:     []*Card{},
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	board := &Board{
		ID:        "main",
		Name:      "Main Board",
		Type:      BoardTypeWorkflow,
		Lists:     lists,
		CreatedAt: now,
		UpdatedAt: now,
	}

	return &RootState{
		Version:       1,
		ActiveBoardID: board.ID,
		Boards:        []*Board{board},
		Epics:         []*Epic{},
		Sprints:       []*Sprint{},
		Locks:         map[string]Lock{},
	}
}

// Board returns the board with the given id, or nil.
func (s *RootState) Board(id string) *Board {
	for _, b := range s.Boards {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// List returns the list with the given id, or nil.
func (b *Board) List(id string) *List {
	for _, l := range b.Lists {
		if l.ID == id {
			return l
		}
	}
	return nil
}

// Card returns the card with the given id together with its index in the
// list's sequence, or (nil, -1).
func (l *List) Card(id string) (*Card, int) {
	for i, c := range l.Cards {
		if c.ID == id {
			return c, i
		}
	}
	return nil, -1
}

// FindCard locates a card anywhere in the state. A card appears in exactly
// one list's sequence, so the first hit is the only hit.
func (s *RootState) FindCard(cardID string) (*Board, *List, *Card) {
	for _, b := range s.Boards {
		for _, l := range b.Lists {
			if c, _ := l.Card(cardID); c != nil {
				return b, l, c
			}
		}
	}
	return nil, nil, nil
}

// Epic returns the epic with the given id, or nil.
func (s *RootState) Epic(id string) *Epic {
	for _, e := range s.Epics {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// Sprint returns the sprint with the given id, or nil.
func (s *RootState) Sprint(id string) *Sprint {
	for _, sp := range s.Sprints {
		if sp.ID == id {
			return sp
		}
	}
	return nil
}

// NextCardID derives the id for a new card: max over every numeric card id
// across all boards, plus one. Card ids are unique across the whole state,
// not per list.
func (s *RootState) NextCardID() string {
	maxID := 0
	for _, b := range s.Boards {
		for _, l := range b.Lists {
			for _, c := range l.Cards {
				if n, err := strconv.Atoi(c.ID); err == nil && n > maxID {
					maxID = n
				}
			}
		}
	}
	return strconv.Itoa(maxID + 1)
}

// IsDone reports whether the list counts as a "done" stage: bound to the
// done status id, or named "done" in any casing.
func (l *List) IsDone() bool {
	return l.StatusID == StatusDone || strings.EqualFold(l.Name, StatusDone)
}

// NormalizeActiveBoard fixes up ActiveBoardID after a snapshot replace:
// keep the previously selected board when it still exists, otherwise take
// the incoming preference when valid, otherwise the first board, otherwise
// none.
func (s *RootState) NormalizeActiveBoard(previous, incoming string) {
	if previous != "" && s.Board(previous) != nil {
		s.ActiveBoardID = previous
		return
	}
	if incoming != "" && s.Board(incoming) != nil {
		s.ActiveBoardID = incoming
		return
	}
	if len(s.Boards) > 0 {
		s.ActiveBoardID = s.Boards[0].ID
		return
	}
	s.ActiveBoardID = ""
}

// Clone returns a deep copy of the state. The engine hands copies to callers
// so the root document is only ever mutated through dispatcher operations.
func (s *RootState) Clone() *RootState {
	data, err := json.Marshal(s)
	if err != nil {
		// The state is plain data; marshaling cannot fail.
		panic("models: clone marshal: " + err.Error())
	}
	var out RootState
	if err := json.Unmarshal(data, &out); err != nil {
		panic("models: clone unmarshal: " + err.Error())
	}
	if out.Locks == nil {
		out.Locks = map[string]Lock{}
	}
	return &out
}
