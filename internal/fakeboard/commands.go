package fakeboard

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/boardsync/boardsync.go/pkg/models"
)

// The patch shapes mirror the wire contract. They are declared here rather
// than shared so the fake stays an independent check on what clients send.

type cardPatch struct {
	Title       *string             `json:"title"`
	Description *string             `json:"description"`
	Points      *int                `json:"points"`
	Assignee    *string             `json:"assignee"`
	Priority    *string             `json:"priority"`
	EpicID      *string             `json:"epicId"`
	SprintID    *string             `json:"sprintId"`
	Labels      []string            `json:"labels"`
	Attachments []models.Attachment `json:"attachments"`
	Status      *string             `json:"status"`
}

type epicPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	ProjectKey  *string `json:"projectKey"`
	Status      *string `json:"status"`
	SprintID    *string `json:"sprintId"`
}

type sprintPatch struct {
	Name           *string    `json:"name"`
	Goal           *string    `json:"goal"`
	StartDate      *time.Time `json:"startDate"`
	EndDate        *time.Time `json:"endDate"`
	CapacityPoints *int       `json:"capacityPoints"`
	Status         *string    `json:"status"`
}

func (s *Server) boardCreate(body json.RawMessage) error {
	var req struct {
		Board *models.Board `json:"board"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.Board == nil {
		return fmt.Errorf("missing board")
	}
	s.state.Boards = append(s.state.Boards, req.Board)
	if s.state.ActiveBoardID == "" {
		s.state.ActiveBoardID = req.Board.ID
	}
	return nil
}

func (s *Server) boardDelete(body json.RawMessage) error {
	var req struct {
		BoardID string `json:"boardId"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return err
	}
	for i, b := range s.state.Boards {
		if b.ID == req.BoardID {
			s.state.Boards = append(s.state.Boards[:i], s.state.Boards[i+1:]...)
			s.state.NormalizeActiveBoard(s.state.ActiveBoardID, "")
			return nil
		}
	}
	return fmt.Errorf("no such board: %s", req.BoardID)
}

func (s *Server) listAdd(body json.RawMessage) error {
	var req struct {
		BoardID string       `json:"boardId"`
		List    *models.List `json:"list"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.List == nil {
		return fmt.Errorf("missing list")
	}
	b := s.state.Board(req.BoardID)
	if b == nil {
		return fmt.Errorf("no such board: %s", req.BoardID)
	}
	b.Lists = append(b.Lists, req.List)
	return nil
}

func (s *Server) listRename(body json.RawMessage) error {
	var req struct {
		BoardID string `json:"boardId"`
		ListID  string `json:"listId"`
		Name    string `json:"name"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return err
	}
	b := s.state.Board(req.BoardID)
	if b == nil {
		return fmt.Errorf("no such board: %s", req.BoardID)
	}
	l := b.List(req.ListID)
	if l == nil {
		return fmt.Errorf("no such list: %s", req.ListID)
	}
	l.Name = req.Name
	return nil
}

func (s *Server) listDelete(body json.RawMessage) error {
	var req struct {
		BoardID string `json:"boardId"`
		ListID  string `json:"listId"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return err
	}
	b := s.state.Board(req.BoardID)
	if b == nil {
		return fmt.Errorf("no such board: %s", req.BoardID)
	}
	for i, l := range b.Lists {
		if l.ID == req.ListID {
			b.Lists = append(b.Lists[:i], b.Lists[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("no such list: %s", req.ListID)
}

func (s *Server) cardAdd(body json.RawMessage) error {
	var req struct {
		BoardID string       `json:"boardId"`
		ListID  string       `json:"listId"`
		Card    *models.Card `json:"card"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.Card == nil {
		return fmt.Errorf("missing card")
	}
	b := s.state.Board(req.BoardID)
	if b == nil {
		return fmt.Errorf("no such board: %s", req.BoardID)
	}
	l := b.List(req.ListID)
	if l == nil {
		return fmt.Errorf("no such list: %s", req.ListID)
	}
	// The client proposes an id; the authority keeps it unless taken.
	if _, _, existing := s.state.FindCard(req.Card.ID); existing != nil {
		req.Card.ID = s.state.NextCardID()
	}
	l.Cards = append(l.Cards, req.Card)
	return nil
}

func (s *Server) cardUpdate(body json.RawMessage) error {
	var req struct {
		BoardID string    `json:"boardId"`
		ListID  string    `json:"listId"`
		CardID  string    `json:"cardId"`
		Patch   cardPatch `json:"patch"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return err
	}
	b := s.state.Board(req.BoardID)
	if b == nil {
		return fmt.Errorf("no such board: %s", req.BoardID)
	}
	l := b.List(req.ListID)
	if l == nil {
		return fmt.Errorf("no such list: %s", req.ListID)
	}
	card, _ := l.Card(req.CardID)
	if card == nil {
		return fmt.Errorf("no such card: %s", req.CardID)
	}

	p := req.Patch
	if p.Title != nil {
		card.Title = *p.Title
	}
	if p.Description != nil {
		card.Description = *p.Description
	}
	if p.Points != nil {
		card.Points = *p.Points
	}
	if p.Assignee != nil {
		card.Assignee = *p.Assignee
	}
	if p.Priority != nil {
		card.Priority = *p.Priority
	}
	if p.EpicID != nil {
		card.EpicID = *p.EpicID
	}
	if p.SprintID != nil {
		card.SprintID = *p.SprintID
	}
	if p.Labels != nil {
		card.Labels = p.Labels
	}
	if p.Attachments != nil {
		card.Attachments = p.Attachments
	}
	if p.Status != nil {
		card.Status = *p.Status
	}
	for i := range card.Attachments {
		card.Attachments[i].ID = fmt.Sprintf("%s-%d", card.ID, i+1)
	}
	card.UpdatedAt = time.Now()
	return nil
}

func (s *Server) cardDelete(body json.RawMessage) error {
	var req struct {
		BoardID string `json:"boardId"`
		ListID  string `json:"listId"`
		CardID  string `json:"cardId"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return err
	}
	b := s.state.Board(req.BoardID)
	if b == nil {
		return fmt.Errorf("no such board: %s", req.BoardID)
	}
	l := b.List(req.ListID)
	if l == nil {
		return fmt.Errorf("no such list: %s", req.ListID)
	}
	_, idx := l.Card(req.CardID)
	if idx < 0 {
		return fmt.Errorf("no such card: %s", req.CardID)
	}
	l.Cards = append(l.Cards[:idx], l.Cards[idx+1:]...)
	return nil
}

func (s *Server) cardMove(body json.RawMessage) error {
	var req struct {
		BoardID    string `json:"boardId"`
		CardID     string `json:"cardId"`
		FromListID string `json:"fromListId"`
		ToListID   string `json:"toListId"`
		ToIndex    int    `json:"toIndex"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return err
	}
	b := s.state.Board(req.BoardID)
	if b == nil {
		return fmt.Errorf("no such board: %s", req.BoardID)
	}
	source := b.List(req.FromListID)
	target := b.List(req.ToListID)
	if source == nil || target == nil {
		return fmt.Errorf("no such list")
	}
	card, idx := source.Card(req.CardID)
	if card == nil {
		return fmt.Errorf("no such card: %s", req.CardID)
	}

	source.Cards = append(source.Cards[:idx], source.Cards[idx+1:]...)
	toIndex := req.ToIndex
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
			now := time.Now()
			card.CompletedAt = &now
		}
	} else if source.IsDone() {
		card.CompletedAt = nil
	}
	return nil
}

func (s *Server) epicCreate(body json.RawMessage) error {
	var req struct {
		Epic *models.Epic `json:"epic"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.Epic == nil {
		return fmt.Errorf("missing epic")
	}
	s.state.Epics = append(s.state.Epics, req.Epic)
	return nil
}

func (s *Server) epicUpdate(body json.RawMessage) error {
	var req struct {
		EpicID string    `json:"epicId"`
		Patch  epicPatch `json:"patch"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return err
	}
	epic := s.state.Epic(req.EpicID)
	if epic == nil {
		return fmt.Errorf("no such epic: %s", req.EpicID)
	}
	p := req.Patch
	if p.Name != nil {
		epic.Name = *p.Name
	}
	if p.Description != nil {
		epic.Description = *p.Description
	}
	if p.ProjectKey != nil {
		epic.ProjectKey = *p.ProjectKey
	}
	if p.Status != nil {
		epic.Status = *p.Status
	}
	if p.SprintID != nil {
		epic.SprintID = *p.SprintID
	}
	epic.UpdatedAt = time.Now()
	return nil
}

func (s *Server) sprintCreate(body json.RawMessage) error {
	var req struct {
		Sprint *models.Sprint `json:"sprint"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.Sprint == nil {
		return fmt.Errorf("missing sprint")
	}
	s.state.Sprints = append(s.state.Sprints, req.Sprint)
	return nil
}

func (s *Server) sprintUpdate(body json.RawMessage) error {
	var req struct {
		SprintID string      `json:"sprintId"`
		Patch    sprintPatch `json:"patch"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return err
	}
	sprint := s.state.Sprint(req.SprintID)
	if sprint == nil {
		return fmt.Errorf("no such sprint: %s", req.SprintID)
	}
	p := req.Patch
	if p.Name != nil {
		sprint.Name = *p.Name
	}
	if p.Goal != nil {
		sprint.Goal = *p.Goal
	}
	if p.StartDate != nil {
		sprint.StartDate = p.StartDate
	}
	if p.EndDate != nil {
		sprint.EndDate = p.EndDate
	}
	if p.CapacityPoints != nil {
		sprint.CapacityPoints = *p.CapacityPoints
	}
	if p.Status != nil {
		sprint.Status = *p.Status
	}
	sprint.UpdatedAt = time.Now()
	return nil
}

func (s *Server) sprintDelete(body json.RawMessage) error {
	var req struct {
		SprintID string `json:"sprintId"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return err
	}
	idx := -1
	for i, sp := range s.state.Sprints {
		if sp.ID == req.SprintID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("no such sprint: %s", req.SprintID)
	}
	for _, b := range s.state.Boards {
		for _, l := range b.Lists {
			for _, c := range l.Cards {
				if c.SprintID == req.SprintID {
					c.SprintID = ""
				}
			}
		}
	}
	for _, epic := range s.state.Epics {
		if epic.SprintID == req.SprintID {
			epic.SprintID = ""
		}
	}
	s.state.Sprints = append(s.state.Sprints[:idx], s.state.Sprints[idx+1:]...)
	return nil
}
