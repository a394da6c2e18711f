package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrap(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := Bootstrap(now)

	require.Len(t, s.Boards, 1)
	b := s.Boards[0]
	assert.Equal(t, "main", b.ID)
	assert.Equal(t, BoardTypeWorkflow, b.Type)
	assert.Equal(t, b.ID, s.ActiveBoardID)

	require.Len(t, b.Lists, 5)
	wantIDs := []string{StatusBacklog, StatusReadyForDev, StatusInProgress, StatusReview, StatusDone}
	for i, l := range b.Lists {
		assert.Equal(t, wantIDs[i], l.ID)
		assert.Equal(t, wantIDs[i], l.StatusID)
		assert.Empty(t, l.Cards)
	}
	assert.NotNil(t, s.Locks)
	assert.NotNil(t, s.Epics)
	assert.NotNil(t, s.Sprints)
}

func TestNextCardID(t *testing.T) {
	s := Bootstrap(time.Now())
	assert.Equal(t, "1", s.NextCardID())

	b := s.Boards[0]
	b.Lists[0].Cards = append(b.Lists[0].Cards, &Card{ID: "3"}, &Card{ID: "not-a-number"})
	b.Lists[4].Cards = append(b.Lists[4].Cards, &Card{ID: "7"})
	assert.Equal(t, "8", s.NextCardID())

	// Ids are global, not per list: a second board's cards count too.
	s.Boards = append(s.Boards, &Board{
		ID:    "other",
		Lists: []*List{{ID: "l", Cards: []*Card{{ID: "42"}}}},
	})
	assert.Equal(t, "43", s.NextCardID())
}

func TestListIsDone(t *testing.T) {
	assert.True(t, (&List{StatusID: StatusDone, Name: "Finished"}).IsDone())
	assert.True(t, (&List{Name: "Done"}).IsDone())
	assert.True(t, (&List{Name: "DONE"}).IsDone())
	assert.False(t, (&List{StatusID: StatusReview, Name: "Review"}).IsDone())
	assert.False(t, (&List{Name: "Done-ish"}).IsDone())
}

func TestNormalizeActiveBoard(t *testing.T) {
	s := &RootState{Boards: []*Board{{ID: "a"}, {ID: "b"}}}

	s.NormalizeActiveBoard("b", "a")
	assert.Equal(t, "b", s.ActiveBoardID, "a surviving previous selection wins")

	s.NormalizeActiveBoard("gone", "a")
	assert.Equal(t, "a", s.ActiveBoardID, "incoming preference used when previous vanished")

	s.NormalizeActiveBoard("gone", "also-gone")
	assert.Equal(t, "a", s.ActiveBoardID, "first board when nothing valid remains")

	s.Boards = nil
	s.NormalizeActiveBoard("gone", "gone")
	assert.Equal(t, "", s.ActiveBoardID)
}

func TestLockLive(t *testing.T) {
	now := time.Now()
	assert.True(t, Lock{ExpiresAt: now.Add(time.Second)}.Live(now))
	assert.False(t, Lock{ExpiresAt: now}.Live(now))
	assert.False(t, Lock{ExpiresAt: now.Add(-time.Second)}.Live(now))
}

func TestCloneIsDeep(t *testing.T) {
	s := Bootstrap(time.Now())
	s.Boards[0].Lists[0].Cards = []*Card{{ID: "1", Title: "original"}}
	s.Locks["1"] = Lock{UserID: "user-aaaa", ExpiresAt: time.Now().Add(time.Minute)}

	clone := s.Clone()
	clone.Boards[0].Lists[0].Cards[0].Title = "changed"
	clone.Locks["2"] = Lock{UserID: "user-bbbb"}

	assert.Equal(t, "original", s.Boards[0].Lists[0].Cards[0].Title)
	assert.NotContains(t, s.Locks, "2")
}

func TestCloneNilLocks(t *testing.T) {
	clone := (&RootState{}).Clone()
	require.NotNil(t, clone.Locks)
}

func TestFindCard(t *testing.T) {
	s := Bootstrap(time.Now())
	s.Boards[0].Lists[2].Cards = []*Card{{ID: "5"}}

	b, l, c := s.FindCard("5")
	require.NotNil(t, c)
	assert.Equal(t, "main", b.ID)
	assert.Equal(t, StatusInProgress, l.ID)

	b, l, c = s.FindCard("nope")
	assert.Nil(t, b)
	assert.Nil(t, l)
	assert.Nil(t, c)
}
