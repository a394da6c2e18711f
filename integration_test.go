package boardsync_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	boardsync "github.com/boardsync/boardsync.go"
	"github.com/boardsync/boardsync.go/internal/fakeboard"
	"github.com/boardsync/boardsync.go/pkg/cache"
	"github.com/boardsync/boardsync.go/pkg/connection"
	"github.com/boardsync/boardsync.go/pkg/logger"
	"github.com/boardsync/boardsync.go/pkg/models"
)

func startFakeServer(t *testing.T) (*fakeboard.Server, *httptest.Server) {
	t.Helper()
	fb := fakeboard.New(models.Bootstrap(time.Now()))
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)
	return fb, srv
}

func newEngine(t *testing.T, baseURL, userID string) *boardsync.Engine {
	t.Helper()
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	e, err := boardsync.New(boardsync.Config{
		ServerBaseURL: baseURL,
		Store:         store,
		UserID:        userID,
		Logger:        logger.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func connectEngine(t *testing.T, e *boardsync.Engine) {
	t.Helper()
	require.NoError(t, e.Connect(context.Background()))
	require.True(t, e.Connected())
	// Wait for the connected snapshot to land.
	require.Eventually(t, func() bool {
		return e.State().Board("main") != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEngineConnectAndConfirm(t *testing.T) {
	fb, srv := startFakeServer(t)
	e := newEngine(t, srv.URL, "user-a")
	connectEngine(t, e)

	c, err := e.AddCard(context.Background(), "main", models.StatusBacklog, boardsync.CardInput{Title: "first"})
	require.NoError(t, err)
	assert.Equal(t, "1", c.ID)
	assert.Empty(t, e.Err())

	// The server accepted the card and became the source of truth.
	_, _, serverCard := fb.State().FindCard(c.ID)
	require.NotNil(t, serverCard)
	assert.Equal(t, "first", serverCard.Title)

	assert.Greater(t, e.State().StateVersion, int64(0), "the confirmed snapshot carries the bumped version")
}

func TestTwoEnginesConverge(t *testing.T) {
	_, srv := startFakeServer(t)
	a := newEngine(t, srv.URL, "user-a")
	b := newEngine(t, srv.URL, "user-b")
	connectEngine(t, a)
	connectEngine(t, b)

	_, err := a.AddCard(context.Background(), "main", models.StatusBacklog, boardsync.CardInput{Title: "shared"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, _, c := b.State().FindCard("1")
		return c != nil && c.Title == "shared"
	}, 2*time.Second, 10*time.Millisecond, "the broadcast snapshot reaches the second client")
}

func TestLockContention(t *testing.T) {
	_, srv := startFakeServer(t)
	a := newEngine(t, srv.URL, "user-a")
	b := newEngine(t, srv.URL, "user-b")
	connectEngine(t, a)
	connectEngine(t, b)

	ctx := context.Background()
	_, err := a.AddCard(ctx, "main", models.StatusBacklog, boardsync.CardInput{Title: "contested"})
	require.NoError(t, err)

	ok, err := a.AcquireLock(ctx, "1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.AcquireLock(ctx, "1")
	require.NoError(t, err)
	assert.False(t, ok, "the server refuses a second holder")
	assert.Equal(t, "Card is locked by user-a", b.Err())

	// The card_locked broadcast lands in b's lock mirror.
	require.Eventually(t, func() bool { return b.IsCardLocked("1") }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, a.IsCardLocked("1"), "the holder's own lock is invisible to the holder")

	a.ReleaseLock(ctx, "1")
	require.Eventually(t, func() bool { return !b.IsCardLocked("1") }, 2*time.Second, 10*time.Millisecond)

	ok, err = b.AcquireLock(ctx, "1")
	require.NoError(t, err)
	assert.True(t, ok, "a released lock is free for the taking")
}

func TestServerRefusalSurfacesError(t *testing.T) {
	fb, srv := startFakeServer(t)
	e := newEngine(t, srv.URL, "user-a")
	connectEngine(t, e)

	fb.ForceError("/api/card/add", "storage unavailable")

	c, err := e.AddCard(context.Background(), "main", models.StatusBacklog, boardsync.CardInput{Title: "doomed"})
	require.NoError(t, err, "the optimistic mutation itself succeeds")
	require.NotNil(t, c)

	assert.Contains(t, e.Err(), "storage unavailable")
	_, _, local := e.State().FindCard(c.ID)
	assert.NotNil(t, local, "the optimistic card stays, no rollback")
	_, _, remote := fb.State().FindCard(c.ID)
	assert.Nil(t, remote)
}

func TestDisconnectGoesLocalOnly(t *testing.T) {
	fb, srv := startFakeServer(t)
	e := newEngine(t, srv.URL, "user-a")
	connectEngine(t, e)

	e.Disconnect()
	assert.False(t, e.Connected())
	require.Eventually(t, func() bool { return fb.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)

	c, err := e.AddCard(context.Background(), "main", models.StatusBacklog, boardsync.CardInput{Title: "offline"})
	require.NoError(t, err)

	_, _, local := e.State().FindCard(c.ID)
	require.NotNil(t, local)
	_, _, remote := fb.State().FindCard(c.ID)
	assert.Nil(t, remote, "nothing reaches the server while disconnected")
}

func TestResyncPullsCanonicalState(t *testing.T) {
	fb, srv := startFakeServer(t)
	e := newEngine(t, srv.URL, "user-a")

	next := models.Bootstrap(time.Now())
	next.Boards[0].Name = "Renamed Elsewhere"
	fb.SetState(next)

	require.NoError(t, e.Resync(context.Background()))
	assert.Equal(t, "Renamed Elsewhere", e.State().Boards[0].Name)
}

func TestExhaustedRetriesSurfaceFatalError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // nothing listens anymore

	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer store.Close()

	e, err := boardsync.New(boardsync.Config{
		ServerBaseURL: srv.URL,
		Store:         store,
		UserID:        "user-a",
		Logger:        logger.Nop(),
		Retryer:       connection.NewFixedDelayRetryer(time.Millisecond, 2),
	})
	require.NoError(t, err)
	defer e.Close()

	require.Error(t, e.Connect(context.Background()))

	require.Eventually(t, func() bool {
		return e.Err() != ""
	}, 3*time.Second, 10*time.Millisecond)
	assert.Contains(t, e.Err(), "realtime sync unavailable after 2 attempts")
	assert.Contains(t, e.Err(), "please ensure the board server is running")

	// The engine still works locally.
	c, addErr := e.AddCard(context.Background(), "main", models.StatusBacklog, boardsync.CardInput{Title: "still works"})
	require.NoError(t, addErr)
	assert.Equal(t, "1", c.ID)
}

func TestSelectBoardPublishesState(t *testing.T) {
	fb, srv := startFakeServer(t)
	e := newEngine(t, srv.URL, "user-a")
	connectEngine(t, e)

	ctx := context.Background()
	board, err := e.CreateBoard(ctx, "Second", models.BoardTypeFreeform)
	require.NoError(t, err)

	require.NoError(t, e.SelectBoard(ctx, board.ID))
	require.Eventually(t, func() bool {
		return fb.State().ActiveBoardID == board.ID
	}, 2*time.Second, 10*time.Millisecond)
}
