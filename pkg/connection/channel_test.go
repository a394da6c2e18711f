package connection

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamHandler serves /sse, emitting the given frames on each connection
// and then either blocking until the client goes away or dropping the stream.
func streamHandler(t *testing.T, frames []string, block bool, connects *atomic.Int32) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if connects != nil {
			connects.Add(1)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, f := range frames {
			fmt.Fprint(w, f)
			flusher.Flush()
		}
		if block {
			<-r.Context().Done()
		}
	}
}

func TestChannelConnectDeliversEvents(t *testing.T) {
	frames := []string{
		"event: welcome\ndata: {\"n\":1}\n\n",
		": heartbeat\n\n",
		"event: update\ndata: {\"n\":2}\n\n",
	}
	srv := httptest.NewServer(streamHandler(t, frames, true, nil))
	defer srv.Close()

	var mu sync.Mutex
	var names []string
	up := make(chan struct{}, 1)

	c := NewChannel(Config{
		BaseURL: srv.URL,
		UserID:  "user-test",
		OnEvent: func(name string, data []byte) {
			mu.Lock()
			names = append(names, name)
			mu.Unlock()
		},
		OnUp: func() { up <- struct{}{} },
	})
	defer c.Close()

	require.NoError(t, c.Connect(context.Background()))

	select {
	case <-up:
	case <-time.After(2 * time.Second):
		t.Fatal("channel never came up")
	}
	assert.True(t, c.Connected())
	assert.Equal(t, StateConnected, c.State())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(names) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"welcome", "update"}, names)
	mu.Unlock()
}

func TestChannelReconnectsAfterDrop(t *testing.T) {
	var connects atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := connects.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "event: welcome\ndata: {}\n\n")
		flusher.Flush()
		if n == 1 {
			return // drop the first stream immediately
		}
		<-r.Context().Done()
	}))
	defer srv.Close()

	var ups atomic.Int32
	var downs atomic.Int32

	c := NewChannel(Config{
		BaseURL: srv.URL,
		UserID:  "user-test",
		Retryer: NewFixedDelayRetryer(10*time.Millisecond, 5),
		OnUp:    func() { ups.Add(1) },
		OnDown:  func(err error) { downs.Add(1) },
	})
	defer c.Close()

	require.NoError(t, c.Connect(context.Background()))

	require.Eventually(t, func() bool { return ups.Load() >= 2 }, 3*time.Second, 10*time.Millisecond,
		"channel should reopen after the server drops the stream")
	assert.GreaterOrEqual(t, downs.Load(), int32(1))
	assert.True(t, c.Connected())
	assert.Equal(t, 0, c.ReconnectAttempts(), "attempts reset on success")
	assert.GreaterOrEqual(t, connects.Load(), int32(2))
}

func TestChannelGivesUpAfterExhaustion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // every dial now fails

	fatal := make(chan error, 1)
	c := NewChannel(Config{
		BaseURL: srv.URL,
		UserID:  "user-test",
		Retryer: NewFixedDelayRetryer(time.Millisecond, 2),
		OnFatal: func(err error) { fatal <- err },
	})
	defer c.Close()

	err := c.Connect(context.Background())
	require.Error(t, err, "the initial dial failure is reported")

	select {
	case ferr := <-fatal:
		assert.Contains(t, ferr.Error(), "realtime sync unavailable after 2 attempts")
		assert.Contains(t, ferr.Error(), "please ensure the board server is running")
	case <-time.After(3 * time.Second):
		t.Fatal("channel never gave up")
	}

	require.Eventually(t, func() bool { return c.State() == StateFailed }, time.Second, 5*time.Millisecond)

	// An explicit Connect restarts a failed channel.
	err = c.Connect(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrClosed)
}

func TestChannelRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewChannel(Config{
		BaseURL: srv.URL,
		UserID:  "user-test",
		Retryer: NewFixedDelayRetryer(time.Millisecond, 1),
	})
	defer c.Close()

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 503")
}

func TestChannelDisconnectStopsRetrying(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewChannel(Config{
		BaseURL: srv.URL,
		UserID:  "user-test",
		Retryer: NewFixedDelayRetryer(time.Hour, 10),
	})
	defer c.Close()

	require.Error(t, c.Connect(context.Background()))
	assert.Equal(t, StateReconnecting, c.State())
	assert.Equal(t, 1, c.ReconnectAttempts())

	c.Disconnect()
	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, 0, c.ReconnectAttempts())
}

func TestChannelClosedForGood(t *testing.T) {
	c := NewChannel(Config{BaseURL: "http://127.0.0.1:0", UserID: "user-test"})
	c.Close()

	err := c.Connect(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	// Close is idempotent.
	c.Close()
	assert.Equal(t, StateClosed, c.State())
}
