// Package connection owns the lifecycle of the server-push channel to the
// coordination server: open, listen, detect failure, and reconnect with
// exponential backoff.
//
// The channel carries no board semantics. It hands every named event to a
// callback and reports lifecycle changes; interpreting payloads is the
// engine's job.
package connection

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/boardsync/boardsync.go/pkg/logger"
)

// ErrClosed is returned by Connect after the channel has been closed for good.
var ErrClosed = errors.New("connection: channel is closed")

// Config wires a Channel to its consumer.
type Config struct {
	// BaseURL of the coordination server, e.g. "http://127.0.0.1:3456".
	BaseURL string

	// UserID identifies this client on the push channel.
	UserID string

	// Retryer decides reconnection delays. Defaults to the standard
	// exponential backoff (1s doubling, capped at 30s, five attempts).
	Retryer Retryer

	// HTTPClient used for the long-lived stream request. Must not carry a
	// request timeout. Defaults to a plain http.Client.
	HTTPClient *http.Client

	Logger logger.Logger

	// StartLocalServer, when set, is invoked before each dial so the host
	// application can spawn a local coordination server. Best-effort: a
	// failure is logged and the dial proceeds anyway.
	StartLocalServer func(context.Context) error

	// OnEvent receives every named event in arrival order with its raw
	// JSON data line.
	OnEvent func(name string, data []byte)

	// OnUp fires after the stream opens, OnDown after a structural failure,
	// OnFatal once when reconnection attempts are exhausted.
	OnUp    func()
	OnDown  func(err error)
	OnFatal func(err error)
}

// Channel is a reconnecting server-sent-events subscription.
type Channel struct {
	baseURL          string
	userID           string
	retryer          Retryer
	httpClient       *http.Client
	logger           logger.Logger
	startLocalServer func(context.Context) error
	onEvent          func(name string, data []byte)
	onUp             func()
	onDown           func(err error)
	onFatal          func(err error)

	mu       sync.Mutex
	state    State
	attempts int

	// gen invalidates read loops and retry timers belonging to a previous
	// connection whenever the channel is re-dialed or torn down.
	gen int

	cancel     context.CancelFunc
	retryTimer *time.Timer
}

// NewChannel creates a Channel in the disconnected state.
func NewChannel(cfg Config) *Channel {
	retryer := cfg.Retryer
	if retryer == nil {
		retryer = NewExponentialBackoffRetryer()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.New(nil)
	}

	return &Channel{
		baseURL:          cfg.BaseURL,
		userID:           cfg.UserID,
		retryer:          retryer,
		httpClient:       httpClient,
		logger:           log,
		startLocalServer: cfg.StartLocalServer,
		onEvent:          cfg.OnEvent,
		onUp:             cfg.OnUp,
		onDown:           cfg.OnDown,
		onFatal:          cfg.OnFatal,
		state:            StateDisconnected,
	}
}

func (c *Channel) transitionLocked(newState State) error {
	if err := c.state.validateTransitionTo(newState); err != nil {
		return err
	}
	c.state = newState
	c.logger.Debug("channel state transitioned", "new_state", newState.String())
	return nil
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether the stream is currently open.
func (c *Channel) Connected() bool {
	return c.State() == StateConnected
}

// ReconnectAttempts returns how many retries have been scheduled since the
// stream last opened successfully.
func (c *Channel) ReconnectAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Connect closes any existing stream and opens a fresh one. On a dial
// failure it schedules a background retry and returns the error; the caller
// does not need to retry by hand. An explicit Connect also restarts a
// channel that previously gave up.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return ErrClosed
	}
	if err := c.transitionLocked(StateConnecting); err != nil {
		c.mu.Unlock()
		return err
	}
	c.teardownLocked()
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	if c.startLocalServer != nil {
		if err := c.startLocalServer(ctx); err != nil {
			c.logger.Debug("local server start failed", "error", err)
		}
	}

	streamCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.streamURL(), nil)
	if err != nil {
		cancel()
		return c.channelDown(gen, fmt.Errorf("building stream request: %w", err))
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return c.channelDown(gen, fmt.Errorf("opening push channel: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return c.channelDown(gen, fmt.Errorf("opening push channel: unexpected status %d", resp.StatusCode))
	}

	c.mu.Lock()
	if c.gen != gen || c.state != StateConnecting {
		// A concurrent Disconnect or Connect superseded this dial.
		c.mu.Unlock()
		cancel()
		resp.Body.Close()
		return nil
	}
	c.cancel = cancel
	if err := c.transitionLocked(StateConnected); err != nil {
		panic(fmt.Sprintf("BUG: channel failed to transition to connected state: %v", err))
	}
	c.attempts = 0
	c.retryer.Reset()
	c.mu.Unlock()

	c.logger.Info("push channel connected", "url", c.baseURL)
	if c.onUp != nil {
		c.onUp()
	}

	go c.readLoop(gen, resp)

	return nil
}

func (c *Channel) streamURL() string {
	return c.baseURL + "/sse?userId=" + url.QueryEscape(c.userID)
}

func (c *Channel) readLoop(gen int, resp *http.Response) {
	defer resp.Body.Close()

	err := parseStream(resp.Body, func(name string, data []byte) {
		c.logger.Debug("push event received", "event", name)
		if c.onEvent != nil {
			c.onEvent(name, data)
		}
	})

	_ = c.channelDown(gen, fmt.Errorf("push channel broken: %w", err))
}

// channelDown records a structural failure of the given connection
// generation, tears the stream down and schedules a retry, or gives up when
// the retryer is exhausted. Stale generations (already superseded by a newer
// Connect or an explicit Disconnect) are ignored. It returns the error it
// was handed so dial paths can pass it through to the caller.
func (c *Channel) channelDown(gen int, err error) error {
	c.mu.Lock()
	if gen != c.gen || (c.state != StateConnecting && c.state != StateConnected) {
		c.mu.Unlock()
		return err
	}
	c.teardownLocked()
	if terr := c.transitionLocked(StateReconnecting); terr != nil {
		panic(fmt.Sprintf("BUG: channel failed to transition to reconnecting state: %v", terr))
	}

	attempt := c.attempts
	delay, retry := c.retryer.NextDelay(attempt, err)
	if !retry {
		if terr := c.transitionLocked(StateFailed); terr != nil {
			panic(fmt.Sprintf("BUG: channel failed to transition to failed state: %v", terr))
		}
		c.mu.Unlock()

		c.logger.Error("push channel gave up reconnecting", "attempts", attempt, "error", err)
		if c.onDown != nil {
			c.onDown(err)
		}
		if c.onFatal != nil {
			c.onFatal(fmt.Errorf(
				"realtime sync unavailable after %d attempts: %w: please ensure the board server is running", attempt, err))
		}
		return err
	}

	c.attempts++
	c.retryTimer = time.AfterFunc(delay, func() {
		if cerr := c.Connect(context.Background()); cerr != nil {
			c.logger.Debug("scheduled reconnect failed", "error", cerr)
		}
	})
	c.mu.Unlock()

	c.logger.Warn("push channel down, retry scheduled",
		"attempt", attempt, "delay_ms", delay.Milliseconds(), "error", err)
	if c.onDown != nil {
		c.onDown(err)
	}
	return err
}

// teardownLocked cancels the in-flight stream and any pending retry timer.
// Callers must hold c.mu.
func (c *Channel) teardownLocked() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Disconnect closes the stream and stops retrying. The channel can be
// reconnected later with Connect.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed || c.state == StateDisconnected {
		return
	}
	c.teardownLocked()
	c.gen++
	c.attempts = 0
	c.state = StateDisconnected
	c.logger.Debug("channel state transitioned", "new_state", c.state.String())
}

// Close tears the channel down for good. Subsequent Connect calls fail with
// ErrClosed.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return
	}
	c.teardownLocked()
	c.gen++
	c.state = StateClosed
	c.logger.Debug("channel state transitioned", "new_state", c.state.String())
}
