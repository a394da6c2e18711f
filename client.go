package boardsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/boardsync/boardsync.go/pkg/models"
)

// Client speaks the coordination server's command surface. Every request is
// tagged with the caller's identity and the state version it was based on,
// and every response may carry a canonical state that supersedes the local
// optimistic guess.
//
// Client instances are safe for concurrent use by multiple goroutines.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userID     string
}

// NewClient creates a command client for the given server base URL, e.g.
// "http://127.0.0.1:3456" without a trailing slash.
func NewClient(baseURL, userID string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		userID:     userID,
	}
}

// CommandResponse is the JSON envelope every command endpoint answers with.
// State, when present, is the new canonical root state.
type CommandResponse struct {
	State    *models.RootState `json:"state,omitempty"`
	Success  *bool             `json:"success,omitempty"`
	LockedBy string            `json:"lockedBy,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// doRequest performs a request with the identity and concurrency headers.
func (c *Client) doRequest(ctx context.Context, method, path string, stateVersion int64, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", c.userID)
	req.Header.Set("X-State-Version", strconv.FormatInt(stateVersion, 10))

	return c.httpClient.Do(req)
}

// decodeResponse decodes the command envelope, turning non-2xx statuses into
// a CommandError carrying the server's error message when one is present.
func decodeResponse(resp *http.Response) (*CommandResponse, error) {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		var envelope CommandResponse
		_ = json.Unmarshal(body, &envelope)
		return nil, &CommandError{StatusCode: resp.StatusCode, Message: envelope.Error}
	}

	var result CommandResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}

func (c *Client) command(ctx context.Context, path string, stateVersion int64, body any) (*CommandResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, path, stateVersion, body)
	if err != nil {
		return nil, err
	}
	return decodeResponse(resp)
}

// FetchState retrieves the full canonical state, used for manual resync.
func (c *Client) FetchState(ctx context.Context) (*CommandResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/state", 0, nil)
	if err != nil {
		return nil, err
	}
	return decodeResponse(resp)
}

// SaveState publishes the full local state to the authority. Used for
// operations without a dedicated endpoint, such as active-board selection.
func (c *Client) SaveState(ctx context.Context, stateVersion int64, state *models.RootState) (*CommandResponse, error) {
	return c.command(ctx, "/api/state", stateVersion, map[string]any{"state": state})
}

// Board management

func (c *Client) CreateBoard(ctx context.Context, stateVersion int64, board *models.Board) (*CommandResponse, error) {
	return c.command(ctx, "/api/board/create", stateVersion, map[string]any{"board": board})
}

func (c *Client) DeleteBoard(ctx context.Context, stateVersion int64, boardID string) (*CommandResponse, error) {
	return c.command(ctx, "/api/board/delete", stateVersion, map[string]any{"boardId": boardID})
}

// List management

func (c *Client) AddList(ctx context.Context, stateVersion int64, boardID string, list *models.List) (*CommandResponse, error) {
	return c.command(ctx, "/api/list/add", stateVersion, map[string]any{
		"boardId": boardID,
		"list":    list,
	})
}

func (c *Client) RenameList(ctx context.Context, stateVersion int64, boardID, listID, name string) (*CommandResponse, error) {
	return c.command(ctx, "/api/list/rename", stateVersion, map[string]any{
		"boardId": boardID,
		"listId":  listID,
		"name":    name,
	})
}

func (c *Client) DeleteList(ctx context.Context, stateVersion int64, boardID, listID string) (*CommandResponse, error) {
	return c.command(ctx, "/api/list/delete", stateVersion, map[string]any{
		"boardId": boardID,
		"listId":  listID,
	})
}

// Card management

func (c *Client) AddCard(ctx context.Context, stateVersion int64, boardID, listID string, card *models.Card) (*CommandResponse, error) {
	return c.command(ctx, "/api/card/add", stateVersion, map[string]any{
		"boardId": boardID,
		"listId":  listID,
		"card":    card,
	})
}

func (c *Client) UpdateCard(ctx context.Context, stateVersion int64, boardID, listID, cardID string, patch CardPatch) (*CommandResponse, error) {
	return c.command(ctx, "/api/card/update", stateVersion, map[string]any{
		"boardId": boardID,
		"listId":  listID,
		"cardId":  cardID,
		"patch":   patch,
	})
}

func (c *Client) DeleteCard(ctx context.Context, stateVersion int64, boardID, listID, cardID string) (*CommandResponse, error) {
	return c.command(ctx, "/api/card/delete", stateVersion, map[string]any{
		"boardId": boardID,
		"listId":  listID,
		"cardId":  cardID,
	})
}

func (c *Client) MoveCard(ctx context.Context, stateVersion int64, boardID, cardID, fromListID, toListID string, toIndex int) (*CommandResponse, error) {
	return c.command(ctx, "/api/card/move", stateVersion, map[string]any{
		"boardId":    boardID,
		"cardId":     cardID,
		"fromListId": fromListID,
		"toListId":   toListID,
		"toIndex":    toIndex,
	})
}

// Lock protocol

func (c *Client) AcquireLock(ctx context.Context, stateVersion int64, cardID string) (*CommandResponse, error) {
	return c.command(ctx, "/api/lock/acquire", stateVersion, map[string]any{"cardId": cardID})
}

func (c *Client) ReleaseLock(ctx context.Context, stateVersion int64, cardID string) (*CommandResponse, error) {
	return c.command(ctx, "/api/lock/release", stateVersion, map[string]any{"cardId": cardID})
}

// Epic management

func (c *Client) CreateEpic(ctx context.Context, stateVersion int64, epic *models.Epic) (*CommandResponse, error) {
	return c.command(ctx, "/api/epic/create", stateVersion, map[string]any{"epic": epic})
}

func (c *Client) UpdateEpic(ctx context.Context, stateVersion int64, epicID string, patch EpicPatch) (*CommandResponse, error) {
	return c.command(ctx, "/api/epic/update", stateVersion, map[string]any{
		"epicId": epicID,
		"patch":  patch,
	})
}

// Sprint management

func (c *Client) CreateSprint(ctx context.Context, stateVersion int64, sprint *models.Sprint) (*CommandResponse, error) {
	return c.command(ctx, "/api/sprint/create", stateVersion, map[string]any{"sprint": sprint})
}

func (c *Client) UpdateSprint(ctx context.Context, stateVersion int64, sprintID string, patch SprintPatch) (*CommandResponse, error) {
	return c.command(ctx, "/api/sprint/update", stateVersion, map[string]any{
		"sprintId": sprintID,
		"patch":    patch,
	})
}

func (c *Client) DeleteSprint(ctx context.Context, stateVersion int64, sprintID string) (*CommandResponse, error) {
	return c.command(ctx, "/api/sprint/delete", stateVersion, map[string]any{"sprintId": sprintID})
}
