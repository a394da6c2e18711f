package boardsync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendsIdentityHeaders(t *testing.T) {
	var gotUser, gotVersion, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = r.Header.Get("X-User-Id")
		gotVersion = r.Header.Get("X-State-Version")
		gotContentType = r.Header.Get("Content-Type")
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user-abcd1234", nil)
	resp, err := c.AcquireLock(context.Background(), 42, "1")
	require.NoError(t, err)

	assert.Equal(t, "user-abcd1234", gotUser)
	assert.Equal(t, "42", gotVersion)
	assert.Equal(t, "application/json", gotContentType)
	require.NotNil(t, resp.Success)
	assert.True(t, *resp.Success)
}

func TestClientDecodesErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]any{"error": "version conflict"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user-a", nil)
	_, err := c.DeleteBoard(context.Background(), 1, "main")

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, http.StatusConflict, cmdErr.StatusCode)
	assert.Equal(t, "version conflict", cmdErr.Message)
}

func TestClientToleratesBodylessError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user-a", nil)
	_, err := c.FetchState(context.Background())

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, http.StatusBadGateway, cmdErr.StatusCode)
}

func TestClientLockRefusalEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "lockedBy": "user-other"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user-a", nil)
	resp, err := c.AcquireLock(context.Background(), 0, "1")
	require.NoError(t, err)

	require.NotNil(t, resp.Success)
	assert.False(t, *resp.Success)
	assert.Equal(t, "user-other", resp.LockedBy)
}
