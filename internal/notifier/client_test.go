package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezacr588/pactoria-mvp-sub005/internal/model"
	apperrors "github.com/rezacr588/pactoria-mvp-sub005/pkg/errors"
	"github.com/rezacr588/pactoria-mvp-sub005/pkg/logger"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, Token: "test-token"}, logger.Nop())
}

func TestListBuildsRequest(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/notifications", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("size"))
		assert.Equal(t, "true", r.URL.Query().Get("unread_only"))
		assert.Equal(t, "contract", r.URL.Query().Get("kind"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(model.NotificationPage{
			Notifications: []model.Notification{{ID: "n-1", Kind: model.KindContract}},
			UnreadCount:   1,
			Total:         15,
			Page:          2,
			Size:          10,
			Pages:         2,
		})
	})

	page, err := c.List(context.Background(), ListOptions{
		Page:       2,
		Size:       10,
		UnreadOnly: true,
		Kind:       model.KindContract,
	})

	require.NoError(t, err)
	require.Len(t, page.Notifications, 1)
	assert.Equal(t, "n-1", page.Notifications[0].ID)
	assert.Equal(t, 1, page.UnreadCount)
	assert.Equal(t, 15, page.Total)
}

func TestListServerErrorIsFetchError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	})

	_, err := c.List(context.Background(), ListOptions{Page: 1, Size: 10})

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrFetch))
}

func TestMarkRead(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodPut, r.Method)
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, c.MarkRead(context.Background(), "n-1"))
	assert.Equal(t, "/api/v1/notifications/n-1/read", gotPath)
}

func TestMarkReadFailureIsMutationError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	err := c.MarkRead(context.Background(), "missing")

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrMutation))
}

func TestMarkAllReadReturnsUpdatedCount(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/notifications/read-all", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]int{"updated_count": 7})
	})

	updated, err := c.MarkAllRead(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 7, updated)
}

func TestDelete(t *testing.T) {
	var gotMethod, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.Delete(context.Background(), "n-2"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/api/v1/notifications/n-2", gotPath)
}

func TestCircuitOpensAfterRepeatedFailures(t *testing.T) {
	var hits int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Error(w, "down", http.StatusServiceUnavailable)
	})

	for i := 0; i < 8; i++ {
		_, err := c.List(context.Background(), ListOptions{Page: 1, Size: 10})
		require.Error(t, err)
	}

	// once open, calls fail fast without reaching the server
	assert.Equal(t, 5, hits)
}
