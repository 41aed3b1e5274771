package syncer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezacr588/pactoria-mvp-sub005/internal/model"
	"github.com/rezacr588/pactoria-mvp-sub005/internal/notifier"
	"github.com/rezacr588/pactoria-mvp-sub005/internal/poller"
	"github.com/rezacr588/pactoria-mvp-sub005/internal/push"
	"github.com/rezacr588/pactoria-mvp-sub005/internal/store"
	"github.com/rezacr588/pactoria-mvp-sub005/pkg/logger"
	"github.com/rezacr588/pactoria-mvp-sub005/pkg/metrics"
)

type fakeAPI struct {
	page *model.NotificationPage
}

func (f *fakeAPI) List(ctx context.Context, opts notifier.ListOptions) (*model.NotificationPage, error) {
	return f.page, nil
}

func (f *fakeAPI) MarkRead(ctx context.Context, id string) error { return nil }
func (f *fakeAPI) MarkAllRead(ctx context.Context) (int, error)  { return 0, nil }
func (f *fakeAPI) Delete(ctx context.Context, id string) error   { return nil }

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

func envelope(t *testing.T, typ, id string, payload interface{}) push.Envelope {
	t.Helper()
	env := push.Envelope{Type: typ, ID: id, Timestamp: time.Now().UnixMilli()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		env.Data = raw
	}
	return env
}

// newSyncUnit assembles a full unit against a push server script and a
// canned initial page.
func newSyncUnit(t *testing.T, api store.API, script func(conn *websocket.Conn)) (*Syncer, *store.Store) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		script(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	m := metrics.NewMetrics(prometheus.NewRegistry(), "test", "syncer")
	log := logger.Nop()

	manager := push.NewManager(push.Config{
		URL: "ws" + strings.TrimPrefix(srv.URL, "http"),
	}, log, m)

	st := store.New(store.Config{MaxHeld: 10, PageSize: 10}, api, manager.Connected, log, m)

	p := poller.New(poller.Config{Interval: time.Minute}, manager, st, log, m)

	s := New(manager, st, p, log)
	t.Cleanup(s.Close)
	return s, st
}

func TestStartLoadsThenAppliesPushFrames(t *testing.T) {
	api := &fakeAPI{
		page: &model.NotificationPage{
			Notifications: []model.Notification{{ID: "n-1", Kind: model.KindDeadline}},
			UnreadCount:   1,
			Total:         1,
			Page:          1,
			Size:          10,
			Pages:         1,
		},
	}

	s, st := newSyncUnit(t, api, func(conn *websocket.Conn) {
		conn.WriteJSON(envelope(t, "connection_established", "sys-1",
			map[string]string{"connection_id": "sess-1"}))
		conn.WriteJSON(envelope(t, model.FrameNotification, "f-1",
			model.Notification{ID: "n-2", Kind: model.KindContract, Title: "Contract renewed"}))
		conn.WriteJSON(envelope(t, model.FrameNotificationRead, "f-2",
			model.ReadFrame{NotificationID: "n-1"}))
		conn.WriteJSON(envelope(t, model.FrameNotificationDeleted, "f-3",
			model.DeletedFrame{NotificationID: "n-2"}))
	})

	require.NoError(t, s.Start(context.Background(), "token"))

	// initial fetch landed before the channel opened
	snap := st.Snapshot()
	require.NotEmpty(t, snap.Notifications)
	assert.Equal(t, "n-1", snap.Notifications[0].ID)

	require.Eventually(t, func() bool {
		snap := st.Snapshot()
		return len(snap.Notifications) == 1 &&
			snap.Notifications[0].ID == "n-1" &&
			snap.Notifications[0].Read &&
			snap.UnreadCount == 0 &&
			snap.TotalCount == 1
	}, 2*time.Second, 10*time.Millisecond, "push frames must converge the aggregate")
}

func TestAllReadFrameZeroesUnread(t *testing.T) {
	api := &fakeAPI{
		page: &model.NotificationPage{
			Notifications: []model.Notification{
				{ID: "n-1"},
				{ID: "n-2"},
			},
			UnreadCount: 2,
			Total:       2,
			Page:        1,
			Size:        10,
			Pages:       1,
		},
	}

	two := 2
	s, st := newSyncUnit(t, api, func(conn *websocket.Conn) {
		conn.WriteJSON(envelope(t, model.FrameNotificationsAllRead, "f-1",
			model.AllReadFrame{UpdatedCount: &two}))
	})

	require.NoError(t, s.Start(context.Background(), "token"))

	require.Eventually(t, func() bool {
		snap := st.Snapshot()
		if snap.UnreadCount != 0 {
			return false
		}
		for _, rec := range snap.Notifications {
			if !rec.Read {
				return false
			}
		}
		return len(snap.Notifications) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMalformedDomainFrameIsIgnored(t *testing.T) {
	api := &fakeAPI{page: &model.NotificationPage{Page: 1, Size: 10}}

	s, st := newSyncUnit(t, api, func(conn *websocket.Conn) {
		// a notification frame whose payload has no id
		conn.WriteJSON(envelope(t, model.FrameNotification, "f-1",
			map[string]string{"title": "no id"}))
		conn.WriteJSON(envelope(t, model.FrameNotification, "f-2",
			model.Notification{ID: "n-1", Title: "valid"}))
	})

	require.NoError(t, s.Start(context.Background(), "token"))

	require.Eventually(t, func() bool {
		return len(st.Snapshot().Notifications) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "n-1", st.Snapshot().Notifications[0].ID)
}

func TestCloseStopsDelivery(t *testing.T) {
	api := &fakeAPI{page: &model.NotificationPage{Page: 1, Size: 10}}

	s, st := newSyncUnit(t, api, func(conn *websocket.Conn) {})

	require.NoError(t, s.Start(context.Background(), "token"))
	s.Close()

	assert.Empty(t, st.Snapshot().Notifications)
}
