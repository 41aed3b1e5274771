package syncer

import (
	"context"

	"github.com/rezacr588/pactoria-mvp-sub005/internal/model"
	"github.com/rezacr588/pactoria-mvp-sub005/internal/poller"
	"github.com/rezacr588/pactoria-mvp-sub005/internal/push"
	"github.com/rezacr588/pactoria-mvp-sub005/internal/store"
	"github.com/rezacr588/pactoria-mvp-sub005/pkg/logger"
)

// Syncer binds the connection manager, the notification store and the
// polling fallback into one explicitly constructed unit with a defined
// lifecycle. It owns the translation from domain push frames to store
// events; nothing else touches both sides.
type Syncer struct {
	manager *push.Manager
	store   *store.Store
	poller  *poller.Poller
	logger  *logger.Logger
	unsubs  []func()
}

func New(manager *push.Manager, st *store.Store, p *poller.Poller, log *logger.Logger) *Syncer {
	return &Syncer{
		manager: manager,
		store:   st,
		poller:  p,
		logger:  log.WithComponent("syncer"),
	}
}

// Start wires the push subscriptions, runs the initial fetch, starts
// the polling fallback and opens the push channel. A failed first
// connection attempt is not fatal: the manager keeps retrying with
// backoff and the poller covers the gap.
func (s *Syncer) Start(ctx context.Context, token string) error {
	s.bind()

	if err := s.store.Load(ctx); err != nil {
		s.logger.Error(err, "initial notification fetch failed")
	}

	s.poller.Start(ctx)

	if err := s.manager.Connect(ctx, token); err != nil {
		s.logger.Error(err, "initial push connection failed, relying on polling")
	}
	return nil
}

// Close tears the unit down: subscriptions first, then the poller,
// then the channel.
func (s *Syncer) Close() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
	s.poller.Close()
	s.manager.Disconnect()
}

func (s *Syncer) bind() {
	s.unsubs = append(s.unsubs,
		s.manager.Subscribe(model.FrameNotification, s.onNotification),
		s.manager.Subscribe(model.FrameNotificationRead, s.onRead),
		s.manager.Subscribe(model.FrameNotificationsAllRead, s.onAllRead),
		s.manager.Subscribe(model.FrameNotificationDeleted, s.onDeleted),
	)
}

func (s *Syncer) onNotification(env push.Envelope) {
	var rec model.Notification
	if err := env.Decode(&rec); err != nil {
		s.logger.Error(err, "malformed notification frame", "id", env.ID)
		return
	}
	if rec.ID == "" {
		s.logger.Warn("notification frame without an id", "frame", env.ID)
		return
	}
	s.store.ApplyPush(store.Added{Record: rec})
}

func (s *Syncer) onRead(env push.Envelope) {
	var payload model.ReadFrame
	if err := env.Decode(&payload); err != nil {
		s.logger.Error(err, "malformed notification_read frame", "id", env.ID)
		return
	}
	s.store.ApplyPush(store.Read{ID: payload.NotificationID})
}

func (s *Syncer) onAllRead(env push.Envelope) {
	var payload model.AllReadFrame
	if err := env.Decode(&payload); err != nil {
		s.logger.Error(err, "malformed notifications_all_read frame", "id", env.ID)
		return
	}
	s.store.ApplyPush(store.AllRead{UpdatedCount: payload.UpdatedCount})
}

func (s *Syncer) onDeleted(env push.Envelope) {
	var payload model.DeletedFrame
	if err := env.Decode(&payload); err != nil {
		s.logger.Error(err, "malformed notification_deleted frame", "id", env.ID)
		return
	}
	s.store.ApplyPush(store.Deleted{ID: payload.NotificationID})
}
