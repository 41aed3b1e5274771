package store

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rezacr588/pactoria-mvp-sub005/internal/model"
	"github.com/rezacr588/pactoria-mvp-sub005/internal/notifier"
	"github.com/rezacr588/pactoria-mvp-sub005/pkg/logger"
	"github.com/rezacr588/pactoria-mvp-sub005/pkg/metrics"
)

// API is the notification service surface the store depends on,
// satisfied by notifier.Client.
type API interface {
	List(ctx context.Context, opts notifier.ListOptions) (*model.NotificationPage, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) (int, error)
	Delete(ctx context.Context, id string) error
}

// ConnectionProbe reports whether the push channel is currently
// connected. It gates the optimistic-update path: while connected the
// server echoes every mutation back as a push event, so applying the
// change locally too would risk double counting.
type ConnectionProbe func() bool

// Config holds store configuration.
type Config struct {
	MaxHeld  int
	PageSize int
}

const (
	defaultMaxHeld  = 10
	defaultPageSize = 10
)

// Store is the sole owner and sole mutator of the notification
// aggregate. Every mutation goes through a pure reducer applied under
// the store mutex, so each event is atomic and the aggregate has
// exactly one writer.
type Store struct {
	api       API
	connected ConnectionProbe
	logger    *logger.Logger
	metrics   *metrics.Metrics
	maxHeld   int
	pageSize  int

	mu         sync.Mutex
	state      Aggregate
	loadSeq    uint64
	appliedSeq uint64

	subMu   sync.Mutex
	subs    map[int]func(Aggregate)
	nextSub int
}

// New creates an empty store.
func New(cfg Config, api API, connected ConnectionProbe, log *logger.Logger, m *metrics.Metrics) *Store {
	if cfg.MaxHeld <= 0 {
		cfg.MaxHeld = defaultMaxHeld
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	return &Store{
		api:       api,
		connected: connected,
		logger:    log.WithComponent("store"),
		metrics:   m,
		maxHeld:   cfg.MaxHeld,
		pageSize:  cfg.PageSize,
		subs:      make(map[int]func(Aggregate)),
	}
}

// Snapshot returns a read-only copy of the aggregate.
func (s *Store) Snapshot() Aggregate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Aggregate {
	st := s.state
	st.Notifications = cloneRecords(s.state.Notifications)
	return st
}

// Empty reports whether the store holds no records.
func (s *Store) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.Notifications) == 0
}

// OnChange registers an observer of aggregate snapshots. The returned
// function removes the subscription.
func (s *Store) OnChange(fn func(Aggregate)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

// Load fetches the authoritative page and replaces the aggregate
// wholesale. On failure the prior state is kept and only the error
// field is set: stale-but-present beats a cleared view. A response
// that resolves after a newer one has already been applied is
// discarded.
func (s *Store) Load(ctx context.Context) error {
	opts := notifier.ListOptions{Page: 1, Size: s.pageSize}
	return s.LoadWith(ctx, opts)
}

// LoadWith is Load with explicit pagination and filters.
func (s *Store) LoadWith(ctx context.Context, opts notifier.ListOptions) error {
	s.mu.Lock()
	s.loadSeq++
	seq := s.loadSeq
	s.state.Loading = true
	s.mu.Unlock()

	timer := prometheus.NewTimer(s.metrics.LoadLatency)
	page, err := s.api.List(ctx, opts)
	timer.ObserveDuration()

	s.mu.Lock()
	if seq <= s.appliedSeq {
		s.mu.Unlock()
		s.metrics.Loads.WithLabelValues("stale").Inc()
		s.logger.Debug("discarding superseded load response", "seq", seq)
		return nil
	}
	s.appliedSeq = seq

	if err != nil {
		s.state.Loading = false
		s.state.Error = err.Error()
		snapshot := s.snapshotLocked()
		s.mu.Unlock()

		s.metrics.Loads.WithLabelValues("error").Inc()
		s.logger.Error(err, "notification fetch failed, keeping prior state")
		s.notify(snapshot)
		return err
	}

	s.state = reduceLoaded(s.state, page, s.maxHeld)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.metrics.Loads.WithLabelValues("success").Inc()
	s.metrics.UnreadCount.Set(float64(snapshot.UnreadCount))
	s.notify(snapshot)
	return nil
}

// ApplyPush runs one push-delivered event through its reducer.
func (s *Store) ApplyPush(ev Event) {
	s.mu.Lock()
	switch e := ev.(type) {
	case Added:
		s.state = reduceAdded(s.state, e.Record, s.maxHeld)
	case Read:
		s.state = reduceRead(s.state, e.ID)
	case AllRead:
		s.state = reduceAllRead(s.state)
		if e.UpdatedCount != nil {
			s.logger.Debug("server reported mark-all-read", "updated", *e.UpdatedCount)
		}
	case Deleted:
		s.state = reduceDeleted(s.state, e.ID)
	default:
		s.mu.Unlock()
		s.logger.Warn("ignoring unknown push event")
		return
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.metrics.PushEventsApplied.WithLabelValues(ev.kind()).Inc()
	s.metrics.UnreadCount.Set(float64(snapshot.UnreadCount))
	s.notify(snapshot)
}

// MarkAsRead issues the mutation to the service. The local transition
// is applied only while the push channel is down; when connected the
// server's echo frame is the single application path, and the
// idempotent reducer keeps a rare double delivery from decrementing
// twice.
func (s *Store) MarkAsRead(ctx context.Context, id string) error {
	if err := s.api.MarkRead(ctx, id); err != nil {
		return err
	}
	if !s.connected() {
		s.ApplyPush(Read{ID: id})
	}
	return nil
}

// MarkAllAsRead issues the bulk mutation, applying it locally only
// while disconnected.
func (s *Store) MarkAllAsRead(ctx context.Context) error {
	updated, err := s.api.MarkAllRead(ctx)
	if err != nil {
		return err
	}
	if !s.connected() {
		s.ApplyPush(AllRead{UpdatedCount: &updated})
	}
	return nil
}

// Delete issues the deletion, applying it locally only while
// disconnected.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.api.Delete(ctx, id); err != nil {
		return err
	}
	if !s.connected() {
		s.ApplyPush(Deleted{ID: id})
	}
	return nil
}

func (s *Store) notify(snapshot Aggregate) {
	s.subMu.Lock()
	handlers := make([]func(Aggregate), 0, len(s.subs))
	for id := 0; id < s.nextSub; id++ {
		if fn, ok := s.subs[id]; ok {
			handlers = append(handlers, fn)
		}
	}
	s.subMu.Unlock()

	for _, fn := range handlers {
		fn(snapshot)
	}
}
