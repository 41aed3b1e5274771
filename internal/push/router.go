package push

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/rezacr588/pactoria-mvp-sub005/pkg/logger"
	"github.com/rezacr588/pactoria-mvp-sub005/pkg/metrics"
)

// MessageHandler receives a decoded inbound envelope.
type MessageHandler func(Envelope)

const (
	dedupeTTL     = 5 * time.Minute
	dedupeCleanup = 10 * time.Minute
)

// router classifies inbound frames: system frames go back to the
// manager, everything else fans out to per-type and general
// subscribers. Frame ids already seen within the dedupe window are
// dropped, which keeps reconnect replays from applying twice.
type router struct {
	logger  *logger.Logger
	metrics *metrics.Metrics
	system  func(Envelope)
	seen    *cache.Cache

	mu      sync.Mutex
	typed   map[string]map[int]MessageHandler
	general map[int]MessageHandler
	nextID  int
}

func newRouter(log *logger.Logger, m *metrics.Metrics, system func(Envelope)) *router {
	return &router{
		logger:  log,
		metrics: m,
		system:  system,
		seen:    cache.New(dedupeTTL, dedupeCleanup),
		typed:   make(map[string]map[int]MessageHandler),
		general: make(map[int]MessageHandler),
	}
}

// dispatch decodes a raw frame and routes it. Malformed frames are
// logged and dropped without touching connection state.
func (r *router) dispatch(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		r.logger.Error(err, "dropping malformed push frame")
		r.metrics.FramesDropped.WithLabelValues("decode").Inc()
		return
	}
	if env.Type == "" {
		r.logger.Warn("dropping push frame without a type")
		r.metrics.FramesDropped.WithLabelValues("decode").Inc()
		return
	}

	r.metrics.FramesReceived.WithLabelValues(env.Type).Inc()

	if env.ID != "" {
		if _, dup := r.seen.Get(env.ID); dup {
			r.logger.Debug("dropping duplicate push frame", "id", env.ID, "type", env.Type)
			r.metrics.FramesDropped.WithLabelValues("duplicate").Inc()
			return
		}
		r.seen.Set(env.ID, struct{}{}, cache.DefaultExpiration)
	}

	switch env.Type {
	case TypeKeepaliveResponse, TypeConnectionEstablished:
		r.system(env)
		return
	}

	r.fanOut(env)
}

// fanOut invokes subscribers synchronously in registration order. A
// panicking handler is recovered and logged so the rest still run.
func (r *router) fanOut(env Envelope) {
	r.mu.Lock()
	handlers := make([]MessageHandler, 0, len(r.typed[env.Type])+len(r.general))
	for id := 0; id < r.nextID; id++ {
		if h, ok := r.typed[env.Type][id]; ok {
			handlers = append(handlers, h)
		}
		if h, ok := r.general[id]; ok {
			handlers = append(handlers, h)
		}
	}
	r.mu.Unlock()

	for _, h := range handlers {
		r.invoke(h, env)
	}
}

func (r *router) invoke(h MessageHandler, env Envelope) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error(fmt.Errorf("%v", rec), "push message handler panicked", "type", env.Type)
		}
	}()
	h(env)
}

// subscribe registers a handler for one frame type and returns its
// unsubscribe function.
func (r *router) subscribe(msgType string, h MessageHandler) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	if r.typed[msgType] == nil {
		r.typed[msgType] = make(map[int]MessageHandler)
	}
	r.typed[msgType][id] = h

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.typed[msgType], id)
	}
}

// onMessage registers a handler for every domain frame and returns its
// unsubscribe function.
func (r *router) onMessage(h MessageHandler) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.general[id] = h

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.general, id)
	}
}
