package push

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	apperrors "github.com/rezacr588/pactoria-mvp-sub005/pkg/errors"
	"github.com/rezacr588/pactoria-mvp-sub005/pkg/logger"
	"github.com/rezacr588/pactoria-mvp-sub005/pkg/metrics"
)

// Status is the connection state of the push channel.
type Status string

const (
	StatusDisconnected  Status = "disconnected"
	StatusConnecting    Status = "connecting"
	StatusConnected     Status = "connected"
	StatusDisconnecting Status = "disconnecting"
	StatusError         Status = "error"
)

// AllStatuses lists every state, for metrics labelling.
var AllStatuses = []string{
	string(StatusDisconnected),
	string(StatusConnecting),
	string(StatusConnected),
	string(StatusDisconnecting),
	string(StatusError),
}

// StatusHandler observes connection status changes.
type StatusHandler func(Status)

// Config holds connection manager configuration.
type Config struct {
	URL                  string
	HandshakeTimeout     time.Duration
	HeartbeatInterval    time.Duration
	ReconnectBase        time.Duration
	MaxReconnectAttempts int
}

const (
	defaultHandshakeTimeout  = 10 * time.Second
	defaultHeartbeatInterval = 30 * time.Second
	defaultReconnectBase     = 5 * time.Second
	defaultMaxReconnects     = 5
)

func (c Config) withDefaults() Config {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = defaultHandshakeTimeout
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.ReconnectBase <= 0 {
		c.ReconnectBase = defaultReconnectBase
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = defaultMaxReconnects
	}
	return c
}

// Manager owns one logical push connection: it opens it with the
// caller's token, measures liveness via heartbeat, and reconnects with
// exponential backoff on unexpected loss. It knows nothing about
// notification semantics; domain frames fan out through subscriptions.
type Manager struct {
	cfg     Config
	logger  *logger.Logger
	metrics *metrics.Metrics
	router  *router

	mu                   sync.Mutex
	status               Status
	conn                 *websocket.Conn
	token                string
	sessionID            string
	attempts             int
	lastHeartbeatAt      time.Time
	manuallyDisconnected bool
	reconnectTimer       *time.Timer
	gen                  int
	done                 chan struct{}

	writeMu sync.Mutex

	statusMu   sync.Mutex
	statusSubs map[int]StatusHandler
	nextStatus int
}

// NewManager creates a disconnected manager. Call Connect to open the
// channel.
func NewManager(cfg Config, log *logger.Logger, m *metrics.Metrics) *Manager {
	mgr := &Manager{
		cfg:        cfg.withDefaults(),
		logger:     log.WithComponent("push"),
		metrics:    m,
		status:     StatusDisconnected,
		statusSubs: make(map[int]StatusHandler),
	}
	mgr.router = newRouter(mgr.logger, m, mgr.handleSystemFrame)
	mgr.metrics.SetConnectionStatus(string(StatusDisconnected), AllStatuses)
	return mgr
}

// Status returns the current connection status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Connected reports whether the channel is currently established.
func (m *Manager) Connected() bool {
	return m.Status() == StatusConnected
}

// SessionID returns the server-assigned session identifier, empty
// until the handshake confirmation frame arrives.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// LastHeartbeat returns the time of the most recent liveness
// confirmation from the server.
func (m *Manager) LastHeartbeat() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHeartbeatAt
}

// Connect opens the push channel with the given token. A fresh call
// resets the reconnection budget; on unexpected loss the manager
// retries on its own up to the attempt ceiling, after which it parks
// in the error state until Connect is called again.
func (m *Manager) Connect(ctx context.Context, token string) error {
	m.mu.Lock()
	if m.status == StatusConnecting || m.status == StatusConnected {
		m.mu.Unlock()
		return nil
	}
	m.token = token
	m.attempts = 0
	m.manuallyDisconnected = false
	m.stopReconnectTimerLocked()
	m.mu.Unlock()

	return m.dial(ctx)
}

// Disconnect closes the channel intentionally. No reconnection is
// scheduled; a disconnect issued while a dial is in flight lands in
// the disconnected state once the dial resolves.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.manuallyDisconnected = true
	m.stopReconnectTimerLocked()
	conn := m.conn
	m.conn = nil
	if m.done != nil {
		close(m.done)
		m.done = nil
	}

	var changes []Status
	if conn != nil {
		if m.setStatusLocked(StatusDisconnecting) {
			changes = append(changes, StatusDisconnecting)
		}
	}
	if m.setStatusLocked(StatusDisconnected) {
		changes = append(changes, StatusDisconnected)
	}
	m.mu.Unlock()

	if conn != nil {
		m.writeMu.Lock()
		deadline := time.Now().Add(time.Second)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		m.writeMu.Unlock()
		conn.Close()
	}

	for _, st := range changes {
		m.fireStatus(st)
	}
	m.logger.Info("push channel disconnected")
}

// Send transmits a message envelope, stamping it with a generated id
// and timestamp. It fails when the channel is not connected; there is
// no send queue, callers own resubmission.
func (m *Manager) Send(msgType string, data interface{}) error {
	m.mu.Lock()
	conn := m.conn
	connected := m.status == StatusConnected
	m.mu.Unlock()

	if !connected || conn == nil {
		return apperrors.NotConnected("send")
	}

	env := Envelope{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		ID:        uuid.New().String(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return apperrors.Decode("failed to encode outbound payload", err)
		}
		env.Data = raw
	}

	m.writeMu.Lock()
	err := conn.WriteJSON(env)
	m.writeMu.Unlock()
	if err != nil {
		return apperrors.Transport("failed to write push frame", err)
	}
	return nil
}

// Subscribe registers a handler for one frame type. The returned
// function removes the subscription.
func (m *Manager) Subscribe(msgType string, h MessageHandler) func() {
	return m.router.subscribe(msgType, h)
}

// OnMessage registers a handler for every domain frame.
func (m *Manager) OnMessage(h MessageHandler) func() {
	return m.router.onMessage(h)
}

// OnStatusChange registers a status observer. Handlers run
// synchronously in registration order; a panic in one is recovered so
// the others still run.
func (m *Manager) OnStatusChange(h StatusHandler) func() {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()

	id := m.nextStatus
	m.nextStatus++
	m.statusSubs[id] = h

	return func() {
		m.statusMu.Lock()
		defer m.statusMu.Unlock()
		delete(m.statusSubs, id)
	}
}

// dial performs one connection attempt with the stored token.
func (m *Manager) dial(ctx context.Context) error {
	m.mu.Lock()
	if m.manuallyDisconnected {
		changed := m.setStatusLocked(StatusDisconnected)
		m.mu.Unlock()
		if changed {
			m.fireStatus(StatusDisconnected)
		}
		return nil
	}
	token := m.token
	changed := m.setStatusLocked(StatusConnecting)
	m.mu.Unlock()
	if changed {
		m.fireStatus(StatusConnecting)
	}

	target, err := connectURL(m.cfg.URL, token)
	if err != nil {
		return m.dialFailed(apperrors.Transport("invalid push URL", err))
	}

	dialer := websocket.Dialer{HandshakeTimeout: m.cfg.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, target, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return m.dialFailed(apperrors.Transport("push handshake failed", err))
	}

	m.mu.Lock()
	if m.manuallyDisconnected {
		m.mu.Unlock()
		conn.Close()
		return nil
	}
	m.gen++
	gen := m.gen
	m.conn = conn
	m.attempts = 0
	m.done = make(chan struct{})
	done := m.done
	m.setStatusLocked(StatusConnected)
	m.mu.Unlock()

	m.fireStatus(StatusConnected)
	m.logger.Info("push channel connected", "url", m.cfg.URL)

	go m.readLoop(conn, gen)
	go m.heartbeatLoop(gen, done)

	return nil
}

// dialFailed moves the machine to the error state and, unless the
// loss was intentional, schedules the next backoff attempt.
func (m *Manager) dialFailed(err error) error {
	m.mu.Lock()
	var changes []Status
	if m.manuallyDisconnected {
		if m.setStatusLocked(StatusDisconnected) {
			changes = append(changes, StatusDisconnected)
		}
		m.mu.Unlock()
		for _, st := range changes {
			m.fireStatus(st)
		}
		return err
	}
	if m.setStatusLocked(StatusError) {
		changes = append(changes, StatusError)
	}
	m.scheduleReconnectLocked()
	m.mu.Unlock()

	for _, st := range changes {
		m.fireStatus(st)
	}
	m.logger.Error(err, "push connection attempt failed")
	return err
}

// readLoop consumes frames until the transport closes. gen guards
// against a stale loop of a superseded connection mutating state.
func (m *Manager) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			m.handleReadError(gen, err)
			return
		}
		m.router.dispatch(raw)
	}
}

func (m *Manager) handleReadError(gen int, err error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	if m.done != nil {
		close(m.done)
		m.done = nil
	}
	if m.manuallyDisconnected {
		// Disconnect() already drove the status transitions.
		m.mu.Unlock()
		return
	}
	changed := m.setStatusLocked(StatusDisconnected)
	m.scheduleReconnectLocked()
	m.mu.Unlock()

	if changed {
		m.fireStatus(StatusDisconnected)
	}
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		m.logger.Warn("push channel closed unexpectedly", "error", err.Error())
	}
}

// scheduleReconnectLocked arms the backoff timer for the next attempt,
// or parks the machine in the terminal error state once the budget is
// spent. Caller holds m.mu.
func (m *Manager) scheduleReconnectLocked() {
	if m.attempts >= m.cfg.MaxReconnectAttempts {
		m.setStatusLocked(StatusError)
		m.logger.Warn("reconnect attempts exhausted, giving up",
			"attempts", m.attempts)
		return
	}

	delay := m.cfg.ReconnectBase << uint(m.attempts)
	m.attempts++
	m.metrics.ReconnectAttempts.Inc()
	m.logger.Info("scheduling reconnect",
		"attempt", m.attempts, "delay", delay.String())

	m.stopReconnectTimerLocked()
	m.reconnectTimer = time.AfterFunc(delay, func() {
		m.dial(context.Background())
	})
}

func (m *Manager) stopReconnectTimerLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

// heartbeatLoop sends a keepalive frame on its interval while the
// connection lives. It exists to keep intermediaries from idling the
// channel out; liveness failure detection stays with the transport.
func (m *Manager) heartbeatLoop(gen int, done chan struct{}) {
	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			m.mu.Lock()
			stale := gen != m.gen || m.status != StatusConnected
			m.mu.Unlock()
			if stale {
				return
			}
			if err := m.Send(TypeKeepalive, nil); err != nil {
				return
			}
			m.metrics.HeartbeatsSent.Inc()
		}
	}
}

// handleSystemFrame consumes the reserved frame types.
func (m *Manager) handleSystemFrame(env Envelope) {
	switch env.Type {
	case TypeKeepaliveResponse:
		m.mu.Lock()
		m.lastHeartbeatAt = time.Now()
		m.mu.Unlock()
	case TypeConnectionEstablished:
		var payload establishedPayload
		if err := env.Decode(&payload); err != nil {
			m.logger.Error(err, "malformed connection confirmation")
			return
		}
		m.mu.Lock()
		m.sessionID = payload.ConnectionID
		m.mu.Unlock()
		m.logger.Info("push session established", "session_id", payload.ConnectionID)
	}
}

// setStatusLocked updates the status and reports whether it changed.
// Caller holds m.mu; fireStatus must be called after unlocking.
func (m *Manager) setStatusLocked(next Status) bool {
	if m.status == next {
		return false
	}
	m.status = next
	m.metrics.SetConnectionStatus(string(next), AllStatuses)
	return true
}

func (m *Manager) fireStatus(st Status) {
	m.statusMu.Lock()
	handlers := make([]StatusHandler, 0, len(m.statusSubs))
	for id := 0; id < m.nextStatus; id++ {
		if h, ok := m.statusSubs[id]; ok {
			handlers = append(handlers, h)
		}
	}
	m.statusMu.Unlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					m.logger.Warn("status handler panicked", "panic", rec)
				}
			}()
			h(st)
		}()
	}
}

// connectURL embeds the auth token as a query parameter.
func connectURL(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
