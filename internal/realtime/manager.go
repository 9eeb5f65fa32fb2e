package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// closeGoingAway is sent when we give up on a socket that already failed.
const closeGoingAway = 1001

// EventSink receives application events decoded by the manager.
// OnEvent is called from the connection's reader goroutine, in wire order.
type EventSink interface {
	OnEvent(event InboundEvent)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(event InboundEvent)

// OnEvent calls f(event).
func (f SinkFunc) OnEvent(event InboundEvent) { f(event) }

var discardSink = SinkFunc(func(InboundEvent) {})

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the clock used for the handshake, auth and retry timers.
func WithClock(c Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

type listenerEntry struct {
	id uint64
	fn func(State)
}

// Manager maintains the single authenticated notification channel of a process.
//
// All consumers share one Manager. Connect is idempotent for an equivalent
// session, so any number of callers may request the connection; only the
// first creates a transport.
type Manager struct {
	cfg    Config
	dialer Dialer
	clock  Clock
	logger *slog.Logger
	kinds  map[EventKind]struct{}

	mu           sync.Mutex
	state        State
	session      Session
	hasSession   bool
	sink         EventSink
	conn         Conn
	connID       string
	gen          uint64 // bumped whenever the current attempt is superseded
	authed       bool
	authRejected bool
	exhausted    bool
	budget       *RetryBudget
	cancelDial   context.CancelFunc

	handshakeTimer Timer
	authTimer      Timer
	retryTimer     Timer

	listeners    []listenerEntry
	nextListener uint64
	pending      []State
	notifying    bool

	eventsReceived  int64
	framesDropped   int64
	connectAttempts int64
}

// NewManager creates a session manager. Nothing is dialed until Connect.
func NewManager(cfg Config, dialer Dialer, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	def := DefaultConfig()
	if cfg.HandshakeDelay < 0 {
		cfg.HandshakeDelay = 0
	}
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = def.AuthTimeout
	}
	if cfg.ReconnectBaseDelay <= 0 {
		cfg.ReconnectBaseDelay = def.ReconnectBaseDelay
	}
	if cfg.ReconnectMaxDelay < cfg.ReconnectBaseDelay {
		cfg.ReconnectMaxDelay = cfg.ReconnectBaseDelay
	}

	kinds := map[EventKind]struct{}{
		KindNotificationCreated: {},
		KindUnreadCountUpdate:   {},
	}
	for _, k := range cfg.ExtraEventKinds {
		switch k {
		case "", frameAuth, frameAuthSuccess, frameAuthError:
			continue
		}
		kinds[k] = struct{}{}
	}

	m := &Manager{
		cfg:    cfg,
		dialer: dialer,
		clock:  SystemClock,
		logger: logger,
		kinds:  kinds,
		budget: NewRetryBudget(cfg.ReconnectBaseDelay, cfg.ReconnectMaxDelay, cfg.MaxReconnectAttempts),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect starts the connect sequence for session, delivering events to sink.
//
// If an attempt for an equivalent session is already connecting,
// authenticating, connected or waiting to reconnect, Connect is a no-op.
// A different session tears the current connection down first. Outcomes are
// observed through Subscribe and State.
func (m *Manager) Connect(session Session, sink EventSink) error {
	if session.Token == "" {
		return ErrEmptyToken
	}
	if sink == nil {
		sink = discardSink
	}

	m.mu.Lock()
	if m.hasSession && m.session.Equal(session) && m.state.active() {
		m.mu.Unlock()
		return nil
	}

	var stale Conn
	if m.hasSession && m.state.active() {
		m.logger.Info("session changed, restarting connection",
			"subject_id", session.SubjectID,
		)
		stale = m.teardownLocked()
	}

	m.session = session
	m.hasSession = true
	m.sink = sink
	m.authRejected = false
	m.exhausted = false
	m.budget.Reset()
	m.startAttemptLocked()
	m.mu.Unlock()

	m.closeConn(stale, CloseNormal, "session changed")
	m.flush()
	return nil
}

// Disconnect is the logout path. It cancels every pending timer and any
// in-flight dial, closes the socket with a normal closure, clears the retry
// budget and session, and settles in StateDisconnected without reconnecting.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	conn := m.teardownLocked()
	wasActive := m.state.active()
	m.session = Session{}
	m.hasSession = false
	m.sink = nil
	m.authRejected = false
	m.exhausted = false
	m.budget.Reset()
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()

	if wasActive {
		m.logger.Info("disconnected", "reason", "intentional")
	}
	m.closeConn(conn, CloseNormal, "logout")
	m.flush()
}

// Reconnect retries the current session immediately with a fresh retry
// budget. It is meant for use after an auth rejection or exhausted retries;
// it is a no-op without a session or while an attempt is in flight.
func (m *Manager) Reconnect() {
	m.mu.Lock()
	if !m.hasSession {
		m.mu.Unlock()
		return
	}
	switch m.state {
	case StateConnecting, StateAuthenticating, StateConnected:
		m.mu.Unlock()
		return
	}

	stale := m.teardownLocked()
	m.authRejected = false
	m.exhausted = false
	m.budget.Reset()
	m.startAttemptLocked()
	m.mu.Unlock()

	m.closeConn(stale, CloseNormal, "reconnect")
	m.flush()
}

// Send serializes msg as JSON and writes it when the channel is connected and
// authenticated. Otherwise it does nothing and returns false: the channel is
// best-effort and never queues.
func (m *Manager) Send(msg any) bool {
	m.mu.Lock()
	if m.state != StateConnected || !m.authed || m.conn == nil {
		state := m.state
		m.mu.Unlock()
		m.logger.Debug("dropping outbound message", "error", ErrNotConnected, "state", state)
		return false
	}
	conn := m.conn
	m.mu.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		m.logger.Warn("failed to encode outbound message", "error", err)
		return false
	}
	if err := conn.WriteMessage(data); err != nil {
		// The reader observes the broken socket and runs the close path.
		m.logger.Debug("send failed", "error", err)
		return false
	}
	return true
}

// Subscribe registers listener for every state transition and returns a
// function that removes it. Listeners run synchronously, in transition order,
// and may call back into the Manager.
func (m *Manager) Subscribe(listener func(State)) (unsubscribe func()) {
	m.mu.Lock()
	m.nextListener++
	id := m.nextListener
	m.listeners = append(m.listeners, listenerEntry{id: id, fn: listener})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			m.listeners = slices.DeleteFunc(slices.Clone(m.listeners), func(e listenerEntry) bool {
				return e.id == id
			})
			m.mu.Unlock()
		})
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stats returns current statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return ManagerStats{
		State:           m.state,
		ConnID:          m.connID,
		Attempt:         m.budget.Attempt,
		MaxAttempts:     m.budget.Cap,
		Exhausted:       m.exhausted,
		AuthRejected:    m.authRejected,
		EventsReceived:  m.eventsReceived,
		FramesDropped:   m.framesDropped,
		ConnectAttempts: m.connectAttempts,
	}
}

// startAttemptLocked opens a new transport in the background.
func (m *Manager) startAttemptLocked() {
	m.gen++
	gen := m.gen

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelDial = cancel
	m.connID = uuid.NewString()
	m.connectAttempts++
	m.setStateLocked(StateConnecting)

	logger := m.logger.With("conn_id", m.connID)
	logger.Debug("connecting", "url", m.cfg.URL, "attempt", m.budget.Attempt)

	go m.run(ctx, gen, logger)
}

// run dials, then reads frames until the socket fails or is superseded.
func (m *Manager) run(ctx context.Context, gen uint64, logger *slog.Logger) {
	conn, err := m.dialer.Dial(ctx, m.cfg.URL)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("dial failed", "url", m.cfg.URL, "error", err)
		}
		m.handleClose(gen, CloseAbnormal, err)
		return
	}

	if !m.opened(gen, conn) {
		conn.Close(CloseNormal, "superseded")
		return
	}
	logger.Debug("transport open")

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			m.handleClose(gen, CloseCode(err), err)
			return
		}
		m.handleFrame(gen, data, time.Now(), logger)
	}
}

// opened records a freshly dialed transport and schedules the auth frame.
// The short delay lets the open settle before the first write.
func (m *Manager) opened(gen uint64, conn Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return false
	}
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	m.conn = conn
	stopTimer(&m.handshakeTimer)
	m.handshakeTimer = m.clock.AfterFunc(m.cfg.HandshakeDelay, func() {
		m.sendAuth(gen)
	})
	return true
}

// sendAuth writes the auth frame and arms the auth timeout.
func (m *Manager) sendAuth(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.conn == nil || m.state != StateConnecting {
		m.mu.Unlock()
		return
	}
	m.handshakeTimer = nil
	conn := m.conn
	token := m.session.Token
	m.setStateLocked(StateAuthenticating)
	stopTimer(&m.authTimer)
	m.authTimer = m.clock.AfterFunc(m.cfg.AuthTimeout, func() {
		m.authExpired(gen)
	})
	m.mu.Unlock()
	m.flush()

	data, err := json.Marshal(authFrame{Type: frameAuth, Token: token})
	if err != nil {
		m.handleClose(gen, CloseAbnormal, fmt.Errorf("encode auth frame: %w", err))
		return
	}
	if err := conn.WriteMessage(data); err != nil {
		m.handleClose(gen, CloseAbnormal, fmt.Errorf("send auth frame: %w", err))
	}
}

// authExpired force-closes a handshake that got no reply in time.
func (m *Manager) authExpired(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateAuthenticating {
		m.mu.Unlock()
		return
	}
	m.authTimer = nil
	conn := m.closeLocked(gen, CloseAuthTimeout, ErrAuthTimeout)
	m.mu.Unlock()

	m.closeConn(conn, CloseAuthTimeout, "auth timeout")
	m.flush()
}

// handleFrame decodes one server frame and acts on it.
func (m *Manager) handleFrame(gen uint64, data []byte, receivedAt time.Time, logger *slog.Logger) {
	env, err := decodeFrame(data)
	if err != nil {
		m.mu.Lock()
		m.framesDropped++
		m.mu.Unlock()
		logger.Warn("dropping malformed frame", "error", err, "size", len(data))
		return
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}

	switch env.Type {
	case frameAuthSuccess:
		if m.state != StateAuthenticating {
			m.mu.Unlock()
			logger.Debug("ignoring auth_success outside handshake", "state", m.State())
			return
		}
		stopTimer(&m.authTimer)
		m.authed = true
		m.exhausted = false
		m.budget.Reset()
		m.setStateLocked(StateConnected)
		m.mu.Unlock()

		logger.Info("notification channel authenticated")
		m.flush()
		return

	case frameAuthError:
		if m.state != StateAuthenticating {
			m.mu.Unlock()
			logger.Debug("ignoring auth_error outside handshake")
			return
		}
		stopTimer(&m.authTimer)
		conn := m.closeLocked(gen, CloseAuthFailed, fmt.Errorf("%w: %s", ErrAuthFailed, env.Error))
		m.mu.Unlock()

		m.closeConn(conn, CloseAuthFailed, "auth failed")
		m.flush()
		return
	}

	kind := EventKind(env.Type)
	if m.state != StateConnected || !m.authed {
		m.framesDropped++
		m.mu.Unlock()
		logger.Debug("dropping event received before authentication", "kind", kind)
		return
	}
	if _, ok := m.kinds[kind]; !ok {
		m.framesDropped++
		m.mu.Unlock()
		logger.Debug("ignoring unknown event kind", "kind", kind)
		return
	}
	sink := m.sink
	m.eventsReceived++
	m.mu.Unlock()

	m.deliver(sink, InboundEvent{Kind: kind, Data: env.Data, ReceivedAt: receivedAt}, logger)
}

// deliver hands event to sink, containing any panic to this event.
func (m *Manager) deliver(sink EventSink, event InboundEvent, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event sink panicked", "kind", event.Kind, "panic", r)
		}
	}()
	sink.OnEvent(event)
}

// handleClose runs the close path for a transport of generation gen.
func (m *Manager) handleClose(gen uint64, code int, cause error) {
	m.mu.Lock()
	conn := m.closeLocked(gen, code, cause)
	m.mu.Unlock()

	m.closeConn(conn, localCloseCode(code), "closed")
	m.flush()
}

// closeLocked tears down the attempt and decides whether to retry. It returns
// the transport the caller must close after unlocking.
func (m *Manager) closeLocked(gen uint64, code int, cause error) Conn {
	if gen != m.gen {
		return nil
	}

	logger := m.logger.With("conn_id", m.connID)
	conn := m.teardownLocked()
	m.setStateLocked(StateDisconnected)

	switch code {
	case CloseNormal:
		logger.Info("connection closed normally", "error", cause)
		return conn
	case CloseAuthFailed:
		m.authRejected = true
		logger.Warn("authentication rejected, not reconnecting", "error", cause)
		return conn
	case CloseAuthTimeout:
		logger.Warn("auth handshake timed out", "timeout", m.cfg.AuthTimeout)
	}

	delay, ok := m.budget.Next()
	if !ok {
		m.exhausted = true
		logger.Warn("reconnect attempts exhausted",
			"max_attempts", m.budget.Cap,
			"code", code,
			"error", cause,
		)
		return conn
	}

	m.setStateLocked(StateReconnecting)
	retryGen := m.gen
	stopTimer(&m.retryTimer)
	m.retryTimer = m.clock.AfterFunc(delay, func() {
		m.retry(retryGen)
	})

	logger.Info("scheduling reconnect",
		"attempt", m.budget.Attempt,
		"delay", delay,
		"code", code,
		"error", cause,
	)
	return conn
}

// retry starts the attempt scheduled by closeLocked.
func (m *Manager) retry(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateReconnecting {
		m.mu.Unlock()
		return
	}
	m.retryTimer = nil
	m.startAttemptLocked()
	m.mu.Unlock()

	m.flush()
}

// teardownLocked invalidates the current attempt: callbacks and timers of the
// old generation become no-ops. It returns the transport to close, if any.
func (m *Manager) teardownLocked() Conn {
	m.gen++

	stopTimer(&m.handshakeTimer)
	stopTimer(&m.authTimer)
	stopTimer(&m.retryTimer)

	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}

	conn := m.conn
	m.conn = nil
	m.connID = ""
	m.authed = false
	return conn
}

// setStateLocked records a transition and queues it for listeners.
func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.logger.Debug("state transition", "from", m.state, "to", s)
	m.state = s
	m.pending = append(m.pending, s)
}

// flush delivers queued transitions. Only one goroutine drains at a time, so
// listeners observe transitions in the order they happened.
func (m *Manager) flush() {
	m.mu.Lock()
	if m.notifying {
		m.mu.Unlock()
		return
	}
	m.notifying = true

	for len(m.pending) > 0 {
		s := m.pending[0]
		m.pending = m.pending[1:]
		listeners := m.listeners
		m.mu.Unlock()

		for _, l := range listeners {
			m.notify(l.fn, s)
		}

		m.mu.Lock()
	}

	m.pending = nil
	m.notifying = false
	m.mu.Unlock()
}

func (m *Manager) notify(fn func(State), s State) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("state listener panicked", "state", s, "panic", r)
		}
	}()
	fn(s)
}

func (m *Manager) closeConn(conn Conn, code int, reason string) {
	if conn == nil {
		return
	}
	if err := conn.Close(code, reason); err != nil {
		m.logger.Debug("close transport", "code", code, "error", err)
	}
}

// localCloseCode is the code we send when closing after a given close code.
func localCloseCode(code int) int {
	switch code {
	case CloseNormal, CloseAuthFailed, CloseAuthTimeout:
		return code
	}
	return closeGoingAway
}
