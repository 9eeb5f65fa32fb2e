package realtime

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrEmptyToken    = errors.New("session token is empty")
	ErrNotConnected  = errors.New("not connected")
	ErrAuthTimeout   = errors.New("auth handshake timed out")
	ErrAuthFailed    = errors.New("authentication rejected")
	ErrAlreadyClosed = errors.New("already closed")
)

// Close codes carried on the websocket close frame.
const (
	CloseNormal      = 1000 // intentional shutdown (logout)
	CloseAbnormal    = 1006 // no close frame received
	CloseAuthFailed  = 4001
	CloseAuthTimeout = 4008
)

// State is the connection state of the session manager.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON and logs.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// active reports whether an attempt is in flight or established.
func (s State) active() bool {
	switch s {
	case StateConnecting, StateAuthenticating, StateConnected, StateReconnecting:
		return true
	}
	return false
}

// Session is the credential pair a connection attempt authenticates with.
type Session struct {
	Token     string
	SubjectID string
}

// Equal reports whether two sessions would authenticate identically.
func (s Session) Equal(o Session) bool {
	return s.Token == o.Token && s.SubjectID == o.SubjectID
}

// EventKind identifies a decoded server frame.
type EventKind string

const (
	KindNotificationCreated EventKind = "notification_created"
	KindUnreadCountUpdate   EventKind = "unread_count_update"
)

// InboundEvent is an application event received from the server.
type InboundEvent struct {
	Kind       EventKind       // Event kind (wire "type")
	Data       json.RawMessage // Raw "data" object, may be nil
	ReceivedAt time.Time       // Local time the frame was read
}

// Decode unmarshals the event payload into v.
func (e InboundEvent) Decode(v any) error {
	if len(e.Data) == 0 {
		return errors.New("event has no data")
	}
	return json.Unmarshal(e.Data, v)
}

// Wire frame types.
const (
	frameAuth        = "auth"
	frameAuthSuccess = "auth_success"
	frameAuthError   = "auth_error"
)

// authFrame is the client handshake frame.
type authFrame struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// envelope is the common shape of every server frame.
type envelope struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// NotificationCreated is the payload of a notification_created event.
type NotificationCreated struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	ActorID   string    `json:"actorId,omitempty"`
	EntityID  string    `json:"entityId,omitempty"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// UnreadCountUpdate is the payload of an unread_count_update event.
type UnreadCountUpdate struct {
	UnreadCount int `json:"unreadCount"`
}

// Config configures the session manager.
type Config struct {
	URL                  string        // Websocket endpoint (ws:// or wss://)
	HandshakeDelay       time.Duration // Delay between socket open and the auth frame
	AuthTimeout          time.Duration // Max wait for auth_success/auth_error
	ReconnectBaseDelay   time.Duration // Delay before the first retry
	ReconnectMaxDelay    time.Duration // Upper bound for any retry delay
	MaxReconnectAttempts int           // Retry cap; 0 disables auto-reconnect
	ExtraEventKinds      []EventKind   // Application kinds forwarded besides the built-in ones
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeDelay:       50 * time.Millisecond,
		AuthTimeout:          5 * time.Second,
		ReconnectBaseDelay:   1 * time.Second,
		ReconnectMaxDelay:    30 * time.Second,
		MaxReconnectAttempts: 5,
	}
}

// ManagerStats is a point-in-time view of the manager.
type ManagerStats struct {
	State           State  `json:"state"`
	ConnID          string `json:"conn_id,omitempty"`
	Attempt         int    `json:"attempt"`
	MaxAttempts     int    `json:"max_attempts"`
	Exhausted       bool   `json:"exhausted"`
	AuthRejected    bool   `json:"auth_rejected"`
	EventsReceived  int64  `json:"events_received"`
	FramesDropped   int64  `json:"frames_dropped"`
	ConnectAttempts int64  `json:"connect_attempts"`
}
