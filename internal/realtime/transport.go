package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is an open socket to the notification server.
type Conn interface {
	// ReadMessage blocks until the next data frame arrives or the socket fails.
	ReadMessage() ([]byte, error)

	// WriteMessage writes one text frame.
	WriteMessage(data []byte) error

	// Close sends a close frame carrying code and releases the socket.
	// Calling Close more than once is a no-op.
	Close(code int, reason string) error
}

// Dialer opens connections to the notification endpoint.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// TransportConfig configures the websocket transport.
type TransportConfig struct {
	HandshakeTimeout time.Duration // Opening handshake deadline
	WriteTimeout     time.Duration // Write deadline for frames
	PingInterval     time.Duration // Keepalive ping period (0 = disabled)
	PongTimeout      time.Duration // Max silence before the read fails
	UserAgent        string        // Sent on the upgrade request
}

// DefaultTransportConfig returns sensible defaults.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingInterval:     30 * time.Second,
		PongTimeout:      60 * time.Second,
	}
}

// WebSocketDialer dials gorilla websocket connections.
type WebSocketDialer struct {
	cfg    TransportConfig
	logger *slog.Logger
}

// NewWebSocketDialer creates a Dialer backed by gorilla/websocket.
func NewWebSocketDialer(cfg TransportConfig, logger *slog.Logger) *WebSocketDialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketDialer{cfg: cfg, logger: logger}
}

// Dial opens a websocket to url.
func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	header := http.Header{}
	if d.cfg.UserAgent != "" {
		header.Set("User-Agent", d.cfg.UserAgent)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.cfg.HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &wsConn{
		conn:   conn,
		cfg:    d.cfg,
		logger: d.logger,
		done:   make(chan struct{}),
	}

	if d.cfg.PingInterval > 0 && d.cfg.PongTimeout > 0 {
		// Any pong or data frame proves the peer is alive.
		conn.SetReadDeadline(time.Now().Add(d.cfg.PongTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(d.cfg.PongTimeout))
		})
		go c.heartbeatLoop()
	}

	return c, nil
}

// wsConn implements Conn over a gorilla websocket.
type wsConn struct {
	conn   *websocket.Conn
	cfg    TransportConfig
	logger *slog.Logger

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if c.cfg.PingInterval > 0 && c.cfg.PongTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	}
	return data, nil
}

func (c *wsConn) WriteMessage(data []byte) error {
	select {
	case <-c.done:
		return ErrAlreadyClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.cfg.WriteTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(time.Second),
		)
		err = c.conn.Close()
	})
	return err
}

// heartbeatLoop pings the server until the connection closes.
func (c *wsConn) heartbeatLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(time.Second)
			if c.cfg.WriteTimeout > 0 {
				deadline = time.Now().Add(c.cfg.WriteTimeout)
			}
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
			}
		}
	}
}

// CloseCode extracts the websocket close code from a read error.
// Errors without a close frame map to CloseAbnormal.
func CloseCode(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CloseAbnormal
}
