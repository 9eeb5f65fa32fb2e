package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// serverConfig controls the fake notification server.
type serverConfig struct {
	Interval    time.Duration // Period between pushed events
	AuthTimeout time.Duration // How long to wait for the auth frame
	RejectToken string        // Token answered with auth_error
	DropEvery   int           // Drop the socket without a close frame after N events (0 = never)
}

// server speaks the notification protocol: auth handshake, then a stream of
// notification_created and unread_count_update events.
type server struct {
	cfg      serverConfig
	logger   *slog.Logger
	upgrader websocket.Upgrader

	sessions atomic.Int64
}

func newServer(cfg serverConfig, logger *slog.Logger) *server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = 10 * time.Second
	}
	return &server{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

type wireFrame struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type notificationData struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	ActorID   string    `json:"actorId"`
	EntityID  string    `json:"entityId"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

type unreadData struct {
	UnreadCount int `json:"unreadCount"`
}

func (s *server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade error", "error", err)
		return
	}
	defer conn.Close()

	id := s.sessions.Add(1)
	logger := s.logger.With("session", id, "remote", r.RemoteAddr, "user_agent", r.UserAgent())
	logger.Info("client connected")

	token, ok := s.readAuth(conn, logger)
	if !ok {
		return
	}
	if token == s.cfg.RejectToken {
		logger.Info("rejecting token")
		s.write(conn, wireFrame{Type: "auth_error", Error: "invalid token"})
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(4001, "auth failed"), time.Now().Add(time.Second))
		return
	}
	if err := s.write(conn, wireFrame{Type: "auth_success"}); err != nil {
		return
	}
	logger.Info("client authenticated")

	// Drain client frames so control frames (ping, close) are processed.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			logger.Debug("client frame", "data", string(data))
		}
	}()

	s.stream(conn, closed, logger)
}

// readAuth waits for the auth frame and returns its token.
func (s *server) readAuth(conn *websocket.Conn, logger *slog.Logger) (string, bool) {
	conn.SetReadDeadline(time.Now().Add(s.cfg.AuthTimeout))
	defer conn.SetReadDeadline(time.Time{})

	_, data, err := conn.ReadMessage()
	if err != nil {
		logger.Info("no auth frame", "error", err)
		return "", false
	}

	var f wireFrame
	if err := json.Unmarshal(data, &f); err != nil || f.Type != "auth" || f.Token == "" {
		logger.Info("bad auth frame", "data", string(data))
		s.write(conn, wireFrame{Type: "auth_error", Error: "expected auth frame"})
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(4001, "auth failed"), time.Now().Add(time.Second))
		return "", false
	}
	return f.Token, true
}

// stream pushes events until the client goes away or the drop threshold is hit.
func (s *server) stream(conn *websocket.Conn, closed <-chan struct{}, logger *slog.Logger) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	unread := 0
	sent := 0
	for {
		select {
		case <-closed:
			logger.Info("client disconnected")
			return
		case <-ticker.C:
			unread++
			n := notificationData{
				ID:        uuid.NewString(),
				Type:      "LIKE",
				ActorID:   uuid.NewString(),
				EntityID:  uuid.NewString(),
				Message:   "someone liked your post",
				CreatedAt: time.Now().UTC(),
			}
			if err := s.write(conn, wireFrame{Type: "notification_created", Data: n}); err != nil {
				return
			}
			if err := s.write(conn, wireFrame{Type: "unread_count_update", Data: unreadData{UnreadCount: unread}}); err != nil {
				return
			}
			sent++

			if s.cfg.DropEvery > 0 && sent%s.cfg.DropEvery == 0 {
				logger.Info("dropping connection", "events", sent)
				conn.UnderlyingConn().Close()
				return
			}
		}
	}
}

func (s *server) write(conn *websocket.Conn, f wireFrame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, data)
}
