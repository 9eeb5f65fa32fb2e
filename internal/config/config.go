package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Junaidchm/DevHuddle-Client-sub001/internal/realtime"
)

// Config is the root configuration for a notifywatch instance.
type Config struct {
	Realtime RealtimeConfig `yaml:"realtime"`
	Auth     AuthConfig     `yaml:"auth"`
	Health   HealthConfig   `yaml:"health"`
	Log      LogConfig      `yaml:"log"`
}

// RealtimeConfig holds notification socket settings.
type RealtimeConfig struct {
	BaseURL              string        `yaml:"base_url"` // http(s) or ws(s) origin of the API
	Path                 string        `yaml:"path"`     // Socket path appended to base_url
	HandshakeDelay       *time.Duration `yaml:"handshake_delay"` // nil means default; 0 sends auth right after open
	AuthTimeout          time.Duration `yaml:"auth_timeout"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	MaxReconnectAttempts *int          `yaml:"max_reconnect_attempts"` // nil means default; 0 disables retry
	PingInterval         *time.Duration `yaml:"ping_interval"` // nil means default; 0 disables keepalive
	PongTimeout          time.Duration `yaml:"pong_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	DialTimeout          time.Duration `yaml:"dial_timeout"`
	ExtraEventKinds      []string      `yaml:"extra_event_kinds"`
	EventBufferSize      int           `yaml:"event_buffer_size"`
}

// AuthConfig holds the credentials used for the in-band handshake.
type AuthConfig struct {
	Token          string `yaml:"token"`            // Bearer token literal
	TokenPath      string `yaml:"token_path"`       // File holding the bearer token
	SubjectID      string `yaml:"subject_id"`       // Authenticated user id
	WatchTokenFile bool   `yaml:"watch_token_file"` // Reconnect when token_path changes
}

// HealthConfig holds the local status endpoint settings.
type HealthConfig struct {
	Port int `yaml:"port"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Endpoint derives the socket URL from base_url and path.
// http and https origins map to ws and wss.
func (r RealtimeConfig) Endpoint() (string, error) {
	u, err := url.Parse(r.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse realtime.base_url: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("realtime.base_url: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("realtime.base_url: missing host")
	}

	if r.Path != "" {
		u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(r.Path, "/")
	}
	return u.String(), nil
}

// ManagerConfig maps the realtime section onto the session manager config.
func (r RealtimeConfig) ManagerConfig() (realtime.Config, error) {
	endpoint, err := r.Endpoint()
	if err != nil {
		return realtime.Config{}, err
	}

	cfg := realtime.Config{
		URL:                endpoint,
		HandshakeDelay:     durationValue(r.HandshakeDelay),
		AuthTimeout:        r.AuthTimeout,
		ReconnectBaseDelay: r.ReconnectBaseDelay,
		ReconnectMaxDelay:  r.ReconnectMaxDelay,
	}
	if r.MaxReconnectAttempts != nil {
		cfg.MaxReconnectAttempts = *r.MaxReconnectAttempts
	}
	for _, k := range r.ExtraEventKinds {
		cfg.ExtraEventKinds = append(cfg.ExtraEventKinds, realtime.EventKind(k))
	}
	return cfg, nil
}

// TransportConfig maps the realtime section onto the websocket transport config.
func (r RealtimeConfig) TransportConfig(userAgent string) realtime.TransportConfig {
	return realtime.TransportConfig{
		HandshakeTimeout: r.DialTimeout,
		WriteTimeout:     r.WriteTimeout,
		PingInterval:     durationValue(r.PingInterval),
		PongTimeout:      r.PongTimeout,
		UserAgent:        userAgent,
	}
}

func durationValue(d *time.Duration) time.Duration {
	if d == nil {
		return 0
	}
	return *d
}
