package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultPath                 = "/ws/notifications"
	DefaultHandshakeDelay       = 100 * time.Millisecond
	DefaultAuthTimeout          = 5 * time.Second
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultReconnectMaxDelay    = 30 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultPingInterval         = 30 * time.Second
	DefaultPongTimeout          = 60 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultDialTimeout          = 10 * time.Second
	DefaultEventBufferSize      = 256
	DefaultHealthPort           = 8081
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
)

// ApplyDefaults fills unset optional fields.
func (c *Config) ApplyDefaults() {
	// Realtime defaults
	r := &c.Realtime
	if r.Path == "" {
		r.Path = DefaultPath
	}
	if r.HandshakeDelay == nil {
		d := DefaultHandshakeDelay
		r.HandshakeDelay = &d
	}
	if r.AuthTimeout == 0 {
		r.AuthTimeout = DefaultAuthTimeout
	}
	if r.ReconnectBaseDelay == 0 {
		r.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if r.ReconnectMaxDelay == 0 {
		r.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if r.MaxReconnectAttempts == nil {
		n := DefaultMaxReconnectAttempts
		r.MaxReconnectAttempts = &n
	}
	if r.PingInterval == nil {
		d := DefaultPingInterval
		r.PingInterval = &d
	}
	if r.PongTimeout == 0 {
		r.PongTimeout = DefaultPongTimeout
	}
	if r.WriteTimeout == 0 {
		r.WriteTimeout = DefaultWriteTimeout
	}
	if r.DialTimeout == 0 {
		r.DialTimeout = DefaultDialTimeout
	}
	if r.EventBufferSize == 0 {
		r.EventBufferSize = DefaultEventBufferSize
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}
