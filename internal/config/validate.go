package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Realtime.BaseURL == "" {
		return errors.New("realtime.base_url is required")
	}
	if _, err := c.Realtime.Endpoint(); err != nil {
		return err
	}

	if c.Realtime.AuthTimeout <= 0 {
		return errors.New("realtime.auth_timeout must be > 0")
	}
	if d := c.Realtime.HandshakeDelay; d != nil && *d < 0 {
		return errors.New("realtime.handshake_delay must be >= 0")
	}
	if c.Realtime.ReconnectBaseDelay <= 0 {
		return errors.New("realtime.reconnect_base_delay must be > 0")
	}
	if c.Realtime.ReconnectMaxDelay < c.Realtime.ReconnectBaseDelay {
		return fmt.Errorf("realtime.reconnect_max_delay (%v) cannot be less than reconnect_base_delay (%v)",
			c.Realtime.ReconnectMaxDelay, c.Realtime.ReconnectBaseDelay)
	}
	if n := c.Realtime.MaxReconnectAttempts; n != nil && *n < 0 {
		return errors.New("realtime.max_reconnect_attempts must be >= 0")
	}
	if d := c.Realtime.PingInterval; d != nil && *d < 0 {
		return errors.New("realtime.ping_interval must be >= 0")
	}
	if ping := durationValue(c.Realtime.PingInterval); ping > 0 && c.Realtime.PongTimeout <= ping {
		return fmt.Errorf("realtime.pong_timeout (%v) must exceed ping_interval (%v)",
			c.Realtime.PongTimeout, ping)
	}
	if c.Realtime.EventBufferSize < 1 {
		return errors.New("realtime.event_buffer_size must be >= 1")
	}
	for _, k := range c.Realtime.ExtraEventKinds {
		if k == "" {
			return errors.New("realtime.extra_event_kinds must not contain empty kinds")
		}
	}

	if c.Auth.Token == "" && c.Auth.TokenPath == "" {
		return errors.New("auth.token or auth.token_path is required")
	}
	if c.Auth.WatchTokenFile && c.Auth.TokenPath == "" {
		return errors.New("auth.watch_token_file requires auth.token_path")
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}
