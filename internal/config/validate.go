package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if err := c.Database.validate("database"); err != nil {
		return err
	}

	if c.Redis.Addr == "" {
		return errors.New("redis.addr is required")
	}

	if !strings.HasPrefix(c.Upstream.URL, "ws://") && !strings.HasPrefix(c.Upstream.URL, "wss://") {
		return fmt.Errorf("upstream.url must be a ws:// or wss:// URL, got %q", c.Upstream.URL)
	}
	if c.Upstream.MaxReconnect < 1 {
		return errors.New("upstream.max_reconnect must be >= 1")
	}
	if c.Upstream.PongTimeout >= c.Upstream.PingInterval {
		return fmt.Errorf("upstream.pong_timeout (%s) must be shorter than ping_interval (%s)",
			c.Upstream.PongTimeout, c.Upstream.PingInterval)
	}

	if c.Buffer.FlushInterval <= 0 {
		return errors.New("buffer.flush_interval must be positive")
	}
	if c.Cache.TTL <= 0 {
		return errors.New("cache.ttl must be positive")
	}

	if c.PnL.Workers < 1 {
		return errors.New("pnl.workers must be >= 1")
	}
	if c.PnL.QueueSize < 1 {
		return errors.New("pnl.queue_size must be >= 1")
	}

	if c.Gateway.MaxSessionsPerUser < 1 {
		return errors.New("gateway.max_sessions_per_user must be >= 1")
	}
	if c.Gateway.SendQueueSize < 1 {
		return errors.New("gateway.send_queue_size must be >= 1")
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
