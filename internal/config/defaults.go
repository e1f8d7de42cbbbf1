package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultServerHost = "0.0.0.0"
	DefaultServerPort = 8000

	DefaultDBPort   = 5432
	DefaultSSLMode  = "prefer"
	DefaultMaxConns = 10
	DefaultMinConns = 2

	DefaultRedisAddr  = "localhost:6379"
	DefaultRedisPool  = 50
	DefaultSessionTTL = 30 * time.Minute

	DefaultUpstreamURL       = "wss://stream.binance.com:9443/ws"
	DefaultPingInterval      = 20 * time.Second
	DefaultPongTimeout       = 10 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultMaxReconnect      = 10
	DefaultReconnectMaxDelay = 30 * time.Second
	DefaultUpstreamBuffer    = 10000

	DefaultFlushInterval = 100 * time.Millisecond
	DefaultPriceTTL      = 60 * time.Second

	DefaultPnLDebounce  = 50 * time.Millisecond
	DefaultPnLCacheTTL  = 5 * time.Second
	DefaultPnLWorkers   = 4
	DefaultPnLQueueSize = 1024

	DefaultMaxSessionsPerUser = 3
	DefaultSendQueueSize      = 256
	DefaultGatewayWriteWait   = 5 * time.Second
	DefaultHeartbeatInterval  = 30 * time.Second

	DefaultMetricsPath = "/metrics"
)

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}

	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = DefaultRedisAddr
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = DefaultRedisPool
	}
	if c.Redis.SessionTTL == 0 {
		c.Redis.SessionTTL = DefaultSessionTTL
	}

	if c.Upstream.URL == "" {
		c.Upstream.URL = DefaultUpstreamURL
	}
	if c.Upstream.PingInterval == 0 {
		c.Upstream.PingInterval = DefaultPingInterval
	}
	if c.Upstream.PongTimeout == 0 {
		c.Upstream.PongTimeout = DefaultPongTimeout
	}
	if c.Upstream.WriteTimeout == 0 {
		c.Upstream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Upstream.MaxReconnect == 0 {
		c.Upstream.MaxReconnect = DefaultMaxReconnect
	}
	if c.Upstream.ReconnectMaxDelay == 0 {
		c.Upstream.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Upstream.BufferSize == 0 {
		c.Upstream.BufferSize = DefaultUpstreamBuffer
	}

	if c.Buffer.FlushInterval == 0 {
		c.Buffer.FlushInterval = DefaultFlushInterval
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = DefaultPriceTTL
	}

	if c.PnL.Debounce == 0 {
		c.PnL.Debounce = DefaultPnLDebounce
	}
	if c.PnL.CacheTTL == 0 {
		c.PnL.CacheTTL = DefaultPnLCacheTTL
	}
	if c.PnL.Workers == 0 {
		c.PnL.Workers = DefaultPnLWorkers
	}
	if c.PnL.QueueSize == 0 {
		c.PnL.QueueSize = DefaultPnLQueueSize
	}

	if c.Gateway.MaxSessionsPerUser == 0 {
		c.Gateway.MaxSessionsPerUser = DefaultMaxSessionsPerUser
	}
	if c.Gateway.SendQueueSize == 0 {
		c.Gateway.SendQueueSize = DefaultSendQueueSize
	}
	if c.Gateway.WriteTimeout == 0 {
		c.Gateway.WriteTimeout = DefaultGatewayWriteWait
	}
	if c.Gateway.HeartbeatInterval == 0 {
		c.Gateway.HeartbeatInterval = DefaultHeartbeatInterval
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
