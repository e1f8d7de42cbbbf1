package config

import "time"

// Config is the root configuration for the trading backend.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DBConfig       `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Buffer   BufferConfig   `yaml:"buffer"`
	Cache    CacheConfig    `yaml:"cache"`
	PnL      PnLConfig      `yaml:"pnl"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DBConfig holds the Postgres connection for positions and trades.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RedisConfig holds the Redis connection for session storage.
type RedisConfig struct {
	Addr       string        `yaml:"addr"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	PoolSize   int           `yaml:"pool_size"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// UpstreamConfig holds exchange feed consumer settings.
type UpstreamConfig struct {
	URL               string        `yaml:"url"`
	PingInterval      time.Duration `yaml:"ping_interval"`
	PongTimeout       time.Duration `yaml:"pong_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	MaxReconnect      int           `yaml:"max_reconnect"`
	ReconnectMaxDelay time.Duration `yaml:"reconnect_max_delay"`
	BufferSize        int           `yaml:"buffer_size"`
}

// BufferConfig holds price buffer settings.
type BufferConfig struct {
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// CacheConfig holds price cache settings.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// PnLConfig holds P&L engine settings.
type PnLConfig struct {
	Debounce  time.Duration `yaml:"debounce"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	Workers   int           `yaml:"workers"`
	QueueSize int           `yaml:"queue_size"`
}

// GatewayConfig holds client gateway settings.
type GatewayConfig struct {
	MaxSessionsPerUser int           `yaml:"max_sessions_per_user"`
	SendQueueSize      int           `yaml:"send_queue_size"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	HeartbeatInterval  time.Duration `yaml:"heartbeat_interval"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Path string `yaml:"path"`
}
