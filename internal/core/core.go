package core

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/rickgao/pro-trader/internal/broadcast"
	"github.com/rickgao/pro-trader/internal/config"
	"github.com/rickgao/pro-trader/internal/gateway"
	"github.com/rickgao/pro-trader/internal/pnl"
	"github.com/rickgao/pro-trader/internal/pricebuffer"
	"github.com/rickgao/pro-trader/internal/pricecache"
	"github.com/rickgao/pro-trader/internal/store"
	"github.com/rickgao/pro-trader/internal/subindex"
	"github.com/rickgao/pro-trader/internal/upstream"
)

// Health is the /health payload.
type Health struct {
	Status   string `json:"status"` // "ok" or "degraded"
	Upstream string `json:"upstream"`
	Sessions int    `json:"sessions"`
}

// Stats is the /debug/stats payload.
type Stats struct {
	Upstream      string         `json:"upstream"`
	Subscribed    []string       `json:"subscribed_symbols"`
	Sessions      int            `json:"sessions"`
	CachedPrices  int            `json:"cached_prices"`
	PendingTicks  int            `json:"pending_ticks"`
	Subscriptions subindex.Stats `json:"subscriptions"`
}

// Core composes and runs the whole pipeline.
type Core struct {
	logger *slog.Logger

	cache    *pricecache.Cache
	index    *subindex.Index
	hub      *gateway.Hub
	consumer *upstream.Consumer
	buffer   *pricebuffer.Buffer
	engine   *pnl.Engine
	gw       *gateway.Gateway
}

// New wires every component. No package-level state: all collaborators
// are built here and injected.
func New(cfg *config.Config, pool *pgxpool.Pool, rdb *redis.Client, logger *slog.Logger) *Core {
	if logger == nil {
		logger = slog.Default()
	}

	cache := pricecache.New(cfg.Cache.TTL)
	index := subindex.New(cfg.Gateway.MaxSessionsPerUser)
	hub := gateway.NewHub(logger.With("component", "hub"))

	positions := store.NewPositionStore(pool)
	sessions := store.NewSessionStore(rdb, cfg.Redis.SessionTTL)

	engine := pnl.New(pnl.Config{
		Debounce:  cfg.PnL.Debounce,
		CacheTTL:  cfg.PnL.CacheTTL,
		Workers:   cfg.PnL.Workers,
		QueueSize: cfg.PnL.QueueSize,
	}, positions, cache, hub, logger.With("component", "pnl"))

	caster := broadcast.New(cache, index, hub, engine, logger.With("component", "broadcast"))

	buffer := pricebuffer.New(pricebuffer.Config{
		FlushInterval: cfg.Buffer.FlushInterval,
	}, caster, logger.With("component", "pricebuffer"))

	consumer := upstream.NewConsumer(upstream.Config{
		URL:               cfg.Upstream.URL,
		PingInterval:      cfg.Upstream.PingInterval,
		PongTimeout:       cfg.Upstream.PongTimeout,
		WriteTimeout:      cfg.Upstream.WriteTimeout,
		MaxReconnect:      cfg.Upstream.MaxReconnect,
		ReconnectMaxDelay: cfg.Upstream.ReconnectMaxDelay,
		BufferSize:        cfg.Upstream.BufferSize,
	}, buffer, logger.With("component", "upstream"))

	gw := gateway.New(gateway.Config{
		SendQueueSize:     cfg.Gateway.SendQueueSize,
		WriteTimeout:      cfg.Gateway.WriteTimeout,
		HeartbeatInterval: cfg.Gateway.HeartbeatInterval,
	}, hub, index, sessions, positions, engine, consumer, logger.With("component", "gateway"))

	return &Core{
		logger:   logger,
		cache:    cache,
		index:    index,
		hub:      hub,
		consumer: consumer,
		buffer:   buffer,
		engine:   engine,
		gw:       gw,
	}
}

// Start brings the pipeline up, sinks before the source.
func (c *Core) Start(ctx context.Context) error {
	if err := c.engine.Start(ctx); err != nil {
		return err
	}
	if err := c.buffer.Start(ctx); err != nil {
		return err
	}
	if err := c.consumer.Start(ctx); err != nil {
		return err
	}

	c.logger.Info("core started")
	return nil
}

// Stop tears the pipeline down, source before the sinks so in-flight
// batches drain.
func (c *Core) Stop(ctx context.Context) error {
	var firstErr error

	if err := c.consumer.Stop(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.buffer.Stop(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.engine.Stop(ctx); err != nil && firstErr == nil {
		firstErr = err
	}

	c.logger.Info("core stopped")
	return firstErr
}

// Gateway returns the /ws handler.
func (c *Core) Gateway() http.Handler {
	return c.gw
}

// Fatal surfaces the upstream consumer's give-up condition to the host.
func (c *Core) Fatal() <-chan error {
	return c.consumer.Fatal()
}

// Health reports service health. The state degrades when the upstream
// consumer has exhausted its reconnect budget.
func (c *Core) Health() Health {
	state := c.consumer.State()

	status := "ok"
	if state == upstream.StateStopped {
		status = "degraded"
	}

	return Health{
		Status:   status,
		Upstream: state.String(),
		Sessions: c.hub.Count(),
	}
}

// Stats reports pipeline internals for debugging.
func (c *Core) Stats() Stats {
	return Stats{
		Upstream:      c.consumer.State().String(),
		Subscribed:    c.consumer.Subscribed(),
		Sessions:      c.hub.Count(),
		CachedPrices:  c.cache.Len(),
		PendingTicks:  c.buffer.Len(),
		Subscriptions: c.index.Stats(),
	}
}
