package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upstream feed.
var (
	TicksReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_upstream_ticks_received_total",
		Help: "Total ticker events parsed from the exchange stream",
	})

	UpstreamReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_upstream_reconnects_total",
		Help: "Total upstream reconnect attempts after a dropped connection",
	})

	UpstreamState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trader_upstream_state",
		Help: "Upstream connection state (0=disconnected 1=connecting 2=connected 3=stopped)",
	})
)

// Price pipeline.
var (
	BufferFlushes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_buffer_flushes_total",
		Help: "Total non-empty price buffer flushes",
	})

	BufferCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_buffer_coalesced_total",
		Help: "Total ticks overwritten in the buffer before a flush",
	})

	BroadcastFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_broadcast_frames_total",
		Help: "Total price update frames fanned out to subscribers",
	})
)

// P&L engine.
var (
	PnLComputations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_pnl_computations_total",
		Help: "Total portfolio P&L computations executed by the worker pool",
	})

	PnLCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_pnl_cache_hits_total",
		Help: "Total portfolio snapshot requests served from cache",
	})

	PnLQueueDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_pnl_queue_drops_total",
		Help: "Total P&L jobs dropped because the work queue was full",
	})

	PnLQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trader_pnl_queue_depth",
		Help: "Current depth of the P&L work queue",
	})
)

// Client gateway.
var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trader_sessions_active",
		Help: "Number of currently connected client sessions",
	})

	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_sessions_total",
		Help: "Total client sessions accepted",
	})

	SessionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_sessions_rejected_total",
		Help: "Total client sessions rejected, by reason",
	}, []string{"reason"})

	FramesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_frames_sent_total",
		Help: "Total frames written to client sessions",
	})

	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_frames_dropped_total",
		Help: "Total frames dropped because a client send queue was full",
	})
)
