package pricebuffer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/pro-trader/internal/metrics"
	"github.com/rickgao/pro-trader/internal/model"
)

// FlushHandler receives each drained batch. The map is owned by the
// handler after the call; the buffer never touches it again.
type FlushHandler interface {
	HandleFlush(ctx context.Context, batch map[string]model.Tick)
}

// FlushHandlerFunc is a function adapter for FlushHandler.
type FlushHandlerFunc func(ctx context.Context, batch map[string]model.Tick)

func (f FlushHandlerFunc) HandleFlush(ctx context.Context, batch map[string]model.Tick) {
	f(ctx, batch)
}

// Config configures the buffer.
type Config struct {
	FlushInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		FlushInterval: 100 * time.Millisecond,
	}
}

// Buffer coalesces ticks per symbol between flushes.
type Buffer struct {
	cfg     Config
	handler FlushHandler
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]model.Tick

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a buffer that hands batches to handler.
func New(cfg Config, handler FlushHandler, logger *slog.Logger) *Buffer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Buffer{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		pending: make(map[string]model.Tick),
	}
}

// Ingest records a tick, overwriting any pending tick for the same symbol.
// Safe to call from any goroutine at feed rate.
func (b *Buffer) Ingest(tick model.Tick) {
	b.mu.Lock()
	if _, exists := b.pending[tick.Symbol]; exists {
		metrics.BufferCoalesced.Inc()
	}
	b.pending[tick.Symbol] = tick
	b.mu.Unlock()
}

// Start begins the flush loop.
func (b *Buffer) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)

	b.wg.Add(1)
	go b.flushLoop()

	b.logger.Info("price buffer started", "flush_interval", b.cfg.FlushInterval)
	return nil
}

// Stop halts the flush loop after draining whatever is pending.
func (b *Buffer) Stop(ctx context.Context) error {
	if b.cancel != nil {
		b.cancel()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("price buffer stop timed out")
		return ctx.Err()
	}

	// Final drain so shutdown does not lose the last batch.
	b.flush(context.Background())
	b.logger.Info("price buffer stopped")
	return nil
}

// Len returns the number of symbols currently pending.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *Buffer) flushLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			b.flush(b.ctx)
		}
	}
}

// flush swaps the pending map for a fresh one and hands the old map to the
// handler. Empty batches are skipped.
func (b *Buffer) flush(ctx context.Context) {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.pending
	b.pending = make(map[string]model.Tick, len(batch))
	b.mu.Unlock()

	metrics.BufferFlushes.Inc()
	b.handler.HandleFlush(ctx, batch)
}
