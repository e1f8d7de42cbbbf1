package pnl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rickgao/pro-trader/internal/metrics"
	"github.com/rickgao/pro-trader/internal/model"
	"github.com/rickgao/pro-trader/internal/pricecache"
	"github.com/rickgao/pro-trader/internal/store"
)

// FrameSender delivers a frame to every live session of a user.
type FrameSender interface {
	SendToUser(userID string, frame []byte)
}

// Config configures the engine.
type Config struct {
	Debounce  time.Duration // Per-user quiet period before recomputing
	CacheTTL  time.Duration // Snapshot cache lifetime
	Workers   int           // Worker pool size
	QueueSize int           // Work queue capacity
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Debounce:  50 * time.Millisecond,
		CacheTTL:  5 * time.Second,
		Workers:   4,
		QueueSize: 1024,
	}
}

// pnlUpdate is the wire shape of one pnl_update frame.
type pnlUpdate struct {
	Type string                  `json:"type"`
	Data model.PortfolioSnapshot `json:"data"`
}

type cachedSnapshot struct {
	snapshot model.PortfolioSnapshot
	storedAt time.Time
}

// Engine schedules, computes, and pushes portfolio snapshots.
type Engine struct {
	cfg       Config
	positions store.PositionStore
	prices    *pricecache.Cache
	sender    FrameSender
	logger    *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	cached map[string]cachedSnapshot

	queue chan string

	// now is swappable in tests.
	now func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an engine.
func New(cfg Config, positions store.PositionStore, prices *pricecache.Cache, sender FrameSender, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:       cfg,
		positions: positions,
		prices:    prices,
		sender:    sender,
		logger:    logger,
		timers:    make(map[string]*time.Timer),
		cached:    make(map[string]cachedSnapshot),
		queue:     make(chan string, cfg.QueueSize),
		now:       time.Now,
	}
}

// Start launches the worker pool.
func (e *Engine) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)

	for i := 0; i < e.cfg.Workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}

	e.logger.Info("pnl engine started",
		"workers", e.cfg.Workers,
		"debounce", e.cfg.Debounce,
	)
	return nil
}

// Stop halts the workers and cancels pending debounce timers.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	for userID, t := range e.timers {
		t.Stop()
		delete(e.timers, userID)
	}
	e.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("pnl engine stopped")
		return nil
	case <-ctx.Done():
		e.logger.Warn("pnl engine stop timed out")
		return ctx.Err()
	}
}

// Schedule requests a recomputation for a user. Calls within the debounce
// window collapse into one; the computation runs after the window closes.
func (e *Engine) Schedule(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, pending := e.timers[userID]; pending {
		return
	}
	e.timers[userID] = time.AfterFunc(e.cfg.Debounce, func() {
		e.mu.Lock()
		delete(e.timers, userID)
		e.mu.Unlock()
		e.enqueue(userID)
	})
}

// Invalidate drops a user's cached snapshot and schedules a recomputation.
// Called after a position opens or closes.
func (e *Engine) Invalidate(userID string) {
	e.mu.Lock()
	delete(e.cached, userID)
	e.mu.Unlock()

	e.Schedule(userID)
}

// Snapshot returns a portfolio snapshot for a user, served from cache when
// fresh enough.
func (e *Engine) Snapshot(ctx context.Context, userID string) (model.PortfolioSnapshot, error) {
	e.mu.Lock()
	entry, ok := e.cached[userID]
	e.mu.Unlock()

	if ok && e.now().Sub(entry.storedAt) < e.cfg.CacheTTL {
		metrics.PnLCacheHits.Inc()
		return entry.snapshot, nil
	}

	snap, err := e.compute(ctx, userID)
	if err != nil {
		return model.PortfolioSnapshot{}, err
	}

	e.storeCache(userID, snap)
	return snap, nil
}

func (e *Engine) enqueue(userID string) {
	select {
	case e.queue <- userID:
		metrics.PnLQueueDepth.Set(float64(len(e.queue)))
	default:
		// A full queue means the pool is saturated; the next price flush
		// will reschedule this user.
		metrics.PnLQueueDrops.Inc()
		e.logger.Warn("pnl queue full, dropping job", "user_id", userID)
	}
}

func (e *Engine) worker() {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			return
		case userID := <-e.queue:
			metrics.PnLQueueDepth.Set(float64(len(e.queue)))
			e.process(userID)
		}
	}
}

// process computes one user's snapshot and pushes it. Errors are logged
// and the job is skipped; one bad user never stalls the pool.
func (e *Engine) process(userID string) {
	snap, err := e.compute(e.ctx, userID)
	if err != nil {
		e.logger.Error("pnl computation failed", "user_id", userID, "error", err)
		return
	}

	e.storeCache(userID, snap)

	frame, err := json.Marshal(pnlUpdate{Type: "pnl_update", Data: snap})
	if err != nil {
		e.logger.Error("failed to marshal pnl update", "user_id", userID, "error", err)
		return
	}
	e.sender.SendToUser(userID, frame)
}

// compute joins a user's open positions against current prices. A symbol
// missing from the price cache falls back to the entry price, yielding
// zero unrealized P&L for that position.
func (e *Engine) compute(ctx context.Context, userID string) (model.PortfolioSnapshot, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return model.PortfolioSnapshot{}, fmt.Errorf("parse user id: %w", err)
	}

	positions, err := e.positions.ListOpen(ctx, uid)
	if err != nil {
		return model.PortfolioSnapshot{}, fmt.Errorf("list open positions: %w", err)
	}

	metrics.PnLComputations.Inc()

	now := e.now().UTC()
	if len(positions) == 0 {
		return model.EmptyPortfolio(now), nil
	}

	snap := model.PortfolioSnapshot{
		Positions: make([]model.PositionPnL, 0, len(positions)),
		Timestamp: now,
	}

	for _, p := range positions {
		current := p.EntryPrice
		if entry, ok := e.prices.Get(p.Symbol); ok {
			current = entry.Price
		}

		unrealized := p.UnrealizedPnL(current)
		invested := p.Invested()

		snap.Positions = append(snap.Positions, model.PositionPnL{
			ID:            p.ID,
			Symbol:        p.Symbol,
			Side:          p.Side,
			Quantity:      p.Quantity,
			EntryPrice:    p.EntryPrice,
			CurrentPrice:  current,
			UnrealizedPnL: model.RoundValue(unrealized),
			PnLPercent:    model.RoundPercent(p.PnLPercent(current)),
		})

		snap.Invested = snap.Invested.Add(invested)
		snap.CurrentValue = snap.CurrentValue.Add(invested.Add(unrealized))
		snap.UnrealizedPnL = snap.UnrealizedPnL.Add(unrealized)
	}

	if !snap.Invested.IsZero() {
		snap.PnLPercent = snap.UnrealizedPnL.Div(snap.Invested).Mul(decimal.NewFromInt(100))
	}

	snap.Invested = model.RoundValue(snap.Invested)
	snap.CurrentValue = model.RoundValue(snap.CurrentValue)
	snap.UnrealizedPnL = model.RoundValue(snap.UnrealizedPnL)
	snap.PnLPercent = model.RoundPercent(snap.PnLPercent)

	return snap, nil
}

func (e *Engine) storeCache(userID string, snap model.PortfolioSnapshot) {
	e.mu.Lock()
	e.cached[userID] = cachedSnapshot{snapshot: snap, storedAt: e.now()}
	e.mu.Unlock()
}
