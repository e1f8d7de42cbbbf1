package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/pro-trader/internal/metrics"
	"github.com/rickgao/pro-trader/internal/model"
	"github.com/rickgao/pro-trader/internal/pricecache"
)

// Subscribers resolves which users are subscribed to a symbol.
type Subscribers interface {
	SubscribersOf(symbol string) []string
}

// FrameSender delivers a frame to every live session of a user without
// blocking; slow sessions drop rather than back up the caller.
type FrameSender interface {
	SendToUser(userID string, frame []byte)
}

// PnLScheduler requests a debounced P&L recomputation for a user.
type PnLScheduler interface {
	Schedule(userID string)
}

// priceUpdate is the wire shape of one price_update frame.
type priceUpdate struct {
	Type string          `json:"type"`
	Data priceUpdateData `json:"data"`
}

type priceUpdateData struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume,omitempty"`
	Change24h float64   `json:"change_24h,omitempty"`
	High24h   float64   `json:"high_24h,omitempty"`
	Low24h    float64   `json:"low_24h,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// fanoutLimit bounds concurrent per-symbol sends within one flush.
const fanoutLimit = 16

// Broadcaster distributes flushed batches.
type Broadcaster struct {
	cache  *pricecache.Cache
	subs   Subscribers
	sender FrameSender
	sched  PnLScheduler
	logger *slog.Logger
}

// New creates a broadcaster.
func New(cache *pricecache.Cache, subs Subscribers, sender FrameSender, sched PnLScheduler, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		cache:  cache,
		subs:   subs,
		sender: sender,
		sched:  sched,
		logger: logger,
	}
}

// HandleFlush processes one drained batch: cache update, per-symbol
// fan-out, then P&L scheduling for every affected user.
func (b *Broadcaster) HandleFlush(ctx context.Context, batch map[string]model.Tick) {
	// Cache first, so a get_portfolio racing this flush sees prices at
	// least as fresh as the frames being sent.
	b.cache.SetBulk(batch)

	affected := make(map[string]struct{})

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(fanoutLimit)

	for symbol, tick := range batch {
		users := b.subs.SubscribersOf(symbol)
		if len(users) == 0 {
			continue
		}
		for _, u := range users {
			affected[u] = struct{}{}
		}

		frame, err := json.Marshal(priceUpdate{
			Type: "price_update",
			Data: priceUpdateData{
				Symbol:    tick.Symbol,
				Price:     tick.Price.InexactFloat64(),
				Volume:    tick.Volume24h.InexactFloat64(),
				Change24h: tick.ChangePct24h.InexactFloat64(),
				High24h:   tick.High24h.InexactFloat64(),
				Low24h:    tick.Low24h.InexactFloat64(),
				Timestamp: tick.Timestamp.UTC(),
			},
		})
		if err != nil {
			b.logger.Error("failed to marshal price update", "symbol", symbol, "error", err)
			continue
		}

		g.Go(func() error {
			for _, u := range users {
				b.sender.SendToUser(u, frame)
			}
			metrics.BroadcastFrames.Add(float64(len(users)))
			return nil
		})
	}

	g.Wait()

	for u := range affected {
		b.sched.Schedule(u)
	}
}
