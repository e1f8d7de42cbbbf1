package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/pro-trader/internal/model"
	"github.com/rickgao/pro-trader/internal/pricecache"
)

// fakeSubs maps symbols to fixed subscriber lists.
type fakeSubs struct {
	users map[string][]string
}

func (f *fakeSubs) SubscribersOf(symbol string) []string {
	return f.users[symbol]
}

// recordingSender captures frames per user.
type recordingSender struct {
	mu     sync.Mutex
	frames map[string][][]byte
}

func newRecordingSender() *recordingSender {
	return &recordingSender{frames: make(map[string][][]byte)}
}

func (r *recordingSender) SendToUser(userID string, frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames[userID] = append(r.frames[userID], frame)
}

func (r *recordingSender) framesFor(userID string) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames[userID]
}

// recordingScheduler captures scheduled users.
type recordingScheduler struct {
	mu    sync.Mutex
	users []string
}

func (r *recordingScheduler) Schedule(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
}

func (r *recordingScheduler) scheduled() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.users...)
}

func tick(symbol string, price int64) model.Tick {
	return model.Tick{
		Symbol:    symbol,
		Price:     decimal.NewFromInt(price),
		Timestamp: time.Now(),
	}
}

func TestBroadcaster_FanOut(t *testing.T) {
	cache := pricecache.New(time.Minute)
	subs := &fakeSubs{users: map[string][]string{
		"BTCUSDT": {"u1", "u2"},
		"ETHUSDT": {"u2"},
	}}
	sender := newRecordingSender()
	sched := &recordingScheduler{}

	b := New(cache, subs, sender, sched, nil)

	b.HandleFlush(context.Background(), map[string]model.Tick{
		"BTCUSDT": tick("BTCUSDT", 50000),
		"ETHUSDT": tick("ETHUSDT", 3000),
	})

	// Cache reflects the batch.
	entry, ok := cache.Get("BTCUSDT")
	if !ok {
		t.Fatal("expected BTCUSDT in cache after flush")
	}
	if !entry.Price.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("cached price = %s, want 50000", entry.Price)
	}

	// u1 gets one frame, u2 gets two.
	if got := len(sender.framesFor("u1")); got != 1 {
		t.Errorf("u1 frames = %d, want 1", got)
	}
	if got := len(sender.framesFor("u2")); got != 2 {
		t.Errorf("u2 frames = %d, want 2", got)
	}

	// Frames are well-formed price_update envelopes.
	var frame struct {
		Type string `json:"type"`
		Data struct {
			Symbol string  `json:"symbol"`
			Price  float64 `json:"price"`
		} `json:"data"`
	}
	if err := json.Unmarshal(sender.framesFor("u1")[0], &frame); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if frame.Type != "price_update" {
		t.Errorf("type = %q, want price_update", frame.Type)
	}
	if frame.Data.Symbol != "BTCUSDT" || frame.Data.Price != 50000 {
		t.Errorf("data = %+v, want BTCUSDT @ 50000", frame.Data)
	}

	// Each affected user is scheduled exactly once.
	scheduled := sched.scheduled()
	counts := make(map[string]int)
	for _, u := range scheduled {
		counts[u]++
	}
	if counts["u1"] != 1 || counts["u2"] != 1 {
		t.Errorf("scheduled = %v, want u1 and u2 once each", scheduled)
	}
}

// Symbols with no subscribers still update the cache but produce no
// frames and no P&L work.
func TestBroadcaster_NoSubscribers(t *testing.T) {
	cache := pricecache.New(time.Minute)
	sender := newRecordingSender()
	sched := &recordingScheduler{}

	b := New(cache, &fakeSubs{users: map[string][]string{}}, sender, sched, nil)

	b.HandleFlush(context.Background(), map[string]model.Tick{
		"BTCUSDT": tick("BTCUSDT", 50000),
	})

	if _, ok := cache.Get("BTCUSDT"); !ok {
		t.Error("expected cache update even without subscribers")
	}
	if len(sender.framesFor("u1")) != 0 {
		t.Error("expected no frames")
	}
	if len(sched.scheduled()) != 0 {
		t.Errorf("scheduled = %v, want none", sched.scheduled())
	}
}
