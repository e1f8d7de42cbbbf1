package pricecache

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/pro-trader/internal/model"
)

func tick(symbol string, price int64) model.Tick {
	return model.Tick{
		Symbol:    symbol,
		Price:     decimal.NewFromInt(price),
		Timestamp: time.Now(),
	}
}

func TestCache_SetBulkGet(t *testing.T) {
	c := New(time.Minute)

	c.SetBulk(map[string]model.Tick{
		"BTCUSDT": tick("BTCUSDT", 50000),
		"ETHUSDT": tick("ETHUSDT", 3000),
	})

	entry, ok := c.Get("BTCUSDT")
	if !ok {
		t.Fatal("expected BTCUSDT to be cached")
	}
	if !entry.Price.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("price = %s, want 50000", entry.Price)
	}

	if _, ok := c.Get("SOLUSDT"); ok {
		t.Error("expected unknown symbol to be absent")
	}
}

func TestCache_Overwrite(t *testing.T) {
	c := New(time.Minute)

	c.SetBulk(map[string]model.Tick{"BTCUSDT": tick("BTCUSDT", 50000)})
	c.SetBulk(map[string]model.Tick{"BTCUSDT": tick("BTCUSDT", 51000)})

	entry, ok := c.Get("BTCUSDT")
	if !ok {
		t.Fatal("expected BTCUSDT to be cached")
	}
	if !entry.Price.Equal(decimal.NewFromInt(51000)) {
		t.Errorf("price = %s, want 51000", entry.Price)
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	c := New(time.Minute)

	current := time.Now()
	c.now = func() time.Time { return current }

	c.SetBulk(map[string]model.Tick{"BTCUSDT": tick("BTCUSDT", 50000)})

	if _, ok := c.Get("BTCUSDT"); !ok {
		t.Fatal("expected fresh entry to be present")
	}

	current = current.Add(time.Minute + time.Second)

	if _, ok := c.Get("BTCUSDT"); ok {
		t.Error("expected expired entry to be treated as absent")
	}
}

func TestCache_GetBulk(t *testing.T) {
	c := New(time.Minute)

	c.SetBulk(map[string]model.Tick{
		"BTCUSDT": tick("BTCUSDT", 50000),
		"ETHUSDT": tick("ETHUSDT", 3000),
	})

	got := c.GetBulk([]string{"BTCUSDT", "ETHUSDT", "SOLUSDT"})
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if _, ok := got["SOLUSDT"]; ok {
		t.Error("expected absent symbol to be omitted")
	}
}

func TestCache_EmptyBulkWrite(t *testing.T) {
	c := New(time.Minute)
	c.SetBulk(nil)

	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}
