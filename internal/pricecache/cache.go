package pricecache

import (
	"sync"
	"time"

	"github.com/rickgao/pro-trader/internal/model"
)

// Cache is a thread-safe latest-price store with lazy TTL expiry.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration

	now func() time.Time // injectable clock for tests
}

type entry struct {
	price     model.PriceEntry
	expiresAt time.Time
}

// New creates a cache with the given entry TTL.
func New(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetBulk stores the latest tick for every symbol in the batch. The write
// is atomic with respect to readers: a concurrent Get sees either the old
// or the new value for any key, never a torn pair.
func (c *Cache) SetBulk(batch map[string]model.Tick) {
	if len(batch) == 0 {
		return
	}

	now := c.now()
	expires := now.Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	for symbol, tick := range batch {
		c.entries[symbol] = entry{
			price: model.PriceEntry{
				Symbol:    symbol,
				Price:     tick.Price,
				Timestamp: tick.Timestamp,
			},
			expiresAt: expires,
		}
	}
}

// Get returns the cached price for a symbol. An unknown or expired symbol
// returns ok=false, not an error.
func (c *Cache) Get(symbol string) (model.PriceEntry, bool) {
	now := c.now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[symbol]
	if !ok || now.After(e.expiresAt) {
		return model.PriceEntry{}, false
	}
	return e.price, true
}

// GetBulk returns cached prices for the given symbols. Absent or expired
// symbols are omitted from the result map.
func (c *Cache) GetBulk(symbols []string) map[string]model.PriceEntry {
	result := make(map[string]model.PriceEntry, len(symbols))
	now := c.now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, symbol := range symbols {
		e, ok := c.entries[symbol]
		if !ok || now.After(e.expiresAt) {
			continue
		}
		result[symbol] = e.price
	}
	return result
}

// Len returns the number of stored entries, including expired ones not yet
// overwritten.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
