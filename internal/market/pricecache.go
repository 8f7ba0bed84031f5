// Package market implements live price ingestion: a TTL price cache with
// per-symbol rolling history, a synchronous event bus for price fan-out,
// and the background stream that polls the exchange ticker.
package market

import (
	"sync"
	"time"

	"alpha-arena/pkg/types"
)

type cacheEntry struct {
	price      float64
	recordedAt time.Time
}

// PriceCache is a thread-safe TTL cache plus rolling history, keyed by
// (symbol, venue). Stale cache entries are purged on read; history entries
// older than the window are pruned on every read and write. All critical
// sections are O(history length) at worst.
type PriceCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	window  time.Duration
	entries map[priceKey]cacheEntry
	history map[priceKey][]types.PricePoint

	now func() time.Time // overridable in tests
}

type priceKey struct {
	symbol string
	venue  string
}

// NewPriceCache creates a cache with the given entry TTL and history window.
func NewPriceCache(ttl, window time.Duration) *PriceCache {
	return &PriceCache{
		ttl:     ttl,
		window:  window,
		entries: make(map[priceKey]cacheEntry),
		history: make(map[priceKey][]types.PricePoint),
		now:     time.Now,
	}
}

// Set records a price observation and appends it to the symbol's history.
func (pc *PriceCache) Set(symbol, venue string, price float64, at time.Time) {
	key := priceKey{symbol, venue}

	pc.mu.Lock()
	defer pc.mu.Unlock()

	pc.entries[key] = cacheEntry{price: price, recordedAt: at}
	pc.history[key] = append(pc.history[key], types.PricePoint{Time: at, Price: price})
	pc.pruneLocked(key, at)
}

// Get returns the cached price for (symbol, venue) if it is fresher than the
// TTL. Stale entries are deleted on the spot.
func (pc *PriceCache) Get(symbol, venue string) (float64, bool) {
	key := priceKey{symbol, venue}

	pc.mu.Lock()
	defer pc.mu.Unlock()

	entry, ok := pc.entries[key]
	if !ok {
		return 0, false
	}
	if pc.now().Sub(entry.recordedAt) > pc.ttl {
		delete(pc.entries, key)
		return 0, false
	}
	return entry.price, true
}

// History returns a copy of the rolling history for (symbol, venue), oldest
// first, pruned to the window.
func (pc *PriceCache) History(symbol, venue string) []types.PricePoint {
	key := priceKey{symbol, venue}

	pc.mu.Lock()
	defer pc.mu.Unlock()

	pc.pruneLocked(key, pc.now())
	points := pc.history[key]
	out := make([]types.PricePoint, len(points))
	copy(out, points)
	return out
}

// pruneLocked drops history entries older than the window. Caller holds mu.
func (pc *PriceCache) pruneLocked(key priceKey, now time.Time) {
	points := pc.history[key]
	cutoff := now.Add(-pc.window)
	i := 0
	for i < len(points) && points[i].Time.Before(cutoff) {
		i++
	}
	if i > 0 {
		pc.history[key] = append([]types.PricePoint(nil), points[i:]...)
	}
}
