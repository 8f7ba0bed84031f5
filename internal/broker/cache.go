package broker

import (
	"sync"
	"time"

	"alpha-arena/pkg/types"
)

// balanceSnapshot is one cached GetBalanceAndPositions result.
type balanceSnapshot struct {
	cash      float64
	positions []types.Position
	fetchedAt time.Time
}

// balanceCache absorbs the repeated balance reads that happen inside a
// single decision cycle. Entries are keyed per account and invalidated on
// every order mutation and on every signed-call error, so a caller never
// acts on a balance the exchange has since contradicted.
type balanceCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[int64]balanceSnapshot

	now func() time.Time
}

func newBalanceCache(ttl time.Duration) *balanceCache {
	return &balanceCache{
		ttl:     ttl,
		entries: make(map[int64]balanceSnapshot),
		now:     time.Now,
	}
}

func (c *balanceCache) get(accountID int64) (float64, []types.Position, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[accountID]
	if !ok || c.now().Sub(entry.fetchedAt) > c.ttl {
		delete(c.entries, accountID)
		return 0, nil, false
	}
	positions := make([]types.Position, len(entry.positions))
	copy(positions, entry.positions)
	return entry.cash, positions, true
}

func (c *balanceCache) set(accountID int64, cash float64, positions []types.Position) {
	stored := make([]types.Position, len(positions))
	copy(stored, positions)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[accountID] = balanceSnapshot{cash: cash, positions: stored, fetchedAt: c.now()}
}

func (c *balanceCache) invalidate(accountID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, accountID)
}
