package store

import (
	"fmt"
	"time"

	"alpha-arena/pkg/types"
)

// InsertTick appends one market tick and sweeps rows for the same symbol
// older than the retention window. Implements market.TickStore.
func (s *Store) InsertTick(tick types.Tick, retention time.Duration) error {
	_, err := s.db.Exec(`
		INSERT INTO crypto_price_ticks (symbol, venue, price, event_time)
		VALUES (?, ?, ?, ?)`,
		tick.Symbol, tick.Venue, tick.Price, tick.EventTime.UTC())
	if err != nil {
		return fmt.Errorf("insert tick %s: %w", tick.Symbol, err)
	}

	cutoff := tick.EventTime.Add(-retention).UTC()
	_, err = s.db.Exec(`
		DELETE FROM crypto_price_ticks WHERE symbol = ? AND event_time < ?`,
		tick.Symbol, cutoff)
	if err != nil {
		return fmt.Errorf("sweep ticks %s: %w", tick.Symbol, err)
	}
	return nil
}

// TicksSince returns one symbol's ticks at or after since, oldest first.
func (s *Store) TicksSince(symbol string, since time.Time) ([]types.Tick, error) {
	rows, err := s.db.Query(`
		SELECT symbol, venue, price, event_time
		FROM crypto_price_ticks
		WHERE symbol = ? AND event_time >= ?
		ORDER BY event_time`, symbol, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query ticks: %w", err)
	}
	defer rows.Close()

	var ticks []types.Tick
	for rows.Next() {
		var t types.Tick
		if err := rows.Scan(&t.Symbol, &t.Venue, &t.Price, &t.EventTime); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		ticks = append(ticks, t)
	}
	return ticks, rows.Err()
}
