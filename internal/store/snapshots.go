package store

import (
	"fmt"
	"time"

	"alpha-arena/pkg/types"
)

// InsertSnapshot writes one asset snapshot row.
func (s *Store) InsertSnapshot(snap types.AssetSnapshot) error {
	_, err := s.db.Exec(`
		INSERT INTO account_asset_snapshots
			(account_id, cash, positions_value, total_assets, trigger_symbol, trigger_venue, event_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.AccountID, snap.Cash, snap.PositionsValue, snap.TotalAssets,
		snap.TriggerSymbol, snap.TriggerVenue, snap.EventTime.UTC())
	if err != nil {
		return fmt.Errorf("insert snapshot for account %d: %w", snap.AccountID, err)
	}
	return nil
}

// SweepSnapshots deletes snapshot rows older than the retention window,
// returning the number removed.
func (s *Store) SweepSnapshots(retention time.Duration, now time.Time) (int64, error) {
	cutoff := now.Add(-retention).UTC()
	res, err := s.db.Exec(`DELETE FROM account_asset_snapshots WHERE event_time < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep snapshots: %w", err)
	}
	return res.RowsAffected()
}

// SnapshotsSince returns an account's snapshots at or after since, oldest
// first. Used by the asset-curve reader, never by the trading path.
func (s *Store) SnapshotsSince(accountID int64, since time.Time) ([]types.AssetSnapshot, error) {
	rows, err := s.db.Query(`
		SELECT id, account_id, cash, positions_value, total_assets, trigger_symbol, trigger_venue, event_time
		FROM account_asset_snapshots
		WHERE account_id = ? AND event_time >= ?
		ORDER BY event_time`, accountID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []types.AssetSnapshot
	for rows.Next() {
		var snap types.AssetSnapshot
		err := rows.Scan(&snap.ID, &snap.AccountID, &snap.Cash, &snap.PositionsValue,
			&snap.TotalAssets, &snap.TriggerSymbol, &snap.TriggerVenue, &snap.EventTime)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}
