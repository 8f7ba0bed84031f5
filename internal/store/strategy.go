package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"alpha-arena/pkg/types"
)

// GetStrategyConfig returns the trigger policy for one account.
// sql.ErrNoRows is returned unwrapped when none exists.
func (s *Store) GetStrategyConfig(accountID int64) (types.StrategyConfig, error) {
	row := s.db.QueryRow(`
		SELECT account_id, trigger_mode, interval_seconds, tick_batch_size, enabled, last_trigger_at
		FROM account_strategy_configs WHERE account_id = ?`, accountID)

	var cfg types.StrategyConfig
	var last sql.NullTime
	err := row.Scan(&cfg.AccountID, &cfg.Mode, &cfg.IntervalSeconds, &cfg.TickBatchSize, &cfg.Enabled, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return cfg, err
	}
	if err != nil {
		return cfg, fmt.Errorf("scan strategy config: %w", err)
	}
	if last.Valid {
		t := last.Time.UTC()
		cfg.LastTriggerAt = &t
	}
	return cfg, nil
}

// UpsertStrategyConfig writes the policy row for an account, creating it on
// first write. There is exactly one row per account.
func (s *Store) UpsertStrategyConfig(cfg types.StrategyConfig) error {
	var last any
	if cfg.LastTriggerAt != nil {
		last = cfg.LastTriggerAt.UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO account_strategy_configs
			(account_id, trigger_mode, interval_seconds, tick_batch_size, enabled, last_trigger_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			trigger_mode = excluded.trigger_mode,
			interval_seconds = excluded.interval_seconds,
			tick_batch_size = excluded.tick_batch_size,
			enabled = excluded.enabled,
			last_trigger_at = excluded.last_trigger_at`,
		cfg.AccountID, string(cfg.Mode), cfg.IntervalSeconds, cfg.TickBatchSize, cfg.Enabled, last)
	if err != nil {
		return fmt.Errorf("upsert strategy config for account %d: %w", cfg.AccountID, err)
	}
	return nil
}

// TouchLastTrigger persists a new last_trigger_at for an account.
func (s *Store) TouchLastTrigger(accountID int64, at time.Time) error {
	_, err := s.db.Exec(`
		UPDATE account_strategy_configs SET last_trigger_at = ? WHERE account_id = ?`,
		at.UTC(), accountID)
	if err != nil {
		return fmt.Errorf("touch last trigger for account %d: %w", accountID, err)
	}
	return nil
}
