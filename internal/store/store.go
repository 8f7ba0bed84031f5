// Package store is the SQLite persistence layer: accounts and their strategy
// configs, the append-only decision log, asset snapshots, prompt templates
// with per-account bindings, and the rolling tick table.
//
// Rows are the single source of truth for configuration, but never for
// balances or positions — those are authoritative on the exchange.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT UNIQUE NOT NULL,
    active BOOLEAN NOT NULL DEFAULT 1,
    auto_trading BOOLEAN NOT NULL DEFAULT 0,
    model TEXT NOT NULL DEFAULT '',
    base_url TEXT NOT NULL DEFAULT '',
    api_key TEXT NOT NULL DEFAULT '',
    exchange_api_key TEXT NOT NULL DEFAULT '',
    exchange_secret TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS account_strategy_configs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    account_id INTEGER UNIQUE NOT NULL REFERENCES accounts(id),
    trigger_mode TEXT NOT NULL DEFAULT 'realtime',
    interval_seconds INTEGER NOT NULL DEFAULT 60,
    tick_batch_size INTEGER NOT NULL DEFAULT 10,
    enabled BOOLEAN NOT NULL DEFAULT 0,
    last_trigger_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS ai_decision_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    account_id INTEGER NOT NULL REFERENCES accounts(id),
    decision_time TIMESTAMP NOT NULL,
    operation TEXT NOT NULL,
    symbol TEXT,
    prev_portion REAL NOT NULL DEFAULT 0,
    target_portion REAL NOT NULL DEFAULT 0,
    total_balance REAL NOT NULL DEFAULT 0,
    executed BOOLEAN NOT NULL DEFAULT 0,
    order_id TEXT,
    reason TEXT NOT NULL DEFAULT '',
    prompt_snapshot TEXT NOT NULL DEFAULT '',
    reasoning_snapshot TEXT NOT NULL DEFAULT '',
    decision_snapshot TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_decision_logs_account_time
    ON ai_decision_logs(account_id, decision_time);

CREATE TABLE IF NOT EXISTS account_asset_snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    account_id INTEGER NOT NULL REFERENCES accounts(id),
    cash REAL NOT NULL,
    positions_value REAL NOT NULL,
    total_assets REAL NOT NULL,
    trigger_symbol TEXT NOT NULL DEFAULT '',
    trigger_venue TEXT NOT NULL DEFAULT '',
    event_time TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_asset_snapshots_account_time
    ON account_asset_snapshots(account_id, event_time);
CREATE INDEX IF NOT EXISTS idx_asset_snapshots_time
    ON account_asset_snapshots(event_time);

CREATE TABLE IF NOT EXISTS prompt_templates (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    key TEXT UNIQUE NOT NULL,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    text TEXT NOT NULL,
    system_text TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS account_prompt_bindings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    account_id INTEGER UNIQUE NOT NULL REFERENCES accounts(id),
    template_key TEXT NOT NULL REFERENCES prompt_templates(key)
);

CREATE TABLE IF NOT EXISTS crypto_price_ticks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol TEXT NOT NULL,
    venue TEXT NOT NULL,
    price REAL NOT NULL,
    event_time TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_price_ticks_symbol_time
    ON crypto_price_ticks(symbol, event_time);
`

// Store wraps the SQLite connection and exposes one repository per entity.
type Store struct {
	db *sql.DB
}

// Open creates (if needed) and opens the database at path, applying the
// schema. WAL mode keeps the snapshot writer from blocking readers.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	// sqlite serializes writers; a single connection avoids SQLITE_BUSY
	// churn under concurrent decision tasks.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}
