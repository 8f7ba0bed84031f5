package store

import (
	"database/sql"
	"fmt"
	"time"

	"alpha-arena/pkg/types"
)

// ActiveAccounts returns every account whose activation flag is set.
func (s *Store) ActiveAccounts() ([]types.Account, error) {
	rows, err := s.db.Query(`
		SELECT id, name, active, auto_trading, model, base_url, api_key,
		       exchange_api_key, exchange_secret, created_at, updated_at
		FROM accounts WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query active accounts: %w", err)
	}
	defer rows.Close()

	var accounts []types.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// GetAccount fetches one account by id.
func (s *Store) GetAccount(id int64) (types.Account, error) {
	row := s.db.QueryRow(`
		SELECT id, name, active, auto_trading, model, base_url, api_key,
		       exchange_api_key, exchange_secret, created_at, updated_at
		FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

// CreateAccount inserts a new account and returns its id.
func (s *Store) CreateAccount(a types.Account) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO accounts (name, active, auto_trading, model, base_url, api_key,
		                      exchange_api_key, exchange_secret)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Name, a.Active, a.AutoTrading, a.Model, a.BaseURL, a.APIKey,
		a.ExchangeAPIKey, a.ExchangeSecret)
	if err != nil {
		return 0, fmt.Errorf("insert account: %w", err)
	}
	return res.LastInsertId()
}

// UpdateAccount rewrites every mutable field of an account.
func (s *Store) UpdateAccount(a types.Account) error {
	_, err := s.db.Exec(`
		UPDATE accounts
		SET name = ?, active = ?, auto_trading = ?, model = ?, base_url = ?,
		    api_key = ?, exchange_api_key = ?, exchange_secret = ?, updated_at = ?
		WHERE id = ?`,
		a.Name, a.Active, a.AutoTrading, a.Model, a.BaseURL,
		a.APIKey, a.ExchangeAPIKey, a.ExchangeSecret, time.Now().UTC(), a.ID)
	if err != nil {
		return fmt.Errorf("update account %d: %w", a.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(r rowScanner) (types.Account, error) {
	var a types.Account
	err := r.Scan(&a.ID, &a.Name, &a.Active, &a.AutoTrading, &a.Model, &a.BaseURL,
		&a.APIKey, &a.ExchangeAPIKey, &a.ExchangeSecret, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return a, err
	}
	if err != nil {
		return a, fmt.Errorf("scan account: %w", err)
	}
	return a, nil
}
