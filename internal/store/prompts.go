package store

import (
	"database/sql"
	"errors"
	"fmt"

	"alpha-arena/pkg/types"
)

// GetPromptTemplate fetches one template by key.
func (s *Store) GetPromptTemplate(key string) (types.PromptTemplate, error) {
	row := s.db.QueryRow(`
		SELECT id, key, name, description, text, system_text
		FROM prompt_templates WHERE key = ?`, key)

	var t types.PromptTemplate
	err := row.Scan(&t.ID, &t.Key, &t.Name, &t.Description, &t.Text, &t.SystemText)
	if errors.Is(err, sql.ErrNoRows) {
		return t, err
	}
	if err != nil {
		return t, fmt.Errorf("scan prompt template %q: %w", key, err)
	}
	return t, nil
}

// SeedPromptTemplate installs a factory template if its key is absent.
// Existing rows are never overwritten: the current text may carry user
// edits, and system_text is the restore point.
func (s *Store) SeedPromptTemplate(t types.PromptTemplate) error {
	_, err := s.db.Exec(`
		INSERT INTO prompt_templates (key, name, description, text, system_text)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO NOTHING`,
		t.Key, t.Name, t.Description, t.Text, t.SystemText)
	if err != nil {
		return fmt.Errorf("seed prompt template %q: %w", t.Key, err)
	}
	return nil
}

// TemplateKeyForAccount resolves the account's bound template key, or
// "default" when the account is unbound.
func (s *Store) TemplateKeyForAccount(accountID int64) (string, error) {
	row := s.db.QueryRow(`
		SELECT template_key FROM account_prompt_bindings WHERE account_id = ?`, accountID)

	var key string
	err := row.Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "default", nil
	}
	if err != nil {
		return "", fmt.Errorf("scan prompt binding for account %d: %w", accountID, err)
	}
	return key, nil
}

// BindPromptTemplate points an account at a template, replacing any
// existing binding.
func (s *Store) BindPromptTemplate(accountID int64, key string) error {
	_, err := s.db.Exec(`
		INSERT INTO account_prompt_bindings (account_id, template_key)
		VALUES (?, ?)
		ON CONFLICT(account_id) DO UPDATE SET template_key = excluded.template_key`,
		accountID, key)
	if err != nil {
		return fmt.Errorf("bind prompt template for account %d: %w", accountID, err)
	}
	return nil
}
