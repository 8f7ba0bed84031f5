package store

import (
	"database/sql"
	"fmt"

	"alpha-arena/pkg/types"
)

// InsertDecision appends one decision log row and returns its id.
func (s *Store) InsertDecision(d types.DecisionRecord) (int64, error) {
	var symbol any
	if d.Symbol != "" {
		symbol = d.Symbol
	}
	var orderID any
	if d.OrderID != "" {
		orderID = d.OrderID
	}
	res, err := s.db.Exec(`
		INSERT INTO ai_decision_logs
			(account_id, decision_time, operation, symbol, prev_portion, target_portion,
			 total_balance, executed, order_id, reason,
			 prompt_snapshot, reasoning_snapshot, decision_snapshot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.AccountID, d.DecisionTime.UTC(), string(d.Operation), symbol,
		d.PrevPortion, d.TargetPortion, d.TotalBalance, d.Executed, orderID, d.Reason,
		d.PromptSnapshot, d.ReasoningSnapshot, d.DecisionSnapshot)
	if err != nil {
		return 0, fmt.Errorf("insert decision for account %d: %w", d.AccountID, err)
	}
	return res.LastInsertId()
}

// RecentDecisions returns an account's newest decision rows, newest first.
func (s *Store) RecentDecisions(accountID int64, limit int) ([]types.DecisionRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, account_id, decision_time, operation, symbol, prev_portion,
		       target_portion, total_balance, executed, order_id, reason,
		       prompt_snapshot, reasoning_snapshot, decision_snapshot
		FROM ai_decision_logs
		WHERE account_id = ?
		ORDER BY decision_time DESC, id DESC
		LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var records []types.DecisionRecord
	for rows.Next() {
		var d types.DecisionRecord
		var symbol, orderID sql.NullString
		err := rows.Scan(&d.ID, &d.AccountID, &d.DecisionTime, &d.Operation, &symbol,
			&d.PrevPortion, &d.TargetPortion, &d.TotalBalance, &d.Executed, &orderID,
			&d.Reason, &d.PromptSnapshot, &d.ReasoningSnapshot, &d.DecisionSnapshot)
		if err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.Symbol = symbol.String
		d.OrderID = orderID.String
		records = append(records, d)
	}
	return records, rows.Err()
}
