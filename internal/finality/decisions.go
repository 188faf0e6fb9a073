package finality

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// #region schema
const decisionSchema = `
CREATE TABLE IF NOT EXISTS finality_decisions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	scope_id    TEXT NOT NULL,
	option      TEXT NOT NULL,
	days        INTEGER,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_finality_scope ON finality_decisions(scope_id, created_at);
`

// #endregion schema

// #region store
// DecisionStore is the append-only log of human finality decisions.
type DecisionStore struct {
	db *sql.DB
}

// NewDecisionStore creates the finality_decisions table on the given handle.
func NewDecisionStore(db *sql.DB) (*DecisionStore, error) {
	if _, err := db.Exec(decisionSchema); err != nil {
		return nil, fmt.Errorf("finality schema: %w", err)
	}
	return &DecisionStore{db: db}, nil
}

// #endregion store

// #region record
// Record appends a human finality decision. days <= 0 stores NULL.
func (s *DecisionStore) Record(scope string, option Option, days int) error {
	if !ValidOption(option) {
		return fmt.Errorf("invalid finality option %q", option)
	}
	var daysVal any
	if days > 0 {
		daysVal = days
	}
	_, err := s.db.Exec(
		`INSERT INTO finality_decisions (scope_id, option, days, created_at)
		 VALUES (?, ?, ?, ?)`,
		scope, string(option), daysVal, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record finality decision: %w", err)
	}
	return nil
}

// #endregion record

// #region latest
// Latest returns the authoritative decision for a scope: newest by
// created_at. The second return is false when no decision exists.
func (s *DecisionStore) Latest(scope string) (Decision, bool, error) {
	var d Decision
	var option, createdStr string
	var days sql.NullInt64
	err := s.db.QueryRow(
		`SELECT scope_id, option, days, created_at
		 FROM finality_decisions WHERE scope_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`, scope,
	).Scan(&d.ScopeID, &option, &days, &createdStr)
	if err == sql.ErrNoRows {
		return Decision{}, false, nil
	}
	if err != nil {
		return Decision{}, false, fmt.Errorf("latest finality decision %s: %w", scope, err)
	}
	d.Option = Option(option)
	if days.Valid {
		d.Days = int(days.Int64)
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return d, true, nil
}

// #endregion latest
