package drift

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// #region types
// State is the drift snapshot the policy engine evaluates against.
type State struct {
	Level string   `json:"level"` // "none" | "low" | "medium" | "high"
	Types []string `json:"types"`
}

// Source returns the current drift state for a scope.
type Source interface {
	Current(ctx context.Context, scope string) (State, error)
}

// #endregion types

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS drift_reports (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	scope_id    TEXT NOT NULL,
	level       TEXT NOT NULL,
	types_json  TEXT NOT NULL,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_drift_scope_time ON drift_reports(scope_id, created_at);
`

// #endregion schema

// #region sql-source
// SQLSource reads the latest drift report written by the drift workers.
type SQLSource struct {
	db *sql.DB
}

// NewSQLSource creates the drift_reports table on the given handle.
func NewSQLSource(db *sql.DB) (*SQLSource, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("drift schema: %w", err)
	}
	return &SQLSource{db: db}, nil
}

// Current returns the newest drift report for the scope, or a "none" state
// when no report exists yet.
func (s *SQLSource) Current(ctx context.Context, scope string) (State, error) {
	var level, typesJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT level, types_json FROM drift_reports
		 WHERE scope_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, scope,
	).Scan(&level, &typesJSON)
	if err == sql.ErrNoRows {
		return State{Level: "none"}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("current drift %s: %w", scope, err)
	}

	st := State{Level: level}
	if err := json.Unmarshal([]byte(typesJSON), &st.Types); err != nil {
		return State{}, fmt.Errorf("unmarshal drift types: %w", err)
	}
	return st, nil
}

// Record appends a drift report for a scope.
func (s *SQLSource) Record(scope string, st State) error {
	types, err := json.Marshal(st.Types)
	if err != nil {
		return fmt.Errorf("marshal drift types: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO drift_reports (scope_id, level, types_json, created_at)
		 VALUES (?, ?, ?, ?)`,
		scope, st.Level, string(types), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record drift: %w", err)
	}
	return nil
}

// #endregion sql-source
