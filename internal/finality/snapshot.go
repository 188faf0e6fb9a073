package finality

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// #region schema
// Aggregate tables owned by the worker agents; created here only so a fresh
// database is queryable before the first worker writes.
const snapshotSchema = `
CREATE TABLE IF NOT EXISTS claims (
	claim_id    TEXT PRIMARY KEY,
	scope_id    TEXT NOT NULL,
	status      TEXT NOT NULL,
	confidence  REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS contradictions (
	contradiction_id TEXT PRIMARY KEY,
	scope_id         TEXT NOT NULL,
	resolved         INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS risks (
	risk_id   TEXT PRIMARY KEY,
	scope_id  TEXT NOT NULL,
	severity  TEXT NOT NULL,
	active    INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS goals (
	goal_id   TEXT PRIMARY KEY,
	scope_id  TEXT NOT NULL,
	completed INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS scope_risk (
	scope_id TEXT PRIMARY KEY,
	score    REAL NOT NULL DEFAULT 0
);
`

// #endregion schema

// #region sql-source
// SQLSource computes a fresh snapshot from the shared aggregate tables.
type SQLSource struct {
	db *sql.DB
}

// NewSQLSource ensures the aggregate tables exist and returns the source.
func NewSQLSource(db *sql.DB) (*SQLSource, error) {
	if _, err := db.Exec(snapshotSchema); err != nil {
		return nil, fmt.Errorf("snapshot schema: %w", err)
	}
	return &SQLSource{db: db}, nil
}

// Snapshot reads the aggregate scope health in one pass per table.
func (s *SQLSource) Snapshot(ctx context.Context, scope string) (Snapshot, error) {
	var snap Snapshot

	var minConf, avgConf sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(confidence), AVG(confidence)
		 FROM claims WHERE scope_id = ? AND status = 'active'`, scope,
	).Scan(&snap.ClaimsActiveCount, &minConf, &avgConf)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot claims: %w", err)
	}
	if minConf.Valid {
		snap.ClaimsActiveMinConfidence = minConf.Float64
	}
	if avgConf.Valid {
		snap.ClaimsActiveAvgConfidence = avgConf.Float64
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN resolved = 0 THEN 1 ELSE 0 END), 0)
		 FROM contradictions WHERE scope_id = ?`, scope,
	).Scan(&snap.ContradictionsTotalCount, &snap.ContradictionsUnresolvedCount)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot contradictions: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM risks WHERE scope_id = ? AND severity = 'critical' AND active = 1`, scope,
	).Scan(&snap.RisksCriticalActiveCount)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot risks: %w", err)
	}

	var goalsTotal, goalsDone int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(completed), 0) FROM goals WHERE scope_id = ?`, scope,
	).Scan(&goalsTotal, &goalsDone)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot goals: %w", err)
	}
	if goalsTotal > 0 {
		snap.GoalsCompletionRatio = float64(goalsDone) / float64(goalsTotal)
	}

	var riskScore sql.NullFloat64
	err = s.db.QueryRowContext(ctx,
		`SELECT score FROM scope_risk WHERE scope_id = ?`, scope,
	).Scan(&riskScore)
	if err != nil && err != sql.ErrNoRows {
		return Snapshot{}, fmt.Errorf("snapshot scope risk: %w", err)
	}
	if riskScore.Valid {
		snap.ScopeRiskScore = riskScore.Float64
	}

	return snap, nil
}

// #endregion sql-source
