package decision

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS decision_log (
	decision_id     TEXT PRIMARY KEY,
	scope_id        TEXT NOT NULL,
	policy_version  TEXT,
	result          TEXT NOT NULL,
	reason          TEXT,
	obligations     TEXT,
	binding         TEXT NOT NULL,
	suggested       TEXT,
	created_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decision_scope_time ON decision_log(scope_id, created_at);
`

// #endregion schema

// #region recorder
// Recorder appends policy evaluation outcomes to the decision_log table.
// Append-only: there is no update or delete path.
type Recorder struct {
	db *sql.DB
}

// NewRecorder creates the decision_log table on the given handle.
func NewRecorder(db *sql.DB) (*Recorder, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("decision schema: %w", err)
	}
	return &Recorder{db: db}, nil
}

// #endregion recorder

// #region record
// Record persists a decision record verbatim. A storage failure is returned
// to the caller but never blocks the decision already made in memory.
func (r *Recorder) Record(rec Record) error {
	if rec.DecisionID == "" {
		rec.DecisionID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	obligations, err := json.Marshal(rec.Obligations)
	if err != nil {
		return fmt.Errorf("marshal obligations: %w", err)
	}
	suggested, err := json.Marshal(rec.SuggestedActions)
	if err != nil {
		return fmt.Errorf("marshal suggested actions: %w", err)
	}

	_, err = r.db.Exec(
		`INSERT INTO decision_log (decision_id, scope_id, policy_version, result, reason, obligations, binding, suggested, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.DecisionID,
		rec.ScopeID,
		nullIfEmpty(rec.PolicyVersion),
		rec.Result,
		nullIfEmpty(rec.Reason),
		string(obligations),
		rec.Binding,
		string(suggested),
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	return nil
}

// #endregion record

// #region query
// Query returns records for a scope within [from, to), newest first.
// An empty scope matches all scopes.
func (r *Recorder) Query(scope string, from, to time.Time) ([]Record, error) {
	q := `SELECT decision_id, scope_id, policy_version, result, reason, obligations, binding, suggested, created_at
	      FROM decision_log
	      WHERE created_at >= ? AND created_at < ?`
	args := []any{from.UTC().Format(time.RFC3339Nano), to.UTC().Format(time.RFC3339Nano)}
	if scope != "" {
		q += ` AND scope_id = ?`
		args = append(args, scope)
	}
	q += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var version, reason sql.NullString
		var obligations, suggested, createdStr string
		if err := rows.Scan(&rec.DecisionID, &rec.ScopeID, &version, &rec.Result, &reason,
			&obligations, &rec.Binding, &suggested, &createdStr); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		if version.Valid {
			rec.PolicyVersion = version.String
		}
		if reason.Valid {
			rec.Reason = reason.String
		}
		if err := json.Unmarshal([]byte(obligations), &rec.Obligations); err != nil {
			return nil, fmt.Errorf("unmarshal obligations: %w", err)
		}
		if err := json.Unmarshal([]byte(suggested), &rec.SuggestedActions); err != nil {
			return nil, fmt.Errorf("unmarshal suggested actions: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion query

// #region helpers
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
