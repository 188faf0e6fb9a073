package graph

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS graph_state (
	scope_id    TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL,
	last_node   TEXT NOT NULL,
	epoch       INTEGER NOT NULL CHECK (epoch >= 0),
	updated_at  TEXT NOT NULL
);
`

// #endregion schema

// #region store-struct
// Store manages the per-scope graph state row in SQLite. The conditional
// update in ApplyTransition is the only synchronization primitive protecting
// concurrent writers.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	// Pragmas go in the DSN so every pooled connection gets them; a plain
	// Exec would configure only the single connection it happens to run on.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an existing database handle (shared with other stores).
func NewStoreWithDB(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("graph schema: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other stores.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion close

// #region load
// LoadState reads the state row for a scope. The second return is false
// when no row exists for the scope.
func (s *Store) LoadState(scope string) (GraphState, bool, error) {
	var st GraphState
	var node, updatedStr string
	err := s.db.QueryRow(
		`SELECT scope_id, run_id, last_node, epoch, updated_at
		 FROM graph_state WHERE scope_id = ?`, scope,
	).Scan(&st.ScopeID, &st.RunID, &node, &st.Epoch, &updatedStr)
	if err == sql.ErrNoRows {
		return GraphState{}, false, nil
	}
	if err != nil {
		return GraphState{}, false, fmt.Errorf("load state %s: %w", scope, err)
	}
	st.LastNode = Node(node)
	st.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
	return st, true, nil
}

// #endregion load

// #region init
// InitState seeds the single state row for a scope at epoch 0.
// At most one row may exist per scope; re-seeding an existing scope fails.
func (s *Store) InitState(scope, runID string, node Node) (GraphState, error) {
	if !Known(node) {
		return GraphState{}, fmt.Errorf("unknown node %q", node)
	}
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO graph_state (scope_id, run_id, last_node, epoch, updated_at)
		 VALUES (?, ?, ?, 0, ?)`,
		scope, runID, string(node), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return GraphState{}, fmt.Errorf("init state %s: %w", scope, err)
	}
	return GraphState{
		ScopeID:   scope,
		RunID:     runID,
		LastNode:  node,
		Epoch:     0,
		UpdatedAt: now,
	}, nil
}

// #endregion init

// #region apply-transition
// ApplyTransition advances the scope to newNode iff the stored epoch equals
// expectedEpoch. One conditional write: on success the epoch increments by
// exactly 1; on a stale epoch the current row is returned as a conflict.
func (s *Store) ApplyTransition(scope string, expectedEpoch int64, newNode Node) (TransitionResult, error) {
	if !Known(newNode) {
		return TransitionResult{}, fmt.Errorf("unknown node %q", newNode)
	}

	now := time.Now().UTC()
	res, err := s.db.Exec(
		`UPDATE graph_state
		 SET last_node = ?, epoch = epoch + 1, updated_at = ?
		 WHERE scope_id = ? AND epoch = ?`,
		string(newNode), now.Format(time.RFC3339Nano), scope, expectedEpoch,
	)
	if err != nil {
		return TransitionResult{}, fmt.Errorf("apply transition %s: %w", scope, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return TransitionResult{}, fmt.Errorf("rows affected: %w", err)
	}

	if n == 1 {
		var runID string
		if err := s.db.QueryRow(
			`SELECT run_id FROM graph_state WHERE scope_id = ?`, scope,
		).Scan(&runID); err != nil {
			return TransitionResult{}, fmt.Errorf("load run id %s: %w", scope, err)
		}
		return TransitionResult{
			Applied: true,
			State: GraphState{
				ScopeID:   scope,
				RunID:     runID,
				LastNode:  newNode,
				Epoch:     expectedEpoch + 1,
				UpdatedAt: now,
			},
		}, nil
	}

	// No row matched: either the scope is unknown or the epoch was stale.
	current, ok, err := s.LoadState(scope)
	if err != nil {
		return TransitionResult{}, err
	}
	if !ok {
		return TransitionResult{}, fmt.Errorf("scope %s not initialized", scope)
	}
	return TransitionResult{Conflict: true, State: current}, nil
}

// #endregion apply-transition
