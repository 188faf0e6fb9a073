package graph

import "time"

// #region graph-state
// GraphState is the single versioned state row for one scope.
type GraphState struct {
	ScopeID   string
	RunID     string
	LastNode  Node
	Epoch     int64
	UpdatedAt time.Time
}

// #endregion graph-state

// #region transition-result
// TransitionResult is the outcome of an ApplyTransition attempt. A stale
// expected epoch is reported as Conflict, not an error: concurrent proposals
// racing to advance the same scope are an expected condition.
type TransitionResult struct {
	Applied  bool
	Conflict bool
	State    GraphState // fresh state after apply, or current state on conflict
}

// #endregion transition-result

// DefaultScope is the scope used when a proposal names none.
const DefaultScope = "default"
