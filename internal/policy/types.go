package policy

import (
	"context"

	"github.com/danielpatrickdp/swarm-governor/internal/decision"
)

// #region context
// Context is the input to a policy evaluation.
type Context struct {
	ScopeID    string   `json:"scope_id"`
	FromState  string   `json:"from_state"`
	ToState    string   `json:"to_state"`
	DriftLevel string   `json:"drift_level"`
	DriftTypes []string `json:"drift_types"`
}

// #endregion context

// #region outcome
// Outcome pairs the audit record with the boolean the router acts on.
type Outcome struct {
	Record  decision.Record
	Allowed bool
}

// #endregion outcome

// #region engine
// Engine is the common contract over both policy backends. Exactly one
// implementation is selected at startup by configuration.
type Engine interface {
	Evaluate(ctx context.Context, pc Context) (Outcome, error)
}

// Auditor receives one record per evaluation. Recording is audit, not a
// side effect gating the decision.
type Auditor interface {
	Record(rec decision.Record) error
}

// #endregion engine
