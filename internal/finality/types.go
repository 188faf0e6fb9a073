package finality

import (
	"context"
	"time"
)

// #region options
// Option is a human finality decision recorded via the MITL endpoint.
type Option string

const (
	OptionApproveFinality   Option = "approve_finality"
	OptionProvideResolution Option = "provide_resolution"
	OptionEscalate          Option = "escalate"
	OptionDefer             Option = "defer"
)

// Options returns the four human finality options, in the order the review
// surface presents them.
func Options() []Option {
	return []Option{OptionApproveFinality, OptionProvideResolution, OptionEscalate, OptionDefer}
}

// ValidOption reports whether o is one of the four finality options.
func ValidOption(o Option) bool {
	switch o {
	case OptionApproveFinality, OptionProvideResolution, OptionEscalate, OptionDefer:
		return true
	}
	return false
}

// #endregion options

// #region status
// Status is the finality verdict for a scope.
type Status string

const (
	StatusResolved  Status = "RESOLVED"
	StatusReview    Status = "REVIEW"
	StatusEscalated Status = "ESCALATED"
)

// #endregion status

// #region snapshot
// Snapshot is a point-in-time read of aggregate scope health. Computed fresh
// per evaluation, never persisted.
type Snapshot struct {
	ClaimsActiveMinConfidence     float64 `json:"claims_active_min_confidence"`
	ClaimsActiveCount             int     `json:"claims_active_count"`
	ClaimsActiveAvgConfidence     float64 `json:"claims_active_avg_confidence"`
	ContradictionsUnresolvedCount int     `json:"contradictions_unresolved_count"`
	ContradictionsTotalCount      int     `json:"contradictions_total_count"`
	RisksCriticalActiveCount      int     `json:"risks_critical_active_count"`
	GoalsCompletionRatio          float64 `json:"goals_completion_ratio"`
	ScopeRiskScore                float64 `json:"scope_risk_score"`
}

// Source produces a fresh snapshot for a scope.
type Source interface {
	Snapshot(ctx context.Context, scope string) (Snapshot, error)
}

// #endregion snapshot

// #region result
// Dimension is one weighted component of the goal score.
type Dimension struct {
	Name         string  `json:"name"`
	Value        float64 `json:"value"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// Result is a finality opinion. Status REVIEW carries the breakdown,
// blockers, and the four human options for the MITL surface.
type Result struct {
	ScopeID   string      `json:"scope_id"`
	Status    Status      `json:"status"`
	State     string      `json:"state,omitempty"` // matched finality state name
	Score     float64     `json:"score"`
	Breakdown []Dimension `json:"dimension_breakdown"`
	Blockers  []string    `json:"blockers,omitempty"`
	Options   []Option    `json:"options,omitempty"`
}

// #endregion result

// #region decision
// Decision is a human-recorded finality outcome for a scope. Append-only;
// the latest by created_at is authoritative.
type Decision struct {
	ScopeID   string
	Option    Option
	Days      int // 0 when not set; meaningful for defer only
	CreatedAt time.Time
}

// #endregion decision
