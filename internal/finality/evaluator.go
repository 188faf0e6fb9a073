package finality

import (
	"context"
	"fmt"
	"log"

	"github.com/danielpatrickdp/swarm-governor/internal/governance"
)

// #region evaluator
// Evaluator decides when a scope is conclusively done versus needing human
// review or escalation.
type Evaluator struct {
	cfg       governance.FinalityConfig
	source    Source
	decisions *DecisionStore
}

// NewEvaluator wires the evaluator to a snapshot source and the human
// decision log.
func NewEvaluator(cfg governance.FinalityConfig, source Source, decisions *DecisionStore) *Evaluator {
	return &Evaluator{cfg: cfg, source: source, decisions: decisions}
}

// #endregion evaluator

// #region evaluate
// Evaluate returns the finality opinion for a scope, or nil when the
// pipeline should simply continue.
func (e *Evaluator) Evaluate(ctx context.Context, scope string) (*Result, error) {
	snap, err := e.source.Snapshot(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("finality snapshot %s: %w", scope, err)
	}

	weights := WeightsFromConfig(e.cfg.GoalGradient.Weights)
	score, breakdown := ScoreBreakdown(snap, weights)

	// A prior human approve_finality is authoritative regardless of score.
	latest, ok, err := e.decisions.Latest(scope)
	if err != nil {
		return nil, err
	}
	if ok && latest.Option == OptionApproveFinality {
		log.Printf("[FINALITY] scope=%s resolved by human approval (score=%.3f)", scope, score)
		return &Result{
			ScopeID:   scope,
			Status:    StatusResolved,
			State:     "human_approved",
			Score:     score,
			Breakdown: breakdown,
		}, nil
	}

	var blockers []string
	for _, st := range e.cfg.States {
		met, unmet := conditionsMet(st, snap)
		if met && score >= st.Threshold {
			log.Printf("[FINALITY] scope=%s state=%s status=%s score=%.3f", scope, st.Name, st.Status, score)
			return &Result{
				ScopeID:   scope,
				Status:    Status(st.Status),
				State:     st.Name,
				Score:     score,
				Breakdown: breakdown,
			}, nil
		}
		blockers = append(blockers, unmet...)
	}

	gg := e.cfg.GoalGradient
	if score >= gg.NearFinalityThreshold && score < gg.AutoFinalityThreshold {
		log.Printf("[FINALITY] scope=%s in review band score=%.3f [%.3f, %.3f)",
			scope, score, gg.NearFinalityThreshold, gg.AutoFinalityThreshold)
		return &Result{
			ScopeID:   scope,
			Status:    StatusReview,
			Score:     score,
			Breakdown: breakdown,
			Blockers:  blockers,
			Options:   Options(),
		}, nil
	}

	return nil, nil
}

// #endregion evaluate

// #region conditions
// conditionsMet evaluates one finality state's condition set. Mode "all"
// requires every condition true; "any" requires at least one. The second
// return lists the unmet conditions for the review blockers list.
func conditionsMet(st governance.FinalityState, snap Snapshot) (bool, []string) {
	if len(st.Conditions) == 0 {
		return true, nil
	}

	var unmet []string
	satisfied := 0
	for _, c := range st.Conditions {
		val, ok := fieldValue(snap, c.Field)
		if !ok {
			unmet = append(unmet, fmt.Sprintf("%s: unknown field %q", st.Name, c.Field))
			continue
		}
		if compare(val, c.Op, c.Value) {
			satisfied++
		} else {
			unmet = append(unmet, fmt.Sprintf("%s: %s %s %g (got %g)", st.Name, c.Field, c.Op, c.Value, val))
		}
	}

	switch st.Mode {
	case "any":
		return satisfied > 0, unmet
	default: // "all"
		return satisfied == len(st.Conditions), unmet
	}
}

func fieldValue(s Snapshot, field string) (float64, bool) {
	switch field {
	case "claims_active_min_confidence":
		return s.ClaimsActiveMinConfidence, true
	case "claims_active_count":
		return float64(s.ClaimsActiveCount), true
	case "claims_active_avg_confidence":
		return s.ClaimsActiveAvgConfidence, true
	case "contradictions_unresolved_count":
		return float64(s.ContradictionsUnresolvedCount), true
	case "contradictions_total_count":
		return float64(s.ContradictionsTotalCount), true
	case "risks_critical_active_count":
		return float64(s.RisksCriticalActiveCount), true
	case "goals_completion_ratio":
		return s.GoalsCompletionRatio, true
	case "scope_risk_score":
		return s.ScopeRiskScore, true
	}
	return 0, false
}

func compare(val float64, op string, want float64) bool {
	switch op {
	case "eq":
		return val == want
	case "ne":
		return val != want
	case "lt":
		return val < want
	case "lte":
		return val <= want
	case "gt":
		return val > want
	case "gte":
		return val >= want
	}
	return false
}

// #endregion conditions
