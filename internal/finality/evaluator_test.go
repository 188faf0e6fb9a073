package finality

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/swarm-governor/internal/governance"
)

type staticSource struct {
	snap Snapshot
}

func (s staticSource) Snapshot(_ context.Context, _ string) (Snapshot, error) {
	return s.snap, nil
}

func tempDecisions(t *testing.T) *DecisionStore {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	ds, err := NewDecisionStore(db)
	if err != nil {
		t.Fatalf("NewDecisionStore: %v", err)
	}
	return ds
}

func reviewBandConfig() governance.FinalityConfig {
	return governance.FinalityConfig{
		States: []governance.FinalityState{
			{
				Name:      "resolved",
				Status:    "RESOLVED",
				Mode:      "all",
				Threshold: 0.92,
				Conditions: []governance.Condition{
					{Field: "contradictions_unresolved_count", Op: "eq", Value: 0},
					{Field: "risks_critical_active_count", Op: "eq", Value: 0},
				},
			},
			{
				Name:      "escalated",
				Status:    "ESCALATED",
				Mode:      "any",
				Threshold: 0,
				Conditions: []governance.Condition{
					{Field: "risks_critical_active_count", Op: "gte", Value: 3},
				},
			},
		},
		GoalGradient: governance.GoalGradient{
			NearFinalityThreshold: 0.75,
			AutoFinalityThreshold: 0.92,
		},
	}
}

// Snapshot scoring inside [near, auto) with an unresolved contradiction so
// the resolved state's condition set is not fully met.
func reviewBandSnapshot() Snapshot {
	return Snapshot{
		ClaimsActiveMinConfidence:     0.9,
		ContradictionsUnresolvedCount: 1,
		ContradictionsTotalCount:      4,
		GoalsCompletionRatio:          0.8,
		ScopeRiskScore:                0.1,
	}
}

func TestEvaluateReturnsReviewInBand(t *testing.T) {
	ds := tempDecisions(t)
	ev := NewEvaluator(reviewBandConfig(), staticSource{reviewBandSnapshot()}, ds)

	res, err := ev.Evaluate(context.Background(), "default")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res == nil {
		t.Fatal("expected a review result")
	}
	if res.Status != StatusReview {
		t.Fatalf("expected REVIEW, got %s", res.Status)
	}
	if res.Score < 0.75 || res.Score >= 0.92 {
		t.Fatalf("score %.4f outside review band", res.Score)
	}
	if len(res.Breakdown) != 4 {
		t.Fatalf("expected dimension breakdown, got %+v", res.Breakdown)
	}
	if len(res.Blockers) == 0 {
		t.Fatal("expected blockers listing the unmet conditions")
	}

	hasApprove := false
	for _, o := range res.Options {
		if o == OptionApproveFinality {
			hasApprove = true
		}
	}
	if !hasApprove || len(res.Options) != 4 {
		t.Fatalf("options must include all four finality options, got %v", res.Options)
	}
}

func TestEvaluateHumanApprovalShortCircuits(t *testing.T) {
	ds := tempDecisions(t)
	ev := NewEvaluator(reviewBandConfig(), staticSource{reviewBandSnapshot()}, ds)

	if err := ds.Record("default", OptionApproveFinality, 0); err != nil {
		t.Fatalf("Record: %v", err)
	}

	res, err := ev.Evaluate(context.Background(), "default")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res == nil || res.Status != StatusResolved {
		t.Fatalf("expected RESOLVED after human approval regardless of score, got %+v", res)
	}
}

func TestEvaluateTerminalStateMatch(t *testing.T) {
	ds := tempDecisions(t)
	snap := Snapshot{
		ClaimsActiveMinConfidence: 1.0,
		GoalsCompletionRatio:      1.0,
	}
	ev := NewEvaluator(reviewBandConfig(), staticSource{snap}, ds)

	res, err := ev.Evaluate(context.Background(), "default")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res == nil || res.Status != StatusResolved || res.State != "resolved" {
		t.Fatalf("expected resolved terminal state, got %+v", res)
	}
}

func TestEvaluateEscalatedAnyMode(t *testing.T) {
	ds := tempDecisions(t)
	snap := Snapshot{
		ClaimsActiveMinConfidence: 0.1,
		RisksCriticalActiveCount:  5,
		ScopeRiskScore:            0.9,
	}
	ev := NewEvaluator(reviewBandConfig(), staticSource{snap}, ds)

	res, err := ev.Evaluate(context.Background(), "default")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res == nil || res.Status != StatusEscalated {
		t.Fatalf("expected ESCALATED via any-mode state, got %+v", res)
	}
}

func TestEvaluateNoOpinionBelowBand(t *testing.T) {
	ds := tempDecisions(t)
	snap := Snapshot{
		ClaimsActiveMinConfidence:     0.2,
		ContradictionsUnresolvedCount: 3,
		ContradictionsTotalCount:      3,
		GoalsCompletionRatio:          0.1,
		ScopeRiskScore:                0.8,
	}
	ev := NewEvaluator(reviewBandConfig(), staticSource{snap}, ds)

	res, err := ev.Evaluate(context.Background(), "default")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res != nil {
		t.Fatalf("expected no finality opinion, got %+v", res)
	}
}

func TestDecisionStoreLatestWins(t *testing.T) {
	ds := tempDecisions(t)

	if err := ds.Record("default", OptionDefer, 7); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := ds.Record("default", OptionEscalate, 0); err != nil {
		t.Fatalf("Record: %v", err)
	}

	latest, ok, err := ds.Latest("default")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !ok {
		t.Fatal("expected a decision")
	}
	if latest.Option != OptionEscalate {
		t.Fatalf("expected latest decision to win, got %s", latest.Option)
	}

	_, ok, err = ds.Latest("other")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if ok {
		t.Fatal("expected no decision for untouched scope")
	}
}

func TestDecisionStoreRejectsInvalidOption(t *testing.T) {
	ds := tempDecisions(t)
	if err := ds.Record("default", Option("maybe"), 0); err == nil {
		t.Fatal("expected invalid option to be rejected")
	}
}
