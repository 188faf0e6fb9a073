package replay

import (
	"context"
	"testing"

	"github.com/danielpatrickdp/swarm-governor/internal/governance"
	"github.com/danielpatrickdp/swarm-governor/internal/policy"
)

func replayConfig() *governance.Config {
	return &governance.Config{
		Version: "replay-test",
		TransitionRules: []governance.TransitionRule{
			{
				Name: "block_high_drift_commit",
				From: "DriftChecked",
				To:   "ContextIngested",
				BlockOn: governance.BlockCondition{
					DriftLevels: []string{"high"},
				},
			},
		},
	}
}

func replayCases() []FixtureCase {
	return []FixtureCase{
		{
			Name:       "clean_commit",
			ScopeID:    "default",
			From:       "DriftChecked",
			To:         "ContextIngested",
			DriftLevel: "none",
		},
		{
			Name:       "high_drift_commit",
			ScopeID:    "default",
			From:       "DriftChecked",
			To:         "ContextIngested",
			DriftLevel: "high",
		},
	}
}

func TestReplayEvaluatesCasesInOrder(t *testing.T) {
	auditor := &MemoryAuditor{}
	engine := policy.NewRuleEngine(replayConfig(), auditor)

	results, err := Replay(context.Background(), engine, replayCases())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].Allowed || results[0].Name != "clean_commit" {
		t.Fatalf("case 0: %+v", results[0])
	}
	if results[1].Allowed {
		t.Fatalf("high drift must deny: %+v", results[1])
	}
	if len(auditor.Records) != 2 {
		t.Fatalf("every case must be audited, got %d records", len(auditor.Records))
	}
}

func TestSummarizeCountsMismatches(t *testing.T) {
	results := []Result{
		{Name: "clean_commit", Allowed: true},
		{Name: "high_drift_commit", Allowed: false},
	}
	expected := []FixtureExpectedResult{
		{Name: "clean_commit", Result: "allow"},
		{Name: "high_drift_commit", Result: "allow"}, // config now denies this
		{Name: "missing_case", Result: "deny"},
	}

	s := Summarize(results, expected)
	if s.Total != 2 || s.Allows != 1 || s.Denies != 1 {
		t.Fatalf("summary counts: %+v", s)
	}
	if s.Mismatches != 2 {
		t.Fatalf("expected 2 mismatches (diverged + missing), got %d", s.Mismatches)
	}
}

func TestSummarizeAllMatch(t *testing.T) {
	results := []Result{
		{Name: "a", Allowed: true},
		{Name: "b", Allowed: false},
	}
	expected := []FixtureExpectedResult{
		{Name: "a", Result: "allow"},
		{Name: "b", Result: "deny"},
	}
	if s := Summarize(results, expected); s.Mismatches != 0 {
		t.Fatalf("unexpected mismatches: %+v", s)
	}
}
