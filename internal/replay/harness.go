package replay

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/swarm-governor/internal/decision"
	"github.com/danielpatrickdp/swarm-governor/internal/policy"
)

// #region types
// Result captures the outcome of replaying one case through the engine.
type Result struct {
	Name    string
	Allowed bool
	Reason  string
}

// Summary provides aggregate stats from a replay run. Mismatches counts
// cases whose verdict diverged from the fixture's expectation.
type Summary struct {
	Total      int
	Allows     int
	Denies     int
	Mismatches int
}

// #endregion types

// #region auditor
// MemoryAuditor collects decision records in memory, so a replay never
// touches the production decision log.
type MemoryAuditor struct {
	Records []decision.Record
}

// Record appends the record.
func (a *MemoryAuditor) Record(rec decision.Record) error {
	a.Records = append(a.Records, rec)
	return nil
}

// #endregion auditor

// #region replay
// Replay evaluates every fixture case against the engine, in order.
// Operates entirely in-memory.
func Replay(ctx context.Context, engine policy.Engine, cases []FixtureCase) ([]Result, error) {
	results := make([]Result, 0, len(cases))
	for _, fc := range cases {
		out, err := engine.Evaluate(ctx, fc.ToContext())
		if err != nil {
			return nil, fmt.Errorf("evaluate case %q: %w", fc.Name, err)
		}
		results = append(results, Result{
			Name:    fc.Name,
			Allowed: out.Allowed,
			Reason:  out.Record.Reason,
		})
	}
	return results, nil
}

// Summarize compares replay results against the fixture's expected verdicts.
// An expectation without a matching case name counts as a mismatch.
func Summarize(results []Result, expected []FixtureExpectedResult) Summary {
	byName := make(map[string]Result, len(results))
	for _, r := range results {
		byName[r.Name] = r
	}

	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Allowed {
			s.Allows++
		} else {
			s.Denies++
		}
	}

	for _, e := range expected {
		r, ok := byName[e.Name]
		if !ok {
			s.Mismatches++
			continue
		}
		want := e.Result == decision.ResultAllow
		if r.Allowed != want {
			s.Mismatches++
		}
	}
	return s
}

// #endregion replay
