package policy

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/swarm-governor/internal/decision"
	"github.com/danielpatrickdp/swarm-governor/internal/governance"
)

// #region rule-engine
// RuleEngine is the declarative-rule policy backend. Ordered transition_rules
// are checked first; a transition is denied if any applicable rule blocks it
// for the given drift state. Ad-hoc rules follow, first match wins.
type RuleEngine struct {
	cfg     *governance.Config
	auditor Auditor
}

// NewRuleEngine creates the rule-based evaluator.
func NewRuleEngine(cfg *governance.Config, auditor Auditor) *RuleEngine {
	return &RuleEngine{cfg: cfg, auditor: auditor}
}

// Evaluate applies the configured rules to pc and appends the audit record.
func (e *RuleEngine) Evaluate(_ context.Context, pc Context) (Outcome, error) {
	allowed, reason := evaluateRules(e.cfg, pc)

	rec := decision.Record{
		DecisionID:    uuid.New().String(),
		ScopeID:       pc.ScopeID,
		PolicyVersion: e.cfg.Version,
		Result:        decision.ResultAllow,
		Reason:        reason,
		Binding:       decision.BindingYAML,
		CreatedAt:     time.Now().UTC(),
	}
	if !allowed {
		rec.Result = decision.ResultDeny
		rec.SuggestedActions = []string{"resolve_drift", "request_mitl_review"}
	}
	if err := e.auditor.Record(rec); err != nil {
		// The in-memory decision is authoritative; recording is audit only.
		log.Printf("[POLICY] decision record failed: %v", err)
	}
	return Outcome{Record: rec, Allowed: allowed}, nil
}

// #endregion rule-engine

// #region rule-eval
// evaluateRules is the shared rule semantics. The OPA bundle consumes the
// same configuration and must agree on the allow/deny outcome.
func evaluateRules(cfg *governance.Config, pc Context) (bool, string) {
	for _, tr := range cfg.TransitionRules {
		if tr.From != pc.FromState || tr.To != pc.ToState {
			continue
		}
		if conditionMatches(tr.BlockOn, pc) {
			return false, fmt.Sprintf("blocked by transition rule %q", tr.Name)
		}
	}
	for _, r := range cfg.Rules {
		if r.From != "" && r.From != pc.FromState {
			continue
		}
		if r.To != "" && r.To != pc.ToState {
			continue
		}
		if !conditionMatches(r.When, pc) {
			continue
		}
		if r.Effect == "deny" {
			return false, fmt.Sprintf("denied by rule %q", r.Name)
		}
		return true, fmt.Sprintf("allowed by rule %q", r.Name)
	}
	return true, "no blocking rule matched"
}

// conditionMatches reports whether the drift state trips a block condition.
// An empty condition matches unconditionally.
func conditionMatches(c governance.BlockCondition, pc Context) bool {
	if len(c.DriftLevels) == 0 && len(c.DriftTypes) == 0 {
		return true
	}
	for _, lvl := range c.DriftLevels {
		if lvl == pc.DriftLevel {
			return true
		}
	}
	for _, want := range c.DriftTypes {
		for _, have := range pc.DriftTypes {
			if want == have {
				return true
			}
		}
	}
	return false
}

// #endregion rule-eval
