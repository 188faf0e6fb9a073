package policy

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/swarm-governor/internal/decision"
	"github.com/danielpatrickdp/swarm-governor/internal/governance"
)

// #region deny-all
// denyAllEngine is the fail-closed backstop used when no policy backend is
// available. Evaluation must deny rather than silently allow.
type denyAllEngine struct {
	version string
	auditor Auditor
}

func (e *denyAllEngine) Evaluate(_ context.Context, pc Context) (Outcome, error) {
	rec := decision.Record{
		DecisionID:    uuid.New().String(),
		ScopeID:       pc.ScopeID,
		PolicyVersion: e.version,
		Result:        decision.ResultDeny,
		Reason:        "no policy backend available",
		Binding:       decision.BindingYAML,
		CreatedAt:     time.Now().UTC(),
	}
	if err := e.auditor.Record(rec); err != nil {
		log.Printf("[POLICY] decision record failed: %v", err)
	}
	return Outcome{Record: rec, Allowed: false}, nil
}

// #endregion deny-all

// #region factory
// NewEngine selects the policy backend once at startup. The "opa" backend
// degrades to the rule backend when the bundle cannot be loaded and rules are
// configured; with neither available it fails closed.
func NewEngine(ctx context.Context, cfg *governance.Config, auditor Auditor) Engine {
	if cfg.Policy.Backend != "opa" {
		return NewRuleEngine(cfg, auditor)
	}

	eng, err := NewBundleEngine(ctx, cfg.Policy.BundlePath, cfg, auditor)
	if err == nil {
		log.Printf("[POLICY] bundle backend loaded from %s", cfg.Policy.BundlePath)
		return eng
	}
	log.Printf("[POLICY] bundle backend unavailable: %v", err)

	if len(cfg.TransitionRules) > 0 || len(cfg.Rules) > 0 {
		log.Printf("[POLICY] falling back to rule backend")
		return NewRuleEngine(cfg, auditor)
	}

	log.Printf("[POLICY] no rule configuration either, failing closed")
	return &denyAllEngine{version: cfg.Version, auditor: auditor}
}

// #endregion factory
