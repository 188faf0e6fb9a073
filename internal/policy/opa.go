package policy

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage"
	"github.com/open-policy-agent/opa/storage/inmem"

	"github.com/danielpatrickdp/swarm-governor/internal/decision"
	"github.com/danielpatrickdp/swarm-governor/internal/governance"
)

// ErrNoBundle signals that the compiled-policy backend cannot be constructed;
// the factory falls back instead of crashing.
var ErrNoBundle = errors.New("policy bundle unavailable")

// #region bundle-cache
// bundleCache holds one prepared query keyed by its source path. The bundle
// recompiles only when the path changes. Each engine owns its own cache, so
// two engines sharing a bundle path still evaluate against their own static
// config data.
type bundleCache struct {
	mu    sync.Mutex
	path  string
	query rego.PreparedEvalQuery
	ready bool
}

func (c *bundleCache) load(ctx context.Context, path string, data map[string]any) (rego.PreparedEvalQuery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready && c.path == path {
		return c.query, nil
	}

	// A caller-provided store requires an explicit write transaction so
	// PrepareForEval can insert the loaded modules into it.
	store := inmem.NewFromObject(data)
	txn, err := store.NewTransaction(ctx, storage.WriteParams)
	if err != nil {
		c.ready = false
		return rego.PreparedEvalQuery{}, fmt.Errorf("prepare bundle %s: %w", path, err)
	}
	r := rego.New(
		rego.Query("data.governance.decision"),
		rego.Load([]string{path}, nil),
		rego.Store(store),
		rego.Transaction(txn),
	)
	pq, err := r.PrepareForEval(ctx)
	if err != nil {
		store.Abort(ctx, txn)
		c.ready = false
		return rego.PreparedEvalQuery{}, fmt.Errorf("prepare bundle %s: %w", path, err)
	}
	if err := store.Commit(ctx, txn); err != nil {
		c.ready = false
		return rego.PreparedEvalQuery{}, fmt.Errorf("prepare bundle %s: %w", path, err)
	}
	c.path = path
	c.query = pq
	c.ready = true
	return pq, nil
}

// #endregion bundle-cache

// #region bundle-engine
// BundleEngine evaluates proposals against a precompiled rego policy. The
// governance configuration is set as static data at load time; each request
// serializes the same fields as the rule-based context.
type BundleEngine struct {
	cache   *bundleCache
	path    string
	data    map[string]any
	version string
	auditor Auditor
}

// NewBundleEngine compiles the policy at path into the engine's own cache.
// A missing or corrupt bundle yields ErrNoBundle; the caller must fall back,
// never crash.
func NewBundleEngine(ctx context.Context, path string, cfg *governance.Config, auditor Auditor) (*BundleEngine, error) {
	if path == "" {
		return nil, ErrNoBundle
	}
	e := &BundleEngine{
		cache:   &bundleCache{},
		path:    path,
		data:    configAsData(cfg),
		version: cfg.Version,
		auditor: auditor,
	}
	if _, err := e.cache.load(ctx, path, e.data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoBundle, err)
	}
	return e, nil
}

// Evaluate runs the prepared query. An empty result set is an explicit deny
// with reason "opa_no_result"; evaluation errors fail closed.
func (e *BundleEngine) Evaluate(ctx context.Context, pc Context) (Outcome, error) {
	input := map[string]any{
		"scope_id":    pc.ScopeID,
		"from_state":  pc.FromState,
		"to_state":    pc.ToState,
		"drift_level": pc.DriftLevel,
		"drift_types": pc.DriftTypes,
	}

	allowed := false
	reason := "opa_no_result"

	var rs rego.ResultSet
	pq, err := e.cache.load(ctx, e.path, e.data)
	if err == nil {
		rs, err = pq.Eval(ctx, rego.EvalInput(input))
	}
	switch {
	case err != nil:
		reason = fmt.Sprintf("opa_error: %v", err)
	case len(rs) == 0 || len(rs[0].Expressions) == 0:
		// fail closed on an undefined decision
	default:
		if val, ok := rs[0].Expressions[0].Value.(map[string]any); ok {
			allowed, _ = val["allow"].(bool)
			if r, ok := val["reason"].(string); ok && r != "" {
				reason = r
			} else if allowed {
				reason = "allowed by bundle"
			}
		}
	}

	rec := decision.Record{
		DecisionID:    uuid.New().String(),
		ScopeID:       pc.ScopeID,
		PolicyVersion: e.version,
		Result:        decision.ResultAllow,
		Reason:        reason,
		Binding:       decision.BindingOPA,
		CreatedAt:     time.Now().UTC(),
	}
	if !allowed {
		rec.Result = decision.ResultDeny
		rec.SuggestedActions = []string{"resolve_drift", "request_mitl_review"}
	}
	if err := e.auditor.Record(rec); err != nil {
		log.Printf("[POLICY] decision record failed: %v", err)
	}
	return Outcome{Record: rec, Allowed: allowed}, nil
}

// #endregion bundle-engine

// #region config-data
// configAsData exposes the governance rules to the bundle as static data
// under data.governance_config, mirroring the YAML field names.
func configAsData(cfg *governance.Config) map[string]any {
	trs := make([]any, 0, len(cfg.TransitionRules))
	for _, tr := range cfg.TransitionRules {
		trs = append(trs, map[string]any{
			"name":     tr.Name,
			"from":     tr.From,
			"to":       tr.To,
			"block_on": conditionAsData(tr.BlockOn),
		})
	}
	rules := make([]any, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		rules = append(rules, map[string]any{
			"name":   r.Name,
			"effect": r.Effect,
			"from":   r.From,
			"to":     r.To,
			"when":   conditionAsData(r.When),
		})
	}
	return map[string]any{
		"governance_config": map[string]any{
			"transition_rules": trs,
			"rules":            rules,
		},
	}
}

func conditionAsData(c governance.BlockCondition) map[string]any {
	return map[string]any{
		"drift_levels": stringsAsData(c.DriftLevels),
		"drift_types":  stringsAsData(c.DriftTypes),
	}
}

func stringsAsData(ss []string) []any {
	out := make([]any, 0, len(ss))
	for _, s := range ss {
		out = append(out, s)
	}
	return out
}

// #endregion config-data
