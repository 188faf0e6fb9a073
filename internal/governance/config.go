package governance

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/swarm-governor/internal/message"
)

// #region config
// Config is the externally loaded governance document. Both policy backends
// consume the same transition_rules/rules; the finality block feeds the
// finality evaluator.
type Config struct {
	Version         string           `yaml:"version"`
	Mode            message.Mode     `yaml:"mode"`
	Policy          PolicyConfig     `yaml:"policy"`
	TransitionRules []TransitionRule `yaml:"transition_rules"`
	Rules           []Rule           `yaml:"rules"`
	Finality        FinalityConfig   `yaml:"finality"`
}

// PolicyConfig selects the policy backend. BundlePath is optional; when the
// backend is "opa" and the bundle cannot be loaded, the caller falls back per
// the policy factory contract.
type PolicyConfig struct {
	Backend    string `yaml:"backend"` // "rules" | "opa"
	BundlePath string `yaml:"bundle_path"`
}

// #endregion config

// #region rules
// TransitionRule blocks a (from, to) edge when the drift state matches its
// block_on predicate.
type TransitionRule struct {
	Name    string         `yaml:"name"`
	From    string         `yaml:"from"`
	To      string         `yaml:"to"`
	BlockOn BlockCondition `yaml:"block_on"`
}

// BlockCondition matches when the drift level is listed, or any drift type is
// listed. An empty condition matches unconditionally.
type BlockCondition struct {
	DriftLevels []string `yaml:"drift_levels"`
	DriftTypes  []string `yaml:"drift_types"`
}

// Rule is an ad-hoc ordered rule evaluated after transition_rules.
// Empty From/To match any edge. First matching rule wins.
type Rule struct {
	Name   string         `yaml:"name"`
	Effect string         `yaml:"effect"` // "allow" | "deny"
	From   string         `yaml:"from"`
	To     string         `yaml:"to"`
	When   BlockCondition `yaml:"when"`
}

// #endregion rules

// #region finality
// FinalityConfig holds the named finality states and the goal-gradient block.
type FinalityConfig struct {
	States       []FinalityState `yaml:"states"`
	GoalGradient GoalGradient    `yaml:"goal_gradient"`
}

// FinalityState is a named terminal state with a condition set.
type FinalityState struct {
	Name       string      `yaml:"name"`
	Status     string      `yaml:"status"` // "RESOLVED" | "ESCALATED"
	Mode       string      `yaml:"mode"`   // "all" | "any"
	Threshold  float64     `yaml:"threshold"`
	Conditions []Condition `yaml:"conditions"`
}

// Condition compares one snapshot dimension against a value.
type Condition struct {
	Field string  `yaml:"field"`
	Op    string  `yaml:"op"` // eq, ne, lt, lte, gt, gte
	Value float64 `yaml:"value"`
}

// GoalGradient holds the score weights and review-band thresholds.
type GoalGradient struct {
	NearFinalityThreshold float64            `yaml:"near_finality_threshold"`
	AutoFinalityThreshold float64            `yaml:"auto_finality_threshold"`
	Weights               map[string]float64 `yaml:"weights"`
}

// #endregion finality

// #region load
// Load reads and validates the governance document at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read governance config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse governance config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks mode, backend, and threshold sanity.
func (c *Config) Validate() error {
	if c.Mode == "" {
		c.Mode = message.ModeYOLO
	}
	if !message.ValidMode(c.Mode) {
		return fmt.Errorf("invalid governance mode %q", c.Mode)
	}
	switch c.Policy.Backend {
	case "", "rules", "opa":
	default:
		return fmt.Errorf("invalid policy backend %q", c.Policy.Backend)
	}
	gg := c.Finality.GoalGradient
	if gg.NearFinalityThreshold < 0 || gg.NearFinalityThreshold > 1 {
		return fmt.Errorf("near_finality_threshold %.3f out of [0,1]", gg.NearFinalityThreshold)
	}
	if gg.AutoFinalityThreshold < 0 || gg.AutoFinalityThreshold > 1 {
		return fmt.Errorf("auto_finality_threshold %.3f out of [0,1]", gg.AutoFinalityThreshold)
	}
	if gg.AutoFinalityThreshold != 0 && gg.NearFinalityThreshold > gg.AutoFinalityThreshold {
		return fmt.Errorf("near_finality_threshold %.3f above auto_finality_threshold %.3f",
			gg.NearFinalityThreshold, gg.AutoFinalityThreshold)
	}
	for _, st := range c.Finality.States {
		if st.Mode != "all" && st.Mode != "any" {
			return fmt.Errorf("finality state %q: invalid mode %q", st.Name, st.Mode)
		}
	}
	return nil
}

// #endregion load
