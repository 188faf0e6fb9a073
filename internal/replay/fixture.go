package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/swarm-governor/internal/policy"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a policy replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Cases           []FixtureCase           `json:"cases"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureCase is one recorded policy evaluation input.
type FixtureCase struct {
	Name       string   `json:"name"`
	ScopeID    string   `json:"scope_id"`
	From       string   `json:"from"`
	To         string   `json:"to"`
	DriftLevel string   `json:"drift_level"`
	DriftTypes []string `json:"drift_types"`
}

// FixtureExpectedResult captures the expected verdict per case.
type FixtureExpectedResult struct {
	Name   string `json:"name"`
	Result string `json:"result"` // "allow" | "deny"
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToContext converts a FixtureCase to a policy evaluation context.
func (fc *FixtureCase) ToContext() policy.Context {
	return policy.Context{
		ScopeID:    fc.ScopeID,
		FromState:  fc.From,
		ToState:    fc.To,
		DriftLevel: fc.DriftLevel,
		DriftTypes: fc.DriftTypes,
	}
}

// WriteFixture marshals a fixture to disk with stable indentation.
func WriteFixture(f *Fixture, path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// #endregion fixture-loader
