package finality

// #region weights
// Weights are the goal-gradient dimension weights. An omitted dimension
// contributes nothing to the score.
type Weights struct {
	Confidence     float64
	Contradictions float64
	Goals          float64
	Risk           float64
}

// DefaultWeights sum to 1.
func DefaultWeights() Weights {
	return Weights{
		Confidence:     0.3,
		Contradictions: 0.2,
		Goals:          0.3,
		Risk:           0.2,
	}
}

// WeightsFromConfig maps the goal_gradient weights block onto Weights.
// A nil map yields the defaults; a present map with missing keys zeroes
// the missing dimensions.
func WeightsFromConfig(m map[string]float64) Weights {
	if m == nil {
		return DefaultWeights()
	}
	return Weights{
		Confidence:     m["confidence"],
		Contradictions: m["contradictions"],
		Goals:          m["goals"],
		Risk:           m["risk"],
	}
}

// #endregion weights

// #region score
// ComputeGoalScore is the weighted linear combination of the four normalized
// dimensions: claim confidence, contradiction-resolution ratio, goal
// completion, and inverse risk. Result is clamped to [0, 1].
func ComputeGoalScore(s Snapshot, w Weights) float64 {
	score, _ := ScoreBreakdown(s, w)
	return score
}

// ScoreBreakdown returns the goal score with its per-dimension contributions.
func ScoreBreakdown(s Snapshot, w Weights) (float64, []Dimension) {
	confidence := clamp01(s.ClaimsActiveMinConfidence)

	resolution := 1.0
	if s.ContradictionsTotalCount > 0 {
		resolution = 1.0 - float64(s.ContradictionsUnresolvedCount)/float64(s.ContradictionsTotalCount)
	}
	resolution = clamp01(resolution)

	goals := clamp01(s.GoalsCompletionRatio)
	inverseRisk := clamp01(1.0 - s.ScopeRiskScore)

	dims := []Dimension{
		{Name: "claim_confidence", Value: confidence, Weight: w.Confidence, Contribution: w.Confidence * confidence},
		{Name: "contradiction_resolution", Value: resolution, Weight: w.Contradictions, Contribution: w.Contradictions * resolution},
		{Name: "goal_completion", Value: goals, Weight: w.Goals, Contribution: w.Goals * goals},
		{Name: "inverse_risk", Value: inverseRisk, Weight: w.Risk, Contribution: w.Risk * inverseRisk},
	}

	var score float64
	for _, d := range dims {
		score += d.Contribution
	}
	return clamp01(score), dims
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion score
