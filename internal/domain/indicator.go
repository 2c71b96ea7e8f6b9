package domain

// IndicatorConfig defines one named weighted fraud indicator.
// The predicate is a CEL expression over claim variables that must evaluate
// to bool. The indicator set is loaded once at startup and treated as
// read-only for the process lifetime; reconfiguration is replace-by-swap.
type IndicatorConfig struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Expression is the CEL predicate, e.g. "!biometric_verified".
	Expression string `json:"expression"`

	// Weight is added to the raw score when the predicate fires.
	Weight int `json:"weight"`

	Enabled bool `json:"enabled"`
}

// TierThreshold maps a probability lower bound to a risk tier.
// Thresholds are checked top-down from the most severe band; the lower bound
// is inclusive so boundary probabilities resolve to the more severe tier.
type TierThreshold struct {
	Tier           RiskTier `json:"tier"`
	MinProbability float64  `json:"minProbability"`
}

// ScoringConfig holds the indicator table and the score-to-tier mapping.
type ScoringConfig struct {
	Indicators []IndicatorConfig `json:"indicators"`
	Thresholds []TierThreshold   `json:"thresholds"`

	// Logistic curve parameters for raw score to probability:
	// p = 1 / (1 + exp(-(score-midpoint)/steepness)).
	ProbabilityMidpoint  float64 `json:"probabilityMidpoint"`
	ProbabilitySteepness float64 `json:"probabilitySteepness"`
}
