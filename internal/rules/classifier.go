package rules

import (
	"math"
	"time"

	"github.com/metshield/metshield/internal/domain"
)

// Classifier maps raw indicator scores to fraud probabilities and risk tiers.
// The probability curve is a logistic function of the raw score, so it is
// strictly increasing and bounded to (0, 1).
type Classifier struct {
	midpoint   float64
	steepness  float64
	thresholds []domain.TierThreshold
}

// NewClassifier builds a classifier from scoring configuration.
// Thresholds must be ordered most severe first with strictly descending
// lower bounds; Config.Validate enforces this at startup.
func NewClassifier(cfg domain.ScoringConfig) *Classifier {
	thresholds := make([]domain.TierThreshold, len(cfg.Thresholds))
	copy(thresholds, cfg.Thresholds)
	return &Classifier{
		midpoint:   cfg.ProbabilityMidpoint,
		steepness:  cfg.ProbabilitySteepness,
		thresholds: thresholds,
	}
}

// Probability converts a raw score to a fraud probability in (0, 1).
func (c *Classifier) Probability(rawScore int) float64 {
	return 1.0 / (1.0 + math.Exp(-(float64(rawScore)-c.midpoint)/c.steepness))
}

// Tier resolves the risk tier for a raw score and its probability.
// Bands are checked from most severe down; the lower bound is inclusive,
// so a probability sitting exactly on a boundary takes the severe side.
// A raw score of zero is always MINIMAL regardless of the curve's floor.
func (c *Classifier) Tier(rawScore int, probability float64) domain.RiskTier {
	if rawScore == 0 {
		return domain.TierMinimal
	}
	for _, t := range c.thresholds {
		if probability >= t.MinProbability {
			return t.Tier
		}
	}
	return domain.TierLow
}

// Classify produces an immutable scored claim from an evaluation result.
func (c *Classifier) Classify(claim *domain.Claim, rawScore int, indicators []string) *domain.ScoredClaim {
	p := c.Probability(rawScore)
	return &domain.ScoredClaim{
		Claim:       claim,
		RawScore:    rawScore,
		Probability: p,
		Tier:        c.Tier(rawScore, p),
		Indicators:  indicators,
		ScoredAt:    time.Now().UTC(),
	}
}
