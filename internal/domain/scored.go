package domain

import (
	"time"
)

// RiskTier is the discrete severity bucket assigned to a scored claim.
type RiskTier string

const (
	TierMinimal  RiskTier = "MINIMAL"
	TierLow      RiskTier = "LOW"
	TierMedium   RiskTier = "MEDIUM"
	TierHigh     RiskTier = "HIGH"
	TierCritical RiskTier = "CRITICAL"
)

// tierRank orders tiers by severity. Unknown tiers rank below MINIMAL.
var tierRank = map[RiskTier]int{
	TierMinimal:  1,
	TierLow:      2,
	TierMedium:   3,
	TierHigh:     4,
	TierCritical: 5,
}

// Severity returns the numeric rank of the tier (higher = more severe).
func (t RiskTier) Severity() int {
	return tierRank[t]
}

// Alertable reports whether claims at this tier warrant an operator alert.
func (t RiskTier) Alertable() bool {
	return t == TierHigh || t == TierCritical
}

// ScoredClaim is the immutable result of scoring one claim.
// It is the unit of distribution; downstream consumers only read it.
type ScoredClaim struct {
	Claim *Claim `json:"claim"`

	// RawScore is the sum of the weights of all fired indicators.
	RawScore int `json:"rawScore"`

	// Probability is the fraud probability in [0,1] derived from RawScore.
	Probability float64 `json:"fraudProbability"`

	Tier RiskTier `json:"riskTier"`

	// Indicators lists the names of fired indicators in configuration order.
	Indicators []string `json:"indicators"`

	ScoredAt time.Time `json:"scoredAt"`
}

// FeedEvent is the wire shape delivered to live-feed subscribers.
type FeedEvent struct {
	ClaimID     string    `json:"claim_id"`
	Amount      float64   `json:"claim_amount"`
	Timestamp   time.Time `json:"timestamp"`
	Tier        RiskTier  `json:"risk_level"`
	Probability float64   `json:"fraud_probability"`
	Indicators  []string  `json:"indicators"`

	// Alert is set per subscriber session by the deduplicator.
	Alert bool `json:"alert,omitempty"`
}

// ToFeedEvent projects the scored claim onto the feed wire shape.
func (s *ScoredClaim) ToFeedEvent() *FeedEvent {
	return &FeedEvent{
		ClaimID:     s.Claim.ID,
		Amount:      s.Claim.Amount,
		Timestamp:   s.Claim.Timestamp,
		Tier:        s.Tier,
		Probability: s.Probability,
		Indicators:  s.Indicators,
	}
}

// Alert records one surfaced high-severity claim for review.
type Alert struct {
	ID          string    `json:"alertId"`
	ClaimID     string    `json:"claimId"`
	PatientID   string    `json:"patientId"`
	DoctorID    string    `json:"doctorId"`
	Amount      float64   `json:"claimAmount"`
	Tier        RiskTier  `json:"riskTier"`
	Probability float64   `json:"fraudProbability"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Alert workflow statuses.
const (
	AlertStatusPending  = "pending_review"
	AlertStatusReviewed = "reviewed"
)
