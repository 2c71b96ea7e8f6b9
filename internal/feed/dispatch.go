package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/metshield/metshield/internal/domain"
)

// Dispatcher routes a freshly scored claim to every downstream consumer:
// the replay buffer, the live broadcaster, persistence, the event bus,
// and the daily stats counters. A failure in one leg is logged and does
// not stop the others; the feed keeps flowing even if storage is down.
type Dispatcher struct {
	buffer      *Buffer
	broadcaster *Broadcaster
	repo        domain.Repository
	bus         domain.EventBus
	cache       domain.Cache
}

// NewDispatcher wires the distribution legs together. Any leg may be
// nil; it is skipped.
func NewDispatcher(buffer *Buffer, broadcaster *Broadcaster, repo domain.Repository, bus domain.EventBus, cache domain.Cache) *Dispatcher {
	return &Dispatcher{
		buffer:      buffer,
		broadcaster: broadcaster,
		repo:        repo,
		bus:         bus,
		cache:       cache,
	}
}

// Dispatch distributes one scored claim.
func (d *Dispatcher) Dispatch(ctx context.Context, sc *domain.ScoredClaim) {
	if sc == nil || sc.Claim == nil {
		return
	}

	if d.buffer != nil {
		d.buffer.Append(sc)
	}
	if d.broadcaster != nil {
		d.broadcaster.Publish(sc)
	}

	if d.repo != nil {
		if err := d.repo.SaveScore(ctx, sc); err != nil {
			slog.Error("failed to save score", "claim_id", sc.Claim.ID, "error", err)
		}
	}

	if d.bus != nil {
		payload, _ := json.Marshal(sc.ToFeedEvent())
		if err := d.bus.Publish(ctx, domain.TopicClaimScored, payload); err != nil {
			slog.Error("failed to publish scored claim", "claim_id", sc.Claim.ID, "error", err)
		}
	}

	d.bumpCounters(ctx, sc)

	if sc.Tier.Alertable() {
		d.raiseAlert(ctx, sc)
	}
}

// raiseAlert persists an alert record and announces it on the bus.
func (d *Dispatcher) raiseAlert(ctx context.Context, sc *domain.ScoredClaim) {
	alert := &domain.Alert{
		ID:          uuid.New().String(),
		ClaimID:     sc.Claim.ID,
		PatientID:   sc.Claim.PatientID,
		DoctorID:    sc.Claim.DoctorID,
		Amount:      sc.Claim.Amount,
		Tier:        sc.Tier,
		Probability: sc.Probability,
		Status:      domain.AlertStatusPending,
		CreatedAt:   time.Now().UTC(),
	}

	if d.repo != nil {
		if err := d.repo.SaveAlert(ctx, alert); err != nil {
			slog.Error("failed to save alert", "claim_id", sc.Claim.ID, "error", err)
		}
	}

	if d.bus != nil {
		payload, _ := json.Marshal(alert)
		if err := d.bus.Publish(ctx, domain.TopicAlert, payload); err != nil {
			slog.Error("failed to publish alert", "claim_id", sc.Claim.ID, "error", err)
		}
	}

	slog.Info("fraud alert raised",
		"claim_id", sc.Claim.ID,
		"doctor_id", sc.Claim.DoctorID,
		"tier", sc.Tier,
		"probability", sc.Probability,
	)
}

// bumpCounters maintains the daily stats counters in cache.
func (d *Dispatcher) bumpCounters(ctx context.Context, sc *domain.ScoredClaim) {
	if d.cache == nil {
		return
	}

	window := untilMidnightUTC()
	if _, err := d.cache.IncrementCounter(ctx, CounterKey("predictions_made"), window); err != nil {
		slog.Debug("counter increment failed", "error", err)
		return
	}
	if sc.Tier.Alertable() {
		if _, err := d.cache.IncrementCounter(ctx, CounterKey("high_risk_claims"), window); err != nil {
			slog.Debug("counter increment failed", "error", err)
		}
	}
}

// CounterKey builds the cache key for a daily stats counter.
func CounterKey(name string) string {
	return "stats:" + time.Now().UTC().Format("2006-01-02") + ":" + name
}

// untilMidnightUTC returns the TTL that makes a daily counter expire at
// the next UTC midnight.
func untilMidnightUTC() time.Duration {
	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	return midnight.Sub(now)
}
