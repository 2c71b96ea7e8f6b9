// Package worker provides async claim scoring for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/metshield/metshield/internal/domain"
	"github.com/metshield/metshield/internal/feed"
	"github.com/metshield/metshield/internal/rules"
	"github.com/metshield/metshield/internal/velocity"
)

// Worker scores claims asynchronously from the EventBus.
// Claims published on the ingested topic are evaluated, classified, and
// handed to the dispatcher exactly as the synchronous API path does it.
type Worker struct {
	bus        domain.EventBus
	repo       domain.Repository
	engine     *rules.Engine
	classifier *rules.Classifier
	tracker    *velocity.Tracker
	dispatcher *feed.Dispatcher

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async scoring worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, engine *rules.Engine, classifier *rules.Classifier, tracker *velocity.Tracker, dispatcher *feed.Dispatcher) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:        bus,
		repo:       repo,
		engine:     engine,
		classifier: classifier,
		tracker:    tracker,
		dispatcher: dispatcher,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins consuming ingested claims.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicClaimIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("scoring worker started", "topic", domain.TopicClaimIngested)
	return nil
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	var claim domain.Claim
	if err := json.Unmarshal(msg.Payload, &claim); err != nil {
		slog.Error("failed to parse claim message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	return w.processClaim(ctx, &claim)
}

// processClaim runs one claim through the scoring pipeline.
func (w *Worker) processClaim(ctx context.Context, claim *domain.Claim) error {
	start := time.Now()

	if claim.ID == "" || claim.DoctorID == "" {
		slog.Warn("skipping malformed claim from bus",
			"claim_id", claim.ID,
			"doctor_id", claim.DoctorID,
		)
		return nil
	}

	providerClaims := 0
	if w.tracker != nil {
		count, err := w.tracker.Observe(ctx, claim.DoctorID)
		if err != nil {
			slog.Warn("velocity lookup failed",
				"doctor_id", claim.DoctorID,
				"error", err,
			)
		} else {
			providerClaims = count
		}
	}

	if w.repo != nil {
		if err := w.repo.SaveClaim(ctx, claim); err != nil {
			slog.Error("failed to save claim",
				"claim_id", claim.ID,
				"error", err,
			)
		}
	}

	score, indicators, err := w.engine.Evaluate(ctx, claim, providerClaims)
	if err != nil {
		slog.Error("claim evaluation failed",
			"claim_id", claim.ID,
			"error", err,
		)
		return err
	}

	sc := w.classifier.Classify(claim, score, indicators)
	w.dispatcher.Dispatch(ctx, sc)

	slog.Info("claim scored",
		"claim_id", claim.ID,
		"doctor_id", claim.DoctorID,
		"raw_score", sc.RawScore,
		"tier", sc.Tier,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("scoring worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
