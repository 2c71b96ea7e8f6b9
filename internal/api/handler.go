package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/metshield/metshield/internal/domain"
	"github.com/metshield/metshield/internal/feed"
	"github.com/metshield/metshield/internal/rules"
	"github.com/metshield/metshield/internal/velocity"
)

// predictionTTL bounds how long an identical claim payload is served
// from the prediction cache before being re-scored.
const predictionTTL = time.Hour

// Handler holds dependencies for API handlers.
type Handler struct {
	repo        domain.Repository
	cache       domain.Cache
	bus         domain.EventBus
	engine      *rules.Engine
	classifier  *rules.Classifier
	tracker     *velocity.Tracker
	dispatcher  *feed.Dispatcher
	buffer      *feed.Buffer
	broadcaster *feed.Broadcaster
	feedCfg     domain.FeedConfig
	version     string

	// asyncScoring routes submissions through the event bus so the
	// scoring worker picks them up instead of the request goroutine.
	asyncScoring bool
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, classifier *rules.Classifier, tracker *velocity.Tracker, dispatcher *feed.Dispatcher, buffer *feed.Buffer, broadcaster *feed.Broadcaster, feedCfg domain.FeedConfig, version string, asyncScoring bool) *Handler {
	return &Handler{
		repo:         repo,
		cache:        cache,
		bus:          bus,
		engine:       engine,
		classifier:   classifier,
		tracker:      tracker,
		dispatcher:   dispatcher,
		buffer:       buffer,
		broadcaster:  broadcaster,
		feedCfg:      feedCfg,
		version:      version,
		asyncScoring: asyncScoring,
	}
}

// ScoreResponse is the response for POST /api/v1/claims.
type ScoreResponse struct {
	ClaimID     string          `json:"claim_id"`
	RawScore    int             `json:"raw_score"`
	Probability float64         `json:"fraud_probability"`
	Tier        domain.RiskTier `json:"risk_level"`
	Indicators  []string        `json:"indicators"`
	Alert       bool            `json:"alert"`
	FromCache   bool            `json:"from_cache"`
	Metadata    struct {
		TraceID string `json:"trace_id"`
		TotalMs int64  `json:"total_ms"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// SubmitClaim handles POST /api/v1/claims.
// Community tier scores inline; Pro with async scoring enqueues the claim
// on the bus and returns 202.
func (h *Handler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	traceID := GetTraceID(ctx)

	var req domain.ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if err := req.Validate(); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": verr.Error(),
				"field": verr.Field,
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	claim := req.ToClaim()

	if h.asyncScoring && h.bus != nil {
		payload, err := json.Marshal(claim)
		if err == nil {
			err = h.bus.Publish(ctx, domain.TopicClaimIngested, payload)
		}
		if err != nil {
			slog.Error("failed to enqueue claim", "claim_id", claim.ID, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "failed to enqueue claim for scoring",
			})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"claim_id": claim.ID,
			"status":   "queued",
		})
		return
	}

	// Identical payloads within the TTL are served from the prediction
	// cache without re-running the engine.
	fingerprint := claim.Fingerprint()
	if h.cache != nil {
		if pred, err := h.cache.GetPrediction(ctx, fingerprint); err == nil && pred != nil {
			h.bumpCounter(ctx, "cache_hits")
			sc := &domain.ScoredClaim{
				Claim:       claim,
				RawScore:    pred.RawScore,
				Probability: pred.Probability,
				Tier:        pred.Tier,
				Indicators:  pred.Indicators,
				ScoredAt:    time.Now().UTC(),
			}
			if h.tracker != nil {
				if _, err := h.tracker.Observe(ctx, claim.DoctorID); err != nil {
					slog.Warn("velocity update failed", "doctor_id", claim.DoctorID, "error", err)
				}
			}
			if h.repo != nil {
				if err := h.repo.SaveClaim(ctx, claim); err != nil {
					slog.Error("failed to save claim", "claim_id", claim.ID, "error", err)
				}
			}
			if h.dispatcher != nil {
				h.dispatcher.Dispatch(ctx, sc)
			}
			h.writeScore(w, sc, traceID, start, true)
			return
		}
	}

	// Velocity is observed before the claim row lands so the repository
	// fallback never counts the claim against itself.
	providerClaims := 0
	if h.tracker != nil {
		count, err := h.tracker.Observe(ctx, claim.DoctorID)
		if err != nil {
			slog.Warn("velocity lookup failed", "doctor_id", claim.DoctorID, "error", err)
		} else {
			providerClaims = count
		}
	}

	if h.repo != nil {
		if err := h.repo.SaveClaim(ctx, claim); err != nil {
			slog.Error("failed to save claim", "claim_id", claim.ID, "error", err)
		}
	}

	score, indicators, err := h.engine.Evaluate(ctx, claim, providerClaims)
	if err != nil {
		slog.Error("claim evaluation failed", "claim_id", claim.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "claim evaluation failed",
		})
		return
	}

	sc := h.classifier.Classify(claim, score, indicators)

	if h.dispatcher != nil {
		h.dispatcher.Dispatch(ctx, sc)
	}

	if h.cache != nil {
		pred := &domain.PredictionCache{
			RawScore:    sc.RawScore,
			Probability: sc.Probability,
			Tier:        sc.Tier,
			Indicators:  sc.Indicators,
		}
		if err := h.cache.SetPrediction(ctx, fingerprint, pred, predictionTTL); err != nil {
			slog.Warn("failed to cache prediction", "claim_id", claim.ID, "error", err)
		}
	}

	h.writeScore(w, sc, traceID, start, false)
}

func (h *Handler) writeScore(w http.ResponseWriter, sc *domain.ScoredClaim, traceID string, start time.Time, fromCache bool) {
	resp := ScoreResponse{
		ClaimID:     sc.Claim.ID,
		RawScore:    sc.RawScore,
		Probability: sc.Probability,
		Tier:        sc.Tier,
		Indicators:  sc.Indicators,
		Alert:       sc.Tier.Alertable(),
		FromCache:   fromCache,
	}
	if resp.Indicators == nil {
		resp.Indicators = []string{}
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// bumpCounter increments a daily stat counter. Best effort.
func (h *Handler) bumpCounter(ctx context.Context, name string) {
	if h.cache == nil {
		return
	}
	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	if _, err := h.cache.IncrementCounter(ctx, feed.CounterKey(name), midnight.Sub(now)); err != nil {
		slog.Warn("failed to bump counter", "name", name, "error", err)
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetClaim retrieves a claim and, when present, its score.
func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claimID := chi.URLParam(r, "id")

	if claimID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "claim id is required",
		})
		return
	}
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	claim, err := h.repo.GetClaim(ctx, claimID)
	if err != nil {
		slog.Error("failed to get claim", "id", claimID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "claim not found",
		})
		return
	}

	resp := map[string]interface{}{"claim": claim}
	if score, err := h.repo.GetScore(ctx, claimID); err == nil {
		resp["score"] = score
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListClaims returns recent claims, newest first.
func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	limit := parseLimit(r, 50)
	claims, err := h.repo.ListClaims(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list claims", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list claims",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"claims": claims,
		"count":  len(claims),
	})
}

// ListAlerts returns recent fraud alerts, newest first.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	limit := parseLimit(r, 50)
	alerts, err := h.repo.RecentAlerts(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list alerts", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list alerts",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// Stats returns daily scoring counters and engine state.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats := map[string]interface{}{
		"version":           h.version,
		"indicators_loaded": h.engine.IndicatorCount(),
	}
	if h.buffer != nil {
		stats["feed_buffered"] = h.buffer.Len()
	}
	if h.broadcaster != nil {
		stats["feed_subscribers"] = h.broadcaster.SubscriberCount()
	}

	counters := map[string]int64{}
	for _, name := range []string{"predictions_made", "high_risk_claims", "cache_hits"} {
		if h.cache == nil {
			counters[name] = 0
			continue
		}
		v, err := h.cache.GetCounter(ctx, feed.CounterKey(name))
		if err != nil {
			slog.Warn("failed to read counter", "name", name, "error", err)
			v = 0
		}
		counters[name] = v
	}
	stats["today"] = counters

	writeJSON(w, http.StatusOK, stats)
}

// ListIndicators returns the indicator set currently loaded in the engine.
func (h *Handler) ListIndicators(w http.ResponseWriter, r *http.Request) {
	indicators := h.engine.LoadedIndicators()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"indicators": indicators,
		"count":      len(indicators),
	})
}

// ReplaceIndicators hot-swaps the full indicator set. The whole set is
// compiled before the swap, so a bad expression leaves the engine untouched.
func (h *Handler) ReplaceIndicators(w http.ResponseWriter, r *http.Request) {
	var configs []domain.IndicatorConfig
	if err := json.NewDecoder(r.Body).Decode(&configs); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(configs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "at least one indicator is required",
		})
		return
	}

	if err := h.engine.LoadIndicators(configs); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid indicator set: " + err.Error(),
		})
		return
	}

	slog.Info("indicators replaced", "count", len(configs))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "indicators reloaded successfully",
		"count":   h.engine.IndicatorCount(),
	})
}

func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > 500 {
		return 500
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
