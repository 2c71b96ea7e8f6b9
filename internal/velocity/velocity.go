// Package velocity tracks per-provider daily claim volume.
package velocity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/metshield/metshield/internal/domain"
)

// Tracker counts how many claims each doctor submitted today (UTC day).
// Counts live in the cache as expiring counters; when the cache is
// unavailable the repository is queried directly.
type Tracker struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewTracker creates a velocity tracker.
func NewTracker(repo domain.Repository, cache domain.Cache) *Tracker {
	return &Tracker{
		repo:  repo,
		cache: cache,
	}
}

// Observe records one claim submission for the doctor and returns the
// running count for the current UTC day, including this one.
func (t *Tracker) Observe(ctx context.Context, doctorID string) (int, error) {
	if doctorID == "" {
		return 0, fmt.Errorf("doctorID is required")
	}

	if t.cache != nil {
		count, err := t.cache.IncrementCounter(ctx, dailyKey(doctorID), untilMidnightUTC())
		if err == nil {
			return int(count), nil
		}
		slog.Warn("velocity counter increment failed, falling back to repository",
			"doctor_id", doctorID,
			"error", err,
		)
	}

	count, err := t.countFromRepo(ctx, doctorID)
	if err != nil {
		return 0, err
	}
	// The claim being observed is usually not persisted yet.
	return count + 1, nil
}

// Count returns the doctor's claim count for the current UTC day without
// recording anything.
func (t *Tracker) Count(ctx context.Context, doctorID string) (int, error) {
	if doctorID == "" {
		return 0, fmt.Errorf("doctorID is required")
	}

	if t.cache != nil {
		count, err := t.cache.GetCounter(ctx, dailyKey(doctorID))
		if err == nil {
			return int(count), nil
		}
		slog.Warn("velocity counter read failed, falling back to repository",
			"doctor_id", doctorID,
			"error", err,
		)
	}

	return t.countFromRepo(ctx, doctorID)
}

func (t *Tracker) countFromRepo(ctx context.Context, doctorID string) (int, error) {
	if t.repo == nil {
		return 0, fmt.Errorf("no data source available")
	}

	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	count, err := t.repo.CountProviderClaimsSince(ctx, doctorID, midnight)
	if err != nil {
		return 0, fmt.Errorf("failed to count provider claims: %w", err)
	}
	return count, nil
}

func dailyKey(doctorID string) string {
	return "velocity:" + time.Now().UTC().Format("2006-01-02") + ":" + doctorID
}

func untilMidnightUTC() time.Duration {
	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	return midnight.Sub(now)
}
