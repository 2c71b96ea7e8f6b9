package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/metshield/metshield/internal/domain"
	"github.com/metshield/metshield/internal/feed"
)

// Feed handles GET /api/v1/feed, a Server-Sent Events stream of scored
// claims. New connections are backfilled from the ring buffer oldest
// first, then receive live events. Alert flags are deduplicated per
// connection so a browser tab never sees the same claim alert twice in
// a row.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	if h.broadcaster == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "live feed not available",
		})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "streaming not supported",
		})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Long-lived stream; the server-wide write deadline must not apply.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		slog.Warn("failed to clear write deadline for feed", "error", err)
	}

	sub := h.broadcaster.Subscribe()
	defer sub.Unsubscribe()

	dedup := feed.NewDeduplicator()

	slog.Info("feed subscriber connected",
		"subscriber_id", sub.ID(),
		"remote", r.RemoteAddr,
	)

	// Backfill oldest first so the client replays history in order.
	if h.buffer != nil {
		snapshot := h.buffer.Snapshot()
		for i := len(snapshot) - 1; i >= 0; i-- {
			if err := writeEvent(w, snapshot[i], dedup); err != nil {
				return
			}
		}
		flusher.Flush()
	}

	heartbeat := time.Duration(h.feedCfg.HeartbeatInterval) * time.Second
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			slog.Info("feed subscriber disconnected",
				"subscriber_id", sub.ID(),
				"dropped", sub.Dropped(),
			)
			return

		case sc, open := <-sub.C():
			if !open {
				return
			}
			if err := writeEvent(w, sc, dedup); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, sc *domain.ScoredClaim, dedup *feed.Deduplicator) error {
	event := sc.ToFeedEvent()
	event.Alert = dedup.ShouldAlert(sc)

	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal feed event", "claim_id", event.ClaimID, "error", err)
		return nil
	}

	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
