package feed

import (
	"sync"

	"github.com/metshield/metshield/internal/domain"
)

// Deduplicator suppresses repeat alert notifications within a single
// subscriber session. Only HIGH and CRITICAL claims alert at all, and a
// claim id never alerts twice in a row: resubmissions of the same claim
// stay quiet until a different claim has alerted in between.
//
// State is per session and starts empty, so a fresh connection may
// re-alert on a claim an earlier session already saw.
type Deduplicator struct {
	mu          sync.Mutex
	lastClaimID string
}

// NewDeduplicator creates an empty per-session deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{}
}

// ShouldAlert reports whether this scored claim warrants an alert
// notification, updating session state when it does.
func (d *Deduplicator) ShouldAlert(sc *domain.ScoredClaim) bool {
	if sc == nil || sc.Claim == nil || !sc.Tier.Alertable() {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if sc.Claim.ID == d.lastClaimID {
		return false
	}
	d.lastClaimID = sc.Claim.ID
	return true
}

// Reset clears session state.
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	d.lastClaimID = ""
	d.mu.Unlock()
}
