// Package feed provides the real-time distribution layer: a bounded
// replay buffer, a fan-out broadcaster, alert deduplication, and a
// reconnecting subscriber for downstream consumers.
package feed

import (
	"sync"

	"github.com/metshield/metshield/internal/domain"
)

// Buffer is a fixed-capacity ring of the most recent scored claims.
// Late-joining subscribers read a snapshot to backfill before switching
// to live delivery. Once full, each append evicts the oldest entry.
type Buffer struct {
	mu    sync.RWMutex
	ring  []*domain.ScoredClaim
	head  int // next write position
	count int
}

// NewBuffer creates a buffer with the given capacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 50
	}
	return &Buffer{
		ring: make([]*domain.ScoredClaim, capacity),
	}
}

// Append records a scored claim, evicting the oldest when full.
func (b *Buffer) Append(sc *domain.ScoredClaim) {
	if sc == nil {
		return
	}
	b.mu.Lock()
	b.ring[b.head] = sc
	b.head = (b.head + 1) % len(b.ring)
	if b.count < len(b.ring) {
		b.count++
	}
	b.mu.Unlock()
}

// Snapshot returns the buffered claims, newest first. The returned slice
// is a copy; callers may retain it without holding up appends.
func (b *Buffer) Snapshot() []*domain.ScoredClaim {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*domain.ScoredClaim, 0, b.count)
	for i := 1; i <= b.count; i++ {
		idx := (b.head - i + len(b.ring)) % len(b.ring)
		out = append(out, b.ring[idx])
	}
	return out
}

// Len returns the number of buffered claims.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int {
	return len(b.ring)
}
