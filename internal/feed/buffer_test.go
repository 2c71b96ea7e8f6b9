package feed

import (
	"fmt"
	"sync"
	"testing"

	"github.com/metshield/metshield/internal/domain"
)

func scored(id string) *domain.ScoredClaim {
	return &domain.ScoredClaim{
		Claim:    &domain.Claim{ID: id},
		RawScore: 10,
		Tier:     domain.TierLow,
	}
}

func TestBufferEmptySnapshot(t *testing.T) {
	b := NewBuffer(50)
	if got := b.Snapshot(); len(got) != 0 {
		t.Errorf("expected empty snapshot, got %d entries", len(got))
	}
	if b.Len() != 0 {
		t.Errorf("expected length 0, got %d", b.Len())
	}
}

func TestBufferNewestFirst(t *testing.T) {
	b := NewBuffer(50)
	for i := 1; i <= 3; i++ {
		b.Append(scored(fmt.Sprintf("CLM-%03d", i)))
	}

	snap := b.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(snap))
	}
	want := []string{"CLM-003", "CLM-002", "CLM-001"}
	for i, w := range want {
		if snap[i].Claim.ID != w {
			t.Errorf("position %d: expected %s, got %s", i, w, snap[i].Claim.ID)
		}
	}
}

func TestBufferEviction(t *testing.T) {
	b := NewBuffer(50)
	for i := 1; i <= 75; i++ {
		b.Append(scored(fmt.Sprintf("CLM-%03d", i)))
	}

	if b.Len() != 50 {
		t.Fatalf("expected buffer pinned at 50, got %d", b.Len())
	}

	snap := b.Snapshot()
	if snap[0].Claim.ID != "CLM-075" {
		t.Errorf("newest should be CLM-075, got %s", snap[0].Claim.ID)
	}
	if snap[49].Claim.ID != "CLM-026" {
		t.Errorf("oldest should be CLM-026, got %s", snap[49].Claim.ID)
	}
}

func TestBufferSnapshotIsCopy(t *testing.T) {
	b := NewBuffer(10)
	b.Append(scored("CLM-001"))

	snap := b.Snapshot()
	b.Append(scored("CLM-002"))

	if len(snap) != 1 || snap[0].Claim.ID != "CLM-001" {
		t.Error("snapshot should not observe later appends")
	}
}

func TestBufferConcurrentAppend(t *testing.T) {
	b := NewBuffer(50)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				b.Append(scored(fmt.Sprintf("CLM-%d-%d", g, i)))
				_ = b.Snapshot()
			}
		}(g)
	}
	wg.Wait()

	if b.Len() != 50 {
		t.Errorf("expected 50 after concurrent appends, got %d", b.Len())
	}
}
