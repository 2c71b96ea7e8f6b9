package feed

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/metshield/metshield/internal/domain"
)

// Broadcaster fans scored claims out to any number of subscribers.
// Publish never blocks: each subscriber owns a bounded queue, and when a
// slow subscriber's queue is full the oldest queued event is discarded to
// make room for the newest. Drops are counted per subscriber, not raised.
type Broadcaster struct {
	mu        sync.RWMutex
	subs      map[string]*FeedSubscriber
	queueSize int
	closed    bool
}

// FeedSubscriber is one registered consumer of the live feed.
type FeedSubscriber struct {
	id      string
	ch      chan *domain.ScoredClaim
	dropped atomic.Uint64
	b       *Broadcaster
	once    sync.Once
}

// NewBroadcaster creates a broadcaster whose subscribers each get a queue
// of the given size.
func NewBroadcaster(queueSize int) *Broadcaster {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Broadcaster{
		subs:      make(map[string]*FeedSubscriber),
		queueSize: queueSize,
	}
}

// Subscribe registers a new subscriber and returns it.
func (b *Broadcaster) Subscribe() *FeedSubscriber {
	sub := &FeedSubscriber{
		id: uuid.New().String(),
		ch: make(chan *domain.ScoredClaim, b.queueSize),
		b:  b,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub
	}
	b.subs[sub.id] = sub
	b.mu.Unlock()

	return sub
}

// Publish delivers a scored claim to every subscriber without blocking.
// Each subscriber receives every published event exactly once, in publish
// order, unless its queue overflows and sheds the oldest entries.
func (b *Broadcaster) Publish(sc *domain.ScoredClaim) {
	if sc == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.subs {
		for {
			select {
			case sub.ch <- sc:
			default:
				// Queue full: shed the oldest event and retry.
				select {
				case <-sub.ch:
					sub.dropped.Add(1)
				default:
				}
				continue
			}
			break
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close unsubscribes everyone and rejects further publishes.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[string]*FeedSubscriber)
	b.closed = true
	b.mu.Unlock()

	for _, sub := range subs {
		sub.once.Do(func() { close(sub.ch) })
	}
	return nil
}

// C returns the subscriber's delivery channel. It is closed on
// Unsubscribe or when the broadcaster shuts down.
func (s *FeedSubscriber) C() <-chan *domain.ScoredClaim {
	return s.ch
}

// ID returns the subscriber's unique id.
func (s *FeedSubscriber) ID() string {
	return s.id
}

// Dropped returns how many events were shed because this subscriber
// fell behind.
func (s *FeedSubscriber) Dropped() uint64 {
	return s.dropped.Load()
}

// Unsubscribe removes the subscriber and closes its channel. Safe to
// call more than once.
func (s *FeedSubscriber) Unsubscribe() {
	s.b.mu.Lock()
	delete(s.b.subs, s.id)
	s.b.mu.Unlock()

	s.once.Do(func() { close(s.ch) })
}
