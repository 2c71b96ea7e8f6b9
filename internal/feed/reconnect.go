package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/metshield/metshield/internal/domain"
)

// ConnState is the lifecycle state of a ReconnectingSubscriber.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Transport establishes a raw event stream to the feed server.
type Transport interface {
	Connect(ctx context.Context) (Stream, error)
}

// Stream yields raw event payloads until the connection drops.
type Stream interface {
	// Recv blocks for the next event payload. It returns an error when
	// the stream is broken; the subscriber then reconnects.
	Recv() ([]byte, error)
	Close() error
}

// ReconnectingSubscriber maintains a feed subscription across transport
// failures. Dropped connections are retried with exponential backoff up
// to a bounded interval; a payload that fails to parse is skipped and
// counted, never fatal. Parsed events flow out of Events() and into a
// bounded local history ring.
type ReconnectingSubscriber struct {
	transport Transport
	events    chan *domain.FeedEvent
	history   []*domain.FeedEvent
	histHead  int
	histCount int
	histMu    sync.RWMutex

	state       atomic.Int32
	parseErrors atomic.Uint64
	reconnects  atomic.Uint64

	maxInterval time.Duration

	startOnce sync.Once
	closeOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// ReconnectOptions tunes a ReconnectingSubscriber.
type ReconnectOptions struct {
	// HistorySize bounds the local event history. Default 50.
	HistorySize int

	// QueueSize bounds the Events channel. Default 64.
	QueueSize int

	// MaxBackoff caps the reconnect interval. Default 30s.
	MaxBackoff time.Duration
}

// NewReconnectingSubscriber wraps a transport in reconnect handling.
func NewReconnectingSubscriber(t Transport, opts ReconnectOptions) *ReconnectingSubscriber {
	if opts.HistorySize <= 0 {
		opts.HistorySize = 50
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	return &ReconnectingSubscriber{
		transport:   t,
		events:      make(chan *domain.FeedEvent, opts.QueueSize),
		history:     make([]*domain.FeedEvent, opts.HistorySize),
		maxInterval: opts.MaxBackoff,
		done:        make(chan struct{}),
	}
}

// Start launches the subscription loop. Repeat calls are coalesced into
// the first; there is never more than one connection attempt in flight.
func (r *ReconnectingSubscriber) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		r.cancel = cancel
		go r.run(runCtx)
	})
}

func (r *ReconnectingSubscriber) run(ctx context.Context) {
	defer close(r.done)
	defer r.state.Store(int32(StateClosed))

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = r.maxInterval
	bo.MaxElapsedTime = 0 // retry forever

	for {
		if ctx.Err() != nil {
			return
		}

		r.state.Store(int32(StateConnecting))
		stream, err := r.transport.Connect(ctx)
		if err != nil {
			terr := &domain.TransportError{Op: "connect", Err: err}
			slog.Warn("feed connect failed", "error", terr, "state", r.State().String())
			if !r.sleep(ctx, bo.NextBackOff()) {
				return
			}
			continue
		}

		r.state.Store(int32(StateConnected))
		bo.Reset()
		slog.Info("feed connected")

		r.consume(ctx, stream)
		stream.Close()

		if ctx.Err() != nil {
			return
		}
		r.state.Store(int32(StateDisconnected))
		r.reconnects.Add(1)
		if !r.sleep(ctx, bo.NextBackOff()) {
			return
		}
	}
}

// consume reads the stream until it breaks or the context ends.
func (r *ReconnectingSubscriber) consume(ctx context.Context, stream Stream) {
	for {
		payload, err := stream.Recv()
		if err != nil {
			if ctx.Err() == nil {
				terr := &domain.TransportError{Op: "recv", Err: err}
				slog.Warn("feed stream broken", "error", terr)
			}
			return
		}

		var ev domain.FeedEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			r.parseErrors.Add(1)
			slog.Debug("skipping unparseable feed event", "error", err)
			continue
		}

		r.record(&ev)

		select {
		case r.events <- &ev:
		case <-ctx.Done():
			return
		default:
			// Consumer is not keeping up; shed the oldest queued event.
			select {
			case <-r.events:
			default:
			}
			select {
			case r.events <- &ev:
			default:
			}
		}
	}
}

func (r *ReconnectingSubscriber) record(ev *domain.FeedEvent) {
	r.histMu.Lock()
	r.history[r.histHead] = ev
	r.histHead = (r.histHead + 1) % len(r.history)
	if r.histCount < len(r.history) {
		r.histCount++
	}
	r.histMu.Unlock()
}

// sleep waits for the backoff interval, returning false if ctx ended.
func (r *ReconnectingSubscriber) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Events returns the stream of parsed feed events.
func (r *ReconnectingSubscriber) Events() <-chan *domain.FeedEvent {
	return r.events
}

// History returns recently received events, newest first.
func (r *ReconnectingSubscriber) History() []*domain.FeedEvent {
	r.histMu.RLock()
	defer r.histMu.RUnlock()

	out := make([]*domain.FeedEvent, 0, r.histCount)
	for i := 1; i <= r.histCount; i++ {
		idx := (r.histHead - i + len(r.history)) % len(r.history)
		out = append(out, r.history[idx])
	}
	return out
}

// State returns the current connection state.
func (r *ReconnectingSubscriber) State() ConnState {
	return ConnState(r.state.Load())
}

// ParseErrors returns how many payloads were skipped as unparseable.
func (r *ReconnectingSubscriber) ParseErrors() uint64 {
	return r.parseErrors.Load()
}

// Reconnects returns how many times the connection was re-established.
func (r *ReconnectingSubscriber) Reconnects() uint64 {
	return r.reconnects.Load()
}

// Close stops the subscriber. It blocks until the run loop exits.
func (r *ReconnectingSubscriber) Close() error {
	r.closeOnce.Do(func() {
		if r.cancel != nil {
			r.cancel()
			<-r.done
		} else {
			r.state.Store(int32(StateClosed))
			close(r.done)
		}
	})
	return nil
}
