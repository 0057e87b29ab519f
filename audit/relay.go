// Package audit wraps every state change in an audit event and forwards it
// to the external security/audit sink.
//
// Emission is fire-and-forget for the mutating caller: Emit only enqueues.
// A single consumer goroutine delivers events in emission order (which
// preserves per-target order), retries transient failures with exponential
// backoff, and parks events in a local overflow log once retries are
// exhausted. Nothing is ever dropped silently.
package audit

import (
	"sync"
	"time"

	"github.com/quorum-ai/quorum/core"
	"github.com/quorum-ai/quorum/logging"
)

// Options configures a Relay.
type Options struct {
	// MaxRetries is the number of redelivery attempts after the first
	// failure before an event moves to the overflow log.
	MaxRetries int
	// BaseBackoff is the first retry delay; it doubles per attempt.
	BaseBackoff time.Duration
	// MaxBackoff caps the retry delay.
	MaxBackoff time.Duration
	// Logger receives delivery diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Relay is the buffering, retrying forwarder in front of a core.AuditSink.
// One consumer goroutine drains an unbounded FIFO queue so Emit never blocks
// the mutation that produced the event.
type Relay struct {
	sink        core.AuditSink
	logger      logging.Logger
	maxRetries  int
	baseBackoff time.Duration
	maxBackoff  time.Duration

	mu      sync.Mutex
	queue   []core.AuditEvent
	wake    chan struct{}
	done    chan struct{}
	stopped bool
	wg      sync.WaitGroup

	overflowMu sync.Mutex
	overflow   []core.AuditEvent
}

// NewRelay constructs a Relay and starts its consumer goroutine. Callers
// must Close the relay to flush pending events.
func NewRelay(sink core.AuditSink, optFns ...func(o *Options)) *Relay {
	opts := Options{
		MaxRetries:  5,
		BaseBackoff: 50 * time.Millisecond,
		MaxBackoff:  2 * time.Second,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	r := &Relay{
		sink:        sink,
		logger:      opts.Logger,
		maxRetries:  opts.MaxRetries,
		baseBackoff: opts.BaseBackoff,
		maxBackoff:  opts.MaxBackoff,
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Emit enqueues an event for delivery. It never blocks and never fails from
// the caller's perspective; delivery problems are handled by the consumer.
// Events emitted after Close go straight to the overflow log.
func (r *Relay) Emit(ev core.AuditEvent) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		r.toOverflow(ev, nil)
		return
	}
	r.queue = append(r.queue, ev)
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of events awaiting delivery.
func (r *Relay) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Overflow returns a copy of the events that exhausted their retries. They
// remain retrievable for out-of-band replay.
func (r *Relay) Overflow() []core.AuditEvent {
	r.overflowMu.Lock()
	defer r.overflowMu.Unlock()
	out := make([]core.AuditEvent, len(r.overflow))
	copy(out, r.overflow)
	return out
}

// Close stops intake, flushes the queue (retries still apply, without
// backoff sleeps) and waits for the consumer to exit. Safe to call twice.
func (r *Relay) Close() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		r.wg.Wait()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.done)
	r.wg.Wait()
}

func (r *Relay) run() {
	defer r.wg.Done()
	for {
		ev, ok := r.pop()
		if !ok {
			select {
			case <-r.wake:
				continue
			case <-r.done:
				r.drain()
				return
			}
		}
		r.deliver(ev)
	}
}

func (r *Relay) pop() (core.AuditEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return core.AuditEvent{}, false
	}
	ev := r.queue[0]
	r.queue = r.queue[1:]
	return ev, true
}

// drain performs final delivery attempts for whatever is still queued at
// shutdown. Backoff sleeps are skipped so Close stays bounded.
func (r *Relay) drain() {
	for {
		ev, ok := r.pop()
		if !ok {
			return
		}
		if err := r.sink.Emit(ev); err != nil {
			r.toOverflow(ev, err)
		}
	}
}

func (r *Relay) deliver(ev core.AuditEvent) {
	var err error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			if !r.sleep(r.backoff(attempt)) {
				// Shutting down: one last immediate attempt below.
				if err = r.sink.Emit(ev); err != nil {
					r.toOverflow(ev, err)
				}
				return
			}
		}
		if err = r.sink.Emit(ev); err == nil {
			if attempt > 0 {
				r.logger.Debug("audit event delivered after retry event_id=%s target_id=%s attempts=%d", ev.ID, ev.TargetID, attempt+1)
			}
			return
		}
		r.logger.Warn("audit delivery failed event_id=%s target_id=%s attempt=%d err=%v", ev.ID, ev.TargetID, attempt+1, err)
	}
	r.toOverflow(ev, err)
}

func (r *Relay) backoff(attempt int) time.Duration {
	d := r.baseBackoff << (attempt - 1)
	if d > r.maxBackoff || d <= 0 {
		d = r.maxBackoff
	}
	return d
}

// sleep waits for d unless shutdown begins first; reports whether the full
// wait elapsed.
func (r *Relay) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-r.done:
		return false
	}
}

// toOverflow records an undeliverable event in the local overflow log. The
// event stays retrievable for replay, never dropped.
func (r *Relay) toOverflow(ev core.AuditEvent, cause error) {
	r.overflowMu.Lock()
	r.overflow = append(r.overflow, ev)
	r.overflowMu.Unlock()
	r.logger.Error("audit sink unreachable, event moved to overflow log event_id=%s target_id=%s err=%v", ev.ID, ev.TargetID, cause)
}
