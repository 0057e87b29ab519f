package audit

import (
	"sync"

	"github.com/quorum-ai/quorum/core"
)

// InMemorySink is a volatile core.AuditSink storing events in a process
// local slice. It is safe for concurrent access and best suited for tests
// or ephemeral demo setups.
type InMemorySink struct {
	mu     sync.Mutex
	events []core.AuditEvent
}

// NewInMemorySink constructs an empty in-memory sink.
func NewInMemorySink() *InMemorySink {
	return &InMemorySink{}
}

// Emit appends the event. It never fails.
func (s *InMemorySink) Emit(ev core.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// Events returns a copy of everything received, in delivery order.
func (s *InMemorySink) Events() []core.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.AuditEvent, len(s.events))
	copy(out, s.events)
	return out
}

// ByTarget returns received events for one target, in delivery order.
func (s *InMemorySink) ByTarget(targetID string) []core.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.AuditEvent
	for _, ev := range s.events {
		if ev.TargetID == targetID {
			out = append(out, ev)
		}
	}
	return out
}
