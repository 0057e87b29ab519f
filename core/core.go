package core

import (
	"context"
	"fmt"
)

// ErrRecordNotFound is returned by Storage.Fetch when no record exists for
// the given key.
var ErrRecordNotFound = fmt.Errorf("record not found")

// Gateway is the execution gateway the core uses to invoke any participant
// that is not the human operator. Implementations sandbox and execute the
// agent; the core only sees this contract. The context carries the round
// deadline and is cancelled when the turn is cancelled, so implementations
// must honor ctx.Done().
type Gateway interface {
	Invoke(ctx context.Context, participantID, prompt string) (*InvokeResult, error)
}

// Storage is the durable, versioned per-entity store ("vault") behind the
// memory relay. Records are opaque bytes; the relay owns their encoding.
type Storage interface {
	Store(key string, record []byte) error
	Fetch(key string) ([]byte, error)
	Purge(key string) error
}

// AuditSink receives every audit event. Delivery failures are transient from
// the relay's perspective and trigger retry with backoff; a sink must treat
// redelivery of the same event ID as idempotent.
type AuditSink interface {
	Emit(event AuditEvent) error
}

// Registry exposes read access to known participants. It is read-mostly and
// safe for concurrent use from any number of turn coordinators.
type Registry interface {
	Get(id string) (Participant, bool)
	List() []Participant
}
