package core

import "time"

// AuditStatus is the outcome recorded on an audit event.
type AuditStatus string

const (
	// AuditSuccess records a mutation that was durably applied.
	AuditSuccess AuditStatus = "success"
	// AuditFailure records a rejected or failed operation.
	AuditFailure AuditStatus = "failure"
	// AuditOverridden marks an event the security sink overrode after the fact.
	AuditOverridden AuditStatus = "overridden"
)

// AuditEvent records exactly one mutating operation. Events are emitted after
// the mutation is applied in memory and delivered at-least-once to the sink,
// in emission order per target.
type AuditEvent struct {
	ID        string            `json:"id"`
	Source    string            `json:"source"`
	Action    string            `json:"action"`
	Actor     string            `json:"actor"`
	TargetID  string            `json:"target_id"`
	Status    AuditStatus       `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Reason    string            `json:"reason,omitempty"`
	Detail    map[string]string `json:"detail,omitempty"`
}

// NewAuditEvent builds a success-status event ready for emission.
func NewAuditEvent(source, action, actor, targetID string) AuditEvent {
	return AuditEvent{
		ID:        NewID(),
		Source:    source,
		Action:    action,
		Actor:     actor,
		TargetID:  targetID,
		Status:    AuditSuccess,
		Timestamp: time.Now().UTC(),
	}
}

// SignalKind discriminates inbound security-sink signals.
type SignalKind string

const (
	// SignalKill orders the immediate end of a session or breakout. It is
	// equivalent to EndSession but bypasses caller validation and is always
	// honored.
	SignalKill SignalKind = "kill"
	// SignalOverride marks a previously emitted audit event as overridden.
	SignalOverride SignalKind = "override"
)

// Signal is an inbound command from the security/audit sink.
type Signal struct {
	Kind     SignalKind `json:"kind"`
	TargetID string     `json:"target_id,omitempty"`
	EventID  string     `json:"event_id,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}
