package core

import "time"

// ParticipantKind discriminates the three classes of roundtable participants.
type ParticipantKind string

const (
	// KindPersona is a first-class in-process persona.
	KindPersona ParticipantKind = "persona"
	// KindExternalAgent is an agent executed through the sandboxed gateway.
	KindExternalAgent ParticipantKind = "external-agent"
	// KindHuman is a human operator.
	KindHuman ParticipantKind = "human"
)

// Participant describes a registered roundtable participant. Once added to a
// session a participant record is immutable except for removal; removal never
// retroactively deletes its historical responses.
type Participant struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Kind         ParticipantKind `json:"kind"`
	Capabilities []string        `json:"capabilities,omitempty"`
	Registered   time.Time       `json:"registered"`
}

// InvokeResult is the payload an execution gateway returns for one
// participant invocation within a turn.
type InvokeResult struct {
	// Content is the participant's raw reply text.
	Content string `json:"content"`

	// SelfConfidence optionally carries the participant's self-reported
	// confidence in [0,100]. When present the moderator folds it into the
	// confidence dimension.
	SelfConfidence *float64 `json:"self_reported_confidence,omitempty"`

	// References lists IDs of earlier responses this reply explicitly
	// references or challenges. Referenced responses are re-scored in light
	// of the new content.
	References []string `json:"references,omitempty"`
}
