package core

import (
	"time"

	"github.com/google/uuid"
)

// LifecycleState is the coarse state of a session or breakout.
type LifecycleState string

const (
	// StateActive means the target accepts turns and mutations.
	StateActive LifecycleState = "active"
	// StateEnded means the session is archived and immutable.
	StateEnded LifecycleState = "ended"
	// StateDissolved means the breakout is closed; its log stays addressable.
	StateDissolved LifecycleState = "dissolved"
)

// Feed verbosity levels controlling which responses are surfaced by default.
const (
	VerbosityMinimal = "minimal"
	VerbosityDefault = "default"
	VerbosityVerbose = "verbose"
)

// Settings are the per-session knobs callers may tune. Fields carry validate
// tags; UpdateSettings rejects unknown patch keys and out-of-range values
// with InvalidSettings.
type Settings struct {
	// FeedVerbosity controls surfacing: minimal surfaces only the
	// top-ranked response per turn, default surfaces every real response,
	// verbose additionally surfaces timeout/error markers.
	FeedVerbosity string `json:"feed_verbosity" validate:"oneof=minimal default verbose"`

	// Weights are the rubric weights applied by the moderator.
	Weights RubricWeights `json:"weights"`

	// InsightThreshold is the minimum best-in-turn insight score below
	// which the moderator recommends a regeneration.
	InsightThreshold float64 `json:"insight_threshold" validate:"gte=0,lte=100"`

	// CheckpointInterval triggers a memory-relay writeback every N closed
	// turns. Zero disables interval checkpoints (end-of-session writeback
	// still happens).
	CheckpointInterval int `json:"checkpoint_interval" validate:"gte=0"`
}

// DefaultSettings returns the documented defaults.
func DefaultSettings() Settings {
	return Settings{
		FeedVerbosity:      VerbosityDefault,
		Weights:            DefaultRubricWeights(),
		InsightThreshold:   40,
		CheckpointInterval: 5,
	}
}

// Session is a top-level roundtable: ordered participants, ordered turns,
// settings and lifecycle state. Owned exclusively by the session manager and
// mutated only through its operations.
type Session struct {
	ID           string         `json:"id"`
	Topic        string         `json:"topic"`
	CreatedBy    string         `json:"created_by"`
	Created      time.Time      `json:"created"`
	Participants []string       `json:"participants"`
	Round        int            `json:"round"`
	Settings     Settings       `json:"settings"`
	State        LifecycleState `json:"state"`
	Breakouts    []string       `json:"breakouts,omitempty"`
	Turns        []Turn         `json:"turns"`
}

// Breakout is a nested sub-session: a participant subset of its parent with
// an independent turn history. Back-references are IDs only, never live
// pointers, so parent and breakout share no mutable state.
type Breakout struct {
	ID           string         `json:"id"`
	ParentID     string         `json:"parent_id"`
	Topic        string         `json:"topic"`
	Created      time.Time      `json:"created"`
	Participants []string       `json:"participants"`
	Round        int            `json:"round"`
	State        LifecycleState `json:"state"`
	Turns        []Turn         `json:"turns"`
}

// SessionLog is the complete exportable history of a session or breakout,
// returned by GetLog regardless of surfaced flags. This is the only way to
// retrieve hidden responses.
type SessionLog struct {
	ID           string         `json:"id"`
	ParentID     string         `json:"parent_id,omitempty"`
	Topic        string         `json:"topic"`
	State        LifecycleState `json:"state"`
	Participants []string       `json:"participants"`
	Turns        []Turn         `json:"turns"`
	AuditRefs    []string       `json:"audit_refs,omitempty"`
}

// Summary is a lightweight view of a session for dashboards and listings.
type Summary struct {
	ID           string         `json:"id"`
	Topic        string         `json:"topic"`
	State        LifecycleState `json:"state"`
	Participants int            `json:"participants"`
	Round        int            `json:"round"`
	Breakouts    int            `json:"breakouts"`
	Created      time.Time      `json:"created"`
}

// NewID generates a unique identifier for sessions, breakouts, responses and
// audit events.
func NewID() string { return uuid.NewString() }
