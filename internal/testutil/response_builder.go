package testutil

import (
	"time"

	"github.com/quorum-ai/quorum/core"
)

// ResponseBuilder provides a fluent helper for constructing responses in
// tests. Example:
//
//	r := NewResponseBuilder("alice").Content("hello").Confidence(80).Build()
//
// Chain only the parts you need; sensible defaults are applied.
type ResponseBuilder struct {
	id            string
	participantID string
	outcome       core.Outcome
	content       string
	confidence    *float64
	references    []string
	submittedAt   time.Time
	latency       time.Duration
	scores        *core.DimensionScores
	surfaced      *bool
}

// NewResponseBuilder creates a builder for a responded entry by the given
// participant.
func NewResponseBuilder(participantID string) *ResponseBuilder {
	return &ResponseBuilder{
		participantID: participantID,
		outcome:       core.OutcomeResponded,
		submittedAt:   time.Now(),
	}
}

// ID overrides the auto-generated response ID (chainable). Use where
// determinism matters.
func (b *ResponseBuilder) ID(id string) *ResponseBuilder { b.id = id; return b }

// Outcome overrides the outcome; markers built this way keep empty content
// (chainable).
func (b *ResponseBuilder) Outcome(o core.Outcome) *ResponseBuilder { b.outcome = o; return b }

// Content sets the response body (chainable).
func (b *ResponseBuilder) Content(c string) *ResponseBuilder { b.content = c; return b }

// Confidence sets the self-reported confidence claim (chainable).
func (b *ResponseBuilder) Confidence(c float64) *ResponseBuilder { b.confidence = &c; return b }

// References appends referenced earlier-response IDs (chainable).
func (b *ResponseBuilder) References(ids ...string) *ResponseBuilder {
	b.references = append(b.references, ids...)
	return b
}

// SubmittedAt pins the submission time (chainable).
func (b *ResponseBuilder) SubmittedAt(t time.Time) *ResponseBuilder { b.submittedAt = t; return b }

// Latency sets the gateway round-trip duration (chainable).
func (b *ResponseBuilder) Latency(d time.Duration) *ResponseBuilder { b.latency = d; return b }

// Scores pre-populates dimension scores, bypassing the moderator (chainable).
func (b *ResponseBuilder) Scores(relevance, confidence, insight, creativity float64) *ResponseBuilder {
	b.scores = &core.DimensionScores{
		Relevance:  relevance,
		Confidence: confidence,
		Insight:    insight,
		Creativity: creativity,
	}
	return b
}

// Surfaced pins the surfaced flag (chainable).
func (b *ResponseBuilder) Surfaced(s bool) *ResponseBuilder { b.surfaced = &s; return b }

// Build constructs the core.Response value.
func (b *ResponseBuilder) Build() core.Response {
	r := core.Response{
		ID:             b.id,
		ParticipantID:  b.participantID,
		Outcome:        b.outcome,
		Content:        b.content,
		References:     append([]string{}, b.references...),
		SelfConfidence: b.confidence,
		SubmittedAt:    b.submittedAt,
		Latency:        b.latency,
		Surfaced:       b.outcome == core.OutcomeResponded,
	}
	if len(r.References) == 0 {
		r.References = nil
	}
	if r.ID == "" {
		r.ID = core.NewID()
	}
	if b.scores != nil {
		r.Scores = *b.scores
		r.ScoredAt = b.submittedAt
	}
	if b.surfaced != nil {
		r.Surfaced = *b.surfaced
	}
	return r
}
