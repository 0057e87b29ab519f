package core

import "time"

// Outcome classifies what a participant produced within a turn. A missing
// reply is never silently omitted; it is a first-class outcome in the log.
type Outcome string

const (
	// OutcomeResponded means the participant returned content in time.
	OutcomeResponded Outcome = "responded"
	// OutcomeTimeout means the participant did not reply before the deadline.
	OutcomeTimeout Outcome = "timeout"
	// OutcomeError means the gateway invocation failed.
	OutcomeError Outcome = "error"
	// OutcomeWithdrawn means the participant was removed mid-turn; treated
	// as a timeout for the current turn only.
	OutcomeWithdrawn Outcome = "withdrawn"
	// OutcomeDiscarded means the reply arrived after the turn was cancelled.
	// It is recorded but never applied to session state.
	OutcomeDiscarded Outcome = "discarded"
)

// DimensionScores holds the four rubric dimensions, each in [0,100].
type DimensionScores struct {
	Relevance  float64 `json:"relevance"`
	Confidence float64 `json:"confidence"`
	Insight    float64 `json:"insight"`
	Creativity float64 `json:"creativity"`
}

// RubricWeights weights the four dimensions in the aggregate score. Weights
// must sum to 1.0.
type RubricWeights struct {
	Relevance  float64 `json:"relevance" validate:"gte=0,lte=1"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
	Insight    float64 `json:"insight" validate:"gte=0,lte=1"`
	Creativity float64 `json:"creativity" validate:"gte=0,lte=1"`
}

// DefaultRubricWeights are the documented defaults: relevance 0.3,
// confidence 0.2, insight 0.3, creativity 0.2.
func DefaultRubricWeights() RubricWeights {
	return RubricWeights{Relevance: 0.3, Confidence: 0.2, Insight: 0.3, Creativity: 0.2}
}

// Sum returns the total of all four weights.
func (w RubricWeights) Sum() float64 {
	return w.Relevance + w.Confidence + w.Insight + w.Creativity
}

// Apply computes the weighted aggregate of the given dimension scores.
func (w RubricWeights) Apply(d DimensionScores) float64 {
	return d.Relevance*w.Relevance + d.Confidence*w.Confidence + d.Insight*w.Insight + d.Creativity*w.Creativity
}

// ScoreRecord is one historical scoring of a response. Re-scoring appends the
// superseded scores here; the current scores on the Response mutate in place.
type ScoreRecord struct {
	Scores    DimensionScores `json:"scores"`
	Aggregate float64         `json:"aggregate"`
	ScoredAt  time.Time       `json:"scored_at"`
	Reason    string          `json:"reason,omitempty"`
}

// Response is one participant's contribution to a turn, or the explicit
// marker recording why there is none. Responses are never deleted;
// Surfaced=false hides one from the live feed but it stays in the log.
type Response struct {
	ID            string          `json:"id"`
	ParticipantID string          `json:"participant_id"`
	Outcome       Outcome         `json:"outcome"`
	Content       string          `json:"content,omitempty"`
	Scores        DimensionScores `json:"scores"`
	Aggregate     float64         `json:"aggregate"`
	Surfaced      bool            `json:"surfaced"`
	References    []string        `json:"references,omitempty"`
	ScoreHistory  []ScoreRecord   `json:"score_history,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`

	// SelfConfidence is the participant's own confidence claim, if any.
	SelfConfidence *float64 `json:"self_reported_confidence,omitempty"`

	SubmittedAt time.Time `json:"submitted_at"`
	ScoredAt    time.Time `json:"scored_at,omitempty"`

	// Latency is the gateway round-trip for this participant's reply.
	Latency time.Duration `json:"latency_ns"`
}

// Usable reports whether the response carries real content that can feed
// moderation. Markers (timeout, error, withdrawn, discarded) are not usable.
func (r Response) Usable() bool { return r.Outcome == OutcomeResponded }

// Turn is one round of prompt broadcast and response collection. A turn is
// append-only once closed.
type Turn struct {
	Number   int       `json:"number"`
	Prompt   string    `json:"prompt"`
	Started  time.Time `json:"started"`
	Deadline time.Time `json:"deadline"`
	Closed   time.Time `json:"closed,omitempty"`

	// Responses holds one entry per snapshotted participant in arrival
	// order. The moderated priority ordering lives in Ranking.
	Responses []Response `json:"responses"`

	// Ranking lists response IDs in the moderator's priority order
	// (descending aggregate, ties broken by earlier submission).
	Ranking []string `json:"ranking"`

	// Regenerate names the participant the moderator recommends asking for
	// a regenerated response, when the turn's best insight score fell below
	// the session's threshold. Empty when no recommendation was made.
	Regenerate string `json:"regenerate,omitempty"`
}

// Response returns the response with the given ID, or nil.
func (t *Turn) Response(id string) *Response {
	for i := range t.Responses {
		if t.Responses[i].ID == id {
			return &t.Responses[i]
		}
	}
	return nil
}

// ByParticipant returns the response recorded for a participant, or nil.
func (t *Turn) ByParticipant(participantID string) *Response {
	for i := range t.Responses {
		if t.Responses[i].ParticipantID == participantID {
			return &t.Responses[i]
		}
	}
	return nil
}

// TurnResult is what RunTurn hands back to the caller: the closed turn plus
// the per-round tallies that also go into the round's audit event.
type TurnResult struct {
	TurnNumber   int        `json:"turn_number"`
	Responses    []Response `json:"responses"`
	Timeouts     int        `json:"timeouts"`
	Errors       int        `json:"errors"`
	TopScored    string     `json:"top_scored,omitempty"`
	Regenerate   string     `json:"regenerate,omitempty"`
	Participants int        `json:"participants"`
}
