// Package moderator scores a turn's batch of responses against the four
// dimension rubric, computes the priority ordering and surfaced flags, and
// decides regeneration and re-scoring.
//
// Scoring itself is pluggable via the Strategy interface; the ordering,
// weight validation and feedback rules below are fixed.
package moderator

import (
	"math"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/quorum-ai/quorum/core"
)

// weightTolerance absorbs float rounding when checking that rubric weights
// sum to 1.0.
const weightTolerance = 1e-9

// Options configures a Moderator.
type Options struct {
	// Strategy computes dimension scores. Defaults to LexicalStrategy.
	Strategy Strategy
}

// Moderator scores and orders responses. It holds no per-session state and
// is safe for concurrent use by any number of turn coordinators.
type Moderator struct {
	strategy Strategy
}

// New constructs a Moderator with optional overrides.
func New(optFns ...func(o *Options)) *Moderator {
	opts := Options{Strategy: LexicalStrategy{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Moderator{strategy: opts.Strategy}
}

// WithStrategy overrides the scoring strategy.
func WithStrategy(s Strategy) func(o *Options) {
	return func(o *Options) { o.Strategy = s }
}

// Score assigns dimension and aggregate scores to every usable response in
// the batch and returns the response IDs in priority order: descending
// aggregate, ties broken by earlier submission time. The sort is stable so
// identical scores and timestamps reproduce the same ordering across runs.
//
// Markers (timeouts, errors, withdrawals) are left unscored and excluded
// from the ranking. Weights that do not sum to 1.0 fail with InvalidWeights
// and no response is mutated.
func (m *Moderator) Score(prompt string, responses []core.Response, weights core.RubricWeights) ([]string, error) {
	if err := ValidateWeights(weights); err != nil {
		return nil, err
	}

	usable := lo.Filter(responses, func(r core.Response, _ int) bool { return r.Usable() })

	now := time.Now().UTC()
	for i := range responses {
		if !responses[i].Usable() {
			continue
		}
		d := m.strategy.Dimensions(prompt, responses[i], usable)
		responses[i].Scores = d
		responses[i].Aggregate = weights.Apply(d)
		responses[i].ScoredAt = now
	}

	ranked := make([]*core.Response, 0, len(usable))
	for i := range responses {
		if responses[i].Usable() {
			ranked = append(ranked, &responses[i])
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Aggregate != ranked[j].Aggregate {
			return ranked[i].Aggregate > ranked[j].Aggregate
		}
		return ranked[i].SubmittedAt.Before(ranked[j].SubmittedAt)
	})

	return lo.Map(ranked, func(r *core.Response, _ int) string { return r.ID }), nil
}

// ValidateWeights rejects rubric weights whose components fall outside [0,1]
// or whose sum is not 1.0.
func ValidateWeights(w core.RubricWeights) error {
	for _, v := range []float64{w.Relevance, w.Confidence, w.Insight, w.Creativity} {
		if v < 0 || v > 1 {
			return core.NewError(core.CodeInvalidWeights, "weight %v outside [0,1]", v)
		}
	}
	if math.Abs(w.Sum()-1.0) > weightTolerance {
		return core.NewError(core.CodeInvalidWeights, "weights sum to %v, want 1.0", w.Sum())
	}
	return nil
}

// Surface applies surfaced flags according to the feed verbosity:
//
//	minimal  only the top-ranked response
//	default  every real response
//	verbose  everything, markers included
//
// Hiding is never deletion; hidden responses stay in the exportable log.
func (m *Moderator) Surface(responses []core.Response, ranking []string, verbosity string) {
	top := ""
	if len(ranking) > 0 {
		top = ranking[0]
	}
	for i := range responses {
		switch verbosity {
		case core.VerbosityMinimal:
			responses[i].Surfaced = responses[i].ID == top
		case core.VerbosityVerbose:
			responses[i].Surfaced = true
		default:
			responses[i].Surfaced = responses[i].Usable()
		}
	}
}

// ShouldRegenerate recommends a participant to re-ask when the best insight
// score of the closed turn fell below the threshold. The lowest-latency
// responder is designated (ties broken by participant ID) on the grounds
// that it is the cheapest to re-run. The empty string means no
// recommendation. Acting on it is the caller's decision, never automatic.
func (m *Moderator) ShouldRegenerate(responses []core.Response, threshold float64) string {
	usable := lo.Filter(responses, func(r core.Response, _ int) bool { return r.Usable() })
	if len(usable) == 0 {
		return ""
	}
	maxInsight := lo.MaxBy(usable, func(a, b core.Response) bool { return a.Scores.Insight > b.Scores.Insight }).Scores.Insight
	if maxInsight >= threshold {
		return ""
	}
	sort.SliceStable(usable, func(i, j int) bool {
		if usable[i].Latency != usable[j].Latency {
			return usable[i].Latency < usable[j].Latency
		}
		return usable[i].ParticipantID < usable[j].ParticipantID
	})
	return usable[0].ParticipantID
}

// Rescore re-scores every earlier response the new response explicitly
// references, in light of the new content. The superseded scores are
// retained on each response as a ScoreRecord; only the current scores
// mutate. It returns the IDs of the responses that were re-scored so the
// caller can audit each one.
func (m *Moderator) Rescore(turns []core.Turn, newResponse core.Response, weights core.RubricWeights) ([]string, error) {
	if len(newResponse.References) == 0 {
		return nil, nil
	}
	if err := ValidateWeights(weights); err != nil {
		return nil, err
	}

	referenced := lo.SliceToMap(newResponse.References, func(id string) (string, struct{}) { return id, struct{}{} })

	var rescored []string
	now := time.Now().UTC()
	for ti := range turns {
		turn := &turns[ti]
		for ri := range turn.Responses {
			r := &turn.Responses[ri]
			if _, ok := referenced[r.ID]; !ok || !r.Usable() {
				continue
			}
			r.ScoreHistory = append(r.ScoreHistory, core.ScoreRecord{
				Scores:    r.Scores,
				Aggregate: r.Aggregate,
				ScoredAt:  r.ScoredAt,
				Reason:    "challenged by " + newResponse.ID,
			})
			// The challenger joins the batch so novelty and insight are
			// judged against the content that called this response out.
			batch := append([]core.Response{}, turn.Responses...)
			batch = append(batch, newResponse)
			d := m.strategy.Dimensions(turn.Prompt, *r, batch)
			r.Scores = d
			r.Aggregate = weights.Apply(d)
			r.ScoredAt = now
			rescored = append(rescored, r.ID)
		}
	}
	return rescored, nil
}
