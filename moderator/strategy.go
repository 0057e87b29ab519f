package moderator

import (
	"strings"
	"unicode"

	"github.com/samber/lo"

	"github.com/quorum-ai/quorum/core"
)

// Strategy computes the four rubric dimensions for one response. The batch
// (every usable response of the same turn, arrival order) is provided so a
// strategy can judge novelty against peers. Implementations must be
// deterministic: identical inputs produce identical scores, which is what
// makes moderated orderings reproducible.
//
// How self-scoring and peer cross-scoring blend into the moderator's own
// rules is deliberately not fixed here; swap the strategy to change it.
type Strategy interface {
	Dimensions(prompt string, r core.Response, batch []core.Response) core.DimensionScores
}

// LexicalStrategy is the default deterministic strategy. It scores from
// surface features only:
//
//   - relevance: prompt-token coverage of the response
//   - confidence: the participant's self-reported confidence, defaulting to
//     a neutral 50 when none was reported
//   - insight: lexical diversity plus a capped length component
//   - creativity: share of tokens no peer response used
//
// It needs no model calls and no randomness, so it is reproducible across
// runs and suitable as a baseline for tests and demos.
type LexicalStrategy struct{}

// Dimensions implements Strategy.
func (LexicalStrategy) Dimensions(prompt string, r core.Response, batch []core.Response) core.DimensionScores {
	tokens := tokenize(r.Content)
	return core.DimensionScores{
		Relevance:  relevance(tokenize(prompt), tokens),
		Confidence: confidence(r.SelfConfidence),
		Insight:    insight(tokens),
		Creativity: creativity(r, tokens, batch),
	}
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// relevance is the fraction of distinct prompt tokens echoed by the response.
func relevance(promptTokens, tokens []string) float64 {
	prompt := lo.Uniq(promptTokens)
	if len(prompt) == 0 {
		return 50
	}
	have := lo.SliceToMap(tokens, func(t string) (string, struct{}) { return t, struct{}{} })
	hits := lo.CountBy(prompt, func(t string) bool {
		_, ok := have[t]
		return ok
	})
	return clamp(100 * float64(hits) / float64(len(prompt)))
}

func confidence(self *float64) float64 {
	if self == nil {
		return 50
	}
	return clamp(*self)
}

// insight rewards varied vocabulary with a capped bonus for substance.
func insight(tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	diversity := float64(len(lo.Uniq(tokens))) / float64(len(tokens))
	length := float64(len(tokens)) / 4
	if length > 30 {
		length = 30
	}
	return clamp(diversity*70 + length)
}

// creativity is the share of this response's distinct tokens that no peer
// response used.
func creativity(r core.Response, tokens []string, batch []core.Response) float64 {
	distinct := lo.Uniq(tokens)
	if len(distinct) == 0 {
		return 0
	}
	peers := make(map[string]struct{})
	for _, peer := range batch {
		if peer.ID == r.ID || !peer.Usable() {
			continue
		}
		for _, t := range tokenize(peer.Content) {
			peers[t] = struct{}{}
		}
	}
	if len(peers) == 0 {
		// Sole responder: novelty against peers is undefined, score neutral.
		return 50
	}
	novel := lo.CountBy(distinct, func(t string) bool {
		_, ok := peers[t]
		return !ok
	})
	return clamp(100 * float64(novel) / float64(len(distinct)))
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
