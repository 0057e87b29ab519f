package testutil

import (
	"time"

	"github.com/quorum-ai/quorum/core"
)

// TurnBuilder helps construct closed turns with fluent chaining for tests.
// Example:
//
//	turn := NewTurnBuilder(1, "prompt").Responses(r1, r2).Ranking(r1.ID, r2.ID).Build()
type TurnBuilder struct {
	number    int
	prompt    string
	started   time.Time
	responses []core.Response
	ranking   []string
}

// NewTurnBuilder creates a new builder for a turn with the given number and
// prompt. Use chainable methods (Response, Responses, Ranking) then call Build.
func NewTurnBuilder(number int, prompt string) *TurnBuilder {
	return &TurnBuilder{number: number, prompt: prompt, started: time.Now()}
}

// Started pins the turn start time (chainable).
func (b *TurnBuilder) Started(t time.Time) *TurnBuilder { b.started = t; return b }

// Response appends a single response in arrival order (chainable).
func (b *TurnBuilder) Response(r core.Response) *TurnBuilder {
	b.responses = append(b.responses, r)
	return b
}

// Responses appends multiple responses in arrival order (chainable).
func (b *TurnBuilder) Responses(rs ...core.Response) *TurnBuilder {
	b.responses = append(b.responses, rs...)
	return b
}

// Ranking sets the moderated priority order by response ID (chainable).
func (b *TurnBuilder) Ranking(ids ...string) *TurnBuilder {
	b.ranking = append(b.ranking, ids...)
	return b
}

// Build returns a closed core.Turn with pre-populated responses.
func (b *TurnBuilder) Build() core.Turn {
	return core.Turn{
		Number:    b.number,
		Prompt:    b.prompt,
		Started:   b.started,
		Deadline:  b.started.Add(30 * time.Second),
		Closed:    b.started.Add(time.Second),
		Responses: append([]core.Response{}, b.responses...),
		Ranking:   append([]string{}, b.ranking...),
	}
}
