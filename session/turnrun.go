package session

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/quorum-ai/quorum/core"
	"github.com/quorum-ai/quorum/turn"
)

// targetRef is a uniform view over a session or breakout entry so RunTurn
// can drive both. All pointees are guarded by stateMu; runMu is the
// per-target execution lock.
type targetRef struct {
	id      string
	runMu   *sync.Mutex
	stateMu *sync.Mutex

	state        *core.LifecycleState
	participants *[]string
	settings     *core.Settings
	round        *int
	turns        *[]core.Turn
	auditRefs    *[]string
	cancelTurn   *context.CancelFunc
	withdrawn    map[string]bool
}

func (e *sessionEntry) ref() *targetRef {
	return &targetRef{
		id:           e.session.ID,
		runMu:        &e.runMu,
		stateMu:      &e.stateMu,
		state:        &e.session.State,
		participants: &e.session.Participants,
		settings:     &e.session.Settings,
		round:        &e.session.Round,
		turns:        &e.session.Turns,
		auditRefs:    &e.auditRefs,
		cancelTurn:   &e.cancelTurn,
		withdrawn:    e.withdrawn,
	}
}

func (e *breakoutEntry) ref() *targetRef {
	return &targetRef{
		id:           e.breakout.ID,
		runMu:        &e.runMu,
		stateMu:      &e.stateMu,
		state:        &e.breakout.State,
		participants: &e.breakout.Participants,
		settings:     &e.settings,
		round:        &e.breakout.Round,
		turns:        &e.breakout.Turns,
		auditRefs:    &e.auditRefs,
		cancelTurn:   &e.cancelTurn,
		withdrawn:    e.withdrawn,
	}
}

// target resolves a session or breakout by ID.
func (m *Manager) target(targetID string) (*targetRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if se, ok := m.sessions[targetID]; ok {
		return se.ref(), nil
	}
	if be, ok := m.breakouts[targetID]; ok {
		return be.ref(), nil
	}
	return nil, core.NewError(core.CodeSessionNotFound, "no session or breakout %s", targetID)
}

// RunTurn drives one round on a session or breakout: snapshot the active
// participants, fan the prompt out under the deadline, moderate, and append
// the closed turn to the target's history.
//
// At most one turn is in flight per target. A concurrent RunTurn on the
// same target fails fast with TargetLocked instead of queueing, so callers
// see contention explicitly. A zero deadline takes the manager's default.
func (m *Manager) RunTurn(ctx context.Context, actor, targetID, prompt string, deadline time.Duration) (*core.TurnResult, error) {
	t, err := m.target(targetID)
	if err != nil {
		m.auditFailure("turn.run", actor, targetID, err)
		return nil, err
	}
	if deadline <= 0 {
		deadline = m.defaultDeadline
	}

	if !t.runMu.TryLock() {
		err := core.NewError(core.CodeTargetLocked, "a turn is already in flight on %s", targetID)
		m.auditFailure("turn.run", actor, targetID, err)
		return nil, err
	}
	defer t.runMu.Unlock()

	// Snapshot under the state lock; the coordinator works from the
	// snapshot so later participant changes cannot race the fan-out.
	t.stateMu.Lock()
	if *t.state != core.StateActive {
		t.stateMu.Unlock()
		err := core.NewError(core.CodeSessionEnded, "target %s is not active", targetID)
		m.auditFailure("turn.run", actor, targetID, err)
		return nil, err
	}
	number := *t.round + 1
	participants := m.resolveParticipants(*t.participants)
	settings := *t.settings
	turnCtx, cancel := context.WithCancel(ctx)
	*t.cancelTurn = cancel
	for id := range t.withdrawn {
		delete(t.withdrawn, id)
	}
	t.stateMu.Unlock()
	defer cancel()

	closed, result, err := m.coordinator.Run(turnCtx, turn.Request{
		TargetID:         targetID,
		Number:           number,
		Prompt:           prompt,
		Actor:            actor,
		Deadline:         deadline,
		Participants:     participants,
		Weights:          settings.Weights,
		FeedVerbosity:    settings.FeedVerbosity,
		InsightThreshold: settings.InsightThreshold,
	})

	t.stateMu.Lock()
	*t.cancelTurn = nil
	if err != nil {
		t.stateMu.Unlock()
		return nil, err
	}
	if *t.state != core.StateActive {
		// Ended (or killed) while the round was in flight: the history is
		// closed, the round's replies were already marked discarded.
		t.stateMu.Unlock()
		return nil, core.NewError(core.CodeSessionEnded, "target %s ended during the round", targetID)
	}

	m.applyWithdrawals(closed, result, t.withdrawn)

	// Feedback loop: a new response that challenges earlier ones triggers
	// re-scoring of everything it references, across prior turns.
	var rescored []string
	for _, r := range closed.Responses {
		if !r.Usable() || len(r.References) == 0 {
			continue
		}
		ids, rerr := m.moderator.Rescore(*t.turns, r, settings.Weights)
		if rerr != nil {
			m.logger.Warn("re-scoring failed target_id=%s response_id=%s err=%v", targetID, r.ID, rerr)
			continue
		}
		rescored = append(rescored, ids...)
	}

	*t.turns = append(*t.turns, *closed)
	*t.round = number

	// The round audit is emitted only once the turn is committed to
	// history, so an event never describes a mutation that was discarded.
	roundEv := core.NewAuditEvent("turn", "turn.run", actor, targetID)
	roundEv.Detail = map[string]string{
		"turn":         strconv.Itoa(number),
		"participants": strconv.Itoa(result.Participants),
		"timeouts":     strconv.Itoa(result.Timeouts),
		"errors":       strconv.Itoa(result.Errors),
	}
	if result.TopScored != "" {
		roundEv.Detail["top_scored"] = result.TopScored
	}
	*t.auditRefs = append(*t.auditRefs, roundEv.ID)

	checkpoint := settings.CheckpointInterval > 0 && number%settings.CheckpointInterval == 0
	t.stateMu.Unlock()

	m.auditRelay.Emit(roundEv)
	for _, id := range rescored {
		ev := core.NewAuditEvent("moderator", "response.rescore", actor, targetID)
		ev.Detail = map[string]string{"response_id": id, "turn": strconv.Itoa(number)}
		m.auditRelay.Emit(ev)
	}
	if checkpoint {
		m.writeback(targetID, number)
	}

	return result, nil
}

// resolveParticipants expands participant IDs into registry records. An ID
// deregistered since it joined still gets a slot so its absence shows up as
// an explicit outcome rather than a silently shrunken round.
func (m *Manager) resolveParticipants(ids []string) []core.Participant {
	out := make([]core.Participant, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.registry.Get(id); ok {
			out = append(out, p)
			continue
		}
		out = append(out, core.Participant{ID: id, Kind: core.KindExternalAgent})
	}
	return out
}

// applyWithdrawals converts the slots of participants removed mid-turn into
// withdrawal markers, which count as timeouts for this turn only. Their
// content is dropped from the turn but their historical responses in
// earlier turns are untouched.
func (m *Manager) applyWithdrawals(closed *core.Turn, result *core.TurnResult, withdrawn map[string]bool) {
	if len(withdrawn) == 0 {
		return
	}
	converted := map[string]bool{}
	for i := range closed.Responses {
		r := &closed.Responses[i]
		if !withdrawn[r.ParticipantID] {
			continue
		}
		r.Outcome = core.OutcomeWithdrawn
		r.Content = ""
		r.Surfaced = false
		converted[r.ID] = true
	}
	// Withdrawn responses leave the priority ordering.
	if len(converted) > 0 {
		kept := closed.Ranking[:0]
		for _, id := range closed.Ranking {
			if !converted[id] {
				kept = append(kept, id)
			}
		}
		closed.Ranking = kept
	}
	for i := range result.Responses {
		r := &result.Responses[i]
		if withdrawn[r.ParticipantID] {
			r.Outcome = core.OutcomeWithdrawn
			r.Content = ""
			r.Surfaced = false
		}
	}

	// Recompute the tallies from the converted outcomes. A withdrawal
	// counts as a timeout regardless of what the slot held before.
	result.Timeouts, result.Errors = 0, 0
	for _, r := range result.Responses {
		switch r.Outcome {
		case core.OutcomeTimeout, core.OutcomeWithdrawn:
			result.Timeouts++
		case core.OutcomeError:
			result.Errors++
		}
	}
	result.TopScored = ""
	if len(closed.Ranking) > 0 {
		if r := closed.Response(closed.Ranking[0]); r != nil {
			result.TopScored = r.ParticipantID
		}
	}
}
