package session

import (
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/quorum-ai/quorum/core"
)

// CreateBreakout spins up a nested sub-session for a subset of an active
// parent session's participants. The subset must be non-empty (EmptySubset)
// and every member must currently belong to the parent (UnknownParticipant).
// The breakout captures the subset and the parent's settings at creation
// and shares no mutable state with the parent afterwards.
func (m *Manager) CreateBreakout(actor, parentSessionID, topic string, subset []string) (string, error) {
	parent, err := m.lookupSession(parentSessionID)
	if err != nil {
		m.auditFailure("session.breakout.create", actor, parentSessionID, err)
		return "", err
	}
	if len(subset) == 0 {
		err := core.NewError(core.CodeEmptySubset, "breakout participant subset is empty")
		m.auditFailure("session.breakout.create", actor, parentSessionID, err)
		return "", err
	}

	parent.stateMu.Lock()
	if parent.session.State != core.StateActive {
		parent.stateMu.Unlock()
		err := core.NewError(core.CodeSessionEnded, "session %s has ended", parentSessionID)
		m.auditFailure("session.breakout.create", actor, parentSessionID, err)
		return "", err
	}
	outside := lo.Without(lo.Uniq(subset), parent.session.Participants...)
	if len(outside) > 0 {
		parent.stateMu.Unlock()
		err := core.NewError(core.CodeUnknownParticipant, "not in parent session: %v", outside)
		m.auditFailure("session.breakout.create", actor, parentSessionID, err)
		return "", err
	}

	entry := &breakoutEntry{
		breakout: core.Breakout{
			ID:           core.NewID(),
			ParentID:     parentSessionID,
			Topic:        topic,
			Created:      time.Now().UTC(),
			Participants: lo.Uniq(subset),
			State:        core.StateActive,
		},
		settings:  parent.session.Settings,
		withdrawn: make(map[string]bool),
	}
	parent.session.Breakouts = append(parent.session.Breakouts, entry.breakout.ID)
	parent.stateMu.Unlock()

	m.mu.Lock()
	m.breakouts[entry.breakout.ID] = entry
	m.mu.Unlock()

	m.audit(entry, "session.breakout.create", actor, entry.breakout.ID, map[string]string{
		"parent_id":    parentSessionID,
		"topic":        topic,
		"participants": strconv.Itoa(len(entry.breakout.Participants)),
	})
	m.logger.Info("breakout created breakout_id=%s parent_id=%s participants=%d", entry.breakout.ID, parentSessionID, len(entry.breakout.Participants))
	return entry.breakout.ID, nil
}

// DissolveBreakout marks a breakout dissolved, cancels any in-flight turn
// and writes its own log back through the memory relay. The parent
// session's turn history is unaffected, and the breakout's log stays
// separately addressable via GetLog after dissolution. Dissolving an
// already-dissolved breakout is a no-op that still succeeds.
func (m *Manager) DissolveBreakout(actor, breakoutID string) error {
	m.mu.RLock()
	entry, ok := m.breakouts[breakoutID]
	m.mu.RUnlock()
	if !ok {
		return core.NewError(core.CodeSessionNotFound, "no breakout %s", breakoutID)
	}

	entry.stateMu.Lock()
	if entry.breakout.State == core.StateDissolved {
		entry.stateMu.Unlock()
		m.logger.Debug("breakout already dissolved breakout_id=%s", breakoutID)
		return nil
	}
	entry.breakout.State = core.StateDissolved
	if entry.cancelTurn != nil {
		entry.cancelTurn()
		entry.cancelTurn = nil
	}
	round := entry.breakout.Round
	entry.stateMu.Unlock()

	m.audit(entry, "session.breakout.dissolve", actor, breakoutID, nil)
	m.writeback(breakoutID, round)
	m.logger.Info("breakout dissolved breakout_id=%s rounds=%d", breakoutID, round)
	return nil
}
