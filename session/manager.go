// Package session owns the lifecycle of roundtable sessions and breakouts:
// creation, participant and settings mutation, turn delegation, dissolution
// and log export. The Manager is the single entry point external callers
// use; all session state is owned here and mutated only through its
// operations.
//
// Concurrency model: every target (session or breakout) carries two locks.
// A state mutex guards its record; a separate execution mutex is try-locked
// for the whole of RunTurn so at most one turn is in flight per target,
// with contention reported as TargetLocked rather than queued.
package session

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/quorum-ai/quorum/audit"
	"github.com/quorum-ai/quorum/core"
	"github.com/quorum-ai/quorum/logging"
	"github.com/quorum-ai/quorum/memory"
	"github.com/quorum-ai/quorum/moderator"
	"github.com/quorum-ai/quorum/turn"
)

// Options configures a Manager.
type Options struct {
	// DefaultDeadline bounds a round when the caller passes none.
	DefaultDeadline time.Duration
	// DefaultSettings seed new sessions; callers override via
	// CreateSession settings or UpdateSettings patches.
	DefaultSettings core.Settings
	// Logger receives manager diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Manager is the top-level orchestration entry point. It is constructed
// with injected collaborators so multiple independent instances can coexist
// (there is no process-wide state).
type Manager struct {
	registry    core.Registry
	coordinator *turn.Coordinator
	moderator   *moderator.Moderator
	auditRelay  *audit.Relay
	memoryRelay *memory.Relay
	logger      logging.Logger
	validate    *validator.Validate

	defaultDeadline time.Duration
	defaultSettings core.Settings

	mu        sync.RWMutex
	sessions  map[string]*sessionEntry
	breakouts map[string]*breakoutEntry
}

// sessionEntry is the arena slot for one session. stateMu guards the
// record; runMu is the per-target execution lock held across RunTurn.
type sessionEntry struct {
	stateMu sync.Mutex
	runMu   sync.Mutex

	session    core.Session
	auditRefs  []string
	cancelTurn context.CancelFunc
	// withdrawn marks participants removed while a turn was in flight;
	// their slot in that turn is converted to a withdrawal marker.
	withdrawn map[string]bool
}

// breakoutEntry is the arena slot for one breakout. settings are copied
// from the parent at creation; the breakout never reads the parent again.
type breakoutEntry struct {
	stateMu sync.Mutex
	runMu   sync.Mutex

	breakout   core.Breakout
	settings   core.Settings
	auditRefs  []string
	cancelTurn context.CancelFunc
	withdrawn  map[string]bool
}

// NewManager constructs a Manager with injected collaborators.
func NewManager(
	registry core.Registry,
	coordinator *turn.Coordinator,
	mod *moderator.Moderator,
	auditRelay *audit.Relay,
	memoryRelay *memory.Relay,
	optFns ...func(o *Options),
) *Manager {
	opts := Options{
		DefaultDeadline: 30 * time.Second,
		DefaultSettings: core.DefaultSettings(),
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Manager{
		registry:        registry,
		coordinator:     coordinator,
		moderator:       mod,
		auditRelay:      auditRelay,
		memoryRelay:     memoryRelay,
		logger:          opts.Logger,
		validate:        validator.New(),
		defaultDeadline: opts.DefaultDeadline,
		defaultSettings: opts.DefaultSettings,
		sessions:        make(map[string]*sessionEntry),
		breakouts:       make(map[string]*breakoutEntry),
	}
}

// CreateSession creates a new active session with the given participants.
// The list must be non-empty and every ID must be known to the registry,
// otherwise the call fails with InvalidParticipants and nothing is mutated.
// A nil settings pointer takes the manager's defaults.
func (m *Manager) CreateSession(actor, topic string, participantIDs []string, settings *core.Settings) (string, error) {
	if len(participantIDs) == 0 {
		err := core.NewError(core.CodeInvalidParticipants, "participant list is empty")
		m.auditFailure("session.create", actor, "", err)
		return "", err
	}
	unknown := lo.Filter(participantIDs, func(id string, _ int) bool {
		_, ok := m.registry.Get(id)
		return !ok
	})
	if len(unknown) > 0 {
		err := core.NewError(core.CodeInvalidParticipants, "unknown participants: %v", unknown)
		m.auditFailure("session.create", actor, "", err)
		return "", err
	}

	s := m.defaultSettings
	if settings != nil {
		s = *settings
	}
	if err := m.checkSettings(s); err != nil {
		m.auditFailure("session.create", actor, "", err)
		return "", err
	}

	entry := &sessionEntry{
		session: core.Session{
			ID:           core.NewID(),
			Topic:        topic,
			CreatedBy:    actor,
			Created:      time.Now().UTC(),
			Participants: lo.Uniq(participantIDs),
			Settings:     s,
			State:        core.StateActive,
		},
		withdrawn: make(map[string]bool),
	}

	m.mu.Lock()
	m.sessions[entry.session.ID] = entry
	m.mu.Unlock()

	m.audit(entry, "session.create", actor, entry.session.ID, map[string]string{
		"topic":        topic,
		"participants": strconv.Itoa(len(entry.session.Participants)),
	})
	m.logger.Info("session created session_id=%s topic=%q participants=%d", entry.session.ID, topic, len(entry.session.Participants))
	return entry.session.ID, nil
}

// UpdateParticipants adds and removes participants on an active session.
// Added IDs must be known to the registry. Removing a participant whose
// turn is currently in flight marks their slot as withdrawn, which counts
// as a timeout for that turn only; their historical responses remain. One
// audit event is emitted per add and per remove.
func (m *Manager) UpdateParticipants(actor, sessionID string, add, remove []string) error {
	entry, err := m.lookupSession(sessionID)
	if err != nil {
		m.auditFailure("session.participants.update", actor, sessionID, err)
		return err
	}

	unknown := lo.Filter(add, func(id string, _ int) bool {
		_, ok := m.registry.Get(id)
		return !ok
	})
	if len(unknown) > 0 {
		err := core.NewError(core.CodeInvalidParticipants, "unknown participants: %v", unknown)
		m.auditFailure("session.participants.update", actor, sessionID, err)
		return err
	}

	entry.stateMu.Lock()
	if entry.session.State != core.StateActive {
		entry.stateMu.Unlock()
		err := core.NewError(core.CodeSessionEnded, "session %s has ended", sessionID)
		m.auditFailure("session.participants.update", actor, sessionID, err)
		return err
	}

	midTurn := entry.cancelTurn != nil
	for _, id := range add {
		if !lo.Contains(entry.session.Participants, id) {
			entry.session.Participants = append(entry.session.Participants, id)
		}
	}
	for _, id := range remove {
		entry.session.Participants = lo.Without(entry.session.Participants, id)
		if midTurn {
			entry.withdrawn[id] = true
		}
	}
	entry.stateMu.Unlock()

	for _, id := range add {
		m.audit(entry, "session.participants.add", actor, sessionID, map[string]string{"participant_id": id})
	}
	for _, id := range remove {
		detail := map[string]string{"participant_id": id}
		if midTurn {
			detail["withdrawn_mid_turn"] = "true"
		}
		m.audit(entry, "session.participants.remove", actor, sessionID, detail)
	}
	return nil
}

// settingsPatchKeys are the patch keys UpdateSettings understands. Anything
// else is rejected with InvalidSettings.
var settingsPatchKeys = map[string]bool{
	"feed_verbosity":      true,
	"weights":             true,
	"insight_threshold":   true,
	"checkpoint_interval": true,
}

// UpdateSettings merges the supplied fields into the session's settings.
// Unknown keys and values that fail validation are rejected with
// InvalidSettings and nothing is mutated.
func (m *Manager) UpdateSettings(actor, sessionID string, patch map[string]any) error {
	entry, err := m.lookupSession(sessionID)
	if err != nil {
		m.auditFailure("session.settings.update", actor, sessionID, err)
		return err
	}

	entry.stateMu.Lock()
	if entry.session.State != core.StateActive {
		entry.stateMu.Unlock()
		err := core.NewError(core.CodeSessionEnded, "session %s has ended", sessionID)
		m.auditFailure("session.settings.update", actor, sessionID, err)
		return err
	}

	merged, mergeErr := mergeSettings(entry.session.Settings, patch)
	if mergeErr == nil {
		mergeErr = m.checkSettings(merged)
	}
	if mergeErr != nil {
		entry.stateMu.Unlock()
		m.auditFailure("session.settings.update", actor, sessionID, mergeErr)
		return mergeErr
	}

	entry.session.Settings = merged
	entry.stateMu.Unlock()

	m.audit(entry, "session.settings.update", actor, sessionID, map[string]string{
		"fields": strconv.Itoa(len(patch)),
	})
	return nil
}

// EndSession transitions the session to ended, dissolves any still-active
// breakouts, cancels an in-flight turn and performs the final memory
// writeback. It is idempotent: ending an already-ended session succeeds as
// a no-op so duplicate kill signals are tolerated.
func (m *Manager) EndSession(actor, sessionID string) error {
	entry, err := m.lookupSession(sessionID)
	if err != nil {
		return err
	}

	entry.stateMu.Lock()
	if entry.session.State == core.StateEnded {
		entry.stateMu.Unlock()
		m.logger.Debug("session already ended session_id=%s", sessionID)
		return nil
	}
	entry.session.State = core.StateEnded
	if entry.cancelTurn != nil {
		entry.cancelTurn()
		entry.cancelTurn = nil
	}
	breakoutIDs := append([]string{}, entry.session.Breakouts...)
	round := entry.session.Round
	entry.stateMu.Unlock()

	// Still-active breakouts are inherited as ended when the parent ends.
	for _, bid := range breakoutIDs {
		if err := m.DissolveBreakout(actor, bid); err != nil && !core.IsCode(err, core.CodeSessionNotFound) {
			m.logger.Warn("failed to dissolve breakout on session end breakout_id=%s err=%v", bid, err)
		}
	}

	m.audit(entry, "session.end", actor, sessionID, nil)
	m.writeback(sessionID, round)
	m.logger.Info("session ended session_id=%s rounds=%d", sessionID, round)
	return nil
}

// GetLog returns the full ordered history of a session or breakout,
// including responses hidden from the live feed. This is the only way to
// retrieve hidden responses.
func (m *Manager) GetLog(targetID string) (core.SessionLog, error) {
	m.mu.RLock()
	se, isSession := m.sessions[targetID]
	be, isBreakout := m.breakouts[targetID]
	m.mu.RUnlock()

	switch {
	case isSession:
		se.stateMu.Lock()
		defer se.stateMu.Unlock()
		return core.SessionLog{
			ID:           se.session.ID,
			Topic:        se.session.Topic,
			State:        se.session.State,
			Participants: append([]string{}, se.session.Participants...),
			Turns:        cloneTurns(se.session.Turns),
			AuditRefs:    append([]string{}, se.auditRefs...),
		}, nil
	case isBreakout:
		be.stateMu.Lock()
		defer be.stateMu.Unlock()
		return core.SessionLog{
			ID:           be.breakout.ID,
			ParentID:     be.breakout.ParentID,
			Topic:        be.breakout.Topic,
			State:        be.breakout.State,
			Participants: append([]string{}, be.breakout.Participants...),
			Turns:        cloneTurns(be.breakout.Turns),
			AuditRefs:    append([]string{}, be.auditRefs...),
		}, nil
	default:
		return core.SessionLog{}, core.NewError(core.CodeSessionNotFound, "no session or breakout %s", targetID)
	}
}

// Summary returns the lightweight view of one session.
func (m *Manager) Summary(sessionID string) (core.Summary, error) {
	entry, err := m.lookupSession(sessionID)
	if err != nil {
		return core.Summary{}, err
	}
	entry.stateMu.Lock()
	defer entry.stateMu.Unlock()
	return core.Summary{
		ID:           entry.session.ID,
		Topic:        entry.session.Topic,
		State:        entry.session.State,
		Participants: len(entry.session.Participants),
		Round:        entry.session.Round,
		Breakouts:    len(entry.session.Breakouts),
		Created:      entry.session.Created,
	}, nil
}

// ActiveSessions lists summaries of all sessions still in the active state.
func (m *Manager) ActiveSessions() []core.Summary {
	m.mu.RLock()
	entries := lo.Values(m.sessions)
	m.mu.RUnlock()

	var out []core.Summary
	for _, e := range entries {
		e.stateMu.Lock()
		if e.session.State == core.StateActive {
			out = append(out, core.Summary{
				ID:           e.session.ID,
				Topic:        e.session.Topic,
				State:        e.session.State,
				Participants: len(e.session.Participants),
				Round:        e.session.Round,
				Breakouts:    len(e.session.Breakouts),
				Created:      e.session.Created,
			})
		}
		e.stateMu.Unlock()
	}
	return out
}

// lookupSession resolves a session entry or SessionNotFound.
func (m *Manager) lookupSession(sessionID string) (*sessionEntry, error) {
	m.mu.RLock()
	entry, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, core.NewError(core.CodeSessionNotFound, "no session %s", sessionID)
	}
	return entry, nil
}

func (m *Manager) checkSettings(s core.Settings) error {
	if err := m.validate.Struct(s); err != nil {
		return &core.Error{Code: core.CodeInvalidSettings, Reason: "settings failed validation", Cause: err}
	}
	if err := moderator.ValidateWeights(s.Weights); err != nil {
		return &core.Error{Code: core.CodeInvalidSettings, Reason: "rubric weights invalid", Cause: err}
	}
	return nil
}

// audit emits a success event for a mutation and records its ID on the
// entry for log export. ref may be a sessionEntry or breakoutEntry.
func (m *Manager) audit(ref any, action, actor, targetID string, detail map[string]string) {
	ev := core.NewAuditEvent("session", action, actor, targetID)
	ev.Detail = detail
	switch e := ref.(type) {
	case *sessionEntry:
		e.stateMu.Lock()
		e.auditRefs = append(e.auditRefs, ev.ID)
		e.stateMu.Unlock()
	case *breakoutEntry:
		e.stateMu.Lock()
		e.auditRefs = append(e.auditRefs, ev.ID)
		e.stateMu.Unlock()
	}
	m.auditRelay.Emit(ev)
}

// auditFailure emits a failure-status event for a rejected operation. No
// state was mutated, so nothing is recorded on any entry.
func (m *Manager) auditFailure(action, actor, targetID string, cause error) {
	ev := core.NewAuditEvent("session", action, actor, targetID)
	ev.Status = core.AuditFailure
	ev.Reason = cause.Error()
	m.auditRelay.Emit(ev)
}

// writeback pushes the target's full log through the memory relay.
func (m *Manager) writeback(targetID string, round int) {
	log, err := m.GetLog(targetID)
	if err != nil {
		m.logger.Warn("writeback skipped, target vanished target_id=%s", targetID)
		return
	}
	if err := m.memoryRelay.Writeback(targetID, round, log); err != nil {
		m.logger.Error("final writeback failed target_id=%s err=%v", targetID, err)
	}
}

func cloneTurns(turns []core.Turn) []core.Turn {
	out := make([]core.Turn, len(turns))
	copy(out, turns)
	for i := range out {
		out[i].Responses = append([]core.Response{}, turns[i].Responses...)
		out[i].Ranking = append([]string{}, turns[i].Ranking...)
	}
	return out
}
