package session

import (
	"github.com/quorum-ai/quorum/core"
)

// sentryActor is the actor recorded on mutations driven by security-sink
// signals rather than a user.
const sentryActor = "security-sink"

// Kill ends the target immediately on behalf of the security sink. It
// bypasses the validation a user-initiated end would get and is always
// honored: an unknown target is logged and ignored (the signal may race a
// normal end), an already-ended target is a no-op.
func (m *Manager) Kill(targetID string) {
	m.mu.RLock()
	_, isSession := m.sessions[targetID]
	_, isBreakout := m.breakouts[targetID]
	m.mu.RUnlock()

	switch {
	case isSession:
		if err := m.EndSession(sentryActor, targetID); err != nil {
			m.logger.Warn("kill signal failed session_id=%s err=%v", targetID, err)
			return
		}
		m.logger.Info("session killed by security sink session_id=%s", targetID)
	case isBreakout:
		if err := m.DissolveBreakout(sentryActor, targetID); err != nil {
			m.logger.Warn("kill signal failed breakout_id=%s err=%v", targetID, err)
			return
		}
		m.logger.Info("breakout killed by security sink breakout_id=%s", targetID)
	default:
		m.logger.Warn("kill signal for unknown target target_id=%s", targetID)
	}
}

// Override records that the security sink overrode a previously emitted
// audit event. The sink is the system of record for the original event;
// the core emits a linked overridden-status event so the trail shows both
// sides.
func (m *Manager) Override(eventID, reason string) {
	ev := core.NewAuditEvent("session", "audit.override", sentryActor, eventID)
	ev.Status = core.AuditOverridden
	ev.Reason = reason
	m.auditRelay.Emit(ev)
	m.logger.Info("audit event overridden event_id=%s reason=%q", eventID, reason)
}

// HandleSignal dispatches one inbound security-sink signal.
func (m *Manager) HandleSignal(sig core.Signal) {
	switch sig.Kind {
	case core.SignalKill:
		m.Kill(sig.TargetID)
	case core.SignalOverride:
		m.Override(sig.EventID, sig.Reason)
	default:
		m.logger.Warn("unknown signal kind=%q", sig.Kind)
	}
}
