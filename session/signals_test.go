package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorum-ai/quorum/core"
)

func TestKillSignalEndsSession(t *testing.T) {
	e := newEnv(t, "alice")
	id, err := e.manager.CreateSession("alice", "topic", []string{"alice"}, nil)
	require.NoError(t, err)

	e.manager.HandleSignal(core.Signal{Kind: core.SignalKill, TargetID: id})

	log, err := e.manager.GetLog(id)
	require.NoError(t, err)
	assert.Equal(t, core.StateEnded, log.State)

	// A duplicate kill is tolerated.
	e.manager.HandleSignal(core.Signal{Kind: core.SignalKill, TargetID: id})
}

func TestKillSignalDissolvesBreakout(t *testing.T) {
	e := newEnv(t, "alice", "bob")
	parent, err := e.manager.CreateSession("alice", "topic", []string{"alice", "bob"}, nil)
	require.NoError(t, err)
	bid, err := e.manager.CreateBreakout("alice", parent, "side", []string{"bob"})
	require.NoError(t, err)

	e.manager.Kill(bid)

	blog, err := e.manager.GetLog(bid)
	require.NoError(t, err)
	assert.Equal(t, core.StateDissolved, blog.State)

	// The parent stays active.
	plog, _ := e.manager.GetLog(parent)
	assert.Equal(t, core.StateActive, plog.State)
}

func TestKillSignalUnknownTargetIsIgnored(t *testing.T) {
	e := newEnv(t)

	e.manager.Kill("nope")
	assert.Empty(t, e.manager.ActiveSessions())
}

func TestOverrideEmitsLinkedEvent(t *testing.T) {
	e := newEnv(t)

	e.manager.HandleSignal(core.Signal{
		Kind:    core.SignalOverride,
		EventID: "ev-123",
		Reason:  "policy violation",
	})
	e.relay.Close()

	events := e.sink.ByTarget("ev-123")
	require.Len(t, events, 1)
	assert.Equal(t, core.AuditOverridden, events[0].Status)
	assert.Equal(t, "audit.override", events[0].Action)
	assert.Equal(t, "policy violation", events[0].Reason)
	assert.Equal(t, "security-sink", events[0].Actor)
}
