package quorum

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorum-ai/quorum/core"
	"github.com/quorum-ai/quorum/gateway"
)

func newTestQuorum(t *testing.T, optFns ...func(o *Options)) *Quorum {
	t.Helper()
	q := New(optFns...)
	t.Cleanup(q.Close)

	conf := func(v float64) *float64 { return &v }
	q.RegisterParticipant(core.Participant{ID: "alice", Name: "Alice", Kind: core.KindPersona})
	q.RegisterParticipant(core.Participant{ID: "bob", Name: "Bob", Kind: core.KindExternalAgent})
	q.Route("alice", gateway.Static{Content: "alice weighs in", Confidence: conf(80)})
	q.Route("bob", gateway.Static{Content: "bob disagrees strongly", Confidence: conf(60)})
	return q
}

func TestQuorumEndToEnd(t *testing.T) {
	q := newTestQuorum(t)

	id, err := q.CreateSession("operator", "quarterly planning", []string{"alice", "bob"}, nil)
	require.NoError(t, err)

	result, err := q.RunTurn(context.Background(), "operator", id, "what should we build", 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TurnNumber)
	assert.Len(t, result.Responses, 2)
	assert.NotEmpty(t, result.TopScored)

	sum, err := q.Summary(id)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Round)

	require.NoError(t, q.EndSession("operator", id))
	log, err := q.GetLog(id)
	require.NoError(t, err)
	assert.Equal(t, core.StateEnded, log.State)
	require.Len(t, log.Turns, 1)
	assert.NotEmpty(t, log.AuditRefs)
}

func TestQuorumBreakoutFlow(t *testing.T) {
	q := newTestQuorum(t)

	id, err := q.CreateSession("operator", "main", []string{"alice", "bob"}, nil)
	require.NoError(t, err)

	bid, err := q.CreateBreakout("operator", id, "sidebar", []string{"bob"})
	require.NoError(t, err)

	_, err = q.RunTurn(context.Background(), "operator", bid, "sidebar question", time.Second)
	require.NoError(t, err)

	require.NoError(t, q.DissolveBreakout("operator", bid))

	blog, err := q.GetLog(bid)
	require.NoError(t, err)
	assert.Equal(t, core.StateDissolved, blog.State)
	assert.Len(t, blog.Turns, 1)
}

func TestQuorumSignalChannel(t *testing.T) {
	signals := make(chan core.Signal)
	q := New(func(o *Options) {
		o.Signals = signals
	})
	defer q.Close()

	q.RegisterParticipant(core.Participant{ID: "alice", Kind: core.KindPersona})
	q.Route("alice", gateway.Static{Content: "hi"})

	id, err := q.CreateSession("operator", "topic", []string{"alice"}, nil)
	require.NoError(t, err)

	signals <- core.Signal{Kind: core.SignalKill, TargetID: id}

	require.Eventually(t, func() bool {
		log, err := q.GetLog(id)
		return err == nil && log.State == core.StateEnded
	}, time.Second, 10*time.Millisecond)

	close(signals)
}

func TestQuorumUpdateSettingsAndParticipants(t *testing.T) {
	q := newTestQuorum(t)

	id, err := q.CreateSession("operator", "topic", []string{"alice"}, nil)
	require.NoError(t, err)

	require.NoError(t, q.UpdateParticipants("operator", id, []string{"bob"}, nil))
	require.NoError(t, q.UpdateSettings("operator", id, map[string]any{"feed_verbosity": "verbose"}))

	err = q.UpdateSettings("operator", id, map[string]any{"unknown_field": 1})
	require.Error(t, err)
	assert.True(t, core.IsCode(err, core.CodeInvalidSettings))
}

func TestQuorumActiveSessions(t *testing.T) {
	q := newTestQuorum(t)

	first, err := q.CreateSession("operator", "one", []string{"alice"}, nil)
	require.NoError(t, err)
	_, err = q.CreateSession("operator", "two", []string{"bob"}, nil)
	require.NoError(t, err)

	require.NoError(t, q.EndSession("operator", first))
	assert.Len(t, q.ActiveSessions(), 1)
	assert.Empty(t, q.AuditOverflow())
}

func TestQuorumCustomGatewayDisablesRoute(t *testing.T) {
	q := New(func(o *Options) {
		o.Gateway = gateway.Static{Content: "uniform"}
	})
	defer q.Close()

	assert.Panics(t, func() {
		q.Route("alice", gateway.Static{Content: "x"})
	})
}
