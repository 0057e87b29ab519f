package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorum-ai/quorum/audit"
	"github.com/quorum-ai/quorum/core"
	"github.com/quorum-ai/quorum/gateway"
	"github.com/quorum-ai/quorum/memory"
	"github.com/quorum-ai/quorum/moderator"
	"github.com/quorum-ai/quorum/registry"
	"github.com/quorum-ai/quorum/turn"
)

// env wires a Manager with in-memory collaborators for tests.
type env struct {
	registry *registry.InMemoryRegistry
	mux      *gateway.Mux
	sink     *audit.InMemorySink
	relay    *audit.Relay
	storage  *memory.InMemoryStorage
	manager  *Manager
}

// newEnv builds a manager whose registry knows the given participants, each
// routed to a canned gateway reply.
func newEnv(t *testing.T, ids ...string) *env {
	t.Helper()

	reg := registry.NewInMemoryRegistry()
	mux := gateway.NewMux(nil)
	for _, id := range ids {
		reg.Register(core.Participant{ID: id, Kind: core.KindPersona})
		mux.Route(id, gateway.Static{Content: "reply from " + id})
	}

	sink := audit.NewInMemorySink()
	relay := audit.NewRelay(sink)
	t.Cleanup(relay.Close)

	storage := memory.NewInMemoryStorage()
	mod := moderator.New()
	coordinator := turn.NewCoordinator(mux, mod, relay)
	mgr := NewManager(reg, coordinator, mod, relay, memory.NewRelay(storage), func(o *Options) {
		o.DefaultDeadline = time.Second
	})

	return &env{registry: reg, mux: mux, sink: sink, relay: relay, storage: storage, manager: mgr}
}

// auditActions drains the relay and returns delivered actions for a target.
func (e *env) auditActions(targetID string) []string {
	e.relay.Close()
	var out []string
	for _, ev := range e.sink.ByTarget(targetID) {
		out = append(out, ev.Action)
	}
	return out
}

func TestCreateSessionRejectsEmptyParticipants(t *testing.T) {
	e := newEnv(t)

	_, err := e.manager.CreateSession("alice", "topic", nil, nil)
	require.Error(t, err)
	assert.True(t, core.IsCode(err, core.CodeInvalidParticipants))

	e.relay.Close()
	events := e.sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, core.AuditFailure, events[0].Status)
}

func TestCreateSessionRejectsUnknownParticipants(t *testing.T) {
	e := newEnv(t, "alice")

	_, err := e.manager.CreateSession("alice", "topic", []string{"alice", "ghost"}, nil)
	require.Error(t, err)
	assert.True(t, core.IsCode(err, core.CodeInvalidParticipants))
	assert.Contains(t, err.Error(), "ghost")
	assert.Empty(t, e.manager.ActiveSessions())
}

func TestCreateSessionDefaults(t *testing.T) {
	e := newEnv(t, "alice", "bob")

	id, err := e.manager.CreateSession("alice", "launch review", []string{"alice", "bob", "alice"}, nil)
	require.NoError(t, err)

	sum, err := e.manager.Summary(id)
	require.NoError(t, err)
	assert.Equal(t, "launch review", sum.Topic)
	assert.Equal(t, core.StateActive, sum.State)
	// Duplicate IDs are collapsed.
	assert.Equal(t, 2, sum.Participants)
	assert.Zero(t, sum.Round)
}

func TestCreateSessionRejectsBadWeights(t *testing.T) {
	e := newEnv(t, "alice")

	s := core.DefaultSettings()
	s.Weights = core.RubricWeights{Relevance: 0.9, Confidence: 0.2, Insight: 0.3, Creativity: 0.2}
	_, err := e.manager.CreateSession("alice", "topic", []string{"alice"}, &s)
	require.Error(t, err)
	assert.True(t, core.IsCode(err, core.CodeInvalidSettings))
}

func TestUpdateParticipantsAddAndRemove(t *testing.T) {
	e := newEnv(t, "alice", "bob", "carol")
	id, err := e.manager.CreateSession("alice", "topic", []string{"alice"}, nil)
	require.NoError(t, err)

	require.NoError(t, e.manager.UpdateParticipants("alice", id, []string{"bob", "carol"}, []string{"alice"}))

	log, err := e.manager.GetLog(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol"}, log.Participants)

	actions := e.auditActions(id)
	assert.Contains(t, actions, "session.participants.add")
	assert.Contains(t, actions, "session.participants.remove")
}

func TestUpdateParticipantsRejectsUnknownAdditions(t *testing.T) {
	e := newEnv(t, "alice")
	id, err := e.manager.CreateSession("alice", "topic", []string{"alice"}, nil)
	require.NoError(t, err)

	err = e.manager.UpdateParticipants("alice", id, []string{"ghost"}, nil)
	require.Error(t, err)
	assert.True(t, core.IsCode(err, core.CodeInvalidParticipants))

	log, _ := e.manager.GetLog(id)
	assert.Equal(t, []string{"alice"}, log.Participants)
}

func TestUpdateSettingsPatch(t *testing.T) {
	e := newEnv(t, "alice")
	id, err := e.manager.CreateSession("alice", "topic", []string{"alice"}, nil)
	require.NoError(t, err)

	err = e.manager.UpdateSettings("alice", id, map[string]any{
		"feed_verbosity":    "verbose",
		"insight_threshold": 55,
	})
	require.NoError(t, err)
}

func TestUpdateSettingsRejectsUnknownField(t *testing.T) {
	e := newEnv(t, "alice")
	id, err := e.manager.CreateSession("alice", "topic", []string{"alice"}, nil)
	require.NoError(t, err)

	err = e.manager.UpdateSettings("alice", id, map[string]any{"volume": 11})
	require.Error(t, err)
	assert.True(t, core.IsCode(err, core.CodeInvalidSettings))
}

func TestUpdateSettingsRejectsInvalidWeights(t *testing.T) {
	e := newEnv(t, "alice")
	id, err := e.manager.CreateSession("alice", "topic", []string{"alice"}, nil)
	require.NoError(t, err)

	err = e.manager.UpdateSettings("alice", id, map[string]any{
		"weights": map[string]any{
			"relevance": 0.9, "confidence": 0.2, "insight": 0.3, "creativity": 0.2,
		},
	})
	require.Error(t, err)
	assert.True(t, core.IsCode(err, core.CodeInvalidSettings))
}

func TestUpdateSettingsRejectsPartialWeights(t *testing.T) {
	e := newEnv(t, "alice")
	id, err := e.manager.CreateSession("alice", "topic", []string{"alice"}, nil)
	require.NoError(t, err)

	err = e.manager.UpdateSettings("alice", id, map[string]any{
		"weights": map[string]any{"relevance": 1.0},
	})
	require.Error(t, err)
	assert.True(t, core.IsCode(err, core.CodeInvalidSettings))
}

func TestEndSessionIsIdempotent(t *testing.T) {
	e := newEnv(t, "alice")
	id, err := e.manager.CreateSession("alice", "topic", []string{"alice"}, nil)
	require.NoError(t, err)

	require.NoError(t, e.manager.EndSession("alice", id))
	require.NoError(t, e.manager.EndSession("alice", id))

	log, err := e.manager.GetLog(id)
	require.NoError(t, err)
	assert.Equal(t, core.StateEnded, log.State)

	// Exactly one final writeback.
	assert.Equal(t, 1, e.storage.Len())

	// Further mutations are rejected.
	err = e.manager.UpdateParticipants("alice", id, nil, []string{"alice"})
	assert.True(t, core.IsCode(err, core.CodeSessionEnded))
	err = e.manager.UpdateSettings("alice", id, map[string]any{"feed_verbosity": "minimal"})
	assert.True(t, core.IsCode(err, core.CodeSessionEnded))
}

func TestEndSessionOverwritesCheckpointedRound(t *testing.T) {
	e := newEnv(t, "alice")
	settings := core.DefaultSettings()
	settings.CheckpointInterval = 1
	id, err := e.manager.CreateSession("alice", "topic", []string{"alice"}, &settings)
	require.NoError(t, err)

	// The checkpoint persists round 1 while the session is still active.
	_, err = e.manager.RunTurn(context.Background(), "alice", id, "p", 0)
	require.NoError(t, err)
	require.NoError(t, e.manager.EndSession("alice", id))

	// Ending on a checkpointed round replaces the record, so the durable
	// copy carries the closing state and the session.end audit ref.
	data, err := e.storage.Fetch(memory.Key(id, 1))
	require.NoError(t, err)
	var rec memory.Record
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, core.StateEnded, rec.State)

	log, err := e.manager.GetLog(id)
	require.NoError(t, err)
	assert.ElementsMatch(t, log.AuditRefs, rec.AuditRefs)
}

func TestGetLogUnknownTarget(t *testing.T) {
	e := newEnv(t)

	_, err := e.manager.GetLog("nope")
	assert.True(t, core.IsCode(err, core.CodeSessionNotFound))
}

func TestActiveSessionsExcludesEnded(t *testing.T) {
	e := newEnv(t, "alice")

	first, err := e.manager.CreateSession("alice", "one", []string{"alice"}, nil)
	require.NoError(t, err)
	second, err := e.manager.CreateSession("alice", "two", []string{"alice"}, nil)
	require.NoError(t, err)

	require.NoError(t, e.manager.EndSession("alice", first))

	active := e.manager.ActiveSessions()
	require.Len(t, active, 1)
	assert.Equal(t, second, active[0].ID)
}
