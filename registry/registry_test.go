package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorum-ai/quorum/core"
)

func TestRegisterAndGet(t *testing.T) {
	r := NewInMemoryRegistry()

	r.Register(core.Participant{ID: "alice", Name: "Alice", Kind: core.KindPersona})

	p, ok := r.Get("alice")
	require.True(t, ok)
	assert.Equal(t, "Alice", p.Name)
	assert.Equal(t, core.KindPersona, p.Kind)
	assert.False(t, p.Registered.IsZero())

	_, ok = r.Get("nobody")
	assert.False(t, ok)
}

func TestRegisterKeepsExplicitTimestamp(t *testing.T) {
	r := NewInMemoryRegistry()
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	r.Register(core.Participant{ID: "alice", Registered: ts})

	p, _ := r.Get("alice")
	assert.Equal(t, ts, p.Registered)
}

func TestListIsSortedByID(t *testing.T) {
	r := NewInMemoryRegistry()
	r.Register(core.Participant{ID: "carol"})
	r.Register(core.Participant{ID: "alice"})
	r.Register(core.Participant{ID: "bob"})

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "alice", list[0].ID)
	assert.Equal(t, "bob", list[1].ID)
	assert.Equal(t, "carol", list[2].ID)
}

func TestDeregister(t *testing.T) {
	r := NewInMemoryRegistry()
	r.Register(core.Participant{ID: "alice"})

	r.Deregister("alice")
	_, ok := r.Get("alice")
	assert.False(t, ok)

	// Deregistering twice is a no-op.
	r.Deregister("alice")
}

func TestUnknownPreservesInputOrder(t *testing.T) {
	r := NewInMemoryRegistry()
	r.Register(core.Participant{ID: "alice"})

	missing := r.Unknown([]string{"zed", "alice", "bob"})
	assert.Equal(t, []string{"zed", "bob"}, missing)

	assert.Empty(t, r.Unknown([]string{"alice"}))
}
