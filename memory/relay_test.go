package memory

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorum-ai/quorum/core"
	"github.com/quorum-ai/quorum/internal/testutil"
)

// countingStorage wraps InMemoryStorage and fails the first failures Store
// calls.
type countingStorage struct {
	*InMemoryStorage
	mu       sync.Mutex
	failures int
	stores   int
}

func (s *countingStorage) Store(key string, record []byte) error {
	s.mu.Lock()
	s.stores++
	n := s.stores
	s.mu.Unlock()
	if n <= s.failures {
		return errors.New("storage unavailable")
	}
	return s.InMemoryStorage.Store(key, record)
}

func sampleLog(id string) core.SessionLog {
	r := testutil.NewResponseBuilder("alice").ID("r-a").Content("hello").Build()
	return core.SessionLog{
		ID:           id,
		Topic:        "launch review",
		State:        core.StateActive,
		Participants: []string{"alice", "bob"},
		Turns:        []core.Turn{testutil.NewTurnBuilder(1, "kickoff").Responses(r).Ranking("r-a").Build()},
		AuditRefs:    []string{"ev-1"},
	}
}

func TestWritebackPersistsRecord(t *testing.T) {
	storage := NewInMemoryStorage()
	relay := NewRelay(storage)

	require.NoError(t, relay.Writeback("sess-1", 1, sampleLog("sess-1")))

	rec, err := relay.Fetch("sess-1", 1)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, rec.SchemaVersion)
	assert.Equal(t, "sess-1", rec.ID)
	assert.Equal(t, "launch review", rec.Topic)
	assert.Equal(t, []string{"alice", "bob"}, rec.Participants)
	require.Len(t, rec.Turns, 1)
	assert.Equal(t, "kickoff", rec.Turns[0].Prompt)
	assert.False(t, rec.WrittenAt.IsZero())
}

func TestWritebackIsIdempotentPerRound(t *testing.T) {
	storage := &countingStorage{InMemoryStorage: NewInMemoryStorage()}
	relay := NewRelay(storage)

	require.NoError(t, relay.Writeback("sess-1", 1, sampleLog("sess-1")))
	require.NoError(t, relay.Writeback("sess-1", 1, sampleLog("sess-1")))
	require.NoError(t, relay.Writeback("sess-1", 1, sampleLog("sess-1")))

	assert.Equal(t, 1, storage.stores)

	// A new round is a new key.
	require.NoError(t, relay.Writeback("sess-1", 2, sampleLog("sess-1")))
	assert.Equal(t, 2, storage.stores)
}

func TestWritebackFinalOverwritesCheckpoint(t *testing.T) {
	storage := &countingStorage{InMemoryStorage: NewInMemoryStorage()}
	relay := NewRelay(storage)

	// Checkpoint at round 1, then the entity ends on that same round.
	require.NoError(t, relay.Writeback("sess-1", 1, sampleLog("sess-1")))

	final := sampleLog("sess-1")
	final.State = core.StateEnded
	final.AuditRefs = append(final.AuditRefs, "ev-end")
	require.NoError(t, relay.Writeback("sess-1", 1, final))
	assert.Equal(t, 2, storage.stores)

	rec, err := relay.Fetch("sess-1", 1)
	require.NoError(t, err)
	assert.Equal(t, core.StateEnded, rec.State)
	assert.Contains(t, rec.AuditRefs, "ev-end")
}

func TestWritebackRetriesTransientFailures(t *testing.T) {
	storage := &countingStorage{InMemoryStorage: NewInMemoryStorage(), failures: 2}
	relay := NewRelay(storage, func(o *Options) {
		o.MaxRetries = 3
		o.BaseBackoff = time.Millisecond
	})

	require.NoError(t, relay.Writeback("sess-1", 1, sampleLog("sess-1")))
	assert.Equal(t, 3, storage.stores)
	assert.Equal(t, 1, storage.Len())
}

func TestWritebackReturnsErrorAfterRetryBudget(t *testing.T) {
	storage := &countingStorage{InMemoryStorage: NewInMemoryStorage(), failures: 10}
	relay := NewRelay(storage, func(o *Options) {
		o.MaxRetries = 2
		o.BaseBackoff = time.Millisecond
	})

	err := relay.Writeback("sess-1", 1, sampleLog("sess-1"))
	require.Error(t, err)
	assert.Equal(t, 3, storage.stores)

	// The key was never marked written, so a later attempt stores again.
	storage.mu.Lock()
	storage.failures = 0
	storage.mu.Unlock()
	require.NoError(t, relay.Writeback("sess-1", 1, sampleLog("sess-1")))
	assert.Equal(t, 1, storage.Len())
}

func TestKeyLayout(t *testing.T) {
	assert.Equal(t, "transcript:sess-1:3", Key("sess-1", 3))
}

func TestFetchMissingRecord(t *testing.T) {
	relay := NewRelay(NewInMemoryStorage())

	_, err := relay.Fetch("nope", 1)
	assert.ErrorIs(t, err, core.ErrRecordNotFound)
}
