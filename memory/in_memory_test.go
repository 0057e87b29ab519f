package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorum-ai/quorum/core"
)

func TestInMemoryStorageRoundTrip(t *testing.T) {
	s := NewInMemoryStorage()

	require.NoError(t, s.Store("k1", []byte("v1")))
	got, err := s.Fetch("k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	// Mutating the fetched copy leaves stored state untouched.
	got[0] = 'x'
	again, err := s.Fetch("k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), again)
}

func TestInMemoryStorageMissingKey(t *testing.T) {
	s := NewInMemoryStorage()

	_, err := s.Fetch("missing")
	assert.ErrorIs(t, err, core.ErrRecordNotFound)
}

func TestInMemoryStoragePurge(t *testing.T) {
	s := NewInMemoryStorage()

	require.NoError(t, s.Store("k1", []byte("v1")))
	require.NoError(t, s.Purge("k1"))
	_, err := s.Fetch("k1")
	assert.ErrorIs(t, err, core.ErrRecordNotFound)

	// Purging a missing key is a no-op.
	assert.NoError(t, s.Purge("k1"))
	assert.Zero(t, s.Len())
}
