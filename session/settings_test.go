package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorum-ai/quorum/core"
)

func TestMergeSettingsAppliesKnownFields(t *testing.T) {
	base := core.DefaultSettings()

	merged, err := mergeSettings(base, map[string]any{
		"feed_verbosity":      "verbose",
		"insight_threshold":   60,
		"checkpoint_interval": 10,
		"weights": map[string]any{
			"relevance": 0.25, "confidence": 0.25, "insight": 0.25, "creativity": 0.25,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "verbose", merged.FeedVerbosity)
	assert.Equal(t, 60.0, merged.InsightThreshold)
	assert.Equal(t, 10, merged.CheckpointInterval)
	assert.Equal(t, 0.25, merged.Weights.Relevance)

	// The base is untouched.
	assert.Equal(t, core.DefaultSettings(), base)
}

func TestMergeSettingsRejectsUnknownKey(t *testing.T) {
	_, err := mergeSettings(core.DefaultSettings(), map[string]any{"loudness": 3})
	require.Error(t, err)
	assert.True(t, core.IsCode(err, core.CodeInvalidSettings))
}

func TestMergeSettingsRejectsWrongTypes(t *testing.T) {
	base := core.DefaultSettings()

	_, err := mergeSettings(base, map[string]any{"feed_verbosity": 3})
	assert.True(t, core.IsCode(err, core.CodeInvalidSettings))

	_, err = mergeSettings(base, map[string]any{"insight_threshold": "high"})
	assert.True(t, core.IsCode(err, core.CodeInvalidSettings))

	_, err = mergeSettings(base, map[string]any{"checkpoint_interval": 2.5})
	assert.True(t, core.IsCode(err, core.CodeInvalidSettings))

	_, err = mergeSettings(base, map[string]any{"weights": "heavy"})
	assert.True(t, core.IsCode(err, core.CodeInvalidSettings))
}

func TestMergeSettingsWeightsRequireAllDimensions(t *testing.T) {
	base := core.DefaultSettings()

	_, err := mergeSettings(base, map[string]any{
		"weights": map[string]any{"relevance": 0.5, "confidence": 0.5},
	})
	require.Error(t, err)
	assert.True(t, core.IsCode(err, core.CodeInvalidSettings))

	_, err = mergeSettings(base, map[string]any{
		"weights": map[string]any{
			"relevance": 0.25, "confidence": 0.25, "insight": 0.25, "creativity": 0.25, "sparkle": 0.0,
		},
	})
	require.Error(t, err)
	assert.True(t, core.IsCode(err, core.CodeInvalidSettings))
}

func TestMergeSettingsCoercesNumericTypes(t *testing.T) {
	merged, err := mergeSettings(core.DefaultSettings(), map[string]any{
		"insight_threshold":   float64(45.5),
		"checkpoint_interval": int64(3),
	})
	require.NoError(t, err)
	assert.Equal(t, 45.5, merged.InsightThreshold)
	assert.Equal(t, 3, merged.CheckpointInterval)
}
