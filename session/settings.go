package session

import (
	"github.com/quorum-ai/quorum/core"
)

// mergeSettings applies a field patch to existing settings. Patches arrive
// as loosely-typed maps (the external operation surface is JSON-shaped);
// every key must be one of the known settings fields and every value must
// coerce to the field's type, otherwise the merge fails with
// InvalidSettings and the original settings are untouched.
func mergeSettings(base core.Settings, patch map[string]any) (core.Settings, error) {
	merged := base
	for key, raw := range patch {
		if !settingsPatchKeys[key] {
			return core.Settings{}, core.NewError(core.CodeInvalidSettings, "unknown settings field %q", key)
		}
		switch key {
		case "feed_verbosity":
			v, ok := raw.(string)
			if !ok {
				return core.Settings{}, core.NewError(core.CodeInvalidSettings, "feed_verbosity must be a string")
			}
			merged.FeedVerbosity = v
		case "insight_threshold":
			v, ok := toFloat(raw)
			if !ok {
				return core.Settings{}, core.NewError(core.CodeInvalidSettings, "insight_threshold must be a number")
			}
			merged.InsightThreshold = v
		case "checkpoint_interval":
			v, ok := toFloat(raw)
			if !ok || v != float64(int(v)) {
				return core.Settings{}, core.NewError(core.CodeInvalidSettings, "checkpoint_interval must be an integer")
			}
			merged.CheckpointInterval = int(v)
		case "weights":
			w, err := toWeights(raw)
			if err != nil {
				return core.Settings{}, err
			}
			merged.Weights = w
		}
	}
	return merged, nil
}

// toWeights coerces a patch value into rubric weights. All four dimensions
// must be present so a partial weight patch cannot silently skew the sum.
func toWeights(raw any) (core.RubricWeights, error) {
	mp, ok := raw.(map[string]any)
	if !ok {
		return core.RubricWeights{}, core.NewError(core.CodeInvalidSettings, "weights must be an object with the four rubric dimensions")
	}
	var w core.RubricWeights
	fields := map[string]*float64{
		"relevance":  &w.Relevance,
		"confidence": &w.Confidence,
		"insight":    &w.Insight,
		"creativity": &w.Creativity,
	}
	if len(mp) != len(fields) {
		return core.RubricWeights{}, core.NewError(core.CodeInvalidSettings, "weights must name exactly the four rubric dimensions")
	}
	for name, dst := range fields {
		raw, ok := mp[name]
		if !ok {
			return core.RubricWeights{}, core.NewError(core.CodeInvalidSettings, "weights missing dimension %q", name)
		}
		v, ok := toFloat(raw)
		if !ok {
			return core.RubricWeights{}, core.NewError(core.CodeInvalidSettings, "weight %q must be a number", name)
		}
		*dst = v
	}
	return w, nil
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
