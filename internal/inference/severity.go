package inference

import "github.com/orthoview/kneescan/internal/model"

// Severity thresholds are fixed by clinical policy, not by the model.
// Every call site goes through these two functions so the mapping cannot
// drift between the pipeline, manual result entry and the reconciler.

// SeverityFor maps a model confidence in [0,1] to a severity bucket.
func SeverityFor(confidence float64) string {
	switch {
	case confidence > 0.85:
		return model.SeverityHigh
	case confidence > 0.65:
		return model.SeverityModerate
	default:
		return model.SeverityLow
	}
}

// SeverityForScore is the same mapping on the 0–100 scale used by the
// results table.
func SeverityForScore(score float64) string {
	return SeverityFor(score / 100)
}

// Score converts a model confidence in [0,1] to the 0–100 integer scale
// persisted in the results table.
func Score(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 100
	}
	// Round to the nearest whole point, matching the stored scale.
	return float64(int(confidence*100 + 0.5))
}
