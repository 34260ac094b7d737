package inference

import (
	"testing"

	"github.com/orthoview/kneescan/internal/model"
)

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		want       string
	}{
		{name: "well above high cutoff", confidence: 0.99, want: model.SeverityHigh},
		{name: "just above high cutoff", confidence: 0.851, want: model.SeverityHigh},
		{name: "exactly high cutoff", confidence: 0.85, want: model.SeverityModerate},
		{name: "mid moderate band", confidence: 0.75, want: model.SeverityModerate},
		{name: "just above moderate cutoff", confidence: 0.651, want: model.SeverityModerate},
		{name: "exactly moderate cutoff", confidence: 0.65, want: model.SeverityLow},
		{name: "clearly low", confidence: 0.3, want: model.SeverityLow},
		{name: "zero", confidence: 0, want: model.SeverityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SeverityFor(tt.confidence); got != tt.want {
				t.Errorf("SeverityFor(%v) = %q, want %q", tt.confidence, got, tt.want)
			}
		})
	}
}

func TestSeverityForScore(t *testing.T) {
	// The 0-100 scale must land in the same buckets as the raw
	// confidence it was derived from.
	tests := []struct {
		score float64
		want  string
	}{
		{score: 90, want: model.SeverityHigh},
		{score: 85, want: model.SeverityModerate},
		{score: 70, want: model.SeverityModerate},
		{score: 65, want: model.SeverityLow},
		{score: 10, want: model.SeverityLow},
	}
	for _, tt := range tests {
		if got := SeverityForScore(tt.score); got != tt.want {
			t.Errorf("SeverityForScore(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		confidence float64
		want       float64
	}{
		{confidence: 0.874, want: 87},
		{confidence: 0.875, want: 88},
		{confidence: 1, want: 100},
		{confidence: 0, want: 0},
		{confidence: -0.2, want: 0},
		{confidence: 1.4, want: 100},
	}
	for _, tt := range tests {
		if got := Score(tt.confidence); got != tt.want {
			t.Errorf("Score(%v) = %v, want %v", tt.confidence, got, tt.want)
		}
	}
}
