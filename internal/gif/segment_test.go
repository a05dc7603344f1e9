package gif

import (
	"math"
	"testing"
)

func TestNormalizeSegment(t *testing.T) {
	tests := []struct {
		name         string
		start, end   float64
		duration     float64
		wantStart    float64
		wantDuration float64
	}{
		{"plain range", 1, 3, 10, 1, 2},
		{"from zero", 0, 2, 10, 0, 2},
		{"negative start clamps to zero", -5, 2, 10, 0, 2},
		{"end past duration keeps requested span", 8, 12, 10, 8, 4},
		{"start past duration clamps", 15, 20, 10, 10, 10},
		{"inverted range is corrected", 5, 4, 10, 3.9, 0.1},
		{"equal start and end", 2, 2, 10, 1.9, 0.1},
		{"tiny range stretches to minimum", 1, 1.01, 10, 0.91, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeSegment(tt.start, tt.end, tt.duration)
			if !closeTo(got.StartSec, tt.wantStart) {
				t.Errorf("StartSec = %v, want %v", got.StartSec, tt.wantStart)
			}
			if !closeTo(got.DurationSec, tt.wantDuration) {
				t.Errorf("DurationSec = %v, want %v", got.DurationSec, tt.wantDuration)
			}
		})
	}
}

// TestNormalizeSegment_Invariants sweeps a grid of inputs, including
// degenerate and inverted ranges, and checks the guarantees hold for all of
// them: start >= 0, duration >= MinSegmentSec, and the segment does not
// extend past the media except by the enforced minimum.
func TestNormalizeSegment_Invariants(t *testing.T) {
	values := []float64{-3, 0, 0.05, 0.1, 0.5, 1, 2.5, 9.99, 10, 11, 100}
	durations := []float64{0.1, 1, 10, 60}

	for _, duration := range durations {
		for _, start := range values {
			for _, end := range values {
				got := NormalizeSegment(start, end, duration)

				if got.StartSec < 0 {
					t.Fatalf("normalize(%v, %v, %v): negative start %v", start, end, duration, got.StartSec)
				}
				if got.DurationSec < MinSegmentSec {
					t.Fatalf("normalize(%v, %v, %v): duration %v below minimum", start, end, duration, got.DurationSec)
				}
				limit := math.Max(duration, got.StartSec+MinSegmentSec)
				if end <= duration && got.StartSec+got.DurationSec > limit+1e-9 {
					t.Fatalf("normalize(%v, %v, %v): segment [%v, %v) exceeds media", start, end, duration, got.StartSec, got.StartSec+got.DurationSec)
				}
			}
		}
	}
}

func closeTo(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}
