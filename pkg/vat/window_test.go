package vat

import (
	"errors"
	gomath "math"
	"testing"
)

func TestSampleWindowFrameCount(t *testing.T) {
	tests := []struct {
		name   string
		window SampleWindow
		want   int
	}{
		{"one second at 24", SampleWindow{0, 1, 24}, 24},
		{"one second at 30", SampleWindow{0, 1, 30}, 30},
		{"empty window", SampleWindow{0, 0, 24}, 1},
		{"reversed window", SampleWindow{2, 1, 24}, 1},
		{"half second", SampleWindow{0, 0.5, 24}, 12},
		{"four samples", SampleWindow{0, 3.5, 1}, 4},
		{"offset start", SampleWindow{1, 2, 24}, 24},
		{"invalid rate", SampleWindow{0, 1, 0}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.window.FrameCount(); got != tt.want {
				t.Errorf("FrameCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSampleWindowNormalized(t *testing.T) {
	for _, rate := range []float64{0, -5, gomath.NaN(), gomath.Inf(1)} {
		w := SampleWindow{StartTime: 0, EndTime: 1, SampleRate: rate}
		if err := w.Validate(); !errors.Is(err, ErrInvalidSampleRate) {
			t.Errorf("Validate(%v) = %v, want ErrInvalidSampleRate", rate, err)
		}
		out, corrected := w.Normalized()
		if !corrected || out.SampleRate != DefaultSampleRate {
			t.Errorf("Normalized(%v) = %v, %v", rate, out.SampleRate, corrected)
		}
	}

	w := SampleWindow{0, 1, 60}
	if out, corrected := w.Normalized(); corrected || out != w {
		t.Errorf("valid window changed: %+v corrected=%v", out, corrected)
	}
}

func TestSampleWindowTimeAt(t *testing.T) {
	w := SampleWindow{StartTime: 2, EndTime: 3, SampleRate: 4}
	if got := w.TimeAt(0); got != 2 {
		t.Errorf("TimeAt(0) = %v, want 2", got)
	}
	if got := w.TimeAt(3); got != 2.75 {
		t.Errorf("TimeAt(3) = %v, want 2.75", got)
	}
}
