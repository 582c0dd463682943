package vat

import (
	"fmt"
	gomath "math"
)

// DefaultSampleRate replaces an invalid sample rate.
const DefaultSampleRate = 24.0

// SampleWindow is the time range and rate sampled by one bake.
type SampleWindow struct {
	StartTime  float64 `yaml:"start_time" toml:"start_time"`
	EndTime    float64 `yaml:"end_time" toml:"end_time"`
	SampleRate float64 `yaml:"sample_rate" toml:"sample_rate"`
}

// Validate returns ErrInvalidSampleRate when the rate is not positive and finite.
func (w SampleWindow) Validate() error {
	if gomath.IsNaN(w.SampleRate) || gomath.IsInf(w.SampleRate, 0) || w.SampleRate <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRate, w.SampleRate)
	}
	return nil
}

// Normalized returns the window with an invalid sample rate replaced by
// DefaultSampleRate. corrected reports whether a replacement happened.
func (w SampleWindow) Normalized() (out SampleWindow, corrected bool) {
	if w.Validate() != nil {
		w.SampleRate = DefaultSampleRate
		return w, true
	}
	return w, false
}

// FrameCount returns round((End-Start)*Rate + 0.5), at least 1.
// Ties round to even, so one second at 24 fps yields 24 frames.
func (w SampleWindow) FrameCount() int {
	if w.Validate() != nil {
		return 1
	}
	n := gomath.RoundToEven((w.EndTime-w.StartTime)*w.SampleRate + 0.5)
	if n < 1 || gomath.IsNaN(n) {
		return 1
	}
	return int(n)
}

// TimeAt returns the sample time of frame f.
func (w SampleWindow) TimeAt(f int) float64 {
	return w.StartTime + float64(f)/w.SampleRate
}
