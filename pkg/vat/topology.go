package vat

import (
	"context"
	"fmt"
)

// TopologyMode describes whether triangle count is stable across a bake.
type TopologyMode int

const (
	TopologyUndefined TopologyMode = iota // not classified yet, or classification failed
	TopologyAnalysing                     // classification in progress
	TopologyFixed                         // identical triangle count on every frame
	TopologyVariable                      // triangle count changes between frames
)

// String returns a human-readable topology name.
func (m TopologyMode) String() string {
	switch m {
	case TopologyUndefined:
		return "Undefined"
	case TopologyAnalysing:
		return "Analysing"
	case TopologyFixed:
		return "Fixed"
	case TopologyVariable:
		return "Variable"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}

// ParseTopologyMode is the inverse of String.
func ParseTopologyMode(s string) (TopologyMode, error) {
	for m := TopologyUndefined; m <= TopologyVariable; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return TopologyUndefined, fmt.Errorf("unknown topology mode %q", s)
}

// ProgressFunc receives completed and total frame counts after each step.
type ProgressFunc func(done, total int)

// Classification is the outcome of a topology scan.
type Classification struct {
	Mode         TopologyMode
	MaxTriangles int
	MinTriangles int
	Frames       int
}

// Classifier scans a source one frame per Next call.
type Classifier struct {
	src    Source
	window SampleWindow
	total  int
	done   int
	maxTri int
	minTri int
	err    error
}

// NewClassifier prepares a scan of src over window. An invalid sample rate
// is replaced by DefaultSampleRate.
func NewClassifier(src Source, window SampleWindow) *Classifier {
	window, _ = window.Normalized()
	return &Classifier{
		src:    src,
		window: window,
		total:  window.FrameCount(),
		minTri: -1,
	}
}

// Next samples one frame. It returns false when the scan is complete or
// failed; check Err afterwards.
func (c *Classifier) Next() bool {
	if c.err != nil || c.done >= c.total {
		return false
	}
	if c.src == nil {
		c.err = ErrNoSource
		return false
	}

	t := c.window.TimeAt(c.done)
	if err := c.src.Seek(t); err != nil {
		c.err = fmt.Errorf("%w: seek to %.4fs: %v", ErrNoSource, t, err)
		return false
	}

	triangles := 0
	for _, sm := range c.src.SubMeshes() {
		triangles += sm.TriangleCount()
	}
	c.maxTri = max(c.maxTri, triangles)
	if c.minTri < 0 || triangles < c.minTri {
		c.minTri = triangles
	}

	c.done++
	return true
}

// Err returns the error that stopped the scan, if any.
func (c *Classifier) Err() error {
	return c.err
}

// Done returns the number of frames scanned.
func (c *Classifier) Done() int {
	return c.done
}

// Total returns the number of frames the scan covers.
func (c *Classifier) Total() int {
	return c.total
}

// Mode returns the current classification. It is Analysing until every
// frame has been scanned and Undefined after a failure.
func (c *Classifier) Mode() TopologyMode {
	switch {
	case c.err != nil:
		return TopologyUndefined
	case c.done < c.total:
		return TopologyAnalysing
	case c.maxTri == c.minTri:
		return TopologyFixed
	default:
		return TopologyVariable
	}
}

// Result returns the completed classification.
func (c *Classifier) Result() (Classification, error) {
	if c.err != nil {
		return Classification{Mode: TopologyUndefined}, c.err
	}
	if c.done < c.total {
		return Classification{Mode: TopologyAnalysing}, fmt.Errorf("classification incomplete: %d/%d frames", c.done, c.total)
	}
	return Classification{
		Mode:         c.Mode(),
		MaxTriangles: c.maxTri,
		MinTriangles: c.minTri,
		Frames:       c.total,
	}, nil
}

// Classify runs a full scan, checking ctx between frames.
func Classify(ctx context.Context, src Source, window SampleWindow, progress ProgressFunc) (Classification, error) {
	c := NewClassifier(src, window)
	for {
		if err := ctx.Err(); err != nil {
			return Classification{Mode: TopologyUndefined}, fmt.Errorf("%w: %w", ErrCanceled, err)
		}
		if !c.Next() {
			break
		}
		if progress != nil {
			progress(c.Done(), c.Total())
		}
	}
	return c.Result()
}
