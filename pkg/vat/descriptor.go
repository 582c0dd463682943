package vat

import (
	"fmt"
	"io"
	gomath "math"

	"github.com/goccy/go-json"
)

// Descriptor is the JSON sidecar a decoder needs to sample the textures.
type Descriptor struct {
	VertexCount       int        `json:"vertexCount"`
	FrameCount        int        `json:"frameCount"`
	FPS               int        `json:"fps"`
	SampleRate        float64    `json:"sampleRate"`
	TexWidth          int        `json:"texWidth"`
	TexHeight         int        `json:"texHeight"`
	Columns           int        `json:"columns"`
	FrameStride       int        `json:"frameStride"`
	Padding           int        `json:"padding"`
	StoreDelta        bool       `json:"storeDelta"`
	NormalsCompressed bool       `json:"normalsCompressed"`
	Unlit             bool       `json:"unlit"`
	Topology          string     `json:"topology"`
	BoundsMin         [3]float32 `json:"boundsMin"`
	BoundsMax         [3]float32 `json:"boundsMax"`
}

// Emit builds the descriptor from the values the encoder actually used.
func Emit(plan LayoutPlan, mode TopologyMode, opts Options, frameCount int, sampleRate float64, bounds Bounds) Descriptor {
	d := Descriptor{
		VertexCount:       plan.VertexCount,
		FrameCount:        frameCount,
		FPS:               int(gomath.RoundToEven(sampleRate)),
		SampleRate:        sampleRate,
		TexWidth:          plan.Width,
		TexHeight:         plan.Height,
		Columns:           plan.Columns,
		FrameStride:       plan.Stride(),
		Padding:           plan.Padding,
		StoreDelta:        mode != TopologyVariable,
		NormalsCompressed: opts.CompressNormal && !opts.Unlit,
		Unlit:             opts.Unlit,
		Topology:          mode.String(),
	}
	if !bounds.IsEmpty() {
		d.BoundsMin = bounds.Min.Array()
		d.BoundsMax = bounds.Max.Array()
	}
	return d
}

// Pixel is the decoder-side address of vertex v at frame f, derived from
// descriptor fields alone.
func (d Descriptor) Pixel(f, v int) (x, y int) {
	return f + (v/d.TexHeight)*d.FrameStride, v % d.TexHeight
}

// Validate checks that the descriptor fields agree with each other.
func (d Descriptor) Validate() error {
	switch {
	case d.VertexCount <= 0 || d.FrameCount <= 0:
		return fmt.Errorf("%w: %d vertices, %d frames", ErrEmptyLayout, d.VertexCount, d.FrameCount)
	case d.Padding < 2:
		return fmt.Errorf("%w: got %d", ErrInvalidPadding, d.Padding)
	case d.FrameStride != d.FrameCount+d.Padding:
		return fmt.Errorf("frameStride %d != frameCount %d + padding %d", d.FrameStride, d.FrameCount, d.Padding)
	case d.TexWidth != d.Columns*d.FrameStride:
		return fmt.Errorf("texWidth %d != columns %d * frameStride %d", d.TexWidth, d.Columns, d.FrameStride)
	case d.TexHeight <= 0 || d.Columns*d.TexHeight < d.VertexCount:
		return fmt.Errorf("%d columns of height %d cannot hold %d vertices", d.Columns, d.TexHeight, d.VertexCount)
	}
	mode, err := ParseTopologyMode(d.Topology)
	if err != nil {
		return err
	}
	if d.StoreDelta != (mode != TopologyVariable) {
		return fmt.Errorf("storeDelta %v does not match topology %s", d.StoreDelta, mode)
	}
	return nil
}

// WriteDescriptor writes d as indented JSON.
func WriteDescriptor(w io.Writer, d Descriptor) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// ReadDescriptor parses a descriptor written by WriteDescriptor.
func ReadDescriptor(r io.Reader) (Descriptor, error) {
	var d Descriptor
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return Descriptor{}, fmt.Errorf("decode descriptor: %w", err)
	}
	return d, nil
}
