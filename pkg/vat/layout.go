package vat

import (
	"fmt"

	"github.com/Faultbox/midgard-vat/pkg/math"
)

// Layout defaults.
const (
	DefaultPadding        = 2
	DefaultMaxTextureSize = 16384
)

// LayoutPlan is the pixel grid of one bake. Vertices are split into Columns
// groups of Height rows; each group spans FrameCount+Padding columns.
type LayoutPlan struct {
	VertexCount int
	FrameCount  int
	Padding     int
	Columns     int
	Height      int
	Width       int
}

// Plan computes the grid for vertexCount vertices over frameCount frames.
func Plan(vertexCount, frameCount, maxTextureDimension, padding int) (LayoutPlan, error) {
	if vertexCount <= 0 || frameCount <= 0 {
		return LayoutPlan{}, fmt.Errorf("%w: %d vertices, %d frames", ErrEmptyLayout, vertexCount, frameCount)
	}
	if padding < 2 {
		return LayoutPlan{}, fmt.Errorf("%w: got %d", ErrInvalidPadding, padding)
	}
	if maxTextureDimension <= 0 {
		return LayoutPlan{}, fmt.Errorf("%w: max dimension %d", ErrLayoutTooLarge, maxTextureDimension)
	}

	columns := max(1, ceilDiv(vertexCount, maxTextureDimension))
	height := ceilDiv(vertexCount, columns)
	stride := frameCount + padding
	width := columns * stride

	if width > maxTextureDimension || height > maxTextureDimension {
		return LayoutPlan{}, fmt.Errorf("%w: need %dx%d for %d vertices x %d frames, max %d",
			ErrLayoutTooLarge, width, height, vertexCount, frameCount, maxTextureDimension)
	}

	return LayoutPlan{
		VertexCount: vertexCount,
		FrameCount:  frameCount,
		Padding:     padding,
		Columns:     columns,
		Height:      height,
		Width:       width,
	}, nil
}

// Stride returns the width of one column group.
func (p LayoutPlan) Stride() int {
	return p.FrameCount + p.Padding
}

// Pixel returns the texel holding vertex v at frame f.
func (p LayoutPlan) Pixel(f, v int) (x, y int) {
	return f + (v/p.Height)*p.Stride(), v % p.Height
}

// Invert maps a texel back to (frame, vertex). ok is false for padding
// columns and for texels past the last vertex.
func (p LayoutPlan) Invert(x, y int) (f, v int, ok bool) {
	if x < 0 || y < 0 || x >= p.Width || y >= p.Height {
		return 0, 0, false
	}
	group := x / p.Stride()
	f = x % p.Stride()
	v = group*p.Height + y
	if f >= p.FrameCount || v >= p.VertexCount {
		return 0, 0, false
	}
	return f, v, true
}

// UV2 returns the texture coordinate of the centre of vertex v's frame-0 texel.
func (p LayoutPlan) UV2(v int) math.Vec2 {
	x, y := p.Pixel(0, v)
	return math.Vec2{
		X: (float32(x) + 0.5) / float32(p.Width),
		Y: (float32(y) + 0.5) / float32(p.Height),
	}
}

// UV2s returns UV2 for every vertex of the plan.
func (p LayoutPlan) UV2s() []math.Vec2 {
	out := make([]math.Vec2, p.VertexCount)
	for v := range out {
		out[v] = p.UV2(v)
	}
	return out
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
