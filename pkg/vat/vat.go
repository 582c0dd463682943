// Package vat bakes time-sampled mesh animation into vertex animation
// textures: a position image, an optional normal image, a basis mesh whose
// vertex order addresses the images, and a descriptor for the decoder.
//
// The pipeline is Classify, BuildBasis, Plan, Encode and Emit. Classifier and
// Encoder are step-wise: each Next call performs one frame of work so the
// caller can report progress and stop between frames.
package vat

import (
	"errors"

	"github.com/Faultbox/midgard-vat/pkg/math"
)

// Pipeline errors.
var (
	ErrNoSource          = errors.New("no geometry source")
	ErrLayoutTooLarge    = errors.New("VAT layout exceeds maximum texture size")
	ErrEmptyLayout       = errors.New("VAT layout needs at least one vertex and one frame")
	ErrInvalidPadding    = errors.New("frame padding must be at least 2 columns")
	ErrInvalidSampleRate = errors.New("sample rate must be positive and finite")
	ErrCanceled          = errors.New("bake canceled")
)

// Source is a time-seekable animated geometry provider. It exposes a single
// mutable time cursor: Seek must settle before SubMeshes reflects the new
// time, and callers never interleave two passes over the same Source.
type Source interface {
	// Seek moves the cursor to time t in seconds.
	Seek(t float64) error
	// SubMeshes returns the geometry at the current cursor, in a stable
	// enumeration order.
	SubMeshes() []SubMesh
}

// Durationer is implemented by sources that know their animation length.
type Durationer interface {
	Duration() float64
}

// SubMesh is one indexed triangle mesh as read from a Source.
// Normals, UVs and Colors are optional and may be nil.
type SubMesh struct {
	Name         string
	Positions    []math.Vec3
	Normals      []math.Vec3
	UVs          []math.Vec2
	Colors       [][4]float32
	Indices      []uint32
	LocalToWorld math.Mat4
}

// TriangleCount returns the number of whole triangles in the index list.
func (m *SubMesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// HasNormals reports whether every vertex carries a normal.
func (m *SubMesh) HasNormals() bool {
	return len(m.Normals) == len(m.Positions) && len(m.Positions) > 0
}

// HasUVs reports whether every vertex carries a texture coordinate.
func (m *SubMesh) HasUVs() bool {
	return len(m.UVs) == len(m.Positions) && len(m.Positions) > 0
}

// HasColors reports whether every vertex carries a colour.
func (m *SubMesh) HasColors() bool {
	return len(m.Colors) == len(m.Positions) && len(m.Positions) > 0
}
