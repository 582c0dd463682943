package vat

import (
	"fmt"

	"github.com/Faultbox/midgard-vat/pkg/math"
)

// White is the default vertex colour.
var White = [4]float32{1, 1, 1, 1}

// SubMeshRange records where one source sub-mesh landed in the basis.
type SubMeshRange struct {
	Name   string
	Offset int
	Count  int
}

// MissingAttributes counts vertices that received a default value because
// their sub-mesh lacked a channel other sub-meshes carried.
type MissingAttributes struct {
	Normals int
	UVs     int
	Colors  int
}

// Any reports whether any substitution happened.
func (m MissingAttributes) Any() bool {
	return m.Normals+m.UVs+m.Colors > 0
}

// BasisBuffer is the merged reference mesh. Its vertex order is the vertex
// index space of the whole bake. It is not modified after BuildBasis returns.
type BasisBuffer struct {
	Mode      TopologyMode
	Positions []math.Vec3
	Normals   Channel[math.Vec3]
	UVs       Channel[math.Vec2]
	Colors    Channel[[4]float32]
	Indices   []uint32
	Ranges    []SubMeshRange
	Missing   MissingAttributes
}

// VertexCount returns the number of basis vertices.
func (b *BasisBuffer) VertexCount() int {
	return len(b.Positions)
}

// TriangleCount returns the number of basis triangles.
func (b *BasisBuffer) TriangleCount() int {
	return len(b.Indices) / 3
}

// BuildBasis produces the basis buffer for mode. Fixed topology merges the
// sub-meshes found at window.StartTime; Variable topology allocates a
// triangle soup of 3*maxTriangles sentinel vertices.
func BuildBasis(src Source, window SampleWindow, mode TopologyMode, maxTriangles int) (*BasisBuffer, error) {
	if src == nil {
		return nil, ErrNoSource
	}
	switch mode {
	case TopologyFixed:
		if err := src.Seek(window.StartTime); err != nil {
			return nil, fmt.Errorf("%w: seek to %.4fs: %v", ErrNoSource, window.StartTime, err)
		}
		return mergeSubMeshes(src.SubMeshes()), nil
	case TopologyVariable:
		return triangleSoup(maxTriangles), nil
	default:
		return nil, fmt.Errorf("cannot build basis for topology %s", mode)
	}
}

func mergeSubMeshes(subs []SubMesh) *BasisBuffer {
	var hasNormals, hasUVs, hasColors bool
	total := 0
	for i := range subs {
		hasNormals = hasNormals || subs[i].HasNormals()
		hasUVs = hasUVs || subs[i].HasUVs()
		hasColors = hasColors || subs[i].HasColors()
		total += len(subs[i].Positions)
	}

	b := &BasisBuffer{
		Mode:      TopologyFixed,
		Positions: make([]math.Vec3, 0, total),
		Ranges:    make([]SubMeshRange, 0, len(subs)),
	}
	var normals []math.Vec3
	var uvs []math.Vec2
	var colors [][4]float32
	if hasNormals {
		normals = make([]math.Vec3, 0, total)
	}
	if hasUVs {
		uvs = make([]math.Vec2, 0, total)
	}
	if hasColors {
		colors = make([][4]float32, 0, total)
	}

	offset := 0
	for i := range subs {
		sm := &subs[i]
		n := len(sm.Positions)

		nc := resolve(sm.Normals, n, math.Up)
		uc := resolve(sm.UVs, n, math.Vec2{})
		cc := resolve(sm.Colors, n, White)
		if hasNormals && !nc.IsPresent() {
			b.Missing.Normals += n
		}
		if hasUVs && !uc.IsPresent() {
			b.Missing.UVs += n
		}
		if hasColors && !cc.IsPresent() {
			b.Missing.Colors += n
		}

		b.Positions = append(b.Positions, sm.Positions...)
		for j := 0; j < n; j++ {
			if hasNormals {
				normals = append(normals, nc.At(j))
			}
			if hasUVs {
				uvs = append(uvs, uc.At(j))
			}
			if hasColors {
				colors = append(colors, cc.At(j))
			}
		}
		for _, idx := range sm.Indices {
			b.Indices = append(b.Indices, idx+uint32(offset))
		}

		b.Ranges = append(b.Ranges, SubMeshRange{Name: sm.Name, Offset: offset, Count: n})
		offset += n
	}

	b.Normals = channelFor(hasNormals, normals, math.Up)
	b.UVs = channelFor(hasUVs, uvs, math.Vec2{})
	b.Colors = channelFor(hasColors, colors, White)
	return b
}

func triangleSoup(maxTriangles int) *BasisBuffer {
	n := 3 * max(maxTriangles, 0)
	positions := make([]math.Vec3, n)
	normals := make([]math.Vec3, n)
	indices := make([]uint32, n)
	for i := 0; i < n; i++ {
		normals[i] = math.Up
		indices[i] = uint32(i)
	}
	return &BasisBuffer{
		Mode:      TopologyVariable,
		Positions: positions,
		Normals:   Present(normals),
		UVs:       Absent(math.Vec2{}),
		Colors:    Absent(White),
		Indices:   indices,
		Ranges:    []SubMeshRange{{Name: "soup", Offset: 0, Count: n}},
	}
}

func channelFor[T any](present bool, values []T, def T) Channel[T] {
	if present {
		return Present(values)
	}
	return Absent(def)
}
