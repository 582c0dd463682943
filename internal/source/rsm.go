package source

import (
	"fmt"
	gomath "math"
	"path"
	"path/filepath"
	"strings"

	"github.com/Faultbox/midgard-vat/internal/assets"
	"github.com/Faultbox/midgard-vat/pkg/formats"
	"github.com/Faultbox/midgard-vat/pkg/math"
	"github.com/Faultbox/midgard-vat/pkg/vat"
)

// roToWorld flips Y, RO models are authored Y-down.
var roToWorld = math.Scale(1, -1, 1)

// RSM samples a node-animated RSM model. Each node with faces becomes one
// sub-mesh of unshared triangle corners, so normals stay per face.
type RSM struct {
	model   *formats.RSM
	name    string
	current []vat.SubMesh
}

// NewRSM wraps a parsed model. The cursor starts at time zero.
func NewRSM(model *formats.RSM, name string) *RSM {
	s := &RSM{model: model, name: name}
	s.current = s.build(0)
	return s
}

// OpenRSM parses a model file from disk.
func OpenRSM(filename string) (*RSM, error) {
	model, err := formats.ParseRSMFile(filename)
	if err != nil {
		return nil, err
	}
	return NewRSM(model, filepath.Base(filename)), nil
}

// OpenRSMFromGRF reads a model out of a GRF archive. archives may list
// several files joined by the OS path list separator; later ones win.
func OpenRSMFromGRF(archives, entry string) (*RSM, error) {
	set, err := assets.Open(filepath.SplitList(archives)...)
	if err != nil {
		return nil, err
	}
	defer set.Close()

	data, err := set.Read(entry)
	if err != nil {
		return nil, err
	}
	model, err := formats.ParseRSM(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", entry, err)
	}
	return NewRSM(model, path.Base(strings.ReplaceAll(entry, "\\", "/"))), nil
}

// Name returns the model file name.
func (s *RSM) Name() string {
	return s.name
}

// Model returns the parsed model.
func (s *RSM) Model() *formats.RSM {
	return s.model
}

// Duration returns the animation length in seconds.
func (s *RSM) Duration() float64 {
	return float64(s.model.AnimLength) / 1000
}

// Seek evaluates the node hierarchy at t seconds. Time wraps at the
// animation length.
func (s *RSM) Seek(t float64) error {
	if gomath.IsNaN(t) || gomath.IsInf(t, 0) {
		return fmt.Errorf("invalid time %v", t)
	}
	ms := t * 1000
	if length := float64(s.model.AnimLength); length > 0 {
		ms = gomath.Mod(ms, length)
		if ms < 0 {
			ms += length
		}
	}
	s.current = s.build(float32(ms))
	return nil
}

// SubMeshes returns the geometry at the current cursor.
func (s *RSM) SubMeshes() []vat.SubMesh {
	return s.current
}

func (s *RSM) build(timeMs float32) []vat.SubMesh {
	var subs []vat.SubMesh
	for i := range s.model.Nodes {
		node := &s.model.Nodes[i]
		if len(node.Faces) == 0 {
			continue
		}
		if sm, ok := s.buildNode(node, timeMs); ok {
			subs = append(subs, sm)
		}
	}
	return subs
}

func (s *RSM) buildNode(node *formats.RSMNode, timeMs float32) (vat.SubMesh, bool) {
	m := s.nodeMatrix(node, timeMs)
	sm := vat.SubMesh{Name: node.Name, LocalToWorld: roToWorld}

	addCorner := func(face *formats.RSMFace, j int, normal math.Vec3) {
		v := node.Vertices[face.VertexIDs[j]]
		sm.Positions = append(sm.Positions, math.V3(m.TransformPoint(v)))
		sm.Normals = append(sm.Normals, normal)

		var uv math.Vec2
		color := vat.White
		if tc := int(face.TexCoordIDs[j]); tc < len(node.TexCoords) {
			uv = math.Vec2{X: node.TexCoords[tc].U, Y: node.TexCoords[tc].V}
			c := node.TexCoords[tc].Color
			color = [4]float32{float32(c[0]) / 255, float32(c[1]) / 255, float32(c[2]) / 255, float32(c[3]) / 255}
		}
		sm.UVs = append(sm.UVs, uv)
		sm.Colors = append(sm.Colors, color)
		sm.Indices = append(sm.Indices, uint32(len(sm.Indices)))
	}

	for fi := range node.Faces {
		face := &node.Faces[fi]
		if !validFace(face, len(node.Vertices)) {
			continue
		}

		p0 := math.V3(m.TransformPoint(node.Vertices[face.VertexIDs[0]]))
		p1 := math.V3(m.TransformPoint(node.Vertices[face.VertexIDs[1]]))
		p2 := math.V3(m.TransformPoint(node.Vertices[face.VertexIDs[2]]))
		// Degenerate faces keep their corners so the count never changes.
		normal := p1.Sub(p0).Cross(p2.Sub(p0)).NormalizeOr(math.Up)

		for j := 0; j < 3; j++ {
			addCorner(face, j, normal)
		}
		if face.TwoSide != 0 {
			back := normal.Scale(-1)
			for j := 2; j >= 0; j-- {
				addCorner(face, j, back)
			}
		}
	}
	return sm, len(sm.Positions) > 0
}

func validFace(face *formats.RSMFace, vertexCount int) bool {
	for _, vid := range face.VertexIDs {
		if int(vid) >= vertexCount {
			return false
		}
	}
	return true
}
