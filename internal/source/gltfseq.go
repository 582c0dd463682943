package source

import (
	"errors"
	"fmt"
	gomath "math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/midgard-vat/pkg/math"
	"github.com/Faultbox/midgard-vat/pkg/vat"
)

// ErrNoFrames is returned when a sequence pattern matches no glTF files.
var ErrNoFrames = errors.New("no glTF frames found")

// GLTFSequence plays a list of glTF/GLB files, one file per frame.
// Files are loaded lazily; only the current frame stays in memory.
type GLTFSequence struct {
	files   []string
	fps     float64
	name    string
	loaded  int
	current []vat.SubMesh
}

// OpenGLTFSequence collects the frames named by pattern, either a
// directory (every .glb and .gltf inside, sorted by name) or a glob.
func OpenGLTFSequence(pattern string, fps float64) (*GLTFSequence, error) {
	if fps <= 0 || gomath.IsNaN(fps) || gomath.IsInf(fps, 0) {
		return nil, fmt.Errorf("%w: sequence rate %v", vat.ErrInvalidSampleRate, fps)
	}

	var files []string
	name := filepath.Base(filepath.Dir(pattern))
	if info, err := os.Stat(pattern); err == nil && info.IsDir() {
		name = filepath.Base(pattern)
		entries, err := os.ReadDir(pattern)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() && isGLTF(e.Name()) {
				files = append(files, filepath.Join(pattern, e.Name()))
			}
		}
	} else {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if isGLTF(m) {
				files = append(files, m)
			}
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFrames, pattern)
	}
	sort.Strings(files)

	return &GLTFSequence{files: files, fps: fps, name: name, loaded: -1}, nil
}

func isGLTF(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".glb", ".gltf":
		return true
	}
	return false
}

// Name returns the sequence directory or pattern base name.
func (s *GLTFSequence) Name() string {
	return s.name
}

// Frames returns the number of files in the sequence.
func (s *GLTFSequence) Frames() int {
	return len(s.files)
}

// Duration ends half a frame after the last file, so a window of this
// length sampled at the sequence rate visits every file exactly once.
func (s *GLTFSequence) Duration() float64 {
	return (float64(len(s.files)) - 0.5) / s.fps
}

// Seek loads the frame nearest to t, clamped to the sequence.
func (s *GLTFSequence) Seek(t float64) error {
	if gomath.IsNaN(t) {
		return fmt.Errorf("invalid time %v", t)
	}
	idx := int(gomath.Round(t * s.fps))
	idx = max(0, min(idx, len(s.files)-1))
	if idx == s.loaded {
		return nil
	}

	doc, err := gltf.Open(s.files[idx])
	if err != nil {
		return fmt.Errorf("frame %d: %w", idx, err)
	}
	subs, err := readSubMeshes(doc)
	if err != nil {
		return fmt.Errorf("frame %d (%s): %w", idx, filepath.Base(s.files[idx]), err)
	}
	s.current, s.loaded = subs, idx
	return nil
}

// SubMeshes returns the geometry of the loaded frame.
func (s *GLTFSequence) SubMeshes() []vat.SubMesh {
	return s.current
}

// readSubMeshes walks the default scene depth first and returns one
// sub-mesh per triangle primitive.
func readSubMeshes(doc *gltf.Document) ([]vat.SubMesh, error) {
	var roots []uint32
	switch {
	case doc.Scene != nil && int(*doc.Scene) < len(doc.Scenes):
		roots = doc.Scenes[*doc.Scene].Nodes
	case len(doc.Scenes) > 0:
		roots = doc.Scenes[0].Nodes
	default:
		for i := range doc.Nodes {
			roots = append(roots, uint32(i))
		}
	}

	var subs []vat.SubMesh
	visited := make(map[uint32]bool)
	var visit func(idx uint32, parent math.Mat4) error
	visit = func(idx uint32, parent math.Mat4) error {
		if int(idx) >= len(doc.Nodes) || visited[idx] {
			return nil
		}
		visited[idx] = true
		node := doc.Nodes[idx]
		world := parent.Mul(localMatrix(node))

		if node.Mesh != nil && int(*node.Mesh) < len(doc.Meshes) {
			mesh := doc.Meshes[*node.Mesh]
			for pi, prim := range mesh.Primitives {
				if prim.Mode != gltf.PrimitiveTriangles {
					continue
				}
				sm, err := readPrimitive(doc, prim)
				if err != nil {
					return fmt.Errorf("mesh %q primitive %d: %w", mesh.Name, pi, err)
				}
				sm.Name = primitiveName(node.Name, mesh.Name, pi)
				sm.LocalToWorld = world
				subs = append(subs, sm)
			}
		}
		for _, child := range node.Children {
			if err := visit(child, world); err != nil {
				return err
			}
		}
		return nil
	}

	for _, r := range roots {
		if err := visit(r, math.Identity()); err != nil {
			return nil, err
		}
	}
	return subs, nil
}

func primitiveName(node, mesh string, i int) string {
	name := node
	if name == "" {
		name = mesh
	}
	if i > 0 {
		name = fmt.Sprintf("%s.%d", name, i)
	}
	return name
}

func localMatrix(n *gltf.Node) math.Mat4 {
	var zero [16]float32
	if n.Matrix != zero {
		m := math.Mat4(n.Matrix)
		if !m.IsIdentity() {
			return m
		}
	}
	rot := math.QuatFromArray(n.Rotation)
	if n.Rotation == [4]float32{} {
		rot = math.QuatIdentity()
	}
	scale := n.Scale
	if scale == [3]float32{} {
		scale = [3]float32{1, 1, 1}
	}
	return math.TRS(n.Translation, rot, scale)
}

func readPrimitive(doc *gltf.Document, prim *gltf.Primitive) (vat.SubMesh, error) {
	var sm vat.SubMesh
	accessor := func(name string) *gltf.Accessor {
		idx, ok := prim.Attributes[name]
		if !ok || int(idx) >= len(doc.Accessors) {
			return nil
		}
		return doc.Accessors[idx]
	}

	acr := accessor("POSITION")
	if acr == nil {
		return sm, errors.New("primitive has no POSITION")
	}
	positions, err := modeler.ReadPosition(doc, acr, nil)
	if err != nil {
		return sm, fmt.Errorf("POSITION: %w", err)
	}
	sm.Positions = make([]math.Vec3, len(positions))
	for i, p := range positions {
		sm.Positions[i] = math.V3(p)
	}

	if acr := accessor("NORMAL"); acr != nil {
		normals, err := modeler.ReadNormal(doc, acr, nil)
		if err != nil {
			return sm, fmt.Errorf("NORMAL: %w", err)
		}
		sm.Normals = make([]math.Vec3, len(normals))
		for i, n := range normals {
			sm.Normals[i] = math.V3(n)
		}
	}

	if acr := accessor("TEXCOORD_0"); acr != nil {
		uvs, err := modeler.ReadTextureCoord(doc, acr, nil)
		if err != nil {
			return sm, fmt.Errorf("TEXCOORD_0: %w", err)
		}
		sm.UVs = make([]math.Vec2, len(uvs))
		for i, uv := range uvs {
			sm.UVs[i] = math.Vec2{X: uv[0], Y: uv[1]}
		}
	}

	if acr := accessor("COLOR_0"); acr != nil {
		colors, err := modeler.ReadColor(doc, acr, nil)
		if err != nil {
			return sm, fmt.Errorf("COLOR_0: %w", err)
		}
		sm.Colors = make([][4]float32, len(colors))
		for i, c := range colors {
			sm.Colors[i] = [4]float32{float32(c[0]) / 255, float32(c[1]) / 255, float32(c[2]) / 255, float32(c[3]) / 255}
		}
	}

	if prim.Indices != nil && int(*prim.Indices) < len(doc.Accessors) {
		sm.Indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return sm, fmt.Errorf("indices: %w", err)
		}
	} else {
		sm.Indices = make([]uint32, len(sm.Positions)/3*3)
		for i := range sm.Indices {
			sm.Indices[i] = uint32(i)
		}
	}
	return sm, nil
}
