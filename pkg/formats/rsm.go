// Package formats reads and writes the Ragnarok Online RSM model format,
// the node-animated meshes used as bake sources.
package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Faultbox/midgard-vat/pkg/encoding"
)

// RSM format errors.
var (
	ErrInvalidRSMMagic       = errors.New("invalid RSM magic: expected 'GRSM'")
	ErrUnsupportedRSMVersion = errors.New("unsupported RSM version")
	ErrTruncatedRSMData      = errors.New("truncated RSM data")
	ErrInvalidNodeCount      = errors.New("invalid RSM node count")
	ErrInvalidElementCount   = errors.New("invalid RSM element count")
)

const (
	rsmMagic     = "GRSM"
	rsmNameLen   = 40
	maxNodes     = 10000
	maxElements  = 1 << 20
	maxKeyframes = 100000
)

// RSMVersion represents the RSM file version.
type RSMVersion struct {
	Major uint8
	Minor uint8
}

// String returns the version as "Major.Minor".
func (v RSMVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// AtLeast returns true if version is >= major.minor.
func (v RSMVersion) AtLeast(major, minor uint8) bool {
	return v.Major > major || (v.Major == major && v.Minor >= minor)
}

// RSMShadingType represents the shading mode for rendering.
type RSMShadingType int32

const (
	RSMShadingNone   RSMShadingType = 0
	RSMShadingFlat   RSMShadingType = 1
	RSMShadingSmooth RSMShadingType = 2
)

// String returns a human-readable shading type name.
func (s RSMShadingType) String() string {
	switch s {
	case RSMShadingNone:
		return "None"
	case RSMShadingFlat:
		return "Flat"
	case RSMShadingSmooth:
		return "Smooth"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// RSMTexCoord is a texture coordinate with its vertex colour.
type RSMTexCoord struct {
	Color [4]uint8 // BGRA, v1.2+
	U, V  float32
}

// RSMFace is one triangle of a node mesh.
type RSMFace struct {
	VertexIDs   [3]uint16
	TexCoordIDs [3]uint16
	TextureID   uint16
	Padding     uint16
	TwoSide     int32
	SmoothGroup int32 // v1.2+
}

// RSMPosKeyframe is a position keyframe (v < 1.5).
type RSMPosKeyframe struct {
	Frame    int32
	Position [3]float32
}

// RSMRotKeyframe is a rotation keyframe, quaternion stored X, Y, Z, W.
type RSMRotKeyframe struct {
	Frame      int32
	Quaternion [4]float32
}

// RSMScaleKeyframe is a scale keyframe (v >= 1.5).
type RSMScaleKeyframe struct {
	Frame int32
	Scale [3]float32
}

// RSMNode is one node of the model hierarchy.
type RSMNode struct {
	Name       string
	Parent     string
	TextureIDs []int32

	Matrix   [9]float32 // 3x3, column-major
	Offset   [3]float32 // pivot
	Position [3]float32
	RotAngle float32
	RotAxis  [3]float32
	Scale    [3]float32

	Vertices  [][3]float32
	TexCoords []RSMTexCoord
	Faces     []RSMFace

	PosKeys   []RSMPosKeyframe
	RotKeys   []RSMRotKeyframe
	ScaleKeys []RSMScaleKeyframe
}

// RSMVolumeBox is a collision volume.
type RSMVolumeBox struct {
	Size     [3]float32
	Position [3]float32
	Rotation [3]float32
	Flag     int32 // v1.3+
}

// RSM is a parsed model file.
type RSM struct {
	Version     RSMVersion
	AnimLength  int32 // milliseconds
	Shading     RSMShadingType
	Alpha       float32
	Textures    []string
	RootNode    string
	Nodes       []RSMNode
	VolumeBoxes []RSMVolumeBox
}

// rsmReader reads little-endian fields and remembers the first failure.
type rsmReader struct {
	r   *bytes.Reader
	err error
}

func (rd *rsmReader) read(v any) {
	if rd.err != nil {
		return
	}
	if err := binary.Read(rd.r, binary.LittleEndian, v); err != nil {
		rd.err = ErrTruncatedRSMData
	}
}

func (rd *rsmReader) int32() int32 {
	var v int32
	rd.read(&v)
	return v
}

func (rd *rsmReader) name() string {
	buf := make([]byte, rsmNameLen)
	rd.read(buf)
	return encoding.FixedStringToUTF8(buf)
}

// count reads an element count and validates it against limit.
func (rd *rsmReader) count(what string, limit int32) int {
	n := rd.int32()
	if rd.err == nil && (n < 0 || n > limit) {
		rd.err = fmt.Errorf("%w: %d %s", ErrInvalidElementCount, n, what)
	}
	if rd.err != nil {
		return 0
	}
	return int(n)
}

// ParseRSM parses RSM data from a byte slice.
func ParseRSM(data []byte) (*RSM, error) {
	if len(data) < 6 {
		return nil, ErrTruncatedRSMData
	}
	if string(data[:4]) != rsmMagic {
		return nil, ErrInvalidRSMMagic
	}

	rsm := &RSM{Version: RSMVersion{Major: data[4], Minor: data[5]}}
	if rsm.Version.Major < 1 || rsm.Version.Major > 2 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRSMVersion, rsm.Version)
	}

	rd := &rsmReader{r: bytes.NewReader(data[6:])}
	rd.read(&rsm.AnimLength)
	rd.read(&rsm.Shading)

	rsm.Alpha = 1.0
	if rsm.Version.AtLeast(1, 4) {
		var alpha uint8
		rd.read(&alpha)
		rsm.Alpha = float32(alpha) / 255.0
	}

	var reserved [16]byte
	rd.read(&reserved)

	rsm.Textures = make([]string, rd.count("textures", maxElements))
	for i := range rsm.Textures {
		rsm.Textures[i] = rd.name()
	}
	rsm.RootNode = rd.name()

	nodeCount := rd.int32()
	if rd.err != nil {
		return nil, rd.err
	}
	if nodeCount < 0 || nodeCount > maxNodes {
		return nil, fmt.Errorf("%w: %d", ErrInvalidNodeCount, nodeCount)
	}

	rsm.Nodes = make([]RSMNode, nodeCount)
	for i := range rsm.Nodes {
		parseRSMNode(rd, rsm.Version, &rsm.Nodes[i])
		if rd.err != nil {
			return nil, fmt.Errorf("parsing node %d: %w", i, rd.err)
		}
	}

	// Volume boxes are optional trailing data.
	if rd.r.Len() >= 4 {
		rsm.VolumeBoxes = make([]RSMVolumeBox, rd.count("volume boxes", maxElements))
		for i := range rsm.VolumeBoxes {
			box := &rsm.VolumeBoxes[i]
			rd.read(&box.Size)
			rd.read(&box.Position)
			rd.read(&box.Rotation)
			if rsm.Version.AtLeast(1, 3) {
				rd.read(&box.Flag)
			}
		}
		if rd.err != nil {
			return nil, fmt.Errorf("parsing volume boxes: %w", rd.err)
		}
	}

	return rsm, nil
}

func parseRSMNode(rd *rsmReader, version RSMVersion, node *RSMNode) {
	node.Name = rd.name()
	node.Parent = rd.name()

	node.TextureIDs = make([]int32, rd.count("texture ids", maxElements))
	rd.read(node.TextureIDs)

	rd.read(&node.Matrix)
	rd.read(&node.Offset)
	rd.read(&node.Position)
	rd.read(&node.RotAngle)
	rd.read(&node.RotAxis)
	rd.read(&node.Scale)

	node.Vertices = make([][3]float32, rd.count("vertices", maxElements))
	rd.read(node.Vertices)

	node.TexCoords = make([]RSMTexCoord, rd.count("texcoords", maxElements))
	for i := range node.TexCoords {
		tc := &node.TexCoords[i]
		if version.AtLeast(1, 2) {
			rd.read(&tc.Color)
		} else {
			tc.Color = [4]uint8{255, 255, 255, 255}
		}
		rd.read(&tc.U)
		rd.read(&tc.V)
	}

	node.Faces = make([]RSMFace, rd.count("faces", maxElements))
	for i := range node.Faces {
		face := &node.Faces[i]
		rd.read(&face.VertexIDs)
		rd.read(&face.TexCoordIDs)
		rd.read(&face.TextureID)
		rd.read(&face.Padding)
		rd.read(&face.TwoSide)
		if version.AtLeast(1, 2) {
			rd.read(&face.SmoothGroup)
		}
	}

	if !version.AtLeast(1, 5) {
		node.PosKeys = make([]RSMPosKeyframe, rd.count("position keys", maxKeyframes))
		rd.read(node.PosKeys)
	}

	node.RotKeys = make([]RSMRotKeyframe, rd.count("rotation keys", maxKeyframes))
	rd.read(node.RotKeys)

	if version.AtLeast(1, 5) {
		node.ScaleKeys = make([]RSMScaleKeyframe, rd.count("scale keys", maxKeyframes))
		rd.read(node.ScaleKeys)
	}
}

// ParseRSMFile parses an RSM file from disk.
func ParseRSMFile(path string) (*RSM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading RSM file: %w", err)
	}
	return ParseRSM(data)
}

// WriteRSM serializes rsm in the layout ParseRSM reads for rsm.Version.
// Names are encoded to EUC-KR and truncated to 40 bytes.
func WriteRSM(w io.Writer, rsm *RSM) error {
	if rsm.Version.Major < 1 || rsm.Version.Major > 2 {
		return fmt.Errorf("%w: %s", ErrUnsupportedRSMVersion, rsm.Version)
	}
	var buf bytes.Buffer
	put := func(v any) {
		// bytes.Buffer writes never fail.
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}
	name := func(s string) {
		buf.Write(encoding.UTF8ToFixedString(s, rsmNameLen))
	}
	count := func(n int) {
		put(int32(n))
	}

	buf.WriteString(rsmMagic)
	put([2]uint8{rsm.Version.Major, rsm.Version.Minor})
	put(rsm.AnimLength)
	put(rsm.Shading)
	if rsm.Version.AtLeast(1, 4) {
		put(uint8(rsm.Alpha*255 + 0.5))
	}
	put([16]byte{})

	count(len(rsm.Textures))
	for _, tex := range rsm.Textures {
		name(tex)
	}
	name(rsm.RootNode)

	count(len(rsm.Nodes))
	for i := range rsm.Nodes {
		n := &rsm.Nodes[i]
		name(n.Name)
		name(n.Parent)
		count(len(n.TextureIDs))
		put(n.TextureIDs)
		put(n.Matrix)
		put(n.Offset)
		put(n.Position)
		put(n.RotAngle)
		put(n.RotAxis)
		put(n.Scale)

		count(len(n.Vertices))
		put(n.Vertices)

		count(len(n.TexCoords))
		for _, tc := range n.TexCoords {
			if rsm.Version.AtLeast(1, 2) {
				put(tc.Color)
			}
			put(tc.U)
			put(tc.V)
		}

		count(len(n.Faces))
		for _, f := range n.Faces {
			put(f.VertexIDs)
			put(f.TexCoordIDs)
			put(f.TextureID)
			put(f.Padding)
			put(f.TwoSide)
			if rsm.Version.AtLeast(1, 2) {
				put(f.SmoothGroup)
			}
		}

		if !rsm.Version.AtLeast(1, 5) {
			count(len(n.PosKeys))
			put(n.PosKeys)
		}
		count(len(n.RotKeys))
		put(n.RotKeys)
		if rsm.Version.AtLeast(1, 5) {
			count(len(n.ScaleKeys))
			put(n.ScaleKeys)
		}
	}

	count(len(rsm.VolumeBoxes))
	for _, box := range rsm.VolumeBoxes {
		put(box.Size)
		put(box.Position)
		put(box.Rotation)
		if rsm.Version.AtLeast(1, 3) {
			put(box.Flag)
		}
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// TotalVertexCount returns the number of vertices across all nodes.
func (rsm *RSM) TotalVertexCount() int {
	total := 0
	for _, node := range rsm.Nodes {
		total += len(node.Vertices)
	}
	return total
}

// TotalFaceCount returns the number of faces across all nodes.
func (rsm *RSM) TotalFaceCount() int {
	total := 0
	for _, node := range rsm.Nodes {
		total += len(node.Faces)
	}
	return total
}

// NodeByName returns a node by its name, or nil if not found.
func (rsm *RSM) NodeByName(name string) *RSMNode {
	for i := range rsm.Nodes {
		if rsm.Nodes[i].Name == name {
			return &rsm.Nodes[i]
		}
	}
	return nil
}

// Root returns the node named RootNode, falling back to the first node
// without a parent.
func (rsm *RSM) Root() *RSMNode {
	if n := rsm.NodeByName(rsm.RootNode); n != nil {
		return n
	}
	for i := range rsm.Nodes {
		if rsm.Nodes[i].Parent == "" {
			return &rsm.Nodes[i]
		}
	}
	return nil
}

// ChildNodes returns all nodes whose parent is parentName.
func (rsm *RSM) ChildNodes(parentName string) []*RSMNode {
	var children []*RSMNode
	for i := range rsm.Nodes {
		n := &rsm.Nodes[i]
		if n.Parent == parentName && n.Name != parentName {
			children = append(children, n)
		}
	}
	return children
}

// HasAnimation returns true if any node carries keyframes.
func (rsm *RSM) HasAnimation() bool {
	for _, node := range rsm.Nodes {
		if len(node.PosKeys) > 0 || len(node.RotKeys) > 0 || len(node.ScaleKeys) > 0 {
			return true
		}
	}
	return false
}
