package export

import (
	"os"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/midgard-vat/pkg/math"
	"github.com/Faultbox/midgard-vat/pkg/vat"
)

// writeBasisGLB writes the basis mesh with TEXCOORD_1 holding each vertex's
// frame-0 texel centre. The textures must be sampled with point filtering.
func writeBasisGLB(path, name string, basis *vat.BasisBuffer, plan vat.LayoutPlan) error {
	doc := gltf.NewDocument()
	n := basis.VertexCount()

	positions := make([][3]float32, n)
	for i, p := range basis.Positions {
		positions[i] = p.Array()
	}
	uv2 := make([][2]float32, n)
	for i, uv := range plan.UV2s() {
		uv2[i] = [2]float32{uv.X, uv.Y}
	}

	attributes := map[string]uint32{
		"POSITION":   modeler.WritePosition(doc, positions),
		"TEXCOORD_1": modeler.WriteTextureCoord(doc, uv2),
	}
	if basis.Normals.IsPresent() {
		normals := make([][3]float32, n)
		for i := range normals {
			normals[i] = basis.Normals.At(i).NormalizeOr(math.Up).Array()
		}
		attributes["NORMAL"] = modeler.WriteNormal(doc, normals)
	}
	// TEXCOORD_1 requires a TEXCOORD_0.
	uvs := make([][2]float32, n)
	for i := range uvs {
		uv := basis.UVs.At(i)
		uvs[i] = [2]float32{uv.X, uv.Y}
	}
	attributes["TEXCOORD_0"] = modeler.WriteTextureCoord(doc, uvs)
	if basis.Colors.IsPresent() {
		colors := make([][4]uint8, n)
		for i := range colors {
			c := basis.Colors.At(i)
			colors[i] = [4]uint8{unorm8(c[0]), unorm8(c[1]), unorm8(c[2]), unorm8(c[3])}
		}
		attributes["COLOR_0"] = modeler.WriteColor(doc, colors)
	}

	indices := modeler.WriteIndices(doc, basis.Indices)
	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Name: name,
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(indices),
			Attributes: attributes,
		}},
	})
	doc.Nodes = append(doc.Nodes, &gltf.Node{Name: name, Mesh: gltf.Index(0)})
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)

	return createFile(path, func(f *os.File) error {
		enc := gltf.NewEncoder(f)
		enc.AsBinary = true
		return enc.Encode(doc)
	})
}

func unorm8(v float32) uint8 {
	v = max(0, min(1, v))
	return uint8(v*255 + 0.5)
}
