package export

import (
	"bufio"
	"fmt"
	"os"

	"github.com/Faultbox/midgard-vat/pkg/math"
	"github.com/Faultbox/midgard-vat/pkg/vat"
)

// writeBasisOBJ writes the basis as Wavefront OBJ. OBJ has a single UV set,
// so vt carries the VAT lookup coordinate rather than the material UV.
func writeBasisOBJ(path, name string, basis *vat.BasisBuffer, plan vat.LayoutPlan) error {
	return createFile(path, func(f *os.File) error {
		w := bufio.NewWriter(f)
		fmt.Fprintf(w, "# VAT basis mesh: %d vertices, %d frames, %dx%d texels\n",
			basis.VertexCount(), plan.FrameCount, plan.Width, plan.Height)
		fmt.Fprintf(w, "o %s\n", name)

		for _, p := range basis.Positions {
			fmt.Fprintf(w, "v %f %f %f\n", p.X, p.Y, p.Z)
		}
		for _, uv := range plan.UV2s() {
			fmt.Fprintf(w, "vt %f %f\n", uv.X, uv.Y)
		}
		for i := 0; i < basis.VertexCount(); i++ {
			n := basis.Normals.At(i).NormalizeOr(math.Up)
			fmt.Fprintf(w, "vn %f %f %f\n", n.X, n.Y, n.Z)
		}

		for i := 0; i+2 < len(basis.Indices); i += 3 {
			a, b, c := basis.Indices[i]+1, basis.Indices[i+1]+1, basis.Indices[i+2]+1
			fmt.Fprintf(w, "f %d/%d/%d %d/%d/%d %d/%d/%d\n", a, a, a, b, b, b, c, c, c)
		}
		return w.Flush()
	})
}
