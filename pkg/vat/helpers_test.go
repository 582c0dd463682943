package vat

import (
	"errors"
	gomath "math"

	"github.com/Faultbox/midgard-vat/pkg/math"
)

// scriptedSource returns whatever frame(t) produces for the current cursor.
type scriptedSource struct {
	frame   func(t float64) []SubMesh
	failAt  float64
	fail    bool
	current []SubMesh
	seeks   []float64
}

var errSeek = errors.New("seek failed")

func (s *scriptedSource) Seek(t float64) error {
	s.seeks = append(s.seeks, t)
	if s.fail && t >= s.failAt {
		return errSeek
	}
	s.current = s.frame(t)
	return nil
}

func (s *scriptedSource) SubMeshes() []SubMesh {
	return s.current
}

// wavyMesh is an n-vertex strip whose positions and normals move with t.
func wavyMesh(name string, n, triangles int, t float64) SubMesh {
	sm := SubMesh{
		Name:         name,
		Positions:    make([]math.Vec3, n),
		Normals:      make([]math.Vec3, n),
		LocalToWorld: math.Identity(),
	}
	for i := 0; i < n; i++ {
		phase := float64(i)*0.3 + t*2
		sm.Positions[i] = math.Vec3{
			X: float32(i),
			Y: float32(gomath.Sin(phase)),
			Z: float32(t),
		}
		sm.Normals[i] = math.Vec3{X: float32(gomath.Cos(phase)), Y: 1, Z: 0}.Normalize()
	}
	for k := 0; k < triangles; k++ {
		sm.Indices = append(sm.Indices, uint32(k%n), uint32((k+1)%n), uint32((k+2)%n))
	}
	return sm
}

// fixedSource always yields one n-vertex mesh with the given triangle count.
func fixedSource(n, triangles int) *scriptedSource {
	return &scriptedSource{frame: func(t float64) []SubMesh {
		return []SubMesh{wavyMesh("body", n, triangles, t)}
	}}
}

// triangleScript yields counts[f] triangles at frame f of a rate-1 window.
func triangleScript(counts []int) *scriptedSource {
	return &scriptedSource{frame: func(t float64) []SubMesh {
		f := int(gomath.Round(t))
		if f >= len(counts) {
			f = len(counts) - 1
		}
		return []SubMesh{wavyMesh("soup", counts[f]+2, counts[f], t)}
	}}
}

func approx(a, b, eps float32) bool {
	return gomath.Abs(float64(a-b)) <= float64(eps)
}

func approxVec(a, b math.Vec3, eps float32) bool {
	return approx(a.X, b.X, eps) && approx(a.Y, b.Y, eps) && approx(a.Z, b.Z, eps)
}
