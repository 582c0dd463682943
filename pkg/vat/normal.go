package vat

import (
	gomath "math"

	"github.com/Faultbox/midgard-vat/pkg/math"
)

// CompressNormal packs a unit normal into 8-bit channels as n*0.5+0.5.
func CompressNormal(n math.Vec3) [4]uint8 {
	return [4]uint8{packUnit(n.X), packUnit(n.Y), packUnit(n.Z), 255}
}

// DecompressNormal reverses CompressNormal.
func DecompressNormal(c [4]uint8) math.Vec3 {
	return math.Vec3{
		X: float32(c[0])/255*2 - 1,
		Y: float32(c[1])/255*2 - 1,
		Z: float32(c[2])/255*2 - 1,
	}
}

func packUnit(v float32) uint8 {
	f := (float64(v)*0.5 + 0.5) * 255
	f = gomath.Round(gomath.Max(0, gomath.Min(255, f)))
	return uint8(f)
}
