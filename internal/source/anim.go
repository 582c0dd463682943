package source

import (
	"github.com/Faultbox/midgard-vat/pkg/formats"
	"github.com/Faultbox/midgard-vat/pkg/math"
)

// bracket finds the keys surrounding timeMs in a list sorted by frame.
// frame(i) returns the frame of key i. When timeMs is outside the keyed
// range both indices point at the nearest key.
func bracket(n int, frame func(int) int32, timeMs float32) (prev, next int, t float32) {
	for i := 0; i < n; i++ {
		if float32(frame(i)) > timeMs {
			next = i
			break
		}
		prev, next = i, i
	}
	if prev == next {
		return prev, next, 0
	}
	f0, f1 := frame(prev), frame(next)
	if f1 != f0 {
		t = (timeMs - float32(f0)) / float32(f1-f0)
	}
	return prev, next, t
}

func interpolateRot(keys []formats.RSMRotKeyframe, timeMs float32) math.Quat {
	if len(keys) == 0 {
		return math.QuatIdentity()
	}
	prev, next, t := bracket(len(keys), func(i int) int32 { return keys[i].Frame }, timeMs)
	q0 := math.QuatFromArray(keys[prev].Quaternion)
	if prev == next {
		return q0
	}
	return q0.Slerp(math.QuatFromArray(keys[next].Quaternion), t)
}

func interpolateScale(keys []formats.RSMScaleKeyframe, timeMs float32) [3]float32 {
	if len(keys) == 0 {
		return [3]float32{1, 1, 1}
	}
	prev, next, t := bracket(len(keys), func(i int) int32 { return keys[i].Frame }, timeMs)
	return math.LerpVec3(keys[prev].Scale, keys[next].Scale, t)
}

func interpolatePos(keys []formats.RSMPosKeyframe, timeMs float32) [3]float32 {
	prev, next, t := bracket(len(keys), func(i int) int32 { return keys[i].Frame }, timeMs)
	return math.LerpVec3(keys[prev].Position, keys[next].Position, t)
}

// hierarchyMatrix returns parent * Position * Rotation * Scale for a node,
// the part of its transform its children inherit.
func (s *RSM) hierarchyMatrix(node *formats.RSMNode, timeMs float32, visited map[string]bool) math.Mat4 {
	if visited[node.Name] {
		return math.Identity()
	}
	visited[node.Name] = true

	pos := node.Position
	if len(node.PosKeys) > 0 {
		pos = interpolatePos(node.PosKeys, timeMs)
	}
	local := math.Translate(pos[0], pos[1], pos[2])

	switch {
	case len(node.RotKeys) > 0:
		local = local.Mul(interpolateRot(node.RotKeys, timeMs).ToMat4())
	case node.RotAngle != 0:
		axis := math.V3(node.RotAxis)
		if axis.Length() > 1e-6 {
			local = local.Mul(math.RotateAxis(axis.Normalize().Array(), node.RotAngle))
		}
	}

	local = local.Mul(math.Scale(node.Scale[0], node.Scale[1], node.Scale[2]))
	if len(node.ScaleKeys) > 0 {
		sc := interpolateScale(node.ScaleKeys, timeMs)
		local = local.Mul(math.Scale(sc[0], sc[1], sc[2]))
	}

	if node.Parent != "" && node.Parent != node.Name {
		if parent := s.model.NodeByName(node.Parent); parent != nil {
			return s.hierarchyMatrix(parent, timeMs, visited).Mul(local)
		}
	}
	return local
}

// nodeMatrix is the full vertex transform of a node: its hierarchy matrix
// followed by the pivot offset and the node's own 3x3 matrix, neither of
// which children inherit.
func (s *RSM) nodeMatrix(node *formats.RSMNode, timeMs float32) math.Mat4 {
	m := s.hierarchyMatrix(node, timeMs, make(map[string]bool))
	m = m.Mul(math.Translate(node.Offset[0], node.Offset[1], node.Offset[2]))
	return m.Mul(math.FromMat3x3(node.Matrix))
}
