package frustum

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// DegenerateEpsilon is the smallest plane normal length Extract normalizes.
// Shorter normals are replaced by a plane that accepts everything.
const DegenerateEpsilon = 1e-6

// Plane is a plane equation (a, b, c, d) with a unit (a, b, c) normal.
type Plane mgl32.Vec4

// AcceptAll is the plane every point is in front of.
var AcceptAll = Plane{0, 0, 0, 1}

// Distance2D returns the signed distance of the ground plane point (x, y)
// to the plane. The ground plane is z = 0.
func (p Plane) Distance2D(x, y float32) float32 {
	return p[0]*x + p[1]*y + p[3]
}

func (p Plane) Normal() mgl32.Vec3 {
	return mgl32.Vec3{p[0], p[1], p[2]}
}

// Plane indices.
const (
	Left = iota
	Right
	Front
	Back
)

// Planes are the four planes used for ground plane culling, indexed by Left,
// Right, Front and Back.
type Planes [4]Plane

// Extract returns the culling planes of a view projection matrix:
//
//	left  = row3 + row0
//	right = row3 - row0
//	front = row3 + row2
//	back  = row3 - row2
//
// Each plane is normalized by the length of its (x, y, z) part.
func Extract(m mgl32.Mat4) Planes {
	r0 := m.Row(0)
	r2 := m.Row(2)
	r3 := m.Row(3)

	return Planes{
		Left:  normalize(r3.Add(r0)),
		Right: normalize(r3.Sub(r0)),
		Front: normalize(r3.Add(r2)),
		Back:  normalize(r3.Sub(r2)),
	}
}

func normalize(v mgl32.Vec4) Plane {
	l := v.Vec3().Len()
	if l < DegenerateEpsilon || math.IsNaN(float64(l)) || math.IsInf(float64(l), 0) {
		return AcceptAll
	}
	return Plane(v.Mul(1 / l))
}
