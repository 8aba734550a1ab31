package camera

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// Up is the world up axis. The ground plane is z = 0.
var Up = mgl32.Vec3{0, 0, 1}

// Lens describes the camera projection.
type Lens struct {
	// Vertical field of view in radians.
	FOV    float32
	Aspect float32
	Near   float32
	Far    float32

	// Rotate renders to a display rotated by 90 degrees.
	Rotate bool
}

// Projection returns the projection used for rendering.
func (l Lens) Projection() mgl32.Mat4 {
	if !l.Rotate {
		return mgl32.Perspective(l.FOV, l.Aspect, l.Near, l.Far)
	}
	return mgl32.HomogRotate3DZ(math.Pi / 2).Mul4(l.CullProjection())
}

// CullProjection returns the projection used for culling. It never
// contains the display rotation so that culling does not depend on the
// display orientation.
func (l Lens) CullProjection() mgl32.Mat4 {
	aspect := l.Aspect
	if l.Rotate {
		aspect = 1 / aspect
	}
	return mgl32.Perspective(l.FOV, aspect, l.Near, l.Far)
}

// State is the camera of one frame.
type State struct {
	Position mgl32.Vec3
	Target   mgl32.Vec3

	View               mgl32.Mat4
	ViewProjection     mgl32.Mat4
	CullViewProjection mgl32.Mat4
}

// NewState returns the state of a camera at from looking at to.
func NewState(lens Lens, from, to mgl32.Vec3) State {
	view := mgl32.LookAtV(from, to, Up)

	return State{
		Position:           from,
		Target:             to,
		View:               view,
		ViewProjection:     lens.Projection().Mul4(view),
		CullViewProjection: lens.CullProjection().Mul4(view),
	}
}

// Ground returns the camera position on the ground plane.
func (s State) Ground() mgl32.Vec2 {
	return s.Position.Vec2()
}

// Source provides the camera state for the time elapsed since start.
type Source interface {
	State(elapsed time.Duration) State
}

// SourceFunc is a function that implements Source.
type SourceFunc func(elapsed time.Duration) State

func (f SourceFunc) State(elapsed time.Duration) State {
	return f(elapsed)
}

// Follower moves a camera along a track.
type Follower struct {
	Track *Track
	Lens  Lens
}

func (f *Follower) State(elapsed time.Duration) State {
	from, to := f.Track.At(elapsed)
	return NewState(f.Lens, from, to)
}
