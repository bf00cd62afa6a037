package render

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	DefaultFovy = 70
	// DefaultPitch looks down at 45 degrees, in radians.
	DefaultPitch = -math.Pi / 4
)

// Forward is the view direction before any rotation.
var Forward = mgl32.Vec3{0, 0, -1}

type Camera struct {
	Position mgl32.Vec3
	Target   mgl32.Vec3
	Up       mgl32.Vec3
	Fovy     float32 // degrees
	Aspect   float32
	Near     float32
	Far      float32
}

// NewCamera points a perspective camera from position along the pitch/yaw
// angles (radians): pitch about X first, then yaw about Y.
func NewCamera(position mgl32.Vec3, pitch, yaw, aspect float32) Camera {
	rot := mgl32.HomogRotate3DY(yaw).Mul4(mgl32.HomogRotate3DX(pitch))
	return Camera{
		Position: position,
		Target:   position.Add(mgl32.TransformNormal(Forward, rot)),
		Up:       mgl32.Vec3{0, 1, 0},
		Fovy:     DefaultFovy,
		Aspect:   aspect,
		Near:     0.01,
		Far:      1000,
	}
}

func (c Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Target, c.Up)
}

func (c Camera) Projection() mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.Fovy), c.Aspect, c.Near, c.Far)
}

func (c Camera) ViewProjection() mgl32.Mat4 {
	return c.Projection().Mul4(c.View())
}

// WorldToNDC projects a world point into normalized device coordinates. ok is
// false for points on or behind the camera plane.
func (c Camera) WorldToNDC(world mgl32.Vec3) (ndc mgl32.Vec3, ok bool) {
	clip := c.ViewProjection().Mul4x1(world.Vec4(1))
	if clip.W() <= 0 {
		return mgl32.Vec3{0, 0, 2}, false
	}
	return clip.Vec3().Mul(1 / clip.W()), true
}
