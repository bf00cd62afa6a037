package tile

import "github.com/go-gl/mathgl/mgl32"

type (
	TexID   = int32
	ModelID = int32
)

const (
	NoTex   TexID   = -1
	NoModel ModelID = -1

	// DefaultSpacing is the world size of one tile cel.
	DefaultSpacing float32 = 2
)

// Tile is the visual content of one cel. It is a plain value stored inline in
// the grid.
type Tile struct {
	Shape   ModelID `json:"shape"`
	Angle   int32   `json:"angle"` // yaw, whole degrees
	Texture TexID   `json:"texture"`
	Pitch   int32   `json:"pitch"` // whole degrees
}

func Empty() Tile {
	return Tile{Shape: NoModel, Texture: NoTex}
}

// Present reports whether the tile draws anything: it needs both a shape and a texture.
func (t Tile) Present() bool {
	return t.Shape > NoModel && t.Texture > NoTex
}

// RotationMatrix rotates by -pitch about X and then by -angle about Y.
func RotationMatrix(t Tile) mgl32.Mat4 {
	rx := mgl32.HomogRotate3DX(mgl32.DegToRad(float32(-t.Pitch)))
	ry := mgl32.HomogRotate3DY(mgl32.DegToRad(float32(-t.Angle)))
	return ry.Mul4(rx)
}

// Transform places a tile's shape at a world position.
func Transform(t Tile, world mgl32.Vec3) mgl32.Mat4 {
	return mgl32.Translate3D(world.X(), world.Y(), world.Z()).Mul4(RotationMatrix(t))
}

// OffsetDegrees adds delta to angle and wraps the result into [0, 360).
func OffsetDegrees(angle, delta int32) int32 {
	a := (angle + delta) % 360
	if a < 0 {
		a += 360
	}
	return a
}
