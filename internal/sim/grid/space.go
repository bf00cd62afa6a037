package grid

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrOutOfBounds        = errors.New("index out of bounds")
	ErrSubsectionOverflow = errors.New("subsection exceeds grid extent")
	ErrTooLarge           = errors.New("grid volume too large")
)

// MaxVolume caps the cel count of grids sized from client or file input.
const MaxVolume = 1 << 21

// Pos is an integer cell coordinate. Y is the vertical (layer) axis.
type Pos struct {
	X, Y, Z int
}

func (p Pos) Add(o Pos) Pos { return Pos{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z} }

func (p Pos) String() string { return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z) }

// Min returns the per-axis minimum of a and b.
func Min(a, b Pos) Pos {
	return Pos{X: min(a.X, b.X), Y: min(a.Y, b.Y), Z: min(a.Z, b.Z)}
}

// Max returns the per-axis maximum of a and b.
func Max(a, b Pos) Pos {
	return Pos{X: max(a.X, b.X), Y: max(a.Y, b.Y), Z: max(a.Z, b.Z)}
}

// Space is the immutable geometry shared by every grid: cel counts per axis
// and the world size of one cel.
type Space struct {
	Width, Height, Length int
	Spacing               float32
}

func NewSpace(width, height, length int, spacing float32) Space {
	// Negative dimensions yield an empty grid.
	return Space{
		Width:   max(width, 0),
		Height:  max(height, 0),
		Length:  max(length, 0),
		Spacing: spacing,
	}
}

func (s Space) Size() Pos { return Pos{X: s.Width, Y: s.Height, Z: s.Length} }

func (s Space) Volume() int { return s.Width * s.Height * s.Length }

// CheckVolume reports whether a width x height x length grid may be allocated.
// The product is checked against MaxVolume without overflowing.
func CheckVolume(width, height, length int) error {
	if width < 0 || height < 0 || length < 0 {
		return fmt.Errorf("%w: negative dimensions %dx%dx%d", ErrOutOfBounds, width, height, length)
	}
	if width == 0 || height == 0 || length == 0 {
		return nil
	}
	if height > MaxVolume/width || length > MaxVolume/(width*height) {
		return fmt.Errorf("%w: %dx%dx%d exceeds %d cels", ErrTooLarge, width, height, length, MaxVolume)
	}
	return nil
}

func (s Space) LayerArea() int { return s.Width * s.Length }

func (s Space) InBounds(p Pos) bool {
	return p.X >= 0 && p.Y >= 0 && p.Z >= 0 && p.X < s.Width && p.Y < s.Height && p.Z < s.Length
}

// FlatIndex maps a cel to its slot in the backing array: x fastest, then z, then y.
func (s Space) FlatIndex(p Pos) (int, error) {
	if !s.InBounds(p) {
		return 0, fmt.Errorf("%w: %v in %dx%dx%d", ErrOutOfBounds, p, s.Width, s.Height, s.Length)
	}
	return s.index(p), nil
}

func (s Space) index(p Pos) int {
	return p.X + p.Z*s.Width + p.Y*s.Width*s.Length
}

func (s Space) Unflatten(idx int) (Pos, error) {
	if idx < 0 || idx >= s.Volume() {
		return Pos{}, fmt.Errorf("%w: flat index %d of %d", ErrOutOfBounds, idx, s.Volume())
	}
	return s.unflatten(idx), nil
}

func (s Space) unflatten(idx int) Pos {
	return Pos{
		X: idx % s.Width,
		Y: idx / (s.Width * s.Length),
		Z: (idx / s.Width) % s.Length,
	}
}

// WorldToGridPos floors a world position onto cel coordinates. The result is not clamped.
func (s Space) WorldToGridPos(world mgl32.Vec3) Pos {
	return Pos{
		X: int(math.Floor(float64(world.X() / s.Spacing))),
		Y: int(math.Floor(float64(world.Y() / s.Spacing))),
		Z: int(math.Floor(float64(world.Z() / s.Spacing))),
	}
}

// GridToWorldPos returns the minimum corner of a cel, or its center when center is set.
func (s Space) GridToWorldPos(p Pos, center bool) mgl32.Vec3 {
	v := mgl32.Vec3{float32(p.X) * s.Spacing, float32(p.Y) * s.Spacing, float32(p.Z) * s.Spacing}
	if center {
		half := s.Spacing / 2
		v = v.Add(mgl32.Vec3{half, half, half})
	}
	return v
}

func (s Space) SnapToCelCenter(world mgl32.Vec3) mgl32.Vec3 {
	return s.GridToWorldPos(s.WorldToGridPos(world), true)
}

func (s Space) MinCorner() mgl32.Vec3 { return mgl32.Vec3{} }

func (s Space) MaxCorner() mgl32.Vec3 {
	return mgl32.Vec3{float32(s.Width) * s.Spacing, float32(s.Height) * s.Spacing, float32(s.Length) * s.Spacing}
}

func (s Space) CenterPos() mgl32.Vec3 { return s.MaxCorner().Mul(0.5) }

// CheckRegion reports whether the box at origin with the given size lies inside the space.
func (s Space) CheckRegion(origin, size Pos) error {
	if origin.X < 0 || origin.Y < 0 || origin.Z < 0 {
		return fmt.Errorf("%w: origin %v", ErrOutOfBounds, origin)
	}
	if size.X < 0 || size.Y < 0 || size.Z < 0 {
		return fmt.Errorf("%w: negative size %v", ErrSubsectionOverflow, size)
	}
	if origin.X+size.X > s.Width || origin.Y+size.Y > s.Height || origin.Z+size.Z > s.Length {
		return fmt.Errorf("%w: %v+%v in %dx%dx%d", ErrSubsectionOverflow, origin, size, s.Width, s.Height, s.Length)
	}
	return nil
}
