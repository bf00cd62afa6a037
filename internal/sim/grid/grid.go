package grid

import "fmt"

// Grid is a flat array-backed 3D container of cels.
type Grid[T any] struct {
	Space
	cels []T
}

// New allocates width*height*length cels set to fill. Zero-sized grids are
// valid and stand in for "no map loaded".
func New[T any](width, height, length int, spacing float32, fill T) *Grid[T] {
	s := NewSpace(width, height, length, spacing)
	cels := make([]T, s.Volume())
	for i := range cels {
		cels[i] = fill
	}
	return &Grid[T]{Space: s, cels: cels}
}

func (g *Grid[T]) Cel(p Pos) (T, error) {
	idx, err := g.FlatIndex(p)
	if err != nil {
		var zero T
		return zero, err
	}
	return g.cels[idx], nil
}

func (g *Grid[T]) SetCel(p Pos, v T) error {
	idx, err := g.FlatIndex(p)
	if err != nil {
		return err
	}
	g.cels[idx] = v
	return nil
}

func (g *Grid[T]) CelAt(idx int) (T, error) {
	if idx < 0 || idx >= len(g.cels) {
		var zero T
		return zero, fmt.Errorf("%w: flat index %d of %d", ErrOutOfBounds, idx, len(g.cels))
	}
	return g.cels[idx], nil
}

func (g *Grid[T]) SetCelAt(idx int, v T) error {
	if idx < 0 || idx >= len(g.cels) {
		return fmt.Errorf("%w: flat index %d of %d", ErrOutOfBounds, idx, len(g.cels))
	}
	g.cels[idx] = v
	return nil
}

// Cels exposes the backing array in flat index order. Callers must not
// change its length.
func (g *Grid[T]) Cels() []T { return g.cels }

// Fill sets every cel in the box at origin with the given size.
func (g *Grid[T]) Fill(origin, size Pos, v T) error {
	if err := g.CheckRegion(origin, size); err != nil {
		return err
	}
	for y := origin.Y; y < origin.Y+size.Y; y++ {
		for z := origin.Z; z < origin.Z+size.Z; z++ {
			base := g.index(Pos{Y: y, Z: z})
			for x := origin.X; x < origin.X+size.X; x++ {
				g.cels[base+x] = v
			}
		}
	}
	return nil
}

// CopyCels places src into g with its minimum corner at origin. Whatever part of
// src falls outside g is cut off. When keep is non-nil, only source cels for
// which it returns true are written.
func (g *Grid[T]) CopyCels(origin Pos, src *Grid[T], keep func(T) bool) error {
	if origin.X < 0 || origin.Y < 0 || origin.Z < 0 {
		return fmt.Errorf("%w: copy origin %v", ErrOutOfBounds, origin)
	}
	xEnd := min(origin.X+src.Width, g.Width)
	yEnd := min(origin.Y+src.Height, g.Height)
	zEnd := min(origin.Z+src.Length, g.Length)
	for z := origin.Z; z < zEnd; z++ {
		for y := origin.Y; y < yEnd; y++ {
			ourBase := g.index(Pos{Y: y, Z: z})
			theirBase := src.index(Pos{Y: y - origin.Y, Z: z - origin.Z})
			for x := origin.X; x < xEnd; x++ {
				c := src.cels[theirBase+(x-origin.X)]
				if keep == nil || keep(c) {
					g.cels[ourBase+x] = c
				}
			}
		}
	}
	return nil
}

// Subsection copies the box at origin with the given size into a new grid with
// the same spacing.
func (g *Grid[T]) Subsection(origin, size Pos) (*Grid[T], error) {
	if err := g.CheckRegion(origin, size); err != nil {
		return nil, err
	}
	out := &Grid[T]{
		Space: NewSpace(size.X, size.Y, size.Z, g.Spacing),
		cels:  make([]T, size.X*size.Y*size.Z),
	}
	for z := origin.Z; z < origin.Z+size.Z; z++ {
		for y := origin.Y; y < origin.Y+size.Y; y++ {
			ourBase := g.index(Pos{Y: y, Z: z})
			theirBase := out.index(Pos{Y: y - origin.Y, Z: z - origin.Z})
			copy(out.cels[theirBase:theirBase+size.X], g.cels[ourBase+origin.X:ourBase+origin.X+size.X])
		}
	}
	return out, nil
}

// Clone returns a deep copy of the backing array.
func (g *Grid[T]) Clone() *Grid[T] {
	cels := make([]T, len(g.cels))
	copy(cels, g.cels)
	return &Grid[T]{Space: g.Space, cels: cels}
}
