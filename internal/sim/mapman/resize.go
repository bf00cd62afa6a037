package mapman

import (
	"fmt"

	"blockeditor/internal/sim/entity"
	"blockeditor/internal/sim/grid"
	"blockeditor/internal/sim/tile"
	"blockeditor/internal/sim/tilegrid"
)

// Direction names the side of the map that ExpandMap grows.
type Direction int

const (
	ZPos Direction = iota // back
	ZNeg                  // front
	XPos                  // right
	XNeg                  // left
	YPos                  // top
	YNeg                  // bottom
)

var directionNames = [...]string{"+z", "-z", "+x", "-x", "+y", "-y"}

func (d Direction) String() string {
	if d < ZPos || d > YNeg {
		return fmt.Sprintf("direction(%d)", int(d))
	}
	return directionNames[d]
}

func ParseDirection(s string) (Direction, error) {
	for i, n := range directionNames {
		if n == s {
			return Direction(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown direction %q", ErrInvalidResize, s)
}

// ExpandMap adds amount layers of empty cels on one side. Existing content
// keeps its place relative to the other sides. History is cleared.
func (m *Map) ExpandMap(dir Direction, amount int) error {
	if !m.Loaded() {
		return ErrNoMap
	}
	if amount <= 0 || amount > grid.MaxVolume {
		return fmt.Errorf("%w: amount %d", ErrInvalidResize, amount)
	}
	size := m.tiles.Size()
	var offset grid.Pos
	switch dir {
	case ZPos:
		size.Z += amount
	case ZNeg:
		size.Z += amount
		offset.Z = amount
	case XPos:
		size.X += amount
	case XNeg:
		size.X += amount
		offset.X = amount
	case YPos:
		size.Y += amount
	case YNeg:
		size.Y += amount
		offset.Y = amount
	default:
		return fmt.Errorf("%w: %v", ErrInvalidResize, dir)
	}
	if err := grid.CheckVolume(size.X, size.Y, size.Z); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidResize, err)
	}
	if err := m.resize(offset, grid.Pos{}, size); err != nil {
		return err
	}
	m.log.WithField("dir", dir).WithField("dims", size).Info("map expanded")
	return nil
}

// ShrinkMap crops the map to the smallest box holding every tile and ent.
// History is cleared and the default camera is reset.
func (m *Map) ShrinkMap() error {
	if !m.Loaded() {
		return ErrNoMap
	}
	lo, hi, ok := m.tiles.Extent()
	if elo, ehi, eok := m.ents.Extent(); eok {
		if ok {
			lo, hi = grid.Min(lo, elo), grid.Max(hi, ehi)
		} else {
			lo, hi, ok = elo, ehi, true
		}
	}
	if !ok {
		return ErrEmptyMap
	}
	size := grid.Pos{X: hi.X - lo.X + 1, Y: hi.Y - lo.Y + 1, Z: hi.Z - lo.Z + 1}
	if err := m.resize(grid.Pos{}, lo, size); err != nil {
		return err
	}
	m.ResetCamera()
	m.log.WithField("dims", size).Info("map shrunk")
	return nil
}

// resize rebuilds both grids at the given size, copying the old content from
// src onward to dst onward. The default camera follows the content.
func (m *Map) resize(dst, src, size grid.Pos) error {
	old := m.tiles.Size()
	copySize := grid.Min(old, size)
	copySize = grid.Min(copySize, grid.Pos{X: old.X - src.X, Y: old.Y - src.Y, Z: old.Z - src.Z})
	tiles, err := m.tiles.Subsection(src, copySize)
	if err != nil {
		return err
	}
	ents, err := m.ents.Subsection(src, copySize)
	if err != nil {
		return err
	}
	nt := tilegrid.NewFilled(m, size.X, size.Y, size.Z, m.tiles.Spacing, tile.Empty())
	if err := nt.CopyTiles(dst, tiles, false); err != nil {
		return err
	}
	ne := entity.NewGridSpacing(size.X, size.Y, size.Z, m.tiles.Spacing)
	if err := ne.CopyEnts(dst, ents); err != nil {
		return err
	}
	shift := m.tiles.GridToWorldPos(grid.Pos{X: dst.X - src.X, Y: dst.Y - src.Y, Z: dst.Z - src.Z}, false)
	m.tiles.Close(m.assets.Renderer())
	m.tiles, m.ents = nt, ne
	m.cameraPos = m.cameraPos.Add(shift)
	m.history.Clear()
	m.edits++
	return nil
}

// PruneUnused drops registry entries no tile uses and renumbers the rest in
// their original order. History is cleared because it refers to the old ids.
// It returns the number of textures and shapes dropped.
func (m *Map) PruneUnused() (textures, shapes int) {
	usedTex, usedShapes := m.tiles.GetUsedIDs()

	texMap := map[tile.TexID]tile.TexID{}
	keptTex := make([]registered, 0, len(usedTex))
	for _, id := range usedTex {
		if int(id) >= len(m.textures) {
			continue
		}
		texMap[id] = tile.TexID(len(keptTex))
		keptTex = append(keptTex, m.textures[id])
	}
	shapeMap := map[tile.ModelID]tile.ModelID{}
	keptShapes := make([]registered, 0, len(usedShapes))
	for _, id := range usedShapes {
		if int(id) >= len(m.shapes) {
			continue
		}
		shapeMap[id] = tile.ModelID(len(keptShapes))
		keptShapes = append(keptShapes, m.shapes[id])
	}

	for id, r := range m.textures {
		if _, ok := texMap[tile.TexID(id)]; !ok {
			m.release(r.handle)
			textures++
		}
	}
	for id, r := range m.shapes {
		if _, ok := shapeMap[tile.ModelID(id)]; !ok {
			m.release(r.handle)
			shapes++
		}
	}
	if textures == 0 && shapes == 0 {
		return 0, 0
	}

	m.textures, m.shapes = keptTex, keptShapes
	m.texIDs = map[string]tile.TexID{}
	for i, r := range m.textures {
		m.texIDs[r.path] = tile.TexID(i)
	}
	m.shapeIDs = map[string]tile.ModelID{}
	for i, r := range m.shapes {
		m.shapeIDs[r.path] = tile.ModelID(i)
	}
	m.tiles.Remap(texMap, shapeMap)
	m.history.Clear()
	return textures, shapes
}
