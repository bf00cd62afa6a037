package mapman

import (
	"fmt"

	"blockeditor/internal/sim/entity"
	"blockeditor/internal/sim/grid"
	"blockeditor/internal/sim/history"
	"blockeditor/internal/sim/tile"
	"blockeditor/internal/sim/tilegrid"
)

// TileAction swaps a box of tiles between two snapshots of equal size.
type TileAction struct {
	origin grid.Pos
	prev   *tilegrid.TileGrid
	next   *tilegrid.TileGrid
}

func (a *TileAction) Do(m *Map) error   { return m.tiles.CopyTiles(a.origin, a.next, false) }
func (a *TileAction) Undo(m *Map) error { return m.tiles.CopyTiles(a.origin, a.prev, false) }

// EntAction places or removes the ent in one cel. overwrite records that
// placement replaced an existing ent, which undo restores.
type EntAction struct {
	origin    grid.Pos
	overwrite bool
	removed   bool
	oldEnt    entity.Ent
	newEnt    entity.Ent
}

func (a *EntAction) Do(m *Map) error {
	var err error
	if a.removed {
		err = m.ents.RemoveEnt(a.origin)
	} else {
		err = m.ents.AddEnt(a.origin, a.newEnt)
	}
	m.syncEntAssets()
	return err
}

func (a *EntAction) Undo(m *Map) error {
	var err error
	if a.overwrite || a.removed {
		err = m.ents.AddEnt(a.origin, a.oldEnt)
	} else {
		err = m.ents.RemoveEnt(a.origin)
	}
	m.syncEntAssets()
	return err
}

// clip trims a box at origin to the map. The origin itself must be a cel of the map.
func (m *Map) clip(origin, size grid.Pos) (grid.Pos, error) {
	if !m.Loaded() {
		return grid.Pos{}, ErrNoMap
	}
	if !m.tiles.InBounds(origin) {
		return grid.Pos{}, fmt.Errorf("%w: origin %v", grid.ErrOutOfBounds, origin)
	}
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		return grid.Pos{}, fmt.Errorf("%w: size %v", grid.ErrSubsectionOverflow, size)
	}
	return grid.Min(size, grid.Pos{
		X: m.tiles.Width - origin.X,
		Y: m.tiles.Height - origin.Y,
		Z: m.tiles.Length - origin.Z,
	}), nil
}

func (m *Map) apply(a history.Action[*Map]) error {
	if err := a.Do(m); err != nil {
		return err
	}
	m.history.Push(a)
	m.edits++
	return nil
}

// ExecuteTileAction fills the box at origin with t as one undoable edit. The
// box is clipped to the map.
func (m *Map) ExecuteTileAction(origin, size grid.Pos, t tile.Tile) error {
	size, err := m.clip(origin, size)
	if err != nil {
		return err
	}
	prev, err := m.tiles.Subsection(origin, size)
	if err != nil {
		return err
	}
	next := tilegrid.NewFilled(m, size.X, size.Y, size.Z, m.tiles.Spacing, t)
	return m.apply(&TileAction{origin: origin, prev: prev, next: next})
}

// ExecuteBrushAction pastes brush at origin as one undoable edit. Empty brush
// tiles keep what is underneath; the brush is clipped to the map.
func (m *Map) ExecuteBrushAction(origin grid.Pos, brush *tilegrid.TileGrid) error {
	size, err := m.clip(origin, brush.Size())
	if err != nil {
		return err
	}
	prev, err := m.tiles.Subsection(origin, size)
	if err != nil {
		return err
	}
	next := prev.Clone()
	if err := next.CopyTiles(grid.Pos{}, brush, true); err != nil {
		return err
	}
	return m.apply(&TileAction{origin: origin, prev: prev, next: next})
}

// Brush copies the box at origin for use with ExecuteBrushAction.
func (m *Map) Brush(origin, size grid.Pos) (*tilegrid.TileGrid, error) {
	if !m.Loaded() {
		return nil, ErrNoMap
	}
	return m.tiles.Subsection(origin, size)
}

// ExecuteEntPlacement places e at p, replacing any ent already there.
func (m *Map) ExecuteEntPlacement(p grid.Pos, e entity.Ent) error {
	if !m.Loaded() {
		return ErrNoMap
	}
	if !m.ents.InBounds(p) {
		return fmt.Errorf("%w: %v", grid.ErrOutOfBounds, p)
	}
	a := &EntAction{origin: p, newEnt: e.Clone()}
	if old, err := m.ents.GetEnt(p); err == nil {
		a.overwrite, a.oldEnt = true, old
	}
	return m.apply(a)
}

func (m *Map) ExecuteEntRemoval(p grid.Pos) error {
	if !m.Loaded() {
		return ErrNoMap
	}
	old, err := m.ents.GetEnt(p)
	if err != nil {
		return err
	}
	return m.apply(&EntAction{origin: p, removed: true, oldEnt: old})
}

// Undo reverts the last edit. It reports false when there is nothing to undo.
func (m *Map) Undo() (bool, error) {
	ok, err := m.history.Undo(m)
	if ok {
		m.edits++
	}
	return ok, err
}

func (m *Map) Redo() (bool, error) {
	ok, err := m.history.Redo(m)
	if ok {
		m.edits++
	}
	return ok, err
}
