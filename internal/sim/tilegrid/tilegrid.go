// Package tilegrid stores the tiles of a map and turns them into draw batches
// and merged models.
package tilegrid

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"blockeditor/internal/sim/encoding"
	"blockeditor/internal/sim/grid"
	"blockeditor/internal/sim/render"
	"blockeditor/internal/sim/tile"
)

// Registry resolves the ids stored in tiles to loaded resources.
type Registry interface {
	// ModelFromID returns nil for ids with no shape; such tiles are skipped.
	ModelFromID(id tile.ModelID) *render.Model
	TexFromID(id tile.TexID) render.Texture
	NumTextures() int
}

// Batch is every instance of one mesh drawn with one texture.
type Batch struct {
	Texture    tile.TexID
	Mesh       *render.Mesh
	Transforms []mgl32.Mat4
}

type batchKey struct {
	tex  tile.TexID
	mesh *render.Mesh
}

type TileGrid struct {
	grid.Space
	tiles *grid.Grid[tile.Tile]
	reg   Registry

	batches      []Batch
	batchIndex   map[batchKey]int
	batchPos     mgl32.Vec3
	batchFromY   int
	batchToY     int
	regenBatches bool

	model       *render.Model
	modelCulled bool
	regenModel  bool
}

// New returns a grid of empty tiles with the default spacing.
func New(reg Registry, width, height, length int) *TileGrid {
	return NewFilled(reg, width, height, length, tile.DefaultSpacing, tile.Empty())
}

func NewFilled(reg Registry, width, height, length int, spacing float32, fill tile.Tile) *TileGrid {
	g := grid.New(width, height, length, spacing, fill)
	return &TileGrid{
		Space:        g.Space,
		tiles:        g,
		reg:          reg,
		batchToY:     g.Height - 1,
		regenBatches: true,
		regenModel:   true,
	}
}

func (g *TileGrid) Registry() Registry { return g.reg }

func (g *TileGrid) markDirty() {
	g.regenBatches = true
	g.regenModel = true
}

func (g *TileGrid) Tile(p grid.Pos) (tile.Tile, error) { return g.tiles.Cel(p) }

func (g *TileGrid) TileAt(idx int) (tile.Tile, error) { return g.tiles.CelAt(idx) }

func (g *TileGrid) SetTile(p grid.Pos, t tile.Tile) error {
	if err := g.tiles.SetCel(p, t); err != nil {
		return err
	}
	g.markDirty()
	return nil
}

func (g *TileGrid) SetTileAt(idx int, t tile.Tile) error {
	if err := g.tiles.SetCelAt(idx, t); err != nil {
		return err
	}
	g.markDirty()
	return nil
}

// SetTileRect fills the box at origin with the given size.
func (g *TileGrid) SetTileRect(origin, size grid.Pos, t tile.Tile) error {
	if err := g.tiles.Fill(origin, size, t); err != nil {
		return err
	}
	g.markDirty()
	return nil
}

// CopyTiles pastes src with its minimum corner at origin, clipped to this
// grid. With ignoreEmpty, empty source tiles leave the destination untouched.
func (g *TileGrid) CopyTiles(origin grid.Pos, src *TileGrid, ignoreEmpty bool) error {
	var keep func(tile.Tile) bool
	if ignoreEmpty {
		keep = tile.Tile.Present
	}
	if err := g.tiles.CopyCels(origin, src.tiles, keep); err != nil {
		return err
	}
	g.markDirty()
	return nil
}

// UnsetTile clears the cel at p to the empty tile.
func (g *TileGrid) UnsetTile(p grid.Pos) error {
	return g.SetTile(p, tile.Empty())
}

// Subsection copies a box of tiles into a new grid sharing this grid's registry.
func (g *TileGrid) Subsection(origin, size grid.Pos) (*TileGrid, error) {
	sub, err := g.tiles.Subsection(origin, size)
	if err != nil {
		return nil, err
	}
	return &TileGrid{
		Space:        sub.Space,
		tiles:        sub,
		reg:          g.reg,
		batchToY:     sub.Height - 1,
		regenBatches: true,
		regenModel:   true,
	}, nil
}

// Clone copies the whole grid. Caches are not shared.
func (g *TileGrid) Clone() *TileGrid {
	c := g.tiles.Clone()
	return &TileGrid{
		Space:        c.Space,
		tiles:        c,
		reg:          g.reg,
		batchToY:     c.Height - 1,
		regenBatches: true,
		regenModel:   true,
	}
}

// Each calls fn for every present tile in flat index order.
func (g *TileGrid) Each(fn func(p grid.Pos, t tile.Tile)) {
	for i, t := range g.tiles.Cels() {
		if !t.Present() {
			continue
		}
		p, _ := g.Unflatten(i)
		fn(p, t)
	}
}

func (g *TileGrid) GetTileDataBase64() string {
	return encoding.EncodeTiles(g.tiles.Cels())
}

func (g *TileGrid) GetOptimizedTileDataBase64() (string, error) {
	return encoding.EncodeTilesRLE(g.tiles.Cels())
}

// SetTileDataBase64 replaces every tile from either encoding. The data must
// describe exactly as many tiles as the grid holds; on error the grid is unchanged.
func (g *TileGrid) SetTileDataBase64(data string) error {
	tiles, err := encoding.DecodeTiles(data, g.Volume())
	if err != nil {
		return err
	}
	copy(g.tiles.Cels(), tiles)
	g.markDirty()
	return nil
}

// GetUsedIDs returns the sorted distinct texture and shape ids of present tiles.
func (g *TileGrid) GetUsedIDs() ([]tile.TexID, []tile.ModelID) {
	texSet := map[tile.TexID]struct{}{}
	modelSet := map[tile.ModelID]struct{}{}
	for _, t := range g.tiles.Cels() {
		if t.Present() {
			texSet[t.Texture] = struct{}{}
			modelSet[t.Shape] = struct{}{}
		}
	}
	texs := make([]tile.TexID, 0, len(texSet))
	for id := range texSet {
		texs = append(texs, id)
	}
	models := make([]tile.ModelID, 0, len(modelSet))
	for id := range modelSet {
		models = append(models, id)
	}
	sort.Slice(texs, func(i, j int) bool { return texs[i] < texs[j] })
	sort.Slice(models, func(i, j int) bool { return models[i] < models[j] })
	return texs, models
}

// Extent returns the smallest box holding every present tile.
func (g *TileGrid) Extent() (lo, hi grid.Pos, ok bool) {
	g.Each(func(p grid.Pos, _ tile.Tile) {
		if !ok {
			lo, hi, ok = p, p, true
			return
		}
		lo, hi = grid.Min(lo, p), grid.Max(hi, p)
	})
	return lo, hi, ok
}

// Remap rewrites tile ids through the given tables. Tiles whose texture or
// shape has no entry become empty.
func (g *TileGrid) Remap(tex map[tile.TexID]tile.TexID, shapes map[tile.ModelID]tile.ModelID) {
	cels := g.tiles.Cels()
	for i, t := range cels {
		if !t.Present() {
			continue
		}
		nt, okT := tex[t.Texture]
		ns, okS := shapes[t.Shape]
		if !okT || !okS {
			cels[i] = tile.Empty()
			continue
		}
		cels[i].Texture, cels[i].Shape = nt, ns
	}
	g.markDirty()
}

type Stats struct {
	Tiles     int
	Batches   int
	Instances int
}

// Stats counts present tiles and the batches last built for drawing.
func (g *TileGrid) Stats() Stats {
	s := Stats{Batches: len(g.batches)}
	for _, t := range g.tiles.Cels() {
		if t.Present() {
			s.Tiles++
		}
	}
	for _, b := range g.batches {
		s.Instances += len(b.Transforms)
	}
	return s
}
