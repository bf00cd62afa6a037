package tilegrid

import (
	"github.com/go-gl/mathgl/mgl32"

	"blockeditor/internal/sim/grid"
	"blockeditor/internal/sim/render"
	"blockeditor/internal/sim/tile"
)

type DrawOptions struct {
	Position mgl32.Vec3
	// Layers outside [FromY, ToY] are not drawn.
	FromY, ToY int
	// Preview draws the merged model instead of instanced batches.
	Preview   bool
	CullFaces bool
}

// AllLayers returns draw options covering every layer at the origin.
func (g *TileGrid) AllLayers() DrawOptions {
	return DrawOptions{FromY: 0, ToY: g.Height - 1}
}

// Batches returns the instance batches for the given placement and layer
// range, rebuilding them if tiles changed or the request differs from the
// cached one. A rebuild allocates new batches, so earlier results stay intact.
func (g *TileGrid) Batches(position mgl32.Vec3, fromY, toY int) []Batch {
	if g.regenBatches || fromY != g.batchFromY || toY != g.batchToY || !position.ApproxEqual(g.batchPos) {
		g.buildBatches(position, fromY, toY)
	}
	return g.batches
}

func (g *TileGrid) buildBatches(position mgl32.Vec3, fromY, toY int) {
	g.batches = nil
	g.batchIndex = map[batchKey]int{}
	g.batchPos = position
	g.batchFromY = fromY
	g.batchToY = toY
	g.regenBatches = false
	if g.reg == nil {
		return
	}

	area := g.LayerArea()
	cels := g.tiles.Cels()
	for y := max(fromY, 0); y <= min(toY, g.Height-1); y++ {
		for i := y * area; i < (y+1)*area; i++ {
			t := cels[i]
			if !t.Present() {
				continue
			}
			shape := g.reg.ModelFromID(t.Shape)
			if shape == nil {
				continue
			}
			p, _ := g.Unflatten(i)
			world := position.Add(g.GridToWorldPos(p, true))
			m := tile.Transform(t, world)
			for _, mesh := range shape.Meshes {
				k := batchKey{tex: t.Texture, mesh: mesh}
				bi, ok := g.batchIndex[k]
				if !ok {
					bi = len(g.batches)
					g.batchIndex[k] = bi
					g.batches = append(g.batches, Batch{Texture: t.Texture, Mesh: mesh})
				}
				g.batches[bi].Transforms = append(g.batches[bi].Transforms, m)
			}
		}
	}
}

// Draw issues one instanced call per batch, or draws the merged model when
// previewing.
func (g *TileGrid) Draw(r render.Renderer, opts DrawOptions) error {
	if g.reg == nil {
		return nil
	}
	if opts.Preview {
		model, err := g.GetModel(r, opts.CullFaces)
		if err != nil {
			return err
		}
		model.Draw(r, mgl32.Translate3D(opts.Position.X(), opts.Position.Y(), opts.Position.Z()))
		return nil
	}
	for _, b := range g.Batches(opts.Position, opts.FromY, opts.ToY) {
		mat := render.Material{Texture: g.reg.TexFromID(b.Texture), Tint: render.White}
		r.DrawMeshInstanced(b.Mesh, mat, b.Transforms)
	}
	return nil
}

// celOf recovers the cel a tile transform was built for.
func (g *TileGrid) celOf(m mgl32.Mat4) grid.Pos {
	return g.WorldToGridPos(m.Col(3).Vec3())
}
