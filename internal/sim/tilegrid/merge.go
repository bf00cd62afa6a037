package tilegrid

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"blockeditor/internal/sim/grid"
	"blockeditor/internal/sim/render"
	"blockeditor/internal/sim/tile"
)

const epsilon = 1e-6

func floatEquals(x, y float32) bool {
	ax, ay := math.Abs(float64(x)), math.Abs(float64(y))
	return math.Abs(float64(x-y)) <= epsilon*math.Max(1, math.Max(ax, ay))
}

func vecEquals(a, b mgl32.Vec3) bool {
	return floatEquals(a[0], b[0]) && floatEquals(a[1], b[1]) && floatEquals(a[2], b[2])
}

var axisSteps = [6]struct {
	n    mgl32.Vec3
	step grid.Pos
}{
	{mgl32.Vec3{1, 0, 0}, grid.Pos{X: 1}},
	{mgl32.Vec3{-1, 0, 0}, grid.Pos{X: -1}},
	{mgl32.Vec3{0, 0, -1}, grid.Pos{Z: -1}},
	{mgl32.Vec3{0, 0, 1}, grid.Pos{Z: 1}},
	{mgl32.Vec3{0, 1, 0}, grid.Pos{Y: 1}},
	{mgl32.Vec3{0, -1, 0}, grid.Pos{Y: -1}},
}

// neighborStep maps an axis-aligned unit normal to the adjacent cel offset.
func neighborStep(n mgl32.Vec3) (grid.Pos, bool) {
	for _, a := range axisSteps {
		if vecEquals(n, a.n) {
			return a.step, true
		}
	}
	return grid.Pos{}, false
}

type worldTri struct {
	v    [3]mgl32.Vec3
	n    mgl32.Vec3
	dist float32
}

func newWorldTri(v0, v1, v2 mgl32.Vec3) worldTri {
	n := v1.Sub(v0).Cross(v2.Sub(v0)).Normalize()
	return worldTri{v: [3]mgl32.Vec3{v0, v1, v2}, n: n, dist: -n.Dot(v0)}
}

func (t worldTri) hasVertex(p mgl32.Vec3) bool {
	return vecEquals(p, t.v[0]) || vecEquals(p, t.v[1]) || vecEquals(p, t.v[2])
}

// hides reports whether o lies on the same plane facing the opposite way
// with the same three corners, in any order.
func (t worldTri) hides(o worldTri) bool {
	if !floatEquals(float32(math.Abs(float64(o.dist))), float32(math.Abs(float64(t.dist)))) {
		return false
	}
	if !floatEquals(o.n.Dot(t.n), -1) {
		return false
	}
	return o.hasVertex(t.v[0]) && o.hasVertex(t.v[1]) && o.hasVertex(t.v[2])
}

func transformPoint(m mgl32.Mat4, v mgl32.Vec3) mgl32.Vec3 {
	return m.Mul4x1(v.Vec4(1)).Vec3()
}

// merger builds the per-texture meshes of the merged model.
type merger struct {
	g         *TileGrid
	cull      bool
	meshes    []render.MeshBuilder
	neighbors map[int][]worldTri
}

// neighborTris returns the world-space triangles of the tile at p, or nil when
// the cel is outside the grid or empty.
func (mg *merger) neighborTris(p grid.Pos) []worldTri {
	idx, err := mg.g.FlatIndex(p)
	if err != nil {
		return nil
	}
	if tris, ok := mg.neighbors[idx]; ok {
		return tris
	}
	var tris []worldTri
	t := mg.g.tiles.Cels()[idx]
	if t.Present() {
		if shape := mg.g.reg.ModelFromID(t.Shape); shape != nil {
			m := tile.Transform(t, mg.g.GridToWorldPos(p, true))
			for _, mesh := range shape.Meshes {
				for k := 0; k < mesh.TriangleCount(); k++ {
					a, b, c := mesh.Triangle(k)
					tris = append(tris, newWorldTri(
						transformPoint(m, mesh.Vertex(a)),
						transformPoint(m, mesh.Vertex(b)),
						transformPoint(m, mesh.Vertex(c)),
					))
				}
			}
		}
	}
	mg.neighbors[idx] = tris
	return tris
}

func (mg *merger) culled(tri worldTri, cel grid.Pos) bool {
	step, ok := neighborStep(tri.n)
	if !ok {
		return false
	}
	for _, o := range mg.neighborTris(cel.Add(step)) {
		if tri.hides(o) {
			return true
		}
	}
	return false
}

// addInstance appends one tile's copy of shape to the texture's mesh.
func (mg *merger) addInstance(b *render.MeshBuilder, shape *render.Mesh, m mgl32.Mat4) {
	base := uint32(b.VertexCount())
	world := make([]mgl32.Vec3, shape.VertexCount())
	for v := range world {
		world[v] = transformPoint(m, shape.Vertex(v))
		b.AddVertex(world[v], mgl32.TransformNormal(shape.Normal(v), m), shape.TexCoord(v))
	}
	cel := mg.g.celOf(m)
	for k := 0; k < shape.TriangleCount(); k++ {
		i0, i1, i2 := shape.Triangle(k)
		if mg.cull && mg.culled(newWorldTri(world[i0], world[i1], world[i2]), cel) {
			continue
		}
		b.AddTriangle(base+uint32(i0), base+uint32(i1), base+uint32(i2))
	}
}

func (g *TileGrid) generateModel(cull bool) *render.Model {
	model := render.NewModel()
	if g.reg == nil {
		return model
	}
	numTex := g.reg.NumTextures()
	mg := &merger{
		g:         g,
		cull:      cull,
		meshes:    make([]render.MeshBuilder, numTex),
		neighbors: map[int][]worldTri{},
	}

	for _, b := range g.Batches(mgl32.Vec3{}, 0, g.Height-1) {
		if b.Texture < 0 || int(b.Texture) >= numTex {
			continue
		}
		for _, m := range b.Transforms {
			mg.addInstance(&mg.meshes[b.Texture], b.Mesh, m)
		}
	}

	model.Materials = make([]render.Material, numTex)
	for i := range model.Materials {
		model.Materials[i] = render.Material{Texture: g.reg.TexFromID(tile.TexID(i)), Tint: render.White}
	}
	for i := range mg.meshes {
		mesh := mg.meshes[i].Build()
		// Empty meshes are left out; some glTF readers reject them.
		if mesh.TriangleCount() == 0 {
			continue
		}
		model.AddMesh(mesh, i)
	}
	return model
}

// GetModel returns the merged model of every tile, with faces hidden between
// abutting tiles removed when cull is set. The model is cached until a tile
// changes or cull differs; the previous model is unloaded on rebuild.
func (g *TileGrid) GetModel(r render.Renderer, cull bool) (*render.Model, error) {
	if g.model != nil && !g.regenModel && cull == g.modelCulled {
		return g.model, nil
	}
	if g.model != nil {
		g.model.Unload(r)
	}
	g.model = g.generateModel(cull)
	g.modelCulled = cull
	g.regenModel = false
	if err := g.model.Upload(r); err != nil {
		return nil, err
	}
	return g.model, nil
}

// Close unloads the cached merged model.
func (g *TileGrid) Close(r render.Renderer) {
	if g.model != nil {
		g.model.Unload(r)
		g.model = nil
	}
	g.regenModel = true
}
