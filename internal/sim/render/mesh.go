package render

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Mesh holds triangle geometry. Vertices and Normals are xyz triples,
// TexCoords are uv pairs. When Indices is empty every three consecutive
// vertices form a triangle.
type Mesh struct {
	Vertices  []float32
	TexCoords []float32
	Normals   []float32
	Indices   []uint32

	// Handle is set by the Renderer on upload; zero means not resident.
	Handle uint32
}

func (m *Mesh) VertexCount() int { return len(m.Vertices) / 3 }

func (m *Mesh) TriangleCount() int {
	if len(m.Indices) > 0 {
		return len(m.Indices) / 3
	}
	return m.VertexCount() / 3
}

func (m *Mesh) Uploaded() bool { return m.Handle != 0 }

// Triangle returns the vertex indices of triangle t.
func (m *Mesh) Triangle(t int) (a, b, c int) {
	if len(m.Indices) > 0 {
		return int(m.Indices[t*3]), int(m.Indices[t*3+1]), int(m.Indices[t*3+2])
	}
	return t * 3, t*3 + 1, t*3 + 2
}

func (m *Mesh) Vertex(i int) mgl32.Vec3 {
	return mgl32.Vec3{m.Vertices[i*3], m.Vertices[i*3+1], m.Vertices[i*3+2]}
}

func (m *Mesh) Normal(i int) mgl32.Vec3 {
	if i*3+2 >= len(m.Normals) {
		return mgl32.Vec3{}
	}
	return mgl32.Vec3{m.Normals[i*3], m.Normals[i*3+1], m.Normals[i*3+2]}
}

func (m *Mesh) TexCoord(i int) mgl32.Vec2 {
	if i*2+1 >= len(m.TexCoords) {
		return mgl32.Vec2{}
	}
	return mgl32.Vec2{m.TexCoords[i*2], m.TexCoords[i*2+1]}
}

// MeshBuilder accumulates an indexed mesh.
type MeshBuilder struct {
	mesh Mesh
}

// AddVertex appends a vertex and returns its index.
func (b *MeshBuilder) AddVertex(pos, normal mgl32.Vec3, uv mgl32.Vec2) uint32 {
	idx := uint32(len(b.mesh.Vertices) / 3)
	b.mesh.Vertices = append(b.mesh.Vertices, pos[0], pos[1], pos[2])
	b.mesh.Normals = append(b.mesh.Normals, normal[0], normal[1], normal[2])
	b.mesh.TexCoords = append(b.mesh.TexCoords, uv[0], uv[1])
	return idx
}

func (b *MeshBuilder) AddTriangle(i0, i1, i2 uint32) {
	b.mesh.Indices = append(b.mesh.Indices, i0, i1, i2)
}

func (b *MeshBuilder) VertexCount() int { return len(b.mesh.Vertices) / 3 }

func (b *MeshBuilder) Build() *Mesh {
	m := b.mesh
	b.mesh = Mesh{}
	return &m
}

var cubeFaces = [6]struct{ n, u, v mgl32.Vec3 }{
	{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
	{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
	{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
	{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
	{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
	{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
}

// Cube builds an axis-aligned cube centered on the origin with the given half
// extent. Faces wind counter-clockwise seen from outside. Opposite faces are
// split along the same world diagonal, so two abutting cubes have coincident
// triangles on their shared face.
func Cube(half float32) *Mesh {
	var b MeshBuilder
	for _, f := range cubeFaces {
		c := f.n.Mul(half)
		u := f.u.Mul(half)
		v := f.v.Mul(half)
		i0 := b.AddVertex(c.Sub(u).Sub(v), f.n, mgl32.Vec2{0, 1})
		i1 := b.AddVertex(c.Add(u).Sub(v), f.n, mgl32.Vec2{1, 1})
		i2 := b.AddVertex(c.Add(u).Add(v), f.n, mgl32.Vec2{1, 0})
		i3 := b.AddVertex(c.Sub(u).Add(v), f.n, mgl32.Vec2{0, 0})
		if f.n.X()+f.n.Y()+f.n.Z() > 0 {
			b.AddTriangle(i0, i1, i2)
			b.AddTriangle(i0, i2, i3)
		} else {
			b.AddTriangle(i0, i1, i3)
			b.AddTriangle(i1, i2, i3)
		}
	}
	return b.Build()
}

// SpriteQuad builds a unit quad in the XY plane facing +Z.
func SpriteQuad() *Mesh {
	var b MeshBuilder
	n := mgl32.Vec3{0, 0, 1}
	i0 := b.AddVertex(mgl32.Vec3{-0.5, -0.5, 0}, n, mgl32.Vec2{0, 1})
	i1 := b.AddVertex(mgl32.Vec3{0.5, -0.5, 0}, n, mgl32.Vec2{1, 1})
	i2 := b.AddVertex(mgl32.Vec3{0.5, 0.5, 0}, n, mgl32.Vec2{1, 0})
	i3 := b.AddVertex(mgl32.Vec3{-0.5, 0.5, 0}, n, mgl32.Vec2{0, 0})
	b.AddTriangle(i0, i1, i2)
	b.AddTriangle(i0, i2, i3)
	return b.Build()
}

// Sphere builds a UV sphere of radius 1.
func Sphere(rings, slices int) *Mesh {
	rings = max(rings, 2)
	slices = max(slices, 3)
	var b MeshBuilder
	for r := 0; r <= rings; r++ {
		phi := math.Pi * float64(r) / float64(rings)
		for s := 0; s <= slices; s++ {
			theta := 2 * math.Pi * float64(s) / float64(slices)
			p := mgl32.Vec3{
				float32(math.Sin(phi) * math.Cos(theta)),
				float32(math.Cos(phi)),
				float32(math.Sin(phi) * math.Sin(theta)),
			}
			b.AddVertex(p, p, mgl32.Vec2{float32(s) / float32(slices), float32(r) / float32(rings)})
		}
	}
	row := uint32(slices + 1)
	for r := 0; r < rings; r++ {
		for s := 0; s < slices; s++ {
			a := uint32(r)*row + uint32(s)
			c := a + row
			b.AddTriangle(a, a+1, c)
			b.AddTriangle(a+1, c+1, c)
		}
	}
	return b.Build()
}
