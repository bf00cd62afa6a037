// Package render defines the drawing boundary of the editor core. Geometry
// and textures are plain values owned by their producers; a Renderer only
// receives upload, unload and draw requests.
package render

import (
	"image"
	"image/color"

	"github.com/go-gl/mathgl/mgl32"
)

// Texture is a loaded image. ID 0 means "no texture".
type Texture struct {
	ID     uint32
	Width  int
	Height int
}

func (t Texture) Valid() bool { return t.ID != 0 }

type Material struct {
	Texture Texture
	Tint    color.RGBA
}

var White = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// Model is a set of meshes sharing one transform. MeshMaterial[i] indexes
// Materials for Meshes[i].
type Model struct {
	Transform    mgl32.Mat4
	Meshes       []*Mesh
	MeshMaterial []int
	Materials    []Material
}

func NewModel() *Model {
	return &Model{Transform: mgl32.Ident4()}
}

// AddMesh appends a mesh drawn with material index mat.
func (m *Model) AddMesh(mesh *Mesh, mat int) {
	m.Meshes = append(m.Meshes, mesh)
	m.MeshMaterial = append(m.MeshMaterial, mat)
}

func (m *Model) TriangleCount() int {
	n := 0
	for _, mesh := range m.Meshes {
		n += mesh.TriangleCount()
	}
	return n
}

// Upload sends every mesh to r. Meshes already resident are skipped.
func (m *Model) Upload(r Renderer) error {
	for _, mesh := range m.Meshes {
		if err := r.UploadMesh(mesh); err != nil {
			return err
		}
	}
	return nil
}

// Unload releases the model's meshes. Textures referenced by materials are
// owned elsewhere and stay loaded.
func (m *Model) Unload(r Renderer) {
	for _, mesh := range m.Meshes {
		r.UnloadMesh(mesh)
	}
}

// Draw issues one draw call per mesh with the model transform premultiplied.
func (m *Model) Draw(r Renderer, transform mgl32.Mat4) {
	full := transform.Mul4(m.Transform)
	for i, mesh := range m.Meshes {
		mat := Material{Tint: White}
		if i < len(m.MeshMaterial) && m.MeshMaterial[i] >= 0 && m.MeshMaterial[i] < len(m.Materials) {
			mat = m.Materials[m.MeshMaterial[i]]
		}
		r.DrawMesh(mesh, mat, full)
	}
}

// Renderer is the capability set the core needs from a graphics backend.
type Renderer interface {
	// UploadMesh makes a mesh drawable. It must be a no-op for a mesh that
	// already holds a handle.
	UploadMesh(m *Mesh) error
	UnloadMesh(m *Mesh)

	LoadTexture(path string) (Texture, error)
	CreateTexture(img image.Image) (Texture, error)
	UnloadTexture(t Texture)

	DrawMesh(m *Mesh, mat Material, transform mgl32.Mat4)
	DrawMeshInstanced(m *Mesh, mat Material, transforms []mgl32.Mat4)
	// DrawLabel draws text in screen space, in pixels from the top left.
	DrawLabel(text string, x, y float32)
}
