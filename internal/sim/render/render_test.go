package render

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestCube_FacesPointOutward(t *testing.T) {
	m := Cube(1)
	if m.VertexCount() != 24 || m.TriangleCount() != 12 {
		t.Fatalf("cube: %d verts %d tris", m.VertexCount(), m.TriangleCount())
	}
	for tri := 0; tri < m.TriangleCount(); tri++ {
		a, b, c := m.Triangle(tri)
		v0, v1, v2 := m.Vertex(a), m.Vertex(b), m.Vertex(c)
		n := v1.Sub(v0).Cross(v2.Sub(v0)).Normalize()
		if !n.ApproxEqualThreshold(m.Normal(a), 1e-5) {
			t.Fatalf("triangle %d: winding normal %v vs stored %v", tri, n, m.Normal(a))
		}
		center := v0.Add(v1).Add(v2).Mul(1.0 / 3)
		if center.Dot(n) <= 0 {
			t.Fatalf("triangle %d faces inward", tri)
		}
	}
}

func TestSphere_Counts(t *testing.T) {
	m := Sphere(4, 6)
	if m.VertexCount() != 5*7 {
		t.Fatalf("vertices: %d", m.VertexCount())
	}
	if m.TriangleCount() != 4*6*2 {
		t.Fatalf("triangles: %d", m.TriangleCount())
	}
}

func TestRecorder_UploadIsIdempotent(t *testing.T) {
	r := NewRecorder()
	m := Cube(1)
	if err := r.UploadMesh(m); err != nil {
		t.Fatalf("UploadMesh: %v", err)
	}
	h := m.Handle
	if err := r.UploadMesh(m); err != nil {
		t.Fatalf("UploadMesh again: %v", err)
	}
	if m.Handle != h || r.Uploads != 1 || r.LiveMeshes() != 1 {
		t.Fatalf("second upload was not a no-op: handle %d->%d uploads=%d", h, m.Handle, r.Uploads)
	}
	r.UnloadMesh(m)
	if m.Uploaded() || r.LiveMeshes() != 0 {
		t.Fatalf("mesh still resident after unload")
	}
}

func TestRecorder_LoadTexture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tex.png")
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	f.Close()

	r := NewRecorder()
	tex, err := r.LoadTexture(path)
	if err != nil {
		t.Fatalf("LoadTexture: %v", err)
	}
	if !tex.Valid() || tex.Width != 8 || tex.Height != 4 {
		t.Fatalf("unexpected texture %+v", tex)
	}
	if _, err := r.LoadTexture(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	r.UnloadTexture(tex)
	if r.LiveTextures() != 0 {
		t.Fatalf("texture still live")
	}
}

func TestCamera_WorldToNDC(t *testing.T) {
	cam := NewCamera(mgl32.Vec3{0, 0, 10}, 0, 0, 1)
	ndc, ok := cam.WorldToNDC(mgl32.Vec3{0, 0, 0})
	if !ok {
		t.Fatalf("point ahead reported behind")
	}
	if abs(ndc.X()) > 1e-5 || abs(ndc.Y()) > 1e-5 || ndc.Z() >= 1 || ndc.Z() <= -1 {
		t.Fatalf("center point ndc %v", ndc)
	}
	if _, ok := cam.WorldToNDC(mgl32.Vec3{0, 0, 20}); ok {
		t.Fatalf("point behind camera reported visible")
	}
	ndc, _ = cam.WorldToNDC(mgl32.Vec3{100, 0, 0})
	if ndc.X() < 1 {
		t.Fatalf("far-right point inside frustum: %v", ndc)
	}
}

func TestModel_DrawUsesMaterials(t *testing.T) {
	r := NewRecorder()
	m := NewModel()
	m.Materials = []Material{{Tint: White}, {Texture: Texture{ID: 7}, Tint: White}}
	m.AddMesh(Cube(1), 1)
	m.AddMesh(SpriteQuad(), 0)
	if err := m.Upload(r); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	m.Draw(r, mgl32.Ident4())
	if r.Count(CallMesh) != 2 {
		t.Fatalf("draw calls: %d", r.Count(CallMesh))
	}
	if r.Calls[0].Material.Texture.ID != 7 {
		t.Fatalf("first mesh drawn with wrong material: %+v", r.Calls[0].Material)
	}
	m.Unload(r)
	if r.LiveMeshes() != 0 {
		t.Fatalf("meshes leaked: %d", r.LiveMeshes())
	}
}

func abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
