package export

import (
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"

	"blockeditor/internal/logging"
	"blockeditor/internal/sim/assets"
	"blockeditor/internal/sim/entity"
	"blockeditor/internal/sim/grid"
	"blockeditor/internal/sim/mapman"
	"blockeditor/internal/sim/render"
	"blockeditor/internal/sim/tile"
)

// twoTextureMap has a 2x1x1 row of cubes with texture a and one cube with
// texture b, plus one named ent.
func twoTextureMap(t *testing.T) *mapman.Map {
	t.Helper()
	am, err := assets.New(assets.Options{Renderer: render.NewRecorder(), Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("assets.New: %v", err)
	}
	m := mapman.New(mapman.Options{Assets: am, Logger: logging.Discard(), UndoMax: 4, CullFaces: true})
	m.NewMap(4, 1, 1)
	shape := m.GetOrAddModelID("shapes/cube.obj")
	a := tile.Tile{Shape: shape, Texture: m.GetOrAddTexID("tex/a.png")}
	b := tile.Tile{Shape: shape, Texture: m.GetOrAddTexID("tex/b.png")}
	if err := m.ExecuteTileAction(grid.Pos{}, grid.Pos{X: 2, Y: 1, Z: 1}, a); err != nil {
		t.Fatalf("ExecuteTileAction: %v", err)
	}
	if err := m.ExecuteTileAction(grid.Pos{X: 3}, grid.Pos{X: 1, Y: 1, Z: 1}, b); err != nil {
		t.Fatalf("ExecuteTileAction: %v", err)
	}
	e := entity.New(1)
	e.Properties["name"] = "spawn"
	e.Properties["team"] = "red"
	if err := m.ExecuteEntPlacement(grid.Pos{X: 2}, e); err != nil {
		t.Fatalf("ExecuteEntPlacement: %v", err)
	}
	return m
}

func TestBuild_SingleNode(t *testing.T) {
	m := twoTextureMap(t)
	model, err := m.Model()
	if err != nil {
		t.Fatalf("Model: %v", err)
	}
	doc, res := Build(model, m.TexturePaths(), m.Ents().EntList(), Options{})

	if len(doc.Meshes) != 1 || len(doc.Meshes[0].Primitives) != 2 {
		t.Fatalf("meshes=%d", len(doc.Meshes))
	}
	if len(doc.Materials) != 2 || len(doc.Images) != 2 || doc.Images[0].URI != "tex/a.png" {
		t.Fatalf("materials=%d images=%d", len(doc.Materials), len(doc.Images))
	}
	// Two abutting cubes lose their shared faces: 24-4 triangles, plus 12.
	if res.Triangles != 32 {
		t.Fatalf("triangles=%d want 32", res.Triangles)
	}
	if res.Meshes != 1 || res.Ents != 1 {
		t.Fatalf("result %+v", res)
	}
	// map node and ent node.
	if len(doc.Nodes) != 2 || len(doc.Scenes[0].Nodes) != 2 {
		t.Fatalf("nodes=%d", len(doc.Nodes))
	}
	ent := doc.Nodes[1]
	if ent.Name != "spawn" || ent.Mesh != nil {
		t.Fatalf("ent node %+v", ent)
	}
	want := m.Ents().EntList()[0].Position
	if ent.Translation != [3]float64{float64(want.X()), float64(want.Y()), float64(want.Z())} {
		t.Fatalf("translation %v want %v", ent.Translation, want)
	}
	extras, ok := ent.Extras.(map[string]string)
	if !ok || extras["team"] != "red" {
		t.Fatalf("extras %#v", ent.Extras)
	}
}

func TestBuild_SeparateGeometry(t *testing.T) {
	m := twoTextureMap(t)
	model, err := m.Model()
	if err != nil {
		t.Fatalf("Model: %v", err)
	}
	doc, res := Build(model, m.TexturePaths(), nil, Options{SeparateGeometry: true})
	if len(doc.Meshes) != 2 || res.Meshes != 2 {
		t.Fatalf("meshes=%d", len(doc.Meshes))
	}
	for i, n := range doc.Nodes {
		if n.Mesh == nil || *n.Mesh != i {
			t.Fatalf("node %d mesh %v", i, n.Mesh)
		}
	}
	if doc.Meshes[1].Name != "b" {
		t.Fatalf("mesh name %q", doc.Meshes[1].Name)
	}
}

func TestBuild_SkipsUntexturedMaterials(t *testing.T) {
	model := render.NewModel()
	model.AddMesh(render.Cube(1), 0)
	model.AddMesh(render.Cube(1), 1)
	doc, res := Build(model, []string{"", "tex/b.png"}, nil, Options{})
	if len(doc.Materials) != 1 || res.Triangles != 12 {
		t.Fatalf("materials=%d triangles=%d", len(doc.Materials), res.Triangles)
	}
}

func TestExport_WritesFiles(t *testing.T) {
	m := twoTextureMap(t)
	model, err := m.Model()
	if err != nil {
		t.Fatalf("Model: %v", err)
	}
	dir := t.TempDir()

	res, err := Export(filepath.Join(dir, "map.glb"), model, m.TexturePaths(), m.Ents().EntList(), Options{})
	if err != nil {
		t.Fatalf("Export glb: %v", err)
	}
	if res.Format != "glb" {
		t.Fatalf("format %q", res.Format)
	}
	doc, err := gltf.Open(res.Path)
	if err != nil {
		t.Fatalf("Open glb: %v", err)
	}
	if len(doc.Meshes) != 1 || len(doc.Meshes[0].Primitives) != 2 {
		t.Fatalf("read back %d meshes", len(doc.Meshes))
	}

	res, err = Export(filepath.Join(dir, "map"), model, m.TexturePaths(), nil, Options{SeparateGeometry: true})
	if err != nil {
		t.Fatalf("Export gltf: %v", err)
	}
	if filepath.Ext(res.Path) != ".gltf" {
		t.Fatalf("path %s", res.Path)
	}
	if doc, err = gltf.Open(res.Path); err != nil || len(doc.Meshes) != 2 {
		t.Fatalf("Open gltf: %v", err)
	}

	if _, err := Export(filepath.Join(dir, "map.obj"), model, nil, nil, Options{}); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
}

func TestEntRotation(t *testing.T) {
	e := entity.New(1)
	e.Yaw = 90
	doc, _ := Build(nil, nil, []entity.Ent{e}, Options{})
	r := doc.Nodes[0].Rotation
	q := mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0})
	got := mgl32.Quat{W: float32(r[3]), V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])}}
	if !got.ApproxEqualThreshold(q, 1e-5) && !got.ApproxEqualThreshold(q.Scale(-1), 1e-5) {
		t.Fatalf("rotation %v want %v", got, q)
	}
	if doc.Nodes[0].Name != "ent0" {
		t.Fatalf("name %q", doc.Nodes[0].Name)
	}
}
