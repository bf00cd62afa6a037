package main

import (
	"bytes"
	"strings"
	"testing"

	"blockeditor/internal/logging"
	"blockeditor/internal/sim/assets"
	"blockeditor/internal/sim/entity"
	"blockeditor/internal/sim/grid"
	"blockeditor/internal/sim/mapman"
	"blockeditor/internal/sim/render"
	"blockeditor/internal/sim/tile"
)

func TestInspect(t *testing.T) {
	am, err := assets.New(assets.Options{Renderer: render.NewRecorder(), Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("assets.New: %v", err)
	}
	m := mapman.New(mapman.Options{Assets: am, Logger: logging.Discard(), UndoMax: 4})
	m.NewMap(3, 2, 1)
	m.GetOrAddTexID("tex/unused.png")
	cube := tile.Tile{Shape: m.GetOrAddModelID("shapes/cube.obj"), Texture: m.GetOrAddTexID("tex/a.png")}
	if err := m.ExecuteTileAction(grid.Pos{}, grid.Pos{X: 2, Y: 1, Z: 1}, cube); err != nil {
		t.Fatalf("ExecuteTileAction: %v", err)
	}
	if err := m.ExecuteEntPlacement(grid.Pos{X: 2, Y: 1}, entity.New(1)); err != nil {
		t.Fatalf("ExecuteEntPlacement: %v", err)
	}

	rep, err := inspect(m)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if rep.Dims != [3]int{3, 2, 1} || rep.Tiles != 2 || rep.Ents != 1 || rep.Edits != 2 {
		t.Fatalf("report %+v", rep)
	}
	if len(rep.Textures) != 1 || rep.Textures[0] != "tex/a.png" || len(rep.Shapes) != 1 {
		t.Fatalf("used ids %v %v", rep.Textures, rep.Shapes)
	}
	if rep.Batches != 1 || rep.Instances != 2 {
		t.Fatalf("batches=%d instances=%d", rep.Batches, rep.Instances)
	}
	if rep.Triangles != 24 || rep.Culled != 20 {
		t.Fatalf("triangles=%d culled=%d", rep.Triangles, rep.Culled)
	}
	if len(rep.Layers) != 2 || rep.Layers[0] != 2 || rep.Layers[1] != 0 {
		t.Fatalf("layers %v", rep.Layers)
	}
	if rep.DataBytes == 0 || rep.RawBytes == 0 || rep.LayersRLE == "" {
		t.Fatalf("encoding sizes %+v", rep)
	}
	if m.CullFaces() {
		t.Fatalf("cull setting not restored")
	}

	var buf bytes.Buffer
	rep.print(&buf)
	if !strings.Contains(buf.String(), "3x2x1") || !strings.Contains(buf.String(), "24 merged, 20 culled") {
		t.Fatalf("print:\n%s", buf.String())
	}
}
