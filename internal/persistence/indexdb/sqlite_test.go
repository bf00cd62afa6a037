package indexdb

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"blockeditor/internal/logging"
	persistlog "blockeditor/internal/persistence/log"
	"blockeditor/internal/persistence/snapshot"
	"blockeditor/internal/sim/assets"
	"blockeditor/internal/sim/encoding"
	"blockeditor/internal/sim/grid"
	"blockeditor/internal/sim/mapman"
	"blockeditor/internal/sim/render"
	"blockeditor/internal/sim/tile"
)

func testMap(t *testing.T) *mapman.Map {
	t.Helper()
	am, err := assets.New(assets.Options{Renderer: render.NewRecorder(), Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("assets.New: %v", err)
	}
	m := mapman.New(mapman.Options{Assets: am, Logger: logging.Discard(), UndoMax: 10})
	m.NewMap(3, 3, 3)
	ct := tile.Tile{Shape: m.GetOrAddModelID("shapes/cube.obj"), Texture: m.GetOrAddTexID("tex/a.png")}
	if err := m.ExecuteTileAction(grid.Pos{}, grid.Pos{X: 3, Y: 1, Z: 3}, ct); err != nil {
		t.Fatalf("ExecuteTileAction: %v", err)
	}
	if err := m.ExecuteTileAction(grid.Pos{Y: 2}, grid.Pos{X: 1, Y: 1, Z: 1}, ct); err != nil {
		t.Fatalf("ExecuteTileAction: %v", err)
	}
	return m
}

func TestLayerOccupancy(t *testing.T) {
	m := testMap(t)
	got := LayerOccupancy(m.Tiles())
	if len(got) != 3 || got[0] != 9 || got[1] != 0 || got[2] != 1 {
		t.Fatalf("occupancy %v", got)
	}
	ids, err := encoding.DecodeCounts(encoding.EncodeCounts(got), 3)
	if err != nil || len(ids) != 3 || ids[0] != 9 {
		t.Fatalf("digest round trip %v %v", ids, err)
	}
}

func TestSQLiteIndex_RecordAndQuery(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.sqlite")
	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	m := testMap(t)

	idx.RecordMap("maps/a.te3", m)

	snapPath := filepath.Join(t.TempDir(), snapshot.FileName(m.ID(), 2))
	if err := os.WriteFile(snapPath, []byte("12345"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	idx.RecordSnapshot(snapPath, snapshot.Header{MapID: m.ID(), Edits: 2, SavedAt: time.Now()})
	idx.RecordExport(ExportRow{MapID: m.ID(), Path: "out/a.glb", Format: "glb", Meshes: 1, Triangles: 12})
	for i, op := range []string{"SET_TILES", "SET_TILES", "UNDO"} {
		_ = idx.WriteEdit(persistlog.EditEntry{
			Time:   time.Now(),
			MapID:  m.ID(),
			Client: "c1",
			Op:     op,
			Edits:  uint64(i + 1),
			Args:   json.RawMessage(`{"n":1}`),
			Result: "ok",
		})
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	idx, err = OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()
	ctx := context.Background()

	maps, err := idx.Maps(ctx)
	if err != nil {
		t.Fatalf("Maps: %v", err)
	}
	if len(maps) != 1 {
		t.Fatalf("maps=%d want 1", len(maps))
	}
	row := maps[0]
	if row.ID != m.ID() || row.Path != "maps/a.te3" || row.Width != 3 || row.Tiles != 10 || row.Textures != 1 || row.Edits != 2 {
		t.Fatalf("map row %+v", row)
	}
	if row.Layers != encoding.EncodeCounts([]int{9, 0, 1}) {
		t.Fatalf("layers %q", row.Layers)
	}

	snaps, err := idx.Snapshots(ctx, m.ID())
	if err != nil || len(snaps) != 1 || snaps[0].Bytes != 5 || snaps[0].Edits != 2 {
		t.Fatalf("snapshots %+v err=%v", snaps, err)
	}
	exps, err := idx.Exports(ctx, m.ID())
	if err != nil || len(exps) != 1 || exps[0].Triangles != 12 {
		t.Fatalf("exports %+v err=%v", exps, err)
	}

	edits, err := idx.Edits(ctx, m.ID(), 2)
	if err != nil {
		t.Fatalf("Edits: %v", err)
	}
	if len(edits) != 2 || edits[0].Edits != 2 || edits[1].Op != "UNDO" {
		t.Fatalf("edits %+v", edits)
	}
	args, err := idx.Args(ctx, edits[1].Seq)
	if err != nil || string(args) != `{"n":1}` {
		t.Fatalf("args %s err=%v", args, err)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqEdit}

	m := testMap(t)
	s.RecordMap("a.te3", m)
	s.RecordSnapshot("missing.te3.zst", snapshot.Header{MapID: "m"})
	s.RecordExport(ExportRow{MapID: "m"})
	_ = s.WriteEdit(persistlog.EditEntry{MapID: "m"})

	st := s.Stats()
	if st.DropMapTotal != 1 || st.DropSnapshotTotal != 1 || st.DropExportTotal != 1 || st.DropEditTotal != 1 {
		t.Fatalf("drops %+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_NilSafe(t *testing.T) {
	var s *SQLiteIndex
	s.RecordExport(ExportRow{})
	if err := s.WriteEdit(persistlog.EditEntry{}); err != nil {
		t.Fatalf("WriteEdit on nil: %v", err)
	}
	if st := s.Stats(); st.QueueCapacity != 0 {
		t.Fatalf("stats on nil %+v", st)
	}
}
