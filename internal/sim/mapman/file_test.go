package mapman

import (
	"path/filepath"
	"testing"
	"time"

	"blockeditor/internal/persistence/mapfile"
	"blockeditor/internal/persistence/snapshot"
	"blockeditor/internal/sim/grid"
)

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	m, _, _ := newTestMap(t, 4)
	m.NewMap(2, 1, 2)
	_ = m.ExecuteTileAction(grid.Pos{}, grid.Pos{X: 2, Y: 1, Z: 1}, cubeTile(m, "tex/a.png"))
	doc, err := m.Document()
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	te3, err := mapfile.Write(filepath.Join(dir, "level"), doc)
	if err != nil {
		t.Fatalf("mapfile.Write: %v", err)
	}
	snapPath := filepath.Join(dir, snapshot.FileName(m.ID(), 42))
	doc.ID = ""
	err = snapshot.WriteSnapshot(snapPath, snapshot.SnapshotV1{
		Header:   snapshot.Header{Version: snapshot.Version, MapID: m.ID(), SavedAt: time.Now(), Edits: 42},
		Document: doc,
	})
	if err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	fromFile, _, _ := newTestMap(t, 4)
	if err := fromFile.OpenFile(te3); err != nil {
		t.Fatalf("OpenFile te3: %v", err)
	}
	if fromFile.ID() != m.ID() || fromFile.Stats().Tiles != 2 || fromFile.Edits() != 0 {
		t.Fatalf("te3 id=%s tiles=%d edits=%d", fromFile.ID(), fromFile.Stats().Tiles, fromFile.Edits())
	}

	fromSnap, _, _ := newTestMap(t, 4)
	if err := fromSnap.OpenFile(snapPath); err != nil {
		t.Fatalf("OpenFile snapshot: %v", err)
	}
	if fromSnap.ID() != m.ID() || fromSnap.Stats().Tiles != 2 || fromSnap.Edits() != 42 {
		t.Fatalf("snapshot id=%s tiles=%d edits=%d", fromSnap.ID(), fromSnap.Stats().Tiles, fromSnap.Edits())
	}

	if err := fromSnap.OpenFile(filepath.Join(dir, "missing.te3")); err == nil {
		t.Fatalf("expected error for a missing file")
	}
	if fromSnap.Edits() != 42 {
		t.Fatalf("failed open changed the map")
	}
}
