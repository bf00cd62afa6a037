package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"blockeditor/internal/persistence/mapfile"
	"blockeditor/internal/sim/entity"
)

func sample() SnapshotV1 {
	e := entity.New(2)
	e.Display = entity.DisplaySprite
	e.TexturePath = "tex/torch.png"
	e.Properties["name"] = "torch"
	return SnapshotV1{
		Header: Header{MapID: "m1", SavedAt: time.Unix(1700000000, 0).UTC(), Edits: 12},
		Document: mapfile.Document{
			ID: "m1",
			Tiles: mapfile.Tiles{
				Width: 2, Height: 1, Length: 1, Spacing: 2,
				Textures: []string{"tex/a.png"},
				Shapes:   []string{"shapes/cube.obj"},
				Data:     "AAAAAAAAAAAAAAAAAAAAAA==",
			},
			Ents:                  []entity.Ent{e},
			DefaultCameraPosition: [3]float32{1, 2, 3},
		},
	}
}

func TestWriteReadSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snaps", FileName("m1", 12))
	if err := WriteSnapshot(path, sample()); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	want := sample()
	if got.Header.Version != Version || got.Header.Edits != 12 || !got.Header.SavedAt.Equal(want.Header.SavedAt) {
		t.Fatalf("header %+v", got.Header)
	}
	if got.Document.Tiles.Data != want.Document.Tiles.Data || got.Document.Tiles.Shapes[0] != "shapes/cube.obj" {
		t.Fatalf("tiles %+v", got.Document.Tiles)
	}
	if len(got.Document.Ents) != 1 || !got.Document.Ents[0].Equal(want.Document.Ents[0]) {
		t.Fatalf("ents %+v", got.Document.Ents)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.MapID != "m1" || h.Edits != 12 {
		t.Fatalf("header line %+v", h)
	}
}

func TestReadSnapshot_NotZstd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad"+Ext)
	_ = os.WriteFile(path, []byte("plain text"), 0o644)
	if _, err := ReadSnapshot(path); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	for _, edits := range []uint64{3, 120, 45} {
		s := sample()
		s.Header.Edits = edits
		if err := WriteSnapshot(filepath.Join(dir, FileName("m1", edits)), s); err != nil {
			t.Fatalf("WriteSnapshot: %v", err)
		}
	}
	_ = WriteSnapshot(filepath.Join(dir, FileName("other", 999)), sample())

	p, ok := Latest(dir, "m1")
	if !ok || filepath.Base(p) != FileName("m1", 120) {
		t.Fatalf("Latest = %q %v", p, ok)
	}
	if _, ok := Latest(dir, "missing"); ok {
		t.Fatalf("found a snapshot for an unknown map")
	}
}
