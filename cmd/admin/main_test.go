package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"blockeditor/internal/persistence/indexdb"
)

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{
		"maps/a.te3",
		"maps/sub/b.te3",
		"maps/notes.txt",
		"snapshots/m-00000001.te3.zst",
		"snapshots/m-00000002.te3.zst",
	} {
		full := filepath.Join(dir, p)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := listFiles(dir)
	if err != nil {
		t.Fatalf("listFiles: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows=%d want 4: %+v", len(rows), rows)
	}
	if rows[0].Kind != "map" || rows[2].Kind != "snapshot" {
		t.Fatalf("order %+v", rows)
	}
	if filepath.Base(rows[2].Path) != "m-00000002.te3.zst" {
		t.Fatalf("newest snapshot first, got %s", rows[2].Path)
	}
	if rows[0].Size != "1 B" {
		t.Fatalf("size %q", rows[0].Size)
	}
}

func TestListFiles_MissingDirs(t *testing.T) {
	rows, err := listFiles(t.TempDir())
	if err != nil || len(rows) != 0 {
		t.Fatalf("rows=%v err=%v", rows, err)
	}
}

func TestRunQuery_Unknown(t *testing.T) {
	idx, err := indexdb.OpenSQLite(filepath.Join(t.TempDir(), "editor.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()
	ctx := context.Background()
	if err := runQuery(ctx, idx, "agents", "", 10, nil); err == nil {
		t.Fatalf("expected error for unknown query")
	}
	if err := runQuery(ctx, idx, "args", "", 10, []string{"args"}); err == nil {
		t.Fatalf("expected usage error without seq")
	}
	if err := runQuery(ctx, idx, "maps", "", 10, nil); err != nil {
		t.Fatalf("maps: %v", err)
	}
}
