package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestArchiveRevision_CopiesAndPrunes(t *testing.T) {
	mapDir := t.TempDir()
	src := filepath.Join(mapDir, "level.te3")

	if _, ok, err := ArchiveRevision(mapDir, src, "m1", 2); ok || err != nil {
		t.Fatalf("missing source: ok=%v err=%v", ok, err)
	}

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var last string
	for i, body := range []string{"v1", "v2", "v3"} {
		if err := os.WriteFile(src, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		mt := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(src, mt, mt); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
		p, ok, err := ArchiveRevision(mapDir, src, "m1", 2)
		if err != nil || !ok {
			t.Fatalf("archive %d: ok=%v err=%v", i, ok, err)
		}
		last = p
	}

	got, err := os.ReadFile(last)
	if err != nil || string(got) != "v3" {
		t.Fatalf("latest revision %q err=%v", got, err)
	}
	dir := Dir(mapDir, src)
	if filepath.Dir(last) != dir || filepath.Base(dir) != "level" {
		t.Fatalf("revision dir %s", filepath.Dir(last))
	}

	b, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	var meta RevisionMeta
	if err := json.Unmarshal(b, &meta); err != nil {
		t.Fatalf("meta json: %v", err)
	}
	if meta.MapID != "m1" || meta.Source != "level.te3" || len(meta.Revisions) != 2 {
		t.Fatalf("meta %+v", meta)
	}
	if meta.Revisions[1] != filepath.Base(last) {
		t.Fatalf("newest revision %s want %s", meta.Revisions[1], filepath.Base(last))
	}
	oldest, err := os.ReadFile(filepath.Join(dir, meta.Revisions[0]))
	if err != nil || string(oldest) != "v2" {
		t.Fatalf("oldest kept %q err=%v", oldest, err)
	}
}

func TestArchiveRevision_Disabled(t *testing.T) {
	mapDir := t.TempDir()
	src := filepath.Join(mapDir, "level.te3")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := ArchiveRevision(mapDir, src, "m1", 0); ok || err != nil {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if _, err := os.Stat(filepath.Join(mapDir, "archives")); !os.IsNotExist(err) {
		t.Fatalf("archives dir created: %v", err)
	}
}
