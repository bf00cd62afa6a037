package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"blockeditor/internal/logging"
	persistlog "blockeditor/internal/persistence/log"
	"blockeditor/internal/persistence/mapfile"
	"blockeditor/internal/persistence/snapshot"
	"blockeditor/internal/protocol"
	"blockeditor/internal/sim/assets"
	"blockeditor/internal/sim/editor"
	"blockeditor/internal/sim/mapman"
	"blockeditor/internal/sim/render"
)

func main() {
	var (
		snapPath  = flag.String("snapshot", "", "path to .te3.zst")
		dataDir   = flag.String("data", "", "data dir whose edits/ holds edits-*.jsonl.zst (optional)")
		toEdits   = flag.Uint64("to_edits", 0, "stop after this edit count (inclusive, optional)")
		outPath   = flag.String("out", "", "write the replayed map to this .te3 path (optional)")
		verbosity = flag.String("log_level", "warn", "log level")
	)
	flag.Parse()

	if *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	t := snap.Document.Tiles
	fmt.Printf("snapshot v%d map=%s edits=%d dims=%dx%dx%d textures=%d shapes=%d ents=%d\n",
		snap.Header.Version, snap.Header.MapID, snap.Header.Edits, t.Width, t.Height, t.Length,
		len(t.Textures), len(t.Shapes), len(snap.Document.Ents))

	if *dataDir == "" {
		return
	}

	logger, _ := logging.New("replay", logging.Options{Level: *verbosity, Out: os.Stderr})
	am, err := assets.New(assets.Options{Renderer: render.NewRecorder(), Logger: logger})
	if err != nil {
		fmt.Fprintln(os.Stderr, "assets:", err)
		os.Exit(1)
	}
	m := mapman.New(mapman.Options{Assets: am, Logger: logger, UndoMax: 1 << 16})
	if snap.Document.ID == "" {
		snap.Document.ID = snap.Header.MapID
	}
	if err := m.LoadDocument(snap.Document); err != nil {
		fmt.Fprintln(os.Stderr, "import snapshot:", err)
		os.Exit(1)
	}
	m.ResumeEdits(snap.Header.Edits)
	sess := editor.New(m, editor.Config{}, logger)

	files, err := persistlog.Files(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list edits:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no edit journals found in", *dataDir)
		os.Exit(1)
	}

	var checked uint64
	for _, path := range files {
		done, err := replayFile(sess, m.ID(), path, snap.Header.Edits, *toEdits, &checked)
		if err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
		if done {
			break
		}
	}
	st := m.Stats()
	fmt.Printf("replay ok: checked=%d edits (from snapshot edits=%d) now edits=%d tiles=%d ents=%d\n",
		checked, snap.Header.Edits, m.Edits(), st.Tiles, st.Ents)

	if *outPath != "" {
		doc, err := m.Document()
		if err != nil {
			fmt.Fprintln(os.Stderr, "document:", err)
			os.Exit(1)
		}
		written, err := mapfile.Write(*outPath, doc)
		if err != nil {
			fmt.Fprintln(os.Stderr, "write:", err)
			os.Exit(1)
		}
		fmt.Println("wrote", written)
	}
}

// replayFile applies the accepted entries of one journal for mapID that come
// after startEdits. It reports done once toEdits is passed.
func replayFile(sess *editor.Session, mapID, path string, startEdits, toEdits uint64, checked *uint64) (bool, error) {
	entries, err := persistlog.ReadEdits(path)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.MapID != mapID || e.Result != "ok" || e.Edits <= startEdits {
			continue
		}
		if toEdits != 0 && e.Edits > toEdits {
			return true, nil
		}
		var ed protocol.EditMsg
		if err := json.Unmarshal(e.Args, &ed); err != nil {
			return false, fmt.Errorf("%s: args: %w", filepath.Base(path), err)
		}
		got, code := sess.Replay(ed)
		if code != "" {
			return false, fmt.Errorf("%s %s at edits=%d: rejected with %s", filepath.Base(path), e.Op, e.Edits, code)
		}
		if got != e.Edits {
			return false, fmt.Errorf("edit count mismatch after %s: got=%d want=%d (file=%s)", e.Op, got, e.Edits, filepath.Base(path))
		}
		*checked++
	}
	return false, nil
}
