package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"blockeditor/internal/export"
	"blockeditor/internal/logging"
	"blockeditor/internal/persistence/indexdb"
	"blockeditor/internal/sim/assets"
	"blockeditor/internal/sim/mapman"
	"blockeditor/internal/sim/render"
	"blockeditor/internal/sim/settings"
)

func main() {
	var (
		configPath = flag.String("config", "./configs/editor.yaml", "editor settings path (defaults are used if missing)")
		in         = flag.String("in", "", "map to export (.te3 or .te3.zst)")
		out        = flag.String("out", "", "output path, .glb or .gltf (default: export_file_path from settings)")
		separate   = flag.String("separate", "", "true|false: one mesh per texture (default: export_separate_geometry from settings)")
		cull       = flag.String("cull", "", "true|false: drop hidden faces (default: cull_faces from settings)")
		dbPath     = flag.String("db", "", "sqlite index to record the export in (optional)")
	)
	flag.Parse()

	if *in == "" {
		fmt.Fprintln(os.Stderr, "missing -in")
		os.Exit(2)
	}
	cfg := settings.Defaults()
	if _, err := os.Stat(*configPath); err == nil {
		if cfg, err = settings.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, "settings:", err)
			os.Exit(2)
		}
	}
	opts := exportOptions{Out: cfg.ExportFilePath, Separate: cfg.ExportSeparateGeometry, Cull: cfg.CullFaces}
	if *out != "" {
		opts.Out = *out
	}
	var err error
	if opts.Separate, err = boolFlag(*separate, opts.Separate); err != nil {
		fmt.Fprintln(os.Stderr, "-separate:", err)
		os.Exit(2)
	}
	if opts.Cull, err = boolFlag(*cull, opts.Cull); err != nil {
		fmt.Fprintln(os.Stderr, "-cull:", err)
		os.Exit(2)
	}

	logger, _ := logging.New("export", logging.Options{Level: "warn", Out: os.Stderr})
	am, err := assets.New(assets.Options{Renderer: render.NewRecorder(), Logger: logger, CacheBytes: int64(cfg.AssetCacheMB) << 20})
	if err != nil {
		fmt.Fprintln(os.Stderr, "assets:", err)
		os.Exit(1)
	}
	defer am.Close()
	m := mapman.New(mapman.Options{Assets: am, Logger: logger})
	defer m.Close()
	if err := m.OpenFile(*in); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}

	res, err := exportMap(m, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *dbPath != "" {
		idx, err := indexdb.OpenSQLite(*dbPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "index:", err)
			os.Exit(1)
		}
		idx.RecordExport(indexdb.ExportRow{MapID: m.ID(), Path: res.Path, Format: res.Format, Meshes: res.Meshes, Triangles: res.Triangles})
		_ = idx.Close()
	}

	size := "?"
	if fi, err := os.Stat(res.Path); err == nil {
		size = humanize.Bytes(uint64(fi.Size()))
	}
	fmt.Printf("export ok: %s format=%s meshes=%d triangles=%s ents=%d size=%s\n",
		res.Path, res.Format, res.Meshes, humanize.Comma(int64(res.Triangles)), res.Ents, size)
}

type exportOptions struct {
	Out      string
	Separate bool
	Cull     bool
}

var errEmptyMap = errors.New("map has no cels to export")

func exportMap(m *mapman.Map, opts exportOptions) (export.Result, error) {
	if !m.Loaded() {
		return export.Result{}, errEmptyMap
	}
	m.SetCullFaces(opts.Cull)
	model, err := m.Model()
	if err != nil {
		return export.Result{}, fmt.Errorf("model: %w", err)
	}
	return export.Export(opts.Out, model, m.TexturePaths(), m.Ents().EntList(), export.Options{SeparateGeometry: opts.Separate})
}

func boolFlag(v string, def bool) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "":
		return def, nil
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return def, fmt.Errorf("%q is not a bool", v)
	}
}
