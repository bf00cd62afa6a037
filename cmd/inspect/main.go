package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-gl/mathgl/mgl32"

	"blockeditor/internal/logging"
	"blockeditor/internal/persistence/indexdb"
	"blockeditor/internal/sim/assets"
	"blockeditor/internal/sim/encoding"
	"blockeditor/internal/sim/mapman"
	"blockeditor/internal/sim/render"
)

func main() {
	var (
		in     = flag.String("in", "", "map to inspect (.te3 or .te3.zst)")
		asJSON = flag.Bool("json", false, "print the report as JSON")
		logLvl = flag.String("log_level", "warn", "log level")
	)
	flag.Parse()

	if *in == "" {
		fmt.Fprintln(os.Stderr, "missing -in")
		os.Exit(2)
	}
	logger, _ := logging.New("inspect", logging.Options{Level: *logLvl, Out: os.Stderr})
	am, err := assets.New(assets.Options{Renderer: render.NewRecorder(), Logger: logger})
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

	rep, err := inspect(m)
	if err != nil {
		fmt.Fprintln(os.Stderr, "inspect:", err)
		os.Exit(1)
	}
	if fi, err := os.Stat(*in); err == nil {
		rep.FileBytes = fi.Size()
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(rep)
		return
	}
	rep.print(os.Stdout)
}

type report struct {
	ID        string   `json:"id"`
	Dims      [3]int   `json:"dims"`
	Spacing   float32  `json:"spacing"`
	Tiles     int      `json:"tiles"`
	Ents      int      `json:"ents"`
	Edits     uint64   `json:"edits"`
	Textures  []string `json:"textures"`
	Shapes    []string `json:"shapes"`
	Batches   int      `json:"batches"`
	Instances int      `json:"instances"`
	Triangles int      `json:"triangles"`
	Culled    int      `json:"triangles_culled"`
	Layers    []int    `json:"layers"`
	LayersRLE string   `json:"layers_rle"`
	DataBytes int      `json:"data_bytes"`
	RawBytes  int      `json:"raw_bytes"`
	FileBytes int64    `json:"file_bytes,omitempty"`
}

func inspect(m *mapman.Map) (report, error) {
	g := m.Tiles()
	rep := report{
		ID:      m.ID(),
		Dims:    [3]int{g.Width, g.Height, g.Length},
		Spacing: g.Spacing,
		Ents:    m.Ents().Count(),
		Edits:   m.Edits(),
		Layers:  indexdb.LayerOccupancy(g),
	}

	texs, shapes := g.GetUsedIDs()
	for _, id := range texs {
		p, _ := m.PathFromTexID(id)
		rep.Textures = append(rep.Textures, p)
	}
	for _, id := range shapes {
		p, _ := m.PathFromModelID(id)
		rep.Shapes = append(rep.Shapes, p)
	}

	for _, b := range g.Batches(mgl32.Vec3{}, 0, g.Height-1) {
		rep.Batches++
		rep.Instances += len(b.Transforms)
	}
	rep.Tiles = g.Stats().Tiles

	cull := m.CullFaces()
	m.SetCullFaces(false)
	full, err := m.Model()
	if err != nil {
		return rep, err
	}
	rep.Triangles = full.TriangleCount()
	m.SetCullFaces(true)
	culled, err := m.Model()
	if err != nil {
		return rep, err
	}
	rep.Culled = culled.TriangleCount()
	m.SetCullFaces(cull)

	data, err := g.GetOptimizedTileDataBase64()
	if err != nil {
		return rep, err
	}
	rep.DataBytes = len(data)
	rep.RawBytes = len(g.GetTileDataBase64())
	rep.LayersRLE = encoding.EncodeCounts(rep.Layers)
	return rep, nil
}

func (r report) print(w io.Writer) {
	fmt.Fprintf(w, "map %s\n", r.ID)
	fmt.Fprintf(w, "  dims      %dx%dx%d (spacing %g)\n", r.Dims[0], r.Dims[1], r.Dims[2], r.Spacing)
	fmt.Fprintf(w, "  tiles     %s of %s cels\n", humanize.Comma(int64(r.Tiles)), humanize.Comma(int64(r.Dims[0]*r.Dims[1]*r.Dims[2])))
	fmt.Fprintf(w, "  ents      %d\n", r.Ents)
	fmt.Fprintf(w, "  edits     %d\n", r.Edits)
	fmt.Fprintf(w, "  textures  %d: %s\n", len(r.Textures), strings.Join(r.Textures, ", "))
	fmt.Fprintf(w, "  shapes    %d: %s\n", len(r.Shapes), strings.Join(r.Shapes, ", "))
	fmt.Fprintf(w, "  batches   %d (%s instances)\n", r.Batches, humanize.Comma(int64(r.Instances)))
	fmt.Fprintf(w, "  triangles %s merged, %s culled\n", humanize.Comma(int64(r.Triangles)), humanize.Comma(int64(r.Culled)))
	fmt.Fprintf(w, "  layers    %v\n", r.Layers)
	fmt.Fprintf(w, "  data      %s optimized, %s raw\n", humanize.Bytes(uint64(r.DataBytes)), humanize.Bytes(uint64(r.RawBytes)))
	if r.FileBytes > 0 {
		fmt.Fprintf(w, "  file      %s\n", humanize.Bytes(uint64(r.FileBytes)))
	}
}
