// Package mapman owns the map being edited: its tile and ent grids, the
// texture and shape registries, and the undo log.
package mapman

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"

	"blockeditor/internal/persistence/mapfile"
	"blockeditor/internal/sim/assets"
	"blockeditor/internal/sim/entity"
	"blockeditor/internal/sim/grid"
	"blockeditor/internal/sim/history"
	"blockeditor/internal/sim/render"
	"blockeditor/internal/sim/tile"
	"blockeditor/internal/sim/tilegrid"
)

const (
	DefaultWidth  = 100
	DefaultHeight = 5
	DefaultLength = 100
)

var (
	ErrNoMap         = errors.New("no map loaded")
	ErrInvalidResize = errors.New("invalid map resize")
	ErrEmptyMap      = errors.New("map has no tiles or ents")
)

type Options struct {
	Assets *assets.Manager
	Logger logrus.FieldLogger
	// UndoMax bounds the undo log; 0 disables undo.
	UndoMax   int
	CullFaces bool
}

type registered struct {
	path   string
	handle assets.Handle
	tex    render.Texture
	model  *render.Model
}

type entAsset struct {
	kind assets.Kind
	path string
}

// Map is the editable map. It is not safe for concurrent use.
type Map struct {
	id     string
	log    logrus.FieldLogger
	assets *assets.Manager

	tiles *tilegrid.TileGrid
	ents  *entity.EntGrid

	textures []registered
	texIDs   map[string]tile.TexID
	shapes   []registered
	shapeIDs map[string]tile.ModelID

	// Ents reference assets by path; one handle is held per distinct path in use.
	entAssets map[entAsset]assets.Handle

	history   *history.History[*Map]
	cullFaces bool

	cameraPos    mgl32.Vec3
	cameraAngles mgl32.Vec3

	edits uint64
}

// New returns a manager with no map loaded. Call NewMap or LoadDocument before editing.
func New(opts Options) *Map {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	m := &Map{
		log:       log.WithField("component", "mapman"),
		assets:    opts.Assets,
		texIDs:    map[string]tile.TexID{},
		shapeIDs:  map[string]tile.ModelID{},
		entAssets: map[entAsset]assets.Handle{},
		history:   history.New[*Map](opts.UndoMax),
		cullFaces: opts.CullFaces,
	}
	m.tiles = tilegrid.New(m, 0, 0, 0)
	m.ents = entity.NewGrid(0, 0, 0)
	return m
}

// NewMap replaces the current map with an empty one of the given size.
func (m *Map) NewMap(width, height, length int) {
	m.releaseAll()
	m.id = mapfile.NewID()
	m.tiles = tilegrid.New(m, width, height, length)
	m.ents = entity.NewGridSpacing(width, height, length, m.tiles.Spacing)
	m.history.Clear()
	m.edits = 0
	m.ResetCamera()
	m.log.WithField("dims", m.tiles.Size()).Info("new map")
}

func (m *Map) ID() string                      { return m.id }
func (m *Map) Tiles() *tilegrid.TileGrid       { return m.tiles }
func (m *Map) Ents() *entity.EntGrid           { return m.ents }
func (m *Map) Assets() *assets.Manager         { return m.assets }
func (m *Map) History() *history.History[*Map] { return m.history }

// Loaded reports whether a map with at least one cel is open.
func (m *Map) Loaded() bool { return m.tiles.Volume() > 0 }

// Edits counts applied edits, undos and redos since the map was created or loaded.
func (m *Map) Edits() uint64 { return m.edits }

// ResumeEdits restores the edit counter of a map loaded from a snapshot.
func (m *Map) ResumeEdits(n uint64) { m.edits = n }

func (m *Map) CullFaces() bool        { return m.cullFaces }
func (m *Map) SetCullFaces(cull bool) { m.cullFaces = cull }

// SetUndoMax changes the undo depth, dropping the oldest actions if needed.
func (m *Map) SetUndoMax(depth int) { m.history.SetMax(depth) }

// DefaultCamera is the saved camera position and (pitch, yaw, roll) in radians.
func (m *Map) DefaultCamera() (mgl32.Vec3, mgl32.Vec3) { return m.cameraPos, m.cameraAngles }

func (m *Map) SetDefaultCamera(pos, angles mgl32.Vec3) {
	m.cameraPos, m.cameraAngles = pos, angles
}

// ResetCamera looks down at the map from its center.
func (m *Map) ResetCamera() {
	m.cameraPos = m.tiles.CenterPos()
	m.cameraAngles = mgl32.Vec3{render.DefaultPitch, 0, 0}
}

// Camera builds a camera at the default pose.
func (m *Map) Camera(aspect float32) render.Camera {
	return render.NewCamera(m.cameraPos, m.cameraAngles.X(), m.cameraAngles.Y(), aspect)
}

// ModelFromID resolves a shape id for the tile grid.
func (m *Map) ModelFromID(id tile.ModelID) *render.Model {
	if id < 0 || int(id) >= len(m.shapes) {
		return nil
	}
	return m.shapes[id].model
}

func (m *Map) TexFromID(id tile.TexID) render.Texture {
	if id < 0 || int(id) >= len(m.textures) {
		return m.assets.MissingTexture()
	}
	return m.textures[id].tex
}

func (m *Map) NumTextures() int { return len(m.textures) }

func (m *Map) NumShapes() int { return len(m.shapes) }

// GetOrAddTexID returns the id for a texture path, loading and registering it
// if it is new.
func (m *Map) GetOrAddTexID(path string) tile.TexID {
	if id, ok := m.texIDs[path]; ok {
		return id
	}
	h, tex := m.assets.AcquireTexture(path)
	id := tile.TexID(len(m.textures))
	m.textures = append(m.textures, registered{path: path, handle: h, tex: tex})
	m.texIDs[path] = id
	return id
}

func (m *Map) GetOrAddModelID(path string) tile.ModelID {
	if id, ok := m.shapeIDs[path]; ok {
		return id
	}
	h, model := m.assets.AcquireModel(path)
	id := tile.ModelID(len(m.shapes))
	m.shapes = append(m.shapes, registered{path: path, handle: h, model: model})
	m.shapeIDs[path] = id
	return id
}

// PathFromTexID returns the path registered for id.
func (m *Map) PathFromTexID(id tile.TexID) (string, bool) {
	if id < 0 || int(id) >= len(m.textures) {
		return "", false
	}
	return m.textures[id].path, true
}

func (m *Map) PathFromModelID(id tile.ModelID) (string, bool) {
	if id < 0 || int(id) >= len(m.shapes) {
		return "", false
	}
	return m.shapes[id].path, true
}

func (m *Map) TexturePaths() []string { return paths(m.textures) }

func (m *Map) ShapePaths() []string { return paths(m.shapes) }

func paths(rs []registered) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.path
	}
	return out
}

// syncEntAssets holds one reference on every model and texture an active ent
// uses and drops references nothing uses anymore.
func (m *Map) syncEntAssets() {
	used := map[entAsset]bool{}
	m.ents.Each(func(_ grid.Pos, e entity.Ent) {
		if e.ModelPath != "" {
			used[entAsset{assets.KindModel, e.ModelPath}] = true
		}
		if e.TexturePath != "" {
			used[entAsset{assets.KindTexture, e.TexturePath}] = true
		}
	})
	for k, h := range m.entAssets {
		if !used[k] {
			m.release(h)
			delete(m.entAssets, k)
		}
	}
	for k := range used {
		if _, ok := m.entAssets[k]; ok {
			continue
		}
		var h assets.Handle
		switch k.kind {
		case assets.KindModel:
			h, _ = m.assets.AcquireModel(k.path)
		case assets.KindTexture:
			h, _ = m.assets.AcquireTexture(k.path)
		}
		m.entAssets[k] = h
	}
}

func (m *Map) release(h assets.Handle) {
	if err := m.assets.Release(h); err != nil {
		m.log.WithError(err).Warn("asset release failed")
	}
}

func (m *Map) releaseAll() {
	for _, r := range m.textures {
		m.release(r.handle)
	}
	for _, r := range m.shapes {
		m.release(r.handle)
	}
	for k, h := range m.entAssets {
		m.release(h)
		delete(m.entAssets, k)
	}
	m.textures, m.shapes = nil, nil
	m.texIDs = map[string]tile.TexID{}
	m.shapeIDs = map[string]tile.ModelID{}
	m.tiles.Close(m.assets.Renderer())
}

// Close releases every asset the map holds.
func (m *Map) Close() {
	m.releaseAll()
	m.history.Clear()
}

type Stats struct {
	Width, Height, Length int
	Tiles                 int
	Ents                  int
	Textures              int
	Shapes                int
	Undo                  int
	Edits                 uint64
}

func (m *Map) Stats() Stats {
	ts := m.tiles.Stats()
	return Stats{
		Width:    m.tiles.Width,
		Height:   m.tiles.Height,
		Length:   m.tiles.Length,
		Tiles:    ts.Tiles,
		Ents:     m.ents.Count(),
		Textures: len(m.textures),
		Shapes:   len(m.shapes),
		Undo:     m.history.Len(),
		Edits:    m.edits,
	}
}
