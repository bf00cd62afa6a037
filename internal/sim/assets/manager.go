// Package assets resolves texture and shape paths to loaded resources and
// keeps them alive for as long as something holds a handle.
package assets

import (
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/sirupsen/logrus"

	"blockeditor/internal/sim/render"
)

var ErrStaleHandle = errors.New("stale asset handle")

type Kind uint8

const (
	KindTexture Kind = iota + 1
	KindModel
)

func (k Kind) String() string {
	switch k {
	case KindTexture:
		return "texture"
	case KindModel:
		return "model"
	default:
		return "unknown"
	}
}

// Handle names one slot of the manager. A handle goes stale once the asset it
// was issued for is unloaded, even if the slot is reused.
type Handle struct {
	Slot uint32
	Gen  uint32
}

func (h Handle) Valid() bool { return h.Gen != 0 }

type key struct {
	kind Kind
	path string
}

type slot struct {
	gen      uint32
	key      key
	refs     int
	fallback bool
	tex      render.Texture
	model    *render.Model
}

type Options struct {
	Renderer render.Renderer
	Logger   logrus.FieldLogger
	// CacheBytes bounds parsed shape geometry kept after its last release.
	CacheBytes int64
}

// Manager owns every loaded texture and model. It is not safe for concurrent
// use; the editor drives it from one goroutine.
type Manager struct {
	r   render.Renderer
	log logrus.FieldLogger

	slots  []slot
	free   []uint32
	byPath map[key]uint32

	geometry *ristretto.Cache[string, *render.Mesh]

	missing render.Texture
	sphere  *render.Mesh
	quad    *render.Mesh
}

func New(opts Options) (*Manager, error) {
	if opts.Renderer == nil {
		return nil, fmt.Errorf("assets: renderer is required")
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.CacheBytes <= 0 {
		opts.CacheBytes = 32 << 20
	}
	cache, err := ristretto.NewCache[string, *render.Mesh](&ristretto.Config[string, *render.Mesh]{
		NumCounters: 10000,
		MaxCost:     opts.CacheBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("assets: geometry cache: %w", err)
	}
	return &Manager{
		r:        opts.Renderer,
		log:      log.WithField("component", "assets"),
		byPath:   map[key]uint32{},
		geometry: cache,
	}, nil
}

func (m *Manager) Renderer() render.Renderer { return m.r }

// AcquireTexture returns a handle on the texture at path, loading it on first
// use. A texture that fails to load resolves to the missing texture.
func (m *Manager) AcquireTexture(path string) (Handle, render.Texture) {
	h, s := m.acquire(key{KindTexture, path})
	if s.refs == 1 {
		tex, err := m.r.LoadTexture(path)
		if err != nil {
			m.log.WithError(err).WithField("path", path).Warn("texture load failed, using missing texture")
			s.tex, s.fallback = m.MissingTexture(), true
		} else {
			s.tex = tex
		}
	}
	return h, s.tex
}

// AcquireModel returns a handle on the shape at path, loading it on first use.
// A shape that fails to load resolves to a unit cube.
func (m *Manager) AcquireModel(path string) (Handle, *render.Model) {
	h, s := m.acquire(key{KindModel, path})
	if s.refs == 1 {
		mesh, err := m.loadGeometry(path)
		if err != nil {
			m.log.WithError(err).WithField("path", path).Warn("shape load failed, using cube")
			mesh, s.fallback = render.Cube(1), true
		}
		model := render.NewModel()
		model.Materials = []render.Material{{Tint: render.White}}
		model.AddMesh(mesh, 0)
		if err := model.Upload(m.r); err != nil {
			m.log.WithError(err).WithField("path", path).Error("shape upload failed")
		}
		s.model = model
	}
	return h, s.model
}

func (m *Manager) acquire(k key) (Handle, *slot) {
	if idx, ok := m.byPath[k]; ok {
		s := &m.slots[idx]
		s.refs++
		return Handle{Slot: idx, Gen: s.gen}, s
	}
	var idx uint32
	if n := len(m.free); n > 0 {
		idx = m.free[n-1]
		m.free = m.free[:n-1]
	} else {
		m.slots = append(m.slots, slot{})
		idx = uint32(len(m.slots) - 1)
	}
	s := &m.slots[idx]
	s.gen++
	s.key = k
	s.refs = 1
	s.fallback = false
	s.tex = render.Texture{}
	s.model = nil
	m.byPath[k] = idx
	return Handle{Slot: idx, Gen: s.gen}, s
}

func (m *Manager) loadGeometry(path string) (*render.Mesh, error) {
	if cached, ok := m.geometry.Get(path); ok {
		return cloneMesh(cached), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	mesh, err := ParseOBJ(f, m.log.WithField("path", path))
	if err != nil {
		return nil, err
	}
	cost := int64(len(mesh.Vertices)+len(mesh.Normals)+len(mesh.TexCoords)+len(mesh.Indices)) * 4
	m.geometry.Set(path, cloneMesh(mesh), cost)
	m.geometry.Wait()
	return mesh, nil
}

func cloneMesh(src *render.Mesh) *render.Mesh {
	return &render.Mesh{
		Vertices:  append([]float32(nil), src.Vertices...),
		TexCoords: append([]float32(nil), src.TexCoords...),
		Normals:   append([]float32(nil), src.Normals...),
		Indices:   append([]uint32(nil), src.Indices...),
	}
}

func (m *Manager) get(h Handle) (*slot, error) {
	if !h.Valid() || int(h.Slot) >= len(m.slots) {
		return nil, ErrStaleHandle
	}
	s := &m.slots[h.Slot]
	if s.gen != h.Gen || s.refs == 0 {
		return nil, ErrStaleHandle
	}
	return s, nil
}

// Release drops one reference. The asset is unloaded with its last reference.
func (m *Manager) Release(h Handle) error {
	s, err := m.get(h)
	if err != nil {
		return err
	}
	s.refs--
	if s.refs > 0 {
		return nil
	}
	m.unload(s)
	delete(m.byPath, s.key)
	m.free = append(m.free, h.Slot)
	return nil
}

func (m *Manager) unload(s *slot) {
	switch s.key.kind {
	case KindTexture:
		if !s.fallback && s.tex.Valid() {
			m.r.UnloadTexture(s.tex)
		}
	case KindModel:
		if s.model != nil {
			s.model.Unload(m.r)
		}
	}
	s.tex = render.Texture{}
	s.model = nil
}

func (m *Manager) Texture(h Handle) (render.Texture, error) {
	s, err := m.get(h)
	if err != nil {
		return render.Texture{}, err
	}
	if s.key.kind != KindTexture {
		return render.Texture{}, fmt.Errorf("handle %v is a %s", h, s.key.kind)
	}
	return s.tex, nil
}

func (m *Manager) Model(h Handle) (*render.Model, error) {
	s, err := m.get(h)
	if err != nil {
		return nil, err
	}
	if s.key.kind != KindModel {
		return nil, fmt.Errorf("handle %v is a %s", h, s.key.kind)
	}
	return s.model, nil
}

// Path reports what a live handle was acquired for.
func (m *Manager) Path(h Handle) (string, error) {
	s, err := m.get(h)
	if err != nil {
		return "", err
	}
	return s.key.path, nil
}

// LookupTexture finds an already loaded texture without taking a reference.
func (m *Manager) LookupTexture(path string) (render.Texture, bool) {
	idx, ok := m.byPath[key{KindTexture, path}]
	if !ok {
		return render.Texture{}, false
	}
	return m.slots[idx].tex, true
}

// LookupModel finds an already loaded model without taking a reference.
func (m *Manager) LookupModel(path string) (*render.Model, bool) {
	idx, ok := m.byPath[key{KindModel, path}]
	if !ok {
		return nil, false
	}
	return m.slots[idx].model, true
}

// Refs returns the reference count held on path.
func (m *Manager) Refs(kind Kind, path string) int {
	idx, ok := m.byPath[key{kind, path}]
	if !ok {
		return 0
	}
	return m.slots[idx].refs
}

// Loaded is the number of assets currently holding at least one reference.
func (m *Manager) Loaded() int { return len(m.byPath) }

// MissingTexture is the checkerboard shown in place of unloadable textures.
func (m *Manager) MissingTexture() render.Texture {
	if !m.missing.Valid() {
		tex, err := m.r.CreateTexture(MissingImage())
		if err != nil {
			m.log.WithError(err).Error("missing texture could not be created")
			return render.Texture{}
		}
		m.missing = tex
	}
	return m.missing
}

// SphereMesh is the shared mesh used to draw sphere entities.
func (m *Manager) SphereMesh() *render.Mesh {
	if m.sphere == nil {
		m.sphere = render.Sphere(8, 12)
		if err := m.r.UploadMesh(m.sphere); err != nil {
			m.log.WithError(err).Error("sphere upload failed")
		}
	}
	return m.sphere
}

// QuadMesh is the shared mesh used to draw sprite entities.
func (m *Manager) QuadMesh() *render.Mesh {
	if m.quad == nil {
		m.quad = render.SpriteQuad()
		if err := m.r.UploadMesh(m.quad); err != nil {
			m.log.WithError(err).Error("quad upload failed")
		}
	}
	return m.quad
}

// Close unloads everything regardless of outstanding references.
func (m *Manager) Close() {
	for i := range m.slots {
		s := &m.slots[i]
		if s.refs > 0 {
			m.unload(s)
			s.refs = 0
		}
	}
	m.byPath = map[key]uint32{}
	m.free = m.free[:0]
	for i := range m.slots {
		m.free = append(m.free, uint32(i))
	}
	if m.missing.Valid() {
		m.r.UnloadTexture(m.missing)
		m.missing = render.Texture{}
	}
	if m.sphere != nil {
		m.r.UnloadMesh(m.sphere)
		m.sphere = nil
	}
	if m.quad != nil {
		m.r.UnloadMesh(m.quad)
		m.quad = nil
	}
	m.geometry.Close()
}
