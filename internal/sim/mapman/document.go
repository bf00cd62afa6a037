package mapman

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"blockeditor/internal/persistence/mapfile"
	"blockeditor/internal/sim/encoding"
	"blockeditor/internal/sim/entity"
	"blockeditor/internal/sim/grid"
	"blockeditor/internal/sim/render"
	"blockeditor/internal/sim/tile"
	"blockeditor/internal/sim/tilegrid"
)

// Document converts the map to its saved form. Only textures and shapes used
// by tiles are written; the live registries are left untouched.
func (m *Map) Document() (mapfile.Document, error) {
	tiles := m.tiles.Clone()
	usedTex, usedShapes := tiles.GetUsedIDs()

	texMap := map[tile.TexID]tile.TexID{}
	texPaths := []string{}
	for _, id := range usedTex {
		if p, ok := m.PathFromTexID(id); ok {
			texMap[id] = tile.TexID(len(texPaths))
			texPaths = append(texPaths, p)
		}
	}
	shapeMap := map[tile.ModelID]tile.ModelID{}
	shapePaths := []string{}
	for _, id := range usedShapes {
		if p, ok := m.PathFromModelID(id); ok {
			shapeMap[id] = tile.ModelID(len(shapePaths))
			shapePaths = append(shapePaths, p)
		}
	}
	tiles.Remap(texMap, shapeMap)

	data, err := tiles.GetOptimizedTileDataBase64()
	if err != nil {
		return mapfile.Document{}, err
	}
	ents := m.ents.EntList()
	if ents == nil {
		ents = []entity.Ent{}
	}
	return mapfile.Document{
		ID: m.id,
		Tiles: mapfile.Tiles{
			Width:    tiles.Width,
			Height:   tiles.Height,
			Length:   tiles.Length,
			Spacing:  tiles.Spacing,
			Textures: texPaths,
			Shapes:   shapePaths,
			Data:     data,
		},
		Ents:                  ents,
		DefaultCameraPosition: m.cameraPos,
		DefaultCameraAngles:   m.cameraAngles,
	}, nil
}

// LoadDocument replaces the map with doc. On error the current map is kept.
// Ents outside the grid are dropped with a warning.
func (m *Map) LoadDocument(doc mapfile.Document) error {
	t := doc.Tiles
	if err := grid.CheckVolume(t.Width, t.Height, t.Length); err != nil {
		return fmt.Errorf("te3: %w: %w", encoding.ErrSerialization, err)
	}
	spacing := t.Spacing
	if spacing <= 0 {
		spacing = tile.DefaultSpacing
	}
	tiles := tilegrid.NewFilled(m, t.Width, t.Height, t.Length, spacing, tile.Empty())
	if err := tiles.SetTileDataBase64(t.Data); err != nil {
		return fmt.Errorf("te3 tile data: %w", err)
	}
	texs, shapes := tiles.GetUsedIDs()
	if n := len(texs); n > 0 && int(texs[n-1]) >= len(t.Textures) {
		return fmt.Errorf("te3: texture id %d has no path", texs[n-1])
	}
	if n := len(shapes); n > 0 && int(shapes[n-1]) >= len(t.Shapes) {
		return fmt.Errorf("te3: shape id %d has no path", shapes[n-1])
	}

	ents := entity.NewGridSpacing(t.Width, t.Height, t.Length, spacing)
	for _, e := range doc.Ents {
		p := ents.WorldToGridPos(e.Position)
		if err := ents.AddEnt(p, e); err != nil {
			m.log.WithError(err).WithField("pos", e.Position).Warn("ent outside map dropped")
		}
	}

	m.releaseAll()
	m.id = doc.ID
	if m.id == "" {
		m.id = mapfile.NewID()
	}
	m.tiles, m.ents = tiles, ents
	for _, p := range t.Textures {
		m.addTexture(p)
	}
	for _, p := range t.Shapes {
		m.addShape(p)
	}
	m.syncEntAssets()
	m.cameraPos = mgl32.Vec3(doc.DefaultCameraPosition)
	m.cameraAngles = mgl32.Vec3(doc.DefaultCameraAngles)
	m.history.Clear()
	m.edits = 0
	m.log.WithField("id", m.id).WithField("dims", tiles.Size()).Info("map loaded")
	return nil
}

// addTexture registers path under the next id even if it is already present,
// so ids stay aligned with a document's path table.
func (m *Map) addTexture(path string) {
	h, tex := m.assets.AcquireTexture(path)
	if _, ok := m.texIDs[path]; !ok {
		m.texIDs[path] = tile.TexID(len(m.textures))
	}
	m.textures = append(m.textures, registered{path: path, handle: h, tex: tex})
}

func (m *Map) addShape(path string) {
	h, model := m.assets.AcquireModel(path)
	if _, ok := m.shapeIDs[path]; !ok {
		m.shapeIDs[path] = tile.ModelID(len(m.shapes))
	}
	m.shapes = append(m.shapes, registered{path: path, handle: h, model: model})
}

// DrawMap draws tiles and ents in layers [fromY, toY]. In preview the merged
// model is drawn instead of instanced batches.
func (m *Map) DrawMap(cam render.Camera, fromY, toY int, preview bool) error {
	r := m.assets.Renderer()
	err := m.tiles.Draw(r, tilegrid.DrawOptions{
		FromY:     fromY,
		ToY:       toY,
		Preview:   preview,
		CullFaces: m.cullFaces,
	})
	m.ents.Draw(r, cam, m.assets, fromY, toY)
	return err
}

// Draw2DElements draws overlays collected by the last DrawMap.
func (m *Map) Draw2DElements(width, height float32, preview bool) {
	m.ents.DrawLabels(m.assets.Renderer(), width, height, preview)
}

// Model returns the merged model of every tile, culled per the map setting.
func (m *Map) Model() (*render.Model, error) {
	return m.tiles.GetModel(m.assets.Renderer(), m.cullFaces)
}
