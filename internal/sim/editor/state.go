package editor

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"blockeditor/internal/persistence/archive"
	"blockeditor/internal/persistence/mapfile"
	"blockeditor/internal/persistence/snapshot"
	"blockeditor/internal/protocol"
	"blockeditor/internal/sim/encoding"
	"blockeditor/internal/sim/entity"
	"blockeditor/internal/sim/grid"
	"blockeditor/internal/sim/tile"
	"blockeditor/internal/sim/tilegrid"
)

func pos(v [3]int) grid.Pos { return grid.Pos{X: v[0], Y: v[1], Z: v[2]} }

func (s *Session) mapInfo() protocol.MapInfo {
	g := s.m.Tiles()
	return protocol.MapInfo{
		ID:      s.m.ID(),
		Width:   g.Width,
		Height:  g.Height,
		Length:  g.Length,
		Spacing: g.Spacing,
	}
}

func (s *Session) stateMessage() ([]byte, error) {
	doc, err := s.m.Document()
	if err != nil {
		return nil, err
	}
	st := s.m.Stats()
	msg := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Map:             s.mapInfo(),
		Edits:           s.m.Edits(),
		Textures:        doc.Tiles.Textures,
		Shapes:          doc.Tiles.Shapes,
		Data:            doc.Tiles.Data,
		Ents:            make([]json.RawMessage, 0, len(doc.Ents)),
		Stats:           protocol.StateStats{Tiles: st.Tiles, Ents: st.Ents, Undo: st.Undo},
	}
	for _, e := range doc.Ents {
		b, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		msg.Ents = append(msg.Ents, b)
	}
	return json.Marshal(msg)
}

// tileFromArg registers the tile's assets. A tile missing either path is empty.
func (s *Session) tileFromArg(a protocol.TileArg) tile.Tile {
	if a.Shape == "" || a.Texture == "" {
		return tile.Empty()
	}
	return tile.Tile{
		Shape:   s.m.GetOrAddModelID(a.Shape),
		Texture: s.m.GetOrAddTexID(a.Texture),
		Angle:   tile.OffsetDegrees(a.Angle, 0),
		Pitch:   tile.OffsetDegrees(a.Pitch, 0),
	}
}

// brushFromArg decodes a brush and moves its ids into the map's registries.
func (s *Session) brushFromArg(a protocol.BrushArg) (*tilegrid.TileGrid, error) {
	w, h, l := a.Size[0], a.Size[1], a.Size[2]
	if w <= 0 || h <= 0 || l <= 0 {
		return nil, fmt.Errorf("%w: brush size %v", errBadRequest, a.Size)
	}
	if err := grid.CheckVolume(w, h, l); err != nil {
		return nil, fmt.Errorf("%w: brush: %w", grid.ErrSubsectionOverflow, err)
	}
	tiles, err := encoding.DecodeTiles(a.Data, w*h*l)
	if err != nil {
		return nil, err
	}
	brush := tilegrid.New(s.m, w, h, l)
	for i, t := range tiles {
		if !t.Present() {
			continue
		}
		if int(t.Texture) >= len(a.Textures) || int(t.Shape) >= len(a.Shapes) {
			return nil, fmt.Errorf("%w: brush tile %d references unknown asset", errBadRequest, i)
		}
		t.Texture = s.m.GetOrAddTexID(a.Textures[t.Texture])
		t.Shape = s.m.GetOrAddModelID(a.Shapes[t.Shape])
		if err := brush.SetTileAt(i, t); err != nil {
			return nil, err
		}
	}
	return brush, nil
}

func entFromArg(raw json.RawMessage) (entity.Ent, error) {
	if len(raw) == 0 {
		return entity.Ent{}, fmt.Errorf("%w: missing ent", errBadRequest)
	}
	e := entity.New(1)
	if err := json.Unmarshal(raw, &e); err != nil {
		return entity.Ent{}, fmt.Errorf("%w: ent: %v", errBadRequest, err)
	}
	return e, nil
}

func (s *Session) save(p string) (string, error) {
	path, err := s.savePath(p)
	if err != nil {
		return "", err
	}
	doc, err := s.m.Document()
	if err != nil {
		return "", err
	}
	if _, _, err := archive.ArchiveRevision(s.cfg.MapDir, mapfile.WithExt(path), s.m.ID(), s.cfg.KeepRevisions); err != nil {
		s.log.WithError(err).Warn("archive revision")
	}
	written, err := mapfile.Write(path, doc)
	if err != nil {
		return "", err
	}
	if s.index != nil {
		s.index.RecordMap(written, s.m)
	}
	s.log.WithField("path", written).Info("map saved")
	return written, nil
}

func (s *Session) takeSnapshot() (string, error) {
	doc, err := s.m.Document()
	if err != nil {
		return "", err
	}
	edits := s.m.Edits()
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			MapID:   s.m.ID(),
			SavedAt: s.now().UTC(),
			Edits:   edits,
		},
		Document: doc,
	}
	path := filepath.Join(s.cfg.SnapshotDir, snapshot.FileName(s.m.ID(), edits))
	if s.snapshotSink != nil {
		select {
		case s.snapshotSink <- SnapshotJob{Path: path, Snap: snap}:
		default:
			return "", fmt.Errorf("%w: snapshot writer is behind", errBusy)
		}
	} else {
		if err := snapshot.WriteSnapshot(path, snap); err != nil {
			return "", err
		}
		if s.index != nil {
			s.index.RecordSnapshot(path, snap.Header)
		}
	}
	s.lastSnapEdits = edits
	return path, nil
}

func (s *Session) autosnapshot() {
	if !s.m.Loaded() || s.m.Edits() == s.lastSnapEdits {
		return
	}
	path, err := s.takeSnapshot()
	if err != nil {
		s.log.WithError(err).Warn("autosnapshot")
		return
	}
	s.log.WithFields(logrus.Fields{"path": path, "edits": s.m.Edits()}).Info("autosnapshot")
}
