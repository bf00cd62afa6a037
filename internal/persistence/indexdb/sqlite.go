package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	persistlog "blockeditor/internal/persistence/log"
	"blockeditor/internal/persistence/snapshot"
	"blockeditor/internal/sim/encoding"
	"blockeditor/internal/sim/grid"
	"blockeditor/internal/sim/mapman"
	"blockeditor/internal/sim/tile"
	"blockeditor/internal/sim/tilegrid"
)

type Stats struct {
	QueueDepth        int
	QueueCapacity     int
	DropMapTotal      uint64
	DropSnapshotTotal uint64
	DropExportTotal   uint64
	DropEditTotal     uint64
}

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropMap      atomic.Uint64
	dropSnapshot atomic.Uint64
	dropExport   atomic.Uint64
	dropEdit     atomic.Uint64
}

type reqKind int

const (
	reqMap reqKind = iota + 1
	reqSnapshot
	reqExport
	reqEdit
)

type req struct {
	kind reqKind

	m        MapRow
	snapshot SnapshotRow
	export   ExportRow
	edit     persistlog.EditEntry
}

// MapRow describes the last saved state of one map.
type MapRow struct {
	ID                    string
	Path                  string
	Width, Height, Length int
	Tiles                 int
	Ents                  int
	Textures              int
	Shapes                int
	Edits                 uint64
	// Layers is the run-length digest of present tiles per layer, bottom first.
	Layers  string
	SavedAt time.Time
}

type SnapshotRow struct {
	MapID   string
	Path    string
	Edits   uint64
	Bytes   int64
	SavedAt time.Time
}

type ExportRow struct {
	MapID      string
	Path       string
	Format     string
	Meshes     int
	Triangles  int
	ExportedAt time.Time
}

type EditRow struct {
	Seq    int64
	Time   time.Time
	Client string
	Op     string
	Edits  uint64
	Result string
	Error  string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS maps (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			length INTEGER NOT NULL,
			tiles INTEGER NOT NULL,
			ents INTEGER NOT NULL,
			textures INTEGER NOT NULL,
			shapes INTEGER NOT NULL,
			edits INTEGER NOT NULL,
			layers TEXT NOT NULL,
			saved_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			map_id TEXT NOT NULL,
			edits INTEGER NOT NULL,
			path TEXT NOT NULL,
			bytes INTEGER NOT NULL,
			saved_at TEXT NOT NULL,
			PRIMARY KEY (map_id, edits)
		);`,
		`CREATE TABLE IF NOT EXISTS exports (
			path TEXT PRIMARY KEY,
			map_id TEXT NOT NULL,
			format TEXT NOT NULL,
			meshes INTEGER NOT NULL,
			triangles INTEGER NOT NULL,
			exported_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS edits (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			map_id TEXT NOT NULL,
			time TEXT NOT NULL,
			client TEXT NOT NULL,
			op TEXT NOT NULL,
			edits INTEGER NOT NULL,
			args TEXT NOT NULL,
			result TEXT NOT NULL,
			error TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_edits_map ON edits(map_id, seq);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropMapTotal:      s.dropMap.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
		DropExportTotal:   s.dropExport.Load(),
		DropEditTotal:     s.dropEdit.Load(),
	}
}

// enqueue never blocks the caller; the journal files stay the source of truth.
func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

// LayerOccupancy counts present tiles per layer, bottom first.
func LayerOccupancy(g *tilegrid.TileGrid) []int {
	counts := make([]int, g.Height)
	g.Each(func(p grid.Pos, t tile.Tile) {
		if t.Present() {
			counts[p.Y]++
		}
	})
	return counts
}

// RecordMap indexes the map as saved to path.
func (s *SQLiteIndex) RecordMap(path string, m *mapman.Map) {
	if s == nil || s.closed.Load() {
		return
	}
	st := m.Stats()
	r := MapRow{
		ID:       m.ID(),
		Path:     path,
		Width:    st.Width,
		Height:   st.Height,
		Length:   st.Length,
		Tiles:    st.Tiles,
		Ents:     st.Ents,
		Textures: st.Textures,
		Shapes:   st.Shapes,
		Edits:    st.Edits,
		Layers:   encoding.EncodeCounts(LayerOccupancy(m.Tiles())),
		SavedAt:  time.Now().UTC(),
	}
	s.enqueue(req{kind: reqMap, m: r}, &s.dropMap)
}

func (s *SQLiteIndex) RecordSnapshot(path string, h snapshot.Header) {
	if s == nil || s.closed.Load() {
		return
	}
	r := SnapshotRow{MapID: h.MapID, Path: path, Edits: h.Edits, SavedAt: h.SavedAt.UTC()}
	if fi, err := os.Stat(path); err == nil {
		r.Bytes = fi.Size()
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: r}, &s.dropSnapshot)
}

func (s *SQLiteIndex) RecordExport(r ExportRow) {
	if s == nil || s.closed.Load() {
		return
	}
	if r.ExportedAt.IsZero() {
		r.ExportedAt = time.Now().UTC()
	}
	s.enqueue(req{kind: reqExport, export: r}, &s.dropExport)
}

// WriteEdit indexes one journal entry. It has the journal's signature so both
// can sit behind the same sink.
func (s *SQLiteIndex) WriteEdit(e persistlog.EditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	s.enqueue(req{kind: reqEdit, edit: e}, &s.dropEdit)
	return nil
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertMap, _ := s.db.Prepare(`INSERT OR REPLACE INTO maps(id,path,width,height,length,tiles,ents,textures,shapes,edits,layers,saved_at) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(map_id,edits,path,bytes,saved_at) VALUES(?,?,?,?,?)`)
	insertExport, _ := s.db.Prepare(`INSERT OR REPLACE INTO exports(path,map_id,format,meshes,triangles,exported_at) VALUES(?,?,?,?,?,?)`)
	insertEdit, _ := s.db.Prepare(`INSERT INTO edits(map_id,time,client,op,edits,args,result,error) VALUES(?,?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertMap, insertSnapshot, insertExport, insertEdit} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil || tx == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqMap:
			m := r.m
			exec(insertMap, m.ID, m.Path, m.Width, m.Height, m.Length, m.Tiles, m.Ents,
				m.Textures, m.Shapes, int64(m.Edits), m.Layers, m.SavedAt.Format(time.RFC3339Nano))
		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, sn.MapID, int64(sn.Edits), sn.Path, sn.Bytes, sn.SavedAt.Format(time.RFC3339Nano))
		case reqExport:
			ex := r.export
			exec(insertExport, ex.Path, ex.MapID, ex.Format, ex.Meshes, ex.Triangles, ex.ExportedAt.Format(time.RFC3339Nano))
		case reqEdit:
			e := r.edit
			args := "null"
			if len(e.Args) > 0 {
				args = string(e.Args)
			}
			exec(insertEdit, e.MapID, e.Time.UTC().Format(time.RFC3339Nano), e.Client, e.Op, int64(e.Edits), args, e.Result, e.Error)
		}
		// Edits arrive in bursts; commit once the burst is drained.
		if len(s.ch) == 0 || opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}

// Maps lists indexed maps, most recently saved first.
func (s *SQLiteIndex) Maps(ctx context.Context) ([]MapRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,path,width,height,length,tiles,ents,textures,shapes,edits,layers,saved_at FROM maps ORDER BY saved_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MapRow
	for rows.Next() {
		var (
			m       MapRow
			edits   int64
			savedAt string
		)
		if err := rows.Scan(&m.ID, &m.Path, &m.Width, &m.Height, &m.Length, &m.Tiles, &m.Ents,
			&m.Textures, &m.Shapes, &edits, &m.Layers, &savedAt); err != nil {
			return nil, err
		}
		m.Edits = uint64(edits)
		m.SavedAt, _ = time.Parse(time.RFC3339Nano, savedAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) Snapshots(ctx context.Context, mapID string) ([]SnapshotRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT map_id,edits,path,bytes,saved_at FROM snapshots WHERE map_id=? ORDER BY edits`, mapID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SnapshotRow
	for rows.Next() {
		var (
			sn      SnapshotRow
			edits   int64
			savedAt string
		)
		if err := rows.Scan(&sn.MapID, &edits, &sn.Path, &sn.Bytes, &savedAt); err != nil {
			return nil, err
		}
		sn.Edits = uint64(edits)
		sn.SavedAt, _ = time.Parse(time.RFC3339Nano, savedAt)
		out = append(out, sn)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) Exports(ctx context.Context, mapID string) ([]ExportRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT map_id,path,format,meshes,triangles,exported_at FROM exports WHERE map_id=? ORDER BY exported_at`, mapID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ExportRow
	for rows.Next() {
		var (
			ex ExportRow
			at string
		)
		if err := rows.Scan(&ex.MapID, &ex.Path, &ex.Format, &ex.Meshes, &ex.Triangles, &at); err != nil {
			return nil, err
		}
		ex.ExportedAt, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, ex)
	}
	return out, rows.Err()
}

// Edits returns up to limit most recent edits of a map, oldest first.
func (s *SQLiteIndex) Edits(ctx context.Context, mapID string, limit int) ([]EditRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT seq,time,client,op,edits,result,error FROM
		(SELECT * FROM edits WHERE map_id=? ORDER BY seq DESC LIMIT ?) ORDER BY seq`, mapID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EditRow
	for rows.Next() {
		var (
			e     EditRow
			at    string
			edits int64
		)
		if err := rows.Scan(&e.Seq, &at, &e.Client, &e.Op, &edits, &e.Result, &e.Error); err != nil {
			return nil, err
		}
		e.Edits = uint64(edits)
		e.Time, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Args returns the raw arguments of one indexed edit.
func (s *SQLiteIndex) Args(ctx context.Context, seq int64) (json.RawMessage, error) {
	var args string
	if err := s.db.QueryRowContext(ctx, `SELECT args FROM edits WHERE seq=?`, seq).Scan(&args); err != nil {
		return nil, err
	}
	return json.RawMessage(args), nil
}
