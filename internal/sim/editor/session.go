// Package editor serializes remote edits of one map through a single goroutine.
package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	persistlog "blockeditor/internal/persistence/log"
	"blockeditor/internal/persistence/snapshot"
	"blockeditor/internal/protocol"
	"blockeditor/internal/sim/mapman"
)

type EditLogger interface {
	WriteEdit(entry persistlog.EditEntry) error
}

// Indexer records saved maps and snapshots. Implemented by indexdb.
type Indexer interface {
	RecordMap(path string, m *mapman.Map)
	RecordSnapshot(path string, h snapshot.Header)
}

type Config struct {
	// MapDir roots every SAVE path. MapPath is the default SAVE target,
	// relative to MapDir.
	MapDir      string
	MapPath     string
	SnapshotDir string

	MaxClients int
	// KeepRevisions copies an existing map file aside before SAVE replaces it.
	KeepRevisions int
	// SnapshotEvery autosaves when edits happened since the last snapshot.
	// Zero disables autosave.
	SnapshotEvery time.Duration
}

type JoinRequest struct {
	Name     string
	ReadOnly bool
	Out      chan []byte
	Resp     chan JoinResponse
}

// JoinResponse carries WELCOME and the current STATE, or a rejection code.
type JoinResponse struct {
	Welcome protocol.WelcomeMsg
	State   []byte
	Code    string
}

type EditEnvelope struct {
	ClientID string
	Edit     protocol.EditMsg
}

// SnapshotJob is a snapshot to be written off the session goroutine.
type SnapshotJob struct {
	Path string
	Snap snapshot.SnapshotV1
}

type Metrics struct {
	Clients  int64  `json:"clients"`
	Edits    uint64 `json:"edits"`
	Accepted uint64 `json:"accepted"`
	Rejected uint64 `json:"rejected"`
}

type queryReq struct {
	fn   func(m *mapman.Map)
	done chan struct{}
}

type clientState struct {
	name     string
	readOnly bool
	out      chan []byte
}

// Session owns one map. All map state is accessed only from the Run goroutine.
type Session struct {
	id  string
	cfg Config
	log logrus.FieldLogger
	m   *mapman.Map

	clients    map[string]*clientState
	nextClient uint64

	inbox chan EditEnvelope
	join  chan JoinRequest
	leave chan string
	query chan queryReq
	stop  chan struct{}

	editLogger   EditLogger
	index        Indexer
	snapshotSink chan<- SnapshotJob

	lastSnapEdits uint64
	now           func() time.Time

	clientCount atomic.Int64
	edits       atomic.Uint64
	accepted    atomic.Uint64
	rejected    atomic.Uint64
}

func New(m *mapman.Map, cfg Config, logger logrus.FieldLogger) *Session {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = 16
	}
	if cfg.MapPath == "" {
		cfg.MapPath = "map.te3"
	}
	id := uuid.NewString()
	s := &Session{
		id:            id,
		cfg:           cfg,
		log:           logger.WithFields(logrus.Fields{"component": "session", "session": id}),
		m:             m,
		clients:       map[string]*clientState{},
		inbox:         make(chan EditEnvelope, 256),
		join:          make(chan JoinRequest, 16),
		leave:         make(chan string, 16),
		query:         make(chan queryReq, 16),
		stop:          make(chan struct{}),
		lastSnapEdits: m.Edits(),
		now:           time.Now,
	}
	s.edits.Store(m.Edits())
	return s
}

func (s *Session) SetEditLogger(l EditLogger)            { s.editLogger = l }
func (s *Session) SetIndexer(ix Indexer)                 { s.index = ix }
func (s *Session) SetSnapshotSink(ch chan<- SnapshotJob) { s.snapshotSink = ch }
func (s *Session) ID() string                            { return s.id }
func (s *Session) Inbox() chan<- EditEnvelope            { return s.inbox }
func (s *Session) Join() chan<- JoinRequest              { return s.join }
func (s *Session) Leave() chan<- string                  { return s.leave }
func (s *Session) Stop()                                 { close(s.stop) }

func (s *Session) Metrics() Metrics {
	return Metrics{
		Clients:  s.clientCount.Load(),
		Edits:    s.edits.Load(),
		Accepted: s.accepted.Load(),
		Rejected: s.rejected.Load(),
	}
}

// Query runs fn on the session goroutine and waits for it. fn must not keep m.
func (s *Session) Query(ctx context.Context, fn func(m *mapman.Map)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q := queryReq{fn: fn, done: make(chan struct{})}
	select {
	case s.query <- q:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current STATE message.
func (s *Session) State(ctx context.Context) ([]byte, error) {
	var (
		b   []byte
		err error
	)
	if qerr := s.Query(ctx, func(*mapman.Map) { b, err = s.stateMessage() }); qerr != nil {
		return nil, qerr
	}
	return b, err
}

// Run handles joins, leaves and edits until ctx ends or Stop is called. A
// final snapshot is taken on the way out when edits are unsaved.
func (s *Session) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if s.cfg.SnapshotEvery > 0 {
		t := time.NewTicker(s.cfg.SnapshotEvery)
		defer t.Stop()
		tick = t.C
	}
	defer s.autosnapshot()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case req := <-s.join:
			req.Resp <- s.handleJoin(req)
		case id := <-s.leave:
			s.handleLeave(id)
		case env := <-s.inbox:
			s.handleEdit(env)
		case q := <-s.query:
			q.fn(s.m)
			close(q.done)
		case <-tick:
			s.autosnapshot()
		}
	}
}

func (s *Session) handleJoin(req JoinRequest) JoinResponse {
	if len(s.clients) >= s.cfg.MaxClients {
		return JoinResponse{Code: protocol.ErrBusy}
	}
	s.nextClient++
	clientID := fmt.Sprintf("C%d", s.nextClient)
	name := req.Name
	if name == "" {
		name = "client"
	}
	state, err := s.stateMessage()
	if err != nil {
		s.log.WithError(err).Error("build state")
		return JoinResponse{Code: protocol.ErrInternal}
	}
	if req.Out != nil {
		s.clients[clientID] = &clientState{name: name, readOnly: req.ReadOnly, out: req.Out}
		s.clientCount.Store(int64(len(s.clients)))
	}
	s.log.WithFields(logrus.Fields{"client": clientID, "name": name, "read_only": req.ReadOnly}).Info("join")
	return JoinResponse{
		Welcome: protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			SessionID:       s.id,
			ClientID:        clientID,
			Map:             s.mapInfo(),
		},
		State: state,
	}
}

func (s *Session) handleLeave(clientID string) {
	if _, ok := s.clients[clientID]; !ok {
		return
	}
	delete(s.clients, clientID)
	s.clientCount.Store(int64(len(s.clients)))
	s.log.WithField("client", clientID).Info("leave")
}

func (s *Session) handleEdit(env EditEnvelope) {
	c, ok := s.clients[env.ClientID]
	if !ok {
		return
	}
	ed := env.Edit
	ack := protocol.AckMsg{Type: protocol.TypeAck, ProtocolVersion: protocol.Version, AckFor: ed.ReqID}

	var (
		path    string
		changed bool
		err     error
	)
	switch {
	case c.readOnly:
		err = fmt.Errorf("%w: client is read-only", errReadOnly)
	case ed.ProtocolVersion != protocol.Version:
		err = fmt.Errorf("%w: protocol_version %q", errBadRequest, ed.ProtocolVersion)
	default:
		path, changed, err = s.apply(ed)
	}

	ack.Edits = s.m.Edits()
	ack.Path = path
	if err != nil {
		ack.Code = codeFor(err)
		ack.Message = err.Error()
		s.rejected.Add(1)
	} else {
		ack.Accepted = true
		s.accepted.Add(1)
	}
	s.edits.Store(s.m.Edits())
	s.journal(env.ClientID, ed, ack)

	if b, err := json.Marshal(ack); err == nil {
		sendLatest(c.out, b)
	}
	if changed {
		s.broadcastState()
	}
}

// apply runs one edit. changed reports whether the map content changed.
func (s *Session) apply(ed protocol.EditMsg) (path string, changed bool, err error) {
	switch ed.Op {
	case protocol.OpSetTiles:
		if ed.Tile == nil {
			return "", false, fmt.Errorf("%w: missing tile", errBadRequest)
		}
		err = s.m.ExecuteTileAction(pos(ed.Origin), pos(ed.Size), s.tileFromArg(*ed.Tile))
		return "", err == nil, err
	case protocol.OpPaste:
		if ed.Brush == nil {
			return "", false, fmt.Errorf("%w: missing brush", errBadRequest)
		}
		brush, err := s.brushFromArg(*ed.Brush)
		if err != nil {
			return "", false, err
		}
		err = s.m.ExecuteBrushAction(pos(ed.Origin), brush)
		return "", err == nil, err
	case protocol.OpPlaceEnt:
		e, err := entFromArg(ed.Ent)
		if err != nil {
			return "", false, err
		}
		err = s.m.ExecuteEntPlacement(pos(ed.Origin), e)
		return "", err == nil, err
	case protocol.OpRemoveEnt:
		err = s.m.ExecuteEntRemoval(pos(ed.Origin))
		return "", err == nil, err
	case protocol.OpUndo:
		ok, err := s.m.Undo()
		if err == nil && !ok {
			err = errNothingToUndo
		}
		return "", err == nil, err
	case protocol.OpRedo:
		ok, err := s.m.Redo()
		if err == nil && !ok {
			err = errNothingToRedo
		}
		return "", err == nil, err
	case protocol.OpExpand:
		dir, err := mapman.ParseDirection(ed.Direction)
		if err != nil {
			return "", false, err
		}
		err = s.m.ExpandMap(dir, ed.Amount)
		return "", err == nil, err
	case protocol.OpShrink:
		err = s.m.ShrinkMap()
		return "", err == nil, err
	case protocol.OpSave:
		path, err = s.save(ed.Path)
		return path, false, err
	case protocol.OpSnapshot:
		path, err = s.takeSnapshot()
		return path, false, err
	}
	return "", false, fmt.Errorf("%w: unknown op %q", errBadRequest, ed.Op)
}

// savePath resolves a client-supplied path under MapDir.
func (s *Session) savePath(p string) (string, error) {
	if p == "" {
		p = s.cfg.MapPath
	}
	if filepath.IsAbs(p) {
		return "", fmt.Errorf("%w: absolute save path", errBadRequest)
	}
	clean := filepath.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: save path leaves the map directory", errBadRequest)
	}
	return filepath.Join(s.cfg.MapDir, clean), nil
}

func (s *Session) journal(clientID string, ed protocol.EditMsg, ack protocol.AckMsg) {
	if s.editLogger == nil {
		return
	}
	args, _ := json.Marshal(ed)
	result := "ok"
	if !ack.Accepted {
		result = ack.Code
	}
	entry := persistlog.EditEntry{
		Time:   s.now().UTC(),
		MapID:  s.m.ID(),
		Client: clientID,
		Op:     ed.Op,
		Edits:  ack.Edits,
		Args:   args,
		Result: result,
		Error:  ack.Message,
	}
	if err := s.editLogger.WriteEdit(entry); err != nil {
		s.log.WithError(err).Warn("journal edit")
	}
}

func (s *Session) broadcastState() {
	b, err := s.stateMessage()
	if err != nil {
		s.log.WithError(err).Error("build state")
		return
	}
	for _, c := range s.clients {
		sendLatest(c.out, b)
	}
}

// sendLatest never blocks the session; a slow client loses its oldest message.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
