package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"blockeditor/internal/logging"
	"blockeditor/internal/protocol"
	"blockeditor/internal/sim/settings"
)

// The bot joins a session and paints random boxes, undoing every few edits.
func main() {
	var (
		url      = flag.String("url", "ws://localhost:8090/v1/ws", "ws url")
		name     = flag.String("name", "bot", "client name")
		count    = flag.Int("count", 50, "edits to send before exiting (0 = forever)")
		interval = flag.Duration("interval", 500*time.Millisecond, "delay between edits")
		seed     = flag.Int64("seed", 0, "random seed (0 = time based)")
		texture  = flag.String("texture", "", "texture path for painted tiles (default: default_texture_path from settings)")
		shape    = flag.String("shape", "", "shape path for painted tiles (default: default_shape_path from settings)")
		config   = flag.String("config", "./configs/editor.yaml", "editor settings path (defaults are used if missing)")
	)
	flag.Parse()

	cfg := settings.Defaults()
	if _, err := os.Stat(*config); err == nil {
		if cfg, err = settings.Load(*config); err != nil {
			fmt.Fprintln(os.Stderr, "settings:", err)
			os.Exit(2)
		}
	}
	if *texture == "" {
		*texture = cfg.DefaultTexturePath
	}
	if *shape == "" {
		*shape = cfg.DefaultShapePath
	}

	logger, _ := logging.New("bot", logging.Options{})
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.WithError(err).Fatal("dial")
	}
	defer conn.Close()

	hello := protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: *name}
	if err := conn.WriteJSON(hello); err != nil {
		logger.WithError(err).Fatal("send HELLO")
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	b := &bot{
		conn:  conn,
		log:   logger,
		rng:   rand.New(rand.NewSource(*seed)),
		tile:  protocol.TileArg{Shape: *shape, Texture: *texture},
		limit: *count,
	}

	msgs := make(chan []byte, 16)
	go func() {
		defer close(msgs)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msgs <- msg
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	tick := time.NewTicker(*interval)
	defer tick.Stop()

	for {
		select {
		case <-stop:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			b.handle(msg)
		case <-tick.C:
			if b.joined && !b.step() {
				return
			}
		}
	}
}

type bot struct {
	conn  *websocket.Conn
	log   logrus.FieldLogger
	rng   *rand.Rand
	tile  protocol.TileArg
	limit int

	joined bool
	dims   [3]int
	sent   int
}

func (b *bot) handle(msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return
	}
	switch base.Type {
	case protocol.TypeWelcome:
		var w protocol.WelcomeMsg
		if err := json.Unmarshal(msg, &w); err != nil {
			return
		}
		b.joined = true
		b.dims = [3]int{w.Map.Width, w.Map.Height, w.Map.Length}
		b.log.WithFields(logrus.Fields{"client": w.ClientID, "session": w.SessionID, "dims": b.dims}).Info("WELCOME")
	case protocol.TypeState:
		var st protocol.StateMsg
		if err := json.Unmarshal(msg, &st); err != nil {
			return
		}
		b.dims = [3]int{st.Map.Width, st.Map.Height, st.Map.Length}
		b.log.WithFields(logrus.Fields{"edits": st.Edits, "tiles": st.Stats.Tiles, "ents": st.Stats.Ents}).Debug("STATE")
	case protocol.TypeAck:
		var ack protocol.AckMsg
		if err := json.Unmarshal(msg, &ack); err != nil {
			return
		}
		if !ack.Accepted {
			b.log.WithFields(logrus.Fields{"req": ack.AckFor, "code": ack.Code}).Warn(ack.Message)
		}
	case protocol.TypeError:
		var e protocol.ErrorMsg
		if err := json.Unmarshal(msg, &e); err == nil {
			b.log.WithField("code", e.Code).Error(e.Message)
		}
	}
}

// step sends the next edit. It returns false once the limit is reached.
func (b *bot) step() bool {
	if b.limit > 0 && b.sent >= b.limit {
		return false
	}
	b.sent++
	ed := protocol.EditMsg{
		Type:            protocol.TypeEdit,
		ProtocolVersion: protocol.Version,
		ReqID:           fmt.Sprintf("B%d", b.sent),
	}
	if b.sent%5 == 0 {
		ed.Op = protocol.OpUndo
	} else {
		ed.Op = protocol.OpSetTiles
		for i := 0; i < 3; i++ {
			if b.dims[i] <= 0 {
				return true
			}
			ed.Origin[i] = b.rng.Intn(b.dims[i])
			ed.Size[i] = 1 + b.rng.Intn(b.dims[i]-ed.Origin[i])
		}
		t := b.tile
		t.Angle = 90 * int32(b.rng.Intn(4))
		ed.Tile = &t
	}
	if err := b.conn.WriteJSON(ed); err != nil {
		b.log.WithError(err).Error("send EDIT")
		return false
	}
	return true
}
