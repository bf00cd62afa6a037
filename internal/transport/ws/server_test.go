package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"blockeditor/internal/logging"
	"blockeditor/internal/protocol"
	"blockeditor/internal/sim/assets"
	"blockeditor/internal/sim/editor"
	"blockeditor/internal/sim/mapman"
	"blockeditor/internal/sim/render"
)

func startServer(t *testing.T) string {
	t.Helper()
	am, err := assets.New(assets.Options{Renderer: render.NewRecorder(), Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("assets.New: %v", err)
	}
	m := mapman.New(mapman.Options{Assets: am, Logger: logging.Discard(), UndoMax: 8})
	m.NewMap(3, 1, 3)
	sess := editor.New(m, editor.Config{MapDir: t.TempDir(), SnapshotDir: t.TempDir()}, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = sess.Run(ctx)
		close(done)
	}()
	srv := httptest.NewServer(NewServer(sess, logging.Discard()).Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func read(t *testing.T, conn *websocket.Conn, v any) protocol.BaseMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	base, err := protocol.DecodeBase(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v != nil {
		if err := json.Unmarshal(b, v); err != nil {
			t.Fatalf("unmarshal %s: %v", base.Type, err)
		}
	}
	return base
}

func hello(name string) protocol.HelloMsg {
	return protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: name}
}

func TestServer_HandshakeAndEdit(t *testing.T) {
	conn := dial(t, startServer(t))
	send(t, conn, hello("alice"))

	var welcome protocol.WelcomeMsg
	if base := read(t, conn, &welcome); base.Type != protocol.TypeWelcome {
		t.Fatalf("expected WELCOME, got %s", base.Type)
	}
	if welcome.ClientID == "" || welcome.Map.Width != 3 || welcome.Map.Height != 1 {
		t.Fatalf("welcome %+v", welcome)
	}
	if base := read(t, conn, nil); base.Type != protocol.TypeState {
		t.Fatalf("expected STATE, got %s", base.Type)
	}

	send(t, conn, protocol.EditMsg{
		Type: protocol.TypeEdit, ProtocolVersion: protocol.Version, ReqID: "r1", Op: protocol.OpSetTiles,
		Size: [3]int{3, 1, 3},
		Tile: &protocol.TileArg{Shape: "shapes/cube.obj", Texture: "tex/a.png"},
	})
	var ack protocol.AckMsg
	if base := read(t, conn, &ack); base.Type != protocol.TypeAck || !ack.Accepted || ack.AckFor != "r1" {
		t.Fatalf("ack %+v", ack)
	}
	var st protocol.StateMsg
	if base := read(t, conn, &st); base.Type != protocol.TypeState || st.Stats.Tiles != 9 {
		t.Fatalf("state %+v", st.Stats)
	}

	// Schema violations never reach the session.
	send(t, conn, map[string]any{"type": "EDIT", "protocol_version": protocol.Version, "req_id": "r2", "op": "FLY"})
	var e protocol.ErrorMsg
	if base := read(t, conn, &e); base.Type != protocol.TypeError || e.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("error %+v", e)
	}
}

func TestServer_RejectsBadHello(t *testing.T) {
	url := startServer(t)

	conn := dial(t, url)
	h := hello("old")
	h.ProtocolVersion = "0.9"
	send(t, conn, h)
	var e protocol.ErrorMsg
	if base := read(t, conn, &e); base.Type != protocol.TypeError || e.Code != protocol.ErrProtoVersion {
		t.Fatalf("error %+v", e)
	}

	conn = dial(t, url)
	send(t, conn, protocol.EditMsg{Type: protocol.TypeEdit, ProtocolVersion: protocol.Version, ReqID: "r", Op: protocol.OpUndo})
	if base := read(t, conn, &e); base.Type != protocol.TypeError || e.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("error %+v", e)
	}
}
