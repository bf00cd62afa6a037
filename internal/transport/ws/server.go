package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"blockeditor/internal/protocol"
	"blockeditor/internal/sim/editor"
)

type Server struct {
	session *editor.Session
	log     logrus.FieldLogger

	upgrader websocket.Upgrader
}

func NewServer(s *editor.Session, logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Server{
		session: s,
		log:     logger.WithField("component", "ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		clientID, out := s.handshake(conn)
		if clientID == "" {
			return
		}
		log := s.log.WithField("client", clientID)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeEdit {
				sendError(out, protocol.ErrProtoBadRequest, "expected EDIT")
				continue
			}
			if err := protocol.Validate(protocol.TypeEdit, msg); err != nil {
				log.WithError(err).Debug("invalid edit")
				sendError(out, protocol.ErrProtoBadRequest, err.Error())
				continue
			}
			var ed protocol.EditMsg
			if err := json.Unmarshal(msg, &ed); err != nil {
				sendError(out, protocol.ErrProtoBadRequest, err.Error())
				continue
			}
			select {
			case s.session.Inbox() <- editor.EditEnvelope{ClientID: clientID, Edit: ed}:
			case <-ctx.Done():
			}
		}

		// Cleanup.
		s.session.Leave() <- clientID
	}
}

func (s *Server) handshake(conn *websocket.Conn) (clientID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, protocol.ErrProtoBadRequest, "expected HELLO")
		return "", nil
	}
	if err := protocol.Validate(protocol.TypeHello, msg); err != nil {
		closeWith(conn, protocol.ErrProtoBadRequest, err.Error())
		return "", nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, protocol.ErrProtoVersion, "bad protocol_version")
		return "", nil
	}

	out = make(chan []byte, 32)
	respCh := make(chan editor.JoinResponse, 1)
	s.session.Join() <- editor.JoinRequest{
		Name:     hello.ClientName,
		ReadOnly: hello.ReadOnly,
		Out:      out,
		Resp:     respCh,
	}
	resp := <-respCh
	if resp.Code != "" {
		closeWith(conn, resp.Code, "join rejected")
		return "", nil
	}

	// Send welcome + current state immediately.
	if err := writeJSON(conn, resp.Welcome); err != nil {
		s.session.Leave() <- resp.Welcome.ClientID
		return "", nil
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, resp.State); err != nil {
		s.session.Leave() <- resp.Welcome.ClientID
		return "", nil
	}
	return resp.Welcome.ClientID, out
}

// closeWith sends ERROR and closes the connection.
func closeWith(conn *websocket.Conn, code, msg string) {
	_ = writeJSON(conn, protocol.NewError(code, msg))
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, code), time.Now().Add(time.Second))
}

func sendError(out chan []byte, code, msg string) {
	b, err := json.Marshal(protocol.NewError(code, msg))
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
