// Package observer serves read-only views of the live map to local tools.
package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/qmuntal/gltf"
	"github.com/sirupsen/logrus"

	"blockeditor/internal/export"
	"blockeditor/internal/protocol"
	"blockeditor/internal/sim/editor"
	"blockeditor/internal/sim/mapman"
)

const queryTimeout = 5 * time.Second

type Server struct {
	session *editor.Session
	log     logrus.FieldLogger
}

func NewServer(s *editor.Session, logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Server{session: s, log: logger.WithField("component", "observer")}
}

// MapResponse is the body of GET /v1/map.
type MapResponse struct {
	ProtocolVersion string          `json:"protocol_version"`
	SessionID       string          `json:"session_id"`
	Metrics         editor.Metrics  `json:"metrics"`
	State           json.RawMessage `json:"state"`
}

// MapHandler returns the session metrics and the current STATE message.
func (s *Server) MapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allow(rw, r) {
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
		defer cancel()
		state, err := s.session.State(ctx)
		if err != nil {
			s.fail(rw, err)
			return
		}
		resp := MapResponse{
			ProtocolVersion: protocol.Version,
			SessionID:       s.session.ID(),
			Metrics:         s.session.Metrics(),
			State:           state,
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

// ModelHandler exports the current map as a binary glTF. ?separate=1 writes
// one mesh per texture.
func (s *Server) ModelHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allow(rw, r) {
			return
		}
		opts := export.Options{SeparateGeometry: r.URL.Query().Get("separate") == "1"}

		ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
		defer cancel()
		var (
			doc   *gltf.Document
			res   export.Result
			empty bool
			err   error
		)
		qerr := s.session.Query(ctx, func(m *mapman.Map) {
			if !m.Loaded() {
				empty = true
				return
			}
			model, merr := m.Model()
			if merr != nil {
				err = merr
				return
			}
			doc, res = export.Build(model, m.TexturePaths(), m.Ents().EntList(), opts)
		})
		if qerr != nil {
			err = qerr
		}
		if err != nil {
			s.fail(rw, err)
			return
		}
		if empty {
			http.Error(rw, protocol.ErrNoMap, http.StatusNotFound)
			return
		}

		var buf bytes.Buffer
		if err := export.Encode(&buf, doc); err != nil {
			s.fail(rw, err)
			return
		}
		s.log.WithFields(logrus.Fields{"meshes": res.Meshes, "triangles": res.Triangles, "bytes": buf.Len()}).Debug("model served")
		rw.Header().Set("Content-Type", "model/gltf-binary")
		_, _ = rw.Write(buf.Bytes())
	}
}

func (s *Server) allow(rw http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return false
	}
	return true
}

func (s *Server) fail(rw http.ResponseWriter, err error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		http.Error(rw, protocol.ErrBusy, http.StatusServiceUnavailable)
		return
	}
	s.log.WithError(err).Warn("observer query")
	http.Error(rw, protocol.ErrInternal, http.StatusInternalServerError)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
