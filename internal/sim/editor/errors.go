package editor

import (
	"errors"
	"io/fs"

	"blockeditor/internal/persistence/mapfile"
	"blockeditor/internal/protocol"
	"blockeditor/internal/sim/encoding"
	"blockeditor/internal/sim/entity"
	"blockeditor/internal/sim/grid"
	"blockeditor/internal/sim/mapman"
)

var (
	errBadRequest    = errors.New("bad request")
	errReadOnly      = errors.New("read-only")
	errBusy          = errors.New("busy")
	errNothingToUndo = errors.New("nothing to undo")
	errNothingToRedo = errors.New("nothing to redo")
)

// codeFor maps an edit failure to its wire code.
func codeFor(err error) string {
	var pathErr *fs.PathError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, errReadOnly):
		return protocol.ErrReadOnly
	case errors.Is(err, errBusy):
		return protocol.ErrBusy
	case errors.Is(err, errNothingToUndo):
		return protocol.ErrNothingToUndo
	case errors.Is(err, errNothingToRedo):
		return protocol.ErrNothingToRedo
	case errors.Is(err, mapman.ErrNoMap):
		return protocol.ErrNoMap
	case errors.Is(err, mapman.ErrEmptyMap):
		return protocol.ErrEmptyMap
	case errors.Is(err, grid.ErrOutOfBounds), errors.Is(err, grid.ErrSubsectionOverflow):
		return protocol.ErrOutOfBounds
	case errors.Is(err, encoding.ErrSerialization):
		return protocol.ErrSerialization
	case errors.Is(err, errBadRequest), errors.Is(err, mapman.ErrInvalidResize),
		errors.Is(err, entity.ErrNoEnt), errors.Is(err, mapfile.ErrExtension):
		return protocol.ErrBadRequest
	case errors.As(err, &pathErr):
		return protocol.ErrIO
	}
	return protocol.ErrInternal
}
