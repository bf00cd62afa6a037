package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Session routing/state.
	ErrBusy     = "E_BUSY"
	ErrReadOnly = "E_READ_ONLY"

	// Edit layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrNoMap         = "E_NO_MAP"
	ErrOutOfBounds   = "E_OUT_OF_BOUNDS"
	ErrSerialization = "E_SERIALIZATION"
	ErrNothingToUndo = "E_NOTHING_TO_UNDO"
	ErrNothingToRedo = "E_NOTHING_TO_REDO"
	ErrEmptyMap      = "E_EMPTY_MAP"
	ErrIO            = "E_IO"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrBusy:            {},
	ErrReadOnly:        {},
	ErrBadRequest:      {},
	ErrNoMap:           {},
	ErrOutOfBounds:     {},
	ErrSerialization:   {},
	ErrNothingToUndo:   {},
	ErrNothingToRedo:   {},
	ErrEmptyMap:        {},
	ErrIO:              {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
