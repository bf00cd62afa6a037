package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeEdit    = "EDIT"
	TypeAck     = "ACK"
	TypeState   = "STATE"
	TypeError   = "ERROR"
)

// Edit operations.
const (
	OpSetTiles  = "SET_TILES"
	OpPaste     = "PASTE"
	OpPlaceEnt  = "PLACE_ENT"
	OpRemoveEnt = "REMOVE_ENT"
	OpUndo      = "UNDO"
	OpRedo      = "REDO"
	OpExpand    = "EXPAND"
	OpShrink    = "SHRINK"
	OpSave      = "SAVE"
	OpSnapshot  = "SNAPSHOT"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
