package protocol

import "encoding/json"

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
	// ReadOnly clients receive STATE but may not send EDIT.
	ReadOnly bool `json:"read_only,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	SessionID       string  `json:"session_id"`
	ClientID        string  `json:"client_id"`
	Map             MapInfo `json:"map"`
}

type MapInfo struct {
	ID      string  `json:"id"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Length  int     `json:"length"`
	Spacing float32 `json:"spacing"`
}

// TileArg names a tile by asset paths. An empty shape or texture erases.
type TileArg struct {
	Shape   string `json:"shape,omitempty"`
	Texture string `json:"texture,omitempty"`
	Angle   int32  `json:"angle,omitempty"`
	Pitch   int32  `json:"pitch,omitempty"`
}

// BrushArg is a block of tiles in the map file encoding. Tile ids index the
// brush's own texture and shape lists.
type BrushArg struct {
	Size     [3]int   `json:"size"`
	Textures []string `json:"textures"`
	Shapes   []string `json:"shapes"`
	Data     string   `json:"data"`
}

// EDIT (client -> server). Which fields are read depends on Op.
type EditMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	Op              string `json:"op"`

	Origin    [3]int          `json:"origin"`
	Size      [3]int          `json:"size"`
	Tile      *TileArg        `json:"tile,omitempty"`
	Brush     *BrushArg       `json:"brush,omitempty"`
	Ent       json.RawMessage `json:"ent,omitempty"`
	Direction string          `json:"direction,omitempty"`
	Amount    int             `json:"amount,omitempty"`
	Path      string          `json:"path,omitempty"`
}

// ACK (server -> client)
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	Edits           uint64 `json:"edits"`
	// Path is set for SAVE and SNAPSHOT.
	Path string `json:"path,omitempty"`
}

// STATE (server -> client): the whole map after an accepted edit.
type StateMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	Map             MapInfo           `json:"map"`
	Edits           uint64            `json:"edits"`
	Textures        []string          `json:"textures"`
	Shapes          []string          `json:"shapes"`
	Data            string            `json:"data"`
	Ents            []json.RawMessage `json:"ents"`
	Stats           StateStats        `json:"stats"`
}

type StateStats struct {
	Tiles int `json:"tiles"`
	Ents  int `json:"ents"`
	Undo  int `json:"undo"`
}

// ERROR (server -> client): a message that could not be handled at all.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

func NewError(code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: msg}
}
