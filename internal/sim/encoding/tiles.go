package encoding

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"blockeditor/internal/sim/tile"
)

// TileRecordSize is the encoded width of one tile: four little-endian int32
// fields in the order shape, angle, texture, pitch.
const TileRecordSize = 16

var ErrSerialization = errors.New("tile data serialization")

func putTile(dst []byte, t tile.Tile) {
	binary.LittleEndian.PutUint32(dst[0:], uint32(t.Shape))
	binary.LittleEndian.PutUint32(dst[4:], uint32(t.Angle))
	binary.LittleEndian.PutUint32(dst[8:], uint32(t.Texture))
	binary.LittleEndian.PutUint32(dst[12:], uint32(t.Pitch))
}

func readTile(src []byte) tile.Tile {
	return tile.Tile{
		Shape:   int32(binary.LittleEndian.Uint32(src[0:])),
		Angle:   int32(binary.LittleEndian.Uint32(src[4:])),
		Texture: int32(binary.LittleEndian.Uint32(src[8:])),
		Pitch:   int32(binary.LittleEndian.Uint32(src[12:])),
	}
}

// runTile marks n empty tiles preceding the next record.
func runTile(n int) tile.Tile {
	return tile.Tile{Shape: int32(-n), Angle: int32(n), Texture: int32(-n), Pitch: int32(n)}
}

// EncodeTiles writes every tile verbatim in flat index order.
func EncodeTiles(tiles []tile.Tile) string {
	bin := make([]byte, len(tiles)*TileRecordSize)
	for i, t := range tiles {
		putTile(bin[i*TileRecordSize:], t)
	}
	return base64.StdEncoding.EncodeToString(bin)
}

// EncodeTilesRLE collapses runs of empty tiles into a single run record. A run
// that reaches the last cel is not collapsed at its final tile, so the stream
// always ends on a verbatim record.
func EncodeTilesRLE(tiles []tile.Tile) (string, error) {
	bin := make([]byte, 0, len(tiles)*TileRecordSize)
	var rec [TileRecordSize]byte

	run := 0
	for i, t := range tiles {
		if !t.Present() && i < len(tiles)-1 {
			run++
			continue
		}
		if run > 0 {
			if run > math.MaxInt32 {
				return "", fmt.Errorf("%w: run of %d empty tiles exceeds int32", ErrSerialization, run)
			}
			putTile(rec[:], runTile(run))
			bin = append(bin, rec[:]...)
			run = 0
		}
		putTile(rec[:], t)
		bin = append(bin, rec[:]...)
	}
	return base64.StdEncoding.EncodeToString(bin), nil
}

// DecodeTiles reads either encoding into exactly volume tiles. Any record with
// a negative shape expands into -shape empty tiles; records below NoModel must
// carry a consistent run signature.
func DecodeTiles(b64 string, volume int) ([]tile.Tile, error) {
	if volume < 0 {
		return nil, fmt.Errorf("%w: negative volume %d", ErrSerialization, volume)
	}
	bin, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	if len(bin)%TileRecordSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrSerialization, len(bin), TileRecordSize)
	}

	// Runs expand past the record count, so only the records are preallocated.
	out := make([]tile.Tile, 0, min(volume, len(bin)/TileRecordSize))
	for b := 0; b < len(bin); b += TileRecordSize {
		t := readTile(bin[b:])
		if t.Shape >= 0 {
			if len(out) >= volume {
				return nil, fmt.Errorf("%w: more than %d tiles", ErrSerialization, volume)
			}
			out = append(out, t)
			continue
		}

		n := int(-int64(t.Shape))
		if t.Shape < tile.NoModel && (t.Texture != t.Shape || int(t.Angle) != n || int(t.Pitch) != n) {
			return nil, fmt.Errorf("%w: malformed run record %+v at byte %d", ErrSerialization, t, b)
		}
		if len(out)+n > volume {
			return nil, fmt.Errorf("%w: run of %d overflows %d tiles", ErrSerialization, n, volume)
		}
		for j := 0; j < n; j++ {
			out = append(out, tile.Empty())
		}
	}
	if len(out) != volume {
		return nil, fmt.Errorf("%w: decoded %d tiles, grid holds %d", ErrSerialization, len(out), volume)
	}
	return out, nil
}
