package encoding

import (
	"encoding/base64"
	"errors"
	"math/rand"
	"testing"

	"blockeditor/internal/sim/tile"
)

func randomTiles(n int, seed int64) []tile.Tile {
	r := rand.New(rand.NewSource(seed))
	out := make([]tile.Tile, n)
	for i := range out {
		if r.Intn(3) == 0 {
			out[i] = tile.Tile{
				Shape:   int32(r.Intn(4)),
				Angle:   int32(r.Intn(4) * 90),
				Texture: int32(r.Intn(6)),
				Pitch:   int32(r.Intn(4) * 90),
			}
		} else {
			out[i] = tile.Empty()
		}
	}
	return out
}

func equalTiles(t *testing.T, got, want []tile.Tile) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("len mismatch: got %d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tile %d: got %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestTiles_RoundTripBothEncodings(t *testing.T) {
	for seed := int64(1); seed <= 8; seed++ {
		in := randomTiles(4*3*4, seed)

		out, err := DecodeTiles(EncodeTiles(in), len(in))
		if err != nil {
			t.Fatalf("seed %d: decode plain: %v", seed, err)
		}
		equalTiles(t, out, in)

		enc, err := EncodeTilesRLE(in)
		if err != nil {
			t.Fatalf("seed %d: EncodeTilesRLE: %v", seed, err)
		}
		out, err = DecodeTiles(enc, len(in))
		if err != nil {
			t.Fatalf("seed %d: decode rle: %v", seed, err)
		}
		equalTiles(t, out, in)
	}
}

func TestTilesRLE_AllEmpty(t *testing.T) {
	in := make([]tile.Tile, 100)
	for i := range in {
		in[i] = tile.Empty()
	}
	enc, err := EncodeTilesRLE(in)
	if err != nil {
		t.Fatalf("EncodeTilesRLE: %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(enc)
	// One run record for the first 99, then the last cel verbatim.
	if len(raw) != 2*TileRecordSize {
		t.Fatalf("expected 2 records, got %d bytes", len(raw))
	}
	out, err := DecodeTiles(enc, len(in))
	if err != nil {
		t.Fatalf("DecodeTiles: %v", err)
	}
	equalTiles(t, out, in)
}

func TestTilesRLE_LastCelPresent(t *testing.T) {
	in := []tile.Tile{tile.Empty(), tile.Empty(), tile.Empty(), {Shape: 1, Texture: 2, Angle: 90}}
	enc, err := EncodeTilesRLE(in)
	if err != nil {
		t.Fatalf("EncodeTilesRLE: %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(enc)
	if len(raw) != 2*TileRecordSize {
		t.Fatalf("expected run + tile, got %d bytes", len(raw))
	}
	run := readTile(raw)
	if run != (tile.Tile{Shape: -3, Angle: 3, Texture: -3, Pitch: 3}) {
		t.Fatalf("unexpected run record %+v", run)
	}
	out, err := DecodeTiles(enc, len(in))
	if err != nil {
		t.Fatalf("DecodeTiles: %v", err)
	}
	equalTiles(t, out, in)
}

func TestTilesRLE_Empty(t *testing.T) {
	enc, err := EncodeTilesRLE(nil)
	if err != nil {
		t.Fatalf("EncodeTilesRLE: %v", err)
	}
	out, err := DecodeTiles(enc, 0)
	if err != nil {
		t.Fatalf("DecodeTiles: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no tiles, got %d", len(out))
	}
}

func TestDecodeTiles_Errors(t *testing.T) {
	four := []tile.Tile{tile.Empty(), {Shape: 0, Texture: 0}, tile.Empty(), tile.Empty()}
	good := EncodeTiles(four)

	raw := make([]byte, TileRecordSize)
	putTile(raw, tile.Tile{Shape: -5, Angle: 2, Texture: -5, Pitch: 5})
	badRun := base64.StdEncoding.EncodeToString(raw)

	putTile(raw, runTile(10))
	overflow := base64.StdEncoding.EncodeToString(raw)

	cases := map[string]struct {
		b64    string
		volume int
	}{
		"bad base64":     {"!!not base64!!", 4},
		"partial record": {base64.StdEncoding.EncodeToString(make([]byte, 10)), 4},
		"too few tiles":  {good, 5},
		"too many tiles": {good, 3},
		"malformed run":  {badRun, 5},
		"run overflows":  {overflow, 4},
		"huge volume":    {good, 1 << 50},
		"negative":       {good, -1},
	}
	for name, c := range cases {
		if _, err := DecodeTiles(c.b64, c.volume); !errors.Is(err, ErrSerialization) {
			t.Fatalf("%s: expected ErrSerialization, got %v", name, err)
		}
	}
}
