package encoding

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// EncodeCounts packs non-negative counts as base64 of uvarint (value, repeat)
// pairs. Layer occupancy digests use it: most layers of a map are either
// empty or full, so long repeats dominate.
func EncodeCounts(counts []int) string {
	bin := make([]byte, 0, 2*len(counts))
	for i := 0; i < len(counts); {
		v := counts[i]
		j := i + 1
		for j < len(counts) && counts[j] == v {
			j++
		}
		bin = binary.AppendUvarint(bin, uint64(max(v, 0)))
		bin = binary.AppendUvarint(bin, uint64(j-i))
		i = j
	}
	return base64.StdEncoding.EncodeToString(bin)
}

// DecodeCounts reverses EncodeCounts. limit caps the decoded length so a
// corrupt digest cannot allocate without bound; zero means no cap.
func DecodeCounts(b64 string, limit int) ([]int, error) {
	bin, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	var out []int
	for off := 0; off < len(bin); {
		v, n := binary.Uvarint(bin[off:])
		if n <= 0 {
			return nil, fmt.Errorf("%w: bad count varint at byte %d", ErrSerialization, off)
		}
		off += n
		rep, n := binary.Uvarint(bin[off:])
		if n <= 0 || rep == 0 {
			return nil, fmt.Errorf("%w: bad repeat varint at byte %d", ErrSerialization, off)
		}
		off += n
		if limit > 0 && uint64(len(out))+rep > uint64(limit) {
			return nil, fmt.Errorf("%w: more than %d counts", ErrSerialization, limit)
		}
		for ; rep > 0; rep-- {
			out = append(out, int(v))
		}
	}
	return out, nil
}
