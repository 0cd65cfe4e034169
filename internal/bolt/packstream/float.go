package packstream

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/davebshow/asyncbolt/internal/boltx"
)

// markerFloat64 is the PackStream marker for Float (marker + 8-byte IEEE-754 double, big-endian).
const markerFloat64 = 0xC1

// EncodeFloat writes a PackStream Float to w.
func EncodeFloat(w io.Writer, v float64) error {
	var buf [1 + 8]byte
	buf[0] = markerFloat64
	binary.BigEndian.PutUint64(buf[1:], math.Float64bits(v))
	if _, err := w.Write(buf[:]); err != nil {
		return boltx.NewTransportError("encode.float.write", err)
	}
	return nil
}

// DecodeFloat reads a PackStream Float from r.
func DecodeFloat(r io.Reader) (float64, error) {
	var m [1]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return 0, boltx.NewMalformedInput("decode.float.marker.read", err)
	}
	if m[0] != markerFloat64 {
		return 0, boltx.NewMalformedInput("decode.float.marker", fmt.Errorf("expected 0x%02x got 0x%02x", markerFloat64, m[0]))
	}
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, boltx.NewMalformedInput("decode.float.read", err)
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b[:])), nil
}
