package packstream

import (
	"fmt"
	"io"

	"github.com/davebshow/asyncbolt/internal/boltx"
)

// markerFalse and markerTrue are the PackStream markers for Boolean. Unlike AMF0, PackStream
// encodes the value itself in the marker byte; there is no separate payload byte.
const (
	markerFalse = 0xC2
	markerTrue  = 0xC3
)

// EncodeBoolean writes a PackStream Boolean (single marker byte, 0xC2 or 0xC3) to w.
func EncodeBoolean(w io.Writer, v bool) error {
	marker := byte(markerFalse)
	if v {
		marker = markerTrue
	}
	if _, err := w.Write([]byte{marker}); err != nil {
		return boltx.NewTransportError("encode.boolean.write", err)
	}
	return nil
}

// DecodeBoolean reads a PackStream Boolean from r.
func DecodeBoolean(r io.Reader) (bool, error) {
	var m [1]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return false, boltx.NewMalformedInput("decode.boolean.marker.read", err)
	}
	switch m[0] {
	case markerTrue:
		return true, nil
	case markerFalse:
		return false, nil
	default:
		return false, boltx.NewMalformedInput("decode.boolean.marker", fmt.Errorf("expected 0x%02x or 0x%02x got 0x%02x", markerFalse, markerTrue, m[0]))
	}
}
