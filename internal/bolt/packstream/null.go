package packstream

import (
	"fmt"
	"io"

	"github.com/davebshow/asyncbolt/internal/boltx"
)

// markerNull is the PackStream marker for Null.
const markerNull = 0xC0

// EncodeNull writes the Null marker (single byte 0xC0) to w.
func EncodeNull(w io.Writer) error {
	if _, err := w.Write([]byte{markerNull}); err != nil {
		return boltx.NewTransportError("encode.null.write", err)
	}
	return nil
}

// DecodeNull reads a Null value (marker 0xC0) from r.
func DecodeNull(r io.Reader) (interface{}, error) {
	var m [1]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return nil, boltx.NewMalformedInput("decode.null.marker.read", err)
	}
	if m[0] != markerNull {
		return nil, boltx.NewMalformedInput("decode.null.marker", fmt.Errorf("expected 0x%02x got 0x%02x", markerNull, m[0]))
	}
	return nil, nil
}
