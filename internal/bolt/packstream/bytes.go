package packstream

import (
	"fmt"
	"io"

	"github.com/davebshow/asyncbolt/internal/boltx"
)

// PackStream Bytes markers. There is no tiny variant; every byte array is length-prefixed.
const (
	markerBytes8  = 0xCC
	markerBytes16 = 0xCD
	markerBytes32 = 0xCE
)

// EncodeBytes writes a PackStream Bytes value using the narrowest marker that fits the payload.
func EncodeBytes(w io.Writer, b []byte) error {
	n := len(b)
	switch {
	case n <= 0xFF:
		if err := writeLengthPrefixed(w, markerBytes8, uint32(n), 1); err != nil {
			return boltx.NewTransportError("encode.bytes.8.write", err)
		}
	case n <= 0xFFFF:
		if err := writeLengthPrefixed(w, markerBytes16, uint32(n), 2); err != nil {
			return boltx.NewTransportError("encode.bytes.16.write", err)
		}
	default:
		if err := writeLengthPrefixed(w, markerBytes32, uint32(n), 4); err != nil {
			return boltx.NewTransportError("encode.bytes.32.write", err)
		}
	}
	if n == 0 {
		return nil
	}
	if _, err := w.Write(b); err != nil {
		return boltx.NewTransportError("encode.bytes.body.write", err)
	}
	return nil
}

// DecodeBytes reads a PackStream Bytes value from r.
func DecodeBytes(r io.Reader) ([]byte, error) {
	var m [1]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return nil, boltx.NewMalformedInput("decode.bytes.marker.read", err)
	}
	return decodeBytesWithMarker(m[0], r)
}

func decodeBytesWithMarker(marker byte, r io.Reader) ([]byte, error) {
	var n int
	var err error
	switch marker {
	case markerBytes8:
		n, err = readLengthPrefix(r, "decode.bytes.length8", 1)
	case markerBytes16:
		n, err = readLengthPrefix(r, "decode.bytes.length16", 2)
	case markerBytes32:
		n, err = readLengthPrefix(r, "decode.bytes.length32", 4)
	default:
		return nil, boltx.NewMalformedInput("decode.bytes.marker", fmt.Errorf("marker 0x%02x is not a byte array", marker))
	}
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, boltx.NewMalformedInput("decode.bytes.body.read", err)
	}
	return buf, nil
}

func isBytesMarker(marker byte) bool {
	return marker == markerBytes8 || marker == markerBytes16 || marker == markerBytes32
}
