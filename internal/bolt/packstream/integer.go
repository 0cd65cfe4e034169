package packstream

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/davebshow/asyncbolt/internal/boltx"
)

// PackStream integer markers. Tiny positive/negative integers carry their value in the marker
// byte itself; wider values use an explicit width marker followed by a big-endian payload.
const (
	tinyIntPositiveMax = 0x7F // 0x00-0x7F encode values 0..127 directly
	tinyIntNegativeMin = 0xF0 // 0xF0-0xFF encode values -16..-1 directly (marker-0x100)

	markerInt8  = 0xC8
	markerInt16 = 0xC9
	markerInt32 = 0xCA
	markerInt64 = 0xCB
)

// EncodeInteger writes a PackStream Integer using the narrowest marker that represents v
// exactly: tiny range (-16..127), then int8, int16, int32, int64 in that order.
func EncodeInteger(w io.Writer, v int64) error {
	switch {
	case v >= -16 && v <= 127:
		var marker byte
		if v >= 0 {
			marker = byte(v)
		} else {
			marker = byte(0x100 + v)
		}
		if _, err := w.Write([]byte{marker}); err != nil {
			return boltx.NewTransportError("encode.integer.tiny.write", err)
		}
		return nil
	case v >= -128 && v <= 127:
		return writeIntWidth(w, markerInt8, uint64(uint8(int8(v))), 1)
	case v >= -32768 && v <= 32767:
		return writeIntWidth(w, markerInt16, uint64(uint16(int16(v))), 2)
	case v >= -2147483648 && v <= 2147483647:
		return writeIntWidth(w, markerInt32, uint64(uint32(int32(v))), 4)
	default:
		return writeIntWidth(w, markerInt64, uint64(v), 8)
	}
}

func writeIntWidth(w io.Writer, marker byte, bits uint64, width int) error {
	buf := make([]byte, 1+width)
	buf[0] = marker
	switch width {
	case 1:
		buf[1] = byte(bits)
	case 2:
		binary.BigEndian.PutUint16(buf[1:], uint16(bits))
	case 4:
		binary.BigEndian.PutUint32(buf[1:], uint32(bits))
	case 8:
		binary.BigEndian.PutUint64(buf[1:], bits)
	}
	if _, err := w.Write(buf); err != nil {
		return boltx.NewTransportError("encode.integer.write", err)
	}
	return nil
}

// DecodeInteger reads a PackStream Integer from r, handling every marker width.
func DecodeInteger(r io.Reader) (int64, error) {
	var m [1]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return 0, boltx.NewMalformedInput("decode.integer.marker.read", err)
	}
	return decodeIntegerWithMarker(m[0], r)
}

func decodeIntegerWithMarker(marker byte, r io.Reader) (int64, error) {
	switch {
	case marker <= tinyIntPositiveMax:
		return int64(marker), nil
	case marker >= tinyIntNegativeMin:
		return int64(marker) - 0x100, nil
	case marker == markerInt8:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, boltx.NewMalformedInput("decode.integer.int8.read", err)
		}
		return int64(int8(b[0])), nil
	case marker == markerInt16:
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, boltx.NewMalformedInput("decode.integer.int16.read", err)
		}
		return int64(int16(binary.BigEndian.Uint16(b[:]))), nil
	case marker == markerInt32:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, boltx.NewMalformedInput("decode.integer.int32.read", err)
		}
		return int64(int32(binary.BigEndian.Uint32(b[:]))), nil
	case marker == markerInt64:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, boltx.NewMalformedInput("decode.integer.int64.read", err)
		}
		return int64(binary.BigEndian.Uint64(b[:])), nil
	default:
		return 0, boltx.NewMalformedInput("decode.integer.marker", fmt.Errorf("marker 0x%02x is not an integer", marker))
	}
}

// isIntegerMarker reports whether marker encodes some width of Integer.
func isIntegerMarker(marker byte) bool {
	return marker <= tinyIntPositiveMax || marker >= tinyIntNegativeMin ||
		marker == markerInt8 || marker == markerInt16 || marker == markerInt32 || marker == markerInt64
}
