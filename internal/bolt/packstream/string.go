package packstream

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/davebshow/asyncbolt/internal/boltx"
)

// PackStream String markers. Tiny strings (length 0-15) carry their length in the marker's low
// nibble; wider strings use an explicit length-prefix marker.
const (
	markerTinyStringBase = 0x80 // 0x80-0x8F, length = marker&0x0F
	tinyStringMax        = 0x0F

	markerString8  = 0xD0
	markerString16 = 0xD1
	markerString32 = 0xD2
)

// EncodeString writes a PackStream String using the narrowest marker that fits the payload.
func EncodeString(w io.Writer, s string) error {
	b := []byte(s)
	n := len(b)
	switch {
	case n <= tinyStringMax:
		if _, err := w.Write([]byte{byte(markerTinyStringBase | n)}); err != nil {
			return boltx.NewTransportError("encode.string.tiny.write", err)
		}
	case n <= 0xFF:
		if err := writeLengthPrefixed(w, markerString8, uint32(n), 1); err != nil {
			return boltx.NewTransportError("encode.string.8.write", err)
		}
	case n <= 0xFFFF:
		if err := writeLengthPrefixed(w, markerString16, uint32(n), 2); err != nil {
			return boltx.NewTransportError("encode.string.16.write", err)
		}
	default:
		if err := writeLengthPrefixed(w, markerString32, uint32(n), 4); err != nil {
			return boltx.NewTransportError("encode.string.32.write", err)
		}
	}
	if n == 0 {
		return nil
	}
	if _, err := w.Write(b); err != nil {
		return boltx.NewTransportError("encode.string.body.write", err)
	}
	return nil
}

// DecodeString reads a PackStream String from r.
func DecodeString(r io.Reader) (string, error) {
	var m [1]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return "", boltx.NewMalformedInput("decode.string.marker.read", err)
	}
	return decodeStringWithMarker(m[0], r)
}

func decodeStringWithMarker(marker byte, r io.Reader) (string, error) {
	n, err := stringLength(marker, r)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", boltx.NewMalformedInput("decode.string.body.read", err)
	}
	return string(buf), nil
}

func stringLength(marker byte, r io.Reader) (int, error) {
	switch {
	case marker >= markerTinyStringBase && marker <= markerTinyStringBase+tinyStringMax:
		return int(marker & tinyStringMax), nil
	case marker == markerString8:
		return readLengthPrefix(r, "decode.string.length8", 1)
	case marker == markerString16:
		return readLengthPrefix(r, "decode.string.length16", 2)
	case marker == markerString32:
		return readLengthPrefix(r, "decode.string.length32", 4)
	default:
		return 0, boltx.NewMalformedInput("decode.string.marker", fmt.Errorf("marker 0x%02x is not a string", marker))
	}
}

func isStringMarker(marker byte) bool {
	return (marker >= markerTinyStringBase && marker <= markerTinyStringBase+tinyStringMax) ||
		marker == markerString8 || marker == markerString16 || marker == markerString32
}

func writeLengthPrefixed(w io.Writer, marker byte, n uint32, width int) error {
	buf := make([]byte, 1+width)
	buf[0] = marker
	switch width {
	case 1:
		buf[1] = byte(n)
	case 2:
		binary.BigEndian.PutUint16(buf[1:], uint16(n))
	case 4:
		binary.BigEndian.PutUint32(buf[1:], n)
	}
	_, err := w.Write(buf)
	return err
}

func readLengthPrefix(r io.Reader, op string, width int) (int, error) {
	buf := make([]byte, width)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, boltx.NewMalformedInput(op, err)
	}
	switch width {
	case 1:
		return int(buf[0]), nil
	case 2:
		return int(binary.BigEndian.Uint16(buf)), nil
	case 4:
		return int(binary.BigEndian.Uint32(buf)), nil
	}
	return 0, fmt.Errorf("unsupported width %d", width)
}
