package packstream

import (
	"fmt"
	"io"

	"github.com/davebshow/asyncbolt/internal/boltx"
)

// PackStream List markers. Tiny lists (length 0-15) carry their length in the marker's low
// nibble; wider lists use an explicit length-prefix marker.
const (
	markerTinyListBase = 0x90 // 0x90-0x9F, length = marker&0x0F
	tinyListMax        = 0x0F

	markerList8  = 0xD4
	markerList16 = 0xD5
	markerList32 = 0xD6
)

// EncodeList writes a PackStream List using the narrowest marker that fits, encoding each
// element with EncodeValue.
func EncodeList(w io.Writer, values []interface{}) error {
	n := len(values)
	var err error
	switch {
	case n <= tinyListMax:
		_, err = w.Write([]byte{byte(markerTinyListBase | n)})
	case n <= 0xFF:
		err = writeLengthPrefixed(w, markerList8, uint32(n), 1)
	case n <= 0xFFFF:
		err = writeLengthPrefixed(w, markerList16, uint32(n), 2)
	default:
		err = writeLengthPrefixed(w, markerList32, uint32(n), 4)
	}
	if err != nil {
		return boltx.NewTransportError("encode.list.header.write", err)
	}
	for i, v := range values {
		if err := EncodeValue(w, v); err != nil {
			return fmt.Errorf("encode.list.element %d: %w", i, err)
		}
	}
	return nil
}

// DecodeList reads a PackStream List from r.
func DecodeList(r io.Reader) ([]interface{}, error) {
	var m [1]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return nil, boltx.NewMalformedInput("decode.list.marker.read", err)
	}
	return decodeListWithMarker(m[0], r, 0)
}

func decodeListWithMarker(marker byte, r io.Reader, depth int) ([]interface{}, error) {
	n, err := listLength(marker, r)
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, 0, n)
	for i := 0; i < n; i++ {
		v, err := decodeValueAtDepth(r, depth+1)
		if err != nil {
			return nil, fmt.Errorf("decode.list.element %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func listLength(marker byte, r io.Reader) (int, error) {
	switch {
	case marker >= markerTinyListBase && marker <= markerTinyListBase+tinyListMax:
		return int(marker & tinyListMax), nil
	case marker == markerList8:
		return readLengthPrefix(r, "decode.list.length8", 1)
	case marker == markerList16:
		return readLengthPrefix(r, "decode.list.length16", 2)
	case marker == markerList32:
		return readLengthPrefix(r, "decode.list.length32", 4)
	default:
		return 0, boltx.NewMalformedInput("decode.list.marker", fmt.Errorf("marker 0x%02x is not a list", marker))
	}
}

func isListMarker(marker byte) bool {
	return (marker >= markerTinyListBase && marker <= markerTinyListBase+tinyListMax) ||
		marker == markerList8 || marker == markerList16 || marker == markerList32
}
