package packstream

import (
	"fmt"
	"io"

	"github.com/davebshow/asyncbolt/internal/boltx"
)

// PackStream Map markers. Tiny maps (0-15 entries) carry their entry count in the marker's low
// nibble; wider maps use an explicit entry-count marker. Keys must be Strings.
const (
	markerTinyMapBase = 0xA0 // 0xA0-0xAF, entries = marker&0x0F
	tinyMapMax        = 0x0F

	markerMap8  = 0xD8
	markerMap16 = 0xD9
	markerMap32 = 0xDA
)

// EncodeMap writes a PackStream Map, serializing entries in m's insertion order.
func EncodeMap(w io.Writer, m *Map) error {
	n := m.Len()
	var err error
	switch {
	case n <= tinyMapMax:
		_, err = w.Write([]byte{byte(markerTinyMapBase | n)})
	case n <= 0xFF:
		err = writeLengthPrefixed(w, markerMap8, uint32(n), 1)
	case n <= 0xFFFF:
		err = writeLengthPrefixed(w, markerMap16, uint32(n), 2)
	default:
		err = writeLengthPrefixed(w, markerMap32, uint32(n), 4)
	}
	if err != nil {
		return boltx.NewTransportError("encode.map.header.write", err)
	}
	var encodeErr error
	m.Range(func(key string, value interface{}) bool {
		if err := EncodeString(w, key); err != nil {
			encodeErr = fmt.Errorf("encode.map.key %q: %w", key, err)
			return false
		}
		if err := EncodeValue(w, value); err != nil {
			encodeErr = fmt.Errorf("encode.map.value %q: %w", key, err)
			return false
		}
		return true
	})
	return encodeErr
}

// DecodeMap reads a PackStream Map from r. Duplicate keys resolve last-wins.
func DecodeMap(r io.Reader) (*Map, error) {
	var mk [1]byte
	if _, err := io.ReadFull(r, mk[:]); err != nil {
		return nil, boltx.NewMalformedInput("decode.map.marker.read", err)
	}
	return decodeMapWithMarker(mk[0], r, 0)
}

func decodeMapWithMarker(marker byte, r io.Reader, depth int) (*Map, error) {
	n, err := mapLength(marker, r)
	if err != nil {
		return nil, err
	}
	out := NewMap()
	for i := 0; i < n; i++ {
		key, err := DecodeString(r)
		if err != nil {
			return nil, fmt.Errorf("decode.map.key %d: %w", i, err)
		}
		val, err := decodeValueAtDepth(r, depth+1)
		if err != nil {
			return nil, fmt.Errorf("decode.map.value %q: %w", key, err)
		}
		out.Set(key, val)
	}
	return out, nil
}

func mapLength(marker byte, r io.Reader) (int, error) {
	switch {
	case marker >= markerTinyMapBase && marker <= markerTinyMapBase+tinyMapMax:
		return int(marker & tinyMapMax), nil
	case marker == markerMap8:
		return readLengthPrefix(r, "decode.map.length8", 1)
	case marker == markerMap16:
		return readLengthPrefix(r, "decode.map.length16", 2)
	case marker == markerMap32:
		return readLengthPrefix(r, "decode.map.length32", 4)
	default:
		return 0, boltx.NewMalformedInput("decode.map.marker", fmt.Errorf("marker 0x%02x is not a map", marker))
	}
}

func isMapMarker(marker byte) bool {
	return (marker >= markerTinyMapBase && marker <= markerTinyMapBase+tinyMapMax) ||
		marker == markerMap8 || marker == markerMap16 || marker == markerMap32
}
