// Package packstream implements the binary serialization format used by the Bolt wire
// protocol. Values are a tagged sum of Null, Boolean, Integer, Float, String, Bytes, List, Map,
// and Structure; each is identified on the wire by a one-byte marker, with short collections
// folding their length into the marker itself.
//
// Decoded values use plain Go types: nil, bool, int64, float64, string, []byte, []interface{},
// *Map, and *Structure. Encoding dispatches dynamically on these same types.
package packstream

import (
	"bytes"
	"fmt"
	"io"

	"github.com/davebshow/asyncbolt/internal/boltx"
)

// MaxNestingDepth bounds recursion while decoding nested List/Map/Structure values, guarding
// against malicious or corrupt input driving the decoder into a stack overflow.
const MaxNestingDepth = 128

// EncodeValue encodes a single PackStream value to w using dynamic dispatch based on the Go
// type of v. Supported types: nil, bool, int64, float64, string, []byte, []interface{}, *Map,
// *Structure.
func EncodeValue(w io.Writer, v interface{}) error {
	switch vv := v.(type) {
	case nil:
		return EncodeNull(w)
	case bool:
		return EncodeBoolean(w, vv)
	case int64:
		return EncodeInteger(w, vv)
	case int:
		return EncodeInteger(w, int64(vv))
	case float64:
		return EncodeFloat(w, vv)
	case string:
		return EncodeString(w, vv)
	case []byte:
		return EncodeBytes(w, vv)
	case []interface{}:
		return EncodeList(w, vv)
	case *Map:
		return EncodeMap(w, vv)
	case *Structure:
		return EncodeStructure(w, vv)
	default:
		return boltx.NewMalformedInput("encode.value", fmt.Errorf("unsupported packstream value type %T", v))
	}
}

// EncodeAll encodes a sequence of values in order and returns the concatenated bytes. Bolt
// message fields are encoded this way: each field is its own top-level PackStream value.
func EncodeAll(values ...interface{}) ([]byte, error) {
	var buf bytes.Buffer
	for i, v := range values {
		if err := EncodeValue(&buf, v); err != nil {
			return nil, fmt.Errorf("encode.all value %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// DecodeValue decodes a single PackStream value from r.
func DecodeValue(r io.Reader) (interface{}, error) {
	return decodeValueAtDepth(r, 0)
}

func decodeValueAtDepth(r io.Reader, depth int) (interface{}, error) {
	if depth > MaxNestingDepth {
		return nil, boltx.NewNestingTooDeep("decode.value", depth, MaxNestingDepth)
	}
	var m [1]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return nil, boltx.NewMalformedInput("decode.value.marker.read", err)
	}
	marker := m[0]

	switch {
	case marker == markerNull:
		return nil, nil
	case marker == markerFalse || marker == markerTrue:
		return marker == markerTrue, nil
	case marker == markerFloat64:
		return decodeFloatWithMarker(r)
	case isIntegerMarker(marker):
		return decodeIntegerWithMarker(marker, r)
	case isBytesMarker(marker):
		return decodeBytesWithMarker(marker, r)
	case isStringMarker(marker):
		return decodeStringWithMarker(marker, r)
	case isListMarker(marker):
		return decodeListWithMarker(marker, r, depth)
	case isMapMarker(marker):
		return decodeMapWithMarker(marker, r, depth)
	case isStructureMarker(marker):
		return decodeStructureWithMarker(marker, r, depth)
	default:
		return nil, boltx.NewMalformedInput("decode.value.marker", fmt.Errorf("unknown marker 0x%02x", marker))
	}
}

func decodeFloatWithMarker(r io.Reader) (float64, error) {
	// The marker byte was already consumed by decodeValueAtDepth; reconstruct a reader that
	// includes it so DecodeFloat's own marker check still runs.
	return DecodeFloat(io.MultiReader(bytes.NewReader([]byte{markerFloat64}), r))
}

// Marshal encodes a single value and returns the produced bytes.
func Marshal(v interface{}) ([]byte, error) { return EncodeAll(v) }

// Unmarshal decodes a single value from data. Trailing bytes, if any, are ignored.
func Unmarshal(data []byte) (interface{}, error) {
	return DecodeValue(bytes.NewReader(data))
}
