package packstream

import (
	"fmt"
	"io"

	"github.com/davebshow/asyncbolt/internal/boltx"
)

// PackStream Structure markers. Tiny structures (0-15 fields) carry their field count in the
// marker's low nibble; wider structures use an explicit field-count marker.
const (
	markerTinyStructBase = 0xB0 // 0xB0-0xBF, fields = marker&0x0F
	tinyStructMax        = 0x0F

	markerStruct8  = 0xDC
	markerStruct16 = 0xDD
)

// EncodeStructure writes a PackStream Structure: marker, signature byte, then each field.
func EncodeStructure(w io.Writer, s *Structure) error {
	n := len(s.Fields)
	var err error
	switch {
	case n <= tinyStructMax:
		_, err = w.Write([]byte{byte(markerTinyStructBase | n)})
	case n <= 0xFF:
		err = writeLengthPrefixed(w, markerStruct8, uint32(n), 1)
	default:
		err = writeLengthPrefixed(w, markerStruct16, uint32(n), 2)
	}
	if err != nil {
		return boltx.NewTransportError("encode.structure.header.write", err)
	}
	if _, err := w.Write([]byte{s.Signature}); err != nil {
		return boltx.NewTransportError("encode.structure.signature.write", err)
	}
	for i, f := range s.Fields {
		if err := EncodeValue(w, f); err != nil {
			return fmt.Errorf("encode.structure.field %d: %w", i, err)
		}
	}
	return nil
}

// DecodeStructure reads a PackStream Structure from r.
func DecodeStructure(r io.Reader) (*Structure, error) {
	var m [1]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return nil, boltx.NewMalformedInput("decode.structure.marker.read", err)
	}
	return decodeStructureWithMarker(m[0], r, 0)
}

func decodeStructureWithMarker(marker byte, r io.Reader, depth int) (*Structure, error) {
	n, err := structFieldCount(marker, r)
	if err != nil {
		return nil, err
	}
	var sig [1]byte
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		return nil, boltx.NewMalformedInput("decode.structure.signature.read", err)
	}
	fields := make([]interface{}, 0, n)
	for i := 0; i < n; i++ {
		v, err := decodeValueAtDepth(r, depth+1)
		if err != nil {
			return nil, fmt.Errorf("decode.structure.field %d: %w", i, err)
		}
		fields = append(fields, v)
	}
	return &Structure{Signature: sig[0], Fields: fields}, nil
}

func structFieldCount(marker byte, r io.Reader) (int, error) {
	switch {
	case marker >= markerTinyStructBase && marker <= markerTinyStructBase+tinyStructMax:
		return int(marker & tinyStructMax), nil
	case marker == markerStruct8:
		return readLengthPrefix(r, "decode.structure.fieldcount8", 1)
	case marker == markerStruct16:
		return readLengthPrefix(r, "decode.structure.fieldcount16", 2)
	default:
		return 0, boltx.NewMalformedInput("decode.structure.marker", fmt.Errorf("marker 0x%02x is not a structure", marker))
	}
}

func isStructureMarker(marker byte) bool {
	return (marker >= markerTinyStructBase && marker <= markerTinyStructBase+tinyStructMax) ||
		marker == markerStruct8 || marker == markerStruct16
}
