package packstream

import (
	"bytes"
	"testing"
)

func mapOf(pairs ...interface{}) *Map {
	m := NewMap()
	for i := 0; i < len(pairs); i += 2 {
		m.Set(pairs[i].(string), pairs[i+1])
	}
	return m
}

func TestEncodeDecodeRoundTrip_Primitives(t *testing.T) {
	cases := []interface{}{
		nil,
		true,
		false,
		int64(0),
		int64(1),
		int64(-1),
		int64(127),
		int64(-16),
		int64(128),
		int64(-17),
		int64(32767),
		int64(-32768),
		int64(2147483647),
		int64(-2147483648),
		int64(1) << 40,
		float64(0),
		float64(1.5),
		float64(-3.25),
		"",
		"hello",
		[]byte{},
		[]byte{1, 2, 3},
		[]interface{}{},
		[]interface{}{int64(1), "x", false, nil},
		mapOf("a", int64(1), "b", "x"),
		mapOf("nested", mapOf("n", int64(42))),
		[]interface{}{[]interface{}{int64(1), int64(2)}, mapOf("k", "v")},
		&Structure{Signature: 0x4E, Fields: []interface{}{int64(1), []interface{}{"Person"}, mapOf("name", "Alice")}},
	}
	for i, v := range cases {
		b, err := Marshal(v)
		if err != nil {
			t.Fatalf("case %d marshal error: %v", i, err)
		}
		rv, err := Unmarshal(b)
		if err != nil {
			t.Fatalf("case %d unmarshal error: %v", i, err)
		}
		if !ValueEqual(v, rv) {
			t.Fatalf("case %d mismatch\norig=%#v\nrtnd=%#v", i, v, rv)
		}
	}
}

func TestTinyStringBoundary(t *testing.T) {
	s := string(make([]byte, 15))
	b, err := Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if b[0] != markerTinyStringBase|15 {
		t.Fatalf("expected tiny string marker, got 0x%02x", b[0])
	}
	s16 := string(make([]byte, 16))
	b2, err := Marshal(s16)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if b2[0] != markerString8 {
		t.Fatalf("expected string8 marker, got 0x%02x", b2[0])
	}
}

func TestEncodeAllDecodeAll_MessageFields(t *testing.T) {
	fields := []interface{}{
		"RETURN 1 AS num",
		mapOf(),
	}
	b, err := EncodeAll(fields...)
	if err != nil {
		t.Fatalf("encode all: %v", err)
	}
	r := bytes.NewReader(b)
	stmt, err := DecodeValue(r)
	if err != nil {
		t.Fatalf("decode statement: %v", err)
	}
	if stmt != "RETURN 1 AS num" {
		t.Fatalf("unexpected statement: %v", stmt)
	}
	params, err := DecodeValue(r)
	if err != nil {
		t.Fatalf("decode params: %v", err)
	}
	pm, ok := params.(*Map)
	if !ok || pm.Len() != 0 {
		t.Fatalf("expected empty map, got %#v", params)
	}
}

func TestDecodeValue_UnknownMarker(t *testing.T) {
	_, err := DecodeValue(bytes.NewReader([]byte{0xC4}))
	if err == nil {
		t.Fatalf("expected error for unknown marker")
	}
}

func TestDecodeValue_NestingTooDeep(t *testing.T) {
	var buf bytes.Buffer
	for i := 0; i <= MaxNestingDepth+1; i++ {
		buf.WriteByte(markerTinyListBase | 1)
	}
	buf.WriteByte(markerNull)
	_, err := DecodeValue(&buf)
	if err == nil {
		t.Fatalf("expected nesting-too-deep error")
	}
}

func TestDuplicateMapKeysLastWins(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(markerTinyMapBase | 2)
	if err := EncodeString(&buf, "k"); err != nil {
		t.Fatalf("encode key: %v", err)
	}
	if err := EncodeInteger(&buf, 1); err != nil {
		t.Fatalf("encode value: %v", err)
	}
	if err := EncodeString(&buf, "k"); err != nil {
		t.Fatalf("encode key: %v", err)
	}
	if err := EncodeInteger(&buf, 2); err != nil {
		t.Fatalf("encode value: %v", err)
	}
	v, err := DecodeValue(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	m, ok := v.(*Map)
	if !ok {
		t.Fatalf("expected map, got %#v", v)
	}
	if m.Len() != 1 {
		t.Fatalf("expected 1 entry after last-wins, got %d", m.Len())
	}
	val, _ := m.Get("k")
	if val != int64(2) {
		t.Fatalf("expected last value to win, got %v", val)
	}
}

func BenchmarkEncodeDecodeMap(b *testing.B) {
	m := mapOf("statement", "RETURN 1", "parameters", mapOf())
	for i := 0; i < b.N; i++ {
		buf, err := Marshal(m)
		if err != nil {
			b.Fatalf("marshal: %v", err)
		}
		if _, err := Unmarshal(buf); err != nil {
			b.Fatalf("unmarshal: %v", err)
		}
	}
}
