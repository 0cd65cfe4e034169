package message

import (
	"bytes"
	"testing"

	"github.com/davebshow/asyncbolt/internal/bolt/packstream"
)

func TestInitRoundTrip(t *testing.T) {
	auth := packstream.NewMap()
	auth.Set("scheme", "basic")
	auth.Set("principal", "neo4j")
	auth.Set("credentials", "password")
	msg := Init("AsyncBolt/1.0", auth)

	var buf bytes.Buffer
	if err := msg.Encode(&buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	s, err := packstream.DecodeStructure(&buf)
	if err != nil {
		t.Fatalf("decode structure: %v", err)
	}
	decoded, err := FromStructure(s)
	if err != nil {
		t.Fatalf("from structure: %v", err)
	}
	if decoded.Signature != SigInit {
		t.Fatalf("unexpected signature: %v", decoded.Signature)
	}
	name, gotAuth, err := decoded.InitFields()
	if err != nil {
		t.Fatalf("init fields: %v", err)
	}
	if name != "AsyncBolt/1.0" {
		t.Fatalf("unexpected client name: %q", name)
	}
	if !gotAuth.Equal(auth) {
		t.Fatalf("auth mismatch")
	}
}

func TestRunRoundTrip(t *testing.T) {
	params := packstream.NewMap()
	params.Set("x", int64(1))
	msg := Run("RETURN $x", params)

	var buf bytes.Buffer
	if err := msg.Encode(&buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	s, err := packstream.DecodeStructure(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	decoded, err := FromStructure(s)
	if err != nil {
		t.Fatalf("from structure: %v", err)
	}
	stmt, gotParams, err := decoded.RunFields()
	if err != nil {
		t.Fatalf("run fields: %v", err)
	}
	if stmt != "RETURN $x" {
		t.Fatalf("unexpected statement: %q", stmt)
	}
	if !gotParams.Equal(params) {
		t.Fatalf("params mismatch")
	}
}

func TestZeroArityMessages(t *testing.T) {
	for _, m := range []*Message{AckFailure(), Reset(), DiscardAll(), PullAll(), Ignored()} {
		var buf bytes.Buffer
		if err := m.Encode(&buf); err != nil {
			t.Fatalf("encode %s: %v", m.Signature, err)
		}
		s, err := packstream.DecodeStructure(&buf)
		if err != nil {
			t.Fatalf("decode %s: %v", m.Signature, err)
		}
		decoded, err := FromStructure(s)
		if err != nil {
			t.Fatalf("from structure %s: %v", m.Signature, err)
		}
		if decoded.Signature != m.Signature {
			t.Fatalf("signature mismatch: want %s got %s", m.Signature, decoded.Signature)
		}
	}
}

func TestFailureCode(t *testing.T) {
	msg := Failure("Neo.ClientError.Statement.SyntaxError", "bad query")
	code, text, err := msg.FailureCode()
	if err != nil {
		t.Fatalf("failure code: %v", err)
	}
	if code != "Neo.ClientError.Statement.SyntaxError" || text != "bad query" {
		t.Fatalf("unexpected code/message: %s / %s", code, text)
	}
}

func TestRecordFields(t *testing.T) {
	msg := Record([]interface{}{int64(1), "a"})
	fields, err := msg.RecordFields()
	if err != nil {
		t.Fatalf("record fields: %v", err)
	}
	if len(fields) != 2 || fields[0] != int64(1) || fields[1] != "a" {
		t.Fatalf("unexpected fields: %#v", fields)
	}
}

func TestFromStructure_UnknownSignature(t *testing.T) {
	_, err := FromStructure(&packstream.Structure{Signature: 0xAA})
	if err == nil {
		t.Fatalf("expected error for unknown signature")
	}
}

func TestFromStructure_WrongArity(t *testing.T) {
	_, err := FromStructure(&packstream.Structure{Signature: byte(SigReset), Fields: []interface{}{int64(1)}})
	if err == nil {
		t.Fatalf("expected error for wrong arity")
	}
}
