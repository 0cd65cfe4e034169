package chunk

import (
	"bytes"
	"testing"
)

func TestWriterAppendEndMessage_SingleChunk(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out, 0)
	if err := w.Append([]byte("hello")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.EndMessage(); err != nil {
		t.Fatalf("end message: %v", err)
	}
	want := []byte{0x00, 0x05, 'h', 'e', 'l', 'l', 'o', 0x00, 0x00}
	if !bytes.Equal(out.Bytes(), want) {
		t.Fatalf("unexpected wire bytes: % x", out.Bytes())
	}
}

func TestWriterAppendEndMessage_SplitAcrossChunkSize(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out, 4)
	if err := w.Append([]byte("abcdefg")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.EndMessage(); err != nil {
		t.Fatalf("end message: %v", err)
	}
	want := []byte{
		0x00, 0x04, 'a', 'b', 'c', 'd',
		0x00, 0x03, 'e', 'f', 'g',
		0x00, 0x00,
	}
	if !bytes.Equal(out.Bytes(), want) {
		t.Fatalf("unexpected wire bytes: % x", out.Bytes())
	}
}

func TestParserRoundTrip_WholeBufferVsByteAtATime(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out, 4)
	if err := w.Append([]byte("abcdefg")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.EndMessage(); err != nil {
		t.Fatalf("end message: %v", err)
	}
	wire := out.Bytes()

	var whole []byte
	wholeDone := 0
	pWhole := NewParser(func(p []byte) { whole = append(whole, p...) }, func() { wholeDone++ })
	pWhole.Feed(wire)

	var piecewise []byte
	piecewiseDone := 0
	pByte := NewParser(func(p []byte) { piecewise = append(piecewise, p...) }, func() { piecewiseDone++ })
	for _, b := range wire {
		pByte.Feed([]byte{b})
	}

	if !bytes.Equal(whole, []byte("abcdefg")) {
		t.Fatalf("whole-buffer parse mismatch: %q", whole)
	}
	if !bytes.Equal(piecewise, []byte("abcdefg")) {
		t.Fatalf("byte-at-a-time parse mismatch: %q", piecewise)
	}
	if wholeDone != 1 || piecewiseDone != 1 {
		t.Fatalf("expected exactly one message-complete callback each, got %d and %d", wholeDone, piecewiseDone)
	}
}

func TestMessageReader_ReadMessage(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out, 4)
	if err := w.Append([]byte("first message")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.EndMessage(); err != nil {
		t.Fatalf("end message: %v", err)
	}
	if err := w.Append([]byte("second")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.EndMessage(); err != nil {
		t.Fatalf("end message: %v", err)
	}

	mr := NewMessageReader(&out, 3)
	m1, err := mr.ReadMessage()
	if err != nil {
		t.Fatalf("read message 1: %v", err)
	}
	if string(m1) != "first message" {
		t.Fatalf("unexpected message 1: %q", m1)
	}
	m2, err := mr.ReadMessage()
	if err != nil {
		t.Fatalf("read message 2: %v", err)
	}
	if string(m2) != "second" {
		t.Fatalf("unexpected message 2: %q", m2)
	}
}

func TestMessageReader_UnexpectedEOF(t *testing.T) {
	r := bytes.NewReader([]byte{0x00, 0x05, 'h', 'e'})
	mr := NewMessageReader(r, 4)
	if _, err := mr.ReadMessage(); err == nil {
		t.Fatalf("expected error for truncated message")
	}
}
