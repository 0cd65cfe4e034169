package boltx

import (
	"context"
	stdErrors "errors"
	"fmt"
	"testing"
)

type fakeTimeoutErr struct{}

func (fakeTimeoutErr) Error() string { return "fake timeout" }
func (fakeTimeoutErr) Timeout() bool { return true }

func TestIsProtocolErrorClassification(t *testing.T) {
	root := stdErrors.New("root")
	wrapped := fmt.Errorf("adding context: %w", root)
	hs := NewHandshakeFailure("server.read", wrapped)
	if !IsProtocolError(hs) {
		t.Fatalf("expected IsProtocolError=true for handshake failure")
	}
	if !stdErrors.Is(hs, root) {
		t.Fatalf("expected errors.Is to find root cause")
	}
	var he *HandshakeFailure
	if !stdErrors.As(hs, &he) {
		t.Fatalf("expected errors.As to *HandshakeFailure")
	}
	if he.Op != "server.read" {
		t.Fatalf("unexpected op: %s", he.Op)
	}

	mi := NewMalformedInput("decode.marker", nil)
	if !IsProtocolError(mi) {
		t.Fatalf("expected malformed input classified as protocol")
	}
	nd := NewNestingTooDeep("decode.value", 129, 128)
	if !IsProtocolError(nd) {
		t.Fatalf("expected nesting-too-deep classified as protocol")
	}
	pv := NewProtocolViolation("state.transition", stdErrors.New("invalid state"))
	if !IsProtocolError(pv) {
		t.Fatalf("expected protocol violation classified")
	}
	sf := NewServerFailure("Neo.ClientError.Statement.SyntaxError", "bad query")
	if !IsProtocolError(sf) {
		t.Fatalf("expected server failure classified as protocol")
	}
	ig := NewIgnored("run")
	if !IsProtocolError(ig) {
		t.Fatalf("expected ignored classified as protocol")
	}
	af := NewAuthFailure("Neo.ClientError.Security.Unauthorized", "bad credentials")
	if !IsProtocolError(af) {
		t.Fatalf("expected auth failure classified as protocol")
	}
	ca := NewCancelled("pull_all")
	if !IsProtocolError(ca) {
		t.Fatalf("expected cancelled classified as protocol")
	}
}

func TestTransportErrorNotProtocol(t *testing.T) {
	te := NewTransportError("dial", stdErrors.New("connection refused"))
	if IsProtocolError(te) {
		t.Fatalf("transport error must not classify as protocol error")
	}
	var tr *TransportError
	if !stdErrors.As(te, &tr) {
		t.Fatalf("expected errors.As to *TransportError")
	}
}

func TestIsTimeout(t *testing.T) {
	if !IsTimeout(fakeTimeoutErr{}) {
		t.Fatalf("expected Timeout()=true error recognized")
	}
	if !IsTimeout(context.DeadlineExceeded) {
		t.Fatalf("expected context deadline recognized")
	}
	if IsTimeout(stdErrors.New("plain")) {
		t.Fatalf("plain error must not be classified as timeout")
	}
}

func TestNestingTooDeepMessage(t *testing.T) {
	err := NewNestingTooDeep("decode.list", 130, 128)
	want := "nesting too deep: decode.list (depth 130 exceeds limit 128)"
	if err.Error() != want {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}
