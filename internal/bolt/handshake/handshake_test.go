package handshake

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/davebshow/asyncbolt/internal/boltx"
)

func TestHandshake_Valid(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	type result struct {
		version uint32
		err     error
	}
	serverCh := make(chan result, 1)
	go func() {
		v, err := ServerHandshake(serverConn)
		serverCh <- result{v, err}
	}()

	got, err := ClientHandshake(clientConn, []uint32{1})
	if err != nil {
		t.Fatalf("client handshake failed: %v", err)
	}
	if got != SupportedVersion {
		t.Fatalf("unexpected chosen version: %d", got)
	}

	select {
	case r := <-serverCh:
		if r.err != nil {
			t.Fatalf("server failed: %v", r.err)
		}
		if r.version != SupportedVersion {
			t.Fatalf("server chose unexpected version: %d", r.version)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for server completion")
	}
}

func TestHandshake_NoSupportedVersion(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	go func() { _, _ = ServerHandshake(serverConn) }()

	_, err := ClientHandshake(clientConn, []uint32{9, 10, 11})
	if err == nil || !boltx.IsProtocolError(err) {
		t.Fatalf("expected protocol error, got %v", err)
	}
}

func TestClientHandshake_NilConn(t *testing.T) {
	if _, err := ClientHandshake(nil, []uint32{1}); err == nil {
		t.Fatalf("expected error for nil conn")
	}
}

func TestServerHandshake_NilConn(t *testing.T) {
	if _, err := ServerHandshake(nil); err == nil {
		t.Fatalf("expected error for nil conn")
	}
}

func TestServerHandshake_BadMagic(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	errCh := make(chan error, 1)
	go func() {
		_, err := ServerHandshake(serverConn)
		errCh <- err
	}()

	bad := make([]byte, PreambleSize)
	copy(bad, []byte{0x00, 0x00, 0x00, 0x00})
	if _, err := clientConn.Write(bad); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case err := <-errCh:
		if err == nil || !boltx.IsProtocolError(err) {
			t.Fatalf("expected protocol error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for server")
	}
}

// Force a write failure from the client side.
type failingWriteConn struct{ net.Conn }

func (f *failingWriteConn) Write(p []byte) (int, error) { return 0, io.ErrClosedPipe }

func TestClientHandshake_WriteFailure(t *testing.T) {
	_, clientConn := net.Pipe()
	defer clientConn.Close()
	fw := &failingWriteConn{clientConn}
	if _, err := ClientHandshake(fw, []uint32{1}); err == nil {
		t.Fatalf("expected write failure error")
	}
}

func TestEncodeDecodeProposal_RoundTrip(t *testing.T) {
	raw := EncodeProposal([]uint32{1, 0, 0, 0})
	if len(raw) != PreambleSize {
		t.Fatalf("unexpected preamble size: %d", len(raw))
	}
	decoded, err := DecodeProposal(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded[0] != 1 {
		t.Fatalf("unexpected first proposal: %d", decoded[0])
	}
	if ChooseVersion(decoded) != SupportedVersion {
		t.Fatalf("expected supported version to be chosen")
	}
}

func TestDecodeProposal_WrongLength(t *testing.T) {
	if _, err := DecodeProposal([]byte{0x01, 0x02}); err == nil {
		t.Fatalf("expected error for short buffer")
	}
}

func TestChooseVersion_NoMatch(t *testing.T) {
	if v := ChooseVersion([ProposalCount]uint32{2, 3, 4, 5}); v != 0 {
		t.Fatalf("expected 0, got %d", v)
	}
}
