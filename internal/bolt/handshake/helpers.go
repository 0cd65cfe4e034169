package handshake

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/davebshow/asyncbolt/internal/boltx"
)

var (
	errNilConn            = errors.New("nil conn")
	errNoSupportedVersion = errors.New("no proposed version is supported")
)

// setReadDeadline sets conn's read deadline, wrapping any failure as a HandshakeFailure.
func setReadDeadline(c net.Conn, d time.Duration) error {
	if err := c.SetReadDeadline(time.Now().Add(d)); err != nil {
		return boltx.NewHandshakeFailure("set read deadline", err)
	}
	return nil
}

// setWriteDeadline sets conn's write deadline, wrapping any failure as a HandshakeFailure.
func setWriteDeadline(c net.Conn, d time.Duration) error {
	if err := c.SetWriteDeadline(time.Now().Add(d)); err != nil {
		return boltx.NewHandshakeFailure("set write deadline", err)
	}
	return nil
}

// writeFull ensures the entire buffer is written.
func writeFull(w io.Writer, b []byte) error {
	off := 0
	for off < len(b) {
		n, err := w.Write(b[off:])
		if err != nil {
			return err
		}
		off += n
	}
	return nil
}

// readFull reads exactly len(b) bytes into b.
func readFull(r io.Reader, b []byte) (int, error) {
	return io.ReadFull(r, b)
}

// isTimeoutErr performs a lightweight timeout classification.
func isTimeoutErr(err error) bool {
	if err == nil {
		return false
	}
	type to interface{ Timeout() bool }
	if ne, ok := err.(to); ok && ne.Timeout() {
		return true
	}
	return false
}
