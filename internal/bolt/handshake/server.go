package handshake

import (
	"encoding/binary"
	"net"
	"time"

	"github.com/davebshow/asyncbolt/internal/boltx"
	"github.com/davebshow/asyncbolt/internal/logger"
)

const (
	serverReadTimeout  = 5 * time.Second
	serverWriteTimeout = 5 * time.Second
)

// ServerHandshake performs the server side of the Bolt handshake: read the client's magic and
// proposed versions, choose a version, and reply. If no proposal matches, it replies with zero
// and closes the connection, returning HandshakeFailure.
func ServerHandshake(conn net.Conn) (uint32, error) {
	if conn == nil {
		return 0, boltx.NewHandshakeFailure("server.init", errNilConn)
	}
	log := logger.Logger().With("phase", "handshake", "side", "server")

	if err := setReadDeadline(conn, serverReadTimeout); err != nil {
		return 0, err
	}
	raw := make([]byte, PreambleSize)
	if _, err := readFull(conn, raw); err != nil {
		if isTimeoutErr(err) {
			return 0, boltx.NewTransportError("server.read_proposal", err)
		}
		return 0, boltx.NewHandshakeFailure("server.read_proposal", err)
	}
	proposed, err := DecodeProposal(raw)
	if err != nil {
		return 0, boltx.NewHandshakeFailure("server.decode_proposal", err)
	}

	chosen := ChooseVersion(proposed)
	var reply [4]byte
	binary.BigEndian.PutUint32(reply[:], chosen)

	if err := setWriteDeadline(conn, serverWriteTimeout); err != nil {
		return 0, err
	}
	if err := writeFull(conn, reply[:]); err != nil {
		if isTimeoutErr(err) {
			return 0, boltx.NewTransportError("server.write_chosen", err)
		}
		return 0, boltx.NewHandshakeFailure("server.write_chosen", err)
	}
	if chosen == 0 {
		_ = conn.Close()
		return 0, boltx.NewHandshakeFailure("server.negotiate", errNoSupportedVersion)
	}

	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		log.Warn("failed to clear read deadline", "error", err)
	}
	if err := conn.SetWriteDeadline(time.Time{}); err != nil {
		log.Warn("failed to clear write deadline", "error", err)
	}

	log.Info("handshake completed", "version", chosen)
	return chosen, nil
}
