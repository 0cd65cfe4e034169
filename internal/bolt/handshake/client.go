package handshake

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/davebshow/asyncbolt/internal/boltx"
	"github.com/davebshow/asyncbolt/internal/logger"
)

const (
	clientReadTimeout  = 5 * time.Second
	clientWriteTimeout = 5 * time.Second
)

// ClientHandshake performs the client side of the Bolt handshake: propose versions, read the
// server's chosen version. If the server chooses 0 (no match) the connection is closed and
// HandshakeFailure is returned.
func ClientHandshake(conn net.Conn, proposed []uint32) (uint32, error) {
	if conn == nil {
		return 0, boltx.NewHandshakeFailure("client.init", errNilConn)
	}
	log := logger.Logger().With("phase", "handshake", "side", "client")

	if err := setWriteDeadline(conn, clientWriteTimeout); err != nil {
		return 0, err
	}
	if err := writeFull(conn, EncodeProposal(proposed)); err != nil {
		if isTimeoutErr(err) {
			return 0, boltx.NewTransportError("client.write_proposal", err)
		}
		return 0, boltx.NewHandshakeFailure("client.write_proposal", err)
	}

	if err := setReadDeadline(conn, clientReadTimeout); err != nil {
		return 0, err
	}
	var chosenBuf [4]byte
	if _, err := readFull(conn, chosenBuf[:]); err != nil {
		if isTimeoutErr(err) {
			return 0, boltx.NewTransportError("client.read_chosen", err)
		}
		return 0, boltx.NewHandshakeFailure("client.read_chosen", err)
	}
	chosen := binary.BigEndian.Uint32(chosenBuf[:])
	if chosen == 0 {
		_ = conn.Close()
		return 0, boltx.NewHandshakeFailure("client.negotiate", errNoSupportedVersion)
	}
	if chosen != SupportedVersion {
		_ = conn.Close()
		return 0, boltx.NewHandshakeFailure("client.negotiate", fmt.Errorf("server chose unsupported version %d", chosen))
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
