// Package handshake implements the Bolt wire preamble: magic bytes, proposed protocol
// versions, and the server's chosen version.
package handshake

import (
	"encoding/binary"
	"fmt"
)

// Magic is the 4-byte value that opens every Bolt connection, before any proposed versions.
var Magic = [4]byte{0x60, 0x60, 0xB0, 0x17}

// ProposalCount is the number of 4-byte version proposals the client sends.
const ProposalCount = 4

// SupportedVersion is the only protocol version this implementation speaks.
const SupportedVersion uint32 = 1

// PreambleSize is the total size in bytes of the client's handshake preamble: the magic plus
// four 4-byte version proposals.
const PreambleSize = len(Magic) + ProposalCount*4

// EncodeProposal renders the client's magic + proposed versions, most-preferred first, into a
// PreambleSize-byte buffer. Proposals beyond len(versions) (and always beyond ProposalCount)
// are zero-padded.
func EncodeProposal(versions []uint32) []byte {
	buf := make([]byte, PreambleSize)
	copy(buf, Magic[:])
	for i := 0; i < ProposalCount; i++ {
		if i < len(versions) {
			binary.BigEndian.PutUint32(buf[4+i*4:], versions[i])
		}
	}
	return buf
}

// DecodeProposal validates the magic and extracts the four proposed versions from a
// PreambleSize-byte buffer.
func DecodeProposal(buf []byte) ([ProposalCount]uint32, error) {
	var versions [ProposalCount]uint32
	if len(buf) != PreambleSize {
		return versions, fmt.Errorf("handshake: proposal must be %d bytes, got %d", PreambleSize, len(buf))
	}
	var magic [4]byte
	copy(magic[:], buf[:4])
	if magic != Magic {
		return versions, fmt.Errorf("handshake: bad magic % x", magic)
	}
	for i := 0; i < ProposalCount; i++ {
		versions[i] = binary.BigEndian.Uint32(buf[4+i*4:])
	}
	return versions, nil
}

// ChooseVersion returns the first of proposed that this implementation supports, or 0 if none
// match.
func ChooseVersion(proposed [ProposalCount]uint32) uint32 {
	for _, v := range proposed {
		if v == SupportedVersion {
			return SupportedVersion
		}
	}
	return 0
}
