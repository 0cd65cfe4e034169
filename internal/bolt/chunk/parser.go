package chunk

import (
	"encoding/binary"
)

// parserState names the stages of the chunk-framing byte-driven state machine.
type parserState int

const (
	stateReadingLength parserState = iota
	stateReadingPayload
)

// Parser is a byte-driven chunk assembler. It holds no buffer beyond the in-flight 2-byte
// length prefix and the current chunk's remaining payload, so it is fully resumable across
// arbitrarily sized Feed calls — feeding one byte at a time produces the same callback
// sequence as feeding the whole buffer at once.
type Parser struct {
	state   parserState
	lenBuf  [2]byte
	lenPos  int
	payload []byte
	have    int

	onChunk           func(payload []byte)
	onMessageComplete func()
}

// NewParser constructs a Parser that invokes onChunk for each non-empty chunk payload and
// onMessageComplete when the zero-length terminator arrives. Both callbacks are required.
// The payload slice passed to onChunk is reused after the callback returns; callbacks that
// need to retain it must copy.
func NewParser(onChunk func(payload []byte), onMessageComplete func()) *Parser {
	return &Parser{onChunk: onChunk, onMessageComplete: onMessageComplete}
}

// Feed advances the state machine with newly arrived transport bytes.
func (p *Parser) Feed(data []byte) {
	for len(data) > 0 {
		switch p.state {
		case stateReadingLength:
			n := copy(p.lenBuf[p.lenPos:], data)
			p.lenPos += n
			data = data[n:]
			if p.lenPos < 2 {
				return
			}
			p.lenPos = 0
			length := int(binary.BigEndian.Uint16(p.lenBuf[:]))
			if length == 0 {
				p.onMessageComplete()
				continue
			}
			p.payload = getBuf(length)
			p.have = 0
			p.state = stateReadingPayload
		case stateReadingPayload:
			n := copy(p.payload[p.have:], data)
			p.have += n
			data = data[n:]
			if p.have < len(p.payload) {
				return
			}
			p.onChunk(p.payload)
			putBuf(p.payload)
			p.payload = nil
			p.state = stateReadingLength
		}
	}
}
