package chunk

import (
	"io"

	"github.com/davebshow/asyncbolt/internal/boltx"
)

// ReadBuffer accumulates chunk payloads handed to it by a Parser and exposes a byte-stream
// view over them that tracks message boundaries. It is the Parser's natural consumer: wire it
// as the onChunk/onMessageComplete callbacks and then drain assembled messages.
type ReadBuffer struct {
	data  []byte
	ready [][]byte
}

// NewReadBuffer returns an empty ReadBuffer.
func NewReadBuffer() *ReadBuffer { return &ReadBuffer{} }

// OnChunk implements the Parser onChunk callback: it copies and appends payload.
func (b *ReadBuffer) OnChunk(payload []byte) {
	b.data = append(b.data, payload...)
}

// OnMessageComplete implements the Parser onMessageComplete callback. It closes off the current
// message and queues it, so several messages completed by one Feed stay separate.
func (b *ReadBuffer) OnMessageComplete() {
	b.ready = append(b.ready, b.data)
	b.data = nil
}

// Read returns exactly n bytes of the message still being assembled, consuming them. It returns
// false if fewer than n bytes are currently buffered.
func (b *ReadBuffer) Read(n int) ([]byte, bool) {
	if len(b.data) < n {
		return nil, false
	}
	out := b.data[:n]
	b.data = b.data[n:]
	return out, true
}

// TakeMessage returns the oldest completed message not yet taken, in arrival order. The second
// return value is false if no completed message is waiting.
func (b *ReadBuffer) TakeMessage() ([]byte, bool) {
	if len(b.ready) == 0 {
		return nil, false
	}
	out := b.ready[0]
	b.ready = b.ready[1:]
	return out, true
}

// MessageReader reads whole Bolt messages from a transport by feeding its bytes through a
// Parser into a ReadBuffer. ReadMessage blocks until a complete message has arrived.
type MessageReader struct {
	r      io.Reader
	buf    *ReadBuffer
	parser *Parser
	scratch []byte
}

// NewMessageReader wraps r, reading up to scratchSize bytes per underlying Read call. A
// scratchSize of zero selects DefaultChunkSize.
func NewMessageReader(r io.Reader, scratchSize int) *MessageReader {
	if scratchSize <= 0 {
		scratchSize = DefaultChunkSize
	}
	buf := NewReadBuffer()
	mr := &MessageReader{
		r:       r,
		buf:     buf,
		scratch: make([]byte, scratchSize),
	}
	mr.parser = NewParser(buf.OnChunk, buf.OnMessageComplete)
	return mr
}

// ReadMessage blocks until one complete message has been assembled from the transport and
// returns its bytes.
func (mr *MessageReader) ReadMessage() ([]byte, error) {
	for {
		if msg, ok := mr.buf.TakeMessage(); ok {
			return msg, nil
		}
		n, err := mr.r.Read(mr.scratch)
		if n > 0 {
			mr.parser.Feed(mr.scratch[:n])
			if msg, ok := mr.buf.TakeMessage(); ok {
				return msg, nil
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil, boltx.NewTransportError("chunk.reader.read", io.ErrUnexpectedEOF)
			}
			return nil, boltx.NewTransportError("chunk.reader.read", err)
		}
	}
}
