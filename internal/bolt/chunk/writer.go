// Package chunk implements Bolt's chunked message transfer framing: splitting an outbound
// message into length-prefixed chunks and reassembling inbound chunks back into messages.
package chunk

import (
	"encoding/binary"
	"io"

	"github.com/davebshow/asyncbolt/internal/boltx"
)

// MaxChunkSize is the largest payload a single chunk may carry; the length prefix is a 16-bit
// unsigned integer.
const MaxChunkSize = 0xFFFF

// DefaultChunkSize is the chunk size used when a writer is not configured with one explicitly.
const DefaultChunkSize = 8192

// Writer fragments messages into chunks and writes them to an underlying transport. It is not
// concurrency-safe; a session uses one Writer from a single goroutine.
//
// Append/EndMessage write to the transport immediately. QueueMessage instead frames a complete
// message into chunk bytes held in an in-memory outbox without touching the transport at all;
// Flush, and any later Append/EndMessage call that writes a chunk, first writes the whole outbox
// out in one go. This split backs the protocol's distinction between pipeline(), which
// must enqueue without ever blocking on the socket, and run()/discard()/init()/reset(), which
// flush and may block until the peer drains.
type Writer struct {
	w         io.Writer
	chunkSize int
	pending   []byte
	outbox    []byte
}

// NewWriter creates a Writer with the given maximum chunk size. A size of zero selects
// DefaultChunkSize; sizes above MaxChunkSize are clamped.
func NewWriter(w io.Writer, chunkSize int) *Writer {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkSize > MaxChunkSize {
		chunkSize = MaxChunkSize
	}
	return &Writer{w: w, chunkSize: chunkSize}
}

// SetChunkSize updates the maximum chunk size used for subsequently flushed chunks.
func (w *Writer) SetChunkSize(size int) {
	if size > 0 && size <= MaxChunkSize {
		w.chunkSize = size
	}
}

// Append buffers data for the current message, flushing complete chunks of chunkSize as enough
// data accumulates. It never blocks past what the underlying writer's Write does.
func (w *Writer) Append(data []byte) error {
	w.pending = append(w.pending, data...)
	for len(w.pending) >= w.chunkSize {
		if err := w.flush(w.pending[:w.chunkSize]); err != nil {
			return err
		}
		w.pending = w.pending[w.chunkSize:]
	}
	return nil
}

// EndMessage flushes any remaining buffered bytes as a final chunk and writes the zero-length
// terminator that marks the end of the message.
func (w *Writer) EndMessage() error {
	if len(w.pending) > 0 {
		if err := w.flush(w.pending); err != nil {
			return err
		}
		w.pending = w.pending[:0]
	}
	if err := w.flush(nil); err != nil {
		return err
	}
	return nil
}

// QueueMessage frames a complete, already-encoded message into chunks and appends the framed
// bytes to an in-memory outbox, without performing any transport write. It cannot block and
// cannot fail. The queued bytes go out on the next Flush, or on the next Append/EndMessage call
// that writes a chunk, whichever comes first — either way before that call's own bytes.
func (w *Writer) QueueMessage(data []byte) {
	for len(data) >= w.chunkSize {
		w.queueChunk(data[:w.chunkSize])
		data = data[w.chunkSize:]
	}
	if len(data) > 0 {
		w.queueChunk(data)
	}
	w.queueChunk(nil)
}

func (w *Writer) queueChunk(payload []byte) {
	buf := getBuf(2 + len(payload))
	binary.BigEndian.PutUint16(buf[:2], uint16(len(payload)))
	copy(buf[2:], payload)
	w.outbox = append(w.outbox, buf...)
	putBuf(buf)
}

// Flush writes any bytes queued by QueueMessage to the transport in a single call and clears the
// outbox. It is a no-op, and never blocks, if nothing is queued.
func (w *Writer) Flush() error {
	return w.drainOutbox()
}

func (w *Writer) drainOutbox() error {
	if len(w.outbox) == 0 {
		return nil
	}
	buf := w.outbox
	w.outbox = nil
	if _, err := w.w.Write(buf); err != nil {
		return boltx.NewTransportError("chunk.writer.flush", err)
	}
	return nil
}

func (w *Writer) flush(payload []byte) error {
	if err := w.drainOutbox(); err != nil {
		return err
	}
	buf := getBuf(2 + len(payload))
	defer putBuf(buf)
	binary.BigEndian.PutUint16(buf[:2], uint16(len(payload)))
	copy(buf[2:], payload)
	if _, err := w.w.Write(buf); err != nil {
		return boltx.NewTransportError("chunk.writer.flush", err)
	}
	return nil
}
