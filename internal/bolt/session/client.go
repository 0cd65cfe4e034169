package session

import (
	"bytes"
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/davebshow/asyncbolt/internal/bolt/chunk"
	"github.com/davebshow/asyncbolt/internal/bolt/handshake"
	"github.com/davebshow/asyncbolt/internal/bolt/message"
	"github.com/davebshow/asyncbolt/internal/bolt/packstream"
	"github.com/davebshow/asyncbolt/internal/boltx"
	"github.com/davebshow/asyncbolt/internal/logger"
)

// ClientResponse is one frame of a pipelined result: a RECORD carrying fields, or the
// terminal SUCCESS carrying summary metadata (EOF true, Fields nil).
type ClientResponse struct {
	Fields   []interface{}
	Metadata *packstream.Map
	EOF      bool
}

// opOutcome is the result of a single-frame request (INIT, RESET, ACK_FAILURE, or the RUN
// leg of a pipeline unit): either a metadata map from SUCCESS, or an error.
type opOutcome struct {
	metadata *packstream.Map
	err      error
}

// pipelineUnit is the shared state behind one run()/pipeline()/discard() invocation: its RUN
// leg's metadata (attached to every RECORD of the following leg) and the response channel the
// caller drains via ClientResponseStream.
type pipelineUnit struct {
	runMeta      atomic.Pointer[packstream.Map]
	responses    chan ClientResponse
	abandoned    atomic.Bool
	abandonOnce  sync.Once
	abandonCh    chan struct{}
	closeOnce    sync.Once
	terminalErr  atomic.Pointer[error]
}

func newPipelineUnit() *pipelineUnit {
	return &pipelineUnit{
		responses: make(chan ClientResponse, 4),
		abandonCh: make(chan struct{}),
	}
}

func (u *pipelineUnit) abandon() {
	u.abandoned.Store(true)
	u.abandonOnce.Do(func() { close(u.abandonCh) })
}

func (u *pipelineUnit) setErr(err error) {
	u.terminalErr.Store(&err)
}

func (u *pipelineUnit) err() error {
	if p := u.terminalErr.Load(); p != nil {
		return *p
	}
	return nil
}

func (u *pipelineUnit) closeResponses() {
	u.closeOnce.Do(func() { close(u.responses) })
}

// deliver sends resp to the consumer unless the unit has been abandoned, in which case it is
// silently dropped so an abandoned consumer never stalls the read loop.
func (u *pipelineUnit) deliver(resp ClientResponse) {
	if u.abandoned.Load() {
		return
	}
	select {
	case u.responses <- resp:
	case <-u.abandonCh:
	}
}

// fifoEntry is one outstanding expectation on the response wire, in the exact order the
// corresponding request was written.
type fifoEntry struct {
	// stream is true for a PULL_ALL/DISCARD_ALL leg, which may read zero or more RECORDs
	// before its terminal frame. false for INIT/RESET/ACK_FAILURE and a RUN leg, which read
	// exactly one frame.
	stream bool
	unit   *pipelineUnit  // set for RUN/PULL_ALL/DISCARD_ALL legs
	isRun  bool           // true if this is the RUN leg of unit (captures metadata, no consumer delivery)
	outcome chan opOutcome // set for standalone single-frame ops (INIT/RESET/ACK_FAILURE)
}

// requestFIFO is a small mutex-guarded queue. The Go rendition has two independent writers —
// the calling goroutine appending new expectations as it flushes requests, and the read-loop
// goroutine popping them as responses arrive — so unlike a single-threaded reference
// implementation this needs its own lock; the read loop remains the only place entries are
// interpreted or discarded.
type requestFIFO struct {
	mu    sync.Mutex
	items []*fifoEntry
	wake  chan struct{}
}

func newRequestFIFO() *requestFIFO {
	return &requestFIFO{wake: make(chan struct{}, 1)}
}

func (f *requestFIFO) push(e *fifoEntry) {
	f.mu.Lock()
	f.items = append(f.items, e)
	f.mu.Unlock()
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *requestFIFO) popFront() (*fifoEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.items) == 0 {
		return nil, false
	}
	e := f.items[0]
	f.items = f.items[1:]
	return e, true
}

// snapshotUnits returns every still-pending pipelineUnit, used by Reset to abandon in-flight
// consumers before the server has acknowledged them.
func (f *requestFIFO) snapshotUnits() []*pipelineUnit {
	f.mu.Lock()
	defer f.mu.Unlock()
	var units []*pipelineUnit
	for _, e := range f.items {
		if e.unit != nil {
			units = append(units, e.unit)
		}
	}
	return units
}

// ClientSession drives the Bolt v1 client state machine over a single connection: handshake,
// INIT, and pipelined RUN/PULL_ALL/DISCARD_ALL/RESET requests. One goroutine (started by
// NewClientSession) owns the transport's read side and the response FIFO; request methods may
// be called from any goroutine but must not be called concurrently with each other.
type ClientSession struct {
	conn net.Conn
	w    *chunk.Writer
	mr   *chunk.MessageReader
	log  *slog.Logger

	stateMu sync.Mutex
	state   ClientState

	fifo *requestFIFO

	closeOnce sync.Once
	closeCh   chan struct{}
	readErr   atomic.Pointer[error]
}

// Dial performs the Bolt handshake over conn and returns a ClientSession ready for Init.
func Dial(conn net.Conn, proposedVersions []uint32) (*ClientSession, error) {
	if conn == nil {
		return nil, boltx.NewHandshakeFailure("session.dial", fmt.Errorf("nil conn"))
	}
	if _, err := handshake.ClientHandshake(conn, proposedVersions); err != nil {
		return nil, err
	}
	s := &ClientSession{
		conn:    conn,
		w:       chunk.NewWriter(conn, chunk.DefaultChunkSize),
		mr:      chunk.NewMessageReader(conn, chunk.DefaultChunkSize),
		log:     logger.WithConn(logger.Logger(), "client", conn.RemoteAddr().String()),
		state:   ClientConnected,
		fifo:    newRequestFIFO(),
		closeCh: make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (s *ClientSession) State() ClientState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *ClientSession) setState(st ClientState) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

// Close closes the underlying connection and stops the read loop.
func (s *ClientSession) Close() error {
	s.closeOnce.Do(func() { close(s.closeCh) })
	s.setState(ClientClosed)
	return s.conn.Close()
}

func (s *ClientSession) writeMessage(m *message.Message) error {
	var buf bytes.Buffer
	if err := m.Encode(&buf); err != nil {
		return err
	}
	if err := s.w.Append(buf.Bytes()); err != nil {
		return err
	}
	return s.w.EndMessage()
}

// queueMessage encodes m and holds its framed chunk bytes in the writer's outbox without
// touching the transport. Unlike writeMessage it cannot block and cannot fail on I/O; the
// queued bytes go out with the next flush, whichever call triggers it.
func (s *ClientSession) queueMessage(m *message.Message) error {
	var buf bytes.Buffer
	if err := m.Encode(&buf); err != nil {
		return err
	}
	s.w.QueueMessage(buf.Bytes())
	return nil
}

// Init sends INIT and returns the server's metadata on SUCCESS, or an AuthFailure on FAILURE.
func (s *ClientSession) Init(ctx context.Context, clientName string, auth *packstream.Map) (*packstream.Map, error) {
	if s.State() != ClientConnected {
		return nil, boltx.NewProtocolViolation("client.init", fmt.Errorf("init called in state %s", s.State()))
	}
	outcome := make(chan opOutcome, 1)
	s.fifo.push(&fifoEntry{outcome: outcome})
	if err := s.writeMessage(message.Init(clientName, auth)); err != nil {
		return nil, err
	}
	select {
	case o := <-outcome:
		if o.err != nil {
			s.setState(ClientFailed)
			_ = s.Close()
			code, text := serverFailureFields(o.err)
			return nil, boltx.NewAuthFailure(code, text)
		}
		s.setState(ClientReady)
		return o.metadata, nil
	case <-ctx.Done():
		return nil, boltx.NewCancelled("client.init")
	case <-s.closeCh:
		return nil, s.transportErr()
	}
}

// Pipeline enqueues a RUN followed by a PULL_ALL without flushing and without waiting for any
// response: it returns as soon as the message bytes are framed into the writer's outbox, never
// performing a transport write of its own. The pending bytes go out ahead of whatever the next
// flushing call (Run, Discard, Reset, AckFailure) writes. Because nothing ever consumes the
// pipelined unit's response stream, the unit is abandoned immediately so the read loop never
// blocks trying to deliver a RECORD or SUCCESS frame to it.
func (s *ClientSession) Pipeline(statement string, parameters *packstream.Map) error {
	unit, err := s.doEnqueue(statement, parameters, false, false)
	if err != nil {
		return err
	}
	unit.abandon()
	return nil
}

// Run flushes a RUN+PULL_ALL pair and returns a lazy response sequence. If getEOF is false the
// terminal summary frame is consumed internally and not yielded by Next.
func (s *ClientSession) Run(ctx context.Context, statement string, parameters *packstream.Map, getEOF bool) (*ClientResponseStream, error) {
	unit, err := s.doEnqueue(statement, parameters, false, true)
	if err != nil {
		return nil, err
	}
	return &ClientResponseStream{session: s, unit: unit, yieldEOF: getEOF, closeCh: s.closeCh}, nil
}

// Discard flushes a RUN+DISCARD_ALL pair and returns a lazy response sequence that never
// yields RECORDs, only the terminal summary.
func (s *ClientSession) Discard(ctx context.Context, statement string, parameters *packstream.Map, getEOF bool) (*ClientResponseStream, error) {
	unit, err := s.doEnqueue(statement, parameters, true, true)
	if err != nil {
		return nil, err
	}
	return &ClientResponseStream{session: s, unit: unit, yieldEOF: getEOF, closeCh: s.closeCh}, nil
}

// doEnqueue pushes the RUN and PULL_ALL/DISCARD_ALL FIFO expectations for one pipeline unit and
// writes both legs. When flush is true each leg is written and flushed immediately (writeMessage);
// when false both legs are only framed into the writer's outbox (queueMessage), deferring the
// actual conn.Write to whatever call flushes next.
func (s *ClientSession) doEnqueue(statement string, parameters *packstream.Map, discard, flush bool) (*pipelineUnit, error) {
	unit := newPipelineUnit()
	s.fifo.push(&fifoEntry{unit: unit, isRun: true})
	s.fifo.push(&fifoEntry{unit: unit, stream: true})

	leg := message.PullAll()
	if discard {
		leg = message.DiscardAll()
	}

	write := s.queueMessage
	if flush {
		write = s.writeMessage
	}
	// Enter Streaming before writing, so a FAILURE the read loop handles while the writes are
	// still in progress leaves the session Failed rather than being overwritten.
	s.setState(ClientStreaming)
	if err := write(message.Run(statement, parameters)); err != nil {
		return nil, err
	}
	if err := write(leg); err != nil {
		return nil, err
	}
	return unit, nil
}

// Reset sends RESET, abandoning every currently pending response stream.
func (s *ClientSession) Reset(ctx context.Context) error {
	for _, u := range s.fifo.snapshotUnits() {
		u.abandon()
	}
	outcome := make(chan opOutcome, 1)
	s.fifo.push(&fifoEntry{outcome: outcome})
	if err := s.writeMessage(message.Reset()); err != nil {
		return err
	}
	select {
	case o := <-outcome:
		if o.err != nil {
			return o.err
		}
		s.setState(ClientReady)
		return nil
	case <-ctx.Done():
		return boltx.NewCancelled("client.reset")
	case <-s.closeCh:
		return s.transportErr()
	}
}

// AckFailure sends ACK_FAILURE, the soft recovery that preserves session variables.
func (s *ClientSession) AckFailure(ctx context.Context) error {
	outcome := make(chan opOutcome, 1)
	s.fifo.push(&fifoEntry{outcome: outcome})
	if err := s.writeMessage(message.AckFailure()); err != nil {
		return err
	}
	select {
	case o := <-outcome:
		if o.err != nil {
			return o.err
		}
		s.setState(ClientReady)
		return nil
	case <-ctx.Done():
		return boltx.NewCancelled("client.ack_failure")
	case <-s.closeCh:
		return s.transportErr()
	}
}

func (s *ClientSession) transportErr() error {
	if p := s.readErr.Load(); p != nil {
		return *p
	}
	return boltx.NewTransportError("client.session", io.ErrClosedPipe)
}

// readLoop is the single goroutine that owns the transport's read side and the response FIFO:
// it pops expectations in request order and matches them against whatever arrives on the wire,
// mirroring the teacher's readLoop/writeLoop split in internal/rtmp/conn.
func (s *ClientSession) readLoop() {
	defer func() {
		s.closeOnce.Do(func() { close(s.closeCh) })
	}()
	for {
		entry, ok := s.fifo.popFront()
		if !ok {
			select {
			case <-s.fifo.wake:
				continue
			case <-s.closeCh:
				return
			}
		}
		if err := s.processEntry(entry); err != nil {
			var e error = err
			s.readErr.Store(&e)
			s.setState(ClientClosed)
			s.drainRemaining(err)
			return
		}
	}
}

func (s *ClientSession) drainRemaining(cause error) {
	for {
		entry, ok := s.fifo.popFront()
		if !ok {
			return
		}
		if entry.outcome != nil {
			entry.outcome <- opOutcome{err: cause}
		}
		if entry.unit != nil && !entry.isRun {
			entry.unit.setErr(cause)
			entry.unit.closeResponses()
		}
	}
}

func (s *ClientSession) processEntry(e *fifoEntry) error {
	if !e.stream {
		msg, err := s.readOneMessage()
		if err != nil {
			if e.outcome != nil {
				e.outcome <- opOutcome{err: err}
			}
			return err
		}
		out := interpretSingle(msg)
		if e.isRun {
			if out.err != nil {
				e.unit.setErr(out.err)
				if isFailureErr(out.err) {
					s.setState(ClientFailed)
				}
			} else {
				e.unit.runMeta.Store(out.metadata)
			}
			return nil
		}
		if out.err != nil && isFailureErr(out.err) {
			s.setState(ClientFailed)
		}
		if e.outcome != nil {
			e.outcome <- out
		}
		return nil
	}

	for {
		msg, err := s.readOneMessage()
		if err != nil {
			e.unit.setErr(err)
			e.unit.closeResponses()
			return err
		}
		switch msg.Signature {
		case message.SigRecord:
			fields, ferr := msg.RecordFields()
			if ferr != nil {
				e.unit.setErr(ferr)
				e.unit.closeResponses()
				return nil
			}
			e.unit.deliver(ClientResponse{Fields: fields, Metadata: e.unit.runMeta.Load(), EOF: false})
		case message.SigSuccess:
			meta, _ := msg.Metadata()
			e.unit.deliver(ClientResponse{Fields: nil, Metadata: meta, EOF: true})
			e.unit.closeResponses()
			s.setState(ClientReady)
			return nil
		case message.SigFailure:
			code, text, _ := msg.FailureCode()
			e.unit.setErr(boltx.NewServerFailure(code, text))
			e.unit.closeResponses()
			s.setState(ClientFailed)
			return nil
		case message.SigIgnored:
			// Keep the RUN leg's FAILURE, if any, so the consumer sees its code and message.
			if e.unit.err() == nil {
				e.unit.setErr(boltx.NewIgnored("client.stream"))
			}
			e.unit.closeResponses()
			return nil
		default:
			err := boltx.NewProtocolViolation("client.stream", fmt.Errorf("unexpected signature %s", msg.Signature))
			e.unit.setErr(err)
			e.unit.closeResponses()
			return err
		}
	}
}

func (s *ClientSession) readOneMessage() (*message.Message, error) {
	raw, err := s.mr.ReadMessage()
	if err != nil {
		return nil, err
	}
	st, err := packstream.DecodeStructure(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return message.FromStructure(st)
}

func interpretSingle(msg *message.Message) opOutcome {
	switch msg.Signature {
	case message.SigSuccess:
		meta, _ := msg.Metadata()
		return opOutcome{metadata: meta}
	case message.SigFailure:
		code, text, _ := msg.FailureCode()
		return opOutcome{err: boltx.NewServerFailure(code, text)}
	case message.SigIgnored:
		return opOutcome{err: boltx.NewIgnored("client.single")}
	default:
		return opOutcome{err: boltx.NewProtocolViolation("client.single", fmt.Errorf("unexpected signature %s", msg.Signature))}
	}
}

func isFailureErr(err error) bool {
	var sf *boltx.ServerFailure
	return stdErrors.As(err, &sf)
}

func serverFailureFields(err error) (code, message string) {
	var sf *boltx.ServerFailure
	if stdErrors.As(err, &sf) {
		return sf.Code, sf.Message
	}
	return "", err.Error()
}

// ClientResponseStream is the lazy sequence returned by Run/Discard.
type ClientResponseStream struct {
	session  *ClientSession
	unit     *pipelineUnit
	yieldEOF bool
	closeCh  <-chan struct{}

	cur  ClientResponse
	err  error
	done bool
}

// Next advances to the next frame. It returns false at end of stream or on error/cancellation;
// callers must check Err afterward to distinguish the two.
func (s *ClientResponseStream) Next(ctx context.Context) bool {
	if s.done {
		return false
	}
	select {
	case resp, ok := <-s.unit.responses:
		if !ok {
			s.done = true
			s.err = s.unit.err()
			return false
		}
		if resp.EOF {
			s.done = true
			if !s.yieldEOF {
				return false
			}
		}
		s.cur = resp
		return true
	case <-ctx.Done():
		s.err = boltx.NewCancelled("client.stream")
		s.Close()
		return false
	case <-s.closeCh:
		s.err = s.session.transportErr()
		s.done = true
		return false
	}
}

// Response returns the frame most recently produced by Next.
func (s *ClientResponseStream) Response() ClientResponse { return s.cur }

// Err returns the terminal error, if Next returned false because of one.
func (s *ClientResponseStream) Err() error { return s.err }

// Close abandons the stream: the read loop will discard any remaining responses for it rather
// than stalling on delivery.
func (s *ClientResponseStream) Close() {
	s.unit.abandon()
	s.done = true
}
