package session

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/davebshow/asyncbolt/internal/bolt/chunk"
	"github.com/davebshow/asyncbolt/internal/bolt/handshake"
	"github.com/davebshow/asyncbolt/internal/bolt/message"
	"github.com/davebshow/asyncbolt/internal/bolt/packstream"
	"github.com/davebshow/asyncbolt/internal/boltx"
	"github.com/davebshow/asyncbolt/internal/logger"
)

// RunResult is what the application's RunFunc hands back to the session: the column names for
// the SUCCESS reply to RUN, a channel of record field-lists, and a Summary that blocks until
// the stream is exhausted (or errors) and yields the PULL_ALL/DISCARD_ALL terminal metadata.
type RunResult struct {
	Fields  []interface{}
	Records <-chan []interface{}
	Summary func() (*packstream.Map, error)
}

// RunFunc executes a statement. A non-nil error here is reported as FAILURE in response to RUN
// itself (e.g. a syntax error detected before any record is produced); an error later from
// RunResult.Summary is reported as FAILURE in response to the following PULL_ALL/DISCARD_ALL.
type RunFunc func(ctx context.Context, statement string, parameters *packstream.Map) (RunResult, error)

// VerifyAuthFunc authorizes an INIT request's auth token. The default accepts everything.
type VerifyAuthFunc func(auth *packstream.Map) bool

// ServerName is reported as the "server" metadata field in INIT's SUCCESS reply.
const ServerName = "AsyncBolt/1.0"

// ServerSession drives the Bolt v1 server state machine over a single accepted connection. One
// goroutine runs Serve; it owns the connection exclusively, the way the teacher's per-connection
// readLoop goroutine owns its net.Conn.
type ServerSession struct {
	conn net.Conn
	w    *chunk.Writer
	mr   *chunk.MessageReader
	log  *slog.Logger

	state ServerState
	run   RunFunc
	auth  VerifyAuthFunc

	pending *RunResult
}

// NewServerSession performs the Bolt handshake on conn and returns a session ready to Serve.
func NewServerSession(conn net.Conn, run RunFunc, auth VerifyAuthFunc) (*ServerSession, error) {
	if conn == nil {
		return nil, boltx.NewHandshakeFailure("session.new_server", fmt.Errorf("nil conn"))
	}
	if _, err := handshake.ServerHandshake(conn); err != nil {
		return nil, err
	}
	if auth == nil {
		auth = func(*packstream.Map) bool { return true }
	}
	return &ServerSession{
		conn:  conn,
		w:     chunk.NewWriter(conn, chunk.DefaultChunkSize),
		mr:    chunk.NewMessageReader(conn, chunk.DefaultChunkSize),
		log:   logger.WithConn(logger.Logger(), "server", conn.RemoteAddr().String()),
		state: ServerAwaitingInit,
		run:   run,
		auth:  auth,
	}, nil
}

// State returns the session's current lifecycle state.
func (s *ServerSession) State() ServerState { return s.state }

// Serve runs the request/response loop until the connection closes, a read or decode fails, a
// protocol violation occurs, or INIT is rejected. It always returns the error that ended the
// loop; a client closing the connection surfaces as a TransportError.
func (s *ServerSession) Serve(ctx context.Context) error {
	for {
		raw, err := s.mr.ReadMessage()
		if err != nil {
			s.state = ServerClosed
			return err
		}
		msg, err := s.decode(raw)
		if err != nil {
			s.log.Warn("malformed message", "error", err)
			s.state = ServerClosed
			return err
		}
		if s.state == ServerAwaitingInit {
			if err := s.handleInit(msg); err != nil {
				return err
			}
			continue
		}
		if err := s.dispatch(ctx, msg); err != nil {
			return err
		}
	}
}

func (s *ServerSession) decode(raw []byte) (*message.Message, error) {
	st, err := packstream.DecodeStructure(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return message.FromStructure(st)
}

func (s *ServerSession) writeMessage(m *message.Message) error {
	var buf bytes.Buffer
	if err := m.Encode(&buf); err != nil {
		return err
	}
	if err := s.w.Append(buf.Bytes()); err != nil {
		return err
	}
	return s.w.EndMessage()
}

func (s *ServerSession) handleInit(msg *message.Message) error {
	if msg.Signature != message.SigInit {
		return s.protocolError("expected INIT")
	}
	_, auth, err := msg.InitFields()
	if err != nil {
		return s.protocolError(err.Error())
	}
	if !s.auth(auth) {
		if werr := s.writeMessage(message.Failure("Neo.ClientError.Security.Unauthorized", "authentication failed")); werr != nil {
			return werr
		}
		s.state = ServerClosed
		_ = s.conn.Close()
		return boltx.NewAuthFailure("Neo.ClientError.Security.Unauthorized", "authentication failed")
	}
	meta := packstream.NewMap()
	meta.Set("server", ServerName)
	if err := s.writeMessage(message.Success(meta)); err != nil {
		return err
	}
	s.state = ServerReady
	return nil
}

func (s *ServerSession) dispatch(ctx context.Context, msg *message.Message) error {
	switch msg.Signature {
	case message.SigRun:
		return s.handleRun(ctx, msg)
	case message.SigPullAll:
		return s.handlePullOrDiscard(msg, true)
	case message.SigDiscardAll:
		return s.handlePullOrDiscard(msg, false)
	case message.SigReset:
		s.pending = nil
		s.state = ServerReady
		return s.writeMessage(message.Success(packstream.NewMap()))
	case message.SigAckFailure:
		if s.state != ServerFailed {
			return s.writeMessage(message.Ignored())
		}
		s.state = ServerReady
		return s.writeMessage(message.Success(packstream.NewMap()))
	default:
		return s.protocolError(fmt.Sprintf("unexpected signature %s", msg.Signature))
	}
}

func (s *ServerSession) handleRun(ctx context.Context, msg *message.Message) error {
	if s.state == ServerFailed {
		return s.writeMessage(message.Ignored())
	}
	stmt, params, err := msg.RunFields()
	if err != nil {
		return s.protocolError(err.Error())
	}
	if s.run == nil {
		return s.protocolError("no run handler installed")
	}
	result, err := s.run(ctx, stmt, params)
	if err != nil {
		return s.fail(err)
	}
	s.pending = &result
	meta := packstream.NewMap()
	meta.Set("fields", result.Fields)
	meta.Set("result_available_after", int64(0))
	if err := s.writeMessage(message.Success(meta)); err != nil {
		return err
	}
	s.state = ServerStreaming
	return nil
}

func (s *ServerSession) handlePullOrDiscard(msg *message.Message, emitRecords bool) error {
	if s.state == ServerFailed {
		return s.writeMessage(message.Ignored())
	}
	if s.pending == nil {
		return s.protocolError("no active result to pull or discard")
	}
	result := s.pending
	s.pending = nil
	for fields := range result.Records {
		if !emitRecords {
			continue
		}
		if err := s.writeMessage(message.Record(fields)); err != nil {
			return err
		}
	}
	summary, err := result.Summary()
	if err != nil {
		return s.fail(err)
	}
	if summary == nil {
		summary = packstream.NewMap()
	}
	s.state = ServerReady
	return s.writeMessage(message.Success(summary))
}

// fail reports a domain error as FAILURE and transitions the session to Failed, where it
// remains until RESET or ACK_FAILURE.
func (s *ServerSession) fail(appErr error) error {
	s.pending = nil
	s.state = ServerFailed
	code, text := "Neo.DatabaseError.Statement.ExecutionFailed", appErr.Error()
	if sf, ok := appErr.(*boltx.ServerFailure); ok {
		code, text = sf.Code, sf.Message
	}
	return s.writeMessage(message.Failure(code, text))
}

func (s *ServerSession) protocolError(detail string) error {
	s.state = ServerFailed
	_ = s.writeMessage(message.Failure("Protocol.InvalidMessage", detail))
	return boltx.NewProtocolViolation("server.dispatch", fmt.Errorf("%s", detail))
}
