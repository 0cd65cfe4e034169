// Package boltx defines the error taxonomy shared by every Bolt protocol layer:
// packstream, chunk framing, handshake, and session.
package boltx

import (
	"context"
	stdErrors "errors"
	"fmt"
)

// protocolMarker is implemented by every protocol-layer error type so callers can classify them
// without enumerating concrete types.
type protocolMarker interface {
	error
	isProtocol()
}

// TransportError wraps a failure in the underlying byte stream (read, write, close, or dial).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transport error: %s", e.Op)
	}
	return fmt.Sprintf("transport error: %s: %v", e.Op, e.Err)
}
func (e *TransportError) Unwrap() error { return e.Err }

// HandshakeFailure indicates the preamble magic, version negotiation, or handshake framing
// failed.
type HandshakeFailure struct {
	Op  string
	Err error
}

func (e *HandshakeFailure) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("handshake failure: %s", e.Op)
	}
	return fmt.Sprintf("handshake failure: %s: %v", e.Op, e.Err)
}
func (e *HandshakeFailure) Unwrap() error { return e.Err }
func (e *HandshakeFailure) isProtocol()   {}

// MalformedInput indicates a PackStream marker was unknown, truncated, or otherwise could not be
// decoded into a value.
type MalformedInput struct {
	Op  string
	Err error
}

func (e *MalformedInput) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("malformed input: %s", e.Op)
	}
	return fmt.Sprintf("malformed input: %s: %v", e.Op, e.Err)
}
func (e *MalformedInput) Unwrap() error { return e.Err }
func (e *MalformedInput) isProtocol()   {}

// NestingTooDeep indicates a PackStream value recursed past the implementation's bound.
type NestingTooDeep struct {
	Op    string
	Depth int
	Limit int
}

func (e *NestingTooDeep) Error() string {
	return fmt.Sprintf("nesting too deep: %s (depth %d exceeds limit %d)", e.Op, e.Depth, e.Limit)
}
func (e *NestingTooDeep) isProtocol() {}

// ProtocolViolation indicates a message arrived that the session state machine did not expect,
// or a FIFO response failed to match its pending request.
type ProtocolViolation struct {
	Op  string
	Err error
}

func (e *ProtocolViolation) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("protocol violation: %s", e.Op)
	}
	return fmt.Sprintf("protocol violation: %s: %v", e.Op, e.Err)
}
func (e *ProtocolViolation) Unwrap() error { return e.Err }
func (e *ProtocolViolation) isProtocol()   {}

// ServerFailure carries the code/message pair from a FAILURE response. It is local to the
// request that triggered it; pipelined successors observe Ignored until recovery.
type ServerFailure struct {
	Code    string
	Message string
}

func (e *ServerFailure) Error() string {
	return fmt.Sprintf("server failure: %s: %s", e.Code, e.Message)
}
func (e *ServerFailure) isProtocol() {}

// Ignored indicates a queued request was never executed because the session was Failed when
// it would otherwise have run.
type Ignored struct {
	Op string
}

func (e *Ignored) Error() string { return fmt.Sprintf("ignored: %s", e.Op) }
func (e *Ignored) isProtocol()   {}

// AuthFailure indicates the server answered INIT with FAILURE.
type AuthFailure struct {
	Code    string
	Message string
}

func (e *AuthFailure) Error() string {
	return fmt.Sprintf("auth failure: %s: %s", e.Code, e.Message)
}
func (e *AuthFailure) isProtocol() {}

// Cancelled indicates a local consumer abandoned a record stream before it reached eof.
type Cancelled struct {
	Op string
}

func (e *Cancelled) Error() string { return fmt.Sprintf("cancelled: %s", e.Op) }
func (e *Cancelled) isProtocol()   {}

// IsProtocolError reports whether err is, or wraps, any protocol-layer error defined in this
// package (every kind except TransportError).
func IsProtocolError(err error) bool {
	if err == nil {
		return false
	}
	var pm protocolMarker
	return stdErrors.As(err, &pm)
}

// IsTimeout reports whether err is, or wraps, context.DeadlineExceeded or an error whose
// Timeout() method returns true. context.Canceled is not treated as a timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if stdErrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var toErr interface{ Timeout() bool }
	if stdErrors.As(err, &toErr) && toErr.Timeout() {
		return true
	}
	return false
}

// Constructors. Callers are encouraged to layer additional context with fmt.Errorf("...: %w").
func NewTransportError(op string, cause error) error    { return &TransportError{Op: op, Err: cause} }
func NewHandshakeFailure(op string, cause error) error  { return &HandshakeFailure{Op: op, Err: cause} }
func NewMalformedInput(op string, cause error) error    { return &MalformedInput{Op: op, Err: cause} }
func NewProtocolViolation(op string, cause error) error { return &ProtocolViolation{Op: op, Err: cause} }
func NewNestingTooDeep(op string, depth, limit int) error {
	return &NestingTooDeep{Op: op, Depth: depth, Limit: limit}
}
func NewServerFailure(code, message string) error { return &ServerFailure{Code: code, Message: message} }
func NewIgnored(op string) error                  { return &Ignored{Op: op} }
func NewAuthFailure(code, message string) error   { return &AuthFailure{Code: code, Message: message} }
func NewCancelled(op string) error                { return &Cancelled{Op: op} }
