// Package message defines the fixed Bolt v1 message signature table and typed
// constructors/accessors layered over a PackStream Structure.
package message

import (
	"fmt"
	"io"

	"github.com/davebshow/asyncbolt/internal/bolt/packstream"
	"github.com/davebshow/asyncbolt/internal/boltx"
)

// Signature identifies a Bolt message by its PackStream Structure signature byte.
type Signature byte

// The fixed set of Bolt v1 message signatures.
const (
	SigInit        Signature = 0x01
	SigAckFailure  Signature = 0x0E
	SigReset       Signature = 0x0F
	SigRun         Signature = 0x10
	SigDiscardAll  Signature = 0x2F
	SigPullAll     Signature = 0x3F
	SigSuccess     Signature = 0x70
	SigRecord      Signature = 0x71
	SigIgnored     Signature = 0x7E
	SigFailure     Signature = 0x7F
)

// names maps every known signature to a short name, used for logging and error messages.
var names = map[Signature]string{
	SigInit:       "INIT",
	SigAckFailure: "ACK_FAILURE",
	SigReset:      "RESET",
	SigRun:        "RUN",
	SigDiscardAll: "DISCARD_ALL",
	SigPullAll:    "PULL_ALL",
	SigSuccess:    "SUCCESS",
	SigRecord:     "RECORD",
	SigIgnored:    "IGNORED",
	SigFailure:    "FAILURE",
}

// String returns the message's mnemonic name, or a hex fallback for unknown signatures.
func (s Signature) String() string {
	if n, ok := names[s]; ok {
		return n
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", byte(s))
}

// arity is the expected field count for each known signature.
var arity = map[Signature]int{
	SigInit:       2,
	SigAckFailure: 0,
	SigReset:      0,
	SigRun:        2,
	SigDiscardAll: 0,
	SigPullAll:    0,
	SigSuccess:    1,
	SigRecord:     1,
	SigIgnored:    0,
	SigFailure:    1,
}

// Message wraps a decoded PackStream Structure whose signature is one of the Bolt message
// signatures above.
type Message struct {
	Signature Signature
	Fields    []interface{}
}

// FromStructure validates s against the known signature table and returns a Message.
func FromStructure(s *packstream.Structure) (*Message, error) {
	sig := Signature(s.Signature)
	want, known := arity[sig]
	if !known {
		return nil, boltx.NewProtocolViolation("message.from_structure", fmt.Errorf("unknown signature 0x%02X", s.Signature))
	}
	if len(s.Fields) != want {
		return nil, boltx.NewProtocolViolation("message.from_structure", fmt.Errorf("%s expects %d fields, got %d", sig, want, len(s.Fields)))
	}
	return &Message{Signature: sig, Fields: s.Fields}, nil
}

// Structure renders the Message back into a PackStream Structure for encoding.
func (m *Message) Structure() *packstream.Structure {
	return &packstream.Structure{Signature: byte(m.Signature), Fields: m.Fields}
}

// Encode writes the message onto w using packstream.EncodeStructure.
func (m *Message) Encode(w io.Writer) error {
	return packstream.EncodeStructure(w, m.Structure())
}

// --- Typed constructors (client -> server) ---

// Init builds an INIT message.
func Init(clientName string, authToken *packstream.Map) *Message {
	return &Message{Signature: SigInit, Fields: []interface{}{clientName, authToken}}
}

// AckFailure builds an ACK_FAILURE message.
func AckFailure() *Message { return &Message{Signature: SigAckFailure} }

// Reset builds a RESET message.
func Reset() *Message { return &Message{Signature: SigReset} }

// Run builds a RUN message.
func Run(statement string, parameters *packstream.Map) *Message {
	return &Message{Signature: SigRun, Fields: []interface{}{statement, parameters}}
}

// DiscardAll builds a DISCARD_ALL message.
func DiscardAll() *Message { return &Message{Signature: SigDiscardAll} }

// PullAll builds a PULL_ALL message.
func PullAll() *Message { return &Message{Signature: SigPullAll} }

// --- Typed constructors (server -> client) ---

// Success builds a SUCCESS message carrying response metadata.
func Success(metadata *packstream.Map) *Message {
	return &Message{Signature: SigSuccess, Fields: []interface{}{metadata}}
}

// Record builds a RECORD message carrying one row of field values.
func Record(fields []interface{}) *Message {
	return &Message{Signature: SigRecord, Fields: []interface{}{fields}}
}

// Ignored builds an IGNORED message.
func Ignored() *Message { return &Message{Signature: SigIgnored} }

// Failure builds a FAILURE message carrying a code/message metadata map.
func Failure(code, msg string) *Message {
	meta := packstream.NewMap()
	meta.Set("code", code)
	meta.Set("message", msg)
	return &Message{Signature: SigFailure, Fields: []interface{}{meta}}
}

// --- Typed accessors ---

// InitFields extracts the client_name/auth_token fields from an INIT message.
func (m *Message) InitFields() (clientName string, auth *packstream.Map, err error) {
	if m.Signature != SigInit {
		return "", nil, wrongSignature("init_fields", SigInit, m.Signature)
	}
	clientName, ok := m.Fields[0].(string)
	if !ok {
		return "", nil, boltx.NewMalformedInput("message.init_fields", fmt.Errorf("client_name: %w", typeErr(m.Fields[0])))
	}
	auth, ok = m.Fields[1].(*packstream.Map)
	if !ok {
		return "", nil, boltx.NewMalformedInput("message.init_fields", fmt.Errorf("auth_token: %w", typeErr(m.Fields[1])))
	}
	return clientName, auth, nil
}

// RunFields extracts the statement/parameters fields from a RUN message.
func (m *Message) RunFields() (statement string, parameters *packstream.Map, err error) {
	if m.Signature != SigRun {
		return "", nil, wrongSignature("run_fields", SigRun, m.Signature)
	}
	statement, ok := m.Fields[0].(string)
	if !ok {
		return "", nil, boltx.NewMalformedInput("message.run_fields", fmt.Errorf("statement: %w", typeErr(m.Fields[0])))
	}
	parameters, ok = m.Fields[1].(*packstream.Map)
	if !ok {
		return "", nil, boltx.NewMalformedInput("message.run_fields", fmt.Errorf("parameters: %w", typeErr(m.Fields[1])))
	}
	return statement, parameters, nil
}

// Metadata extracts the metadata map from a SUCCESS or FAILURE message.
func (m *Message) Metadata() (*packstream.Map, error) {
	if m.Signature != SigSuccess && m.Signature != SigFailure {
		return nil, boltx.NewProtocolViolation("message.metadata", fmt.Errorf("%s has no metadata field", m.Signature))
	}
	meta, ok := m.Fields[0].(*packstream.Map)
	if !ok {
		return nil, boltx.NewMalformedInput("message.metadata", fmt.Errorf("metadata: %w", typeErr(m.Fields[0])))
	}
	return meta, nil
}

// RecordFields extracts the field list from a RECORD message.
func (m *Message) RecordFields() ([]interface{}, error) {
	if m.Signature != SigRecord {
		return nil, wrongSignature("record_fields", SigRecord, m.Signature)
	}
	fields, ok := m.Fields[0].([]interface{})
	if !ok {
		return nil, boltx.NewMalformedInput("message.record_fields", fmt.Errorf("fields: %w", typeErr(m.Fields[0])))
	}
	return fields, nil
}

// FailureCode extracts the code/message pair from a FAILURE message's metadata.
func (m *Message) FailureCode() (code, msg string, err error) {
	meta, err := m.Metadata()
	if err != nil {
		return "", "", err
	}
	c, _ := meta.Get("code")
	ms, _ := meta.Get("message")
	code, _ = c.(string)
	msg, _ = ms.(string)
	return code, msg, nil
}

func wrongSignature(op string, want, got Signature) error {
	return boltx.NewProtocolViolation("message."+op, fmt.Errorf("expected %s got %s", want, got))
}

func typeErr(v interface{}) error {
	return fmt.Errorf("unexpected type %T", v)
}
