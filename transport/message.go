// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import "encoding/json"

// PeerID identifies an endpoint of the transport by an opaque, locally
// meaningful name.
type PeerID string

// SessionID identifies a session, stable across transparent reconnects.
type SessionID string

// StreamID identifies a multiplexed procedure invocation within a session.
type StreamID string

// ControlFlags is a bitfield carried on every [Message].
type ControlFlags uint8

const (
	// FlagAck marks a message that carries no application payload and
	// exists only to acknowledge delivery (e.g. a heartbeat).
	FlagAck ControlFlags = 1 << iota
	// FlagStreamOpen marks the first message of a multiplexed stream.
	FlagStreamOpen
	// FlagStreamClosed marks a clean, mutual close of a stream.
	FlagStreamClosed
	// FlagStreamCloseRequest asks the peer to stop reading from a stream
	// (half-close); distinct from FlagStreamClosed, which is the mutual,
	// clean end of a stream.
	FlagStreamCloseRequest
	// FlagStreamAbort marks a stream being dropped with an error payload.
	FlagStreamAbort
)

// Has reports whether all bits in want are set in f.
func (f ControlFlags) Has(want ControlFlags) bool {
	return f&want == want
}

// Tracing carries optional distributed-tracing propagation fields. A
// transport that does not wire a tracer simply leaves this zero and
// passes it through unexamined.
type Tracing struct {
	TraceParent string `json:"traceparent,omitempty"`
	TraceState  string `json:"tracestate,omitempty"`
}

func (t *Tracing) isEmpty() bool {
	return t == nil || (t.TraceParent == "" && t.TraceState == "")
}

// Message is the single on-wire record exchanged between peers, after
// codec decode.
type Message struct {
	// ID is unique per message; the transport generates it when the
	// message is sent.
	ID string `json:"id"`

	// From is the sender's peer ID.
	From PeerID `json:"from"`
	// To is the intended recipient's peer ID.
	To PeerID `json:"to"`

	// Seq is this session's per-direction monotonically increasing
	// sequence number, starting at 0. It excludes handshake and ack-only
	// messages.
	Seq int64 `json:"seq"`
	// Ack is the sender's count of unique in-order messages received
	// from the peer on this session.
	Ack int64 `json:"ack"`

	// StreamID identifies the multiplexed procedure invocation this
	// message belongs to.
	StreamID StreamID `json:"streamId,omitempty"`
	// ServiceName and ProcedureName are present on the message that
	// opens a stream.
	ServiceName   string `json:"serviceName,omitempty"`
	ProcedureName string `json:"procedureName,omitempty"`

	ControlFlags ControlFlags `json:"controlFlags,omitempty"`

	Tracing *Tracing `json:"tracing,omitempty"`

	// Payload is either an application payload handed to Send, or a
	// control payload recognized internally (see controlPayload).
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PartialMessage is what a caller of Send supplies; the transport stamps
// the remaining envelope fields (ID, From, Seq, Ack).
type PartialMessage struct {
	To            PeerID
	StreamID      StreamID
	ServiceName   string
	ProcedureName string
	ControlFlags  ControlFlags
	Tracing       *Tracing
	Payload       json.RawMessage
}

// controlPayload is the shape of a control message's payload. It is
// decoded internally only to recognize the control message kinds named
// in the wire protocol; it is never exposed as a distinguished type to
// callers above the transport.
type controlPayload struct {
	Type string `json:"type"`
}

const (
	controlTypeAck           = "ACK"
	controlTypeClose         = "CLOSE"
	controlTypeHandshakeReq  = "HANDSHAKE_REQ"
	controlTypeHandshakeResp = "HANDSHAKE_RESP"
)

// isAckOnly reports whether m carries the ack bit, meaning it has no
// application payload and must never be placed in a send buffer.
func (m *Message) isAckOnly() bool {
	return m.ControlFlags.Has(FlagAck)
}

const heartbeatStreamID StreamID = "heartbeat"

var ackPayloadBytes = mustMarshalControl(controlTypeAck)
var closePayloadBytes = mustMarshalControl(controlTypeClose)

func mustMarshalControl(typ string) json.RawMessage {
	b, err := json.Marshal(controlPayload{Type: typ})
	if err != nil {
		panic(err) // unreachable: controlPayload always marshals
	}
	return b
}

func ackPayload() json.RawMessage   { return ackPayloadBytes }
func closePayload() json.RawMessage { return closePayloadBytes }
