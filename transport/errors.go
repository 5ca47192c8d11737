// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import "fmt"

// ProtocolErrorKind classifies a [ProtocolError].
type ProtocolErrorKind int

const (
	// HandshakeFailed covers schema violations, version mismatch,
	// metadata rejection, and a first frame that is not a handshake
	// request. The underlying connection is closed. On the client, a
	// rejection reported by the peer ends Connect and discards the
	// session; a handshake that times out or loses its connection is
	// retried subject to the retry budget.
	HandshakeFailed ProtocolErrorKind = iota
	// RetriesExceeded reports that the retry budget for a peer is
	// exhausted; the client stops retrying that peer until an operator
	// intervenes (e.g. by calling Connect again).
	RetriesExceeded
	// MessageOrderingViolated reports that a message arrived with
	// seq > session.ack. This is fatal to the session: the session is
	// destroyed and the connection closed. It can only arise from an
	// implementation bug, a forged sequence number, or session state
	// lost out from under a live connection, since the wire is reliable
	// per-connection and the send buffer is replayed on reconnect.
	MessageOrderingViolated
)

func (k ProtocolErrorKind) String() string {
	switch k {
	case HandshakeFailed:
		return "HandshakeFailed"
	case RetriesExceeded:
		return "RetriesExceeded"
	case MessageOrderingViolated:
		return "MessageOrderingViolated"
	default:
		return fmt.Sprintf("ProtocolErrorKind(%d)", int(k))
	}
}

// ProtocolError is the error surfaced through the protocolError event for
// every taxonomy member in spec §7.
type ProtocolError struct {
	Kind ProtocolErrorKind
	Peer PeerID
	// Message is a human-readable explanation; for HandshakeFailed it
	// carries the rejection reason reported by the peer or the local
	// validator.
	Message string
	// Cause is the underlying error, if any (e.g. a dial failure).
	Cause error
}

func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ProtocolError) Unwrap() error {
	return e.Cause
}

// ErrTransportClosed is returned by Send and Connect after Close has been
// called.
var ErrTransportClosed = fmt.Errorf("transport: closed")
