// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import "context"

// Connection is the abstract byte carrier a transport rides on. It owns
// no protocol logic: framing, handshake, and sequencing all live above
// this interface in the transport package. Concrete implementations
// (WebSocket, Unix socket, stdio, ...) live in carriers/ and are
// otherwise indistinguishable to the transport.
type Connection interface {
	// Send writes one already-framed, already-encoded message to the
	// wire. Implementations must be safe for concurrent use with Close,
	// but Send itself is only ever called from the owning transport's
	// run loop, so it need not be safe for concurrent Send calls.
	Send(ctx context.Context, data []byte) error

	// Listen reads framed, encoded messages from the wire and reports
	// each to onFrame until the connection is closed or ctx is done, at
	// which point it returns. A read error or clean EOF both end the
	// loop; Listen reports which via the returned error (nil on clean
	// EOF).
	Listen(ctx context.Context, onFrame func(data []byte)) error

	// Close tears down the underlying carrier. Close must be safe to
	// call more than once.
	Close() error

	// RemoteAddr is a human-readable description of the peer, used only
	// for logging.
	RemoteAddr() string
}

// Codec encodes and decodes a [Message] to and from bytes. It is the only
// capability a carrier-agnostic transport needs to turn wire bytes into
// envelopes.
type Codec interface {
	Encode(m *Message) ([]byte, error)
	Decode(data []byte) (*Message, error)
}
