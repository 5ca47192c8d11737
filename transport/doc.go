// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package transport implements the session, handshake, and delivery layer
// of a bidirectional RPC runtime: it turns an unreliable, possibly
// reconnecting byte-oriented [Connection] into an ordered, at-least-once,
// session-scoped message stream.
//
// A [Transport] owns a registry of [Session] values keyed by peer ID. A
// [ClientTransport] dials out and retries under a leaky-bucket budget; a
// [ServerTransport] accepts inbound connections and validates a handshake.
// Both embed the shared [Transport] core implemented in this package.
//
// The concrete byte carriers (WebSocket, Unix socket, stdio) and the
// router layer that multiplexes procedures over streams are deliberately
// outside this package; see the carriers/ directory for example carrier
// implementations of [Connection].
package transport
