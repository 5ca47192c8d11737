// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import "fmt"

// SessionState is one of the tagged variants of the connection half of a
// session's state machine (spec §3, §4.2). Only Connected permits
// delivery of application messages upward.
type SessionState int

const (
	// NoConnection: no live or in-progress connection. A grace timer may
	// be armed awaiting reconnection.
	NoConnection SessionState = iota
	// Connecting: a dial is in progress (client only).
	Connecting
	// Handshaking: a socket is open and bytes are flowing, but the
	// handshake has not yet been validated.
	Handshaking
	// Connected: handshake validated; application messages flow.
	Connected
)

func (s SessionState) String() string {
	switch s {
	case NoConnection:
		return "NoConnection"
	case Connecting:
		return "Connecting"
	case Handshaking:
		return "Handshaking"
	case Connected:
		return "Connected"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// legalTransitions enumerates the state machine in spec §4.2. It exists
// principally as documentation and as a guard used by tests; production
// code changes state through Session.transition, which does not consult
// this table, and the connection handles are set by the code around
// each transition call.
var legalTransitions = map[SessionState][]SessionState{
	NoConnection: {Connecting, Handshaking}, // dial() -> Connecting (client); accept(conn) -> Handshaking (server)
	Connecting:   {Handshaking, NoConnection},
	Handshaking:  {Connected, NoConnection},
	Connected:    {NoConnection},
}

func isLegalTransition(from, to SessionState) bool {
	for _, candidate := range legalTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
