// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/duplexrpc/transport/internal/relaydebug"
)

// Transport is the shared core of [ClientTransport] and [ServerTransport]:
// a registry of sessions by peer ID, the event dispatcher, and the
// single lock that serializes all session mutation (spec §5). It is
// never constructed directly; use NewClientTransport or
// NewServerTransport.
type Transport struct {
	self PeerID
	opts Options

	dispatcher *EventDispatcher

	mu       sync.Mutex
	sessions map[PeerID]*Session
	closed   bool
}

func newTransportCore(self PeerID, opts Options) *Transport {
	return &Transport{
		self:       self,
		opts:       opts,
		dispatcher: newEventDispatcher(),
		sessions:   make(map[PeerID]*Session),
	}
}

func (t *Transport) log() *slog.Logger { return t.opts.logger() }

// newMessageID generates an opaque, unique-per-process message ID. The
// generator is implementation-free per spec §3; this uses a random hex
// string in the teacher's style (see mcp/util.go's randText).
func (t *Transport) newMessageID() string {
	return randHex(16)
}

// newSessionID generates a locally unique session identifier, stable
// across transparent reconnects.
func newSessionID() SessionID {
	return SessionID(randHex(16))
}

func randHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand.Read on a correctly configured system never
		// fails; if it does, the buffer is encoded as it stands, with
		// no separate fallback source.
		return hex.EncodeToString(buf)
	}
	return hex.EncodeToString(buf)
}

// getOrCreateSessionLocked returns the session for peer, creating one in
// NoConnection state if none exists. Must be called with t.mu held.
func (t *Transport) getOrCreateSessionLocked(peer PeerID) *Session {
	if s, ok := t.sessions[peer]; ok {
		return s
	}
	s := newSession(t, newSessionID(), t.self, peer)
	t.sessions[peer] = s
	t.dispatcher.dispatchSessionStatus(&SessionStatusEvent{Direction: DirConnect, Session: s})
	return s
}

// destroySessionLocked tears down and removes the session for peer, if
// any, emitting sessionStatus{disconnect}. Must be called with t.mu held.
func (t *Transport) destroySessionLocked(peer PeerID) {
	s, ok := t.sessions[peer]
	if !ok {
		return
	}
	s.closeLocked()
	delete(t.sessions, peer)
	t.dispatcher.dispatchSessionStatus(&SessionStatusEvent{Direction: DirDisconnect, Session: s})
}

// Send stamps and enqueues partial for delivery to partial.To, creating
// a session for that peer if none exists yet. It never blocks and only
// returns an error once the transport has been closed.
func (t *Transport) Send(p PartialMessage) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return "", ErrTransportClosed
	}
	s := t.getOrCreateSessionLocked(p.To)
	return s.send(p)
}

// SendCloseStream sends a clean, mutual stream-close control message.
func (t *Transport) SendCloseStream(to PeerID, stream StreamID) (string, error) {
	return t.Send(PartialMessage{
		To:           to,
		StreamID:     stream,
		ControlFlags: FlagStreamClosed,
		Payload:      closePayload(),
	})
}

// SendRequestClose asks the peer to stop reading from a stream
// (half-close), per the FlagStreamCloseRequest/FlagStreamAbort
// resolution in DESIGN.md.
func (t *Transport) SendRequestClose(to PeerID, stream StreamID) (string, error) {
	return t.Send(PartialMessage{
		To:           to,
		StreamID:     stream,
		ControlFlags: FlagStreamCloseRequest,
		Payload:      closePayload(),
	})
}

// SendAbort drops a stream with an error payload.
func (t *Transport) SendAbort(to PeerID, stream StreamID, reason string) (string, error) {
	payload, _ := jsonMarshalAbort(reason)
	return t.Send(PartialMessage{
		To:           to,
		StreamID:     stream,
		ControlFlags: FlagStreamAbort,
		Payload:      payload,
	})
}

// AddMessageListener registers handler for EventMessage events.
func (t *Transport) AddMessageListener(h MessageHandler) { t.dispatcher.addListener(EventMessage, h) }

// AddConnectionStatusListener registers handler for EventConnectionStatus events.
func (t *Transport) AddConnectionStatusListener(h ConnectionStatusHandler) {
	t.dispatcher.addListener(EventConnectionStatus, h)
}

// AddSessionStatusListener registers handler for EventSessionStatus events.
func (t *Transport) AddSessionStatusListener(h SessionStatusHandler) {
	t.dispatcher.addListener(EventSessionStatus, h)
}

// AddSessionTransitionListener registers handler for EventSessionTransition events.
func (t *Transport) AddSessionTransitionListener(h SessionTransitionHandler) {
	t.dispatcher.addListener(EventSessionTransition, h)
}

// AddProtocolErrorListener registers handler for EventProtocolError events.
func (t *Transport) AddProtocolErrorListener(h ProtocolErrorHandler) {
	t.dispatcher.addListener(EventProtocolError, h)
}

// AddTransportStatusListener registers handler for EventTransportStatus events.
func (t *Transport) AddTransportStatusListener(h TransportStatusHandler) {
	t.dispatcher.addListener(EventTransportStatus, h)
}

// Close tears down every session and marks the transport closed. It is
// idempotent: calling Close more than once emits transportStatus{closed}
// only the first time.
func (t *Transport) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	for peer := range t.sessions {
		t.destroySessionLocked(peer)
	}
	t.mu.Unlock()

	t.dispatcher.dispatchTransportStatus(TransportClosed)
	t.dispatcher.removeAll()
}

// handleMessage processes one parsed message arriving from conn. It
// implements spec §4.3: drop if closed, locate session, reset
// grace/heartbeat bookkeeping, and run the sequence check.
func (t *Transport) handleMessage(from PeerID, m *Message) {
	t.mu.Lock()

	if t.closed {
		t.mu.Unlock()
		return
	}

	s, ok := t.sessions[from]
	if !ok {
		t.mu.Unlock()
		t.log().Warn("message from unknown session, dropping", "peer", from)
		return
	}

	s.cancelGraceLocked()

	if relaydebug.Frames() {
		t.log().Debug("frame received", "peer", from, "seq", m.Seq, "ack", m.Ack, "ackOnly", m.isAckOnly())
	}

	if m.isAckOnly() {
		s.pruneAcked(m.Ack)
		t.mu.Unlock()
		return
	}

	switch {
	case m.Seq == s.ack:
		s.pruneAcked(m.Ack)
		s.ack = m.Seq + 1
		t.mu.Unlock()
		t.dispatcher.dispatchMessage(&MessageEvent{Session: s, Message: m})

	case m.Seq < s.ack:
		t.mu.Unlock()
		t.log().Debug("duplicate message, discarding", "peer", from, "seq", m.Seq, "ack", s.ack)

	default: // m.Seq > s.ack: fatal
		conn := s.conn
		s.closeLocked()
		delete(t.sessions, from)
		t.mu.Unlock()

		t.dispatcher.dispatchSessionStatus(&SessionStatusEvent{Direction: DirDisconnect, Session: s})
		t.dispatcher.dispatchProtocolError(&ProtocolError{
			Kind:    MessageOrderingViolated,
			Peer:    from,
			Message: "received seq greater than expected ack; session destroyed",
		})
		if conn != nil {
			conn.Close()
		}
	}
}

// onGraceExpired destroys the session for peer if it is still the
// generation that armed the timer and still has no connection.
func (t *Transport) onGraceExpired(peer PeerID, gen uint64) {
	t.mu.Lock()
	s, ok := t.sessions[peer]
	if !ok || s.generation != gen || s.state != NoConnection {
		t.mu.Unlock()
		return
	}
	t.destroySessionLocked(peer)
	t.mu.Unlock()
}

// onHeartbeatTick sends one heartbeat for the session owning peer/gen
// and reports whether the heartbeat loop should continue (false when
// the session is gone, stale, or no longer Connected). When the
// session's miss count exceeds HeartbeatsUntilDead, the connection
// (not the session) is closed.
func (t *Transport) onHeartbeatTick(peer PeerID, gen uint64) (time.Duration, bool) {
	t.mu.Lock()
	s, ok := t.sessions[peer]
	if !ok || s.generation != gen || s.state != Connected {
		t.mu.Unlock()
		return 0, false
	}

	s.sendHeartbeatLocked()
	s.heartbeatMissCount++

	var dead Connection
	if s.heartbeatMissCount > t.opts.HeartbeatsUntilDead {
		dead = s.conn
	}
	interval := t.opts.HeartbeatInterval
	t.mu.Unlock()

	if dead != nil {
		t.log().Warn("heartbeat miss threshold exceeded, closing connection", "peer", peer)
		dead.Close()
		return 0, false
	}
	return interval, true
}

func jsonMarshalAbort(reason string) ([]byte, error) {
	return json.Marshal(struct {
		Type   string `json:"type"`
		Reason string `json:"reason,omitempty"`
	}{Type: controlTypeClose, Reason: reason})
}
