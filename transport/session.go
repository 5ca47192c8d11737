// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"fmt"
)

// Session is per-peer durable state that survives connection churn. It
// is created lazily on first outbound Send to an unknown peer (client
// role) or on first successful handshake from a peer (server role), and
// is mutated only while its owning Transport's lock is held (see
// Transport.mu).
type Session struct {
	id   SessionID
	from PeerID // local peer identity, constant across this transport's sessions
	to   PeerID // remote peer identity; also the registry key

	// advertisedID is the session ID the peer claims for this session;
	// used to detect a peer identity change across reconnect.
	advertisedID SessionID

	seq int64 // next outbound sequence number for non-ack messages
	ack int64 // next inbound sequence number expected

	sendBuffer []*Message

	state           SessionState
	conn            Connection
	handshakingConn Connection

	heartbeatMissCount int
	heartbeatTimer     timer
	heartbeatCancel    context.CancelFunc
	graceTimer         timer
	graceCancel        context.CancelFunc

	// generation is bumped whenever the session is destroyed; timer
	// goroutines capture the generation at arm time and compare it
	// before acting, so a timer belonging to a destroyed (and possibly
	// reused-key) session is a safe no-op. Timers never hold a *Session
	// pointer directly for this reason -- they look the session back up
	// by peer ID through the owning transport.
	generation uint64
	destroyed  bool

	t *Transport
}

func newSession(t *Transport, id SessionID, from, to PeerID) *Session {
	return &Session{
		id:    id,
		from:  from,
		to:    to,
		state: NoConnection,
		t:     t,
	}
}

// send stamps the envelope, appends it to the send buffer (unless it is
// an ack-only message, which is never buffered), and, if the session is
// Connected, writes it to the wire. It never blocks and never fails
// unless the session has been destroyed. Must be called with t.mu held.
func (s *Session) send(p PartialMessage) (string, error) {
	if s.destroyed {
		return "", fmt.Errorf("transport: session for peer %s is destroyed", s.to)
	}
	id := s.t.newMessageID()
	msg := &Message{
		ID:            id,
		From:          s.from,
		To:            p.To,
		Seq:           s.seq,
		Ack:           s.ack,
		StreamID:      p.StreamID,
		ServiceName:   p.ServiceName,
		ProcedureName: p.ProcedureName,
		ControlFlags:  p.ControlFlags,
		Tracing:       p.Tracing,
		Payload:       p.Payload,
	}
	if !msg.isAckOnly() {
		s.seq++
		s.sendBuffer = append(s.sendBuffer, msg)
	}

	if s.state == Connected && s.conn != nil {
		s.writeLocked(msg)
	}
	return id, nil
}

// sendHeartbeatLocked builds and writes a heartbeat frame directly,
// bypassing the send buffer and leaving seq unchanged, per spec §4.1/§6:
// heartbeats do not advance seq and are never retained for replay.
func (s *Session) sendHeartbeatLocked() {
	if s.conn == nil {
		return
	}
	msg := &Message{
		ID:           s.t.newMessageID(),
		From:         s.from,
		To:           s.to,
		Seq:          s.seq,
		Ack:          s.ack,
		StreamID:     heartbeatStreamID,
		ControlFlags: FlagAck,
		Payload:      ackPayload(),
	}
	s.writeLocked(msg)
}

// writeLocked encodes and writes msg to the current connection. A
// failed write is logged but never surfaced to the caller: the message
// (if buffered) remains in the send buffer and the next reconnect
// replays it.
func (s *Session) writeLocked(msg *Message) {
	data, err := s.t.opts.codecOrDefault().Encode(msg)
	if err != nil {
		s.t.log().Error("encode message failed", "peer", s.to, "err", err)
		return
	}
	if err := s.conn.Send(context.Background(), data); err != nil {
		s.t.log().Debug("write failed, relying on replay after reconnect", "peer", s.to, "err", err)
	}
}

// pruneAcked drops every send-buffer entry whose seq < ack. Post-call,
// sendBuffer[0].Seq == ack or the buffer is empty. Must be called with
// t.mu held.
func (s *Session) pruneAcked(ack int64) {
	i := 0
	for ; i < len(s.sendBuffer); i++ {
		if s.sendBuffer[i].Seq >= ack {
			break
		}
	}
	if i > 0 {
		s.sendBuffer = append(s.sendBuffer[:0:0], s.sendBuffer[i:]...)
	}
}

// replaceConnection installs conn as the session's active connection. If
// transparent is true, seq/ack/sendBuffer are preserved and the buffer
// is flushed to the new connection in order; otherwise they are reset
// (a non-transparent reconnect, e.g. after a peer identity change).
// Must be called with t.mu held.
func (s *Session) replaceConnection(conn Connection, transparent bool) {
	if s.conn != nil && s.conn != conn {
		s.conn.Close()
	}
	s.conn = conn
	s.cancelGraceLocked()

	if !transparent {
		s.seq = 0
		s.ack = 0
		s.sendBuffer = nil
	}

	s.transition(Connected)

	if transparent {
		for _, msg := range s.sendBuffer {
			s.writeLocked(msg)
		}
	}
	s.armHeartbeatLocked()
}

// transition moves the session to `to`, emitting a sessionTransition
// event. It is the only code path that changes s.state; callers must
// already hold t.mu and must have made whatever connection-handle
// changes the transition implies before calling it.
func (s *Session) transition(to SessionState) {
	s.state = to
	s.t.dispatcher.dispatchSessionTransition(&SessionTransitionEvent{State: to, Session: s})
}

// beginGraceLocked arms the deletion timer; idempotent, re-arming
// replaces any previous timer. Must be called with t.mu held.
func (s *Session) beginGraceLocked() {
	s.cancelGraceLocked()
	gen := s.generation
	peer := s.to
	ctx, cancel := context.WithCancel(context.Background())
	s.graceCancel = cancel
	tmr := s.t.opts.clockOrDefault().NewTimer(s.t.opts.SessionDisconnectGrace)
	s.graceTimer = tmr
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-tmr.C():
			s.t.onGraceExpired(peer, gen)
		}
	}()
}

// cancelGraceLocked disarms the grace timer and resets the heartbeat
// miss count, per spec §4.1: cancel_grace also resets the miss count.
func (s *Session) cancelGraceLocked() {
	if s.graceCancel != nil {
		s.graceCancel()
		s.graceCancel = nil
	}
	if s.graceTimer != nil {
		s.graceTimer.Stop()
		s.graceTimer = nil
	}
	s.heartbeatMissCount = 0
}

// armHeartbeatLocked (re)starts the heartbeat tick for a newly connected
// session. Must be called with t.mu held.
func (s *Session) armHeartbeatLocked() {
	s.stopHeartbeatLocked()
	gen := s.generation
	peer := s.to
	ctx, cancel := context.WithCancel(context.Background())
	s.heartbeatCancel = cancel
	tmr := s.t.opts.clockOrDefault().NewTimer(s.t.opts.HeartbeatInterval)
	s.heartbeatTimer = tmr
	go runHeartbeat(ctx, s.t, peer, gen, tmr)
}

func (s *Session) stopHeartbeatLocked() {
	if s.heartbeatCancel != nil {
		s.heartbeatCancel()
		s.heartbeatCancel = nil
	}
	if s.heartbeatTimer != nil {
		s.heartbeatTimer.Stop()
		s.heartbeatTimer = nil
	}
}

// runHeartbeat re-arms itself every tick by asking the owning transport
// to perform one heartbeat step; it stops as soon as ctx is cancelled or
// the transport reports the session is gone, stale, or no longer
// Connected.
func runHeartbeat(ctx context.Context, t *Transport, peer PeerID, gen uint64, tmr timer) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-tmr.C():
			interval, ok := t.onHeartbeatTick(peer, gen)
			if !ok {
				return
			}
			tmr.Reset(interval)
		}
	}
}

// closeLocked stops timers, drops the buffer, and drops the connection.
// Must be called with t.mu held.
func (s *Session) closeLocked() {
	s.cancelGraceLocked()
	s.stopHeartbeatLocked()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	if s.handshakingConn != nil {
		s.handshakingConn.Close()
		s.handshakingConn = nil
	}
	s.sendBuffer = nil
	s.destroyed = true
	s.generation++
}
