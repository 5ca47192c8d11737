// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"encoding/json"
	"sync"
)

// ServerTransport is the accepting half of the transport core. It never
// dials; a carrier-specific listener calls HandleConnection once per
// accepted socket (spec §4.6).
type ServerTransport struct {
	*Transport

	metaMu sync.Mutex
	// sessionMeta associates a session's validated, parsed handshake
	// metadata with its advertised session id, held separately from
	// Session so that sensitive raw metadata is never retained once
	// validation completes (spec §4.6, §9).
	sessionMeta map[SessionID]json.RawMessage
}

// NewServerTransport constructs a ServerTransport identifying itself as
// self.
func NewServerTransport(self PeerID, opts Options) *ServerTransport {
	return &ServerTransport{
		Transport:   newTransportCore(self, opts),
		sessionMeta: make(map[SessionID]json.RawMessage),
	}
}

func (s *ServerTransport) previousMeta(sessionID SessionID) json.RawMessage {
	if sessionID == "" {
		return nil
	}
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	return s.sessionMeta[sessionID]
}

// HandleConnection runs the server side of spec §4.4 over conn: it reads
// the first frame, validates it as a handshake request, and on success
// adopts conn as the connection for the (possibly newly created)
// session for the advertising peer. It returns once the connection's
// read loop ends.
func (s *ServerTransport) HandleConnection(ctx context.Context, conn Connection) error {
	phase := newConnPhase()
	firstCh := make(chan []byte, 1)
	listenCtx, cancelListen := context.WithCancel(context.Background())
	defer cancelListen()

	var peerMu sync.Mutex
	var peer PeerID
	setPeer := func(p PeerID) {
		peerMu.Lock()
		peer = p
		peerMu.Unlock()
	}
	deliver := func(data []byte) {
		peerMu.Lock()
		p := peer
		peerMu.Unlock()
		if p == "" {
			return
		}
		msg, err := s.opts.codecOrDefault().Decode(data)
		if err != nil {
			s.log().Warn("discarding undecodable frame", "peer", p, "err", err)
			return
		}
		s.handleMessage(p, msg)
	}

	listenDone := make(chan error, 1)
	go func() {
		listenDone <- conn.Listen(listenCtx, func(data []byte) {
			phase.onFrame(data, func(first []byte) { firstCh <- first }, deliver)
		})
	}()

	hsCtx, cancelHS := context.WithTimeout(ctx, s.opts.HandshakeTimeout)
	defer cancelHS()

	var firstFrame []byte
	select {
	case <-hsCtx.Done():
		conn.Close()
		return hsCtx.Err()
	case data, ok := <-firstCh:
		if !ok {
			conn.Close()
			return nil
		}
		firstFrame = data
	}

	result, status, from, err := runServerHandshake(hsCtx, &s.opts, s.self, firstFrame, func(p PeerID) json.RawMessage {
		s.mu.Lock()
		sess, ok := s.sessions[p]
		s.mu.Unlock()
		if !ok {
			return nil
		}
		return s.previousMeta(sess.advertisedID)
	})
	setPeer(from)

	if err != nil {
		respFrame, encErr := encodeHandshakeResponse(s.opts.codecOrDefault(), s.self, from, *status)
		if encErr == nil {
			conn.Send(ctx, respFrame)
		}
		conn.Close()
		s.dispatcher.dispatchProtocolError(&ProtocolError{Kind: HandshakeFailed, Peer: from, Cause: err, Message: status.Reason})
		return err
	}

	s.mu.Lock()
	sess, existed := s.sessions[result.peer]
	if existed && sess.advertisedID != "" && sess.advertisedID != result.advertisedID {
		s.destroySessionLocked(result.peer)
		existed = false
	}
	if !existed {
		sess = s.getOrCreateSessionLocked(result.peer)
	}
	sess.advertisedID = result.advertisedID
	sess.handshakingConn = conn
	sess.transition(Handshaking)
	status.SessionID = sess.id
	s.mu.Unlock()

	respFrame, err := encodeHandshakeResponse(s.opts.codecOrDefault(), s.self, result.peer, *status)
	if err != nil {
		conn.Close()
		return err
	}
	if err := conn.Send(ctx, respFrame); err != nil {
		s.mu.Lock()
		s.destroySessionLocked(result.peer)
		s.mu.Unlock()
		conn.Close()
		return err
	}

	if result.parsedMeta != nil {
		s.metaMu.Lock()
		s.sessionMeta[sess.advertisedID] = result.parsedMeta
		s.metaMu.Unlock()
	}

	s.mu.Lock()
	sess.handshakingConn = nil
	sess.replaceConnection(conn, true)
	s.mu.Unlock()

	phase.openAndFlush(deliver)

	s.dispatcher.dispatchConnectionStatus(&ConnectionStatusEvent{Direction: DirConnect, Connection: conn, Peer: result.peer})

	err = <-listenDone

	s.mu.Lock()
	if sess2, ok := s.sessions[result.peer]; ok && sess2.conn == conn {
		sess2.transition(NoConnection)
		sess2.conn = nil
		sess2.beginGraceLocked()
	}
	s.mu.Unlock()
	s.dispatcher.dispatchConnectionStatus(&ConnectionStatusEvent{Direction: DirDisconnect, Connection: conn, Peer: result.peer})

	return err
}
