// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"errors"
	"sync"
)

// Dialer opens a fresh [Connection] to a peer. Supplied by the carrier
// package (e.g. carriers/websocket.Dial) and wired in at
// NewClientTransport time; the transport core never constructs a
// concrete carrier itself.
type Dialer func(ctx context.Context, to PeerID) (Connection, error)

// ClientTransport is the dialing half of the transport core: it owns
// per-peer retry budgets and coalesces concurrent Connect calls for the
// same peer into a single in-flight dial, per spec §4.5.
type ClientTransport struct {
	*Transport

	dial Dialer

	budgetMu sync.Mutex
	budgets  map[PeerID]*retryBudget

	dialMu   sync.Mutex
	inFlight map[PeerID]*inFlightDial
}

// inFlightDial lets concurrent Connect calls for the same peer await the
// single dial actually in flight and share its result, rather than each
// performing their own dial (spec §4.5: "await it").
type inFlightDial struct {
	done chan struct{}
	err  error
}

// NewClientTransport constructs a ClientTransport identifying itself as
// self and dialing peers via dial. opts is copied; a zero-valued Codec,
// Log or ProtocolVersionOverride falls back to its default through an
// accessor method, and every other zero-valued field is used as it is.
func NewClientTransport(self PeerID, dial Dialer, opts Options) *ClientTransport {
	return &ClientTransport{
		Transport: newTransportCore(self, opts),
		dial:      dial,
		budgets:   make(map[PeerID]*retryBudget),
		inFlight:  make(map[PeerID]*inFlightDial),
	}
}

func (c *ClientTransport) budgetFor(peer PeerID) *retryBudget {
	c.budgetMu.Lock()
	defer c.budgetMu.Unlock()
	b, ok := c.budgets[peer]
	if !ok {
		b = newRetryBudget(c.opts.AttemptBudgetCapacity, c.opts.BudgetRestoreInterval, c.opts.BaseInterval, c.opts.MaxJitter, c.opts.MaxBackoff)
		c.budgets[peer] = b
	}
	return b
}

// Connect dials peer, performs the handshake, and adopts the resulting
// connection into that peer's session, retrying with backoff per the
// retry budget until it succeeds, the budget is exhausted, ctx is done,
// or the peer rejects the handshake (which also discards the session).
// Concurrent calls to Connect for the same peer coalesce: only one
// dial is ever in flight per peer (spec §4.5).
func (c *ClientTransport) Connect(ctx context.Context, to PeerID) error {
	c.dialMu.Lock()
	if d, ok := c.inFlight[to]; ok {
		c.dialMu.Unlock()
		select {
		case <-d.done:
			return d.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	d := &inFlightDial{done: make(chan struct{})}
	c.inFlight[to] = d
	c.dialMu.Unlock()

	d.err = c.connectOnce(ctx, to)

	c.dialMu.Lock()
	delete(c.inFlight, to)
	c.dialMu.Unlock()
	close(d.done)

	return d.err
}

// connectOnce runs the tail-recursive attempt loop from spec §4.5 as an
// ordinary loop: consume a token, back off, dial, handshake; on a
// handshake rejected by the peer stop and destroy the session, on any
// other failure retry unless the budget or the transport is
// exhausted/closed.
func (c *ClientTransport) connectOnce(ctx context.Context, to PeerID) error {
	budget := c.budgetFor(to)
	attempt := 0
	for {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return ErrTransportClosed
		}

		if !budget.allow() {
			c.dispatcher.dispatchProtocolError(&ProtocolError{Kind: RetriesExceeded, Peer: to, Message: "retry budget exhausted"})
			return &ProtocolError{Kind: RetriesExceeded, Peer: to, Message: "retry budget exhausted"}
		}

		if attempt > 0 {
			wait := budget.backoff(attempt - 1)
			select {
			case <-c.opts.clockOrDefault().After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		c.mu.Lock()
		sess := c.getOrCreateSessionLocked(to)
		sess.transition(Connecting)
		c.mu.Unlock()

		if err := c.dialAndHandshake(ctx, to, sess); err != nil {
			c.log().Debug("connect attempt failed", "peer", to, "attempt", attempt, "err", err)
			var pe *ProtocolError
			if errors.As(err, &pe) && pe.Kind == HandshakeFailed {
				// The peer answered with ok:false: the rejection is final
				// for this Connect call and the session is discarded.
				c.mu.Lock()
				c.destroySessionLocked(to)
				c.mu.Unlock()
				return err
			}
			c.mu.Lock()
			if s, ok := c.sessions[to]; ok && (s.state == Connecting || s.state == Handshaking) {
				s.handshakingConn = nil
				s.transition(NoConnection)
			}
			c.mu.Unlock()
			attempt++
			continue
		}

		budget.reset()
		return nil
	}
}

// dialAndHandshake performs one dial + handshake attempt and, on
// success, adopts the connection into sess and starts its read loop.
func (c *ClientTransport) dialAndHandshake(ctx context.Context, to PeerID, sess *Session) error {
	conn, err := c.dial(ctx, to)
	if err != nil {
		return err
	}

	c.mu.Lock()
	sess.handshakingConn = conn
	sess.transition(Handshaking)
	sessionID := sess.id
	c.mu.Unlock()

	phase := newConnPhase()
	respCh := make(chan []byte, 1)
	listenCtx, cancelListen := context.WithCancel(context.Background())

	go func() {
		defer cancelListen()
		err := conn.Listen(listenCtx, func(data []byte) {
			phase.onFrame(data, func(first []byte) {
				respCh <- first
			}, func(later []byte) {
				c.onWireFrame(to, later)
			})
		})
		if err != nil {
			c.log().Debug("connection listen loop ended", "peer", to, "err", err)
		}
		close(respCh)
	}()

	hsCtx, cancelHS := context.WithTimeout(ctx, c.opts.HandshakeTimeout)
	defer cancelHS()

	advertised, err := runClientHandshake(hsCtx, &c.opts, c.self, to, sessionID, conn, respCh)
	if err != nil {
		cancelListen()
		conn.Close()
		c.dispatcher.dispatchProtocolError(&ProtocolError{Kind: HandshakeFailed, Peer: to, Cause: err, Message: "client handshake failed"})
		return err
	}

	c.mu.Lock()
	transparent := sess.advertisedID == "" || sess.advertisedID == advertised
	if !transparent {
		// The peer's advertised session id changed (e.g. the peer
		// restarted): spec §4.2/§8 require the old session be
		// destroyed and a fresh one created, mirroring
		// ServerTransport.HandleConnection's recreate-on-session-id-
		// change handling, rather than resetting state in place.
		// Detach conn from the old session first: it just finished its
		// handshake successfully and is being adopted by the fresh
		// session below, not torn down with the rest of the old one.
		sess.handshakingConn = nil
		c.destroySessionLocked(to)
		sess = c.getOrCreateSessionLocked(to)
		sess.transition(Handshaking)
	}
	sess.advertisedID = advertised
	sess.handshakingConn = nil
	sess.replaceConnection(conn, transparent)
	c.mu.Unlock()

	phase.openAndFlush(func(data []byte) { c.onWireFrame(to, data) })

	c.dispatcher.dispatchConnectionStatus(&ConnectionStatusEvent{Direction: DirConnect, Connection: conn, Peer: to})

	if c.opts.ReconnectOnConnectionDrop {
		go c.watchForDrop(listenCtx, to, conn)
	}
	return nil
}

// onWireFrame decodes one post-handshake frame and feeds it to the
// shared inbound pipeline.
func (c *ClientTransport) onWireFrame(peer PeerID, data []byte) {
	msg, err := c.opts.codecOrDefault().Decode(data)
	if err != nil {
		c.log().Warn("discarding undecodable frame", "peer", peer, "err", err)
		return
	}
	c.handleMessage(peer, msg)
}

// watchForDrop waits for the connection's read loop to end and, if the
// session is still associated with this same connection, reconnects.
func (c *ClientTransport) watchForDrop(listenCtx context.Context, peer PeerID, conn Connection) {
	<-listenCtx.Done()

	c.mu.Lock()
	sess, ok := c.sessions[peer]
	stillCurrent := ok && sess.conn == conn
	if stillCurrent {
		sess.transition(NoConnection)
		sess.conn = nil
		sess.beginGraceLocked()
	}
	closed := c.closed
	c.mu.Unlock()

	if !stillCurrent || closed {
		return
	}
	go func() {
		if err := c.Connect(context.Background(), peer); err != nil {
			c.log().Warn("automatic reconnect failed", "peer", peer, "err", err)
		}
	}()
}
