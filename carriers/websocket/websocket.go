// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package websocket adapts gorilla/websocket into the transport
// package's Connection capability, exchanging binary frames: each
// encoded message is sent as exactly one WebSocket binary message, and
// no transport Framer (length prefix or newline) is applied, since the
// WebSocket message boundary already delimits it.
package websocket

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/duplexrpc/transport/internal/wsorigin"
	"github.com/duplexrpc/transport/transport"
)

const subprotocol = "duplexrpc"

// Dial opens a client-side Connection to url.
func Dial(ctx context.Context, url string, header http.Header, dialer *websocket.Dialer) (transport.Connection, error) {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	d := *dialer
	d.Subprotocols = []string{subprotocol}

	conn, resp, err := d.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket: dial failed: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("websocket: dial failed: %w", err)
	}
	return &conn_{conn: conn}, nil
}

// Upgrader upgrades an incoming HTTP request to a server-side
// Connection. It wraps websocket.Upgrader so callers can plug it
// straight into an http.Handler.
type Upgrader struct {
	websocket.Upgrader
}

// NewUpgrader returns an Upgrader configured for the duplexrpc
// subprotocol. By default it accepts same-host and loopback origins
// only (see internal/wsorigin); override CheckOrigin on the embedded
// websocket.Upgrader to allow cross-origin upgrades.
func NewUpgrader() *Upgrader {
	u := &Upgrader{}
	u.Subprotocols = []string{subprotocol}
	u.CheckOrigin = wsorigin.Allow
	return u
}

// Upgrade upgrades r/w to a WebSocket-backed Connection.
func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (transport.Connection, error) {
	c, err := u.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket: upgrade failed: %w", err)
	}
	return &conn_{conn: c}, nil
}

// conn_ implements transport.Connection over a *websocket.Conn. The
// trailing underscore avoids colliding with the gorilla package name
// inside this file.
type conn_ struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

func (c *conn_) Send(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(deadline)
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (c *conn_) Listen(ctx context.Context, onFrame func(data []byte)) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.conn.Close()
		case <-done:
		}
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("websocket: read error: %w", err)
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		onFrame(data)
	}
}

func (c *conn_) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *conn_) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
