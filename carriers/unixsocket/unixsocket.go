// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package unixsocket adapts a Unix domain socket net.Conn into the
// transport package's Connection capability, using the core
// length-prefix framer to delimit messages.
package unixsocket

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/duplexrpc/transport/transport"
)

// Dial connects to a Unix domain socket at path. maxFrameSize bounds the
// length-prefix framer's accumulation buffer; 0 uses
// transport.DefaultMaxBufferSizeBytes (pass opts.MaxBufferSize() to keep
// this in sync with the Options governing the resulting session).
func Dial(ctx context.Context, path string, maxFrameSize int) (transport.Connection, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, err
	}
	return New(c, transport.LengthPrefixFramer{MaxSize: frameSizeOrDefault(maxFrameSize)}), nil
}

// Listen starts accepting Unix domain socket connections at path,
// invoking onConn for each accepted connection until ctx is done.
// maxFrameSize is as in Dial.
func Listen(ctx context.Context, path string, maxFrameSize int, onConn func(transport.Connection)) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "unix", path)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		c, err := ln.Accept()
		if err != nil {
			return err
		}
		go onConn(New(c, transport.LengthPrefixFramer{MaxSize: frameSizeOrDefault(maxFrameSize)}))
	}
}

func frameSizeOrDefault(maxFrameSize int) int {
	if maxFrameSize > 0 {
		return maxFrameSize
	}
	return transport.DefaultMaxBufferSizeBytes
}

// New wraps an already-established net.Conn (typically over a Unix
// domain socket) as a transport.Connection, framed with framer.
func New(c net.Conn, framer transport.Framer) transport.Connection {
	return &conn{c: c, r: bufio.NewReader(c), framer: framer}
}

type conn struct {
	c      net.Conn
	r      *bufio.Reader
	framer transport.Framer

	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

func (c *conn) Send(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		c.c.SetWriteDeadline(deadline)
	}
	return c.framer.WriteFrame(c.c, data)
}

func (c *conn) Listen(ctx context.Context, onFrame func(data []byte)) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.c.Close()
		case <-done:
		}
	}()

	for {
		frame, err := c.framer.ReadFrame(c.r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		onFrame(frame)
	}
}

func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.c.Close()
	})
	return c.closeErr
}

func (c *conn) RemoteAddr() string {
	return c.c.RemoteAddr().String()
}
