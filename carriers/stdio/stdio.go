// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package stdio adapts os.Stdin/os.Stdout into the transport package's
// Connection capability using the core newline framer. This is valid
// per spec §4.7 only because the paired codec (the package's JSON
// codec) always escapes embedded newlines.
package stdio

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/duplexrpc/transport/transport"
)

// New wraps the process's standard input/output as a single
// bidirectional transport.Connection. There is exactly one of these per
// process; it has no notion of a remote address. maxFrameSize bounds the
// newline framer's accumulation buffer; 0 uses
// transport.DefaultMaxBufferSizeBytes (pass opts.MaxBufferSize() to keep
// this in sync with the Options governing the resulting session).
func New(maxFrameSize int) transport.Connection {
	if maxFrameSize <= 0 {
		maxFrameSize = transport.DefaultMaxBufferSizeBytes
	}
	return &conn{
		in:     bufio.NewReader(os.Stdin),
		out:    os.Stdout,
		framer: transport.NewlineFramer{MaxSize: maxFrameSize},
	}
}

type conn struct {
	in     *bufio.Reader
	out    io.Writer
	framer transport.Framer

	writeMu sync.Mutex

	closeOnce sync.Once
}

func (c *conn) Send(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.framer.WriteFrame(c.out, data)
}

func (c *conn) Listen(ctx context.Context, onFrame func(data []byte)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		frame, err := c.framer.ReadFrame(c.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		onFrame(frame)
	}
}

// Close is a no-op: closing the process's stdio streams is the
// process's own responsibility, not this Connection's.
func (c *conn) Close() error {
	c.closeOnce.Do(func() {})
	return nil
}

func (c *conn) RemoteAddr() string {
	return "stdio"
}
