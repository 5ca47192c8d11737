// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Framer delimits a byte stream into discrete codec-encoded frames. It
// is orthogonal to [Codec]: the framer never looks inside a frame.
type Framer interface {
	// WriteFrame writes one frame's worth of already-encoded bytes,
	// including whatever delimiter the framer uses.
	WriteFrame(w io.Writer, payload []byte) error
	// ReadFrame reads exactly one frame from r, returning the decoded
	// payload bytes (delimiter stripped). It returns io.EOF if the
	// stream ends cleanly between frames.
	ReadFrame(r *bufio.Reader) ([]byte, error)
}

// ErrFrameTooLarge is returned by ReadFrame when a frame would exceed
// the framer's configured maximum size.
var ErrFrameTooLarge = fmt.Errorf("transport: frame exceeds max buffer size")

// LengthPrefixFramer prepends a 4-byte big-endian unsigned length to
// each frame, per spec §4.7. It is the default framer.
type LengthPrefixFramer struct {
	// MaxSize bounds the accumulation buffer. A frame whose declared
	// length exceeds MaxSize fails the connection with ErrFrameTooLarge.
	MaxSize int
}

func (f LengthPrefixFramer) WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func (f LengthPrefixFramer) ReadFrame(r *bufio.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if f.MaxSize > 0 && int(n) > f.MaxSize {
		return nil, ErrFrameTooLarge
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// NewlineFramer delimits frames with a trailing '\n'. It is equivalent
// in semantics to LengthPrefixFramer but is NOT length-safe against a
// payload containing an embedded newline; use it only when the paired
// [Codec] guarantees its output never contains an unescaped newline
// (the JSON codec does, since json.Marshal always escapes control
// characters inside strings).
type NewlineFramer struct {
	MaxSize int
}

func (f NewlineFramer) WriteFrame(w io.Writer, payload []byte) error {
	if _, err := w.Write(payload); err != nil {
		return err
	}
	_, err := w.Write([]byte{'\n'})
	return err
}

func (f NewlineFramer) ReadFrame(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(line) > 0 {
			return bytesTrimNewline(line), nil
		}
		return nil, err
	}
	if f.MaxSize > 0 && len(line) > f.MaxSize {
		return nil, ErrFrameTooLarge
	}
	return bytesTrimNewline(line), nil
}

func bytesTrimNewline(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		return b[:n-1]
	}
	return b
}
