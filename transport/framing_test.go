// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestLengthPrefixFramerRoundTrip(t *testing.T) {
	f := LengthPrefixFramer{MaxSize: 1024}
	var buf bytes.Buffer

	payloads := [][]byte{[]byte("hello"), []byte(""), []byte("a bit longer payload")}
	for _, p := range payloads {
		if err := f.WriteFrame(&buf, p); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}

	r := bufio.NewReader(&buf)
	for i, want := range payloads {
		got, err := f.ReadFrame(r)
		if err != nil {
			t.Fatalf("ReadFrame[%d]: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("ReadFrame[%d] = %q, want %q", i, got, want)
		}
	}
	if _, err := f.ReadFrame(r); !errors.Is(err, io.EOF) {
		t.Errorf("ReadFrame after last frame: err = %v, want io.EOF", err)
	}
}

func TestLengthPrefixFramerTooLarge(t *testing.T) {
	f := LengthPrefixFramer{MaxSize: 4}
	var buf bytes.Buffer
	LengthPrefixFramer{}.WriteFrame(&buf, []byte("12345"))

	if _, err := f.ReadFrame(bufio.NewReader(&buf)); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("ReadFrame over MaxSize: err = %v, want ErrFrameTooLarge", err)
	}
}

func TestNewlineFramerRoundTrip(t *testing.T) {
	f := NewlineFramer{MaxSize: 1024}
	var buf bytes.Buffer
	payloads := [][]byte{[]byte(`{"a":1}`), []byte(`{"b":2}`)}
	for _, p := range payloads {
		if err := f.WriteFrame(&buf, p); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}

	r := bufio.NewReader(&buf)
	for i, want := range payloads {
		got, err := f.ReadFrame(r)
		if err != nil {
			t.Fatalf("ReadFrame[%d]: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("ReadFrame[%d] = %q, want %q", i, got, want)
		}
	}
}

func TestNewlineFramerLastFrameWithoutTrailingNewline(t *testing.T) {
	f := NewlineFramer{}
	r := bufio.NewReader(bytes.NewReader([]byte("no newline at all")))
	got, err := f.ReadFrame(r)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if string(got) != "no newline at all" {
		t.Errorf("ReadFrame = %q, want %q", got, "no newline at all")
	}
}
