// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"encoding/json"
	"testing"
)

func TestRunServerHandshakeVersionMismatch(t *testing.T) {
	opts := DefaultOptions()
	frame, err := encodeHandshakeRequest(opts.codecOrDefault(), "client", "server", "csid", "wrong-version", nil)
	if err != nil {
		t.Fatalf("encodeHandshakeRequest: %v", err)
	}

	_, status, peer, err := runServerHandshake(context.Background(), &opts, "server", frame, nil)
	if err == nil {
		t.Fatal("want error on version mismatch, got nil")
	}
	if status.OK {
		t.Error("status.OK = true, want false")
	}
	if peer != "client" {
		t.Errorf("peer = %q, want %q", peer, "client")
	}
}

func TestRunServerHandshakeSuccess(t *testing.T) {
	opts := DefaultOptions()
	frame, err := encodeHandshakeRequest(opts.codecOrDefault(), "client", "server", "csid", opts.protocolVersion(), nil)
	if err != nil {
		t.Fatalf("encodeHandshakeRequest: %v", err)
	}

	result, status, peer, err := runServerHandshake(context.Background(), &opts, "server", frame, nil)
	if err != nil {
		t.Fatalf("runServerHandshake: %v", err)
	}
	if !status.OK {
		t.Errorf("status.OK = false, want true")
	}
	if peer != "client" || result.peer != "client" {
		t.Errorf("peer = %q / result.peer = %q, want %q", peer, result.peer, "client")
	}
	if result.advertisedID != "csid" {
		t.Errorf("advertisedID = %q, want %q", result.advertisedID, "csid")
	}
}

func TestRunServerHandshakeNotAHandshakeFrame(t *testing.T) {
	opts := DefaultOptions()
	frame, err := opts.codecOrDefault().Encode(&Message{From: "client", To: "server", Payload: []byte(`{"x":1}`)})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	_, status, _, err := runServerHandshake(context.Background(), &opts, "server", frame, nil)
	if err == nil {
		t.Fatal("want error for non-handshake first frame, got nil")
	}
	if status.OK {
		t.Error("status.OK = true, want false")
	}
}

func TestRunServerHandshakeMetadataRejected(t *testing.T) {
	opts := DefaultOptions()
	opts.ValidateMeta = func(ctx context.Context, raw, previous json.RawMessage) (json.RawMessage, bool) {
		return nil, false
	}
	frame, err := encodeHandshakeRequest(opts.codecOrDefault(), "client", "server", "csid", opts.protocolVersion(), []byte(`{"token":"x"}`))
	if err != nil {
		t.Fatalf("encodeHandshakeRequest: %v", err)
	}

	_, status, _, err := runServerHandshake(context.Background(), &opts, "server", frame, nil)
	if err == nil {
		t.Fatal("want error when ValidateMeta rejects, got nil")
	}
	if status.OK {
		t.Error("status.OK = true, want false")
	}
}

func TestRunClientHandshakeSuccess(t *testing.T) {
	opts := DefaultOptions()
	conn := &recordingConn{}
	respCh := make(chan []byte, 1)

	respFrame, err := encodeHandshakeResponse(opts.codecOrDefault(), "server", "client", handshakeStatus{OK: true, SessionID: "ssid"})
	if err != nil {
		t.Fatalf("encodeHandshakeResponse: %v", err)
	}
	respCh <- respFrame

	advertised, err := runClientHandshake(context.Background(), &opts, "client", "server", "csid", conn, respCh)
	if err != nil {
		t.Fatalf("runClientHandshake: %v", err)
	}
	if advertised != "ssid" {
		t.Errorf("advertised = %q, want %q", advertised, "ssid")
	}
	if len(conn.frames()) != 1 {
		t.Fatalf("conn sent %d frames, want 1 (the request)", len(conn.frames()))
	}
}

func TestRunClientHandshakeRejected(t *testing.T) {
	opts := DefaultOptions()
	conn := &recordingConn{}
	respCh := make(chan []byte, 1)

	respFrame, _ := encodeHandshakeResponse(opts.codecOrDefault(), "server", "client", handshakeStatus{OK: false, Reason: "nope"})
	respCh <- respFrame

	_, err := runClientHandshake(context.Background(), &opts, "client", "server", "csid", conn, respCh)
	if err == nil {
		t.Fatal("want error on rejection, got nil")
	}
	pe, ok := err.(*ProtocolError)
	if !ok {
		t.Fatalf("err type = %T, want *ProtocolError", err)
	}
	if pe.Kind != HandshakeFailed {
		t.Errorf("Kind = %v, want HandshakeFailed", pe.Kind)
	}
}

func TestRunClientHandshakeConnectionClosedBeforeResponse(t *testing.T) {
	opts := DefaultOptions()
	conn := &recordingConn{}
	respCh := make(chan []byte)
	close(respCh)

	if _, err := runClientHandshake(context.Background(), &opts, "client", "server", "csid", conn, respCh); err == nil {
		t.Fatal("want error when respCh closes with no response, got nil")
	}
}
