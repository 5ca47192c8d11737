// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/duplexrpc/transport/internal/relaydebug"
)

// handshakeReqPayload is the wire shape of a HANDSHAKE_REQ message's
// payload (spec §4.4).
type handshakeReqPayload struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocolVersion"`
	SessionID       SessionID       `json:"sessionId"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
}

// handshakeStatus is the status sub-object of a HANDSHAKE_RESP payload.
type handshakeStatus struct {
	OK        bool      `json:"ok"`
	SessionID SessionID `json:"sessionId,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

type handshakeRespPayload struct {
	Type   string          `json:"type"`
	Status handshakeStatus `json:"status"`
}

func encodeHandshakeRequest(codec Codec, from, to PeerID, sessionID SessionID, protocolVersion string, metadata json.RawMessage) ([]byte, error) {
	payload, err := json.Marshal(handshakeReqPayload{
		Type:            controlTypeHandshakeReq,
		ProtocolVersion: protocolVersion,
		SessionID:       sessionID,
		Metadata:        metadata,
	})
	if err != nil {
		return nil, err
	}
	return codec.Encode(&Message{From: from, To: to, Payload: payload})
}

func decodeHandshakeRequest(codec Codec, data []byte) (*Message, *handshakeReqPayload, error) {
	msg, err := codec.Decode(data)
	if err != nil {
		return nil, nil, err
	}
	var p handshakeReqPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return nil, nil, err
	}
	if p.Type != controlTypeHandshakeReq {
		return msg, &p, fmt.Errorf("transport: first frame is not a handshake request (type=%q)", p.Type)
	}
	return msg, &p, nil
}

func encodeHandshakeResponse(codec Codec, from, to PeerID, status handshakeStatus) ([]byte, error) {
	payload, err := json.Marshal(handshakeRespPayload{Type: controlTypeHandshakeResp, Status: status})
	if err != nil {
		return nil, err
	}
	return codec.Encode(&Message{From: from, To: to, Payload: payload})
}

func decodeHandshakeResponse(codec Codec, data []byte) (*handshakeRespPayload, error) {
	msg, err := codec.Decode(data)
	if err != nil {
		return nil, err
	}
	var p handshakeRespPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return nil, err
	}
	if p.Type != controlTypeHandshakeResp {
		return nil, fmt.Errorf("transport: frame is not a handshake response (type=%q)", p.Type)
	}
	return &p, nil
}

// validateMetaSchema schema-checks raw against schema, if one is
// configured; a nil schema accepts anything.
func validateMetaSchema(schema *jsonschema.Schema, raw json.RawMessage) error {
	if schema == nil || len(raw) == 0 {
		return nil
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("transport: resolving handshake metadata schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("transport: handshake metadata is not valid JSON: %w", err)
	}
	return resolved.Validate(v)
}

// connPhase demultiplexes the frames read off a single Connection's
// Listen loop during connection setup: the first frame is routed to the
// handshake procedure; everything arriving afterward, until the
// handshake validates, is buffered and flushed once openAndFlush is
// called (spec §4.4 step 1, server-side). This is the concrete
// realization of "buffer bytes received after the first frame while the
// handshake is validated."
type connPhase struct {
	mu       chan struct{} // binary semaphore; avoids importing sync for one bool+slice pair
	gotFirst bool
	open     bool
	buffered [][]byte
}

func newConnPhase() *connPhase {
	p := &connPhase{mu: make(chan struct{}, 1)}
	p.mu <- struct{}{}
	return p
}

func (p *connPhase) lock()   { <-p.mu }
func (p *connPhase) unlock() { p.mu <- struct{}{} }

// onFrame must be passed as the onFrame callback to Connection.Listen.
// first receives exactly the first frame ever seen on this connection;
// deliver receives every later frame once openAndFlush has been called,
// or immediately if it already has been.
func (p *connPhase) onFrame(data []byte, first, deliver func([]byte)) {
	p.lock()
	if !p.gotFirst {
		p.gotFirst = true
		p.unlock()
		first(data)
		return
	}
	if p.open {
		p.unlock()
		deliver(data)
		return
	}
	p.buffered = append(p.buffered, data)
	p.unlock()
}

func (p *connPhase) openAndFlush(deliver func([]byte)) {
	p.lock()
	p.open = true
	buffered := p.buffered
	p.buffered = nil
	p.unlock()
	for _, data := range buffered {
		deliver(data)
	}
}

// serverHandshakeResult is what a successful server-side handshake
// procedure produces, for the caller (ServerTransport.HandleConnection)
// to adopt.
type serverHandshakeResult struct {
	peer         PeerID
	advertisedID SessionID
	parsedMeta   json.RawMessage
}

// runServerHandshake implements spec §4.4's server-side procedure given
// the raw first frame, which it decodes itself. It does not touch the session
// registry; the caller performs the recreate-if-session-id-changed step
// and adopts the connection under the transport lock.
func runServerHandshake(ctx context.Context, opts *Options, self PeerID, firstFrame []byte, previousMeta func(peer PeerID) json.RawMessage) (*serverHandshakeResult, *handshakeStatus, PeerID, error) {
	msg, req, err := decodeHandshakeRequest(opts.codecOrDefault(), firstFrame)
	if err != nil {
		return nil, &handshakeStatus{OK: false, Reason: "first frame is not a handshake request"}, "", err
	}
	peer := msg.From

	if relaydebug.Handshake() {
		opts.logger().Debug("server handshake received", "peer", peer, "sessionId", req.SessionID, "protocolVersion", req.ProtocolVersion)
	}

	if req.ProtocolVersion != opts.protocolVersion() {
		return nil, &handshakeStatus{OK: false, Reason: fmt.Sprintf("incorrect version: have %q, want %q", req.ProtocolVersion, opts.protocolVersion())}, peer, fmt.Errorf("transport: handshake version mismatch")
	}

	if err := validateMetaSchema(opts.HandshakeMetadataSchema, req.Metadata); err != nil {
		return nil, &handshakeStatus{OK: false, Reason: "malformed handshake metadata"}, peer, err
	}

	var parsed json.RawMessage
	if opts.ValidateMeta != nil {
		var prev json.RawMessage
		if previousMeta != nil {
			prev = previousMeta(peer)
		}
		p, ok := opts.ValidateMeta(ctx, req.Metadata, prev)
		if !ok {
			return nil, &handshakeStatus{OK: false, Reason: "handshake metadata rejected"}, peer, fmt.Errorf("transport: handshake metadata rejected")
		}
		parsed = p
	}

	return &serverHandshakeResult{
		peer:         peer,
		advertisedID: req.SessionID,
		parsedMeta:   parsed,
	}, &handshakeStatus{OK: true}, peer, nil
}

// runClientHandshake implements spec §4.4's client-side procedure: build
// metadata, send the request, and wait for either respCh to deliver the
// first frame or ctx to expire.
func runClientHandshake(ctx context.Context, opts *Options, self, to PeerID, sessionID SessionID, conn Connection, respCh <-chan []byte) (SessionID, error) {
	var metadata json.RawMessage
	if opts.ConstructMeta != nil {
		m, err := opts.ConstructMeta(ctx)
		if err != nil {
			return "", fmt.Errorf("transport: constructing handshake metadata: %w", err)
		}
		if err := validateMetaSchema(opts.HandshakeMetadataSchema, m); err != nil {
			return "", fmt.Errorf("transport: locally constructed handshake metadata failed schema validation: %w", err)
		}
		metadata = m
	}

	reqFrame, err := encodeHandshakeRequest(opts.codecOrDefault(), self, to, sessionID, opts.protocolVersion(), metadata)
	if err != nil {
		return "", fmt.Errorf("transport: encoding handshake request: %w", err)
	}
	if err := conn.Send(ctx, reqFrame); err != nil {
		return "", fmt.Errorf("transport: sending handshake request: %w", err)
	}

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("transport: handshake timed out: %w", ctx.Err())
	case data, ok := <-respCh:
		if !ok {
			return "", fmt.Errorf("transport: connection closed before handshake response")
		}
		resp, err := decodeHandshakeResponse(opts.codecOrDefault(), data)
		if err != nil {
			return "", err
		}
		if !resp.Status.OK {
			return "", &ProtocolError{Kind: HandshakeFailed, Peer: to, Message: resp.Status.Reason}
		}
		return resp.Status.SessionID, nil
	}
}
