// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import "testing"

func newTestTransport() *Transport {
	opts := DefaultOptions()
	opts.clock = newFakeClock()
	return newTransportCore("self", opts)
}

func TestSessionSendBuffersWhenDisconnected(t *testing.T) {
	tr := newTestTransport()
	sess := newSession(tr, "sid", "self", "peer")

	if _, err := sess.send(PartialMessage{To: "peer", Payload: []byte(`{"a":1}`)}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := sess.send(PartialMessage{To: "peer", Payload: []byte(`{"a":2}`)}); err != nil {
		t.Fatalf("send: %v", err)
	}

	if sess.seq != 2 {
		t.Errorf("seq = %d, want 2", sess.seq)
	}
	if len(sess.sendBuffer) != 2 {
		t.Fatalf("sendBuffer len = %d, want 2", len(sess.sendBuffer))
	}
	if sess.sendBuffer[0].Seq != 0 || sess.sendBuffer[1].Seq != 1 {
		t.Errorf("sendBuffer seqs = %d, %d, want 0, 1", sess.sendBuffer[0].Seq, sess.sendBuffer[1].Seq)
	}
}

func TestSessionSendAfterDestroyedFails(t *testing.T) {
	tr := newTestTransport()
	sess := newSession(tr, "sid", "self", "peer")
	sess.closeLocked()

	if _, err := sess.send(PartialMessage{To: "peer"}); err == nil {
		t.Error("send on destroyed session: want error, got nil")
	}
}

func TestSessionPruneAcked(t *testing.T) {
	tr := newTestTransport()
	sess := newSession(tr, "sid", "self", "peer")
	for i := 0; i < 3; i++ {
		if _, err := sess.send(PartialMessage{To: "peer"}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	sess.pruneAcked(2)

	if len(sess.sendBuffer) != 1 {
		t.Fatalf("sendBuffer len = %d, want 1", len(sess.sendBuffer))
	}
	if sess.sendBuffer[0].Seq != 2 {
		t.Errorf("remaining seq = %d, want 2", sess.sendBuffer[0].Seq)
	}
}

func TestSessionPruneAckedEmptyBuffer(t *testing.T) {
	tr := newTestTransport()
	sess := newSession(tr, "sid", "self", "peer")
	sess.pruneAcked(5) // must not panic on an empty buffer
	if len(sess.sendBuffer) != 0 {
		t.Errorf("sendBuffer len = %d, want 0", len(sess.sendBuffer))
	}
}

func TestSessionReplaceConnectionTransparentFlushesBuffer(t *testing.T) {
	tr := newTestTransport()
	sess := newSession(tr, "sid", "self", "peer")
	sess.send(PartialMessage{To: "peer", Payload: []byte(`{"a":1}`)})
	sess.send(PartialMessage{To: "peer", Payload: []byte(`{"a":2}`)})

	conn := &recordingConn{}
	sess.replaceConnection(conn, true)

	if sess.state != Connected {
		t.Errorf("state = %v, want Connected", sess.state)
	}
	if got := len(conn.frames()); got != 2 {
		t.Errorf("flushed frames = %d, want 2", got)
	}
	if len(sess.sendBuffer) != 2 {
		t.Errorf("sendBuffer len after transparent reconnect = %d, want 2 (preserved)", len(sess.sendBuffer))
	}
}

func TestSessionReplaceConnectionNonTransparentResetsState(t *testing.T) {
	tr := newTestTransport()
	sess := newSession(tr, "sid", "self", "peer")
	sess.send(PartialMessage{To: "peer"})
	sess.ack = 7

	conn := &recordingConn{}
	sess.replaceConnection(conn, false)

	if sess.seq != 0 || sess.ack != 0 {
		t.Errorf("seq/ack = %d/%d, want 0/0 after non-transparent replace", sess.seq, sess.ack)
	}
	if len(sess.sendBuffer) != 0 {
		t.Errorf("sendBuffer len = %d, want 0 after non-transparent replace", len(sess.sendBuffer))
	}
}

func TestSessionHeartbeatNeverBuffered(t *testing.T) {
	tr := newTestTransport()
	sess := newSession(tr, "sid", "self", "peer")
	conn := &recordingConn{}
	sess.conn = conn
	sess.state = Connected

	sess.sendHeartbeatLocked()

	if len(sess.sendBuffer) != 0 {
		t.Errorf("sendBuffer len after heartbeat = %d, want 0", len(sess.sendBuffer))
	}
	frames := conn.frames()
	if len(frames) != 1 {
		t.Fatalf("frames sent = %d, want 1", len(frames))
	}
	msg, err := defaultCodec.Decode(frames[0])
	if err != nil {
		t.Fatalf("decode heartbeat frame: %v", err)
	}
	if !msg.isAckOnly() {
		t.Error("heartbeat frame is not ack-only")
	}
	if msg.StreamID != heartbeatStreamID {
		t.Errorf("heartbeat streamID = %q, want %q", msg.StreamID, heartbeatStreamID)
	}
}
