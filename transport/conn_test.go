// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// recordingConn is a [Connection] that appends every sent frame to an
// in-memory slice and never reads anything on its own; tests inject
// inbound frames by calling deliver directly.
type recordingConn struct {
	mu     sync.Mutex
	sent   [][]byte
	closed bool
	remote string
}

func (c *recordingConn) Send(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("recordingConn: closed")
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

func (c *recordingConn) Listen(ctx context.Context, onFrame func(data []byte)) error {
	<-ctx.Done()
	return nil
}

func (c *recordingConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordingConn) RemoteAddr() string {
	if c.remote == "" {
		return "recording"
	}
	return c.remote
}

func (c *recordingConn) frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

// pipeConn is a pair-wise in-memory Connection used to wire a client and
// server transport together in tests without a real socket.
type pipeConn struct {
	out    chan<- []byte
	in     <-chan []byte
	remote string

	closeOnce sync.Once
	closed    chan struct{}
}

func newPipe(remoteA, remoteB string) (a, b *pipeConn) {
	ab := make(chan []byte, 64)
	ba := make(chan []byte, 64)
	a = &pipeConn{out: ab, in: ba, remote: remoteA, closed: make(chan struct{})}
	b = &pipeConn{out: ba, in: ab, remote: remoteB, closed: make(chan struct{})}
	return a, b
}

func (p *pipeConn) Send(ctx context.Context, data []byte) error {
	select {
	case p.out <- append([]byte(nil), data...):
		return nil
	case <-p.closed:
		return fmt.Errorf("pipeConn: closed")
	}
}

func (p *pipeConn) Listen(ctx context.Context, onFrame func(data []byte)) error {
	for {
		select {
		case data := <-p.in:
			onFrame(data)
		case <-p.closed:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (p *pipeConn) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

func (p *pipeConn) RemoteAddr() string { return p.remote }

// fakeClock and fakeTimer give tests control over heartbeat/grace timer
// firing without real sleeps.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(0, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	return c.NewTimer(d).C()
}

func (c *fakeClock) NewTimer(d time.Duration) timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, fireAt: c.now.Add(d), ch: make(chan time.Time, 1)}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the fake clock forward by d and fires every timer whose
// deadline has passed.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	timers := append([]*fakeTimer(nil), c.timers...)
	c.mu.Unlock()

	for _, t := range timers {
		t.maybeFire(now)
	}
}

type fakeTimer struct {
	clock *fakeClock

	mu      sync.Mutex
	fireAt  time.Time
	stopped bool
	ch      chan time.Time
}

func (t *fakeTimer) C() <-chan time.Time { return t.ch }

func (t *fakeTimer) Reset(d time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasActive := !t.stopped
	t.stopped = false
	t.fireAt = t.clock.Now().Add(d)
	return wasActive
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}

func (t *fakeTimer) maybeFire(now time.Time) {
	t.mu.Lock()
	if t.stopped || now.Before(t.fireAt) {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.mu.Unlock()
	select {
	case t.ch <- now:
	default:
	}
}
