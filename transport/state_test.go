// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import "testing"

func TestIsLegalTransition(t *testing.T) {
	tests := []struct {
		name string
		from SessionState
		to   SessionState
		want bool
	}{
		{"dial", NoConnection, Connecting, true},
		{"accept", NoConnection, Handshaking, true},
		{"handshake ok", Handshaking, Connected, true},
		{"handshake fail", Handshaking, NoConnection, true},
		{"dial fail", Connecting, NoConnection, true},
		{"connecting to handshaking", Connecting, Handshaking, true},
		{"drop", Connected, NoConnection, true},
		{"connected cannot go straight to connecting", Connected, Connecting, false},
		{"no-connection cannot go straight to connected", NoConnection, Connected, false},
		{"handshaking cannot re-enter connecting", Handshaking, Connecting, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isLegalTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("isLegalTransition(%v, %v) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestSessionStateString(t *testing.T) {
	tests := []struct {
		state SessionState
		want  string
	}{
		{NoConnection, "NoConnection"},
		{Connecting, "Connecting"},
		{Handshaking, "Handshaking"},
		{Connected, "Connected"},
		{SessionState(99), "SessionState(99)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("SessionState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
