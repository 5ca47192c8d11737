// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package wsorigin

import (
	"net/http"
	"testing"
)

func TestAllow(t *testing.T) {
	tests := []struct {
		name   string
		host   string
		origin string
		want   bool
	}{
		{"no origin header", "example.com", "", true},
		{"loopback origin", "example.com", "http://localhost:3000", true},
		{"loopback ipv4", "example.com", "http://127.0.0.1:3000", true},
		{"loopback ipv6", "example.com", "http://[::1]:3000", true},
		{"same host", "example.com", "https://example.com", true},
		{"same host with port", "example.com:8080", "https://example.com:9090", true},
		{"cross-site origin", "example.com", "https://evil.com", false},
		{"lookalike subdomain", "example.com", "https://example.com.evil.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &http.Request{Host: tt.host, Header: http.Header{}}
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := Allow(r); got != tt.want {
				t.Errorf("Allow() = %v, want %v", got, tt.want)
			}
		})
	}
}
