// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package wsorigin provides the default Origin check used by
// carriers/websocket's Upgrader: accept same-host and loopback origins,
// reject everything else unless the caller overrides CheckOrigin.
package wsorigin

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// Allow reports whether r's Origin header names the same host as the
// request itself, or a loopback address. It is the conservative default
// for a WebSocket upgrade handler: wide open (return true
// unconditionally) invites cross-site WebSocket hijacking, so callers
// that genuinely need other origins should set CheckOrigin explicitly.
func Allow(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	host := originHost(origin)
	if host == "" {
		return false
	}
	if isLoopback(host) {
		return true
	}
	return strings.EqualFold(host, stripPort(r.Host))
}

func originHost(origin string) string {
	origin = strings.TrimPrefix(origin, "http://")
	origin = strings.TrimPrefix(origin, "https://")
	origin = strings.TrimPrefix(origin, "ws://")
	origin = strings.TrimPrefix(origin, "wss://")
	if i := strings.IndexByte(origin, '/'); i >= 0 {
		origin = origin[:i]
	}
	return stripPort(origin)
}

func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return strings.Trim(addr, "[]")
	}
	return host
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	return ip.IsLoopback()
}
