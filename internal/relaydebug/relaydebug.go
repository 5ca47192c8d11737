// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package relaydebug provides a mechanism to configure transport
// compatibility and tracing parameters via the DUPLEXRPCDEBUG
// environment variable.
//
// The value of DUPLEXRPCDEBUG is a comma-separated list of key=value
// pairs. For example:
//
//	DUPLEXRPCDEBUG=frames=1,handshake=1
package relaydebug

import (
	"fmt"
	"os"
	"strings"
)

const debugEnvKey = "DUPLEXRPCDEBUG"

var params map[string]string

func init() {
	var err error
	params, err = parseParams(os.Getenv(debugEnvKey))
	if err != nil {
		panic(err)
	}
}

// Value returns the value of the debug parameter with the given key.
// It returns an empty string if the key is not set.
func Value(key string) string {
	return params[key]
}

// Frames reports whether per-frame tracing ("frames=1") is enabled.
func Frames() bool {
	return Value("frames") == "1"
}

// Handshake reports whether verbose handshake tracing ("handshake=1")
// is enabled.
func Handshake() bool {
	return Value("handshake") == "1"
}

func parseParams(envValue string) (map[string]string, error) {
	if envValue == "" {
		return nil, nil
	}

	out := make(map[string]string)
	for part := range strings.SplitSeq(envValue, ",") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("DUPLEXRPCDEBUG: invalid format: %q", part)
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out, nil
}
