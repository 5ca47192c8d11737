// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package jsoncodec provides a high-throughput [transport.Codec]
// implementation built on github.com/segmentio/encoding/json, the same
// drop-in-compatible, reflection-free JSON library the teacher SDK uses
// throughout its own wire encoding.
package jsoncodec

import (
	"github.com/duplexrpc/transport/internal/wire"
	"github.com/duplexrpc/transport/transport"

	json "github.com/segmentio/encoding/json"
)

// Codec is a [transport.Codec] that marshals with segmentio/encoding/json
// for lower allocation overhead than encoding/json, while still routing
// decode through the shared strict-unmarshal guard in internal/wire
// (that guard decodes with the standard library's encoding/json, so
// segmentio/encoding/json is used for Encode only).
type Codec struct{}

var _ transport.Codec = Codec{}

func (Codec) Encode(m *transport.Message) ([]byte, error) {
	return json.Marshal(m)
}

func (Codec) Decode(data []byte) (*transport.Message, error) {
	var m transport.Message
	if err := wire.StrictUnmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
