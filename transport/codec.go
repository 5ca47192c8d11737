// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"encoding/json"

	"github.com/duplexrpc/transport/internal/wire"
)

// jsonCodec is the package's built-in, dependency-free [Codec]
// implementation using the standard library's encoding/json. It is the
// default when Options.Codec is nil.
//
// For higher-throughput applications, codec/jsoncodec provides a
// drop-in replacement built on the teacher's segmentio/encoding/json;
// it is a separate package so that transport itself stays free of that
// import (transport must not depend on any Codec implementation, only
// on the Codec interface, to keep the dependency arrow pointing one way
// as required by spec §1).
type jsonCodec struct{}

var defaultCodec Codec = jsonCodec{}

func (jsonCodec) Encode(m *Message) ([]byte, error) {
	return json.Marshal(m)
}

func (jsonCodec) Decode(data []byte) (*Message, error) {
	var m Message
	if err := wire.StrictUnmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
