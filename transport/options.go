// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// ProtocolVersion is the version string this implementation advertises
// and requires an exact byte match on during handshake.
const ProtocolVersion = "2025-06-18-transport-core"

// DefaultMaxBufferSizeBytes is the accumulation-buffer bound a carrier's
// framer uses when Options.MaxBufferSizeBytes is left at 0. Carriers
// that construct a Framer themselves (e.g. carriers/unixsocket,
// carriers/stdio) take this same value as their own default so that an
// Options.MaxBufferSizeBytes override and a carrier-level override stay
// in sync when both are left unset.
const DefaultMaxBufferSizeBytes = 16 << 20

// MetaConstructor produces application-defined handshake metadata on the
// client side, matching the schema declared in Options.HandshakeMetadataSchema.
type MetaConstructor func(ctx context.Context) (json.RawMessage, error)

// MetaValidator validates raw handshake metadata on the server side and,
// on acceptance, returns a parsed record to associate with the session.
// previous is the parsed metadata from an earlier handshake for the same
// peer, if any (nil otherwise). Returning ok=false rejects the
// handshake.
type MetaValidator func(ctx context.Context, raw, previous json.RawMessage) (parsed json.RawMessage, ok bool)

// Options enumerates every tunable of a [ClientTransport] or
// [ServerTransport]. The zero value is not directly usable; construct
// via DefaultOptions and override individual fields.
type Options struct {
	// HeartbeatInterval is the period of the keepalive tick sent on a
	// Connected session.
	HeartbeatInterval time.Duration
	// HeartbeatsUntilDead closes the underlying connection (not the
	// session) after this many consecutive missed heartbeat intervals.
	HeartbeatsUntilDead int
	// SessionDisconnectGrace bounds how long a session without a
	// connection is kept alive awaiting reconnection.
	SessionDisconnectGrace time.Duration
	// HandshakeTimeout bounds how long a connection may spend in the
	// Handshaking state before it is abandoned.
	HandshakeTimeout time.Duration

	// Codec encodes and decodes the wire envelope. Defaults to the
	// package's JSON codec if nil.
	Codec Codec
	// MaxBufferSizeBytes bounds the framer's accumulation buffer.
	// Defaults to 16 MiB if 0.
	MaxBufferSizeBytes int

	// AttemptBudgetCapacity is the leaky bucket's token capacity: the
	// max number of consecutive dial attempts before RetriesExceeded.
	AttemptBudgetCapacity int
	// BudgetRestoreInterval is the wall-clock interval per restored
	// token.
	BudgetRestoreInterval time.Duration
	// BaseInterval is the base duration for exponential backoff.
	BaseInterval time.Duration
	// MaxJitter is the maximum uniform jitter added to each backoff.
	MaxJitter time.Duration
	// MaxBackoff caps the computed backoff delay.
	MaxBackoff time.Duration
	// ReconnectOnConnectionDrop gates whether losing a post-handshake
	// connection triggers automatic re-dial on the client.
	ReconnectOnConnectionDrop bool

	// ProtocolVersionOverride overrides the default protocol version string
	// compared during handshake. Defaults to ProtocolVersion if empty.
	ProtocolVersionOverride string

	// HandshakeMetadataSchema, if non-nil, is used to schema-validate
	// handshake metadata on both ends: on the client, the output of
	// ConstructMeta; on the server, the raw metadata before ValidateMeta
	// is invoked.
	HandshakeMetadataSchema *jsonschema.Schema
	// ConstructMeta is invoked on the client to produce metadata for a
	// fresh connection. Optional.
	ConstructMeta MetaConstructor
	// ValidateMeta is invoked on the server to validate and parse raw
	// metadata. Optional; a nil validator accepts any metadata as-is.
	ValidateMeta MetaValidator

	// Log receives structured diagnostics. Defaults to slog.Default()
	// if nil. There is no package-level logger: every Session and
	// Transport takes this capability at construction time.
	Log *slog.Logger

	clock clock // test-only hook; nil means realClock{}
}

// DefaultOptions returns an Options populated with the defaults named in
// spec §4.5 and §6. HeartbeatInterval/HeartbeatsUntilDead defaults are an
// implementer's choice the spec leaves unspecified beyond naming the
// parameters; see DESIGN.md for the rationale.
func DefaultOptions() Options {
	return Options{
		HeartbeatInterval:         10 * time.Second,
		HeartbeatsUntilDead:       3,
		SessionDisconnectGrace:    30 * time.Second,
		HandshakeTimeout:          10 * time.Second,
		MaxBufferSizeBytes:        DefaultMaxBufferSizeBytes,
		AttemptBudgetCapacity:     5,
		BudgetRestoreInterval:     200 * time.Millisecond,
		BaseInterval:              250 * time.Millisecond,
		MaxJitter:                 200 * time.Millisecond,
		MaxBackoff:                32 * time.Second,
		ReconnectOnConnectionDrop: true,
	}
}

func (o *Options) protocolVersion() string {
	if o.ProtocolVersionOverride != "" {
		return o.ProtocolVersionOverride
	}
	return ProtocolVersion
}

func (o *Options) logger() *slog.Logger {
	if o.Log != nil {
		return o.Log
	}
	return slog.Default()
}

func (o *Options) clockOrDefault() clock {
	if o.clock != nil {
		return o.clock
	}
	return realClock{}
}

func (o *Options) codecOrDefault() Codec {
	if o.Codec != nil {
		return o.Codec
	}
	return defaultCodec
}

// MaxBufferSize returns the effective accumulation-buffer bound:
// MaxBufferSizeBytes if set, else DefaultMaxBufferSizeBytes. The
// transport package does not apply this bound itself: carriers take it
// as their maxFrameSize argument (carriers/unixsocket.Dial/Listen,
// carriers/stdio.New), and this accessor returns the value to pass them.
func (o *Options) MaxBufferSize() int {
	if o.MaxBufferSizeBytes > 0 {
		return o.MaxBufferSizeBytes
	}
	return DefaultMaxBufferSizeBytes
}
