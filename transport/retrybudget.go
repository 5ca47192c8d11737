// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// retryBudget is a leaky-bucket cap on reconnect attempts for a single
// peer. It wraps a [rate.Limiter] configured to restore one token every
// BudgetRestoreInterval up to AttemptBudgetCapacity tokens, and computes
// the exponential backoff-with-jitter delay for each attempt.
//
// A [rate.Limiter] is built for smoothing request rate, not for counting
// "attempts since last success"; here it is repurposed as the token
// store for the leaky bucket described in spec §4.5, since the pack's
// stack does not carry a dedicated leaky-bucket or token-bucket library
// and rate.Limiter already implements exactly the restore-over-time
// semantics the budget needs.
type retryBudget struct {
	limiter *rate.Limiter

	baseInterval time.Duration
	maxJitter    time.Duration
	maxBackoff   time.Duration

	mu       sync.Mutex
	attempts int
}

func newRetryBudget(capacity int, restoreInterval, baseInterval, maxJitter, maxBackoff time.Duration) *retryBudget {
	if capacity <= 0 {
		capacity = 1
	}
	return &retryBudget{
		limiter:      rate.NewLimiter(rate.Every(restoreInterval), capacity),
		baseInterval: baseInterval,
		maxJitter:    maxJitter,
		maxBackoff:   maxBackoff,
	}
}

// allow consumes one token. It reports false when the budget is
// exhausted, in which case the caller must emit RetriesExceeded and stop
// retrying.
func (b *retryBudget) allow() bool {
	if !b.limiter.Allow() {
		return false
	}
	b.mu.Lock()
	b.attempts++
	b.mu.Unlock()
	return true
}

// backoff computes the exponential-backoff-with-jitter delay for the
// Nth attempt (0-based), capped at maxBackoff.
func (b *retryBudget) backoff(attempt int) time.Duration {
	base := b.baseInterval
	for i := 0; i < attempt && base < b.maxBackoff; i++ {
		base *= 2
	}
	if base > b.maxBackoff {
		base = b.maxBackoff
	}
	jitter := time.Duration(0)
	if b.maxJitter > 0 {
		jitter = time.Duration(rand.Int64N(int64(b.maxJitter) + 1))
	}
	total := base + jitter
	if total > b.maxBackoff {
		total = b.maxBackoff
	}
	return total
}

// reset clears the attempt counter after a successful handshake; the
// underlying rate.Limiter continues restoring tokens on its own clock.
func (b *retryBudget) reset() {
	b.mu.Lock()
	b.attempts = 0
	b.mu.Unlock()
}
