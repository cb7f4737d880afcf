// Package quota implements token-bucket quota evaluation over a shared
// bucket store. Buckets refill continuously at limit/window tokens per
// millisecond, are capped at a burst capacity, and are evaluated atomically
// per tracker key by the backing store.
package quota

import (
	"context"
	"time"
)

// Params are the effective limiter parameters for one evaluation, usually
// resolved from a tier and an optional per-route override.
type Params struct {
	// Limit is the number of requests allowed per Window at the sustained rate.
	Limit int64

	// Window is the length of the steady-state rate window.
	Window time.Duration

	// Burst is the bucket capacity. Must be >= Limit so short spikes above
	// the sustained rate are absorbed.
	Burst int64
}

// Evaluation is the raw outcome of one atomic store evaluation: whether the
// requested cost was granted and the token balance left behind.
type Evaluation struct {
	Allowed bool
	Tokens  float64
}

// Result is the caller-facing outcome of a quota check.
type Result struct {
	// Allowed reports whether the requested cost was granted.
	Allowed bool

	// Remaining is the whole number of tokens left in the bucket.
	Remaining int64

	// Reset is the configured window length, not a computed time until the
	// next token accrues. Clients retrying immediately after a denial should
	// use RetryAfter, which is computed from the actual token deficit.
	Reset time.Duration

	// RetryAfter is the time until the requested cost would be available.
	// Zero when the request was allowed.
	RetryAfter time.Duration
}

// Store evaluates the token bucket for a key as one atomic unit: load state
// (initializing a fresh bucket to full burst), refill by elapsed time, decide
// against the requested cost, persist, and re-arm expiry. Implementations
// must guarantee that concurrent evaluations for the same key never
// interleave, otherwise two callers can both spend the same tokens.
type Store interface {
	Evaluate(ctx context.Context, key string, p Params, requested float64, now time.Time) (Evaluation, error)
}
