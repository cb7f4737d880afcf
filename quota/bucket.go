package quota

import (
	"math"
	"time"
)

// BucketState is the persisted state of one token bucket.
type BucketState struct {
	Tokens     float64   // Current tokens available
	LastRefill time.Time // Last time the bucket was evaluated
}

// EvaluateBucket applies one read-refill-compare-write cycle to a bucket and
// returns the updated state and the evaluation outcome. A nil state means the
// bucket does not exist yet and is initialized to full burst capacity.
//
// This is the reference implementation of the bucket math; the Redis store
// mirrors it in a server-side script so the same cycle runs atomically
// against shared state. Callers are responsible for serializing concurrent
// evaluations of the same key around this function.
func EvaluateBucket(state *BucketState, p Params, requested float64, now time.Time) (BucketState, Evaluation) {
	if state == nil {
		state = &BucketState{
			Tokens:     float64(p.Burst),
			LastRefill: now,
		}
	}

	// Refill continuously for the elapsed time, capped at burst. A clock
	// step backwards counts as zero elapsed time. Multiply before dividing
	// so whole refill intervals yield whole tokens.
	elapsed := now.Sub(state.LastRefill).Milliseconds()
	if elapsed < 0 {
		elapsed = 0
	}
	refilled := float64(elapsed) * float64(p.Limit) / float64(p.Window.Milliseconds())
	tokens := math.Min(float64(p.Burst), state.Tokens+refilled)

	allowed := tokens >= requested
	if allowed {
		tokens -= requested
	}

	return BucketState{Tokens: tokens, LastRefill: now}, Evaluation{Allowed: allowed, Tokens: tokens}
}

// StateTTL returns how long bucket state should outlive its last evaluation.
// A bucket idle for 1.5 windows has fully refilled, so letting the store drop
// it is indistinguishable from a bucket that was never created.
func StateTTL(p Params) time.Duration {
	ms := math.Ceil(float64(p.Window.Milliseconds()) * 1.5)
	return time.Duration(ms) * time.Millisecond
}
