package quota

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/yourusername/quotagate/metrics"
)

// EvaluatorConfig configures an Evaluator.
type EvaluatorConfig struct {
	// Store holds the shared bucket state. Required.
	Store Store

	// FailOpen controls the result when the store is unreachable or the
	// evaluation errors: true allows the request (preferring availability
	// over strict enforcement while the dependency is down), false denies
	// it with the configured window as the retry hint.
	FailOpen bool

	// Logger receives store failure logs. Optional.
	Logger *zerolog.Logger

	// Now overrides the clock. Optional; used by tests.
	Now func() time.Time
}

// Evaluator decides whether a caller identified by a tracker key may
// proceed. Every check round-trips to the store; no bucket state is cached
// in-process between requests.
type Evaluator struct {
	store    Store
	failOpen bool
	logger   zerolog.Logger
	now      func() time.Time
}

// NewEvaluator creates an Evaluator from the given configuration.
func NewEvaluator(cfg EvaluatorConfig) *Evaluator {
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Evaluator{
		store:    cfg.Store,
		failOpen: cfg.FailOpen,
		logger:   logger,
		now:      now,
	}
}

// Check atomically evaluates the bucket for key against p, consuming
// requested tokens when available. A requested of 0 refills and reads the
// bucket without consuming, so it never denies; it still rewrites and
// re-expires the persisted state.
//
// Store errors are never surfaced: they are logged, counted, and converted
// to the configured fail-open or fail-closed result.
func (e *Evaluator) Check(ctx context.Context, key string, p Params, requested float64) Result {
	start := time.Now()
	ev, err := e.store.Evaluate(ctx, key, p, requested, e.now())
	metrics.ObserveEvaluation(time.Since(start))

	if err != nil {
		metrics.RecordStoreError()
		e.logger.Error().Err(err).Str("key", key).Bool("fail_open", e.failOpen).
			Msg("bucket store evaluation failed")
		if e.failOpen {
			return Result{Allowed: true}
		}
		return Result{Reset: p.Window, RetryAfter: p.Window}
	}

	res := Result{
		Allowed:   ev.Allowed,
		Remaining: int64(math.Floor(ev.Tokens)),
		Reset:     p.Window,
	}
	if !ev.Allowed {
		res.RetryAfter = retryAfter(p, requested, ev.Tokens)
	}
	return res
}

// retryAfter computes the time until the requested cost accrues from the
// current balance.
func retryAfter(p Params, requested, tokens float64) time.Duration {
	missing := requested - tokens
	if missing <= 0 {
		return 0
	}
	ms := missing * float64(p.Window.Milliseconds()) / float64(p.Limit)
	return time.Duration(math.Ceil(ms)) * time.Millisecond
}
