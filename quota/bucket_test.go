package quota

import (
	"testing"
	"time"
)

var testParams = Params{Limit: 10, Window: time.Minute, Burst: 10}

func TestEvaluateBucket_FreshBucketStartsFull(t *testing.T) {
	now := time.Unix(1000, 0)

	state, ev := EvaluateBucket(nil, testParams, 1, now)

	if !ev.Allowed {
		t.Error("first request on a fresh bucket should be allowed")
	}
	if ev.Tokens != 9 {
		t.Errorf("tokens = %v, want 9", ev.Tokens)
	}
	if state.LastRefill != now {
		t.Errorf("LastRefill = %v, want %v", state.LastRefill, now)
	}
}

func TestEvaluateBucket_DenyKeepsRefilledBalance(t *testing.T) {
	now := time.Unix(1000, 0)
	state := &BucketState{Tokens: 0.4, LastRefill: now}

	next, ev := EvaluateBucket(state, testParams, 1, now)

	if ev.Allowed {
		t.Error("request should be denied with 0.4 tokens")
	}
	if next.Tokens != 0.4 {
		t.Errorf("denied evaluation changed tokens: %v, want 0.4", next.Tokens)
	}
}

func TestEvaluateBucket_RefillIsContinuous(t *testing.T) {
	start := time.Unix(1000, 0)
	state := &BucketState{Tokens: 0, LastRefill: start}

	// limit=10 per minute: one token accrues every 6s.
	next, ev := EvaluateBucket(state, testParams, 0, start.Add(3*time.Second))
	if ev.Tokens != 0.5 {
		t.Errorf("after 3s tokens = %v, want 0.5", ev.Tokens)
	}

	_, ev = EvaluateBucket(&next, testParams, 1, start.Add(6*time.Second))
	if !ev.Allowed {
		t.Error("one full token should have accrued after 6s")
	}
}

func TestEvaluateBucket_RefillCapsAtBurst(t *testing.T) {
	start := time.Unix(1000, 0)
	state := &BucketState{Tokens: 5, LastRefill: start}

	_, ev := EvaluateBucket(state, testParams, 0, start.Add(time.Hour))

	if ev.Tokens != float64(testParams.Burst) {
		t.Errorf("tokens = %v, want burst cap %d", ev.Tokens, testParams.Burst)
	}
}

func TestEvaluateBucket_ClockStepBackwards(t *testing.T) {
	start := time.Unix(1000, 0)
	state := &BucketState{Tokens: 3, LastRefill: start}

	next, ev := EvaluateBucket(state, testParams, 0, start.Add(-time.Minute))

	if ev.Tokens != 3 {
		t.Errorf("backwards clock should not refill or drain: tokens = %v, want 3", ev.Tokens)
	}
	if next.LastRefill != start.Add(-time.Minute) {
		t.Error("LastRefill should still advance to the evaluation time")
	}
}

func TestEvaluateBucket_ZeroCostNeverDenies(t *testing.T) {
	now := time.Unix(1000, 0)
	state := &BucketState{Tokens: 0, LastRefill: now}

	next, ev := EvaluateBucket(state, testParams, 0, now)

	if !ev.Allowed {
		t.Error("zero-cost evaluation should always be allowed")
	}
	if next.Tokens != 0 {
		t.Errorf("zero-cost evaluation consumed tokens: %v", next.Tokens)
	}
}

// The concrete scenario: limit=10/min, burst=10. Ten requests at t=0 drain
// the bucket with remaining 9..0, the eleventh is denied, and one-tenth of a
// window later a single refilled token admits the twelfth.
func TestEvaluateBucket_ExhaustAndRefillScenario(t *testing.T) {
	p := Params{Limit: 10, Window: 60000 * time.Millisecond, Burst: 10}
	t0 := time.Unix(5000, 0)

	var state *BucketState
	for i := 0; i < 10; i++ {
		next, ev := EvaluateBucket(state, p, 1, t0)
		if !ev.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if want := float64(9 - i); ev.Tokens != want {
			t.Errorf("request %d: tokens = %v, want %v", i+1, ev.Tokens, want)
		}
		state = &next
	}

	next, ev := EvaluateBucket(state, p, 1, t0)
	if ev.Allowed {
		t.Fatal("eleventh request at t=0 should be denied")
	}
	state = &next

	_, ev = EvaluateBucket(state, p, 1, t0.Add(6000*time.Millisecond))
	if !ev.Allowed {
		t.Fatal("request after 6s should be allowed (1 token refilled)")
	}
	if ev.Tokens != 0 {
		t.Errorf("tokens = %v, want 0", ev.Tokens)
	}
}

func TestStateTTL(t *testing.T) {
	tests := []struct {
		name   string
		window time.Duration
		want   time.Duration
	}{
		{"one minute", time.Minute, 90 * time.Second},
		{"one second", time.Second, 1500 * time.Millisecond},
		{"odd window", 333 * time.Millisecond, 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StateTTL(Params{Limit: 1, Window: tt.window, Burst: 1})
			if got != tt.want {
				t.Errorf("StateTTL(%v) = %v, want %v", tt.window, got, tt.want)
			}
		})
	}
}
