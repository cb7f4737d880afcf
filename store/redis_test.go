package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yourusername/quotagate/quota"
)

// Redis integration tests require an instance on localhost:6379.
// Skip with: go test -short
func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping Redis integration test")
	}

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use separate DB for tests
	})

	ctx := context.Background()
	s, err := NewRedisStore(ctx, client, "quotagate-test:")
	if err != nil {
		client.Close()
		t.Skip("Redis not available:", err)
	}

	clear := func() {
		iter := client.Scan(ctx, 0, "quotagate-test:*", 0).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
	}
	clear()
	t.Cleanup(func() {
		clear()
		client.Close()
	})

	return s
}

func TestRedisStore_ExhaustAndRefillScenario(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()
	p := quota.Params{Limit: 10, Window: time.Minute, Burst: 10}
	t0 := time.Now()

	for i := 0; i < 10; i++ {
		ev, err := s.Evaluate(ctx, "user:1", p, 1, t0)
		if err != nil {
			t.Fatalf("Evaluate() error: %v", err)
		}
		if !ev.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if want := float64(9 - i); ev.Tokens != want {
			t.Errorf("request %d: tokens = %v, want %v", i+1, ev.Tokens, want)
		}
	}

	ev, err := s.Evaluate(ctx, "user:1", p, 1, t0)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if ev.Allowed {
		t.Error("request burst+1 at the same instant should be denied")
	}

	ev, err = s.Evaluate(ctx, "user:1", p, 1, t0.Add(6*time.Second))
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if !ev.Allowed {
		t.Error("request after one refill interval should be allowed")
	}
}

func TestRedisStore_ZeroCostReadsWithoutConsuming(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()
	p := quota.Params{Limit: 10, Window: time.Minute, Burst: 10}
	now := time.Now()

	s.Evaluate(ctx, "user:1", p, 1, now)

	for i := 0; i < 3; i++ {
		ev, err := s.Evaluate(ctx, "user:1", p, 0, now)
		if err != nil {
			t.Fatalf("Evaluate() error: %v", err)
		}
		if !ev.Allowed {
			t.Error("zero-cost evaluation should always be allowed")
		}
		if ev.Tokens != 9 {
			t.Errorf("tokens = %v, want 9 (status reads must not consume)", ev.Tokens)
		}
	}
}

func TestRedisStore_SetsStateTTL(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()
	p := quota.Params{Limit: 10, Window: time.Minute, Burst: 10}

	if _, err := s.Evaluate(ctx, "user:1", p, 1, time.Now()); err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}

	ttl, err := s.client.PTTL(ctx, s.prefix+"user:1").Result()
	if err != nil {
		t.Fatalf("PTTL error: %v", err)
	}
	want := quota.StateTTL(p)
	if ttl <= 0 || ttl > want {
		t.Errorf("PTTL = %v, want in (0, %v]", ttl, want)
	}
}

// burst+K concurrent requests for one key must admit exactly burst; the
// Lua script serializes evaluation server-side.
func TestRedisStore_NoOverAdmissionUnderConcurrency(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()
	p := quota.Params{Limit: 10, Window: time.Minute, Burst: 10}
	now := time.Now()

	const extra = 15
	total := int(p.Burst) + extra

	var wg sync.WaitGroup
	results := make(chan bool, total)
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ev, err := s.Evaluate(ctx, "user:1", p, 1, now)
			if err != nil {
				t.Errorf("Evaluate() error: %v", err)
				return
			}
			results <- ev.Allowed
		}()
	}
	wg.Wait()
	close(results)

	allowed := 0
	for ok := range results {
		if ok {
			allowed++
		}
	}
	if allowed != int(p.Burst) {
		t.Errorf("allowed = %d, want exactly %d", allowed, p.Burst)
	}
}

func TestRedisStore_ScriptFallbackAfterFlush(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()
	p := quota.Params{Limit: 10, Window: time.Minute, Burst: 10}

	if err := s.client.ScriptFlush(ctx).Err(); err != nil {
		t.Fatalf("ScriptFlush error: %v", err)
	}

	ev, err := s.Evaluate(ctx, "user:1", p, 1, time.Now())
	if err != nil {
		t.Fatalf("Evaluate() after script flush error: %v", err)
	}
	if !ev.Allowed {
		t.Error("evaluation should succeed via Eval fallback")
	}
}
