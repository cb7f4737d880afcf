package store

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yourusername/quotagate/quota"
)

//go:embed token_bucket.lua
var tokenBucketScript string

// DefaultKeyPrefix namespaces bucket keys in Redis.
const DefaultKeyPrefix = "quotagate:"

// RedisStore evaluates buckets in Redis. The whole read-refill-compare-write
// cycle runs as one server-side Lua script, so concurrent evaluations for
// the same key are serialized by Redis and never over-admit.
type RedisStore struct {
	client    *redis.Client
	scriptSHA string
	prefix    string
}

// Ensure RedisStore implements the store contract
var _ quota.Store = (*RedisStore)(nil)

// NewRedisStore verifies connectivity and preloads the evaluation script.
// The client's lifecycle belongs to the caller; Close only releases it when
// the caller hands ownership over by calling it.
func NewRedisStore(ctx context.Context, client *redis.Client, prefix string) (*RedisStore, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: ping: %v", quota.ErrStoreFailed, err)
	}

	sha, err := client.ScriptLoad(ctx, tokenBucketScript).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: script load: %v", quota.ErrStoreFailed, err)
	}

	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	return &RedisStore{
		client:    client,
		scriptSHA: sha,
		prefix:    prefix,
	}, nil
}

// Evaluate runs one atomic bucket evaluation for key.
func (s *RedisStore) Evaluate(ctx context.Context, key string, p quota.Params, requested float64, now time.Time) (quota.Evaluation, error) {
	keys := []string{s.prefix + key}
	args := []interface{}{
		p.Limit,
		p.Window.Milliseconds(),
		p.Burst,
		requested,
		now.UnixMilli(),
		quota.StateTTL(p).Milliseconds(),
	}

	result, err := s.client.EvalSha(ctx, s.scriptSHA, keys, args...).Result()
	if err != nil && redis.HasErrorPrefix(err, "NOSCRIPT") {
		// Script cache was flushed (e.g. Redis restart); fall back to a
		// full Eval, which re-caches it.
		result, err = s.client.Eval(ctx, tokenBucketScript, keys, args...).Result()
	}
	if err != nil {
		return quota.Evaluation{}, fmt.Errorf("%w: %v", quota.ErrStoreFailed, err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return quota.Evaluation{}, fmt.Errorf("%w: unexpected script reply %v", quota.ErrStoreFailed, result)
	}

	allowed, _ := values[0].(int64)
	tokens, err := parseTokens(values[1])
	if err != nil {
		return quota.Evaluation{}, err
	}

	return quota.Evaluation{Allowed: allowed == 1, Tokens: tokens}, nil
}

func parseTokens(v interface{}) (float64, error) {
	switch t := v.(type) {
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: bad token balance %q", quota.ErrStoreFailed, t)
		}
		return f, nil
	case int64:
		return float64(t), nil
	case float64:
		return t, nil
	default:
		return 0, fmt.Errorf("%w: bad token balance type %T", quota.ErrStoreFailed, v)
	}
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
