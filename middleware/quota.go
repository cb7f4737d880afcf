// Package middleware provides the HTTP enforcement point for quota
// evaluation plus request-id and access-log middleware.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/yourusername/quotagate/logging"
	"github.com/yourusername/quotagate/metrics"
	"github.com/yourusername/quotagate/quota"
)

// UserIDFunc returns the authenticated user id for a request context, or ""
// when the caller is anonymous.
type UserIDFunc func(context.Context) string

// LevelFunc returns the authenticated caller's tier name, or "" when none
// applies.
type LevelFunc func(context.Context) string

// QuotaConfig configures the enforcement middleware.
type QuotaConfig struct {
	// Evaluator performs the bucket checks. Required.
	Evaluator *quota.Evaluator

	// Tiers is the tier table. Defaults to quota.BuiltinTiers().
	Tiers quota.Tiers

	// Routes maps request paths to per-route overrides. Paths without an
	// entry use the caller's tier, falling back to the DEFAULT tier.
	Routes map[string]quota.Override

	// UserID resolves the tracker key's user component. Optional.
	UserID UserIDFunc

	// Level resolves the caller's tier. Optional.
	Level LevelFunc
}

// Quota enforces per-caller rate limits on every request that passes
// through it: it resolves a tracker key and effective parameters, asks the
// evaluator for a decision, attaches the rate-limit headers, and rejects
// with 429 when the budget is spent.
type Quota struct {
	eval   *quota.Evaluator
	tiers  quota.Tiers
	routes map[string]quota.Override
	userID UserIDFunc
	level  LevelFunc
}

// NewQuota creates the enforcement middleware.
func NewQuota(cfg QuotaConfig) *Quota {
	tiers := cfg.Tiers
	if tiers == nil {
		tiers = quota.BuiltinTiers()
	}
	routes := cfg.Routes
	if routes == nil {
		routes = make(map[string]quota.Override)
	}
	return &Quota{
		eval:   cfg.Evaluator,
		tiers:  tiers,
		routes: routes,
		userID: cfg.UserID,
		level:  cfg.Level,
	}
}

// TrackerKey resolves the identity a request is limited against. An
// authenticated user id takes precedence over the client IP; for the IP the
// first forwarded-for hop wins, then X-Real-IP, then the connection address.
func (q *Quota) TrackerKey(r *http.Request) string {
	if q.userID != nil {
		if id := q.userID(r.Context()); id != "" {
			return "user:" + id
		}
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return "ip:" + ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return "ip:" + xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if ip == "" {
		return "unknown"
	}
	return "ip:" + ip
}

// Resolve returns the effective tier name and parameters for a request,
// merging the route override over the caller's tier over the DEFAULT tier.
func (q *Quota) Resolve(r *http.Request) (string, quota.Params, quota.Override) {
	override := q.routes[r.URL.Path]
	if override.Level == "" && q.level != nil {
		override.Level = q.level(r.Context())
	}
	name, p := q.tiers.Resolve(override)
	return name, p, override
}

// Middleware wraps next with quota enforcement.
func (q *Quota) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tierName, p, override := q.Resolve(r)
		if override.Disabled {
			next.ServeHTTP(w, r)
			return
		}

		key := q.TrackerKey(r)
		res := q.eval.Check(r.Context(), key, p, 1)
		metrics.RecordDecision(tierName, res.Allowed)

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", p.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", res.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(res.Reset).Unix()))

		if !res.Allowed {
			l := logging.Ctx(r.Context())
			l.Warn().
				Str("key", key).
				Str("tier", tierName).
				Str("path", r.URL.Path).
				Msg("quota exceeded")

			retryAfterSec := int64(math.Ceil(res.RetryAfter.Seconds()))
			if retryAfterSec < 1 {
				retryAfterSec = 1
			}
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSec))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error":          "rate_limit_exceeded",
				"message":        "Too many requests. Please try again later.",
				"retry_after_ms": res.RetryAfter.Milliseconds(),
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
