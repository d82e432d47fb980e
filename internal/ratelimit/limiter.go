// Package ratelimit implements the fixed-window request limiter (component
// A's RateLimit operation): per-principal, per-endpoint-class counters
// backed by Redis so the limit is enforced consistently across every API
// instance, with an in-process token bucket in front of it to smooth
// bursts without a round trip for every single request.
package ratelimit

import (
	"context"
	"time"

	"github.com/logintel/backend/internal/cache"
	"github.com/logintel/backend/internal/models"
)

// Limiter evaluates RateLimit(principal, endpoint_class) against the
// configured limits table.
type Limiter struct {
	cache  *cache.Cache
	limits map[models.EndpointClass]models.RateLimit
	bursts *burstRegistry
}

// NewLimiter builds a limiter from the configured per-class allowances.
// Each class also gets an in-process token bucket sized to its own limit,
// refilling over the same window, as a cheap first-line gate.
func NewLimiter(cacheClient *cache.Cache, limits map[models.EndpointClass]models.RateLimit) *Limiter {
	return &Limiter{
		cache:  cacheClient,
		limits: limits,
		bursts: newBurstRegistry(limits),
	}
}

// Check evaluates the request against both the in-process burst gate and
// the Redis-backed fixed window, returning an allow/deny decision. With
// caching disabled, only the burst gate applies — the fixed window falls
// back to allow-everything, matching the stateless fallback used elsewhere
// in this component when Redis is unavailable.
func (l *Limiter) Check(ctx context.Context, principalID string, class models.EndpointClass) (*models.RateDecision, error) {
	limit, ok := l.limits[class]
	if !ok {
		limit = l.limits[models.EndpointClassAnonymous]
	}

	if !l.bursts.allow(principalID, class) {
		return &models.RateDecision{
			Allowed:   false,
			Limit:     limit.Max,
			Remaining: 0,
			ResetAt:   time.Now().Add(limit.Window),
		}, nil
	}

	if l.cache == nil || !l.cache.IsEnabled() {
		return &models.RateDecision{Allowed: true, Limit: limit.Max, Remaining: limit.Max}, nil
	}

	key := cache.RateLimitKey(string(class), principalID)
	count, err := l.cache.IncrementWithExpiry(ctx, key, limit.Window)
	if err != nil {
		return nil, err
	}

	ttl, err := l.cache.TTL(ctx, key)
	if err != nil || ttl <= 0 {
		ttl = limit.Window
	}
	resetAt := time.Now().Add(ttl)

	if int(count) > limit.Max {
		return &models.RateDecision{Allowed: false, Limit: limit.Max, Remaining: 0, ResetAt: resetAt}, nil
	}

	return &models.RateDecision{
		Allowed:   true,
		Limit:     limit.Max,
		Remaining: limit.Max - int(count),
		ResetAt:   resetAt,
	}, nil
}
