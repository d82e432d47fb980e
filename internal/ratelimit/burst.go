package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/logintel/backend/internal/models"
)

// burstRegistry holds one token bucket per (principal, endpoint class),
// refilling at the limit's own rate so a burst within the window doesn't
// need a Redis round trip to be rejected. It's a smoothing layer in front
// of the fixed window, not a replacement for it — the Redis counter
// remains the source of truth for the window's actual allowance.
type burstRegistry struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limits   map[models.EndpointClass]models.RateLimit
}

func newBurstRegistry(limits map[models.EndpointClass]models.RateLimit) *burstRegistry {
	return &burstRegistry{
		limiters: make(map[string]*rate.Limiter),
		limits:   limits,
	}
}

func (b *burstRegistry) allow(principalID string, class models.EndpointClass) bool {
	limit, ok := b.limits[class]
	if !ok {
		return true
	}

	key := string(class) + ":" + principalID

	b.mu.Lock()
	limiter, exists := b.limiters[key]
	if !exists {
		perSecond := float64(limit.Max) / limit.Window.Seconds()
		limiter = rate.NewLimiter(rate.Limit(perSecond), limit.Max)
		b.limiters[key] = limiter
	}
	b.mu.Unlock()

	return limiter.Allow()
}

// prune drops idle buckets so long-running processes don't accumulate one
// limiter per distinct principal forever.
func (b *burstRegistry) prune(maxEntries int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.limiters) > maxEntries {
		b.limiters = make(map[string]*rate.Limiter)
	}
}

// StartPruner runs prune on an interval for the lifetime of the process.
func (l *Limiter) StartPruner(interval time.Duration, maxEntries int) {
	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			l.bursts.prune(maxEntries)
		}
	}()
}
