package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/logintel/backend/internal/cache"
	"github.com/logintel/backend/internal/models"
)

func testLimits() map[models.EndpointClass]models.RateLimit {
	return map[models.EndpointClass]models.RateLimit{
		models.EndpointClassLogin:     {Class: models.EndpointClassLogin, Max: 5, Window: 5 * time.Minute},
		models.EndpointClassAnonymous: {Class: models.EndpointClassAnonymous, Max: 100, Window: time.Hour},
	}
}

// With caching disabled, the fixed window falls back to allow-everything;
// only the burst gate can deny.
func TestCheck_CacheDisabled_Allows(t *testing.T) {
	disabledCache, err := cache.NewCache(cache.Config{Enabled: false})
	require.NoError(t, err)

	limiter := NewLimiter(disabledCache, testLimits())
	decision, err := limiter.Check(context.Background(), "user-1", models.EndpointClassLogin)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Equal(t, 5, decision.Limit)
}

func TestCheck_UnknownClassFallsBackToAnonymous(t *testing.T) {
	disabledCache, err := cache.NewCache(cache.Config{Enabled: false})
	require.NoError(t, err)

	limiter := NewLimiter(disabledCache, testLimits())
	decision, err := limiter.Check(context.Background(), "user-1", models.EndpointClass("unknown"))
	require.NoError(t, err)
	require.Equal(t, 100, decision.Limit)
}

func TestBurstRegistry_DeniesBeyondCapacity(t *testing.T) {
	limits := map[models.EndpointClass]models.RateLimit{
		models.EndpointClassLogin: {Class: models.EndpointClassLogin, Max: 2, Window: time.Minute},
	}
	registry := newBurstRegistry(limits)

	allowed := 0
	for i := 0; i < 5; i++ {
		if registry.allow("principal-1", models.EndpointClassLogin) {
			allowed++
		}
	}
	require.LessOrEqual(t, allowed, 2)
}

func TestBurstRegistry_SeparatePrincipalsDoNotShareBucket(t *testing.T) {
	limits := map[models.EndpointClass]models.RateLimit{
		models.EndpointClassLogin: {Class: models.EndpointClassLogin, Max: 1, Window: time.Minute},
	}
	registry := newBurstRegistry(limits)

	require.True(t, registry.allow("principal-a", models.EndpointClassLogin))
	require.True(t, registry.allow("principal-b", models.EndpointClassLogin))
}

func TestBurstRegistry_Prune(t *testing.T) {
	registry := newBurstRegistry(testLimits())
	registry.allow("p1", models.EndpointClassLogin)
	registry.allow("p2", models.EndpointClassLogin)
	require.Len(t, registry.limiters, 2)

	registry.prune(1)
	require.Empty(t, registry.limiters)
}
