package ratelimit

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/logintel/backend/internal/apperrors"
	"github.com/logintel/backend/internal/auth"
	"github.com/logintel/backend/internal/models"
)

// PrincipalFunc derives the identity a rate limit is keyed on — typically
// the authenticated user ID, falling back to client IP for anonymous
// traffic.
type PrincipalFunc func(c *gin.Context) string

// DefaultPrincipal keys on the authenticated user ID when present,
// otherwise the client IP prefixed so it can never collide with a user ID.
func DefaultPrincipal(c *gin.Context) string {
	if userID, ok := auth.GetUserID(c); ok && userID != "" {
		return userID
	}
	return "ip:" + c.ClientIP()
}

// Middleware enforces RateLimit(principal, class) for every request,
// setting standard X-RateLimit-* headers and returning rate_limit_exceeded
// with Retry-After on denial.
func Middleware(limiter *Limiter, class models.EndpointClass, principalFn PrincipalFunc) gin.HandlerFunc {
	if principalFn == nil {
		principalFn = DefaultPrincipal
	}
	return func(c *gin.Context) {
		principal := principalFn(c)

		decision, err := limiter.Check(c.Request.Context(), principal, class)
		if err != nil {
			// Redis being unavailable must never take the API down; fail open.
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			retryAfter := int(time.Until(decision.ResetAt).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			apperrors.AbortWithError(c, apperrors.RateLimitExceeded())
			return
		}

		c.Next()
	}
}
