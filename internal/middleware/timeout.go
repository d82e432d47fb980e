// Package middleware provides HTTP middleware for the log intelligence
// backend. This file implements request timeout enforcement: every request
// gets a bounded context, and a handler that hasn't finished when it expires
// gets a 408 instead of hanging the connection open indefinitely.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/logintel/backend/internal/apperrors"
)

// TimeoutConfig holds configuration for request timeouts.
type TimeoutConfig struct {
	Timeout time.Duration
}

// DefaultTimeoutConfig bounds every request to 30 seconds.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{Timeout: 30 * time.Second}
}

// Timeout enforces config.Timeout on the request context and aborts with
// request_timeout if the handler hasn't finished by then.
func Timeout(config TimeoutConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), config.Timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		finished := make(chan struct{})
		go func() {
			c.Next()
			close(finished)
		}()

		select {
		case <-finished:
			return
		case <-ctx.Done():
			appErr := apperrors.RequestTimeout()
			apperrors.WriteError(c, http.StatusRequestTimeout, appErr.Code, appErr.Message)
			return
		}
	}
}

// TimeoutWithDuration builds a Timeout middleware for an arbitrary duration.
func TimeoutWithDuration(timeout time.Duration) gin.HandlerFunc {
	return Timeout(TimeoutConfig{Timeout: timeout})
}
