// Package cache provides Redis-based caching for the log intelligence
// backend.
//
// This file implements HTTP caching middleware for Gin framework, scoped to
// the two read endpoints worth caching: /logs/search and /logs/statistics.
// Unlike a blanket GET cache, the cache key is derived from the normalized
// filter parameters of the request rather than the raw URI, so query string
// ordering or superfluous whitespace doesn't fragment the cache.
//
// Middleware Types:
//   - QueryCacheMiddleware: caches a GET response under a caller-supplied key
//   - InvalidateCacheMiddleware: clears cache entries after mutations
//   - CacheControl: adds Cache-Control headers
//
// Implementation Details:
// - Only caches successful responses (2xx status codes)
// - Response body captured via custom ResponseWriter
// - Cache operations run asynchronously to avoid blocking the response
// - Gracefully handles cache unavailability (continues without caching)
//
// Dependencies:
// - github.com/gin-gonic/gin for HTTP framework
package cache

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ResponseWriter is a custom response writer that captures the response body
type ResponseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *ResponseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// CachedResponse represents a cached HTTP response
type CachedResponse struct {
	StatusCode int    `json:"status_code"`
	Body       string `json:"body"`
}

// KeyFunc derives a cache key from the incoming request, usually a digest of
// its normalized filter parameters. An empty string means "don't cache this
// request" (e.g. a malformed query the handler will reject anyway).
type KeyFunc func(c *gin.Context) string

// QueryCacheMiddleware caches GET responses under the key produced by keyFn.
func QueryCacheMiddleware(cache *Cache, keyFn KeyFunc, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || !cache.IsEnabled() {
			c.Next()
			return
		}

		cacheKey := keyFn(c)
		if cacheKey == "" {
			c.Next()
			return
		}

		var cachedResp CachedResponse
		if err := cache.Get(c.Request.Context(), cacheKey, &cachedResp); err == nil {
			c.Header("X-Cache", "HIT")
			c.Data(cachedResp.StatusCode, "application/json", []byte(cachedResp.Body))
			c.Abort()
			return
		}

		writer := &ResponseWriter{
			ResponseWriter: c.Writer,
			body:           bytes.NewBuffer([]byte{}),
		}
		c.Writer = writer

		c.Next()

		if c.Writer.Status() >= 200 && c.Writer.Status() < 300 {
			resp := CachedResponse{
				StatusCode: c.Writer.Status(),
				Body:       writer.body.String(),
			}

			go func() {
				_ = cache.Set(c.Request.Context(), cacheKey, resp, ttl)
			}()

			c.Header("X-Cache", "MISS")
		}
	}
}

// InvalidateCacheMiddleware clears related cache entries after mutations,
// for dropping stale search/statistics results. No route mounts it.
func InvalidateCacheMiddleware(cache *Cache, pattern string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method != http.MethodGet && c.Writer.Status() >= 200 && c.Writer.Status() < 300 {
			if cache.IsEnabled() {
				go func() {
					_ = cache.DeletePattern(c.Request.Context(), pattern)
				}()
			}
		}
	}
}

// CacheControl middleware adds cache control headers to responses
func CacheControl(maxAge time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet {
			c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", int(maxAge.Seconds())))
		} else {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate")
		}
		c.Next()
	}
}
