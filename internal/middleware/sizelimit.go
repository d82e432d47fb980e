package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/logintel/backend/internal/apperrors"
)

// Request Size Limits
const (
	// MaxRequestBodySize is the maximum allowed request body size (10MB).
	MaxRequestBodySize int64 = 10 * 1024 * 1024

	// MaxJSONPayloadSize is the maximum size for a log ingestion batch (5MB).
	MaxJSONPayloadSize int64 = 5 * 1024 * 1024
)

// RequestSizeLimiter limits the size of incoming HTTP requests to prevent
// DoS attacks via oversized payloads.
func RequestSizeLimiter(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		if c.Request.ContentLength > maxSize {
			apperrors.WriteError(c, http.StatusRequestEntityTooLarge, apperrors.CodeValidationFailed, "request body exceeds maximum allowed size")
			return
		}

		// Wrap the body with http.MaxBytesReader so a lying Content-Length can't
		// bypass the check above.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)

		c.Next()
	}
}

// JSONSizeLimiter limits ingestion batch payload size.
func JSONSizeLimiter() gin.HandlerFunc {
	return RequestSizeLimiter(MaxJSONPayloadSize)
}

// DefaultSizeLimiter uses the default max request body size.
func DefaultSizeLimiter() gin.HandlerFunc {
	return RequestSizeLimiter(MaxRequestBodySize)
}
