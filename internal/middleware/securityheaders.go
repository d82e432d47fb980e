// Package middleware provides HTTP middleware for the log intelligence
// backend. This file implements standard HTTP security headers: HSTS, a
// nonce-based Content-Security-Policy, frame/MIME-sniffing protection, and
// cache-control for API responses.
package middleware

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/gin-gonic/gin"
)

// generateNonce returns a base64-encoded 128-bit random value for use in the
// CSP header, unique per request so an attacker can't predict a valid nonce
// to smuggle past the policy.
func generateNonce() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(bytes), nil
}

// SecurityHeaders adds HSTS, a nonce-based CSP, and the usual set of
// anti-sniffing/anti-framing headers to every response. Apply it to all
// routes; its one route-specific exception is that requests to /health do
// not get the Cache-Control and Pragma no-cache headers.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		nonce, err := generateNonce()
		if err != nil {
			nonce = ""
		}
		c.Set("csp_nonce", nonce)

		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")

		var csp string
		if nonce != "" {
			csp = "default-src 'self'; " +
				"script-src 'self' 'nonce-" + nonce + "'; " +
				"style-src 'self' 'nonce-" + nonce + "'; " +
				"img-src 'self' data: https:; " +
				"font-src 'self' data:; " +
				"connect-src 'self'; " +
				"frame-ancestors 'none'; " +
				"base-uri 'self'; " +
				"form-action 'self'; " +
				"upgrade-insecure-requests; " +
				"block-all-mixed-content"
		} else {
			// Nonce generation failed; fall back to a strict policy that blocks
			// all inline scripts/styles rather than allowing unsafe-inline.
			csp = "default-src 'self'; " +
				"script-src 'self'; " +
				"style-src 'self'; " +
				"img-src 'self' data: https:; " +
				"font-src 'self' data:; " +
				"connect-src 'self'; " +
				"frame-ancestors 'none'; " +
				"base-uri 'self'; " +
				"form-action 'self'"
		}
		c.Header("Content-Security-Policy", csp)

		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Permissions-Policy",
			"geolocation=(), "+
				"microphone=(), "+
				"camera=(), "+
				"payment=(), "+
				"usb=(), "+
				"magnetometer=(), "+
				"gyroscope=(), "+
				"accelerometer=()")
		c.Header("X-Permitted-Cross-Domain-Policies", "none")
		c.Header("X-Download-Options", "noopen")

		if c.Request.URL.Path != "/health" {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, private")
			c.Header("Pragma", "no-cache")
		}

		c.Header("Server", "")

		c.Next()
	}
}

// SecurityHeadersRelaxed relaxes the CSP for local development (allows
// unsafe-inline/unsafe-eval, same-origin framing). Never use in production.
func SecurityHeadersRelaxed() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "SAMEORIGIN")
		c.Header("X-XSS-Protection", "1; mode=block")

		c.Header("Content-Security-Policy",
			"default-src 'self' 'unsafe-inline' 'unsafe-eval'; "+
				"img-src 'self' data: https:; "+
				"connect-src 'self' ws: wss: http: https:")

		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("X-Permitted-Cross-Domain-Policies", "none")
		c.Header("X-Download-Options", "noopen")

		c.Next()
	}
}
