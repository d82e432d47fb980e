// Package cache provides Redis-based caching for the log intelligence
// backend.
//
// This file defines standardized cache key naming conventions and patterns.
//
// Key Naming Convention:
//   - Format: {prefix}:{resource}:{identifier}
//   - Example: session:3f1e2a9c-...
//   - Example: ratelimit:login:user-42
//   - Example: query:search:a1b2c3...
//
// Key Patterns for Invalidation:
//   - session:* - All sessions
//   - query:search:* - All cached search results
package cache

import "fmt"

// Key prefixes for different resource types
const (
	PrefixSession   = "session"
	PrefixRateLimit = "ratelimit"
	PrefixQuery     = "query"
	PrefixUser      = "user"
)

// Session cache keys. Sessions hold the refresh-token record; the access
// token itself is stateless and never cached.
func SessionKey(sessionID string) string {
	return fmt.Sprintf("%s:%s", PrefixSession, sessionID)
}

func UserSessionsKey(userID string) string {
	return fmt.Sprintf("%s:user:%s:list", PrefixSession, userID)
}

func SessionPattern() string {
	return fmt.Sprintf("%s:*", PrefixSession)
}

func UserSessionsPattern(userID string) string {
	return fmt.Sprintf("%s:user:%s:*", PrefixSession, userID)
}

// Rate-limit bucket keys, one counter per principal per endpoint class per
// window.
func RateLimitKey(class, principalID string) string {
	return fmt.Sprintf("%s:%s:%s", PrefixRateLimit, class, principalID)
}

// Query-result cache keys for /logs/search and /logs/statistics. digest is a
// hash of the request's filter parameters so distinct filters never collide.
func SearchResultKey(digest string) string {
	return fmt.Sprintf("%s:search:%s", PrefixQuery, digest)
}

func StatsResultKey(digest string) string {
	return fmt.Sprintf("%s:stats:%s", PrefixQuery, digest)
}

func QueryPattern() string {
	return fmt.Sprintf("%s:*", PrefixQuery)
}

// User cache keys. Nothing caches user rows under them; the auth middleware
// fetches the user row on every authenticated request.
func UserKey(userID string) string {
	return fmt.Sprintf("%s:%s", PrefixUser, userID)
}

func UserPattern(userID string) string {
	return fmt.Sprintf("%s:%s*", PrefixUser, userID)
}
