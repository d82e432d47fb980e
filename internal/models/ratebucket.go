package models

import "time"

// EndpointClass groups routes for rate-limiting purposes. A single endpoint
// class may cover several routes (e.g. all authenticated reads).
type EndpointClass string

const (
	EndpointClassLogin     EndpointClass = "login"
	EndpointClassRegister  EndpointClass = "register"
	EndpointClassSearch    EndpointClass = "search"
	EndpointClassIngest    EndpointClass = "ingest"
	EndpointClassAdmin     EndpointClass = "admin"
	EndpointClassAnonymous EndpointClass = "anonymous"
	EndpointClassAPIKey    EndpointClass = "api_key"
)

// RateBucket is the fixed-window counter keyed by (principal, endpoint
// class, window start). ratelimit.Limiter does not build RateBucket values:
// its Redis counter is keyed by class and principal only, and each window
// opens on the first request after the previous one expired.
type RateBucket struct {
	PrincipalID   string
	EndpointClass EndpointClass
	WindowStart   time.Time
	Count         int
}

// RateLimit describes the fixed allowance for one endpoint class.
type RateLimit struct {
	Class  EndpointClass
	Max    int
	Window time.Duration
}

// RateDecision is the result of evaluating a RateLimiter against the current
// window.
type RateDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}
