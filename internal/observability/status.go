package observability

import "time"

// ComponentStatus is one entry in the admin-only per-component health
// sub-report (spec §4.I supplement).
type ComponentStatus struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Detail    string    `json:"detail,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// HealthReport is the body of GET /health: coarse, public, and cheap to
// compute.
type HealthReport struct {
	Status   string          `json:"status"`
	Services map[string]bool `json:"services"`
}

// DetailReport is a list-shaped per-component report. The admin-only
// GET /health/detail handler does not build it; it responds with a map
// keyed by component name instead.
type DetailReport struct {
	Status     string            `json:"status"`
	Components []ComponentStatus `json:"components"`
}
