package observability

import "time"

// RequestEvent is the structured per-request record spec §4.I requires: one
// line per HTTP request carrying enough to reconstruct who did what, how
// long it took, and how it ended.
type RequestEvent struct {
	Timestamp   time.Time `json:"ts"`
	Endpoint    string    `json:"endpoint"`
	PrincipalID string    `json:"principal_id,omitempty"`
	LatencyMs   int64     `json:"latency_ms"`
	Outcome     string    `json:"outcome"`
	ErrorCode   string    `json:"error_code,omitempty"`
}

// EventSink emits RequestEvents to the structured log. It is a thin
// indirection over the HTTP component logger so tests can substitute a
// recording sink without touching global logger state.
type EventSink struct{}

// NewEventSink constructs the default sink backed by the HTTP component
// logger.
func NewEventSink() *EventSink {
	return &EventSink{}
}

// Emit writes one structured event line.
func (s *EventSink) Emit(ev RequestEvent) {
	logger := HTTP()
	entry := logger.Info()
	if ev.Outcome != "success" {
		entry = logger.Warn()
	}
	entry.
		Time("ts", ev.Timestamp).
		Str("endpoint", ev.Endpoint).
		Str("principal_id", ev.PrincipalID).
		Int64("latency_ms", ev.LatencyMs).
		Str("outcome", ev.Outcome).
		Str("error_code", ev.ErrorCode).
		Msg("request completed")
}
