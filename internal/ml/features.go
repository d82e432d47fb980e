package ml

import (
	"strings"

	"github.com/logintel/backend/internal/models"
)

// FeatureVector is the flattened representation a model consumes. It is
// intentionally simple: tokenized message text plus the categorical and
// bucketed-numeric features spec §4.F names. Unknown categorical values
// fall back to the literal "unknown" bucket rather than failing the log.
type FeatureVector struct {
	TextTokens         []string
	SourceType         string
	Service            string
	Endpoint           string
	Level              string
	HTTPStatusBucket   string
	ResponseTimeBucket string
}

// Featurize extracts a FeatureVector from a stored log entry. It never
// errors — every field degrades to a fallback value when the underlying
// data is absent, per spec's "do not fail the log" rule.
func Featurize(entry *models.LogEntry) FeatureVector {
	fv := FeatureVector{
		TextTokens: tokenize(entry.Message),
		SourceType: fallback(string(entry.SourceType)),
		Service:    fallback(entry.Service),
		Endpoint:   fallback(entry.Endpoint),
		Level:      fallback(string(entry.Level)),
	}
	fv.HTTPStatusBucket = httpStatusBucket(entry.HTTPStatus)
	fv.ResponseTimeBucket = responseTimeBucket(entry.ResponseTimeMs)
	return fv
}

func tokenize(message string) []string {
	fields := strings.Fields(strings.ToLower(message))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,:;!?\"'()[]{}")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func fallback(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func httpStatusBucket(status *int) string {
	if status == nil {
		return "none"
	}
	switch {
	case *status >= 500:
		return "5xx"
	case *status >= 400:
		return "4xx"
	case *status >= 300:
		return "3xx"
	case *status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}

func responseTimeBucket(ms *float64) string {
	if ms == nil {
		return "none"
	}
	switch {
	case *ms < 100:
		return "fast"
	case *ms < 500:
		return "normal"
	case *ms < 2000:
		return "slow"
	default:
		return "very_slow"
	}
}
