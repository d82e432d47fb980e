// Package query implements component E: search, lookup by external_id,
// correlation, and statistics. Every operation routes to exactly one
// backing store per call — the row store (component B) for structured and
// exact-match lookups, the index store (component C) for free-text and
// relevance-scored search — and results from the two stores are never
// merged.
package query

import (
	"context"
	"time"

	"github.com/logintel/backend/internal/apperrors"
	"github.com/logintel/backend/internal/db"
	"github.com/logintel/backend/internal/models"
	"github.com/logintel/backend/internal/search"
)

const (
	defaultLimit  = 50
	maxLimit      = 1000
	defaultWindow = 24 * time.Hour
)

// Engine is component E's read path over the row store and index store.
type Engine struct {
	logDB  *db.LogDB
	search *search.Client
}

func NewEngine(logDB *db.LogDB, searchClient *search.Client) *Engine {
	return &Engine{logDB: logDB, search: searchClient}
}

// Result is the outcome of a Search call, normalized across the two
// possible backing stores so handlers don't need to know which one served
// the request.
type Result struct {
	Entries []*models.LogEntry
	Total   int64
	Limit   int
	Offset  int
}

// normalize applies the edge-case defaults from spec §4.E: an empty filter
// becomes "most recent limit entries", a filter with no time range gets a
// trailing 24h window, and limit is clamped to maxLimit.
func normalize(filter models.LogFilter) models.LogFilter {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Start.IsZero() && filter.End.IsZero() {
		filter.End = time.Now()
		filter.Start = filter.End.Add(-defaultWindow)
	}
	return filter
}

// needsIndexStore reports whether filter requires the index store's
// relevance scoring — a free-text query is the only thing the row store
// cannot answer.
func needsIndexStore(filter models.LogFilter) bool {
	return filter.Query != ""
}

// Search routes to the index store for free-text queries and the row store
// for everything else. An offset past the end of the result set yields an
// empty list, not an error.
func (e *Engine) Search(ctx context.Context, filter models.LogFilter) (*Result, error) {
	filter = normalize(filter)

	if needsIndexStore(filter) {
		if e.search == nil {
			return nil, apperrors.SearchUnavailable(nil)
		}
		res, err := e.search.Query(ctx, filter)
		if err != nil {
			return nil, apperrors.SearchUnavailable(err)
		}
		entries := make([]*models.LogEntry, 0, len(res.Hits))
		for _, hit := range res.Hits {
			entries = append(entries, hit.Entry)
		}
		return &Result{Entries: entries, Total: res.Total, Limit: filter.Limit, Offset: filter.Offset}, nil
	}

	entries, total, err := e.logDB.SearchLogs(filter)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	return &Result{Entries: entries, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// GetByExternalID is always answered by the row store: the index store is a
// best-effort secondary view and is never authoritative for a single-record
// lookup.
func (e *Engine) GetByExternalID(ctx context.Context, externalID string) (*models.LogEntry, error) {
	return e.logDB.GetByExternalID(externalID)
}

// correlationKeys enumerates the closed set of correlation keys the row
// store indexes (spec §4.B, §GLOSSARY).
var correlationKeys = map[string]bool{
	"request_id":     true,
	"session_id":     true,
	"correlation_id": true,
	"ip_address":     true,
}

// Correlate reconstructs an event sequence sharing one correlation key,
// always from the row store and always timestamp ascending. limit is
// clamped to maxLimit the same way Search is; a non-positive limit falls
// back to defaultLimit.
func (e *Engine) Correlate(ctx context.Context, key, value string, limit int) ([]*models.LogEntry, error) {
	if !correlationKeys[key] {
		return nil, apperrors.ValidationFailed("key must be one of request_id, session_id, correlation_id, ip_address")
	}
	if value == "" {
		return nil, apperrors.ValidationFailed("value is required")
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	entries, err := e.logDB.CorrelatedLookup(key, value, limit)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	return entries, nil
}

// Stats prefers the row store's exact rollup and falls back to the index
// store's terms aggregation only when the row store is unavailable.
func (e *Engine) Stats(ctx context.Context, start, end time.Time) (*models.AnalyticsRollup, error) {
	if start.IsZero() && end.IsZero() {
		end = time.Now()
		start = end.Add(-defaultWindow)
	}

	rollup, err := e.logDB.StatsOverWindow(start, end)
	if err == nil {
		return rollup, nil
	}
	if e.search == nil {
		return nil, apperrors.Storage(err)
	}

	agg, aggErr := e.search.Aggregate(ctx, start, end)
	if aggErr != nil {
		return nil, apperrors.Storage(err)
	}
	return fromAggregate(start, end, agg), nil
}

// fromAggregate builds a degraded AnalyticsRollup from the index store's
// terms aggregation when the row store is unavailable. The index store has
// no anomaly flag or response-time facet (spec §4.C), so those fields stay
// at their zero value in this fallback path.
func fromAggregate(start, end time.Time, agg *search.AggregateResult) *models.AnalyticsRollup {
	rollup := &models.AnalyticsRollup{
		WindowStart:  start,
		WindowEnd:    end,
		LogsByLevel:  map[models.LogLevel]int64{},
		LogsBySource: map[models.SourceType]int64{},
	}
	for _, b := range agg.ByLevel {
		rollup.LogsByLevel[models.LogLevel(b.Key)] = b.Count
		rollup.TotalLogs += b.Count
		if models.LogLevel(b.Key) == models.LevelError || models.LogLevel(b.Key) == models.LevelFatal {
			rollup.ErrorCount += b.Count
		}
	}
	for _, b := range agg.BySourceType {
		rollup.LogsBySource[models.SourceType(b.Key)] = b.Count
	}
	if rollup.TotalLogs > 0 {
		rollup.ErrorRate = float64(rollup.ErrorCount) / float64(rollup.TotalLogs) * 100
	}
	return rollup
}
