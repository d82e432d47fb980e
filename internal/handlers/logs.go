// This file implements the ingestion and query routes: component D's single
// write path (POST /logs/ingest) and component E's read paths (search,
// lookup, correlation, statistics). Handlers here are deliberately thin —
// all routing and fallback logic lives in ingest.Coordinator and
// query.Engine, the handler's only job is binding the request and shaping
// the response envelope.
package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/logintel/backend/internal/apperrors"
	"github.com/logintel/backend/internal/ingest"
	"github.com/logintel/backend/internal/models"
	"github.com/logintel/backend/internal/query"
)

// LogHandler serves the ingestion and query routes.
type LogHandler struct {
	coordinator *ingest.Coordinator
	engine      *query.Engine
}

func NewLogHandler(coordinator *ingest.Coordinator, engine *query.Engine) *LogHandler {
	return &LogHandler{coordinator: coordinator, engine: engine}
}

// RegisterIngestRoutes mounts component D's single write path. Kept separate
// from RegisterQueryRoutes so callers can gate it under the ingest rate-limit
// class (1000/1h) instead of the search class (spec §4.A, §6).
func (h *LogHandler) RegisterIngestRoutes(router *gin.RouterGroup) {
	router.POST("/logs/ingest", h.IngestBatch)
}

// RegisterQueryRoutes mounts component E's read paths under the search
// rate-limit class.
func (h *LogHandler) RegisterQueryRoutes(router *gin.RouterGroup) {
	router.GET("/logs/search", h.Search)
	router.GET("/logs/:external_id", h.GetByExternalID)
	router.GET("/logs/correlation", h.Correlate)
	router.GET("/logs/statistics", h.Stats)
}

type ingestBatchRequest struct {
	Logs []models.LogEntry `json:"logs" binding:"required,min=1"`
}

type ingestBatchResponse struct {
	IngestedCount  int                      `json:"ingested_count"`
	FailedCount    int                      `json:"failed_count"`
	PerEntryErrors []ingest.ValidationError `json:"per_entry_errors,omitempty"`
}

// IngestBatch validates and stores a batch of log entries. Per-entry
// failures never fail the whole request: the response reports how many were
// ingested versus failed, and the HTTP status stays 200 unless the row store
// itself is unreachable.
func (h *LogHandler) IngestBatch(c *gin.Context) {
	var req ingestBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.HandleError(c, apperrors.InvalidJSON(err))
		return
	}

	summary, err := h.coordinator.Ingest(c.Request.Context(), req.Logs)
	if err != nil {
		apperrors.HandleError(c, apperrors.IngestUnavailable(err))
		return
	}
	apperrors.Success(c, ingestBatchResponse{
		IngestedCount:  summary.IngestedCount(),
		FailedCount:    summary.FailedCount(),
		PerEntryErrors: summary.Errors,
	})
}

// Search answers both free-text relevance queries and structured filtered
// queries, routed transparently by query.Engine based on the filter shape.
func (h *LogHandler) Search(c *gin.Context) {
	filter := models.LogFilter{
		Level:         models.LogLevel(c.Query("level")),
		SourceType:    models.SourceType(c.Query("source_type")),
		Host:          c.Query("host"),
		Service:       c.Query("service"),
		Category:      c.Query("category"),
		Query:         c.Query("q"),
		RequestID:     c.Query("request_id"),
		SessionID:     c.Query("session_id"),
		CorrelationID: c.Query("correlation_id"),
		IPAddress:     c.Query("ip_address"),
		Limit:         queryInt(c, "limit", 0),
		Offset:        queryInt(c, "offset", 0),
	}
	if start, ok := queryTime(c, "start"); ok {
		filter.Start = start
	}
	if end, ok := queryTime(c, "end"); ok {
		filter.End = end
	}

	result, err := h.engine.Search(c.Request.Context(), filter)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	apperrors.Success(c, gin.H{
		"logs":        result.Entries,
		"total_count": result.Total,
		"limit":       result.Limit,
		"offset":      result.Offset,
	})
}

// GetByExternalID returns a single log entry by its caller-supplied
// identifier.
func (h *LogHandler) GetByExternalID(c *gin.Context) {
	entry, err := h.engine.GetByExternalID(c.Request.Context(), c.Param("external_id"))
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	apperrors.Success(c, entry)
}

// Correlate reconstructs a timestamp-ordered event sequence sharing one
// correlation key, named generically as key/value/limit per spec §6 (not
// one query parameter per key) so any indexed correlation key — including
// ip_address — is reachable through the same route.
func (h *LogHandler) Correlate(c *gin.Context) {
	key := c.Query("key")
	value := c.Query("value")
	limit := queryInt(c, "limit", 0)

	entries, err := h.engine.Correlate(c.Request.Context(), key, value, limit)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	apperrors.Success(c, gin.H{
		"logs":              entries,
		"correlation_key":   key,
		"correlation_value": value,
		"count":             len(entries),
		"limit":             limit,
	})
}

// Stats returns the level/source_type distribution and derived rates over a
// time window, defaulting to the trailing 24 hours when start_time/end_time
// are omitted.
func (h *LogHandler) Stats(c *gin.Context) {
	start, _ := queryTime(c, "start_time")
	end, _ := queryTime(c, "end_time")

	rollup, err := h.engine.Stats(c.Request.Context(), start, end)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	apperrors.Success(c, rollup)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func queryTime(c *gin.Context, key string) (time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
