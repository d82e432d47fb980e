// This file implements component G's online serving routes: read-only
// lookups over predictions the batch analyzer (component F) already wrote.
// No inference ever happens in this request path.
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/logintel/backend/internal/apperrors"
	"github.com/logintel/backend/internal/ml"
)

// MLHandler serves the prediction-serving routes.
type MLHandler struct {
	serving  *ml.Serving
	analyzer *ml.Analyzer
}

func NewMLHandler(serving *ml.Serving, analyzer *ml.Analyzer) *MLHandler {
	return &MLHandler{serving: serving, analyzer: analyzer}
}

// RegisterRoutes mounts the prediction routes under router: the spec §6
// literal `/ml?action=...` dispatch surface, plus the equivalent
// `/predictions/*` REST routes it's built from.
func (h *MLHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/ml", h.ML)
	router.GET("/predictions/:external_id", h.GetPrediction)
	router.GET("/predictions", h.ListRecent)
	router.GET("/predictions/rollup", h.AnalyticsRollup)
	router.GET("/predictions/status", h.Status)
}

// ML dispatches on the `action` query parameter per spec §6: `analyze`
// (optionally scoped to one log via `log_id`) or `status`.
func (h *MLHandler) ML(c *gin.Context) {
	switch c.Query("action") {
	case "analyze":
		h.analyze(c)
	case "status":
		h.mlStatus(c)
	default:
		apperrors.HandleError(c, apperrors.ValidationFailed("action must be one of: analyze, status"))
	}
}

// analyze answers `/ml?action=analyze`: with `log_id` set, a single
// prediction view annotated with its source (spec §8 scenario S5);
// otherwise the recent stored predictions plus the same source metadata.
func (h *MLHandler) analyze(c *gin.Context) {
	if logID := c.Query("log_id"); logID != "" {
		view, err := h.serving.GetPredictionOrFallback(c.Request.Context(), logID)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		apperrors.Success(c, view)
		return
	}

	window := queryDuration(c, "window", 0)
	limit := queryInt(c, "limit", 0)
	predictions, err := h.serving.ListRecent(c.Request.Context(), window, limit)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	apperrors.Success(c, gin.H{"predictions": predictions, "source": ml.SourceMLPredictions})
}

func (h *MLHandler) mlStatus(c *gin.Context) {
	status, err := h.serving.Status(c.Request.Context())
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	apperrors.Success(c, status)
}

// GetPrediction returns the prediction for a single log entry, or
// prediction_pending (202) if the log exists but the analyzer hasn't
// reached it yet.
func (h *MLHandler) GetPrediction(c *gin.Context) {
	prediction, err := h.serving.GetPrediction(c.Request.Context(), c.Param("external_id"))
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	apperrors.Success(c, prediction)
}

// ListRecent returns predictions from the trailing window, newest first.
func (h *MLHandler) ListRecent(c *gin.Context) {
	window := queryDuration(c, "window", 0)
	limit := queryInt(c, "limit", 0)

	predictions, err := h.serving.ListRecent(c.Request.Context(), window, limit)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	apperrors.Success(c, gin.H{"predictions": predictions})
}

// AnalyticsRollup returns the severity distribution and anomaly rate over a
// window.
func (h *MLHandler) AnalyticsRollup(c *gin.Context) {
	window := queryDuration(c, "window", 0)

	rollup, err := h.serving.AnalyticsRollup(c.Request.Context(), window)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	apperrors.Success(c, rollup)
}

// Status reports the outcome of the most recent batch analyzer run, for
// dashboards polling whether the pipeline is keeping up.
func (h *MLHandler) Status(c *gin.Context) {
	lastRun := h.analyzer.LastRun()
	if lastRun == nil {
		apperrors.Success(c, gin.H{"status": "never_run"})
		return
	}
	apperrors.Success(c, lastRun)
}

func queryDuration(c *gin.Context, key string, fallback time.Duration) time.Duration {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
