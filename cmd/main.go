// Command backend runs the log intelligence API server: it loads
// configuration from the environment, wires the row store, cache, index
// store, identity gate, ingestion/query/ML components, and handler routes
// together, then serves HTTP until it receives a termination signal.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/logintel/backend/internal/apperrors"
	"github.com/logintel/backend/internal/auth"
	"github.com/logintel/backend/internal/cache"
	"github.com/logintel/backend/internal/config"
	"github.com/logintel/backend/internal/db"
	"github.com/logintel/backend/internal/handlers"
	"github.com/logintel/backend/internal/ingest"
	"github.com/logintel/backend/internal/middleware"
	"github.com/logintel/backend/internal/ml"
	"github.com/logintel/backend/internal/models"
	"github.com/logintel/backend/internal/observability"
	"github.com/logintel/backend/internal/query"
	"github.com/logintel/backend/internal/ratelimit"
	"github.com/logintel/backend/internal/search"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	observability.Initialize(cfg.LogLevel, cfg.Pretty)
	log := observability.GetLogger()
	log.Info().Msg("starting log intelligence backend")

	database, err := db.NewDatabase(db.ConfigFromAppConfig(cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	log.Info().Msg("running database migrations")
	if err := database.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	redisCache, err := cache.NewCache(cache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Enabled:  cfg.CacheEnabled,
	})
	if err != nil {
		log.Warn().Err(err).Msg("redis cache unavailable, continuing without it")
		redisCache, _ = cache.NewCache(cache.Config{Enabled: false})
	}

	searchClient, err := search.NewClient(search.Config{
		Addresses: []string{cfg.SearchURL},
		IndexName: "logs",
		Timeout:   10 * time.Second,
	})
	if err != nil {
		log.Warn().Err(err).Msg("search index store unavailable, correlation search will be degraded")
		searchClient = nil
	}

	userDB := db.NewUserDB(database)
	logDB := db.NewLogDB(database)
	predictionDB := db.NewPredictionDB(database)

	sessionStore := auth.NewSessionStore(redisCache)
	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		SecretKey:       cfg.JWTSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	}, sessionStore)

	limiter := ratelimit.NewLimiter(redisCache, cfg.RateLimits)

	coordinator := ingest.NewCoordinator(logDB, searchClient)
	engine := query.NewEngine(logDB, searchClient)
	serving := ml.NewServing(logDB, predictionDB)
	analyzer := ml.NewAnalyzer(logDB, predictionDB, cfg.ModelArtifactDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := analyzer.StartScheduled(ctx, "0 */4 * * *", cfg.AnalyzerWindow, cfg.AnalyzerBatchLimit); err != nil {
		log.Warn().Err(err).Msg("failed to start scheduled analyzer runs")
	}

	authHandler := auth.NewHandler(userDB, jwtManager)
	userHandler := handlers.NewUserHandler(userDB)
	logHandler := handlers.NewLogHandler(coordinator, engine)
	mlHandler := handlers.NewMLHandler(serving, analyzer)
	healthHandler := handlers.NewHealthHandler(database, searchClient, analyzer, jwtManager, userDB)

	router := buildRouter(cfg, limiter)

	healthHandler.RegisterRoutes(router.Group(""))

	v1 := router.Group("/api/v1")
	authHandler.RegisterRoutes(v1.Group("/auth", ratelimit.Middleware(limiter, models.EndpointClassLogin, nil)))

	authenticated := v1.Group("", auth.Middleware(jwtManager, userDB))
	userHandler.RegisterRoutes(authenticated)
	logHandler.RegisterIngestRoutes(authenticated.Group("", ratelimit.Middleware(limiter, models.EndpointClassIngest, nil)))
	logHandler.RegisterQueryRoutes(authenticated.Group("", ratelimit.Middleware(limiter, models.EndpointClassSearch, nil)))
	mlHandler.RegisterRoutes(authenticated)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: 0, // streaming search responses can legitimately run long
	}

	go func() {
		log.Info().Int("port", cfg.Port).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// buildRouter assembles the middleware chain shared by every route: request
// ID, structured access logging, timeout, method restriction, security
// headers, input sanitization, request size limits, and CORS.
func buildRouter(cfg *config.Config, limiter *ratelimit.Limiter) *gin.Engine {
	router := gin.New()
	router.Use(apperrors.Recovery())
	router.Use(apperrors.ErrorHandler())
	router.Use(middleware.RequestID())
	router.Use(middleware.StructuredLoggerWithConfig(middleware.DefaultStructuredLoggerConfig()))
	router.Use(middleware.Timeout(middleware.DefaultTimeoutConfig()))
	router.Use(middleware.AllowedHTTPMethods())
	router.Use(middleware.DisallowedHTTPMethods())
	router.Use(middleware.SecurityHeaders())

	inputValidator := middleware.NewInputValidator()
	router.Use(inputValidator.Middleware())
	router.Use(inputValidator.SanitizeJSONMiddleware())

	router.Use(middleware.DefaultSizeLimiter())
	router.Use(corsMiddleware(cfg.CORSAllowedOrigins))

	router.Use(ratelimit.Middleware(limiter, models.EndpointClassAnonymous, nil))

	return router
}

// corsMiddleware only allows the configured origins (no wildcard — checked
// in config.Validate) and echoes back credentials support for the
// browser-based dashboard this API serves.
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[strings.TrimSpace(origin)] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && allowed[origin] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
