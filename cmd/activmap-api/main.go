package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/activmap/activmap-api/internal/handler"
	"github.com/activmap/activmap-api/internal/middleware"
	"github.com/activmap/activmap-api/internal/repository"
	"github.com/activmap/activmap-api/internal/service"
	"github.com/activmap/activmap-api/pkg/cache"
	"github.com/activmap/activmap-api/pkg/config"
	"github.com/activmap/activmap-api/pkg/database"
	"github.com/activmap/activmap-api/pkg/jobs"
	"github.com/activmap/activmap-api/pkg/logger"
	corsmiddleware "github.com/activmap/activmap-api/pkg/middleware/cors"
	reqidmiddleware "github.com/activmap/activmap-api/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The API degrades gracefully without Redis: no listing cache,
		// no verification codes.
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	markerRepo := repository.NewMarkerRepository(db)
	referenceRepo := repository.NewReferenceRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	contentRepo := repository.NewContentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	refreshQueue := jobs.NewQueue("marker-cache", func(ctx context.Context, job jobs.Job) error {
		key := job.Payload
		if key == "" {
			key = service.MarkerListCacheKey
		}
		return cacheRepo.Delete(ctx, key)
	}, jobs.QueueConfig{Workers: 1, Logger: logr})

	metricsService := service.NewMetricsService()
	markerService := service.NewMarkerService(markerRepo, referenceRepo, auditRepo, validator.New(), logr,
		service.WithListingCache(cacheRepo, cfg.Markers.ListCacheTTL),
		service.WithRefreshQueue(refreshQueue),
		service.WithDefaultLanguage(cfg.Markers.DefaultLanguage),
		service.WithMarkerMetrics(metricsService),
	)
	directoryService := service.NewDirectoryService(referenceRepo, auditRepo, logr)
	contentService := service.NewContentService(contentRepo, markerRepo, logr)
	verificationService := service.NewVerificationService(cacheRepo, cfg.Verification.CodeLength, cfg.Verification.CodeTTL, logr)

	markerHandler := handler.NewMarkerHandler(markerService)
	directoryHandler := handler.NewDirectoryHandler(directoryService)
	contentHandler := handler.NewContentHandler(contentService)
	verificationHandler := handler.NewVerificationHandler(verificationService)
	metricsHandler := handler.NewMetricsHandler(metricsService, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)

	optionalAuth := middleware.OptionalJWT(cfg.JWT.Secret)
	requireAuth := middleware.JWT(cfg.JWT.Secret)
	requireModerator := middleware.RequireModerator()

	markers := api.Group("/markers")
	{
		markers.GET("", markerHandler.ListApproved)
		markers.POST("", optionalAuth, markerHandler.Submit)
		markers.GET("/all", requireAuth, requireModerator, markerHandler.List)
		markers.POST("/:id/moderate", requireAuth, requireModerator, markerHandler.Moderate)
		markers.PATCH("/:id", requireAuth, requireModerator, markerHandler.Edit)
		markers.DELETE("/:id", requireAuth, requireModerator, markerHandler.Delete)
		markers.POST("/:id/restore", requireAuth, requireModerator, markerHandler.Restore)
		markers.GET("/:id/audit", requireAuth, requireModerator, markerHandler.AuditLogs)

		markers.GET("/:id/comments", contentHandler.ListComments)
		markers.POST("/:id/comments", optionalAuth, contentHandler.AddComment)
		markers.GET("/:id/translations", contentHandler.ListTranslations)
		markers.POST("/:id/translations", requireAuth, requireModerator, contentHandler.AddTranslation)
	}

	categories := api.Group("/categories")
	{
		categories.GET("", directoryHandler.ListCategories)
		categories.POST("", requireAuth, requireModerator, directoryHandler.CreateCategory)
	}

	tags := api.Group("/tags")
	{
		tags.GET("", directoryHandler.ListTags)
		tags.POST("", optionalAuth, directoryHandler.CreateTag)
		tags.DELETE("/:id", requireAuth, requireModerator, directoryHandler.DeleteTag)
	}

	organizations := api.Group("/organizations")
	{
		organizations.GET("", directoryHandler.ListOrganizations)
		organizations.POST("", optionalAuth, directoryHandler.CreateOrganization)
	}

	locations := api.Group("/locations")
	{
		locations.GET("/cities", directoryHandler.ListCities)
		locations.POST("/cities", optionalAuth, directoryHandler.AddCity)
		locations.GET("/states", directoryHandler.ListStates)
		locations.POST("/states", optionalAuth, directoryHandler.AddState)
		locations.GET("/countries", directoryHandler.ListCountries)
		locations.POST("/countries", optionalAuth, directoryHandler.AddCountry)
	}

	verification := api.Group("/verification")
	{
		verification.POST("/send", verificationHandler.SendCode)
		verification.POST("/verify", verificationHandler.VerifyCode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	refreshQueue.Start(ctx)
	defer refreshQueue.Stop()

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
