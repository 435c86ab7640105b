package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/thwithaphisek/student-behavior-api/api/swagger"
	"github.com/thwithaphisek/student-behavior-api/internal/handler"
	"github.com/thwithaphisek/student-behavior-api/internal/middleware"
	"github.com/thwithaphisek/student-behavior-api/internal/repository"
	"github.com/thwithaphisek/student-behavior-api/internal/service"
	"github.com/thwithaphisek/student-behavior-api/internal/tracker"
	"github.com/thwithaphisek/student-behavior-api/pkg/cache"
	"github.com/thwithaphisek/student-behavior-api/pkg/config"
	"github.com/thwithaphisek/student-behavior-api/pkg/jobs"
	"github.com/thwithaphisek/student-behavior-api/pkg/logger"
	corsmiddleware "github.com/thwithaphisek/student-behavior-api/pkg/middleware/cors"
	reqidmiddleware "github.com/thwithaphisek/student-behavior-api/pkg/middleware/requestid"
	"github.com/thwithaphisek/student-behavior-api/pkg/storage"
)

// @title Student Behavior API
// @version 1.0.0
// @description Good-behavior record keeping backed by a GitHub project board
// @BasePath /api/v1
// @schemes http

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	validate := validator.New()
	metricsService := service.NewMetricsService()

	var cacheService *service.CacheService
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
	} else {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheService = service.NewCacheService(cacheRepo, metricsService, cfg.Records.CacheTTL, logr, cfg.Records.CacheEnabled)
	}

	trackerClient := tracker.NewClient(cfg.Tracker, nil, logr, metricsService)
	registry := tracker.NewRegistry(trackerClient)
	synchronizer := tracker.NewSynchronizer(trackerClient, registry, cfg.School.Name, logr)

	recordService := service.NewRecordService(synchronizer, cacheService, validate, logr, cfg.Records, cfg.Classrooms)
	authService := service.NewAuthService(cfg.Admin, validate, logr)

	var exportService *service.ExportService
	var reportService *service.ReportService
	if cfg.Reports.Enabled && redisClient != nil {
		store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init report storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		exportService = service.NewExportService(recordService, store, signer, cfg.Reports.FilenamePrefix, logr)

		jobRepo := repository.NewReportJobRepository(redisClient, cfg.Reports.JobTTL, logr)
		worker := service.NewReportWorker(jobRepo, exportService, cfg.Reports.WorkerRetries, logr)
		queue := jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		queue.Start(ctx)
		defer queue.Stop()

		reportService = service.NewReportService(jobRepo, queue, exportService, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: cfg.Reports.CleanupInterval,
		})
		reportService.StartCleanup(ctx)
	} else {
		exportService = service.NewExportService(recordService, nil, nil, cfg.Reports.FilenamePrefix, logr)
	}

	authHandler := handler.NewAuthHandler(authService)
	recordHandler := handler.NewRecordHandler(recordService, exportService)
	reportHandler := handler.NewReportHandler(reportService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group("/api/v1")
	{
		api.POST("/auth/login", authHandler.Login)
		api.POST("/records", recordHandler.Create)
		api.GET("/records", recordHandler.List)
		api.GET("/records/stats", recordHandler.Stats)
		api.GET("/classrooms", recordHandler.Classrooms)
		api.GET("/export/:token", reportHandler.Download)

		admin := api.Group("", middleware.AdminJWT(authService))
		{
			admin.PATCH("/records/:itemId/status", recordHandler.UpdateStatus)
			admin.GET("/records/export", recordHandler.ExportCSV)
			admin.POST("/reports/generate", reportHandler.Generate)
			admin.GET("/reports/status/:id", reportHandler.Status)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
