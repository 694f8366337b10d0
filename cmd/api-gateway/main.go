package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/sis-directory-api/api/swagger"
	"github.com/noah-isme/sis-directory-api/internal/handler"
	"github.com/noah-isme/sis-directory-api/internal/identity"
	"github.com/noah-isme/sis-directory-api/internal/middleware"
	"github.com/noah-isme/sis-directory-api/internal/repository"
	"github.com/noah-isme/sis-directory-api/internal/service"
	"github.com/noah-isme/sis-directory-api/pkg/cache"
	"github.com/noah-isme/sis-directory-api/pkg/config"
	"github.com/noah-isme/sis-directory-api/pkg/database"
	"github.com/noah-isme/sis-directory-api/pkg/export"
	"github.com/noah-isme/sis-directory-api/pkg/jobs"
	"github.com/noah-isme/sis-directory-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sis-directory-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sis-directory-api/pkg/middleware/requestid"
)

// @title SIS Directory API
// @version 0.1.0
// @description Identifier and credential allocation for the school directory
// @BasePath /
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, school cache disabled", "error", err)
		redisClient = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	personRepo := repository.NewPersonRepository(db)
	counterRepo := repository.NewCounterRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	schools := repository.NewSchoolCache(schoolRepo, redisClient, cfg.Allocation.SchoolCacheTTL, logr)

	metrics := service.NewMetricsService()
	creds := identity.NewCredentialGenerator(personRepo, cfg.Allocation.UsernameAttempts)
	alloc := service.NewAllocationService(personRepo, counterRepo, metrics, logr)
	registrations := service.NewRegistrationService(personRepo, schools, adminRepo, alloc, creds, metrics, nil, logr, service.RegistrationConfig{
		ConflictRetries: cfg.Allocation.ConflictRetries,
		PasswordLength:  cfg.Allocation.PasswordLength,
	})
	imports := service.NewImportService(personRepo, schools, adminRepo, alloc, creds, nil, logr, service.ImportConfig{
		MaxRows:        cfg.Imports.MaxRows,
		PasswordLength: cfg.Allocation.PasswordLength,
	})
	backfill := service.NewBackfillService(personRepo, adminRepo, schoolRepo, counterRepo, metrics, logr)
	tokens := service.NewTokenService(cfg.JWT)

	// One worker: backfill runs must never overlap.
	backfillQueue := jobs.NewQueue("backfill", func(ctx context.Context, job jobs.Job) error {
		_, err := backfill.Run(ctx, job.ID)
		return err
	}, jobs.QueueConfig{
		Workers:    1,
		BufferSize: cfg.Backfill.QueueSize,
		RetryDelay: cfg.Backfill.RetryDelay,
		Logger:     logr,
	})
	if cfg.Backfill.Enabled {
		backfillQueue.Start(ctx)
		defer backfillQueue.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	healthHandler := handler.NewHealthHandler(db, redisClient)
	personHandler := handler.NewPersonHandler(registrations)
	importHandler := handler.NewImportHandler(imports, export.NewCSVExporter(), export.NewPDFExporter())
	backfillHandler := handler.NewBackfillHandler(backfill, backfillQueue)

	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(tokens))
	api.Use(middleware.RequireRoles("ADMIN", "SUPERADMIN"))
	{
		api.POST("/students", personHandler.CreateStudent)
		api.POST("/staff", personHandler.CreateStaff)
		api.POST("/teachers", personHandler.CreateTeacher)
		api.POST("/teachers/:id/credentials", personHandler.ResetCredentials)
		api.POST("/imports/people", importHandler.BulkCreate)
		if cfg.Backfill.Enabled {
			api.POST("/backfill/teacher-codes", backfillHandler.Enqueue)
			api.GET("/backfill/teacher-codes/last", backfillHandler.LastReport)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
