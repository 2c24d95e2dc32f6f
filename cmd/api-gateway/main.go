package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/course-enrollment-api/api/swagger"
	"github.com/noah-isme/course-enrollment-api/internal/handler"
	"github.com/noah-isme/course-enrollment-api/internal/repository"
	"github.com/noah-isme/course-enrollment-api/internal/service"
	"github.com/noah-isme/course-enrollment-api/pkg/cache"
	"github.com/noah-isme/course-enrollment-api/pkg/config"
	"github.com/noah-isme/course-enrollment-api/pkg/database"
	"github.com/noah-isme/course-enrollment-api/pkg/jobs"
	"github.com/noah-isme/course-enrollment-api/pkg/logger"
)

// @title Course Enrollment API
// @version 0.1.0
// @description Semester course enrollment with capacity and credit guards
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	metrics := service.NewMetricsService()
	readiness := map[string]handler.Pinger{"postgres": db}

	var cacheStore service.CacheRepository
	if cfg.Catalog.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, catalog cache disabled", zap.Error(err))
		} else {
			cacheRepo := repository.NewCacheRepository(client, logr)
			defer cacheRepo.Close() //nolint:errcheck
			cacheStore = cacheRepo
			readiness["redis"] = handler.PingFunc(cacheRepo.Ping)
		}
	}

	catalogRepo := repository.NewCatalogRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)

	cacheSvc := service.NewCacheService(cacheStore, metrics, cfg.Catalog.CacheTTL, logr, cfg.Catalog.CacheEnabled)
	catalogSvc := service.NewCatalogService(catalogRepo, enrollmentRepo, cacheSvc, cfg.Enrollment.Location(), logr)
	historySvc := service.NewHistoryService(enrollmentRepo, catalogSvc)
	identitySvc := service.NewIdentityService(cfg.JWT, studentRepo, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, catalogRepo, cfg.Enrollment, metrics, logr)
	adminSvc := service.NewAdminEnrollmentService(studentRepo, enrollmentRepo, catalogSvc, historySvc, logr)

	reconcileSvc := service.NewReconcileService(catalogSvc, nil, logr)
	if cfg.Reconciliation.Enabled {
		worker := service.NewReconcileWorker(enrollmentRepo, catalogSvc, metrics, cfg.Enrollment.TxTimeout, logr)
		queue := jobs.NewQueue("offering-reconcile", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reconciliation.Workers,
			MaxRetries: cfg.Reconciliation.MaxRetries,
			RetryDelay: cfg.Reconciliation.RetryDelay,
			Logger:     logr,
		})
		queue.Start(ctx)
		defer queue.Stop()
		reconcileSvc = service.NewReconcileService(catalogSvc, queue, logr)
	}

	validate := validator.New()
	router := newRouter(cfg, logr, routerDeps{
		identity:    identitySvc,
		metrics:     metrics,
		enrollments: handler.NewEnrollmentHandler(enrollmentSvc, catalogSvc, historySvc, validate),
		semesters:   handler.NewSemesterHandler(catalogSvc),
		admin:       handler.NewAdminHandler(adminSvc, reconcileSvc, validate),
		ops:         handler.NewMetricsHandler(metrics, readiness),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logr.Error("server failed", zap.Error(err))
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
