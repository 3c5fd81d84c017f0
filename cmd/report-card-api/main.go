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

	"go.uber.org/zap"

	"github.com/noah-isme/report-card-api/internal/handler"
	"github.com/noah-isme/report-card-api/internal/repository"
	"github.com/noah-isme/report-card-api/internal/router"
	"github.com/noah-isme/report-card-api/internal/service"
	"github.com/noah-isme/report-card-api/pkg/cache"
	"github.com/noah-isme/report-card-api/pkg/config"
	"github.com/noah-isme/report-card-api/pkg/database"
	"github.com/noah-isme/report-card-api/pkg/jobs"
	"github.com/noah-isme/report-card-api/pkg/logger"
)

// @title Report Card API
// @version 1.0.0
// @description Students, subjects, report cards and marks with yearly averages
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if err := run(cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		applied, err := database.NewMigrator(db).Up(ctx)
		if err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		logr.Sugar().Infow("database migrated", "applied", applied)
	}

	metrics := service.NewMetricsService()
	validate := service.NewValidator()

	// Redis only backs the overview snapshot; the API runs without it.
	var cacheRepo service.CacheRepository
	var cachePing handler.Pinger
	if cfg.Overview.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, overview cache disabled", zap.Error(err))
		} else {
			repo := repository.NewCacheRepository(client, logr)
			defer repo.Close() //nolint:errcheck
			cacheRepo = repo
			cachePing = handler.PingFunc(repo.Ping)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Overview.CacheTTL, logr, cfg.Overview.CacheEnabled)

	studentRepo := repository.NewStudentRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	cardRepo := repository.NewReportCardRepository(db)
	markRepo := repository.NewMarkRepository(db)
	overviewRepo := repository.NewOverviewRepository(db)
	userRepo := repository.NewUserRepository(db)

	var task *service.OverviewTask
	queue := jobs.NewQueue("overview", func(ctx context.Context, job jobs.Job) error {
		return task.Handle(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Overview.Workers,
		BufferSize: cfg.Overview.QueueSize,
		MaxRetries: cfg.Overview.MaxRetries,
		RetryDelay: cfg.Overview.RetryDelay,
		Logger:     logr,
		OnResult: func(job jobs.Job, outcome jobs.Outcome, duration time.Duration) {
			task.ObserveResult(job, outcome, duration)
		},
	})

	overviewSvc := service.NewOverviewService(overviewRepo, studentRepo, queue, metrics, logr)
	task = service.NewOverviewTask(overviewSvc, cacheSvc, metrics, logr)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	handlers := router.Handlers{
		Auth:       handler.NewAuthHandler(authSvc),
		Health:     handler.NewHealthHandler(map[string]handler.Pinger{"database": db, "cache": cachePing}, logr),
		Students:   handler.NewStudentHandler(service.NewStudentService(studentRepo, cacheSvc, validate, logr)),
		Subjects:   handler.NewSubjectHandler(service.NewSubjectService(subjectRepo, cacheSvc, validate, logr)),
		ReportCard: handler.NewReportCardHandler(service.NewReportCardService(cardRepo, studentRepo, overviewRepo, cacheSvc, validate, logr)),
		Marks:      handler.NewMarkHandler(service.NewMarkService(markRepo, cardRepo, subjectRepo, cacheSvc, validate, logr)),
		Overview:   handler.NewOverviewHandler(overviewSvc, service.NewExportService(overviewSvc, cacheSvc, logr)),
	}

	queue.Start(ctx)
	defer queue.Stop()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router.New(cfg, logr, metrics, authSvc, handlers),
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logr.Info("server stopped")
	return nil
}
