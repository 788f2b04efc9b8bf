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
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/casework-api/internal/handler"
	"github.com/noah-isme/casework-api/internal/repository"
	"github.com/noah-isme/casework-api/internal/service"
	"github.com/noah-isme/casework-api/pkg/cache"
	"github.com/noah-isme/casework-api/pkg/config"
	"github.com/noah-isme/casework-api/pkg/database"
	"github.com/noah-isme/casework-api/pkg/logger"
)

// @title Casework API
// @version 1.0.0
// @description Case lifecycle, audit trail and support plan versioning for social protection services
// @BasePath /api/v1
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Cases.CacheEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, case cache disabled", zap.Error(err))
			redisClient = nil
		}
	}

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	var txObserver database.TxObserver
	if metricsSvc != nil {
		txObserver = metricsSvc.ObserveTransaction
	}
	txManager := database.NewTxManager(db, txObserver)

	caseRepo := repository.NewCaseRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	planRepo := repository.NewSupportPlanRepository(db)
	userRepo := repository.NewUserRepository(db)

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cases.CacheTTL, "casework", logr, redisClient != nil)

	validate := validator.New()
	auditSvc := service.NewAuditService(auditRepo, metricsSvc, logr)
	workflowOpts := []service.CaseWorkflowOption{service.WithCaseCache(cacheSvc)}
	if metricsSvc != nil {
		workflowOpts = append(workflowOpts, service.WithCaseMetrics(metricsSvc))
	}

	caseSvc := service.NewCaseService(txManager, caseRepo, auditSvc, userRepo, validate, logr,
		service.CaseServiceConfig{AuditWindow: cfg.Cases.AuditWindow, CacheTTL: cfg.Cases.CacheTTL}, workflowOpts...)
	lifecycleSvc := service.NewCaseLifecycleService(txManager, caseRepo, auditSvc, userRepo, logr, workflowOpts...)
	planSvc := service.NewSupportPlanService(txManager, caseRepo, planRepo, auditSvc, validate, logr, workflowOpts...)
	tokenValidator := service.NewTokenValidator(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	checks := map[string]handler.ReadinessCheck{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := newRouter(cfg, logr, routerDeps{
		tokens:      tokenValidator,
		metrics:     metricsSvc,
		cases:       handler.NewCaseHandler(caseSvc, lifecycleSvc),
		plans:       handler.NewSupportPlanHandler(planSvc),
		observation: handler.NewMetricsHandler(metricsSvc, checks, logr),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
