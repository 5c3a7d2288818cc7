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

	"github.com/noah-isme/yoga-booking-api/internal/handler"
	"github.com/noah-isme/yoga-booking-api/internal/repository"
	"github.com/noah-isme/yoga-booking-api/internal/service"
	"github.com/noah-isme/yoga-booking-api/pkg/cache"
	"github.com/noah-isme/yoga-booking-api/pkg/config"
	"github.com/noah-isme/yoga-booking-api/pkg/database"
	"github.com/noah-isme/yoga-booking-api/pkg/logger"
	"github.com/noah-isme/yoga-booking-api/pkg/ratelimit"
)

// @title Yoga Booking API
// @version 1.0.0
// @description Class scheduling, weekly limits and enrollments for a yoga studio
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db.DB, logr); err != nil {
			logr.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, "yoga:", cfg.Cache.DirectoryTTL, logr, cfg.Cache.Enabled && redisClient != nil)

	auditSvc := service.NewAuditService(repository.NewAuditRepository(db), service.AuditConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
		MaxRetries: cfg.Audit.MaxRetries,
	}, logr)
	auditSvc.Start(ctx)
	metrics.TrackQueue("audit", auditSvc.Stats)

	validate := validator.New()
	userRepo := repository.NewUserRepository(db)
	classRepo := repository.NewClassRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	limitRepo := repository.NewLimitRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)

	authSvc := service.NewAuthService(userRepo, auditSvc, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		PasswordResetTTL:   cfg.JWT.PasswordResetTTL,
		Issuer:             cfg.JWT.Issuer,
	})
	enrollmentSvc := service.NewEnrollmentService(service.EnrollmentServiceParams{
		Repo:      enrollmentRepo,
		Cache:     cacheSvc,
		Audit:     auditSvc,
		Metrics:   metrics,
		Validator: validate,
		Logger:    logr,
	})
	classSvc := service.NewClassService(service.ClassServiceParams{
		Repo:      classRepo,
		Cache:     cacheSvc,
		Audit:     auditSvc,
		Validator: validate,
		Logger:    logr,
	})
	limitSvc := service.NewLimitService(limitRepo, userRepo, auditSvc, validate, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, cacheSvc, cfg.Cache.DirectoryTTL, logr)
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Profiles:    userRepo,
		Enrollments: enrollmentRepo,
		Limits:      limitRepo,
		Classes:     classSvc,
		Students:    teacherRepo,
		Logger:      logr,
	})

	limiter := ratelimit.NewStore(cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.IdleTTL)
	limiter.StartJanitor(ctx, time.Minute)

	checks := map[string]handler.Pinger{"database": handler.PingerFunc(db.PingContext)}
	if redisClient != nil {
		checks["cache"] = cacheRepo
	}

	r := newRouter(routerDeps{
		cfg:        cfg,
		logger:     logr,
		metrics:    metrics,
		limiter:    limiter,
		tokens:     authSvc,
		auth:       handler.NewAuthHandler(authSvc),
		classes:    handler.NewClassHandler(classSvc, enrollmentSvc),
		enrollment: handler.NewEnrollmentHandler(enrollmentSvc),
		limits:     handler.NewLimitHandler(limitSvc),
		teachers:   handler.NewTeacherHandler(teacherSvc),
		dashboard:  handler.NewDashboardHandler(dashboardSvc),
		probes:     handler.NewMetricsHandler(metrics, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	auditSvc.Stop()
}
