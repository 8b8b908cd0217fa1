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
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/meal-gate-api/api/swagger"
	"github.com/noah-isme/meal-gate-api/internal/events"
	"github.com/noah-isme/meal-gate-api/internal/handler"
	"github.com/noah-isme/meal-gate-api/internal/repository"
	"github.com/noah-isme/meal-gate-api/internal/roster"
	"github.com/noah-isme/meal-gate-api/internal/service"
	"github.com/noah-isme/meal-gate-api/pkg/cache"
	"github.com/noah-isme/meal-gate-api/pkg/clock"
	"github.com/noah-isme/meal-gate-api/pkg/config"
	"github.com/noah-isme/meal-gate-api/pkg/database"
	"github.com/noah-isme/meal-gate-api/pkg/logger"
)

// @title Meal Gate API
// @version 1.0.0
// @description Admits students to meals inside configured daily windows.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

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
		logr.Fatal("meal gate stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Meal.CacheBackend == config.CacheBackendRedis {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
	}

	validate := validator.New()
	metrics := service.NewMetricsService()
	sysClock := clock.System{}

	windowRepo := repository.NewMealWindowRepository(db)
	ledger := repository.NewMealAttendanceRepository(db)
	students := repository.NewStudentRepository(db)

	publisher, err := events.NewPublisher(cfg.Kafka, logr)
	if err != nil {
		return fmt.Errorf("init event publisher: %w", err)
	}

	var windowCache service.MealWindowCache
	var cacheRepo *repository.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, "meal-gate", logr)
		defer cacheRepo.Close() //nolint:errcheck
		windowCache = service.NewRedisMealWindowCache(cacheRepo, cfg.Meal.CacheTTL, logr)
	} else {
		windowCache = service.NewMemoryMealWindowCache(cfg.Meal.CacheTTL, sysClock)
	}

	windowSvc := service.NewMealWindowService(windowRepo, windowCache, validate, metrics, logr,
		service.MealWindowServiceConfig{Location: cfg.Meal.Location})
	if err := windowSvc.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap meal windows: %w", err)
	}

	resets, err := service.NewResetScheduler(ledger, publisher, metrics, logr, service.ResetSchedulerConfig{
		Policy:     cfg.Reset.Policy,
		Lead:       cfg.Reset.Lead,
		FixedTimes: cfg.Reset.FixedTimes,
		Timeout:    cfg.Reset.Timeout,
		Location:   cfg.Meal.Location,
		Clock:      sysClock,
	})
	if err != nil {
		return fmt.Errorf("init reset scheduler: %w", err)
	}
	windows, err := windowSvc.List(ctx)
	if err != nil {
		return fmt.Errorf("load meal windows: %w", err)
	}
	if err := resets.Reschedule(ctx, windows); err != nil {
		return fmt.Errorf("schedule resets: %w", err)
	}
	windowSvc.Subscribe(resets.OnMealWindowsChanged)

	rosterCron := cfg.Roster.CronSpec
	if cfg.Roster.SourceURL == "" {
		logr.Warn("ROSTER_SOURCE_URL not set, nightly roster sync disabled")
		rosterCron = ""
	}
	rosterSvc := service.NewRosterSyncService(
		roster.New(cfg.Roster.SourceURL, cfg.Roster.SourceToken, cfg.Roster.HTTPTimeout),
		students, metrics, logr,
		service.RosterSyncServiceConfig{
			Tolerant: cfg.Roster.Tolerant,
			CronSpec: rosterCron,
			Timeout:  cfg.Roster.Timeout,
			Location: cfg.Meal.Location,
			Clock:    sysClock,
		})

	attendanceSvc := service.NewAttendanceService(students, windowSvc, ledger, publisher, validate, metrics, logr,
		service.AttendanceServiceConfig{Location: cfg.Meal.Location, Clock: sysClock})

	authSvc := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	publisher.Start(ctx)
	resets.Start(ctx)
	if err := rosterSvc.Start(ctx); err != nil {
		return fmt.Errorf("start roster sync: %w", err)
	}

	router := newRouter(routerDeps{
		cfg:        cfg,
		logger:     logr,
		auth:       authSvc,
		metrics:    metrics,
		checkIn:    handler.NewCheckInHandler(attendanceSvc),
		windows:    handler.NewMealWindowHandler(windowSvc, resets),
		roster:     handler.NewRosterHandler(rosterSvc),
		attendance: handler.NewAttendanceHandler(attendanceSvc),
		probes:     handler.NewMetricsHandler(metrics, readinessChecks(db, redisClient)),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "reset_policy", cfg.Reset.Policy)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http server shutdown", zap.Error(err))
	}
	if err := resets.Stop(shutdownCtx); err != nil {
		logr.Warn("reset scheduler shutdown", zap.Error(err))
	}
	if err := rosterSvc.Stop(shutdownCtx); err != nil {
		logr.Warn("roster sync shutdown", zap.Error(err))
	}
	if err := publisher.Stop(shutdownCtx); err != nil {
		logr.Warn("event publisher shutdown", zap.Error(err))
	}

	logr.Info("server stopped")
	return nil
}

func readinessChecks(db *sqlx.DB, redisClient *redis.Client) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"database": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}
