// Package main - точка входа фоновых процессов (Worker) Oqu Learning Hub.
//
// Worker отвечает за сверку: находит записи о завершении уроков, по
// которым начисление XP/серий/бейджей не было доведено до конца, и
// идемпотентно повторяет начисление. Благодаря этому ни одно
// завершение не теряет награду даже после сбоя на пути записи.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/oqu-hub/oqu-learning-hub/config"

	// Application layer
	"github.com/oqu-hub/oqu-learning-hub/internal/application/command"
	"github.com/oqu-hub/oqu-learning-hub/internal/application/eventhandler"

	// Domain layer
	"github.com/oqu-hub/oqu-learning-hub/internal/domain/learner"
	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"

	// Infrastructure layer
	"github.com/oqu-hub/oqu-learning-hub/internal/infrastructure/messaging"
	"github.com/oqu-hub/oqu-learning-hub/internal/infrastructure/persistence/postgres"
	"github.com/oqu-hub/oqu-learning-hub/internal/infrastructure/persistence/redis"
	"github.com/oqu-hub/oqu-learning-hub/internal/infrastructure/scheduler"
	"github.com/oqu-hub/oqu-learning-hub/internal/infrastructure/scheduler/jobs"

	// Packages
	"github.com/oqu-hub/oqu-learning-hub/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting Oqu Learning Hub Worker",
		"env", cfg.App.Environment,
		"reconcile_interval", cfg.Scheduler.ReconcileInterval.String(),
	)

	if !cfg.Scheduler.Enabled {
		log.Warn("scheduler disabled via config, nothing to do")
		return nil
	}
	if !cfg.Features.IsEnabled(config.FeatureOpsReconciliation, nil) {
		log.Warn("reconciliation disabled via feature flag, nothing to do")
		return nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL, postgres.PoolSettings{
		MaxConns:        cfg.Database.MaxOpenConns,
		MinConns:        cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Миграции применяет API сервер; worker только проверяет, что схема есть.
	migrator := postgres.NewMigrator(dbConn)
	applied, err := migrator.GetAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to check migrations: %w", err)
	}
	log.Info("database ready", "applied_migrations", len(applied))

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ИНИЦИАЛИЗАЦИЯ REDIS (опционально, для инвалидации кеша)
	// ─────────────────────────────────────────────────────────────────────────
	var statsCache *redis.StatsCache

	if !cfg.Redis.Disabled {
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB

		redisCache, err := redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, cache invalidation disabled", "error", err)
		} else {
			defer redisCache.Close()
			breaker := circuitbreaker.CacheBreaker(nil)
			statsCache = redis.NewStatsCache(redisCache, breaker)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. РЕПОЗИТОРИИ, EVENT BUS И ОБРАБОТЧИКИ
	// ─────────────────────────────────────────────────────────────────────────
	completionRepo := postgres.NewCompletionRepository(dbConn)
	ledgerRepo := postgres.NewLedgerRepository(dbConn)
	statsRepo := postgres.NewStatsRepository(dbConn)
	courseRepo := postgres.NewCourseRepository(dbConn)

	eventBusConfig := messaging.DefaultInMemoryEventBusConfig()
	eventBusConfig.Logger = log
	eventBus := messaging.NewInMemoryEventBus(eventBusConfig)
	defer func() { _ = eventBus.Close() }()

	if statsCache != nil {
		progressChanged := eventhandler.NewOnProgressChangedHandler(statsCache, log)
		for _, eventType := range progressChanged.EventTypes() {
			if err := eventBus.Subscribe(eventType, progressChanged.Handle); err != nil {
				return fmt.Errorf("failed to subscribe handler: %w", err)
			}
		}
	}

	badgeEngine := learner.NewBadgeEngine()
	recorder := command.NewRecordCompletionHandler(
		completionRepo,
		ledgerRepo,
		statsRepo,
		courseRepo,
		badgeEngine,
		eventBus,
		shared.XP(cfg.Gamification.XPPerLesson),
	)
	reconciler := command.NewReconcileCompletionsHandler(completionRepo, recorder, eventBus)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. SCHEDULER И ЗАДАЧИ
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(log)

	jobConfig := jobs.DefaultReconcileUncreditedConfig()
	jobConfig.GracePeriod = cfg.Gamification.ReconcileGracePeriod
	jobConfig.BatchSize = cfg.Gamification.ReconcileBatchSize
	jobConfig.Timeout = cfg.Scheduler.JobTimeout

	reconcileJob := jobs.NewReconcileUncreditedJob(reconciler, log, jobConfig)
	if err := sched.Register(reconcileJob, scheduler.NewIntervalSchedule(cfg.Scheduler.ReconcileInterval)); err != nil {
		return fmt.Errorf("failed to register reconcile job: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	log.Info("Oqu Learning Hub Worker is running")

	// ─────────────────────────────────────────────────────────────────────────
	// 6. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())

	if err := sched.Stop(); err != nil {
		log.Error("failed to stop scheduler gracefully", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if cfg.App.Debug || cfg.Observability.LogLevel == "debug" {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" || cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}
