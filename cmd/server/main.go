// Package main - точка входа HTTP API сервера Oqu Learning Hub.
//
// Сервер принимает завершения уроков, начисляет XP, ведёт серии
// активности, выдаёт бейджи и отдаёт агрегированный прогресс.
//
// Архитектура следует принципам Clean Architecture и DDD:
// - Domain: чистая бизнес-логика без внешних зависимостей
// - Application: оркестрация use cases (Commands/Queries)
// - Infrastructure: Postgres, Redis, event bus, scheduler
// - Interface: HTTP endpoints
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/oqu-hub/oqu-learning-hub/config"

	// Application layer
	"github.com/oqu-hub/oqu-learning-hub/internal/application/command"
	"github.com/oqu-hub/oqu-learning-hub/internal/application/eventhandler"
	"github.com/oqu-hub/oqu-learning-hub/internal/application/query"

	// Domain layer
	"github.com/oqu-hub/oqu-learning-hub/internal/domain/learner"
	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"

	// Infrastructure layer
	"github.com/oqu-hub/oqu-learning-hub/internal/infrastructure/messaging"
	"github.com/oqu-hub/oqu-learning-hub/internal/infrastructure/persistence/postgres"
	"github.com/oqu-hub/oqu-learning-hub/internal/infrastructure/persistence/redis"

	// Interface layer
	httpserver "github.com/oqu-hub/oqu-learning-hub/internal/interface/http"
	"github.com/oqu-hub/oqu-learning-hub/internal/interface/http/handlers"

	// Packages
	"github.com/oqu-hub/oqu-learning-hub/pkg/circuitbreaker"
	"github.com/oqu-hub/oqu-learning-hub/pkg/logger"
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
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting Oqu Learning Hub API",
		"env", cfg.App.Environment,
		"debug", cfg.App.Debug,
		"version", cfg.App.Version,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ
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
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЗАПУСК МИГРАЦИЙ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("running database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	applied, err := migrator.GetAppliedMigrations(ctx)
	if err != nil {
		log.Warn("failed to get migration status", "error", err)
	} else {
		log.Info("migrations completed", "applied", len(applied))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		statsCache *redis.StatsCache
		redisConn  *redis.Cache
	)

	if !cfg.Redis.Disabled && !cfg.Features.IsEnabled(config.FeatureOpsStatsCache, nil) {
		log.Info("stats cache disabled via feature flag")
		cfg.Redis.Disabled = true
	}

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err := redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, stats caching disabled", "error", err)
		} else {
			defer redisCache.Close()
			breaker := circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit breaker state change",
					"breaker", name, "from", from.String(), "to", to.String())
			})
			statsCache = redis.NewStatsCache(redisCache, breaker)
			redisConn = redisCache
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	completionRepo := postgres.NewCompletionRepository(dbConn)
	ledgerRepo := postgres.NewLedgerRepository(dbConn)
	statsRepo := postgres.NewStatsRepository(dbConn)
	courseRepo := postgres.NewCourseRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ИНИЦИАЛИЗАЦИЯ EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	eventBusConfig := messaging.DefaultInMemoryEventBusConfig()
	eventBusConfig.Logger = log
	eventBusConfig.AsyncMode = true
	eventBus := messaging.NewInMemoryEventBus(eventBusConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ИНИЦИАЛИЗАЦИЯ APPLICATION LAYER (Commands, Queries)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing application layer...")

	badgeEngine := learner.NewBadgeEngine()

	recordCompletionCmd := command.NewRecordCompletionHandler(
		completionRepo,
		ledgerRepo,
		statsRepo,
		courseRepo,
		badgeEngine,
		eventBus,
		shared.XP(cfg.Gamification.XPPerLesson),
	)

	var cache query.StatsCache
	if statsCache != nil {
		cache = statsCache
	}
	statsQuery := query.NewGetStatsHandler(statsRepo, cache, badgeEngine)
	courseProgressQuery := query.NewGetCourseProgressHandler(courseRepo, completionRepo)
	dashboardQuery := query.NewGetDashboardHandler(statsQuery, courseRepo, completionRepo)
	listCoursesQuery := query.NewListCoursesHandler(courseRepo)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. РЕГИСТРАЦИЯ EVENT HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	if statsCache != nil {
		log.Info("registering event handlers...")
		progressChanged := eventhandler.NewOnProgressChangedHandler(statsCache, log)
		for _, eventType := range progressChanged.EventTypes() {
			if err := eventBus.Subscribe(eventType, progressChanged.Handle); err != nil {
				return fmt.Errorf("failed to subscribe handler: %w", err)
			}
		}
	} else {
		log.Info("cache invalidation handler not registered - Redis disabled")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	healthChecker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	healthChecker.AddCheck("postgres", handlers.NewDatabaseCheck(dbConn))
	if redisConn != nil {
		healthChecker.AddCheck("redis", handlers.NewCacheCheck(redisConn))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 11. СОЗДАНИЕ HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing HTTP server...")

	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.MaxBodyBytes = cfg.HTTP.MaxBodyBytes
	httpConfig.DefaultTimezone = cfg.App.Timezone

	httpDeps := httpserver.Dependencies{
		RecordCompletionHandler:  recordCompletionCmd,
		GetStatsHandler:          statsQuery,
		GetCourseProgressHandler: courseProgressQuery,
		GetDashboardHandler:      dashboardQuery,
		ListCoursesHandler:       listCoursesQuery,
		Logger:                   logger.Default(),
		HealthChecker:            healthChecker,
	}

	httpServer := httpserver.NewServer(httpConfig, httpDeps)

	// ─────────────────────────────────────────────────────────────────────────
	// 12. ЗАПУСК И GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	errCh := make(chan error, 1)

	go func() {
		log.Info("starting HTTP server", "address", httpServer.Address())
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	log.Info("Oqu Learning Hub API is running", "http_address", httpServer.Address())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		log.Error("service error", "error", err)
		return err
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", "error", err)
		return err
	}

	// Event bus и база данных закроются через defer

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	switch cfg.Observability.LogLevel {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" || cfg.IsProduction() {
		// JSON формат для production (лучше для агрегаторов логов)
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		// Текстовый формат для development (лучше читается)
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}
