package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iho/bankrecon/internal/adapter/export"
	httpAdapter "github.com/iho/bankrecon/internal/adapter/http"
	"github.com/iho/bankrecon/internal/adapter/http/handler"
	apimiddleware "github.com/iho/bankrecon/internal/adapter/http/middleware"
	"github.com/iho/bankrecon/internal/adapter/notify"
	"github.com/iho/bankrecon/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/bankrecon/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/bankrecon/internal/adapter/repository/redis"
	"github.com/iho/bankrecon/internal/domain"
	"github.com/iho/bankrecon/internal/infrastructure/auth"
	"github.com/iho/bankrecon/internal/infrastructure/config"
	"github.com/iho/bankrecon/internal/infrastructure/eventpublisher"
	"github.com/iho/bankrecon/internal/infrastructure/logger"
	"github.com/iho/bankrecon/internal/infrastructure/metrics"
	"github.com/iho/bankrecon/internal/infrastructure/postgres"
	"github.com/iho/bankrecon/internal/infrastructure/redis"
	"github.com/iho/bankrecon/internal/reconcile"
	"github.com/iho/bankrecon/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log.Logger = appLogger

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := migrate(cfg, os.Args[2:]); err != nil {
			appLogger.Fatal().Err(err).Msg("migration failed")
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.Fatal().Err(err).Msg("server failed")
	}
	appLogger.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, appLogger zerolog.Logger) error {
	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.close()
	appLogger.Info().Str("driver", cfg.StorageDriver).Msg("storage ready")

	m := metrics.New()
	idGen := postgresRepo.NewULIDGenerator()

	runUC := usecase.NewRunUseCase(
		store.txManager,
		store.runs,
		store.categories,
		store.outbox,
		store.audit,
		idGen,
		runSettings(cfg),
	).
		WithExporter(export.NewXLSXExporter()).
		WithNotifier(notify.NewLogNotifier(appLogger)).
		WithMetrics(m)
	if store.retrier != nil {
		runUC.WithRetrier(store.retrier)
	}
	categoryUC := usecase.NewCategoryUseCase(store.categories, store.audit, idGen)

	checks := store.checks
	var publisher eventpublisher.Publisher = eventpublisher.NewLogPublisher(appLogger)
	var idempotency usecase.IdempotencyStore

	if cfg.RedisURL != "" {
		client, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer closeRedis(client)

		runUC.
			WithCache(redisRepo.NewCache(client)).
			WithLocker(redisRepo.NewLocker(client, cfg.LockTTL, cfg.LockWait))
		idempotency = redisRepo.NewIdempotencyStore(client)
		publisher = redisRepo.NewPublisher(client, cfg.EventsChannel)
		checks = append(checks, handler.RedisCheck(client))
	} else {
		appLogger.Warn().Msg("REDIS_URL not set: idempotency keys disabled, run locks are process-local")
	}

	routerCfg := httpAdapter.RouterConfig{
		RunHandler:       handler.NewRunHandler(runUC),
		PendingHandler:   handler.NewPendingHandler(runUC),
		CategoryHandler:  handler.NewCategoryHandler(categoryUC),
		SheetHandler:     handler.NewSheetHandler(cfg.MaxUploadBytes),
		HealthHandler:    handler.NewHealthHandler(checks...),
		Logger:           appLogger,
		IdempotencyStore: idempotency,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		Metrics:          m,
	}
	if cfg.AuthEnabled {
		routerCfg.JWTManager = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	}
	if cfg.RateLimitRPS > 0 {
		limiter := apimiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).WithMetrics(m)
		go limiter.RunCleanup(ctx, time.Minute)
		routerCfg.RateLimiter = limiter
	}

	eventPublisher := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: store.outbox,
		Publisher:  publisher,
		Logger:     &appLogger,
		Metrics:    m,
		BatchSize:  cfg.OutboxBatchSize,
		Interval:   cfg.OutboxInterval,
		Retention:  cfg.OutboxRetention,
	})
	go func() {
		if err := eventPublisher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			appLogger.Error().Err(err).Msg("event publisher stopped")
		}
	}()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      httpAdapter.NewRouter(routerCfg),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	appLogger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// migrate handles "migrate up" and "migrate down" (one step).
func migrate(cfg *config.Config, args []string) error {
	direction := "up"
	if len(args) > 0 {
		direction = args[0]
	}

	switch direction {
	case "up":
		return postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath)
	case "down":
		return postgres.RunMigrationsDown(cfg.DatabaseURL, cfg.MigrationsPath)
	default:
		return fmt.Errorf("unknown migrate direction %q (want up or down)", direction)
	}
}

// storage bundles the repositories of one storage driver.
type storage struct {
	txManager  usecase.TransactionManager
	runs       usecase.RunRepository
	categories usecase.CategoryRepository
	outbox     usecase.OutboxRepository
	audit      usecase.AuditRepository
	retrier    usecase.Retrier
	checks     []handler.HealthCheck
	close      func()
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	if cfg.StorageDriver == config.StorageMemory {
		store := memory.NewStore()
		return &storage{
			txManager:  memory.NewTxManager(store),
			runs:       memory.NewRunRepository(store),
			categories: memory.NewCategoryRepository(store),
			outbox:     memory.NewOutboxRepository(store),
			audit:      memory.NewAuditRepository(store),
			close:      func() {},
		}, nil
	}

	if cfg.RunMigrations {
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			return nil, err
		}
	}

	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return nil, err
	}

	return &storage{
		txManager:  postgresRepo.NewTxManager(pool),
		runs:       postgresRepo.NewRunRepository(pool),
		categories: postgresRepo.NewCategoryRepository(pool),
		outbox:     postgresRepo.NewOutboxRepository(pool),
		audit:      postgresRepo.NewAuditRepository(pool),
		retrier:    postgresRepo.NewRetrier(),
		checks:     []handler.HealthCheck{handler.PostgresCheck(pool)},
		close:      pool.Close,
	}, nil
}

func runSettings(cfg *config.Config) usecase.RunSettings {
	areas := make(domain.Areas, 0, len(cfg.Areas))
	for _, a := range cfg.Areas {
		areas = append(areas, domain.Area(a))
	}

	recipients := make(map[domain.Area]string, len(cfg.AreaRecipients))
	for area, addr := range cfg.AreaRecipients {
		recipients[domain.Area(area)] = addr
	}

	return usecase.RunSettings{
		Areas:      areas,
		Recipients: recipients,
		Limits: reconcile.Limits{
			MaxCombination: cfg.MatchMaxCombination,
			MaxCandidates:  cfg.MatchMaxCandidates,
		},
		DefaultWindowDays: cfg.DefaultWindowDays,
		DefaultDateBasis:  domain.DateBasis(cfg.DefaultDateBasis),
		CacheTTL:          cfg.RunCacheTTL,
	}
}

func closeRedis(client *goredis.Client) {
	if err := client.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close redis client")
	}
}
