package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/shopbooks/shopbooks/internal/accounts"
	"github.com/shopbooks/shopbooks/internal/app"
	"github.com/shopbooks/shopbooks/internal/docstore"
	"github.com/shopbooks/shopbooks/internal/fiscal"
	"github.com/shopbooks/shopbooks/internal/ledger"
	"github.com/shopbooks/shopbooks/internal/outbox"
	"github.com/shopbooks/shopbooks/internal/reports"
	"github.com/shopbooks/shopbooks/internal/shared"
	"github.com/shopbooks/shopbooks/internal/syncer"
	"github.com/shopbooks/shopbooks/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	store := docstore.NewPostgres(pool)
	years := fiscal.NewRegistry(store)
	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)

	accountRepo := accounts.NewRepository(store)
	ledgerRepo := ledger.NewRepository(store)
	validator := ledger.NewValidator(accountRepo, years, ledger.DefaultLimits())
	ledgerService := ledger.NewService(ledgerRepo, validator, reportCache)

	queueStore, err := outbox.OpenStore(cfg.QueuePath)
	if err != nil {
		logger.Error("open offline queue", slog.Any("error", err), slog.String("path", cfg.QueuePath))
		os.Exit(1)
	}
	defer func() {
		if err := queueStore.Close(); err != nil {
			logger.Warn("close offline queue", slog.Any("error", err))
		}
	}()
	queue := outbox.NewQueue(queueStore)

	syncLock := shared.NewLock(redisClient, cfg.SyncLockTTL)
	syncService := syncer.NewService(queue, ledgerService, syncLock, logger,
		syncer.WithBatchSize(cfg.SyncBatchSize),
		syncer.WithBatchDelay(cfg.SyncBatchDelay))

	drainJob := jobs.NewSyncDrainJob(syncService, queue, logger)
	integrityJob := jobs.NewLedgerIntegrityJob(store, ledgerRepo, years, logger)

	drainTask, err := jobs.NewSyncDrainTask("")
	if err != nil {
		logger.Error("build drain task", slog.Any("error", err))
		os.Exit(1)
	}
	integrityTask, err := jobs.NewLedgerIntegrityTask("")
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSyncDrain, Handler: drainJob.Handle},
			{Type: jobs.TaskLedgerIntegrity, Handler: integrityJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/15 * * * *", Task: drainTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 3 * * *", Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
