package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

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
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	store := docstore.NewPostgres(pool)
	if err := store.Migrate(ctx); err != nil {
		logger.Error("migrate document store", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	years := fiscal.NewRegistry(store)
	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)

	accountRepo := accounts.NewRepository(store)
	ledgerRepo := ledger.NewRepository(store)
	validator := ledger.NewValidator(accountRepo, years, ledger.DefaultLimits())
	ledgerService := ledger.NewService(ledgerRepo, validator, reportCache)
	accountService := accounts.NewService(accountRepo, ledgerService, cfg.MaxAccountDepth)
	reportService := reports.NewService(ledgerRepo, accountRepo, years, reportCache)

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

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		AccountsHandler: accounts.NewHandler(logger, accountService),
		LedgerHandler:   ledger.NewHandler(logger, ledgerService),
		ReportsHandler:  reports.NewHandler(logger, reportService),
		OutboxHandler:   outbox.NewHandler(logger, queue),
		SyncHandler:     syncer.NewHandler(logger, syncService),
		FiscalHandler:   fiscal.NewHandler(logger, years),
		JobsHandler:     jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
