package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ledgerline/ledgerline/internal/app"
	jobmetrics "github.com/ledgerline/ledgerline/internal/jobs"
	"github.com/ledgerline/ledgerline/internal/platform/db"
	"github.com/ledgerline/ledgerline/internal/recurrence"
	"github.com/ledgerline/ledgerline/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	recurrenceRepo := recurrence.NewRepository(pool)
	recurrenceService := recurrence.NewService(recurrenceRepo, time.Now, logger)

	refreshJob := jobs.NewForecastRefreshJob(recurrenceService, logger, jobmetrics.NewMetrics(nil))

	refreshTask, err := jobs.NewForecastRefreshTask(jobs.ForecastRefreshPayload{
		MonthsAhead: cfg.ForecastMonthsAhead,
	})
	if err != nil {
		logger.Error("build forecast refresh task", slog.Any("error", err))
		os.Exit(1)
	}

	worker := jobs.NewWorker(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, logger)
	worker.Handle(jobs.TaskForecastRefresh, refreshJob.Handle)
	if err := worker.Schedule(cfg.ForecastRefreshCron, refreshTask); err != nil {
		logger.Error("register forecast refresh cron", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker starting",
		slog.String("redis", cfg.RedisAddr),
		slog.String("cron", cfg.ForecastRefreshCron))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
