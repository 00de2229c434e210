package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/trancheflow/trancheflow/internal/app"
	jobmetrics "github.com/trancheflow/trancheflow/internal/jobs"
	"github.com/trancheflow/trancheflow/internal/loan"
	"github.com/trancheflow/trancheflow/internal/observability"
	"github.com/trancheflow/trancheflow/jobs"
)

// tracked wraps a task handler with run count and duration metrics.
func tracked(m *jobmetrics.Metrics, job string, fn asynq.HandlerFunc) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		return m.Track(job).End(fn(ctx, task))
	}
}

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
	metrics := observability.NewMetrics()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	scheduleCache := loan.NewCache(redisClient, cfg.ScheduleCacheTTL)
	snapshotStore := loan.NewSnapshotStore(redisClient, cfg.SnapshotTTL)
	loanService := loan.NewService(scheduleCache, metrics)
	scheduleJob := loan.NewScheduleJob(loanService, snapshotStore, logger)
	searchJob := loan.NewSearchJob(loanService, snapshotStore, logger)
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskScheduleCompute, Handler: tracked(jobMetrics, jobs.TaskScheduleCompute, scheduleJob.Handle)},
			{Type: jobs.TaskTargetPaymentSearch, Handler: tracked(jobMetrics, jobs.TaskTargetPaymentSearch, searchJob.Handle)},
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
