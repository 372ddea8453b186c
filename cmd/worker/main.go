package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/meridian-esg/meridian/internal/app"
	"github.com/meridian-esg/meridian/internal/authz"
	jobmetrics "github.com/meridian-esg/meridian/internal/jobs"
	"github.com/meridian-esg/meridian/internal/platform/db"
	"github.com/meridian-esg/meridian/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := jobmetrics.NewMetrics(nil)
	authzStore := authz.NewStore(pool)

	sweepJob := jobs.NewExpirySweepJob(authzStore, logger, metrics)
	reviewJob := jobs.NewAccessReviewJob(authzStore, logger, metrics)

	sweepTask, err := jobs.NewExpirySweepTask(jobs.ExpirySweepPayload{})
	if err != nil {
		logger.Error("build expiry sweep task", slog.Any("error", err))
		os.Exit(1)
	}
	reviewTask, err := jobs.NewAccessReviewTask(jobs.AccessReviewPayload{})
	if err != nil {
		logger.Error("build access review task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAuthzExpirySweep, Handler: sweepJob.Handle},
			{Type: jobs.TaskAuthzAccessReview, Handler: reviewJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			// Expired grants stop resolving immediately; the sweep just
			// retires the rows shortly after.
			{Spec: "*/10 * * * *", Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 5 * * 1", Task: reviewTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
