package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-esg/meridian/internal/jobs"
)

// ExpirySweeper deactivates time-boxed grants whose window has closed.
type ExpirySweeper interface {
	DeactivateExpiredAssignments(ctx context.Context, now time.Time) (int64, error)
	DeactivateExpiredDelegations(ctx context.Context, now time.Time) (int64, error)
}

// ExpirySweepJob retires expired role assignments and delegations. The
// resolver already ignores expired grants at decision time; the sweep keeps
// listings and review snapshots honest.
type ExpirySweepJob struct {
	Store   ExpirySweeper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewExpirySweepJob initialises the expiry sweep handler.
func NewExpirySweepJob(store ExpirySweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *ExpirySweepJob {
	return &ExpirySweepJob{
		Store:   store,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one sweep pass.
func (j *ExpirySweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("expiry sweep: handler not configured")
	}
	var payload ExpirySweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	cutoff := j.now()
	if payload.AsOf != nil {
		cutoff = payload.AsOf.UTC()
	}

	tracker := j.metrics().Track(TaskAuthzExpirySweep)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Time("cutoff", cutoff))
	logger.Info("starting expiry sweep")

	assignments, err := j.Store.DeactivateExpiredAssignments(ctx, cutoff)
	if err != nil {
		resultErr = err
		logger.Error("sweep assignments failed", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddSwept("assignments", assignments)

	delegations, err := j.Store.DeactivateExpiredDelegations(ctx, cutoff)
	if err != nil {
		resultErr = err
		logger.Error("sweep delegations failed", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddSwept("delegations", delegations)

	logger.Info("completed expiry sweep",
		slog.Int64("assignments", assignments),
		slog.Int64("delegations", delegations),
	)
	return resultErr
}

func (j *ExpirySweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAuthzExpirySweep))
	}
	return slog.Default().With(slog.String("job", TaskAuthzExpirySweep))
}

func (j *ExpirySweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ExpirySweepJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
