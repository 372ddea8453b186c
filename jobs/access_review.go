package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/meridian-esg/meridian/internal/authz"
	jobmetrics "github.com/meridian-esg/meridian/internal/jobs"
)

// AccessReviewStore provides the aggregates and persistence the review
// needs.
type AccessReviewStore interface {
	ListOrganizationIDs(ctx context.Context) ([]uuid.UUID, error)
	SummarizeOrganizationAccess(ctx context.Context, orgID uuid.UUID) (authz.OrgAccessSummary, error)
	InsertAccessReviewSnapshot(ctx context.Context, snap authz.AccessReviewSnapshot) error
}

// AccessReviewJob snapshots each organization's live grants so reviewers
// can compare access over time without querying the live tables.
type AccessReviewJob struct {
	Store   AccessReviewStore
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewAccessReviewJob initialises the access review handler.
func NewAccessReviewJob(store AccessReviewStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *AccessReviewJob {
	return &AccessReviewJob{
		Store:   store,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle generates review snapshots. A failure on one organization does not
// stop the rest; the run fails if any organization failed.
func (j *AccessReviewJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("access review: handler not configured")
	}
	var payload AccessReviewPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskAuthzAccessReview)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	generatedAt := j.now()
	logger := j.logger()
	logger.Info("starting access review")

	var orgIDs []uuid.UUID
	if payload.OrganizationID != nil {
		orgIDs = []uuid.UUID{*payload.OrganizationID}
	} else {
		ids, err := j.Store.ListOrganizationIDs(ctx)
		if err != nil {
			resultErr = err
			logger.Error("list organizations failed", slog.Any("error", err))
			return resultErr
		}
		orgIDs = ids
	}

	var failed int
	for _, orgID := range orgIDs {
		if err := j.snapshot(ctx, orgID, generatedAt); err != nil {
			failed++
			logger.Error("snapshot failed",
				slog.String("organization_id", orgID.String()),
				slog.Any("error", err),
			)
		}
	}

	logger.Info("completed access review",
		slog.Int("organizations", len(orgIDs)),
		slog.Int("failed", failed),
		slog.Duration("duration", time.Since(generatedAt)),
	)
	if failed > 0 {
		resultErr = errors.New("access review: some organizations failed")
	}
	return resultErr
}

func (j *AccessReviewJob) snapshot(ctx context.Context, orgID uuid.UUID, generatedAt time.Time) error {
	summary, err := j.Store.SummarizeOrganizationAccess(ctx, orgID)
	if err != nil {
		return err
	}
	return j.Store.InsertAccessReviewSnapshot(ctx, authz.AccessReviewSnapshot{
		ID:             uuid.New(),
		OrganizationID: orgID,
		GeneratedAt:    generatedAt,
		Summary:        summary,
	})
}

func (j *AccessReviewJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAuthzAccessReview))
	}
	return slog.Default().With(slog.String("job", TaskAuthzAccessReview))
}

func (j *AccessReviewJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AccessReviewJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
