package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/meridian-esg/meridian/internal/authz"
)

type fakeReviewStore struct {
	orgs      []uuid.UUID
	failOrg   uuid.UUID
	snapshots []authz.AccessReviewSnapshot
}

func (f *fakeReviewStore) ListOrganizationIDs(ctx context.Context) ([]uuid.UUID, error) {
	return f.orgs, nil
}

func (f *fakeReviewStore) SummarizeOrganizationAccess(ctx context.Context, orgID uuid.UUID) (authz.OrgAccessSummary, error) {
	if orgID == f.failOrg {
		return authz.OrgAccessSummary{}, errors.New("store offline")
	}
	return authz.OrgAccessSummary{OrganizationID: orgID, DistinctUsers: 4}, nil
}

func (f *fakeReviewStore) InsertAccessReviewSnapshot(ctx context.Context, snap authz.AccessReviewSnapshot) error {
	f.snapshots = append(f.snapshots, snap)
	return nil
}

func reviewTask(t *testing.T, payload AccessReviewPayload) *asynq.Task {
	t.Helper()
	task, err := NewAccessReviewTask(payload)
	require.NoError(t, err)
	return task
}

func TestAccessReviewSnapshotsEveryOrganization(t *testing.T) {
	store := &fakeReviewStore{orgs: []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}}
	job := NewAccessReviewJob(store, nil, nil)

	err := job.Handle(context.Background(), reviewTask(t, AccessReviewPayload{}))
	require.NoError(t, err)
	require.Len(t, store.snapshots, 3)
	for i, snap := range store.snapshots {
		require.Equal(t, store.orgs[i], snap.OrganizationID)
		require.Equal(t, store.orgs[i], snap.Summary.OrganizationID)
		require.False(t, snap.GeneratedAt.IsZero())
	}
}

func TestAccessReviewScopesToOneOrganization(t *testing.T) {
	target := uuid.New()
	store := &fakeReviewStore{orgs: []uuid.UUID{uuid.New(), target}}
	job := NewAccessReviewJob(store, nil, nil)

	err := job.Handle(context.Background(), reviewTask(t, AccessReviewPayload{OrganizationID: &target}))
	require.NoError(t, err)
	require.Len(t, store.snapshots, 1)
	require.Equal(t, target, store.snapshots[0].OrganizationID)
}

func TestAccessReviewContinuesPastFailures(t *testing.T) {
	bad := uuid.New()
	good := uuid.New()
	store := &fakeReviewStore{orgs: []uuid.UUID{bad, good}, failOrg: bad}
	job := NewAccessReviewJob(store, nil, nil)

	err := job.Handle(context.Background(), reviewTask(t, AccessReviewPayload{}))
	require.Error(t, err)
	require.Len(t, store.snapshots, 1)
	require.Equal(t, good, store.snapshots[0].OrganizationID)
}

func TestAccessReviewSkipsRetryOnBadPayload(t *testing.T) {
	job := NewAccessReviewJob(&fakeReviewStore{}, nil, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskAuthzAccessReview, []byte("nope")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
