package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	assignments int64
	delegations int64
	lastCutoff  time.Time
	failOn      string
}

func (f *fakeSweeper) DeactivateExpiredAssignments(ctx context.Context, now time.Time) (int64, error) {
	if f.failOn == "assignments" {
		return 0, errors.New("store offline")
	}
	f.lastCutoff = now
	return f.assignments, nil
}

func (f *fakeSweeper) DeactivateExpiredDelegations(ctx context.Context, now time.Time) (int64, error) {
	if f.failOn == "delegations" {
		return 0, errors.New("store offline")
	}
	return f.delegations, nil
}

func sweepTask(t *testing.T, payload ExpirySweepPayload) *asynq.Task {
	t.Helper()
	task, err := NewExpirySweepTask(payload)
	require.NoError(t, err)
	return task
}

func TestExpirySweepCountsBothEntities(t *testing.T) {
	store := &fakeSweeper{assignments: 3, delegations: 1}
	job := NewExpirySweepJob(store, nil, nil)
	fixed := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	job.clock = func() time.Time { return fixed }

	err := job.Handle(context.Background(), sweepTask(t, ExpirySweepPayload{}))
	require.NoError(t, err)
	require.Equal(t, fixed, store.lastCutoff)
}

func TestExpirySweepHonorsAsOf(t *testing.T) {
	store := &fakeSweeper{}
	job := NewExpirySweepJob(store, nil, nil)
	asOf := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)

	err := job.Handle(context.Background(), sweepTask(t, ExpirySweepPayload{AsOf: &asOf}))
	require.NoError(t, err)
	require.Equal(t, asOf, store.lastCutoff)
}

func TestExpirySweepPropagatesStoreError(t *testing.T) {
	job := NewExpirySweepJob(&fakeSweeper{failOn: "delegations"}, nil, nil)

	err := job.Handle(context.Background(), sweepTask(t, ExpirySweepPayload{}))
	require.Error(t, err)
}

func TestExpirySweepSkipsRetryOnBadPayload(t *testing.T) {
	job := NewExpirySweepJob(&fakeSweeper{}, nil, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskAuthzExpirySweep, []byte("{not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
