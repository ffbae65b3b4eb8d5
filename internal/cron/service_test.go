package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/zerohunger/zerohunger-backend/pkg/metrics"
)

type countingJob struct {
	name string
	err  error
	runs int
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs++
	return j.err
}

type scriptedLock struct {
	held       bool
	acquireErr error
	released   int
}

func (l *scriptedLock) Acquire(context.Context) (bool, error) {
	if l.acquireErr != nil {
		return false, l.acquireErr
	}
	return !l.held, nil
}

func (l *scriptedLock) Release(context.Context) error {
	l.released++
	return nil
}

func newTestCronService(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:   quietLogger(),
		Registry: NewRegistry(jobs...),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return svc
}

func TestRunOnceContinuesPastFailingJob(t *testing.T) {
	failing := &countingJob{name: "first", err: errors.New("boom")}
	after := &countingJob{name: "second"}
	lock := &scriptedLock{}
	svc := newTestCronService(t, lock, failing, after)

	err := svc.RunOnce(context.Background())
	require.ErrorContains(t, err, "first: boom")
	require.Equal(t, 1, failing.runs)
	require.Equal(t, 1, after.runs)
	require.Equal(t, 1, lock.released)
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &countingJob{name: "expiry"}
	lock := &scriptedLock{held: true}
	svc := newTestCronService(t, lock, job)

	require.NoError(t, svc.RunOnce(context.Background()))
	require.Zero(t, job.runs)
	require.Zero(t, lock.released)
}

func TestRunOnceSurfacesLockErrors(t *testing.T) {
	svc := newTestCronService(t, &scriptedLock{acquireErr: errors.New("redis down")})
	require.ErrorContains(t, svc.RunOnce(context.Background()), "redis down")
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &countingJob{name: "expiry"}
	svc := newTestCronService(t, &scriptedLock{}, job)
	svc.interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, svc.Run(ctx), context.Canceled)
}

func TestNewServiceRequiresLock(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: quietLogger()})
	require.Error(t, err)
}
