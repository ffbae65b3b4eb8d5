package main

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zerohunger/zerohunger-backend/pkg/logger"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type stubConsumer struct {
	name string
	err  error
	ran  atomic.Bool
}

func (c *stubConsumer) Name() string { return c.name }

func (c *stubConsumer) Run(ctx context.Context) error {
	c.ran.Store(true)
	if c.err != nil {
		return c.err
	}
	<-ctx.Done()
	return ctx.Err()
}

type stubFlusher struct{ calls int }

func (f *stubFlusher) Flush(context.Context) error {
	f.calls++
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard})
}

func TestNewServiceRequiresConsumers(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: testLogger()})
	require.Error(t, err)
}

func TestRunStopsOnDependencyFailure(t *testing.T) {
	c := &stubConsumer{name: "notification-worker"}
	svc, err := NewService(ServiceParams{
		Logger:       testLogger(),
		Dependencies: []dependency{{name: "redis", ping: stubPinger{err: errors.New("refused")}}},
		Consumers:    []consumer{c},
	})
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.ErrorContains(t, err, "redis ping failed")
	require.False(t, c.ran.Load())
}

func TestRunCancelsSiblingsWhenOneConsumerFails(t *testing.T) {
	failing := &stubConsumer{name: "impact-worker", err: errors.New("subscription deleted")}
	healthy := &stubConsumer{name: "analytics-worker"}
	flush := &stubFlusher{}
	svc, err := NewService(ServiceParams{
		Logger:       testLogger(),
		Dependencies: []dependency{{name: "database", ping: stubPinger{}}},
		Consumers:    []consumer{failing, healthy},
		Flushers:     []flusher{flush},
	})
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.ErrorContains(t, err, "impact-worker")
	require.True(t, healthy.ran.Load())
	require.Equal(t, 1, flush.calls)
}

func TestRunReturnsCanceledOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc, err := NewService(ServiceParams{
		Logger:    testLogger(),
		Consumers: []consumer{&stubConsumer{name: "notification-worker"}},
	})
	require.NoError(t, err)

	err = svc.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
