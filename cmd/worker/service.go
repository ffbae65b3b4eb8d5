package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/zerohunger/zerohunger-backend/pkg/logger"
)

type pinger interface {
	Ping(context.Context) error
}

// consumer is one subscription loop, typically a consumers.Runner.
type consumer interface {
	Name() string
	Run(ctx context.Context) error
}

type flusher interface {
	Flush(ctx context.Context) error
}

type dependency struct {
	name string
	ping pinger
}

type ServiceParams struct {
	Logger       *logger.Logger
	Dependencies []dependency
	Consumers    []consumer
	// Flushers drain buffered output after every consumer has stopped.
	Flushers []flusher
}

// Service runs the lifecycle consumers side by side. A consumer exiting with
// an error stops the others.
type Service struct {
	logg      *logger.Logger
	deps      []dependency
	consumers []consumer
	flushers  []flusher
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if len(params.Consumers) == 0 {
		return nil, errors.New("at least one consumer is required")
	}
	for _, dep := range params.Dependencies {
		if dep.ping == nil {
			return nil, fmt.Errorf("%s client is required", dep.name)
		}
	}
	return &Service{
		logg:      params.Logger,
		deps:      params.Dependencies,
		consumers: params.Consumers,
		flushers:  params.Flushers,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for _, dep := range s.deps {
		if err := dep.ping.Ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", dep.name), err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		name string
		err  error
	}
	results := make(chan result, len(s.consumers))
	for _, c := range s.consumers {
		go func(c consumer) {
			s.logg.Info(s.logg.WithField(runCtx, "consumer", c.Name()), "consumer started")
			results <- result{name: c.Name(), err: c.Run(runCtx)}
		}(c)
	}

	var runErr error
	for range s.consumers {
		res := <-results
		if res.err != nil && !errors.Is(res.err, context.Canceled) {
			s.logg.Error(s.logg.WithField(ctx, "consumer", res.name), "consumer stopped unexpectedly", res.err)
			runErr = multierr.Append(runErr, fmt.Errorf("%s: %w", res.name, res.err))
		}
		cancel()
	}

	flushCtx := context.WithoutCancel(ctx)
	for _, f := range s.flushers {
		if err := f.Flush(flushCtx); err != nil {
			s.logg.Error(ctx, "flush on shutdown failed", err)
			runErr = multierr.Append(runErr, err)
		}
	}

	if runErr == nil && ctx.Err() != nil {
		s.logg.Info(ctx, "worker context canceled")
		return ctx.Err()
	}
	return runErr
}
