// Package bootstrap runs the startup sequence shared by every binary: load
// .env and config, build the logger, open the stores, and tear them down in
// reverse order on the way out.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/zerohunger/zerohunger-backend/pkg/config"
	"github.com/zerohunger/zerohunger-backend/pkg/db"
	"github.com/zerohunger/zerohunger-backend/pkg/instance"
	"github.com/zerohunger/zerohunger-backend/pkg/logger"
	"github.com/zerohunger/zerohunger-backend/pkg/migrate"
	"github.com/zerohunger/zerohunger-backend/pkg/redis"
)

var exit = os.Exit

type closer struct {
	what string
	fn   func() error
}

// Process is one running binary.
type Process struct {
	Kind    string
	Config  *config.Config
	Logger  *logger.Logger
	boot    context.Context
	closers []closer
}

// Start loads configuration and exits the process when it is unusable.
func Start(kind string) *Process {
	p := &Process{
		Kind:   kind,
		Logger: logger.New(logger.Options{ServiceName: kind}),
		boot:   context.Background(),
	}
	if err := godotenv.Load(); err != nil {
		p.Logger.Warn(p.boot, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	p.Require("config", err)
	cfg.Service.Kind = kind
	p.Config = cfg

	p.Logger = logger.New(logger.Options{
		ServiceName: kind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	return p
}

// Require logs the failing resource, releases whatever is open and exits.
func (p *Process) Require(resource string, err error) {
	if err == nil {
		return
	}
	p.Logger.Error(p.boot, fmt.Sprintf("resource not working: %s", resource), err)
	p.Close()
	exit(1)
}

// OnClose registers fn to run from Close. Later registrations run first.
func (p *Process) OnClose(what string, fn func() error) {
	p.closers = append(p.closers, closer{what: what, fn: fn})
}

func (p *Process) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		c := p.closers[i]
		if err := c.fn(); err != nil {
			p.Logger.Error(p.boot, "error closing "+c.what, err)
		}
	}
	p.closers = nil
}

// Database opens Postgres and applies dev migrations when enabled.
func (p *Process) Database() *db.Client {
	client, err := db.New(p.boot, p.Config.DB, p.Logger)
	p.Require("database", err)
	p.OnClose("database", client.Close)
	p.Require("dev migrations", migrate.MaybeRunDev(p.boot, p.Config, p.Logger, client))
	return client
}

func (p *Process) Redis() *redis.Client {
	client, err := redis.New(p.boot, p.Config.Redis, p.Logger)
	p.Require("redis", err)
	p.OnClose("redis", client.Close)
	return client
}

// Context is canceled on SIGINT or SIGTERM and carries the process log fields.
func (p *Process) Context(extra map[string]any) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(p.boot, os.Interrupt, syscall.SIGTERM)
	fields := map[string]any{
		"env":         p.Config.App.Env,
		"serviceKind": p.Kind,
		"instance":    instance.GetID(),
	}
	for k, v := range extra {
		fields[k] = v
	}
	return p.Logger.WithFields(ctx, fields), stop
}

// Fail logs err and exits unless it is nil or the shutdown signal.
func (p *Process) Fail(ctx context.Context, what string, err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	p.Logger.Error(ctx, what+" stopped unexpectedly", err)
	p.Close()
	exit(1)
}
