// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/freitascorp/mcpfn/pkg/audit"
	"github.com/freitascorp/mcpfn/pkg/config"
	"github.com/freitascorp/mcpfn/pkg/logger"
	"github.com/freitascorp/mcpfn/pkg/mcp"
	"github.com/freitascorp/mcpfn/pkg/observability"
	"github.com/freitascorp/mcpfn/pkg/server"
	"github.com/freitascorp/mcpfn/pkg/session"
	"github.com/freitascorp/mcpfn/pkg/tools"
)

const storePingTimeout = 2 * time.Second

// app is the fully wired engine for one process.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      session.Store
	registry   *tools.Registry
	metrics    *observability.Metrics
	audit      *audit.Logger
	dispatcher *mcp.Dispatcher
}

// newApp builds the engine from cfg. Close releases the store.
func newApp(cfg *config.Config, log *slog.Logger) (*app, error) {
	store, err := session.NewStore(cfg.StoreConfig(), log)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}

	registry := tools.NewRegistry()
	if err := registerBuiltinTools(registry); err != nil {
		closeStore(store)
		return nil, fmt.Errorf("register tools: %w", err)
	}

	var auditLog *audit.Logger
	if cfg.Audit.Path != "" {
		fs, err := audit.NewFileStore(cfg.Audit.Path)
		if err != nil {
			closeStore(store)
			return nil, fmt.Errorf("audit log: %w", err)
		}
		auditLog = audit.NewLogger(fs, log)
	}

	metrics := observability.NewMetrics()
	version := cfg.Server.Version
	if version == "" {
		version = formatVersion()
	}

	return &app{
		cfg:      cfg,
		logger:   log,
		store:    store,
		registry: registry,
		metrics:  metrics,
		audit:    auditLog,
		dispatcher: mcp.NewDispatcher(registry, mcp.Options{
			Name:         cfg.Server.Name,
			Version:      version,
			Store:        store,
			Logger:       log,
			Metrics:      metrics,
			Audit:        auditLog,
			MaxBodyBytes: cfg.Server.MaxBodyBytes,
		}),
	}, nil
}

func (a *app) Close() error {
	return closeStore(a.store)
}

func closeStore(s session.Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// newSweeper returns a sweeper when the store can purge, else nil.
func (a *app) newSweeper() (*session.Sweeper, error) {
	p, ok := a.store.(session.Purger)
	if !ok {
		return nil, nil
	}
	sw, err := session.NewSweeper(p, a.cfg.Session.SweepSchedule, nil, a.logger)
	if err != nil {
		return nil, err
	}
	sw.OnPurge = a.metrics.SessionsPurgedAdd
	return sw, nil
}

// storeCheck pings stores backed by an external service. In-process stores
// have nothing to reach and get no check.
func storeCheck(store session.Store, backend string) server.CheckFunc {
	p, ok := store.(session.Pinger)
	if !ok {
		return nil
	}
	return func() (bool, string) {
		ctx, cancel := context.WithTimeout(context.Background(), storePingTimeout)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			return false, fmt.Sprintf("%s: %v", backend, err)
		}
		return true, backend
	}
}

// loadConfig loads the configuration named by --config and applies the
// global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDebug {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	return logger.New(logger.Options{
		Handler: cfg.Log.Handler,
		Level:   cfg.Log.Level,
		Writer:  os.Stderr,
	})
}
