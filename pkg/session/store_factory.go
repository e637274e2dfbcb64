// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

package session

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"
)

// StoreConfig holds the parameters needed to create a Store backend.
type StoreConfig struct {
	Backend         string          // "none", "memory", "sqlite", "postgres", "redis"
	TTL             time.Duration   // session lifetime
	RefreshOnUpdate bool            // extend expiry on every write
	DataDir         string          // base directory for the SQLite default path
	SQLitePath      string          // explicit SQLite path (overrides DataDir)
	Postgres        *PostgresConfig // PostgreSQL connection config
	Redis           *RedisConfig    // Redis connection config
}

// NewStore creates the Store implementation named by cfg.Backend.
//
// Backends:
//   - "none"     - no sessions; every request is independent
//   - "memory"   - in-process, expiring, non-durable (dev/test only)
//   - "sqlite"   - single-file durable store
//   - "postgres" - PostgreSQL durable store shared by many instances
//   - "redis"    - Redis store with native key expiry
func NewStore(cfg StoreConfig, logger *slog.Logger) (Store, error) {
	opts := Options{TTL: cfg.TTL, RefreshOnUpdate: cfg.RefreshOnUpdate, Logger: logger}

	switch cfg.Backend {
	case "", "none", "noop":
		logger.Info("session store: disabled")
		return NewNoopStore(), nil

	case "memory":
		logger.Info("session store: using in-memory backend (non-durable)", "ttl", opts.withDefaults().TTL)
		return NewMemoryStore(opts), nil

	case "sqlite":
		dbPath := cfg.SQLitePath
		if dbPath == "" {
			if cfg.DataDir == "" {
				return nil, fmt.Errorf("sqlite store requires sqlite_path or data_dir")
			}
			dbPath = filepath.Join(cfg.DataDir, "sessions.db")
		}
		logger.Info("session store: using SQLite backend", "path", dbPath)
		return NewSQLiteStore(dbPath, opts)

	case "postgres":
		if cfg.Postgres == nil || cfg.Postgres.Host == "" {
			return nil, fmt.Errorf("postgres store requires postgres config")
		}
		logger.Info("session store: using PostgreSQL backend", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		return NewPostgresStore(*cfg.Postgres, opts)

	case "redis":
		if cfg.Redis == nil || cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("redis store requires redis addr")
		}
		logger.Info("session store: using Redis backend", "addr", cfg.Redis.Addr)
		return NewRedisStore(*cfg.Redis, opts)

	default:
		return nil, fmt.Errorf("unknown session store backend: %q (supported: none, memory, sqlite, postgres, redis)", cfg.Backend)
	}
}
