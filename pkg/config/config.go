// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

// Package config loads mcpfn settings from an optional YAML file and the
// MCPFN_* environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/freitascorp/mcpfn/pkg/logger"
	"github.com/freitascorp/mcpfn/pkg/session"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "MCPFN_"

// Config is the full process configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"  envPrefix:"SERVER_"`
	Log     LogConfig     `yaml:"log"     envPrefix:"LOG_"`
	Session SessionConfig `yaml:"session" envPrefix:"SESSION_"`
	Audit   AuditConfig   `yaml:"audit"   envPrefix:"AUDIT_"`
}

type ServerConfig struct {
	Name         string `yaml:"name"           env:"NAME"`
	Version      string `yaml:"version"        env:"VERSION"`
	Listen       string `yaml:"listen"         env:"LISTEN"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" env:"MAX_BODY_BYTES"`
}

type LogConfig struct {
	Handler string `yaml:"handler" env:"HANDLER"` // dev, text, json
	Level   string `yaml:"level"   env:"LEVEL"`
}

// SessionConfig selects and configures the session store.
type SessionConfig struct {
	Backend         string                 `yaml:"backend"           env:"BACKEND"` // none, memory, sqlite, postgres, redis
	TTL             time.Duration          `yaml:"ttl"               env:"TTL"`
	RefreshOnUpdate bool                   `yaml:"refresh_on_update" env:"REFRESH_ON_UPDATE"`
	DataDir         string                 `yaml:"data_dir"          env:"DATA_DIR"`
	SQLitePath      string                 `yaml:"sqlite_path"       env:"SQLITE_PATH"`
	SweepSchedule   string                 `yaml:"sweep_schedule"    env:"SWEEP_SCHEDULE"`
	Postgres        session.PostgresConfig `yaml:"postgres"          envPrefix:"POSTGRES_"`
	Redis           session.RedisConfig    `yaml:"redis"             envPrefix:"REDIS_"`
}

type AuditConfig struct {
	Path string `yaml:"path" env:"PATH"` // JSONL file; empty disables auditing
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Name:         "mcpfn",
			Listen:       ":8080",
			MaxBodyBytes: 1 << 20,
		},
		Log: LogConfig{Handler: logger.HandlerDev, Level: "info"},
		Session: SessionConfig{
			Backend:       "none",
			TTL:           session.DefaultTTL,
			SweepSchedule: session.DefaultSweepSchedule,
		},
	}
}

// Load reads path (when non-empty) over the defaults, then applies the
// environment, then validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.MaxBodyBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_body_bytes must not be negative"))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(c.Log.Handler) {
	case "", logger.HandlerDev, logger.HandlerText, "txt", logger.HandlerJSON:
	default:
		errs = append(errs, fmt.Errorf("log.handler: unknown handler %q", c.Log.Handler))
	}

	s := c.Session
	if s.TTL < 0 {
		errs = append(errs, fmt.Errorf("session.ttl must not be negative"))
	}
	switch s.Backend {
	case "", "none", "noop", "memory":
	case "sqlite":
		if s.SQLitePath == "" && s.DataDir == "" {
			errs = append(errs, fmt.Errorf("session.backend sqlite requires sqlite_path or data_dir"))
		}
	case "postgres":
		if s.Postgres.Host == "" {
			errs = append(errs, fmt.Errorf("session.backend postgres requires postgres.host"))
		}
	case "redis":
		if s.Redis.Addr == "" {
			errs = append(errs, fmt.Errorf("session.backend redis requires redis.addr"))
		}
		// EX takes whole seconds.
		if s.TTL > 0 && s.TTL < time.Second {
			errs = append(errs, fmt.Errorf("session.ttl must be at least 1s for the redis backend, got %s", s.TTL))
		}
	default:
		errs = append(errs, fmt.Errorf("session.backend: unknown backend %q", s.Backend))
	}
	if s.SweepSchedule != "" && !gronx.New().IsValid(s.SweepSchedule) {
		errs = append(errs, fmt.Errorf("session.sweep_schedule: invalid cron expression %q", s.SweepSchedule))
	}

	return errors.Join(errs...)
}

// StoreConfig maps the session section onto the store factory's input.
func (c *Config) StoreConfig() session.StoreConfig {
	pg := c.Session.Postgres
	rd := c.Session.Redis
	return session.StoreConfig{
		Backend:         c.Session.Backend,
		TTL:             c.Session.TTL,
		RefreshOnUpdate: c.Session.RefreshOnUpdate,
		DataDir:         c.Session.DataDir,
		SQLitePath:      c.Session.SQLitePath,
		Postgres:        &pg,
		Redis:           &rd,
	}
}
