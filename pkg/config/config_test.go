// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freitascorp/mcpfn/pkg/session"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mcpfn.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "mcpfn", cfg.Server.Name)
	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, int64(1<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, "none", cfg.Session.Backend)
	assert.Equal(t, session.DefaultTTL, cfg.Session.TTL)
	assert.Equal(t, session.DefaultSweepSchedule, cfg.Session.SweepSchedule)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
server:
  name: hello
  listen: 127.0.0.1:9000
log:
  handler: json
  level: debug
session:
  backend: redis
  ttl: 15m
  redis:
    addr: localhost:6379
    key_prefix: "hello:"
audit:
  path: /tmp/audit.jsonl
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "hello", cfg.Server.Name)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Listen)
	assert.Equal(t, "json", cfg.Log.Handler)
	assert.Equal(t, 15*time.Minute, cfg.Session.TTL)
	assert.Equal(t, "localhost:6379", cfg.Session.Redis.Addr)
	assert.Equal(t, "hello:", cfg.Session.Redis.KeyPrefix)
	assert.Equal(t, "/tmp/audit.jsonl", cfg.Audit.Path)
	// untouched keys keep their defaults
	assert.Equal(t, int64(1<<20), cfg.Server.MaxBodyBytes)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "session:\n  backend: memory\n")
	t.Setenv("MCPFN_SESSION_BACKEND", "postgres")
	t.Setenv("MCPFN_SESSION_POSTGRES_HOST", "db.internal")
	t.Setenv("MCPFN_SESSION_POSTGRES_PORT", "6543")
	t.Setenv("MCPFN_SESSION_TTL", "90s")
	t.Setenv("MCPFN_SERVER_MAX_BODY_BYTES", "4096")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Session.Backend)
	assert.Equal(t, "db.internal", cfg.Session.Postgres.Host)
	assert.Equal(t, 6543, cfg.Session.Postgres.Port)
	assert.Equal(t, 90*time.Second, cfg.Session.TTL)
	assert.Equal(t, int64(4096), cfg.Server.MaxBodyBytes)

	sc := cfg.StoreConfig()
	require.NotNil(t, sc.Postgres)
	assert.Equal(t, "db.internal", sc.Postgres.Host)
	assert.Equal(t, 90*time.Second, sc.TTL)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad yaml", "server: [", "parse config"},
		{"unknown backend", "session:\n  backend: etcd\n", "unknown backend"},
		{"sqlite without path", "session:\n  backend: sqlite\n", "sqlite_path or data_dir"},
		{"redis without addr", "session:\n  backend: redis\n", "redis.addr"},
		{"redis ttl below one second", "session:\n  backend: redis\n  ttl: 500ms\n  redis:\n    addr: localhost:6379\n", "at least 1s"},
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"bad handler", "log:\n  handler: xml\n", "log.handler"},
		{"bad schedule", "session:\n  sweep_schedule: every minute\n", "sweep_schedule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
