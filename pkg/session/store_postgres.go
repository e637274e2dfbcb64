// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/freitascorp/mcpfn/pkg/resilience"
)

// PostgresStore persists sessions in PostgreSQL so that many function
// instances can share them. Writes are single-row statements; the engine
// never needs cross-record transactions.
type PostgresStore struct {
	db   *sql.DB
	opts Options
}

// PostgresConfig holds connection parameters for PostgreSQL.
type PostgresConfig struct {
	Host     string `yaml:"host"     env:"HOST"`
	Port     int    `yaml:"port"     env:"PORT"`
	User     string `yaml:"user"     env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	Database string `yaml:"database" env:"DATABASE"`
	SSLMode  string `yaml:"ssl_mode" env:"SSLMODE"` // "disable", "require", "verify-full"
}

// DSN returns a PostgreSQL connection string.
func (c PostgresConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, port, c.User, c.Password, c.Database, sslMode)
}

// NewPostgresStore connects to PostgreSQL and ensures the schema exists.
func NewPostgresStore(cfg PostgresConfig, opts Options) (*PostgresStore, error) {
	return newPostgresStore(cfg.DSN(), opts)
}

func newPostgresStore(dsn string, opts Options) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// Lambda instances are short-lived and numerous; keep the pool small.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresStore{db: db, opts: opts.withDefaults()}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS mcp_sessions (
			session_id TEXT PRIMARY KEY,
			data JSONB NOT NULL DEFAULT '{}',
			expires_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mcp_sessions_expires ON mcp_sessions(expires_at)`,
	}
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping checks connectivity to the server.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Create(ctx context.Context, initial map[string]any) (string, error) {
	data, err := json.Marshal(NewData(initial))
	if err != nil {
		return "", fmt.Errorf("encode session data: %w", err)
	}

	id := newID()
	expiresAt := s.opts.Clock.Now().Add(s.opts.TTL).UTC()
	err = resilience.Retry(ctx, s.opts.Retry, func(int) error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO mcp_sessions (session_id, data, expires_at) VALUES ($1, $2, $3)`,
			id, string(data), expiresAt)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Data, bool) {
	rec, err := s.load(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.opts.Logger.Warn("session: read failed", "backend", "postgres", "session_id", id, "error", err)
		}
		return nil, false
	}
	return NewData(rec.Data), true
}

func (s *PostgresStore) Update(ctx context.Context, id string, mutate func(*Data)) bool {
	rec, err := s.load(ctx, id)
	if err != nil {
		return false
	}
	mutateRecord(rec, mutate)

	data, err := json.Marshal(rec.Data)
	if err != nil {
		return false
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE mcp_sessions SET data = $1, expires_at = $2 WHERE session_id = $3`,
		string(data), s.opts.nextExpiry(rec).UTC(), id)
	if err != nil {
		s.opts.Logger.Warn("session: write failed", "backend", "postgres", "session_id", id, "error", err)
		return false
	}
	n, _ := res.RowsAffected()
	return n > 0
}

func (s *PostgresStore) Delete(ctx context.Context, id string) bool {
	res, err := s.db.ExecContext(ctx, `DELETE FROM mcp_sessions WHERE session_id = $1`, id)
	if err != nil {
		s.opts.Logger.Warn("session: delete failed", "backend", "postgres", "session_id", id, "error", err)
		return false
	}
	n, _ := res.RowsAffected()
	return n > 0
}

func (s *PostgresStore) RequiresSession() bool { return true }

// Purge deletes every expired row.
func (s *PostgresStore) Purge(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM mcp_sessions WHERE expires_at <= $1`,
		s.opts.Clock.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *PostgresStore) load(ctx context.Context, id string) (*Record, error) {
	var data []byte
	rec := &Record{SessionID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT data, expires_at FROM mcp_sessions WHERE session_id = $1`, id).Scan(&data, &rec.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if rec.Expired(s.opts.Clock.Now()) {
		return nil, ErrNotFound
	}
	if err := json.Unmarshal(data, &rec.Data); err != nil {
		return nil, fmt.Errorf("decode session data: %w", err)
	}
	return rec, nil
}
