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

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGo)

	"github.com/freitascorp/mcpfn/pkg/resilience"
)

// SQLiteStore persists sessions in a single SQLite file. It suits
// single-node deployments and local development of the Lambda build; for
// multiple instances sharing sessions use PostgresStore or RedisStore.
//
// expires_at is stored as Unix milliseconds. Expired rows stay on disk until
// Purge runs; Get ignores them regardless.
type SQLiteStore struct {
	db   *sql.DB
	opts Options
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
// Use ":memory:" for a throwaway database.
func NewSQLiteStore(dbPath string, opts Options) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// One writer at a time; also keeps ":memory:" to a single database.
	db.SetMaxOpenConns(1)

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}

	store := &SQLiteStore{db: db, opts: opts.withDefaults()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			data TEXT NOT NULL DEFAULT '{}',
			expires_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks that the database file is still usable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Create(ctx context.Context, initial map[string]any) (string, error) {
	data, err := json.Marshal(NewData(initial))
	if err != nil {
		return "", fmt.Errorf("encode session data: %w", err)
	}

	id := newID()
	expiresAt := s.opts.Clock.Now().Add(s.opts.TTL)
	err = resilience.Retry(ctx, s.opts.Retry, func(int) error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO sessions (session_id, data, expires_at) VALUES (?, ?, ?)`,
			id, string(data), expiresAt.UnixMilli())
		return err
	})
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Data, bool) {
	rec, err := s.load(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.opts.Logger.Warn("session: read failed", "backend", "sqlite", "session_id", id, "error", err)
		}
		return nil, false
	}
	return NewData(rec.Data), true
}

func (s *SQLiteStore) Update(ctx context.Context, id string, mutate func(*Data)) bool {
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
		`UPDATE sessions SET data = ?, expires_at = ? WHERE session_id = ?`,
		string(data), s.opts.nextExpiry(rec).UnixMilli(), id)
	if err != nil {
		s.opts.Logger.Warn("session: write failed", "backend", "sqlite", "session_id", id, "error", err)
		return false
	}
	n, _ := res.RowsAffected()
	return n > 0
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) bool {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id)
	if err != nil {
		s.opts.Logger.Warn("session: delete failed", "backend", "sqlite", "session_id", id, "error", err)
		return false
	}
	n, _ := res.RowsAffected()
	return n > 0
}

func (s *SQLiteStore) RequiresSession() bool { return true }

// Purge deletes every expired row.
func (s *SQLiteStore) Purge(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`,
		s.opts.Clock.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) load(ctx context.Context, id string) (*Record, error) {
	var (
		data      string
		expiresMs int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data, expires_at FROM sessions WHERE session_id = ?`, id).Scan(&data, &expiresMs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rec := &Record{SessionID: id, ExpiresAt: time.UnixMilli(expiresMs)}
	if rec.Expired(s.opts.Clock.Now()) {
		return nil, ErrNotFound
	}
	if err := json.Unmarshal([]byte(data), &rec.Data); err != nil {
		return nil, fmt.Errorf("decode session data: %w", err)
	}
	return rec, nil
}
