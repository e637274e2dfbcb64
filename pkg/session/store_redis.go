// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/freitascorp/mcpfn/pkg/resilience"
)

// DefaultRedisKeyPrefix namespaces session keys.
const DefaultRedisKeyPrefix = "mcpfn:session:"

// RedisStore keeps each session as one JSON-encoded Record under its own
// key with a native Redis TTL, so expired sessions are evicted by the
// server. expires_at is still checked on read because key expiry is lazy.
type RedisStore struct {
	client rueidis.Client
	prefix string
	opts   Options
}

// RedisConfig holds connection parameters for Redis.
type RedisConfig struct {
	Addr      string `yaml:"addr"       env:"ADDR"`
	Password  string `yaml:"password"   env:"PASSWORD"`
	DB        int    `yaml:"db"         env:"DB"`
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// NewRedisStore dials Redis and returns a store that owns the client.
func NewRedisStore(cfg RedisConfig, opts Options) (*RedisStore, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{cfg.Addr},
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	return NewRedisStoreWithClient(client, cfg.KeyPrefix, opts), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client rueidis.Client, prefix string, opts Options) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix, opts: opts.withDefaults()}
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	s.client.Close()
	return nil
}

// Ping sends PING.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Do(ctx, s.client.B().Ping().Build()).Error()
}

func (s *RedisStore) key(id string) string { return s.prefix + id }

func (s *RedisStore) Create(ctx context.Context, initial map[string]any) (string, error) {
	id := newID()
	rec := Record{
		SessionID: id,
		Data:      NewData(initial).Raw(),
		ExpiresAt: s.opts.Clock.Now().Add(s.opts.TTL),
	}
	byt, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}

	err = resilience.Retry(ctx, s.opts.Retry, func(int) error {
		cmd := s.client.B().Set().Key(s.key(id)).Value(string(byt)).Nx().Ex(s.opts.TTL).Build()
		return s.client.Do(ctx, cmd).Error()
	})
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Data, bool) {
	rec, ok := s.load(ctx, id)
	if !ok {
		return nil, false
	}
	return NewData(rec.Data), true
}

func (s *RedisStore) Update(ctx context.Context, id string, mutate func(*Data)) bool {
	rec, ok := s.load(ctx, id)
	if !ok {
		return false
	}
	mutateRecord(rec, mutate)
	rec.ExpiresAt = s.opts.nextExpiry(rec)

	// EX has whole-second resolution; expires_at stays authoritative on read.
	ttl := rec.ExpiresAt.Sub(s.opts.Clock.Now())
	if ttl < time.Second {
		return false
	}
	byt, err := json.Marshal(rec)
	if err != nil {
		return false
	}

	cmd := s.client.B().Set().Key(s.key(id)).Value(string(byt)).Ex(ttl).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		s.opts.Logger.Warn("session: write failed", "backend", "redis", "session_id", id, "error", err)
		return false
	}
	return true
}

func (s *RedisStore) Delete(ctx context.Context, id string) bool {
	n, err := s.client.Do(ctx, s.client.B().Del().Key(s.key(id)).Build()).AsInt64()
	if err != nil {
		s.opts.Logger.Warn("session: delete failed", "backend", "redis", "session_id", id, "error", err)
		return false
	}
	return n > 0
}

func (s *RedisStore) RequiresSession() bool { return true }

func (s *RedisStore) load(ctx context.Context, id string) (*Record, bool) {
	byt, err := s.client.Do(ctx, s.client.B().Get().Key(s.key(id)).Build()).AsBytes()
	if err != nil {
		if !rueidis.IsRedisNil(err) {
			s.opts.Logger.Warn("session: read failed", "backend", "redis", "session_id", id, "error", err)
		}
		return nil, false
	}

	var rec Record
	if err := json.Unmarshal(byt, &rec); err != nil {
		s.opts.Logger.Warn("session: decode failed", "backend", "redis", "session_id", id, "error", err)
		return nil, false
	}
	if rec.Expired(s.opts.Clock.Now()) {
		return nil, false
	}
	return &rec, true
}
