// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore is an in-process durable-semantics store for development and
// testing. Records expire exactly like the SQL and Redis backends, but
// nothing survives a process restart. For production, use SQLiteStore,
// PostgresStore or RedisStore.
type MemoryStore struct {
	opts Options

	mu      sync.RWMutex
	records map[string]memoryRecord
}

// memoryRecord keeps data encoded so every Get decodes a fresh copy.
type memoryRecord struct {
	data []byte
	rec  Record
}

// NewMemoryStore creates an in-memory session store.
func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		opts:    opts.withDefaults(),
		records: make(map[string]memoryRecord),
	}
}

func (s *MemoryStore) Create(_ context.Context, initial map[string]any) (string, error) {
	data, err := json.Marshal(NewData(initial))
	if err != nil {
		return "", fmt.Errorf("encode session data: %w", err)
	}

	id := newID()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = memoryRecord{
		data: data,
		rec:  Record{SessionID: id, ExpiresAt: s.opts.Clock.Now().Add(s.opts.TTL)},
	}
	return id, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Data, bool) {
	s.mu.RLock()
	r, ok := s.records[id]
	s.mu.RUnlock()
	if !ok || r.rec.Expired(s.opts.Clock.Now()) {
		return nil, false
	}

	var d Data
	if err := json.Unmarshal(r.data, &d); err != nil {
		s.opts.Logger.Warn("session: decode failed", "session_id", id, "error", err)
		return nil, false
	}
	return &d, true
}

// Update runs mutate without holding the lock, so a mutator may itself read
// or update the session. The write is last-writer-wins, like the SQL stores.
func (s *MemoryStore) Update(_ context.Context, id string, mutate func(*Data)) bool {
	s.mu.RLock()
	r, ok := s.records[id]
	s.mu.RUnlock()
	if !ok || r.rec.Expired(s.opts.Clock.Now()) {
		return false
	}

	var d Data
	if err := json.Unmarshal(r.data, &d); err != nil {
		return false
	}
	if mutate != nil {
		mutate(&d)
	}
	data, err := json.Marshal(&d)
	if err != nil {
		s.opts.Logger.Warn("session: encode failed", "session_id", id, "error", err)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[id]
	if !ok || cur.rec.Expired(s.opts.Clock.Now()) {
		return false
	}
	cur.data = data
	cur.rec.ExpiresAt = s.opts.nextExpiry(&cur.rec)
	s.records[id] = cur
	return true
}

func (s *MemoryStore) Delete(_ context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return false
	}
	delete(s.records, id)
	return true
}

func (s *MemoryStore) RequiresSession() bool { return true }

// Purge drops every expired record.
func (s *MemoryStore) Purge(_ context.Context) (int, error) {
	now := s.opts.Clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, r := range s.records {
		if r.rec.Expired(now) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}
