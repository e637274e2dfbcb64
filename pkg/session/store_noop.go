// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

package session

import "context"

// NoopStore is used when no session semantics are wanted. It hands out
// identifiers but remembers nothing, and every session looks empty.
type NoopStore struct{}

// NewNoopStore creates a no-op session store.
func NewNoopStore() *NoopStore { return &NoopStore{} }

func (NoopStore) Create(_ context.Context, _ map[string]any) (string, error) {
	return newID(), nil
}

// Get always yields empty data, never "absent", so callers can treat the
// unconfigured case uniformly.
func (NoopStore) Get(_ context.Context, _ string) (*Data, bool) {
	return NewData(nil), true
}

func (NoopStore) Update(_ context.Context, _ string, _ func(*Data)) bool { return true }

func (NoopStore) Delete(_ context.Context, _ string) bool { return true }

func (NoopStore) RequiresSession() bool { return false }
