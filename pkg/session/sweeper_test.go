// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

package session

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestNewSweeper_InvalidSchedule(t *testing.T) {
	if _, err := NewSweeper(NewMemoryStore(Options{}), "not a cron", nil, nil); err == nil {
		t.Error("expected error for invalid schedule")
	}
}

func TestSweeper_Run(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	store := NewMemoryStore(Options{Clock: clock, TTL: 30 * time.Second})

	if _, err := store.Create(context.Background(), nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	sw, err := NewSweeper(store, "* * * * *", clock, slog.Default())
	if err != nil {
		t.Fatalf("NewSweeper: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sw.Run(ctx) }()

	// Next tick is 12:01:00, by which time the session has expired.
	clock.BlockUntil(1)
	clock.Advance(30 * time.Second)

	// Wait for the sweeper to re-arm for the following minute.
	clock.BlockUntil(1)

	store.mu.RLock()
	remaining := len(store.records)
	store.mu.RUnlock()
	if remaining != 0 {
		t.Errorf("records after sweep = %d, want 0", remaining)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}
}

func TestSweeper_SweepOnceSQLite(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "s.db"), Options{Clock: clock, TTL: time.Minute})
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()

	store.Create(ctx, nil)
	clock.Advance(time.Hour)

	sw, _ := NewSweeper(store, "", clock, nil)
	n, err := sw.SweepOnce(ctx)
	if err != nil || n != 1 {
		t.Errorf("SweepOnce = %d, %v; want 1, nil", n, err)
	}
}
