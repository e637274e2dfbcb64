// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/adhocore/gronx"
	"github.com/jonboulle/clockwork"
)

// DefaultSweepSchedule purges expired sessions every five minutes.
const DefaultSweepSchedule = "*/5 * * * *"

// Sweeper periodically removes expired records from a Purger on a cron
// schedule. Stores evict lazily, so the sweeper only reclaims space; it is
// never needed for correctness.
type Sweeper struct {
	purger   Purger
	schedule string
	clock    clockwork.Clock
	logger   *slog.Logger

	// OnPurge, when set, receives the count of every successful sweep.
	OnPurge func(n int)
}

// NewSweeper validates schedule and returns a sweeper. A nil clock means the
// wall clock.
func NewSweeper(p Purger, schedule string, clock clockwork.Clock, logger *slog.Logger) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if !gronx.New().IsValid(schedule) {
		return nil, fmt.Errorf("invalid sweep schedule %q", schedule)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sweeper{purger: p, schedule: schedule, clock: clock, logger: logger}, nil
}

// SweepOnce runs a single purge.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	n, err := s.purger.Purge(ctx)
	if err != nil {
		s.logger.Warn("session sweep failed", "error", err)
		return 0, err
	}
	if n > 0 {
		s.logger.Info("session sweep", "purged", n)
	}
	if s.OnPurge != nil {
		s.OnPurge(n)
	}
	return n, nil
}

// Run sweeps on every schedule tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	for {
		now := s.clock.Now()
		next, err := gronx.NextTickAfter(s.schedule, now, false)
		if err != nil {
			return fmt.Errorf("next sweep tick: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(next.Sub(now)):
		}

		_, _ = s.SweepOnce(ctx)
	}
}
