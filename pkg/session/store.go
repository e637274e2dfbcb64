// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

// Package session holds MCP session state: the SessionData value type, the
// pluggable Store capability interface with its backends, and the
// request-scoped context that lets tool handlers reach the active session
// without threading its identifier through every call.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/freitascorp/mcpfn/pkg/resilience"
)

// DefaultTTL is how long a durable session lives after creation.
const DefaultTTL = time.Hour

// ErrNotFound is returned by store internals when a record is absent or expired.
var ErrNotFound = errors.New("session not found")

// Store is the capability interface every session backend implements.
//
// Get, Update and Delete never surface backend failures: a failed read is
// reported as an absent session and a failed write as false. Create is the
// exception, since a caller cannot proceed without a valid identifier.
type Store interface {
	// Create persists initial (which may be nil) under a fresh identifier.
	Create(ctx context.Context, initial map[string]any) (string, error)

	// Get returns a private copy of the session's data, or false when the
	// session is unknown, expired, or unreadable.
	Get(ctx context.Context, id string) (*Data, bool)

	// Update applies mutate to the stored data and writes it back.
	Update(ctx context.Context, id string, mutate func(*Data)) bool

	// Delete removes the session.
	Delete(ctx context.Context, id string) bool

	// RequiresSession reports whether requests other than initialize must
	// carry a session identifier.
	RequiresSession() bool
}

// Purger is implemented by stores that keep expired records around until
// they are swept.
type Purger interface {
	Purge(ctx context.Context) (int, error)
}

// Pinger is implemented by stores backed by an external service whose
// reachability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Record is the persisted form of a durable session.
type Record struct {
	SessionID string         `json:"session_id"`
	Data      map[string]any `json:"data"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Expired reports whether the record is past its expiry at now.
func (r *Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Options configures the durable stores.
type Options struct {
	TTL             time.Duration // session lifetime (default: DefaultTTL)
	RefreshOnUpdate bool          // push expires_at forward on every successful Update
	Clock           clockwork.Clock
	Logger          *slog.Logger
	Retry           resilience.RetryConfig // applied to Create
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Retry.MaxAttempts <= 0 {
		o.Retry = resilience.DefaultRetryConfig()
	}
	return o
}

func newID() string {
	return uuid.NewString()
}

// nextExpiry returns the expiry to write on update: refreshed, or the
// record's original expiry.
func (o Options) nextExpiry(rec *Record) time.Time {
	if o.RefreshOnUpdate {
		return o.Clock.Now().Add(o.TTL)
	}
	return rec.ExpiresAt
}

// mutateRecord applies mutate to a decoded record's data.
func mutateRecord(rec *Record, mutate func(*Data)) {
	d := NewData(rec.Data)
	if mutate != nil {
		mutate(d)
	}
	rec.Data = d.Raw()
}
