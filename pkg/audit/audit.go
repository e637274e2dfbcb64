// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

// Package audit provides an append-only, structured audit log of tool calls
// and session lifecycle events.
//
// Events are written as JSON Lines so they can be shipped to a log pipeline
// unchanged.
package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType categorizes audit events.
type EventType string

const (
	EventToolCall      EventType = "tool.call"
	EventSessionCreate EventType = "session.create"
	EventSessionDelete EventType = "session.delete"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Event is a single immutable audit record.
type Event struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"ts"`
	Type      EventType      `json:"type"`
	Tool      string         `json:"tool,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Result    *EventResult   `json:"result,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// EventResult captures the outcome of the action.
type EventResult struct {
	Status   string        `json:"status"`
	Duration time.Duration `json:"duration_ns,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// QueryOptions filters audit log queries.
type QueryOptions struct {
	Type      EventType
	Tool      string
	SessionID string
	Since     time.Time
	Until     time.Time
	Limit     int
}

func (o QueryOptions) match(e *Event) bool {
	if o.Type != "" && e.Type != o.Type {
		return false
	}
	if o.Tool != "" && e.Tool != o.Tool {
		return false
	}
	if o.SessionID != "" && e.SessionID != o.SessionID {
		return false
	}
	if !o.Since.IsZero() && e.Timestamp.Before(o.Since) {
		return false
	}
	if !o.Until.IsZero() && e.Timestamp.After(o.Until) {
		return false
	}
	return true
}

// Store is the persistence interface for the audit log.
type Store interface {
	// Append writes an event. Events are immutable once written.
	Append(ctx context.Context, event *Event) error

	// Query retrieves events matching the given filters, oldest first.
	Query(ctx context.Context, opts QueryOptions) ([]*Event, error)
}

// ------------------------------------------------------------------
// File-based audit store (append-only JSONL)
// ------------------------------------------------------------------

// FileStore appends events to a single JSON Lines file. The file is never
// rewritten.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store writing to path, creating its directory.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Path returns the log file location.
func (s *FileStore) Path() string { return s.path }

// Append writes an event to the audit log.
func (s *FileStore) Append(_ context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = "evt_" + uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write audit event: %w", err)
	}
	return nil
}

// Query reads events matching the given filters.
func (s *FileStore) Query(ctx context.Context, opts QueryOptions) ([]*Event, error) {
	s.mu.Lock()
	data, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	var results []*Event
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			continue // skip malformed lines
		}
		if !opts.match(&e) {
			continue
		}
		results = append(results, &e)
		if opts.Limit > 0 && len(results) >= opts.Limit {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan audit log: %w", err)
	}
	return results, nil
}

// ------------------------------------------------------------------
// Logger is a convenience wrapper for emitting audit events
// ------------------------------------------------------------------

// Logger emits audit events for the engine. A nil *Logger discards
// everything. Append failures are logged, never returned: auditing must not
// change the outcome of a request.
type Logger struct {
	store Store
	log   *slog.Logger
}

// NewLogger creates an audit logger writing to store.
func NewLogger(store Store, log *slog.Logger) *Logger {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Logger{store: store, log: log}
}

func (l *Logger) append(ctx context.Context, e *Event) {
	if l == nil || l.store == nil {
		return
	}
	if err := l.store.Append(ctx, e); err != nil {
		l.log.Warn("audit append failed", "type", e.Type, "error", err)
	}
}

// LogToolCall records one tools/call. callErr is the handler failure, if any.
func (l *Logger) LogToolCall(ctx context.Context, tool, sessionID string, d time.Duration, callErr error) {
	res := &EventResult{Status: StatusSuccess, Duration: d}
	if callErr != nil {
		res.Status = StatusFailure
		res.Error = callErr.Error()
	}
	l.append(ctx, &Event{Type: EventToolCall, Tool: tool, SessionID: sessionID, Result: res})
}

// LogSessionCreated records a session established by initialize.
func (l *Logger) LogSessionCreated(ctx context.Context, sessionID string, clientInfo map[string]any) {
	var meta map[string]any
	if len(clientInfo) > 0 {
		meta = map[string]any{"client": clientInfo}
	}
	l.append(ctx, &Event{
		Type:      EventSessionCreate,
		SessionID: sessionID,
		Result:    &EventResult{Status: StatusSuccess},
		Metadata:  meta,
	})
}

// LogSessionDeleted records a DELETE of sessionID.
func (l *Logger) LogSessionDeleted(ctx context.Context, sessionID string, found bool) {
	status := StatusSuccess
	if !found {
		status = StatusFailure
	}
	l.append(ctx, &Event{Type: EventSessionDelete, SessionID: sessionID, Result: &EventResult{Status: status}})
}
