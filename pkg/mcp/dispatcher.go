// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"time"

	"github.com/freitascorp/mcpfn/pkg/audit"
	"github.com/freitascorp/mcpfn/pkg/observability"
	"github.com/freitascorp/mcpfn/pkg/session"
	"github.com/freitascorp/mcpfn/pkg/tools"
	"github.com/freitascorp/mcpfn/pkg/transport"
)

const (
	// ProtocolVersion is the newest MCP revision this engine speaks.
	ProtocolVersion = "2025-03-26"

	DefaultServerName    = "mcpfn"
	DefaultServerVersion = "dev"
	DefaultMaxBodyBytes  = 1 << 20
)

// supportedProtocolVersions are echoed back when a client asks for them.
var supportedProtocolVersions = []string{ProtocolVersion, "2024-11-05"}

// RPC methods.
const (
	MethodInitialize = "initialize"
	MethodToolsList  = "tools/list"
	MethodToolsCall  = "tools/call"
	MethodPing       = "ping"
)

// Options configures a Dispatcher.
type Options struct {
	Name         string
	Version      string
	Store        session.Store          // default: no-op store
	Logger       *slog.Logger           // default: discard
	Metrics      *observability.Metrics // optional
	Audit        *audit.Logger          // optional
	MaxBodyBytes int64                  // default: DefaultMaxBodyBytes
}

// Dispatcher turns one transport request into one transport response. It is
// safe for concurrent use; all per-request state lives in the request's
// context.
type Dispatcher struct {
	registry *tools.Registry
	store    session.Store
	name     string
	version  string
	maxBody  int64
	logger   *slog.Logger
	metrics  *observability.Metrics
	audit    *audit.Logger
}

// NewDispatcher creates a dispatcher serving the tools in registry.
func NewDispatcher(registry *tools.Registry, opts Options) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		store:    opts.Store,
		name:     opts.Name,
		version:  opts.Version,
		maxBody:  opts.MaxBodyBytes,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		audit:    opts.Audit,
	}
	if d.store == nil {
		d.store = session.NewNoopStore()
	}
	if d.name == "" {
		d.name = DefaultServerName
	}
	if d.version == "" {
		d.version = DefaultServerVersion
	}
	if d.maxBody <= 0 {
		d.maxBody = DefaultMaxBodyBytes
	}
	if d.logger == nil {
		d.logger = slog.New(slog.DiscardHandler)
	}
	return d
}

// MaxBodyBytes returns the request body limit.
func (d *Dispatcher) MaxBodyBytes() int64 { return d.maxBody }

// Handle processes one request. It never panics and never returns nil.
func (d *Dispatcher) Handle(ctx context.Context, req *transport.Request) (resp *transport.Response) {
	start := time.Now()
	label := "invalid"
	if req == nil {
		req = &transport.Request{}
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("mcp: recovered panic", "panic", r, "stack", string(debug.Stack()))
			resp = d.errorResponse(nil, internalError("internal error: %v", r), "")
		}
		d.metrics.ObserveRequest(label, resp.StatusCode)
		d.logger.Debug("mcp: request handled",
			"http_method", req.Method,
			"rpc_method", label,
			"status", resp.StatusCode,
			"duration", time.Since(start),
		)
	}()

	if req.Header == nil {
		req.Header = http.Header{}
	}

	switch req.Method {
	case http.MethodPost:
		return d.handlePost(ctx, req, &label)
	case http.MethodDelete:
		label = "session/delete"
		return d.handleDelete(ctx, req)
	default:
		resp = d.errorResponse(nil, invalidRequest("unsupported HTTP method %q: expected POST or DELETE", req.Method), "")
		resp.Header.Set("Allow", "POST, DELETE")
		return resp
	}
}

func (d *Dispatcher) handlePost(ctx context.Context, req *transport.Request, label *string) *transport.Response {
	if rpcErr := checkHeaders(req); rpcErr != nil {
		return d.errorResponse(nil, rpcErr, "")
	}
	if len(bytes.TrimSpace(req.Body)) == 0 {
		return d.errorResponse(nil, invalidRequest("missing request body"), "")
	}
	if int64(len(req.Body)) > d.maxBody {
		return d.errorResponse(nil, invalidRequest("request body exceeds %d bytes", d.maxBody), "")
	}

	msg, rpcErr := parseMessage(req.Body)
	if rpcErr != nil {
		d.logger.Debug("mcp: rejected envelope", "error", rpcErr.Message)
		return d.errorResponse(msg.id, rpcErr, "")
	}
	*label = methodLabel(msg)

	if !msg.hasID {
		d.handleNotification(msg)
		return noContent()
	}

	sid, rpcErr := d.resolveSession(ctx, req, msg)
	if rpcErr != nil {
		return d.errorResponse(msg.id, rpcErr, "")
	}
	// The scope lives only in this context; nothing outlives the call.
	ctx = session.WithScope(ctx, sid, d.store)

	result, rpcErr := d.dispatch(ctx, msg, &sid)
	if rpcErr != nil {
		return d.errorResponse(msg.id, rpcErr, sid)
	}
	return d.resultResponse(msg.id, result, sid)
}

// resolveSession returns the session id active for msg. initialize always
// starts a new session; other methods must name a live one when the store
// is durable.
func (d *Dispatcher) resolveSession(ctx context.Context, req *transport.Request, msg *message) (string, *Error) {
	sid := req.SessionID()
	if msg.method == MethodInitialize || !d.store.RequiresSession() {
		return sid, nil
	}
	if sid == "" {
		return "", sessionRequired()
	}
	if _, ok := d.store.Get(ctx, sid); !ok {
		return "", sessionNotFound(sid)
	}
	return sid, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, msg *message, sid *string) (any, *Error) {
	switch msg.method {
	case MethodInitialize:
		return d.handleInitialize(ctx, msg, sid)
	case MethodToolsList:
		return ToolsListResult{Tools: d.registry.List()}, nil
	case MethodToolsCall:
		return d.handleToolsCall(ctx, msg, *sid)
	case MethodPing:
		return map[string]any{}, nil
	default:
		return nil, methodNotFound("method not found: %s", msg.method)
	}
}

// ── Method handlers ────────────────────────────────────────────────

func (d *Dispatcher) handleInitialize(ctx context.Context, msg *message, sid *string) (any, *Error) {
	var params InitializeParams
	if rpcErr := msg.decodeParams(&params); rpcErr != nil {
		return nil, rpcErr
	}

	id, err := d.store.Create(ctx, nil)
	if err != nil {
		d.logger.Error("mcp: session create failed", "error", err)
		return nil, internalError("internal error: %v", err)
	}
	*sid = id
	d.metrics.SessionCreated()
	d.audit.LogSessionCreated(ctx, id, params.ClientInfo)
	d.logger.Info("mcp: session initialized", "session_id", id, "client", params.ClientInfo)

	version := ProtocolVersion
	if slices.Contains(supportedProtocolVersions, params.ProtocolVersion) {
		version = params.ProtocolVersion
	}
	return InitializeResult{
		ProtocolVersion: version,
		Capabilities: ServerCapability{
			Tools: &ToolsCapability{ListChanged: false},
		},
		ServerInfo: EntityInfo{Name: d.name, Version: d.version},
	}, nil
}

func (d *Dispatcher) handleToolsCall(ctx context.Context, msg *message, sid string) (any, *Error) {
	if msg.params == nil {
		return nil, invalidParams("invalid params: tools/call requires params")
	}
	var params ToolCallParams
	if rpcErr := msg.decodeParams(&params); rpcErr != nil {
		return nil, rpcErr
	}
	if params.Name == "" {
		return nil, invalidParams("invalid params: missing tool name")
	}

	def, ok := d.registry.Lookup(params.Name)
	if !ok {
		return nil, methodNotFound("tool not found: %s", params.Name)
	}

	start := time.Now()
	call, err := def.Prepare(params.Arguments)
	if err != nil {
		elapsed := time.Since(start)
		d.audit.LogToolCall(ctx, def.Name, sid, elapsed, err)
		d.metrics.ObserveToolCall(def.Name, observability.OutcomeInvalidInput, elapsed)
		return nil, invalidParams("%v", err)
	}

	// From here on every failure belongs to the handler, whatever it wraps.
	value, err := d.invoke(ctx, def.Name, call)
	elapsed := time.Since(start)
	d.audit.LogToolCall(ctx, def.Name, sid, elapsed, err)

	if err != nil {
		d.metrics.ObserveToolCall(def.Name, observability.OutcomeError, elapsed)
		d.logger.Warn("mcp: tool failed", "tool", def.Name, "session_id", sid, "error", err)
		return nil, internalError("internal error: %v", err)
	}

	result := tools.NewResult(value)
	outcome := observability.OutcomeOK
	if result.IsError {
		outcome = observability.OutcomeToolError
	}
	d.metrics.ObserveToolCall(def.Name, outcome, elapsed)
	return result, nil
}

// invoke runs a tool, converting a handler panic into an error.
func (d *Dispatcher) invoke(ctx context.Context, name string, call tools.Call) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("mcp: tool panicked", "tool", name, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return call(ctx)
}

// handleNotification only logs: no notification this engine receives
// requires work, and the response is 204 whatever happens here.
func (d *Dispatcher) handleNotification(msg *message) {
	d.logger.Debug("mcp: notification", "method", msg.method)
}

func (d *Dispatcher) handleDelete(ctx context.Context, req *transport.Request) *transport.Response {
	sid := req.SessionID()
	if sid == "" {
		return d.errorResponse(nil, sessionRequired(), "")
	}
	if _, ok := d.store.Get(ctx, sid); !ok {
		d.audit.LogSessionDeleted(ctx, sid, false)
		return d.errorResponse(nil, sessionNotFound(sid), "")
	}
	if !d.store.Delete(ctx, sid) {
		return d.errorResponse(nil, internalError("internal error: failed to delete session %s", sid), "")
	}

	d.metrics.SessionDeleted()
	d.audit.LogSessionDeleted(ctx, sid, true)
	d.logger.Info("mcp: session deleted", "session_id", sid)
	return noContent()
}

// ── Response construction ──────────────────────────────────────────

func (d *Dispatcher) resultResponse(id json.RawMessage, result any, sid string) *transport.Response {
	body, err := encode(&Response{JSONRPC: JSONRPCVersion, ID: id, Result: result})
	if err != nil {
		d.logger.Error("mcp: encode result", "error", err)
		return d.errorResponse(id, internalError("internal error: encode result: %v", err), sid)
	}
	return jsonResponse(http.StatusOK, body, sid)
}

func (d *Dispatcher) errorResponse(id json.RawMessage, rpcErr *Error, sid string) *transport.Response {
	body, err := encode(&Response{JSONRPC: JSONRPCVersion, ID: id, Error: rpcErr})
	if err != nil {
		// Only Error.Data can fail to encode; drop it.
		body, _ = encode(&Response{JSONRPC: JSONRPCVersion, ID: id, Error: &Error{Code: rpcErr.Code, Message: rpcErr.Message}})
	}
	return jsonResponse(rpcErr.HTTPStatus(), body, sid)
}

func jsonResponse(status int, body, sid string) *transport.Response {
	h := http.Header{}
	h.Set(transport.HeaderContentType, "application/json")
	if sid != "" {
		h.Set(transport.HeaderSessionID, sid)
	}
	return &transport.Response{StatusCode: status, Header: h, Body: body}
}

func noContent() *transport.Response {
	return &transport.Response{StatusCode: http.StatusNoContent, Header: http.Header{}}
}

func encode(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// methodLabel bounds metric label cardinality to known methods.
func methodLabel(msg *message) string {
	if !msg.hasID {
		return "notification"
	}
	switch msg.method {
	case MethodInitialize, MethodToolsList, MethodToolsCall, MethodPing:
		return msg.method
	}
	return "other"
}
