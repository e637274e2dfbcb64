// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freitascorp/mcpfn/pkg/config"
	"github.com/freitascorp/mcpfn/pkg/logger"
	"github.com/freitascorp/mcpfn/pkg/transport"
)

// client drives an app through its dispatcher the way an MCP client would.
type client struct {
	t   *testing.T
	a   *app
	sid string
	id  int
}

type rpcResponse struct {
	Result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestApp(t *testing.T, mutate func(*config.Config)) *app {
	t.Helper()
	cfg := config.Default()
	cfg.Session.Backend = "memory"
	if mutate != nil {
		mutate(&cfg)
	}
	a, err := newApp(&cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func (c *client) send(method string, params any) (*transport.Response, rpcResponse) {
	c.t.Helper()
	c.id++
	body, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": c.id, "method": method, "params": params})
	require.NoError(c.t, err)

	headers := map[string]string{"Content-Type": "application/json", "Accept": "application/json"}
	if c.sid != "" {
		headers[transport.HeaderSessionID] = c.sid
	}
	resp := c.a.dispatcher.Handle(context.Background(), transport.NewRequest(http.MethodPost, headers, body))

	var rpc rpcResponse
	if resp.Body != "" {
		require.NoError(c.t, json.Unmarshal([]byte(resp.Body), &rpc), resp.Body)
	}
	return resp, rpc
}

func (c *client) initialize() {
	c.t.Helper()
	resp, rpc := c.send("initialize", map[string]any{"protocolVersion": "2025-03-26"})
	require.Nil(c.t, rpc.Error)
	c.sid = resp.Header.Get(transport.HeaderSessionID)
	require.NotEmpty(c.t, c.sid)
}

func (c *client) call(tool string, args map[string]any) rpcResponse {
	c.t.Helper()
	_, rpc := c.send("tools/call", map[string]any{"name": tool, "arguments": args})
	return rpc
}

func text(t *testing.T, rpc rpcResponse) string {
	t.Helper()
	require.Nil(t, rpc.Error)
	require.Len(t, rpc.Result.Content, 1)
	return rpc.Result.Content[0].Text
}

func TestBuiltinTools_Stateless(t *testing.T) {
	c := &client{t: t, a: newTestApp(t, nil)}
	c.initialize()

	assert.Equal(t, "Hello MCP World!", text(t, c.call("sayHelloWorld", nil)))
	assert.Equal(t, "5.5", text(t, c.call("add", map[string]any{"a": 2, "b": 3.5})))
	assert.Equal(t, "ping", text(t, c.call("echo", map[string]any{"message": "ping"})))

	rpc := c.call("add", map[string]any{"a": "two", "b": 1})
	require.NotNil(t, rpc.Error)
	assert.Equal(t, -32602, rpc.Error.Code)

	rpc = c.call("echo", nil)
	require.NotNil(t, rpc.Error)
	assert.Equal(t, -32602, rpc.Error.Code)
}

func TestBuiltinTools_SessionState(t *testing.T) {
	a := newTestApp(t, nil)
	alice := &client{t: t, a: a}
	bob := &client{t: t, a: a}
	alice.initialize()
	bob.initialize()

	assert.Equal(t, "1", text(t, alice.call("counter", nil)))
	assert.Equal(t, "2", text(t, alice.call("counter", nil)))
	assert.Equal(t, "12", text(t, alice.call("counter", map[string]any{"by": 10})))
	assert.Equal(t, "1", text(t, bob.call("counter", nil)))

	assert.Equal(t, "remembered (1 notes)", text(t, alice.call("rememberNote", map[string]any{"note": "buy milk"})))
	assert.Equal(t, "remembered (2 notes)", text(t, alice.call("rememberNote", map[string]any{"note": "call home"})))
	assert.JSONEq(t, `["buy milk","call home"]`, text(t, alice.call("recallNotes", nil)))
	assert.JSONEq(t, `[]`, text(t, bob.call("recallNotes", nil)))

	rpc := alice.call("rememberNote", map[string]any{"note": ""})
	require.NotNil(t, rpc.Error)
	assert.Equal(t, -32603, rpc.Error.Code)
}

func TestBuiltinTools_SQLiteRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sessions.db")
	a := newTestApp(t, func(cfg *config.Config) {
		cfg.Session.Backend = "sqlite"
		cfg.Session.SQLitePath = dbPath
	})
	c := &client{t: t, a: a}
	c.initialize()

	// Values come back from JSON as float64 and []any.
	assert.Equal(t, "1", text(t, c.call("counter", nil)))
	assert.Equal(t, "2", text(t, c.call("counter", nil)))
	text(t, c.call("rememberNote", map[string]any{"note": "persisted"}))
	assert.JSONEq(t, `["persisted"]`, text(t, c.call("recallNotes", nil)))
}

func TestBuiltinTools_NoSession(t *testing.T) {
	c := &client{t: t, a: newTestApp(t, func(cfg *config.Config) { cfg.Session.Backend = "none" })}

	assert.Equal(t, "Hello MCP World!", text(t, c.call("sayHelloWorld", nil)))

	rpc := c.call("counter", nil)
	require.NotNil(t, rpc.Error)
	assert.Contains(t, rpc.Error.Message, "needs a session")
}

func TestDefaultConfig_HelloWorld(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	a, err := newApp(cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	headers := map[string]string{"Content-Type": "application/json", "Accept": "application/json"}
	body := `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"sayHelloWorld","arguments":{}}}`
	resp := a.dispatcher.Handle(context.Background(), transport.NewRequest(http.MethodPost, headers, []byte(body)))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"jsonrpc":"2.0","id":2,"result":{"content":[{"type":"text","text":"Hello MCP World!"}]}}`, resp.Body)
}

func TestAsHelpers(t *testing.T) {
	assert.Equal(t, int64(3), asInt64(3))
	assert.Equal(t, int64(4), asInt64(float64(4)))
	assert.Equal(t, int64(0), asInt64("x"))
	assert.Equal(t, []string{"a"}, asStrings([]any{"a", 1}))
	assert.Nil(t, asStrings(nil))
}
