// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

// Package transport defines the normalized request and response the engine
// consumes and produces, and adapters that translate them to and from the
// host platform: net/http for long-running servers and API Gateway events
// for AWS Lambda.
package transport

import (
	"context"
	"net/http"
)

// Header names shared by every adapter.
const (
	HeaderContentType = "Content-Type"
	HeaderAccept      = "Accept"
	HeaderSessionID   = "Mcp-Session-Id"
)

// Request is one inbound invocation.
type Request struct {
	Method string
	Header http.Header
	Body   []byte
}

// NewRequest builds a Request, canonicalizing header names.
func NewRequest(method string, headers map[string]string, body []byte) *Request {
	h := make(http.Header, len(headers))
	for k, v := range headers {
		h.Set(k, v)
	}
	return &Request{Method: method, Header: h, Body: body}
}

// SessionID returns the inbound session header, if any.
func (r *Request) SessionID() string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Get(HeaderSessionID)
}

// Response is one outbound result. Body is empty for 204 responses.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       string
}

// Handler processes a single invocation. Implementations never return nil.
type Handler interface {
	Handle(ctx context.Context, req *Request) *Response
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req *Request) *Response

func (f HandlerFunc) Handle(ctx context.Context, req *Request) *Response {
	return f(ctx, req)
}

// flatHeaders collapses h to the single-value form API Gateway expects.
func flatHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
