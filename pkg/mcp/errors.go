// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

package mcp

import (
	"fmt"
	"net/http"
)

// ── JSON-RPC error codes ───────────────────────────────────────────

const (
	CodeParseError      = -32700
	CodeInvalidRequest  = -32600
	CodeMethodNotFound  = -32601
	CodeInvalidParams   = -32602
	CodeInternalError   = -32603
	CodeSessionRequired = -32000
)

// Error is a JSON-RPC 2.0 error object. It also carries the HTTP status the
// transport response is sent with.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`

	status int
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// HTTPStatus returns the transport status for e.
func (e *Error) HTTPStatus() int {
	if e.status == 0 {
		return http.StatusInternalServerError
	}
	return e.status
}

func newError(code, status int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), status: status}
}

func parseError(format string, args ...any) *Error {
	return newError(CodeParseError, http.StatusBadRequest, format, args...)
}

func invalidRequest(format string, args ...any) *Error {
	return newError(CodeInvalidRequest, http.StatusBadRequest, format, args...)
}

func methodNotFound(format string, args ...any) *Error {
	return newError(CodeMethodNotFound, http.StatusNotFound, format, args...)
}

func invalidParams(format string, args ...any) *Error {
	return newError(CodeInvalidParams, http.StatusBadRequest, format, args...)
}

func internalError(format string, args ...any) *Error {
	return newError(CodeInternalError, http.StatusInternalServerError, format, args...)
}

func sessionRequired() *Error {
	return newError(CodeSessionRequired, http.StatusBadRequest, "session required: missing %s header", "Mcp-Session-Id")
}

func sessionNotFound(id string) *Error {
	return newError(CodeSessionRequired, http.StatusNotFound, "session not found: %s", id)
}
