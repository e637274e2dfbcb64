// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

package mcp

import (
	"bytes"
	"encoding/json"
	"mime"
	"strings"

	"github.com/freitascorp/mcpfn/pkg/transport"
)

// checkHeaders validates content negotiation for a POST.
func checkHeaders(req *transport.Request) *Error {
	ct := req.Header.Get(transport.HeaderContentType)
	if ct == "" {
		return invalidRequest("missing Content-Type header")
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil || !isJSONMediaType(mediaType) {
		return invalidRequest("unsupported Content-Type %q: expected application/json", ct)
	}

	accepts := req.Header.Values(transport.HeaderAccept)
	if len(accepts) > 0 && !acceptsJSON(accepts) {
		return invalidRequest("Accept header must allow application/json")
	}
	return nil
}

func isJSONMediaType(mt string) bool {
	mt = strings.ToLower(mt)
	return mt == "application/json" || (strings.HasPrefix(mt, "application/") && strings.HasSuffix(mt, "+json"))
}

// acceptsJSON reports whether any entry of the Accept header values admits
// application/json. Quality parameters are ignored except q=0.
func acceptsJSON(values []string) bool {
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			mt, params, err := mime.ParseMediaType(part)
			if err != nil {
				continue
			}
			if q, ok := params["q"]; ok && strings.Trim(q, "0.") == "" {
				continue
			}
			switch strings.ToLower(mt) {
			case "*/*", "application/*":
				return true
			}
			if isJSONMediaType(mt) {
				return true
			}
		}
	}
	return false
}

// parseMessage decodes and validates a JSON-RPC envelope. On failure the
// returned message still carries the id when it could be recovered, so the
// error response can echo it.
func parseMessage(body []byte) (*message, *Error) {
	msg := &message{}
	if !json.Valid(body) {
		return msg, parseError("parse error: body is not valid JSON")
	}

	// Decode as a raw object first: the presence of "id" matters, not just its value.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return msg, invalidRequest("invalid request: body must be a JSON object")
	}

	if raw, ok := fields["id"]; ok {
		if !validID(raw) {
			return msg, invalidRequest("invalid request: id must be a string, number, or null")
		}
		msg.hasID = true
		msg.id = raw
	}

	var version string
	raw, ok := fields["jsonrpc"]
	if !ok {
		return msg, invalidRequest("invalid request: missing jsonrpc")
	}
	if err := json.Unmarshal(raw, &version); err != nil || version != JSONRPCVersion {
		return msg, invalidRequest("invalid request: jsonrpc must be %q", JSONRPCVersion)
	}

	raw, ok = fields["method"]
	if !ok {
		return msg, invalidRequest("invalid request: missing method")
	}
	if err := json.Unmarshal(raw, &msg.method); err != nil || msg.method == "" {
		return msg, invalidRequest("invalid request: method must be a non-empty string")
	}

	if raw, ok := fields["params"]; ok {
		trimmed := bytes.TrimSpace(raw)
		switch {
		case bytes.Equal(trimmed, []byte("null")):
		case len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '['):
			msg.params = trimmed
		default:
			return msg, invalidRequest("invalid request: params must be an object or array")
		}
	}
	return msg, nil
}

func validID(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	switch c := raw[0]; {
	case c == '"':
		return true
	case c == '-' || (c >= '0' && c <= '9'):
		return true
	case bytes.Equal(raw, []byte("null")):
		return true
	}
	return false
}

// decodeParams unmarshals params into v. Absent params leave v untouched.
func (m *message) decodeParams(v any) *Error {
	if m.params == nil {
		return nil
	}
	if m.params[0] != '{' {
		return invalidParams("invalid params: expected an object")
	}
	if err := json.Unmarshal(m.params, v); err != nil {
		return invalidParams("invalid params: %v", err)
	}
	return nil
}
