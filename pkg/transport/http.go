// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

package transport

import (
	"io"
	"log/slog"
	"net/http"
)

// HTTPHandler serves a Handler over net/http.
type HTTPHandler struct {
	h       Handler
	maxBody int64
	logger  *slog.Logger
}

// NewHTTPHandler wraps h. At most maxBody+1 bytes of a request body are
// read, so the handler can still detect an oversized body without the
// server buffering all of it.
func NewHTTPHandler(h Handler, maxBody int64, logger *slog.Logger) *HTTPHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &HTTPHandler{h: h, maxBody: maxBody, logger: logger}
}

func (s *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body []byte
	if r.Body != nil {
		var src io.Reader = r.Body
		if s.maxBody > 0 {
			src = io.LimitReader(r.Body, s.maxBody+1)
		}
		var err error
		body, err = io.ReadAll(src)
		if err != nil {
			s.logger.Warn("read request body", "error", err)
			http.Error(w, "unable to read request body", http.StatusBadRequest)
			return
		}
	}

	resp := s.h.Handle(r.Context(), &Request{
		Method: r.Method,
		Header: r.Header,
		Body:   body,
	})

	for k, v := range resp.Header {
		w.Header()[k] = v
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		if _, err := io.WriteString(w, resp.Body); err != nil {
			s.logger.Debug("write response", "error", err)
		}
	}
}
