// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

// Package server runs the engine as a long-lived HTTP service.
//
// Routes:
//
//	POST|DELETE /mcp   MCP endpoint (other methods are answered by the engine)
//	GET /healthz       liveness
//	GET /readyz        readiness, including registered checks
//	GET /metrics       Prometheus exposition
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/freitascorp/mcpfn/pkg/observability"
	"github.com/freitascorp/mcpfn/pkg/transport"
)

// Config holds listener settings.
type Config struct {
	ListenAddr   string
	MaxBodyBytes int64
	// ShutdownTimeout bounds graceful shutdown after the context ends.
	ShutdownTimeout time.Duration
}

// CheckFunc reports whether a dependency is usable, with a short message.
type CheckFunc func() (bool, string)

// Check is one readiness check result.
type Check struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusResponse is the body of /healthz and /readyz.
type StatusResponse struct {
	Status string           `json:"status"`
	Uptime string           `json:"uptime,omitempty"`
	Checks map[string]Check `json:"checks,omitempty"`
}

// Server serves an engine handler plus operational endpoints.
type Server struct {
	config  Config
	handler transport.Handler
	metrics *observability.Metrics
	logger  *slog.Logger
	started time.Time

	mu      sync.RWMutex
	ready   bool
	checks  map[string]CheckFunc
	httpSrv *http.Server
}

// NewServer creates a server; it is not ready until SetReady(true).
func NewServer(cfg Config, h transport.Handler, metrics *observability.Metrics, logger *slog.Logger) *Server {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		config:  cfg,
		handler: h,
		metrics: metrics,
		logger:  logger,
		started: time.Now(),
		checks:  make(map[string]CheckFunc),
	}
}

// Router builds the route table.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Handle("/mcp", transport.NewHTTPHandler(s.handler, s.config.MaxBodyBytes, s.logger))
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readyHandler)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	return r
}

// SetReady flips the readiness flag.
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	s.ready = ready
	s.mu.Unlock()
}

// RegisterCheck adds a readiness check. Registering a name twice replaces it.
func (s *Server) RegisterCheck(name string, fn CheckFunc) {
	s.mu.Lock()
	s.checks[name] = fn
	s.mu.Unlock()
}

// Start listens and serves until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}
	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	s.logger.Info("mcp server listening", "addr", ln.Addr().String())
	s.SetReady(true)

	select {
	case err := <-errCh:
		s.SetReady(false)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.Stop(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop marks the server not ready and drains in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.ready = false
	srv := s.httpSrv
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	s.logger.Info("mcp server shutting down")
	return srv.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusOK, StatusResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Truncate(time.Second).String(),
	})
}

func (s *Server) readyHandler(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	ready := s.ready
	checks := make(map[string]CheckFunc, len(s.checks))
	for name, fn := range s.checks {
		checks[name] = fn
	}
	s.mu.RUnlock()

	resp := StatusResponse{Status: "ready"}
	if len(checks) > 0 {
		resp.Checks = make(map[string]Check, len(checks))
	}
	for name, fn := range checks {
		ok, msg := fn()
		resp.Checks[name] = Check{Name: name, Status: statusString(ok), Message: msg, Timestamp: time.Now()}
		if !ok {
			ready = false
		}
	}

	status := http.StatusOK
	if !ready {
		resp.Status = "not ready"
		status = http.StatusServiceUnavailable
	}
	writeStatus(w, status, resp)
}

func writeStatus(w http.ResponseWriter, status int, resp StatusResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func statusString(ok bool) string {
	if ok {
		return "ok"
	}
	return "fail"
}
