// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

// Package observability exposes the engine's Prometheus metrics: RPC
// traffic, tool calls and session lifecycle.
//
// A nil *Metrics is valid and records nothing, so the dispatcher can run
// without metrics in tests and in the Lambda build.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mcpfn"

// Tool call outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeToolError    = "tool_error" // result with isError set
	OutcomeError        = "error"      // handler returned an error or panicked
	OutcomeInvalidInput = "invalid_arguments"
)

// ------------------------------------------------------------------
// Metrics
// ------------------------------------------------------------------

// Metrics holds every engine metric on its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	Requests        *prometheus.CounterVec
	ToolCalls       *prometheus.CounterVec
	ToolLatency     *prometheus.HistogramVec
	SessionsCreated prometheus.Counter
	SessionsDeleted prometheus.Counter
	SessionsPurged  prometheus.Counter
}

// NewMetrics creates the metrics suite, including the Go runtime and process
// collectors.
func NewMetrics() *Metrics {
	r := prometheus.NewRegistry()

	latencyBuckets := []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

	m := &Metrics{
		Registry: r,

		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "JSON-RPC requests handled, by RPC method and HTTP status.",
		}, []string{"method", "status"}),
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool and outcome.",
		}, []string{"tool", "outcome"}),
		ToolLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_latency_seconds",
			Help:      "Tool handler latency.",
			Buckets:   latencyBuckets,
		}, []string{"tool"}),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Sessions created by initialize.",
		}),
		SessionsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_deleted_total",
			Help:      "Sessions terminated by DELETE.",
		}),
		SessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_purged_total",
			Help:      "Expired session records removed by the sweeper.",
		}),
	}

	r.MustRegister(
		m.Requests, m.ToolCalls, m.ToolLatency,
		m.SessionsCreated, m.SessionsDeleted, m.SessionsPurged,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest counts one handled request.
func (m *Metrics) ObserveRequest(method string, status int) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// ObserveToolCall counts one tool invocation and records its latency.
func (m *Metrics) ObserveToolCall(tool, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool, outcome).Inc()
	m.ToolLatency.WithLabelValues(tool).Observe(d.Seconds())
}

func (m *Metrics) SessionCreated() {
	if m != nil {
		m.SessionsCreated.Inc()
	}
}

func (m *Metrics) SessionDeleted() {
	if m != nil {
		m.SessionsDeleted.Inc()
	}
}

// SessionsPurgedAdd records n records removed by a sweep.
func (m *Metrics) SessionsPurgedAdd(n int) {
	if m != nil && n > 0 {
		m.SessionsPurged.Add(float64(n))
	}
}

// ------------------------------------------------------------------
// Metrics HTTP endpoint
// ------------------------------------------------------------------

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
