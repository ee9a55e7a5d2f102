package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_console_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voice_console_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// RemoteCallsTotal counts calls to the voice API by resource, operation and outcome (ok|error).
	RemoteCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_console_remote_calls_total",
			Help: "Total calls to the remote voice API",
		},
		[]string{"resource", "op", "outcome"},
	)

	RemoteCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voice_console_remote_call_duration_seconds",
			Help:    "Remote voice API call latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"resource", "op"},
	)

	CallsInitiated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voice_console_calls_initiated_total",
			Help: "Outbound calls accepted by the remote voice API",
		},
	)

	// CallLogsQueued counts call logs parked in the pending queue after a failed store write.
	CallLogsQueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voice_console_call_logs_queued_total",
			Help: "Call logs queued for reconciliation after a failed write",
		},
	)

	AgentsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voice_console_agents_created_total",
			Help: "Agent configs created",
		},
	)
)
