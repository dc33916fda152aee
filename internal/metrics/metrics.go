// Package metrics provides Prometheus metrics for the messaging core.
// It tracks message enqueue/dequeue rates, validation rejections, and
// queue latencies to help identify delivery bottlenecks.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "agenthub"
)

// Message metrics track the enqueue/dequeue pipeline.
var (
	// MessagesEnqueuedTotal counts messages accepted onto the queue.
	MessagesEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_enqueued_total",
			Help:      "Total number of messages accepted onto the queue",
		},
		[]string{"backend", "action", "priority"},
	)

	// MessagesDequeuedTotal counts messages handed to a consumer.
	MessagesDequeuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dequeued_total",
			Help:      "Total number of messages handed to a consumer",
		},
		[]string{"backend"},
	)

	// MessagesCompletedTotal counts messages by terminal outcome.
	MessagesCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_completed_total",
			Help:      "Total number of messages acknowledged by outcome",
		},
		[]string{"backend", "result"}, // result: completed, failed
	)

	// MessageQueueLatency measures time spent between put and get.
	MessageQueueLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_queue_latency_seconds",
			Help:      "Time a message spent in the queue in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// EnqueueLatency measures time from request receipt to queue accept.
	EnqueueLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "enqueue_latency_seconds",
			Help:      "Time from request receipt to queue accept in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
)

// Validation metrics track the request pre-screen and field validators.
var (
	// ValidationRejectionsTotal counts rejected requests by stage.
	ValidationRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_rejections_total",
			Help:      "Total number of requests rejected by validation",
		},
		[]string{"stage", "kind"}, // stage: size, content_type, structure, fields
	)
)

// Registry metrics track agent liveness.
var (
	// AgentsRegistered tracks the current number of registered agents.
	AgentsRegistered = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agents_registered",
			Help:      "Current number of registered agents",
		},
		[]string{"type"},
	)

	// RoutingDecisionsTotal counts capability-routing outcomes.
	RoutingDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_decisions_total",
			Help:      "Total number of capability routing decisions",
		},
		[]string{"strategy", "result"}, // result: routed, no_agent
	)
)

// HTTP metrics track the API surface.
var (
	// HTTPRequestsTotal counts API requests by route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures request handling time.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request handling time in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "path"},
	)
)
