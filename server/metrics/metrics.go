// Package metrics provides Prometheus metrics for the chat server.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the chat server.
type Metrics struct {
	Registry *prometheus.Registry

	// HTTP request metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Chat pipeline metrics
	ChatRequestsTotal  *prometheus.CounterVec
	ChatStreamsActive  prometheus.Gauge
	ContextsSelected   prometheus.Histogram
	PromptTokensLeft   prometheus.Histogram
	ValidationFailures *prometheus.CounterVec
	StoppedStreams     prometheus.Counter
}

// NewMetrics creates the metrics on a fresh registry that also carries the Go and
// process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	m := &Metrics{Registry: reg}

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatcore_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatcore_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds, streaming included",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"route"},
	)

	m.ChatRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatcore_chat_requests_total",
			Help: "Total number of chat requests by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	m.ChatStreamsActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatcore_chat_streams_active",
			Help: "Number of chat responses currently streaming",
		},
	)

	m.ContextsSelected = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatcore_prompt_contexts_selected",
			Help:    "Number of retrieved contexts that fit the prompt budget",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 40, 80},
		},
	)

	m.PromptTokensLeft = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatcore_prompt_tokens_remaining",
			Help:    "Tokens left in the model budget after prompt assembly",
			Buckets: prometheus.ExponentialBuckets(256, 2, 10),
		},
	)

	m.ValidationFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatcore_validation_failures_total",
			Help: "Total number of rejected chat requests by field",
		},
		[]string{"field"},
	)

	m.StoppedStreams = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "chatcore_stopped_streams_total",
			Help: "Total number of streams cancelled by a stop request",
		},
	)

	return m
}

// RecordHTTPRequest records an HTTP request metric.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordChat records the outcome of a chat request.
func (m *Metrics) RecordChat(provider, outcome string) {
	m.ChatRequestsTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordAssembly records how much of the prompt budget a request used.
func (m *Metrics) RecordAssembly(contexts, remaining int) {
	m.ContextsSelected.Observe(float64(contexts))
	m.PromptTokensLeft.Observe(float64(max(remaining, 0)))
}
