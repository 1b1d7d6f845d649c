// Package metrics provides Prometheus metrics for the question answering service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "grantgraph"

// Metrics holds the service collectors on a dedicated registry.
// All methods are safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// QueriesTotal tracks pipeline runs by outcome (success or error kind)
	QueriesTotal *prometheus.CounterVec
	// StageDuration tracks time spent in each pipeline stage
	StageDuration *prometheus.HistogramVec
	// RepairAttempts counts repair cycles after a store rejection
	RepairAttempts *prometheus.CounterVec
	// LLMCallsTotal tracks completions by provider and outcome
	LLMCallsTotal *prometheus.CounterVec
	// LLMCallDuration tracks completion latency by provider
	LLMCallDuration *prometheus.HistogramVec
	// EnrichmentDegraded counts enrichment runs that fell back to no references
	EnrichmentDegraded prometheus.Counter
	// SynthesisFallbacks counts summaries produced by the template fallback
	SynthesisFallbacks prometheus.Counter
	// SchemaRefreshes tracks schema loads by result
	SchemaRefreshes *prometheus.CounterVec
	// HTTPRequestsTotal tracks inbound HTTP requests
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTPRequestDuration tracks inbound HTTP request duration
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		QueriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "queries_total",
				Help:      "Total number of questions processed by outcome",
			},
			[]string{"outcome"},
		),
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Duration of pipeline stages in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		RepairAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "repair_attempts_total",
				Help:      "Total number of query repair attempts by result",
			},
			[]string{"result"},
		),
		LLMCallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "llm",
				Name:      "calls_total",
				Help:      "Total number of LLM completions by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		LLMCallDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "llm",
				Name:      "call_duration_seconds",
				Help:      "Duration of LLM completions in seconds",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
			},
			[]string{"provider"},
		),
		EnrichmentDegraded: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "enrichment",
				Name:      "degraded_total",
				Help:      "Total number of enrichment runs that returned no references due to failure",
			},
		),
		SynthesisFallbacks: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "synthesis",
				Name:      "fallbacks_total",
				Help:      "Total number of summaries produced by the deterministic fallback",
			},
		),
		SchemaRefreshes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "schema",
				Name:      "refreshes_total",
				Help:      "Total number of schema loads by result",
			},
			[]string{"result"},
		),
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of inbound HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of inbound HTTP requests in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method", "route"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveQuery records a finished pipeline run.
func (m *Metrics) ObserveQuery(outcome string) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(outcome).Inc()
}

// ObserveStage records the duration of one pipeline stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveRepair records a repair attempt and whether the repaired query ran.
func (m *Metrics) ObserveRepair(succeeded bool) {
	if m == nil {
		return
	}
	result := "failed"
	if succeeded {
		result = "succeeded"
	}
	m.RepairAttempts.WithLabelValues(result).Inc()
}

// ObserveLLMCall records a completion. A zero duration skips the latency histogram.
func (m *Metrics) ObserveLLMCall(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.LLMCallsTotal.WithLabelValues(provider, outcome).Inc()
	if d > 0 {
		m.LLMCallDuration.WithLabelValues(provider).Observe(d.Seconds())
	}
}

// IncEnrichmentDegraded records an enrichment failure.
func (m *Metrics) IncEnrichmentDegraded() {
	if m == nil {
		return
	}
	m.EnrichmentDegraded.Inc()
}

// IncSynthesisFallback records a fallback summary.
func (m *Metrics) IncSynthesisFallback() {
	if m == nil {
		return
	}
	m.SynthesisFallbacks.Inc()
}

// ObserveSchemaRefresh records a schema load.
func (m *Metrics) ObserveSchemaRefresh(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.SchemaRefreshes.WithLabelValues(result).Inc()
}

// ObserveHTTP records an inbound request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
