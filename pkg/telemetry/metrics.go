package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Metrics holds the driver's Prometheus collectors. A Metrics built with
// metrics disabled records nothing and serves 404.
type Metrics struct {
	lifecycleRequests *prometheus.CounterVec
	executionsPolled  *prometheus.CounterVec

	openstackCalls    *prometheus.CounterVec
	openstackDuration *prometheus.HistogramVec
	openstackErrors   *prometheus.CounterVec

	discoveries  *prometheus.CounterVec
	errorsByKind *prometheus.CounterVec

	registry *prometheus.Registry
}

// latencyBuckets covers fast catalog lookups through slow stack creates.
var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0}

// NewMetrics creates and registers the driver metrics on a private registry.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{}, nil
	}

	namespace := cfg.Namespace

	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		lifecycleRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lifecycle_requests_total",
				Help:      "Total number of lifecycle requests by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		executionsPolled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_polled_total",
				Help:      "Total number of execution polls by operation and reported status",
			},
			[]string{"operation", "status"},
		),

		openstackCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "openstack_calls_total",
				Help:      "Total number of OpenStack API calls",
			},
			[]string{"service", "operation"},
		),
		openstackDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "openstack_call_duration_seconds",
				Help:      "Duration of OpenStack API calls in seconds",
				Buckets:   latencyBuckets,
			},
			[]string{"service", "operation"},
		),
		openstackErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "openstack_errors_total",
				Help:      "Total number of failed OpenStack API calls",
			},
			[]string{"service", "operation"},
		),

		discoveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "discoveries_total",
				Help:      "Total number of reference discoveries by outcome",
			},
			[]string{"outcome"},
		),
		errorsByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_kind_total",
				Help:      "Total number of driver errors by kind",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		m.lifecycleRequests,
		m.executionsPolled,
		m.openstackCalls,
		m.openstackDuration,
		m.openstackErrors,
		m.discoveries,
		m.errorsByKind,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m, nil
}

// RecordLifecycleRequest counts an ExecuteLifecycle call.
func (m *Metrics) RecordLifecycleRequest(operation, outcome string) {
	if m.lifecycleRequests == nil {
		return
	}
	m.lifecycleRequests.WithLabelValues(operation, outcome).Inc()
}

// RecordExecutionPolled counts a GetLifecycleExecution call.
func (m *Metrics) RecordExecutionPolled(operation, status string) {
	if m.executionsPolled == nil {
		return
	}
	m.executionsPolled.WithLabelValues(operation, status).Inc()
}

// RecordOpenstackCall records one OpenStack API call with its duration.
func (m *Metrics) RecordOpenstackCall(service, operation string, duration time.Duration, err error) {
	if m.openstackCalls == nil {
		return
	}
	m.openstackCalls.WithLabelValues(service, operation).Inc()
	m.openstackDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
	if err != nil {
		m.openstackErrors.WithLabelValues(service, operation).Inc()
	}
}

// RecordDiscovery counts a FindReference call.
func (m *Metrics) RecordDiscovery(outcome string) {
	if m.discoveries == nil {
		return
	}
	m.discoveries.WithLabelValues(outcome).Inc()
}

// RecordError counts a driver error by kind.
func (m *Metrics) RecordError(kind string) {
	if m.errorsByKind == nil {
		return
	}
	if kind == "" {
		kind = "internal"
	}
	m.errorsByKind.WithLabelValues(kind).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
