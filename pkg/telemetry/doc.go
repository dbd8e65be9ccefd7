// Package telemetry provides logging, tracing, metrics and lifecycle events
// for the driver.
//
// Logging uses zerolog. Library packages take a zerolog.Logger directly;
// Logger.Zerolog bridges from the wrapper:
//
//	logger := tel.Logger.NewComponentLogger("api").WithRequestID(id)
//	logger.Info("Lifecycle request accepted")
//
// Tracing installs an OpenTelemetry tracer provider as the global provider
// so the orchestrator's lifecycle.execute, lifecycle.poll and reference.find
// spans, and otelhttp client and server spans, share one pipeline. Exporters
// are otlp (gRPC), stdout and none.
//
// Metrics are Prometheus collectors on a private registry served by
// Metrics.Handler:
//
//	heatdriver_lifecycle_requests_total{operation,outcome}
//	heatdriver_executions_polled_total{operation,status}
//	heatdriver_openstack_calls_total{service,operation}
//	heatdriver_openstack_call_duration_seconds{service,operation}
//	heatdriver_openstack_errors_total{service,operation}
//	heatdriver_discoveries_total{outcome}
//	heatdriver_errors_by_kind_total{kind}
//
// LifecycleRecorder implements engine.Observer. Install it on the
// orchestrator to count every outcome and publish it as an Event; the
// request journal subscribes to those events.
package telemetry
