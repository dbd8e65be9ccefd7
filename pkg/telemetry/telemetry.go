package telemetry

import (
	"context"
	"errors"
	"fmt"
)

// Telemetry is the driver's observability bundle: one logger, tracer,
// metrics registry and lifecycle event publisher per process.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

// NewTelemetry validates cfg and builds every component.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Telemetry{Config: cfg, Logger: NewLogger(cfg.Logging)}
	var err error
	if t.Tracer, err = NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion); err != nil {
		return nil, fmt.Errorf("tracer: %w", err)
	}
	if t.Metrics, err = NewMetrics(cfg.Metrics); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	if t.Events, err = NewEventPublisher(cfg.Events); err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}

	zl := t.Logger.Zerolog()
	zl.Debug().
		Bool("tracing", cfg.Tracing.Enabled).
		Bool("metrics", cfg.Metrics.Enabled).
		Bool("events", cfg.Events.Enabled).
		Msg("Telemetry initialized")
	return t, nil
}

// Recorder returns an orchestrator observer feeding this instance's metrics
// and events.
func (t *Telemetry) Recorder() *LifecycleRecorder {
	return NewLifecycleRecorder(t.Metrics, t.Events, t.Logger)
}

// Shutdown drains pending lifecycle events before flushing spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(
		t.Events.Shutdown(ctx),
		t.Tracer.Shutdown(ctx),
	)
}
