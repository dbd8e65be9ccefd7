package telemetry

import "fmt"

// Config contains the telemetry configuration for the driver.
type Config struct {
	// ServiceName identifies the driver in traces and metrics.
	ServiceName string

	// ServiceVersion is the driver build version.
	ServiceVersion string

	// Logging configures the process logger.
	Logging LoggingConfig

	// Tracing configures span export.
	Tracing TracingConfig

	// Metrics configures the Prometheus collectors.
	Metrics MetricsConfig

	// Events configures the lifecycle event publisher.
	Events EventsConfig
}

// LoggingConfig configures structured logging. Logs always go to stderr.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error, fatal).
	Level string

	// Format is console or json.
	Format string
}

// TracingConfig configures distributed tracing.
type TracingConfig struct {
	// Enabled installs a global tracer provider.
	Enabled bool

	// Exporter is otlp, stdout or none.
	Exporter string

	// Endpoint is the OTLP gRPC endpoint, for example localhost:4317.
	Endpoint string

	// SamplingRate is the ratio of root spans sampled, 0.0 to 1.0.
	SamplingRate float64

	// Insecure disables TLS for the OTLP connection.
	Insecure bool
}

// MetricsConfig configures metrics collection.
type MetricsConfig struct {
	// Enabled registers the collectors. When false every recording call is
	// a no-op.
	Enabled bool

	// Namespace prefixes every metric name.
	Namespace string
}

// EventsConfig configures the lifecycle event publisher.
type EventsConfig struct {
	// Enabled turns event delivery on.
	Enabled bool

	// BufferSize is the size of the async event buffer.
	BufferSize int

	// MaxBatchSize caps how many buffered events are delivered together.
	MaxBatchSize int

	// EnableAsync delivers events from a background goroutine. When false
	// Publish delivers before returning.
	EnableAsync bool
}

// DefaultConfig returns a default telemetry configuration.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "heatdriver",
		ServiceVersion: "dev",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Tracing: TracingConfig{
			Exporter:     "none",
			SamplingRate: 1.0,
			Insecure:     true,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "heatdriver",
		},
		Events: EventsConfig{
			Enabled:      true,
			BufferSize:   1000,
			MaxBatchSize: 100,
			EnableAsync:  true,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}

	if _, ok := logLevels[c.Logging.Level]; !ok {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'console' or 'json')", c.Logging.Format)
	}

	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "otlp":
			if c.Tracing.Endpoint == "" {
				return fmt.Errorf("trace endpoint is required for the otlp exporter")
			}
		case "stdout", "none":
		default:
			return fmt.Errorf("invalid trace exporter: %s", c.Tracing.Exporter)
		}
	}

	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0 and 1, got: %f", c.Tracing.SamplingRate)
	}

	if c.Events.Enabled && c.Events.EnableAsync && c.Events.BufferSize <= 0 {
		return fmt.Errorf("event buffer size must be positive, got: %d", c.Events.BufferSize)
	}

	return nil
}
