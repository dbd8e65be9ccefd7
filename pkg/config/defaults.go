package config

import (
	"time"

	"github.com/openfroyo/heatdriver/pkg/engine"
)

// DefaultFile is the configuration file read when none is named.
const DefaultFile = "heatdriver.yaml"

// Default returns the built-in configuration.
func Default() *Config {
	statuses := make([]string, len(engine.DefaultAdoptableStatuses))
	copy(statuses, engine.DefaultAdoptableStatuses)

	return &Config{
		Adopt: AdoptConfig{
			AdoptableStatuses: statuses,
		},
		Server: ServerConfig{
			Address:        ":8294",
			ReadTimeout:    Duration{30 * time.Second},
			WriteTimeout:   Duration{60 * time.Second},
			MaxUploadBytes: 64 << 20,
		},
		Admin: AdminConfig{
			Enabled: true,
		},
		Journal: JournalConfig{
			Path: "heatdriver-journal.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Tracing: TracingConfig{
			Exporter:     "none",
			SamplingRate: 1.0,
			Insecure:     true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
