package config

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete driver configuration.
type Config struct {
	// ResourceDriver controls handling of driver files.
	ResourceDriver ResourceDriverConfig `yaml:"resource_driver" json:"resource_driver"`

	// Adopt controls status checks for adopted stacks.
	Adopt AdoptConfig `yaml:"adopt" json:"adopt"`

	// Server configures the HTTP API.
	Server ServerConfig `yaml:"server" json:"server"`

	// Admin controls the admin API.
	Admin AdminConfig `yaml:"admin" json:"admin"`

	// Journal configures the request journal.
	Journal JournalConfig `yaml:"journal" json:"journal"`

	// Policy configures admission policies.
	Policy PolicyConfig `yaml:"policy" json:"policy"`

	Log     LogConfig     `yaml:"log" json:"log"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// ResourceDriverConfig configures the lifecycle orchestrator.
type ResourceDriverConfig struct {
	// KeepFiles leaves driver files on disk after each request.
	KeepFiles bool `yaml:"keep_files" json:"keep_files"`
}

// AdoptConfig configures the Adopt transition.
type AdoptConfig struct {
	// SkipStatusCheck reports every Adopt as complete without reading the
	// stack.
	SkipStatusCheck bool `yaml:"skip_status_check" json:"skip_status_check"`

	// AdoptableStatuses are the stack statuses accepted as adopted.
	AdoptableStatuses []string `yaml:"adoptable_statuses" json:"adoptable_statuses" validate:"min=1,dive,required"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Address string `yaml:"address" json:"address" validate:"required"`

	// RateLimit is the sustained request rate per second; zero disables
	// limiting.
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit" validate:"gte=0"`

	// RateBurst is the token bucket size.
	RateBurst int `yaml:"rate_burst" json:"rate_burst" validate:"gte=0"`

	ReadTimeout  Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout" json:"write_timeout"`

	// MaxUploadBytes caps the decoded size of uploaded driver files.
	MaxUploadBytes int64 `yaml:"max_upload_bytes" json:"max_upload_bytes" validate:"gt=0"`
}

// AdminConfig configures the OpenStack admin API.
type AdminConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// JournalConfig configures the SQLite request journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path" validate:"required_if=Enabled true"`
}

// PolicyConfig configures admission policies.
type PolicyConfig struct {
	// Paths are rego files or directories loaded at startup.
	Paths []string `yaml:"paths" json:"paths"`

	// Watch reloads policies when files under Paths change.
	Watch bool `yaml:"watch" json:"watch"`

	// Enable names built-in policies to activate.
	Enable []string `yaml:"enable" json:"enable"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" json:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `yaml:"format" json:"format" validate:"oneof=console json"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter" validate:"oneof=otlp stdout none"`
	Endpoint     string  `yaml:"endpoint" json:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate" json:"sampling_rate" validate:"gte=0,lte=1"`
	Insecure     bool    `yaml:"insecure" json:"insecure"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path" validate:"required_if=Enabled true"`
}

// Duration is a time.Duration written as a string such as "30s".
type Duration struct {
	time.Duration
}

// MarshalJSON renders the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		d.Duration = parsed
	case float64:
		d.Duration = time.Duration(v)
	default:
		return fmt.Errorf("invalid duration %s", string(data))
	}
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML accepts a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// ValidationError is a configuration problem with its source position.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the configuration path, for example server.rate_limit.
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`
}

func (e ValidationError) String() string {
	switch {
	case e.File != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	case e.Path != "":
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	default:
		return e.Message
	}
}

// ValidationErrors collects every problem found in a configuration.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 1 {
		return "invalid configuration: " + errs[0].String()
	}
	msg := fmt.Sprintf("invalid configuration (%d problems):", len(errs))
	for _, e := range errs {
		msg += "\n  " + e.String()
	}
	return msg
}
