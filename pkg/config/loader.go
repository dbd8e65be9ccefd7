package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every configuration environment variable.
const EnvPrefix = "HD_"

// Options control where configuration is read from.
type Options struct {
	// File is a YAML or CUE configuration file. When empty DefaultFile is
	// read if it exists.
	File string

	// EnvFile is a dotenv file loaded into the process environment without
	// overriding variables already set. Empty skips it.
	EnvFile string

	// LookupEnv reads environment variables; nil uses os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

var (
	registryOnce sync.Once
	registry     *SchemaRegistry
)

func schemas() *SchemaRegistry {
	registryOnce.Do(func() { registry = NewSchemaRegistry() })
	return registry
}

// Load reads configuration from path (or DefaultFile), .env and HD_*
// environment variables on top of the defaults.
func Load(path string) (*Config, error) {
	return LoadWithOptions(Options{File: path, EnvFile: ".env"})
}

// LoadWithOptions is Load with explicit sources.
func LoadWithOptions(opts Options) (*Config, error) {
	cfg := Default()

	path, required := opts.File, true
	if path == "" {
		path, required = DefaultFile, false
	}
	if err := readFile(cfg, path, required); err != nil {
		return nil, err
	}

	if opts.EnvFile != "" {
		if err := loadDotEnvIfPresent(opts.EnvFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", opts.EnvFile, err)
		}
	}

	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(cfg *Config, path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return parseCUE(cfg, data, path)
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return nil
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return nil
	}
}

func loadDotEnvIfPresent(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
		return nil
	}
	return err
}

type envBinding struct {
	name string
	set  func(string) error
}

func envBindings(cfg *Config) []envBinding {
	return []envBinding{
		{"KEEP_FILES", boolVar(&cfg.ResourceDriver.KeepFiles)},
		{"ADOPT_SKIP_STATUS_CHECK", boolVar(&cfg.Adopt.SkipStatusCheck)},
		{"ADOPT_STATUSES", listVar(&cfg.Adopt.AdoptableStatuses)},
		{"SERVER_ADDRESS", stringVar(&cfg.Server.Address)},
		{"RATE_LIMIT", floatVar(&cfg.Server.RateLimit)},
		{"RATE_BURST", intVar(&cfg.Server.RateBurst)},
		{"ADMIN_ENABLED", boolVar(&cfg.Admin.Enabled)},
		{"JOURNAL_ENABLED", boolVar(&cfg.Journal.Enabled)},
		{"JOURNAL_PATH", stringVar(&cfg.Journal.Path)},
		{"POLICY_PATHS", listVar(&cfg.Policy.Paths)},
		{"POLICY_WATCH", boolVar(&cfg.Policy.Watch)},
		{"POLICY_ENABLE", listVar(&cfg.Policy.Enable)},
		{"LOG_LEVEL", stringVar(&cfg.Log.Level)},
		{"LOG_FORMAT", stringVar(&cfg.Log.Format)},
		{"TRACING_ENABLED", boolVar(&cfg.Tracing.Enabled)},
		{"TRACING_EXPORTER", stringVar(&cfg.Tracing.Exporter)},
		{"TRACING_ENDPOINT", stringVar(&cfg.Tracing.Endpoint)},
		{"METRICS_ENABLED", boolVar(&cfg.Metrics.Enabled)},
	}
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for _, b := range envBindings(cfg) {
		value, ok := lookup(EnvPrefix + b.name)
		if !ok {
			continue
		}
		if err := b.set(strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, b.name, err)
		}
	}
	return nil
}

func stringVar(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func boolVar(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

func intVar(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func floatVar(dst *float64) func(string) error {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*dst = f
		return nil
	}
}

func listVar(dst *[]string) func(string) error {
	return func(v string) error {
		var items []string
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		*dst = items
		return nil
	}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks cfg with its struct tags and the built-in CUE schema.
func Validate(cfg *Config) error {
	var problems ValidationErrors

	if err := structValidator().Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			problems = append(problems, ValidationError{
				Path:    strings.TrimPrefix(fe.Namespace(), "Config."),
				Message: fmt.Sprintf("failed on the '%s' rule", fe.Tag()),
			})
		}
	}

	doc, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := schemas().ValidateJSON(DriverSchema, doc); err != nil {
		var cueErrs ValidationErrors
		if !errors.As(err, &cueErrs) {
			return err
		}
		problems = append(problems, cueErrs...)
	}

	if len(problems) > 0 {
		return problems
	}
	return nil
}
