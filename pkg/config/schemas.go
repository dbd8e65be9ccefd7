package config

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

// DriverSchema names the built-in schema for the driver configuration.
const DriverSchema = "driver"

// SchemaRegistry manages CUE schemas for validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}
	if err := sr.RegisterSchema(DriverSchema, builtinDriverSchema); err != nil {
		panic(err)
	}
	return sr
}

// RegisterSchema registers a CUE schema with the given name.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	sr.schemas[name] = val
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ListSchemas returns the registered schema names, sorted.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateJSON unifies a JSON document with a named schema and requires the
// result to be concrete.
func (sr *SchemaRegistry) ValidateJSON(schemaName string, data []byte) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	sr.mu.Lock()
	dataVal := sr.ctx.CompileBytes(data, cue.Filename(schemaName+".json"))
	sr.mu.Unlock()
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return convertCUEErrors(err)
	}
	return nil
}

// convertCUEErrors flattens a CUE error into ValidationErrors.
func convertCUEErrors(err error) ValidationErrors {
	var out ValidationErrors
	for _, e := range errors.Errors(err) {
		ve := ValidationError{
			Path:    strings.Join(e.Path(), "."),
			Message: errors.Details(e, nil),
		}
		if pos := errors.Positions(e); len(pos) > 0 {
			ve.File = pos[0].Filename()
			ve.Line = pos[0].Line()
			ve.Column = pos[0].Column()
		}
		out = append(out, ve)
	}
	if len(out) == 0 {
		out = append(out, ValidationError{Message: err.Error()})
	}
	return out
}

const builtinDriverSchema = `
_duration: "^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"

resource_driver: {
	keep_files: bool
}

adopt: {
	skip_status_check:  bool
	adoptable_statuses: [string, ...string]
}

server: {
	address:          string & !=""
	rate_limit:       number & >=0
	rate_burst:       int & >=0
	read_timeout:     =~_duration
	write_timeout:    =~_duration
	max_upload_bytes: int & >0
}

admin: {
	enabled: bool
}

journal: {
	enabled: bool
	path:    string
	if enabled {
		path: !=""
	}
}

policy: {
	paths:  null | [...string]
	watch:  bool
	enable: null | [...("protected-stacks" | "require-resource-identity")]
}

log: {
	level:  "trace" | "debug" | "info" | "warn" | "error" | "fatal"
	format: "console" | "json"
}

tracing: {
	enabled:       bool
	exporter:      "otlp" | "stdout" | "none"
	endpoint:      string
	sampling_rate: number & >=0 & <=1
	insecure:      bool
	if enabled && exporter == "otlp" {
		endpoint: !=""
	}
}

metrics: {
	enabled: bool
	path:    string
	if enabled {
		path: =~"^/"
	}
}
`
