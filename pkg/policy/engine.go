package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/openfroyo/heatdriver/pkg/engine"
	"github.com/rs/zerolog"
)

// Engine evaluates admission policies before lifecycle requests reach the
// cloud. It implements engine.Admission.
type Engine struct {
	mu       sync.RWMutex
	builtins map[string]*compiledPolicy
	loaded   map[string]*compiledPolicy
	logger   zerolog.Logger
}

var _ engine.Admission = (*Engine)(nil)

type compiledPolicy struct {
	policy Policy
	query  rego.PreparedEvalQuery
}

// NewEngine creates a policy engine with the built-in policies compiled and
// disabled.
func NewEngine(logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		builtins: make(map[string]*compiledPolicy),
		loaded:   make(map[string]*compiledPolicy),
		logger:   logger.With().Str("component", "policy-engine").Logger(),
	}

	for _, p := range BuiltinPolicies() {
		cp, err := compile(context.Background(), p)
		if err != nil {
			return nil, fmt.Errorf("failed to compile built-in policy %s: %w", p.Name, err)
		}
		e.builtins[p.Name] = cp
	}
	return e, nil
}

// Enable turns on built-in policies by name.
func (e *Engine) Enable(names ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, name := range names {
		cp, ok := e.builtins[name]
		if !ok {
			return fmt.Errorf("unknown built-in policy: %s", name)
		}
		cp.policy.Enabled = true
		e.logger.Info().Str("policy", name).Msg("Built-in policy enabled")
	}
	return nil
}

// LoadPolicies loads .rego and .json policies from files or directories,
// replacing any previously loaded set. Built-ins are unaffected.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	policies, err := NewLoader(e.logger).LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}
	return e.ReplacePolicies(ctx, policies)
}

// ReplacePolicies compiles policies and swaps them in atomically. On a
// compile error the current set is kept.
func (e *Engine) ReplacePolicies(ctx context.Context, policies []Policy) error {
	compiled := make(map[string]*compiledPolicy, len(policies))
	for _, p := range policies {
		if _, dup := compiled[p.Name]; dup {
			return fmt.Errorf("duplicate policy name: %s", p.Name)
		}
		cp, err := compile(ctx, p)
		if err != nil {
			return fmt.Errorf("failed to compile policy %s: %w", p.Name, err)
		}
		compiled[p.Name] = cp
	}

	e.mu.Lock()
	e.loaded = compiled
	e.mu.Unlock()

	e.logger.Info().Int("count", len(compiled)).Msg("Policies loaded")
	return nil
}

// Watch reloads the policies under paths whenever a file changes, until
// ctx is done.
func (e *Engine) Watch(ctx context.Context, paths []string) error {
	loader := NewLoader(e.logger)
	return loader.Watch(ctx, paths, func(policies []Policy) error {
		return e.ReplacePolicies(ctx, policies)
	})
}

// ListPolicies returns every known policy sorted by name.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Policy, 0, len(e.builtins)+len(e.loaded))
	for _, cp := range e.builtins {
		out = append(out, cp.policy)
	}
	for _, cp := range e.loaded {
		out = append(out, cp.policy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Evaluate runs every enabled policy against input. A policy that fails to
// evaluate is reported as a warning and does not block.
func (e *Engine) Evaluate(ctx context.Context, input *Input) (*Decision, error) {
	start := time.Now()

	e.mu.RLock()
	active := make([]*compiledPolicy, 0, len(e.builtins)+len(e.loaded))
	for _, set := range []map[string]*compiledPolicy{e.builtins, e.loaded} {
		for _, cp := range set {
			if cp.policy.Enabled {
				active = append(active, cp)
			}
		}
	}
	e.mu.RUnlock()
	sort.Slice(active, func(i, j int) bool { return active[i].policy.Name < active[j].policy.Name })

	decision := &Decision{Allowed: true, Evaluated: make([]string, 0, len(active))}
	for _, cp := range active {
		decision.Evaluated = append(decision.Evaluated, cp.policy.Name)

		violations, err := cp.evaluate(ctx, input)
		if err != nil {
			e.logger.Error().Err(err).Str("policy", cp.policy.Name).Msg("Policy evaluation failed")
			decision.Warnings = append(decision.Warnings,
				fmt.Sprintf("Policy %s evaluation failed: %v", cp.policy.Name, err))
			continue
		}
		for _, v := range violations {
			if v.Severity.Blocks() {
				decision.Allowed = false
			}
		}
		decision.Violations = append(decision.Violations, violations...)
	}

	e.logger.Debug().
		Str("operation", input.Operation).
		Int("policies", len(active)).
		Int("violations", len(decision.Violations)).
		Bool("allowed", decision.Allowed).
		Dur("duration", time.Since(start)).
		Msg("Policy evaluation completed")

	return decision, nil
}

// Admit evaluates the request and rejects it with a policy denied error
// when any blocking violation is found.
func (e *Engine) Admit(ctx context.Context, op engine.Operation, req *engine.LifecycleRequest) error {
	decision, err := e.Evaluate(ctx, NewInput(op, req))
	if err != nil {
		return err
	}
	for _, v := range decision.Violations {
		if !v.Severity.Blocks() {
			e.logger.Warn().Str("policy", v.Policy).Str("operation", op.String()).Msg(v.Message)
		}
	}
	if decision.Allowed {
		return nil
	}

	var msgs []string
	for _, v := range decision.Violations {
		if v.Severity.Blocks() {
			msgs = append(msgs, fmt.Sprintf("[%s] %s", v.Policy, v.Message))
		}
	}
	return engine.NewPolicyDeniedError("Request denied by policy: %s", strings.Join(msgs, "; "))
}

// NewInput builds the policy input document for a lifecycle request.
func NewInput(op engine.Operation, req *engine.LifecycleRequest) *Input {
	in := &Input{
		Operation:          op.String(),
		ResourceProperties: req.ResourceProperties.Values(),
		SystemProperties:   req.SystemProperties.Values(),
		RequestProperties:  req.RequestProperties.Values(),
		AssociatedTopology: make(map[string]Entry, len(req.AssociatedTopology)),
		Location: Location{
			Name:       req.Location.Name,
			Type:       req.Location.Type,
			Properties: make(map[string]interface{}, len(req.Location.Properties)),
		},
	}
	for name, entry := range req.AssociatedTopology {
		in.AssociatedTopology[name] = Entry{ID: entry.ID, Type: entry.Type}
	}
	for key, value := range req.Location.Properties {
		if isCredential(key) {
			continue
		}
		in.Location.Properties[key] = value
	}
	return in
}

func isCredential(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "password") || strings.Contains(k, "secret") ||
		strings.Contains(k, "token") || k == "os_cacert"
}

func compile(ctx context.Context, p Policy) (*compiledPolicy, error) {
	module, err := ast.ParseModule(p.Name+".rego", p.Rego)
	if err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}

	query, err := rego.New(
		rego.Query(module.Package.Path.String()+".deny"),
		rego.ParsedModule(module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare query: %w", err)
	}

	if p.Severity == "" {
		p.Severity = SeverityError
	}
	if p.LoadedAt.IsZero() {
		p.LoadedAt = time.Now()
	}
	return &compiledPolicy{policy: p, query: query}, nil
}

func (cp *compiledPolicy) evaluate(ctx context.Context, input *Input) ([]Violation, error) {
	results, err := cp.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("policy evaluation error: %w", err)
	}

	var violations []Violation
	for _, result := range results {
		if len(result.Expressions) == 0 {
			continue
		}
		denySet, ok := result.Expressions[0].Value.([]interface{})
		if !ok {
			continue
		}
		for _, d := range denySet {
			violations = append(violations, cp.violation(d))
		}
	}
	return violations, nil
}

func (cp *compiledPolicy) violation(result interface{}) Violation {
	v := Violation{
		Policy:   cp.policy.Name,
		Severity: cp.policy.Severity,
	}
	switch r := result.(type) {
	case string:
		v.Message = r
	case map[string]interface{}:
		if msg, ok := r["message"].(string); ok {
			v.Message = msg
		}
		if sev, ok := r["severity"].(string); ok {
			v.Severity = Severity(sev)
		}
	default:
		v.Message = fmt.Sprintf("%v", result)
	}
	return v
}
