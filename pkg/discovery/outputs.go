package discovery

import (
	"context"

	"github.com/openfroyo/heatdriver/pkg/engine"
	"github.com/openfroyo/heatdriver/pkg/tosca"
)

// disguisedFunctions are checked, in order, on plain map output values.
var disguisedFunctions = []struct {
	key     string
	message string
}{
	{tosca.FuncGetProperty, "Resolving output value with function 'GetProperty' is not supported through discovery - you should use get_attribute instead"},
	{tosca.FuncGetInput, "Resolving output value with function 'GetInput' is not supported through discovery"},
	{tosca.FuncGetOperationOutput, "Resolving output value with function 'GetOperationOutput' is not supported through discovery"},
	{tosca.FuncConcat, "Resolving output value with function 'Concat' is not supported through discovery"},
	{tosca.FuncToken, "Resolving output value with function 'Token' is not supported through discovery"},
}

// outputs evaluates every template output against the found network.
func (s *networkSearch) outputs(ctx context.Context, network *engine.Network) (map[string]interface{}, error) {
	results := make(map[string]interface{}, len(s.tpl.Topology.Outputs))
	for _, name := range s.tpl.OutputNames() {
		value, err := s.output(ctx, network, name, s.tpl.Topology.Outputs[name].Value)
		if err != nil {
			return nil, err
		}
		results[name] = value
	}
	return results, nil
}

func (s *networkSearch) output(ctx context.Context, network *engine.Network, name string, value interface{}) (interface{}, error) {
	fn, ok := tosca.AsFunction(value)
	if !ok {
		if err := rejectDisguisedFunctions(value); err != nil {
			return nil, err
		}
		return value, nil
	}

	switch fn.Name {
	case tosca.FuncGetAttribute:
		args, ok := fn.StringArgs()
		if !ok || len(args) != 2 {
			return nil, engine.NewInvalidTemplateError("Expected two arguments to be provided to get_attribute function on output: %s", name)
		}
		if args[0] != s.nodeName {
			return nil, engine.NewInvalidTemplateError("Attributes can only been resolved to the single node_template named '%s' but output '%s' references '%s'",
				s.nodeName, name, args[0])
		}
		return s.attribute(ctx, network, args[1])
	case tosca.FuncGetProperty:
		return nil, engine.NewInvalidTemplateError("Resolving output function of type '%s' is not supported through discovery - you should use get_attribute instead", fn.Kind())
	default:
		return nil, engine.NewInvalidTemplateError("Resolving output function of type '%s' is not supported through discovery", fn.Kind())
	}
}

// rejectDisguisedFunctions fails when the keys of a plain map output value
// name a function. Nested values are data and pass through untouched.
func rejectDisguisedFunctions(value interface{}) error {
	v, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}
	for _, f := range disguisedFunctions {
		if _, ok := v[f.key]; ok {
			return engine.NewInvalidTemplateError("%s", f.message)
		}
	}
	return nil
}
