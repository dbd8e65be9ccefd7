package tosca

import (
	"sort"
)

// Intrinsic function names.
const (
	FuncGetInput           = "get_input"
	FuncGetProperty        = "get_property"
	FuncGetAttribute       = "get_attribute"
	FuncGetOperationOutput = "get_operation_output"
	FuncConcat             = "concat"
	FuncToken              = "token"
	FuncGetArtifact        = "get_artifact"
	FuncGetNodesOfType     = "get_nodes_of_type"
)

// SelfNode refers to the node template that holds an expression.
const SelfNode = "SELF"

var functionKinds = map[string]string{
	FuncGetInput:           "GetInput",
	FuncGetProperty:        "GetProperty",
	FuncGetAttribute:       "GetAttribute",
	FuncGetOperationOutput: "GetOperationOutput",
	FuncConcat:             "Concat",
	FuncToken:              "Token",
	FuncGetArtifact:        "GetArtifact",
	FuncGetNodesOfType:     "GetNodesOfType",
}

// Function is an intrinsic function call found in a template value.
type Function struct {
	// Name is the function keyword, for example get_input.
	Name string

	// Args are the function arguments. Scalar arguments are wrapped in a
	// single element slice.
	Args []interface{}
}

// Kind returns the display name of the function, for example GetInput.
func (f *Function) Kind() string {
	if k, ok := functionKinds[f.Name]; ok {
		return k
	}
	return f.Name
}

// StringArgs returns the arguments as strings, reporting false if any
// argument is not a string.
func (f *Function) StringArgs() ([]string, bool) {
	out := make([]string, len(f.Args))
	for i, a := range f.Args {
		s, ok := a.(string)
		if !ok {
			return nil, false
		}
		out[i] = s
	}
	return out, true
}

// AsFunction reports whether value is an intrinsic function call: a
// single-key map whose key is a known function name.
func AsFunction(value interface{}) (*Function, bool) {
	m, ok := value.(map[string]interface{})
	if !ok || len(m) != 1 {
		return nil, false
	}
	for name, raw := range m {
		if _, known := functionKinds[name]; !known {
			return nil, false
		}
		var args []interface{}
		switch v := raw.(type) {
		case []interface{}:
			args = v
		default:
			args = []interface{}{v}
		}
		return &Function{Name: name, Args: args}, true
	}
	return nil, false
}

// FunctionKeys returns the function names used as keys of a map value,
// sorted. Used to detect function markers inside plain structures.
func FunctionKeys(value map[string]interface{}) []string {
	var keys []string
	for k := range value {
		if _, known := functionKinds[k]; known {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
