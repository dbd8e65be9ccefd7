package tosca

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAsFunction(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		wantOK   bool
		wantName string
		wantArgs []interface{}
		wantKind string
	}{
		{"scalar arg", map[string]interface{}{"get_input": "name"}, true, FuncGetInput, []interface{}{"name"}, "GetInput"},
		{"list args", map[string]interface{}{"get_attribute": []interface{}{"net", "id"}}, true, FuncGetAttribute, []interface{}{"net", "id"}, "GetAttribute"},
		{"unknown key", map[string]interface{}{"get_thing": "x"}, false, "", nil, ""},
		{"two keys", map[string]interface{}{"get_input": "a", "other": 1}, false, "", nil, ""},
		{"not a map", "get_input", false, "", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, ok := AsFunction(tt.value)
			if ok != tt.wantOK {
				t.Fatalf("AsFunction() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if fn.Name != tt.wantName || fn.Kind() != tt.wantKind {
				t.Errorf("got %s/%s, want %s/%s", fn.Name, fn.Kind(), tt.wantName, tt.wantKind)
			}
			if diff := cmp.Diff(tt.wantArgs, fn.Args); diff != "" {
				t.Errorf("Args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFunction_StringArgs(t *testing.T) {
	fn := &Function{Name: FuncGetAttribute, Args: []interface{}{"net", "id"}}
	args, ok := fn.StringArgs()
	if !ok || len(args) != 2 || args[1] != "id" {
		t.Errorf("StringArgs() = %v, %v", args, ok)
	}

	fn = &Function{Name: FuncGetAttribute, Args: []interface{}{"net", 0}}
	if _, ok := fn.StringArgs(); ok {
		t.Error("StringArgs() should fail on non-string arguments")
	}
}

func TestFunctionKeys(t *testing.T) {
	got := FunctionKeys(map[string]interface{}{"token": 1, "value": 2, "get_property": 3})
	if diff := cmp.Diff([]string{"get_property", "token"}, got); diff != "" {
		t.Errorf("FunctionKeys() mismatch (-want +got):\n%s", diff)
	}
}
