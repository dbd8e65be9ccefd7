package engine

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPropValueMap_UnmarshalJSON(t *testing.T) {
	data := []byte(`{
		"typed": {"type": "key", "value": "ssh-rsa AAA"},
		"plain": "text",
		"count": 3,
		"ratio": 1.5,
		"flag": true,
		"nested": {"a": 1},
		"items": ["x"],
		"lookalike": {"type": "string", "value": "v", "extra": 1}
	}`)

	var m PropValueMap
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	wantTypes := map[string]string{
		"typed":     PropTypeKey,
		"plain":     PropTypeString,
		"count":     PropTypeInteger,
		"ratio":     PropTypeFloat,
		"flag":      PropTypeBoolean,
		"nested":    PropTypeMap,
		"items":     PropTypeList,
		"lookalike": PropTypeMap,
	}
	for k, want := range wantTypes {
		if got := m[k].Type; got != want {
			t.Errorf("%s type = %q, want %q", k, got, want)
		}
	}
	if m.GetString("typed") != "ssh-rsa AAA" {
		t.Errorf("typed value = %v", m["typed"].Value)
	}
	if m["count"].Value != int64(3) {
		t.Errorf("count value = %#v, want int64(3)", m["count"].Value)
	}
}

func TestPropValueMap_UnmarshalJSONKeepsLargeIntegers(t *testing.T) {
	data := []byte(`{
		"big": 9007199254740993,
		"typed": {"type": "integer", "value": 9007199254740993},
		"nested": {"ids": [9007199254740993, 2.5]},
		"whole": 3.0
	}`)

	var m PropValueMap
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if m["big"].Value != int64(9007199254740993) || m["big"].Type != PropTypeInteger {
		t.Errorf("big = %#v", m["big"])
	}
	if m["typed"].Value != int64(9007199254740993) {
		t.Errorf("typed value = %#v", m["typed"].Value)
	}
	want := map[string]interface{}{"ids": []interface{}{int64(9007199254740993), 2.5}}
	if diff := cmp.Diff(want, m["nested"].Value); diff != "" {
		t.Errorf("nested mismatch (-want +got):\n%s", diff)
	}
	if m["whole"].Value != 3.0 || m["whole"].Type != PropTypeFloat {
		t.Errorf("whole = %#v", m["whole"])
	}
}

func TestPropValueMap_GetString(t *testing.T) {
	m := NewPropValueMap(map[string]interface{}{"n": 5, "s": " abc ", "nil": nil})
	if got := m.GetString("n"); got != "5" {
		t.Errorf("GetString(n) = %q", got)
	}
	if got := m.GetString("s"); got != " abc " {
		t.Errorf("GetString(s) = %q", got)
	}
	if got := m.GetString("nil"); got != "" {
		t.Errorf("GetString(nil) = %q", got)
	}
	if got := m.GetString("missing"); got != "" {
		t.Errorf("GetString(missing) = %q", got)
	}
}

func TestExecutionStatus_UnmarshalJSON(t *testing.T) {
	var s ExecutionStatus
	if err := json.Unmarshal([]byte(`"FAILED"`), &s); err != nil || s != ExecutionFailed {
		t.Errorf("Unmarshal(FAILED) = %s, %v", s, err)
	}
	if err := json.Unmarshal([]byte(`"UNKNOWN"`), &s); err == nil {
		t.Error("expected error for UNKNOWN status")
	}
	if !ExecutionFailed.IsTerminal() || ExecutionInProgress.IsTerminal() {
		t.Error("IsTerminal() mismatch")
	}
}

func TestDriverError(t *testing.T) {
	cause := NewNotFoundError(nil, "Stack 'x' not found")
	err := &DriverError{Kind: ErrorKindInvalidTemplate, Message: "bad", Err: cause}

	if !IsInvalidTemplate(err) {
		t.Error("IsInvalidTemplate() = false")
	}
	if IsNotFound(err) {
		t.Error("outer kind should take precedence in KindOf")
	}
	if !IsKind(cause, ErrorKindNotFound) {
		t.Error("IsKind(cause, not_found) = false")
	}
	if err.Error() != "bad" {
		t.Errorf("Error() = %q", err.Error())
	}
	if IsNotFound(nil) {
		t.Error("IsNotFound(nil) = true")
	}
}
