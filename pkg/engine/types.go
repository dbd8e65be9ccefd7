package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

const (
	// StackTopologyName is the associated topology entry under which the managed stack is recorded.
	StackTopologyName = "InfrastructureStack"

	// StackTopologyType is the external type recorded for the managed stack.
	StackTopologyType = "Openstack"

	// NoStackID is the placeholder stack id encoded when there is nothing to delete.
	NoStackID = "no-stack"

	// ReferenceTopologyType is the external type recorded for discovered references.
	ReferenceTopologyType = "Openstack"
)

// Property value types inferred for untyped values.
const (
	PropTypeString  = "string"
	PropTypeInteger = "integer"
	PropTypeFloat   = "float"
	PropTypeBoolean = "boolean"
	PropTypeMap     = "map"
	PropTypeList    = "list"
	PropTypeKey     = "key"
)

// PropValue is a property value together with its declared type.
type PropValue struct {
	// Type is the declared type of the value.
	Type string `json:"type"`

	// Value is the raw value.
	Value interface{} `json:"value"`
}

// NewPropValue wraps a plain value, inferring its type.
func NewPropValue(value interface{}) PropValue {
	return PropValue{Type: inferPropType(value), Value: value}
}

func inferPropType(value interface{}) string {
	switch value.(type) {
	case bool:
		return PropTypeBoolean
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return PropTypeInteger
	case float32, float64:
		return PropTypeFloat
	case map[string]interface{}:
		return PropTypeMap
	case []interface{}:
		return PropTypeList
	default:
		return PropTypeString
	}
}

// PropValueMap is a set of named, typed property values.
type PropValueMap map[string]PropValue

// NewPropValueMap builds a PropValueMap from plain values.
func NewPropValueMap(values map[string]interface{}) PropValueMap {
	m := make(PropValueMap, len(values))
	for k, v := range values {
		m[k] = NewPropValue(v)
	}
	return m
}

// Has reports whether key is present.
func (m PropValueMap) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// Get returns the plain value stored under key.
func (m PropValueMap) Get(key string) (interface{}, bool) {
	pv, ok := m[key]
	if !ok {
		return nil, false
	}
	return pv.Value, true
}

// GetString returns the value under key rendered as a string. Missing and
// nil values yield the empty string.
func (m PropValueMap) GetString(key string) string {
	v, ok := m.Get(key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// Values returns the plain values keyed by name.
func (m PropValueMap) Values() map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, pv := range m {
		out[k] = pv.Value
	}
	return out
}

// Keys returns the property names in sorted order.
func (m PropValueMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of the map.
func (m PropValueMap) Clone() PropValueMap {
	out := make(PropValueMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// UnmarshalJSON accepts entries either as {"type": ..., "value": ...}
// objects or as plain values whose type is inferred.
func (m *PropValueMap) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(PropValueMap, len(raw))
	for k, msg := range raw {
		var typed map[string]json.RawMessage
		if err := json.Unmarshal(msg, &typed); err == nil && len(typed) == 2 {
			_, hasType := typed["type"]
			_, hasValue := typed["value"]
			if hasType && hasValue {
				var pv PropValue
				if err := decodeNumbers(msg, &pv); err != nil {
					return fmt.Errorf("property %s: %w", k, err)
				}
				pv.Value = normalizeNumbers(pv.Value)
				out[k] = pv
				continue
			}
		}
		var plain interface{}
		if err := decodeNumbers(msg, &plain); err != nil {
			return fmt.Errorf("property %s: %w", k, err)
		}
		out[k] = NewPropValue(normalizeNumbers(plain))
	}
	*m = out
	return nil
}

func decodeNumbers(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// normalizeNumbers replaces json.Number values, at any depth, with int64
// when they are integral and in range, float64 otherwise.
func normalizeNumbers(value interface{}) interface{} {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, _ := v.Float64()
		return f
	case map[string]interface{}:
		for k, item := range v {
			v[k] = normalizeNumbers(item)
		}
	case []interface{}:
		for i, item := range v {
			v[i] = normalizeNumbers(item)
		}
	}
	return value
}

// TopologyEntry identifies one external object backing a managed resource.
type TopologyEntry struct {
	// ID is the external identifier.
	ID string `json:"id"`

	// Type is the external type.
	Type string `json:"type"`
}

// AssociatedTopology maps logical names to the external objects that back a
// managed resource.
type AssociatedTopology map[string]TopologyEntry

// Get returns the entry recorded under name.
func (t AssociatedTopology) Get(name string) (TopologyEntry, bool) {
	e, ok := t[name]
	return e, ok
}

// Add records an entry under name, replacing any existing entry.
func (t AssociatedTopology) Add(name, id, typ string) {
	t[name] = TopologyEntry{ID: id, Type: typ}
}

// Names returns the entry names in sorted order.
func (t AssociatedTopology) Names() []string {
	names := make([]string, 0, len(t))
	for n := range t {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewStackTopology returns a topology holding only the managed stack entry.
func NewStackTopology(stackID string) AssociatedTopology {
	t := AssociatedTopology{}
	t.Add(StackTopologyName, stackID, StackTopologyType)
	return t
}

// StackOutput is one output exposed by a stack.
type StackOutput struct {
	Key         string      `json:"output_key"`
	Value       interface{} `json:"output_value"`
	Description string      `json:"description,omitempty"`
}

// StackHandle is a freshly fetched view of an external stack.
type StackHandle struct {
	// ID is the external stack id.
	ID string `json:"id"`

	// Name is the stack name, when known.
	Name string `json:"stack_name,omitempty"`

	// Status is the free-form status reported by the orchestration engine.
	Status string `json:"stack_status"`

	// StatusReason explains the status, when reported.
	StatusReason string `json:"stack_status_reason,omitempty"`

	// Outputs are the stack outputs; nil when not yet computed.
	Outputs []StackOutput `json:"outputs,omitempty"`
}

// DeploymentLocation names the environment a request targets.
type DeploymentLocation struct {
	// Name is the location name.
	Name string `json:"name"`

	// Type is the location type.
	Type string `json:"type,omitempty"`

	// Properties hold connection settings for the location.
	Properties map[string]interface{} `json:"properties"`
}

// LifecycleRequest is a single lifecycle invocation.
type LifecycleRequest struct {
	// Lifecycle is the requested operation name, matched case-insensitively.
	Lifecycle string `json:"lifecycleName"`

	// ResourceProperties are the properties of the managed resource.
	ResourceProperties PropValueMap `json:"resourceProperties"`

	// SystemProperties are derived by the caller, including resourceId and resourceName.
	SystemProperties PropValueMap `json:"systemProperties"`

	// RequestProperties are request scoped, including template-type.
	RequestProperties PropValueMap `json:"requestProperties"`

	// AssociatedTopology is the caller's record of the resource's external objects.
	AssociatedTopology AssociatedTopology `json:"associatedTopology"`

	// Location is the deployment location to act against.
	Location DeploymentLocation `json:"deploymentLocation"`

	// Files is the per-call driver file workspace.
	Files DriverFiles `json:"-"`
}

// ExecuteResponse is returned once a lifecycle operation has been accepted.
type ExecuteResponse struct {
	RequestID          string             `json:"requestId"`
	AssociatedTopology AssociatedTopology `json:"associatedTopology,omitempty"`
}

// FailureDetails describes a failed execution.
type FailureDetails struct {
	FailureCode FailureCode `json:"failureCode"`
	Description string      `json:"description,omitempty"`
}

// LifecycleExecution is the polled state of a lifecycle request.
type LifecycleExecution struct {
	RequestID      string                 `json:"requestId"`
	Status         ExecutionStatus        `json:"status"`
	FailureDetails *FailureDetails        `json:"failureDetails,omitempty"`
	Outputs        map[string]interface{} `json:"outputs,omitempty"`
}

// DiscoveryResult is an existing resource located by discovery.
type DiscoveryResult struct {
	// ID is the canonical id of the resource.
	ID string `json:"id"`

	// Outputs are the evaluated outputs; empty is valid.
	Outputs map[string]interface{} `json:"outputs"`
}

// FindReferenceResult is a discovered reference.
type FindReferenceResult struct {
	AssociatedTopology AssociatedTopology     `json:"associatedTopology"`
	Outputs            map[string]interface{} `json:"outputs"`
}

// FindReferenceResponse wraps an optional reference; Result is nil when
// nothing was discovered.
type FindReferenceResponse struct {
	Result *FindReferenceResult `json:"result"`
}

// PingResponse reports whether a location's orchestration service is reachable.
type PingResponse struct {
	Success     bool   `json:"success"`
	Description string `json:"description"`
}
