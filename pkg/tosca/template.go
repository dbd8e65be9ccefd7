package tosca

import (
	"fmt"
	"sort"

	"github.com/openfroyo/heatdriver/pkg/engine"
	"gopkg.in/yaml.v3"
)

// Template is a parsed TOSCA service template.
type Template struct {
	// Version is the tosca_definitions_version.
	Version string `yaml:"tosca_definitions_version"`

	// Description is the free-form template description.
	Description string `yaml:"description,omitempty"`

	// NodeTypes are the node types declared by the template.
	NodeTypes map[string]NodeType `yaml:"node_types,omitempty"`

	// Topology is the topology_template section.
	Topology TopologyTemplate `yaml:"topology_template"`
}

// NodeType is a node type declared in a template.
type NodeType struct {
	DerivedFrom string                        `yaml:"derived_from,omitempty"`
	Description string                        `yaml:"description,omitempty"`
	Metadata    map[string]string             `yaml:"metadata,omitempty"`
	Properties  map[string]PropertyDefinition `yaml:"properties,omitempty"`
	Attributes  map[string]PropertyDefinition `yaml:"attributes,omitempty"`
}

// PropertyDefinition declares a property, attribute or input.
type PropertyDefinition struct {
	Type        string                   `yaml:"type,omitempty"`
	Description string                   `yaml:"description,omitempty"`
	Required    *bool                    `yaml:"required,omitempty"`
	Default     interface{}              `yaml:"default,omitempty"`
	Constraints []map[string]interface{} `yaml:"constraints,omitempty"`
}

// TopologyTemplate holds the inputs, nodes and outputs of a template.
type TopologyTemplate struct {
	Inputs        map[string]PropertyDefinition `yaml:"inputs,omitempty"`
	NodeTemplates map[string]NodeTemplate       `yaml:"node_templates,omitempty"`
	Outputs       map[string]Output             `yaml:"outputs,omitempty"`
}

// NodeTemplate is one node of the topology.
type NodeTemplate struct {
	Type         string                   `yaml:"type"`
	Description  string                   `yaml:"description,omitempty"`
	Metadata     map[string]interface{}   `yaml:"metadata,omitempty"`
	Properties   map[string]interface{}   `yaml:"properties,omitempty"`
	Requirements []map[string]interface{} `yaml:"requirements,omitempty"`
}

// Output is a declared template output.
type Output struct {
	Description string      `yaml:"description,omitempty"`
	Value       interface{} `yaml:"value"`
}

// Parse parses and validates a TOSCA template. Structural problems are
// reported as invalid template errors.
func Parse(source []byte) (*Template, error) {
	var tpl Template
	if err := yaml.Unmarshal(source, &tpl); err != nil {
		return nil, &engine.DriverError{
			Kind:    engine.ErrorKindInvalidTemplate,
			Message: fmt.Sprintf("failed to parse TOSCA template: %v", err),
			Err:     err,
		}
	}
	if err := tpl.validate(); err != nil {
		return nil, err
	}
	return &tpl, nil
}

// ParseString is Parse for template text.
func ParseString(source string) (*Template, error) {
	return Parse([]byte(source))
}

func (t *Template) validate() error {
	if t.Version == "" {
		return engine.NewInvalidTemplateError("Template is missing required field 'tosca_definitions_version'")
	}
	for name, node := range t.Topology.NodeTemplates {
		if node.Type == "" {
			return engine.NewInvalidTemplateError("Node template '%s' is missing required field 'type'", name)
		}
		if _, err := t.Ancestors(node.Type); err != nil {
			return err
		}
	}
	for name, nt := range t.NodeTypes {
		if nt.DerivedFrom == "" {
			continue
		}
		if _, err := t.Ancestors(name); err != nil {
			return err
		}
	}
	return nil
}

// NodeNames returns the node template names in sorted order.
func (t *Template) NodeNames() []string {
	names := make([]string, 0, len(t.Topology.NodeTemplates))
	for name := range t.Topology.NodeTemplates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OutputNames returns the output names in sorted order.
func (t *Template) OutputNames() []string {
	names := make([]string, 0, len(t.Topology.Outputs))
	for name := range t.Topology.Outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InputNames returns the input names in sorted order.
func (t *Template) InputNames() []string {
	names := make([]string, 0, len(t.Topology.Inputs))
	for name := range t.Topology.Inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveInput returns the value of a named input, falling back to its
// declared default.
func (t *Template) ResolveInput(name string, inputs map[string]interface{}) (interface{}, error) {
	if v, ok := inputs[name]; ok {
		return v, nil
	}
	def, ok := t.Topology.Inputs[name]
	if !ok {
		return nil, engine.NewInvalidTemplateError("Input '%s' is not declared in topology_template inputs", name)
	}
	if def.Default == nil {
		return nil, engine.NewInvalidTemplateError("Input '%s' has no value and no default", name)
	}
	return def.Default, nil
}

// Requirement is a single named requirement of a node template.
type Requirement struct {
	Name string
	Node string
}

// RequirementsOf flattens a node template's requirements. Both the short
// form (name: node) and the long form (name: {node: node}) are accepted.
func RequirementsOf(node NodeTemplate) []Requirement {
	var reqs []Requirement
	for _, entry := range node.Requirements {
		names := make([]string, 0, len(entry))
		for name := range entry {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			switch v := entry[name].(type) {
			case string:
				reqs = append(reqs, Requirement{Name: name, Node: v})
			case map[string]interface{}:
				if target, ok := v["node"].(string); ok {
					reqs = append(reqs, Requirement{Name: name, Node: target})
				}
			}
		}
	}
	return reqs
}
