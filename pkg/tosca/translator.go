package tosca

import (
	"context"
	"fmt"
	"sort"

	"github.com/openfroyo/heatdriver/pkg/engine"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// HeatTemplateVersion is the heat_template_version of generated templates.
const HeatTemplateVersion = "2016-10-14"

const maxPropertyDepth = 32

// oneToOneTypes map node types directly onto Heat resource types. Every
// property is passed through unchanged.
var oneToOneTypes = map[string]string{
	"tosca.nodes.network.NeutronNetwork":            "OS::Neutron::Net",
	"tosca.nodes.network.NeutronSubnet":             "OS::Neutron::Subnet",
	"tosca.nodes.network.NeutronRouter":             "OS::Neutron::Router",
	"tosca.nodes.network.NeutronRouterInterface":    "OS::Neutron::RouterInterface",
	"tosca.nodes.network.NeutronSecurityGroup":      "OS::Neutron::SecurityGroup",
	"tosca.nodes.network.NeutronSecurityGroupRule":  "OS::Neutron::SecurityGroupRule",
	"tosca.nodes.nfv.VnfVirtualLink.NeutronNetwork": "OS::Neutron::Net",
	"tosca.nodes.nfv.Vdu.Compute.NovaServer":        "OS::Nova::Server",
	"tosca.nodes.nfv.VduCp.NeutronPort":             "OS::Neutron::Port",
}

var parameterTypes = map[string]string{
	"string":    "string",
	"integer":   "number",
	"float":     "number",
	"boolean":   "boolean",
	"list":      "comma_delimited_list",
	"map":       "json",
	"timestamp": "string",
	"version":   "string",
}

type hotTemplate struct {
	Version     string                  `yaml:"heat_template_version"`
	Description string                  `yaml:"description,omitempty"`
	Parameters  map[string]hotParameter `yaml:"parameters,omitempty"`
	Resources   map[string]*hotResource `yaml:"resources"`
	Outputs     map[string]hotOutput    `yaml:"outputs,omitempty"`
}

type hotParameter struct {
	Type        string                   `yaml:"type"`
	Description string                   `yaml:"description,omitempty"`
	Default     interface{}              `yaml:"default,omitempty"`
	Constraints []map[string]interface{} `yaml:"constraints,omitempty"`
}

type hotResource struct {
	Type       string                 `yaml:"type"`
	Properties map[string]interface{} `yaml:"properties,omitempty"`
	DependsOn  []string               `yaml:"depends_on,omitempty"`
}

type hotOutput struct {
	Description string      `yaml:"description,omitempty"`
	Value       interface{} `yaml:"value"`
}

// Translator converts TOSCA templates into Heat (HOT) templates.
type Translator struct {
	logger zerolog.Logger
}

// NewTranslator creates a new TOSCA to Heat translator.
func NewTranslator(logger zerolog.Logger) *Translator {
	return &Translator{
		logger: logger.With().Str("component", "tosca_translator").Logger(),
	}
}

// Translate parses a TOSCA template and returns the equivalent Heat template.
// Any failure is reported as a translation error.
func (tr *Translator) Translate(ctx context.Context, template, sourcePath string) (string, error) {
	tpl, err := ParseString(template)
	if err != nil {
		return "", engine.NewTranslationError(err, "%s", err.Error())
	}

	hot, err := newTranslation(tpl).run()
	if err != nil {
		return "", err
	}

	out, err := yaml.Marshal(hot)
	if err != nil {
		return "", engine.NewTranslationError(err, "failed to render Heat template: %v", err)
	}
	tr.logger.Debug().
		Str("source", sourcePath).
		Int("resources", len(hot.Resources)).
		Msg("Translated TOSCA template")
	return string(out), nil
}

type translation struct {
	tpl       *Template
	resources map[string]*hotResource
	// ports bound to each compute node
	bindings map[string][]string
}

func newTranslation(tpl *Template) *translation {
	return &translation{
		tpl:       tpl,
		resources: make(map[string]*hotResource),
		bindings:  make(map[string][]string),
	}
}

func (t *translation) run() (*hotTemplate, error) {
	hot := &hotTemplate{
		Version:     HeatTemplateVersion,
		Description: t.tpl.Description,
		Resources:   t.resources,
	}

	if len(t.tpl.Topology.Inputs) > 0 {
		hot.Parameters = make(map[string]hotParameter, len(t.tpl.Topology.Inputs))
		for _, name := range t.tpl.InputNames() {
			hot.Parameters[name] = parameter(t.tpl.Topology.Inputs[name])
		}
	}

	for _, name := range t.tpl.NodeNames() {
		if err := t.node(name, t.tpl.Topology.NodeTemplates[name]); err != nil {
			return nil, err
		}
	}
	t.attachPorts()

	if len(t.tpl.Topology.Outputs) > 0 {
		hot.Outputs = make(map[string]hotOutput, len(t.tpl.Topology.Outputs))
		for _, name := range t.tpl.OutputNames() {
			out := t.tpl.Topology.Outputs[name]
			value, err := t.value("", out.Value, 0)
			if err != nil {
				return nil, engine.NewTranslationError(err, "Output '%s': %v", name, err)
			}
			hot.Outputs[name] = hotOutput{Description: out.Description, Value: value}
		}
	}
	return hot, nil
}

func parameter(def PropertyDefinition) hotParameter {
	typ, ok := parameterTypes[def.Type]
	if !ok {
		typ = "string"
	}
	p := hotParameter{Type: typ, Description: def.Description, Default: def.Default}
	for _, c := range def.Constraints {
		if hc := constraint(c); hc != nil {
			p.Constraints = append(p.Constraints, hc)
		}
	}
	return p
}

func constraint(c map[string]interface{}) map[string]interface{} {
	for op, arg := range c {
		switch op {
		case "valid_values":
			return map[string]interface{}{"allowed_values": arg}
		case "pattern":
			return map[string]interface{}{"allowed_pattern": arg}
		case "in_range":
			if bounds, ok := arg.([]interface{}); ok && len(bounds) == 2 {
				return map[string]interface{}{"range": map[string]interface{}{"min": bounds[0], "max": bounds[1]}}
			}
		case "greater_or_equal":
			return map[string]interface{}{"range": map[string]interface{}{"min": arg}}
		case "less_or_equal":
			return map[string]interface{}{"range": map[string]interface{}{"max": arg}}
		case "length":
			return map[string]interface{}{"length": map[string]interface{}{"min": arg, "max": arg}}
		case "min_length":
			return map[string]interface{}{"length": map[string]interface{}{"min": arg}}
		case "max_length":
			return map[string]interface{}{"length": map[string]interface{}{"max": arg}}
		}
	}
	return nil
}

// node translates one node template into one or more Heat resources.
func (t *translation) node(name string, node NodeTemplate) error {
	if hotType := t.tpl.HotTypeOf(node); hotType != "" {
		return t.passthrough(name, node, hotType)
	}

	chain, err := t.tpl.Ancestors(node.Type)
	if err != nil {
		return engine.NewTranslationError(err, "%s", err.Error())
	}
	for _, typeName := range chain {
		if hotType, ok := oneToOneTypes[typeName]; ok {
			return t.passthrough(name, node, hotType)
		}
		switch typeName {
		case TypeNetwork:
			return t.network(name, node)
		case TypePort:
			return t.port(name, node)
		case TypeCompute:
			return t.compute(name, node)
		case TypeFloatingIP:
			return t.floatingIP(name, node)
		}
	}
	return engine.NewTranslationError(nil, "Node template '%s' of type '%s' cannot be translated to a Heat resource", name, node.Type)
}

func (t *translation) passthrough(name string, node NodeTemplate, hotType string) error {
	props, err := t.properties(name, node.Properties, nil)
	if err != nil {
		return err
	}
	res := &hotResource{Type: hotType, Properties: props}
	if err := t.dependOn(name, res, node, nil); err != nil {
		return err
	}
	t.resources[name] = res
	return nil
}

var (
	networkProperties = map[string]string{
		"network_name": "name",
	}
	providerProperties = map[string]string{
		"segmentation_id":  "provider:segmentation_id",
		"physical_network": "provider:physical_network",
		"network_type":     "provider:network_type",
	}
	subnetProperties = map[string]string{
		"ip_version":   "ip_version",
		"cidr":         "cidr",
		"gateway_ip":   "gateway_ip",
		"dhcp_enabled": "enable_dhcp",
	}
)

func (t *translation) network(name string, node NodeTemplate) error {
	if _, ok := node.Properties["network_id"]; ok {
		return engine.NewTranslationError(nil, "Network node '%s' references an existing network through network_id; use discovery instead", name)
	}

	net := &hotResource{Type: "OS::Neutron::Net", Properties: map[string]interface{}{}}
	subnet := map[string]interface{}{}
	valueSpecs := map[string]interface{}{}
	var pool [2]interface{}

	for _, key := range sortedKeys(node.Properties) {
		value, err := t.value(name, node.Properties[key], 0)
		if err != nil {
			return engine.NewTranslationError(err, "Node template '%s' property '%s': %v", name, key, err)
		}
		switch {
		case networkProperties[key] != "":
			net.Properties[networkProperties[key]] = value
		case providerProperties[key] != "":
			valueSpecs[providerProperties[key]] = value
		case subnetProperties[key] != "":
			subnet[subnetProperties[key]] = value
		case key == "start_ip":
			pool[0] = value
		case key == "end_ip":
			pool[1] = value
		default:
			net.Properties[key] = value
		}
	}
	if len(valueSpecs) > 0 {
		net.Properties["value_specs"] = valueSpecs
	}
	if len(net.Properties) == 0 {
		net.Properties = nil
	}
	t.resources[name] = net

	if _, ok := subnet["cidr"]; ok {
		subnet["network"] = map[string]interface{}{"get_resource": name}
		if pool[0] != nil && pool[1] != nil {
			subnet["allocation_pools"] = []interface{}{
				map[string]interface{}{"start": pool[0], "end": pool[1]},
			}
		}
		t.resources[name+"_subnet"] = &hotResource{Type: "OS::Neutron::Subnet", Properties: subnet}
	}
	return nil
}

func (t *translation) port(name string, node NodeTemplate) error {
	props, err := t.properties(name, node.Properties, map[string]bool{"order": true, "is_default": true, "ip_range_start": true, "ip_range_end": true})
	if err != nil {
		return err
	}
	if ip, ok := props["ip_address"]; ok {
		delete(props, "ip_address")
		props["fixed_ips"] = []interface{}{map[string]interface{}{"ip_address": ip}}
	}

	res := &hotResource{Type: "OS::Neutron::Port", Properties: props}
	for _, req := range RequirementsOf(node) {
		if err := t.requireNode(name, req); err != nil {
			return err
		}
		switch req.Name {
		case "link":
			res.Properties["network"] = map[string]interface{}{"get_resource": req.Node}
		case "binding":
			t.bindings[req.Node] = append(t.bindings[req.Node], name)
		}
	}
	if err := t.dependOn(name, res, node, map[string]bool{"link": true, "binding": true}); err != nil {
		return err
	}
	t.resources[name] = res
	return nil
}

func (t *translation) compute(name string, node NodeTemplate) error {
	props, err := t.properties(name, node.Properties, nil)
	if err != nil {
		return err
	}
	res := &hotResource{Type: "OS::Nova::Server", Properties: props}
	if err := t.dependOn(name, res, node, nil); err != nil {
		return err
	}
	t.resources[name] = res
	return nil
}

func (t *translation) floatingIP(name string, node NodeTemplate) error {
	props, err := t.properties(name, node.Properties, nil)
	if err != nil {
		return err
	}
	res := &hotResource{Type: "OS::Neutron::FloatingIP", Properties: props}
	for _, req := range RequirementsOf(node) {
		if req.Name != "link" {
			continue
		}
		if err := t.requireNode(name, req); err != nil {
			return err
		}
		res.Properties["port_id"] = map[string]interface{}{"get_resource": req.Node}
	}
	if err := t.dependOn(name, res, node, map[string]bool{"link": true}); err != nil {
		return err
	}
	t.resources[name] = res
	return nil
}

// attachPorts adds the ports bound to each server to its networks property.
func (t *translation) attachPorts() {
	for server, ports := range t.bindings {
		res, ok := t.resources[server]
		if !ok {
			continue
		}
		sort.Slice(ports, func(i, j int) bool {
			oi, oj := portOrder(t.tpl.Topology.NodeTemplates[ports[i]]), portOrder(t.tpl.Topology.NodeTemplates[ports[j]])
			if oi != oj {
				return oi < oj
			}
			return ports[i] < ports[j]
		})
		networks := make([]interface{}, 0, len(ports))
		for _, p := range ports {
			networks = append(networks, map[string]interface{}{"port": map[string]interface{}{"get_resource": p}})
		}
		if res.Properties == nil {
			res.Properties = map[string]interface{}{}
		}
		res.Properties["networks"] = networks
	}
}

func portOrder(node NodeTemplate) int {
	if v, ok := node.Properties["order"].(int); ok {
		return v
	}
	return 0
}

func (t *translation) properties(self string, props map[string]interface{}, skip map[string]bool) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(props))
	for _, key := range sortedKeys(props) {
		if skip[key] {
			continue
		}
		value, err := t.value(self, props[key], 0)
		if err != nil {
			return nil, engine.NewTranslationError(err, "Node template '%s' property '%s': %v", self, key, err)
		}
		out[key] = value
	}
	return out, nil
}

func (t *translation) dependOn(name string, res *hotResource, node NodeTemplate, handled map[string]bool) error {
	seen := make(map[string]bool)
	for _, req := range RequirementsOf(node) {
		if handled[req.Name] {
			continue
		}
		if err := t.requireNode(name, req); err != nil {
			return err
		}
		if !seen[req.Node] {
			seen[req.Node] = true
			res.DependsOn = append(res.DependsOn, req.Node)
		}
	}
	sort.Strings(res.DependsOn)
	return nil
}

func (t *translation) requireNode(name string, req Requirement) error {
	if _, ok := t.tpl.Topology.NodeTemplates[req.Node]; !ok {
		return engine.NewTranslationError(nil, "Node template '%s' requirement '%s' references unknown node '%s'", name, req.Name, req.Node)
	}
	return nil
}

// value translates a property or output value, rewriting intrinsic
// functions into their Heat equivalents.
func (t *translation) value(self string, v interface{}, depth int) (interface{}, error) {
	if depth > maxPropertyDepth {
		return nil, fmt.Errorf("get_property references are nested too deeply")
	}

	if fn, ok := AsFunction(v); ok {
		return t.function(self, fn, depth)
	}

	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			translated, err := t.value(self, item, depth)
			if err != nil {
				return nil, err
			}
			out[k] = translated
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			translated, err := t.value(self, item, depth)
			if err != nil {
				return nil, err
			}
			out[i] = translated
		}
		return out, nil
	default:
		return v, nil
	}
}

func (t *translation) function(self string, fn *Function, depth int) (interface{}, error) {
	switch fn.Name {
	case FuncGetInput:
		if len(fn.Args) == 0 {
			return nil, fmt.Errorf("get_input requires an input name")
		}
		name, ok := fn.Args[0].(string)
		if !ok {
			return nil, fmt.Errorf("get_input requires an input name")
		}
		if _, declared := t.tpl.Topology.Inputs[name]; !declared {
			return nil, fmt.Errorf("get_input references undeclared input '%s'", name)
		}
		if len(fn.Args) == 1 {
			return map[string]interface{}{"get_param": name}, nil
		}
		return map[string]interface{}{"get_param": fn.Args}, nil

	case FuncGetAttribute:
		args, ok := fn.StringArgs()
		if !ok || len(args) < 2 {
			return nil, fmt.Errorf("get_attribute requires a node name and an attribute name")
		}
		target, err := t.resolveNode(self, args[0])
		if err != nil {
			return nil, err
		}
		if args[1] == "ip_address" && t.tpl.IsDerivedFrom(t.tpl.Topology.NodeTemplates[target].Type, TypePort) {
			return map[string]interface{}{"get_attr": []interface{}{target, "fixed_ips", 0, "ip_address"}}, nil
		}
		attr := []interface{}{target}
		for _, a := range args[1:] {
			attr = append(attr, a)
		}
		return map[string]interface{}{"get_attr": attr}, nil

	case FuncGetProperty:
		args, ok := fn.StringArgs()
		if !ok || len(args) != 2 {
			return nil, fmt.Errorf("get_property requires a node name and a property name")
		}
		target, err := t.resolveNode(self, args[0])
		if err != nil {
			return nil, err
		}
		value, ok := t.tpl.Topology.NodeTemplates[target].Properties[args[1]]
		if !ok {
			return nil, fmt.Errorf("node '%s' has no property '%s'", target, args[1])
		}
		return t.value(target, value, depth+1)

	case FuncConcat:
		parts := make([]interface{}, len(fn.Args))
		for i, a := range fn.Args {
			translated, err := t.value(self, a, depth)
			if err != nil {
				return nil, err
			}
			parts[i] = translated
		}
		return map[string]interface{}{"list_join": []interface{}{"", parts}}, nil
	}
	return nil, fmt.Errorf("function '%s' is not supported by the Heat translation", fn.Name)
}

func (t *translation) resolveNode(self, name string) (string, error) {
	if name == SelfNode {
		if self == "" {
			return "", fmt.Errorf("SELF cannot be used outside a node template")
		}
		return self, nil
	}
	if _, ok := t.tpl.Topology.NodeTemplates[name]; !ok {
		return "", fmt.Errorf("unknown node template '%s'", name)
	}
	return name, nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
