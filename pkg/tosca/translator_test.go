package tosca

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/openfroyo/heatdriver/pkg/engine"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const serverTemplate = `
tosca_definitions_version: tosca_simple_yaml_1_0
description: server with a port
topology_template:
  inputs:
    image:
      type: string
      default: cirros
    count:
      type: integer
      constraints:
        - in_range: [1, 5]
  node_templates:
    net:
      type: tosca.nodes.network.Network
      properties:
        network_name: private
        cidr: 10.0.0.0/24
        ip_version: 4
        start_ip: 10.0.0.10
        end_ip: 10.0.0.20
        network_type: vlan
    port:
      type: tosca.nodes.network.Port
      properties:
        ip_address: 10.0.0.11
        order: 0
      requirements:
        - link: net
        - binding: server
    server:
      type: tosca.nodes.Compute
      properties:
        image: { get_input: image }
        flavor: m1.small
        name: { concat: [ "srv-", { get_property: [SELF, flavor] } ] }
    sg:
      type: tosca.nodes.network.NeutronSecurityGroup
      properties:
        name: default-sg
      requirements:
        - dependency: net
  outputs:
    server_ip:
      description: port address
      value: { get_attribute: [port, ip_address] }
    server_name:
      value: { get_attribute: [server, name] }
`

func translate(t *testing.T, source string) map[string]interface{} {
	t.Helper()
	tr := NewTranslator(zerolog.New(nil).Level(zerolog.Disabled))
	out, err := tr.Translate(context.Background(), source, "tosca.yaml")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	var hot map[string]interface{}
	if err := yaml.Unmarshal([]byte(out), &hot); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, out)
	}
	return hot
}

func resource(t *testing.T, hot map[string]interface{}, name string) map[string]interface{} {
	t.Helper()
	resources, _ := hot["resources"].(map[string]interface{})
	res, ok := resources[name].(map[string]interface{})
	if !ok {
		t.Fatalf("resource %q missing from %v", name, resources)
	}
	return res
}

func TestTranslate_Server(t *testing.T) {
	hot := translate(t, serverTemplate)

	if hot["heat_template_version"] != HeatTemplateVersion {
		t.Errorf("heat_template_version = %v", hot["heat_template_version"])
	}
	if hot["description"] != "server with a port" {
		t.Errorf("description = %v", hot["description"])
	}

	params := hot["parameters"].(map[string]interface{})
	wantParams := map[string]interface{}{
		"image": map[string]interface{}{"type": "string", "default": "cirros"},
		"count": map[string]interface{}{
			"type":        "number",
			"constraints": []interface{}{map[string]interface{}{"range": map[string]interface{}{"min": 1, "max": 5}}},
		},
	}
	if diff := cmp.Diff(wantParams, params); diff != "" {
		t.Errorf("parameters mismatch (-want +got):\n%s", diff)
	}

	net := resource(t, hot, "net")
	wantNet := map[string]interface{}{
		"type": "OS::Neutron::Net",
		"properties": map[string]interface{}{
			"name":        "private",
			"value_specs": map[string]interface{}{"provider:network_type": "vlan"},
		},
	}
	if diff := cmp.Diff(wantNet, net); diff != "" {
		t.Errorf("net mismatch (-want +got):\n%s", diff)
	}

	subnet := resource(t, hot, "net_subnet")
	wantSubnet := map[string]interface{}{
		"type": "OS::Neutron::Subnet",
		"properties": map[string]interface{}{
			"network":          map[string]interface{}{"get_resource": "net"},
			"cidr":             "10.0.0.0/24",
			"ip_version":       4,
			"allocation_pools": []interface{}{map[string]interface{}{"start": "10.0.0.10", "end": "10.0.0.20"}},
		},
	}
	if diff := cmp.Diff(wantSubnet, subnet); diff != "" {
		t.Errorf("subnet mismatch (-want +got):\n%s", diff)
	}

	port := resource(t, hot, "port")
	wantPort := map[string]interface{}{
		"type": "OS::Neutron::Port",
		"properties": map[string]interface{}{
			"network":   map[string]interface{}{"get_resource": "net"},
			"fixed_ips": []interface{}{map[string]interface{}{"ip_address": "10.0.0.11"}},
		},
	}
	if diff := cmp.Diff(wantPort, port); diff != "" {
		t.Errorf("port mismatch (-want +got):\n%s", diff)
	}

	server := resource(t, hot, "server")
	wantServer := map[string]interface{}{
		"type": "OS::Nova::Server",
		"properties": map[string]interface{}{
			"image":    map[string]interface{}{"get_param": "image"},
			"flavor":   "m1.small",
			"name":     map[string]interface{}{"list_join": []interface{}{"", []interface{}{"srv-", "m1.small"}}},
			"networks": []interface{}{map[string]interface{}{"port": map[string]interface{}{"get_resource": "port"}}},
		},
	}
	if diff := cmp.Diff(wantServer, server); diff != "" {
		t.Errorf("server mismatch (-want +got):\n%s", diff)
	}

	sg := resource(t, hot, "sg")
	wantSG := map[string]interface{}{
		"type":       "OS::Neutron::SecurityGroup",
		"properties": map[string]interface{}{"name": "default-sg"},
		"depends_on": []interface{}{"net"},
	}
	if diff := cmp.Diff(wantSG, sg); diff != "" {
		t.Errorf("sg mismatch (-want +got):\n%s", diff)
	}

	outputs := hot["outputs"].(map[string]interface{})
	wantOutputs := map[string]interface{}{
		"server_ip": map[string]interface{}{
			"description": "port address",
			"value":       map[string]interface{}{"get_attr": []interface{}{"port", "fixed_ips", 0, "ip_address"}},
		},
		"server_name": map[string]interface{}{
			"value": map[string]interface{}{"get_attr": []interface{}{"server", "name"}},
		},
	}
	if diff := cmp.Diff(wantOutputs, outputs); diff != "" {
		t.Errorf("outputs mismatch (-want +got):\n%s", diff)
	}
}

func TestTranslate_HotTypeMetadata(t *testing.T) {
	hot := translate(t, `
tosca_definitions_version: tosca_simple_yaml_1_0
node_types:
  my.Volume:
    derived_from: tosca.nodes.Root
    metadata:
      hot_type: OS::Cinder::Volume
topology_template:
  node_templates:
    vol:
      type: my.Volume
      properties:
        size: 10
`)
	vol := resource(t, hot, "vol")
	want := map[string]interface{}{
		"type":       "OS::Cinder::Volume",
		"properties": map[string]interface{}{"size": 10},
	}
	if diff := cmp.Diff(want, vol); diff != "" {
		t.Errorf("vol mismatch (-want +got):\n%s", diff)
	}
}

func TestTranslate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"unsupported node type", `
tosca_definitions_version: tosca_simple_yaml_1_0
topology_template:
  node_templates:
    db:
      type: tosca.nodes.Database
`},
		{"unsupported function", `
tosca_definitions_version: tosca_simple_yaml_1_0
topology_template:
  node_templates:
    server:
      type: tosca.nodes.Compute
      properties:
        name: { token: [ "a-b", "-", 0 ] }
`},
		{"undeclared input", `
tosca_definitions_version: tosca_simple_yaml_1_0
topology_template:
  node_templates:
    server:
      type: tosca.nodes.Compute
      properties:
        image: { get_input: image }
`},
		{"unknown requirement target", `
tosca_definitions_version: tosca_simple_yaml_1_0
topology_template:
  node_templates:
    port:
      type: tosca.nodes.network.Port
      requirements:
        - link: missing
`},
		{"SELF in output", `
tosca_definitions_version: tosca_simple_yaml_1_0
topology_template:
  node_templates:
    server:
      type: tosca.nodes.Compute
  outputs:
    name:
      value: { get_attribute: [SELF, name] }
`},
		{"invalid template", "topology_template: {}"},
	}

	tr := NewTranslator(zerolog.New(nil).Level(zerolog.Disabled))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.Translate(context.Background(), tt.source, "tosca.yaml")
			if err == nil {
				t.Fatal("expected an error")
			}
			if !engine.IsTranslation(err) {
				t.Errorf("error kind = %q, want translation", engine.KindOf(err))
			}
		})
	}
}

func TestTranslator_ImplementsTemplateTranslator(t *testing.T) {
	var _ engine.TemplateTranslator = NewTranslator(zerolog.Nop())
}
