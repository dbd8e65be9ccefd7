package discovery

import (
	"context"
	"fmt"
	"sort"

	"github.com/openfroyo/heatdriver/pkg/engine"
	"github.com/openfroyo/heatdriver/pkg/tosca"
)

// Identifying properties of a network node.
const (
	NetworkNameProperty = "network_name"
	NetworkIDProperty   = "network_id"
)

var discoverableNetworkTypes = []string{tosca.TypeNetwork, tosca.TypeNetworkWithAttr}

// networkSearch carries the state of one network discovery.
type networkSearch struct {
	tpl      *tosca.Template
	nodeName string
	node     tosca.NodeTemplate
	client   engine.NetworkClient

	// subnet is the first subnet of the found network, fetched on demand.
	subnet        *engine.Subnet
	subnetFetched bool
}

// find resolves the node's identifying property and looks the network up.
func (s *networkSearch) find(ctx context.Context, inputs map[string]interface{}) (*engine.Network, error) {
	key, err := s.identifyingProperty()
	if err != nil {
		return nil, err
	}

	value, err := s.searchValue(s.node.Properties[key], inputs)
	if err != nil {
		return nil, err
	}

	if key == NetworkIDProperty {
		network, err := s.client.GetNetwork(ctx, value)
		if err != nil {
			if engine.IsNotFound(err) {
				return nil, s.notDiscovered(err, value)
			}
			return nil, err
		}
		return network, nil
	}

	all, err := s.client.ListNetworks(ctx)
	if err != nil {
		return nil, err
	}
	var matches []engine.Network
	for _, n := range all {
		if n.Name == value {
			matches = append(matches, n)
		}
	}
	switch len(matches) {
	case 0:
		return nil, s.notDiscovered(nil, value)
	case 1:
		return &matches[0], nil
	default:
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.ID
		}
		return nil, engine.NewAmbiguousError("Found %d %s with search value: %s %s", len(matches), s.node.Type, value, quoteList(ids))
	}
}

func (s *networkSearch) notDiscovered(err error, value string) error {
	return engine.NewNotDiscoveredError(err, "Cannot find %s with search value: %s", s.node.Type, value)
}

// identifyingProperty returns the one property the node may be found by.
func (s *networkSearch) identifyingProperty() (string, error) {
	keys := make([]string, 0, len(s.node.Properties))
	for k := range s.node.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if len(keys) != 1 {
		return "", engine.NewInvalidTemplateError(
			"%s nodes can only be found with a single '%s' or '%s' property but %d properties were found on the node template: %s",
			s.node.Type, NetworkNameProperty, NetworkIDProperty, len(keys), quoteList(keys))
	}
	if keys[0] != NetworkNameProperty && keys[0] != NetworkIDProperty {
		return "", engine.NewInvalidTemplateError(
			"%s nodes can only be found with a single '%s' or '%s' property but '%s' was set instead",
			s.node.Type, NetworkNameProperty, NetworkIDProperty, keys[0])
	}
	return keys[0], nil
}

// searchValue resolves the identifying property value. Literals are used as
// they are and get_input is resolved from inputs.
func (s *networkSearch) searchValue(raw interface{}, inputs map[string]interface{}) (string, error) {
	if fn, ok := tosca.AsFunction(raw); ok {
		if fn.Name != tosca.FuncGetInput {
			return "", engine.NewInvalidTemplateError("Resolving function of type '%s' is not supported through discovery", fn.Kind())
		}
		if len(fn.Args) != 1 {
			return "", engine.NewInvalidTemplateError("get_input on node '%s' must name a single input", s.nodeName)
		}
		name, ok := fn.Args[0].(string)
		if !ok {
			return "", engine.NewInvalidTemplateError("get_input on node '%s' must name a single input", s.nodeName)
		}
		resolved, err := s.tpl.ResolveInput(name, inputs)
		if err != nil {
			return "", err
		}
		raw = resolved
	}
	if raw == nil {
		return "", engine.NewInvalidTemplateError("Node '%s' has no value for its identifying property", s.nodeName)
	}
	if str, ok := raw.(string); ok {
		return str, nil
	}
	return fmt.Sprint(raw), nil
}

// attribute resolves a TOSCA network attribute against the found network.
func (s *networkSearch) attribute(ctx context.Context, network *engine.Network, name string) (interface{}, error) {
	switch name {
	case NetworkNameProperty, "name":
		return network.Name, nil
	case NetworkIDProperty, "id":
		return network.ID, nil
	case "segmentation_id":
		if network.SegmentationID == nil {
			return nil, nil
		}
		return *network.SegmentationID, nil
	case "physical_network":
		return derefString(network.PhysicalNetwork), nil
	case "network_type":
		return derefString(network.NetworkType), nil
	case "ip_version", "cidr", "start_ip", "end_ip", "gateway_ip", "dhcp_enabled":
		subnet, err := s.firstSubnet(ctx, network)
		if err != nil || subnet == nil {
			return nil, err
		}
		return subnetAttribute(subnet, name), nil
	}
	return nil, engine.NewInvalidTemplateError("Attribute '%s' cannot be resolved to an Openstack property for a network", name)
}

// firstSubnet fetches the first subnet listed on the network. Only the
// first subnet is consulted; nil means the network has none.
func (s *networkSearch) firstSubnet(ctx context.Context, network *engine.Network) (*engine.Subnet, error) {
	if s.subnetFetched {
		return s.subnet, nil
	}
	if len(network.Subnets) > 0 {
		subnet, err := s.client.GetSubnet(ctx, network.Subnets[0])
		if err != nil {
			return nil, err
		}
		s.subnet = subnet
	}
	s.subnetFetched = true
	return s.subnet, nil
}

func subnetAttribute(subnet *engine.Subnet, name string) interface{} {
	switch name {
	case "ip_version":
		return subnet.IPVersion
	case "cidr":
		return subnet.CIDR
	case "gateway_ip":
		return derefString(subnet.GatewayIP)
	case "dhcp_enabled":
		return subnet.EnableDHCP
	case "start_ip":
		if len(subnet.AllocationPools) == 0 {
			return nil
		}
		return subnet.AllocationPools[0].Start
	case "end_ip":
		if len(subnet.AllocationPools) == 0 {
			return nil
		}
		return subnet.AllocationPools[0].End
	}
	return nil
}

func derefString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
