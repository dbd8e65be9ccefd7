package openstack

import (
	"context"
	"fmt"
	"time"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/networks"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/subnets"
	"github.com/openfroyo/heatdriver/pkg/engine"
)

// NeutronClient queries networks through the Neutron v2.0 API. Results are
// decoded into the engine types so the provider extension fields survive.
type NeutronClient struct {
	client  *gophercloud.ServiceClient
	session *session
}

// GetNetwork fetches a network by id.
func (c *NeutronClient) GetNetwork(ctx context.Context, id string) (*engine.Network, error) {
	if id == "" {
		return nil, fmt.Errorf("network id must be provided")
	}

	start := time.Now()
	var network engine.Network
	err := networks.Get(ctx, c.client, id).ExtractIntoStructPtr(&network, "network")
	c.session.observe(ServiceNetwork, "get_network", start, err)
	if err != nil {
		return nil, translateError(ServiceNetwork, "get_network", err)
	}
	return &network, nil
}

// ListNetworks lists every network visible to the session.
func (c *NeutronClient) ListNetworks(ctx context.Context) ([]engine.Network, error) {
	start := time.Now()
	var out []engine.Network
	pages, err := networks.List(c.client, networks.ListOpts{}).AllPages(ctx)
	if err == nil {
		err = networks.ExtractNetworksInto(pages, &out)
	}
	c.session.observe(ServiceNetwork, "list_networks", start, err)
	if err != nil {
		return nil, translateError(ServiceNetwork, "list_networks", err)
	}
	return out, nil
}

// GetSubnet fetches a subnet by id.
func (c *NeutronClient) GetSubnet(ctx context.Context, id string) (*engine.Subnet, error) {
	if id == "" {
		return nil, fmt.Errorf("subnet id must be provided")
	}

	start := time.Now()
	var subnet engine.Subnet
	err := subnets.Get(ctx, c.client, id).ExtractIntoStructPtr(&subnet, "subnet")
	c.session.observe(ServiceNetwork, "get_subnet", start, err)
	if err != nil {
		return nil, translateError(ServiceNetwork, "get_subnet", err)
	}
	return &subnet, nil
}
