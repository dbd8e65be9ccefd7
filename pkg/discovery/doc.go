// Package discovery finds existing OpenStack resources described by a
// single-node TOSCA template and evaluates the template outputs against
// them.
//
// The node must be a tosca.nodes.network.Network (or NetworkWithAttr, or a
// type derived from either) and set exactly one of network_name or
// network_id. A network_id is looked up directly; a network_name must match
// exactly one network, otherwise the lookup is not discovered (no match) or
// ambiguous (several matches).
//
// Outputs may be literals or get_attribute calls on the node. Network fields
// (name, id, segmentation_id, physical_network, network_type) come from the
// network itself; subnet fields (ip_version, cidr, start_ip, end_ip,
// gateway_ip, dhcp_enabled) are read from its first subnet.
package discovery
