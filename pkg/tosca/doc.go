// Package tosca reads the subset of TOSCA simple profile templates used by
// the Heat driver and translates them into Heat Orchestration Templates.
//
// Templates are parsed with Parse, which checks that every node template
// refers to a known node type. Type inheritance is resolved through
// Template.Ancestors against the template's own node_types and a built-in
// table covering the normative network and compute types plus the Neutron
// and NFV extension types.
//
// # Translation
//
// Translator converts a template into HOT:
//
//	tosca.nodes.network.Network  -> OS::Neutron::Net (+ OS::Neutron::Subnet)
//	tosca.nodes.network.Port     -> OS::Neutron::Port
//	tosca.nodes.Compute          -> OS::Nova::Server
//	tosca.nodes.network.FloatingIP -> OS::Neutron::FloatingIP
//
// Nodes carrying hot_type metadata, and the Neutron extension types, map one
// to one onto a Heat resource with all properties passed through.
//
// Intrinsic functions are rewritten: get_input becomes get_param,
// get_attribute becomes get_attr, get_property is replaced by the referenced
// value and concat becomes list_join.
package tosca
