package tosca

import (
	"github.com/openfroyo/heatdriver/pkg/engine"
)

// Node type names with special meaning to the driver.
const (
	TypeRoot            = "tosca.nodes.Root"
	TypeCompute         = "tosca.nodes.Compute"
	TypeNetwork         = "tosca.nodes.network.Network"
	TypeNetworkWithAttr = "tosca.nodes.network.NetworkWithAttr"
	TypePort            = "tosca.nodes.network.Port"
	TypeFloatingIP      = "tosca.nodes.network.FloatingIP"
	TypeHotResource     = "os.nodes.HotResource"
)

// HotTypeMetadataKey names the metadata entry that maps a node one-to-one
// onto a Heat resource type.
const HotTypeMetadataKey = "hot_type"

const maxTypeHierarchyDepth = 64

// builtinNodeTypes maps each built-in node type to its parent.
var builtinNodeTypes = map[string]string{
	TypeRoot:                        "",
	TypeCompute:                     TypeRoot,
	"tosca.nodes.SoftwareComponent": TypeRoot,
	"tosca.nodes.WebServer":         "tosca.nodes.SoftwareComponent",
	"tosca.nodes.WebApplication":    TypeRoot,
	"tosca.nodes.DBMS":              "tosca.nodes.SoftwareComponent",
	"tosca.nodes.Database":          TypeRoot,
	"tosca.nodes.BlockStorage":      TypeRoot,
	"tosca.nodes.ObjectStorage":     TypeRoot,
	"tosca.nodes.LoadBalancer":      TypeRoot,
	TypeNetwork:                     TypeRoot,
	TypeNetworkWithAttr:             TypeNetwork,
	TypePort:                        TypeRoot,
	TypeFloatingIP:                  TypeRoot,
	TypeHotResource:                 TypeRoot,

	"tosca.nodes.network.NeutronNetwork":            TypeHotResource,
	"tosca.nodes.network.NeutronSubnet":             TypeHotResource,
	"tosca.nodes.network.NeutronRouter":             TypeHotResource,
	"tosca.nodes.network.NeutronRouterInterface":    TypeHotResource,
	"tosca.nodes.network.NeutronSecurityGroup":      TypeHotResource,
	"tosca.nodes.network.NeutronSecurityGroupRule":  TypeHotResource,
	"tosca.nodes.nfv.VnfVirtualLink.NeutronNetwork": TypeHotResource,
	"tosca.nodes.nfv.Vdu.Compute.NovaServer":        TypeHotResource,
	"tosca.nodes.nfv.VduCp.NeutronPort":             TypeHotResource,
}

// parentOf returns the parent of a node type, consulting the template's own
// node types before the built-ins.
func (t *Template) parentOf(typeName string) (string, bool) {
	if nt, ok := t.NodeTypes[typeName]; ok {
		return nt.DerivedFrom, true
	}
	parent, ok := builtinNodeTypes[typeName]
	return parent, ok
}

// Ancestors returns typeName followed by each of its ancestors, nearest
// first. Unknown types and cycles are invalid template errors.
func (t *Template) Ancestors(typeName string) ([]string, error) {
	var chain []string
	seen := make(map[string]bool)
	for current := typeName; current != ""; {
		if seen[current] || len(chain) >= maxTypeHierarchyDepth {
			return nil, engine.NewInvalidTemplateError("Type '%s' has a cyclic derived_from hierarchy", typeName)
		}
		seen[current] = true
		chain = append(chain, current)

		parent, ok := t.parentOf(current)
		if !ok {
			return nil, engine.NewInvalidTemplateError("Type '%s' is not a valid type", current)
		}
		current = parent
	}
	return chain, nil
}

// IsDerivedFrom reports whether typeName is, or inherits from, any of bases.
func (t *Template) IsDerivedFrom(typeName string, bases ...string) bool {
	chain, err := t.Ancestors(typeName)
	if err != nil {
		return false
	}
	for _, ancestor := range chain {
		for _, base := range bases {
			if ancestor == base {
				return true
			}
		}
	}
	return false
}

// HotTypeOf returns the hot_type metadata declared on the node template or
// anywhere in its type hierarchy.
func (t *Template) HotTypeOf(node NodeTemplate) string {
	if v, ok := node.Metadata[HotTypeMetadataKey].(string); ok && v != "" {
		return v
	}
	chain, err := t.Ancestors(node.Type)
	if err != nil {
		return ""
	}
	for _, typeName := range chain {
		if nt, ok := t.NodeTypes[typeName]; ok {
			if v := nt.Metadata[HotTypeMetadataKey]; v != "" {
				return v
			}
		}
	}
	return ""
}
