package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/openfroyo/heatdriver/pkg/engine"
	"github.com/openfroyo/heatdriver/pkg/tosca"
	"github.com/rs/zerolog"
)

// Engine locates existing resources described by single-node TOSCA
// templates. Only network nodes are discoverable.
type Engine struct {
	logger zerolog.Logger
}

// NewEngine creates a discovery engine.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{
		logger: logger.With().Str("component", "discovery").Logger(),
	}
}

// Discover parses template, finds the network its single node describes
// and evaluates the template outputs against it.
func (e *Engine) Discover(ctx context.Context, template string, networks engine.NetworkClient, inputs map[string]interface{}) (*engine.DiscoveryResult, error) {
	tpl, err := tosca.ParseString(template)
	if err != nil {
		return nil, err
	}

	nodeName, node, err := singleNode(tpl)
	if err != nil {
		return nil, err
	}

	search := &networkSearch{
		tpl:      tpl,
		nodeName: nodeName,
		node:     node,
		client:   networks,
	}
	network, err := search.find(ctx, inputs)
	if err != nil {
		return nil, err
	}

	e.logger.Debug().
		Str("node", nodeName).
		Str("network_id", network.ID).
		Msg("Discovered network")

	outputs, err := search.outputs(ctx, network)
	if err != nil {
		return nil, err
	}
	return &engine.DiscoveryResult{ID: network.ID, Outputs: outputs}, nil
}

// singleNode returns the only node template of tpl once its type has been
// checked as discoverable.
func singleNode(tpl *tosca.Template) (string, tosca.NodeTemplate, error) {
	nodes := tpl.Topology.NodeTemplates
	if len(nodes) == 0 {
		return "", tosca.NodeTemplate{}, engine.NewInvalidTemplateError("tosca_template features no node_templates, so there is nothing to discover")
	}
	if len(nodes) != 1 {
		return "", tosca.NodeTemplate{}, engine.NewInvalidTemplateError("tosca_template for topology discovery expected to feature only a single node template")
	}

	name := tpl.NodeNames()[0]
	node := nodes[name]
	if !tpl.IsDerivedFrom(node.Type, discoverableNetworkTypes...) {
		return "", tosca.NodeTemplate{}, engine.NewInvalidTemplateError("Cannot discover nodes of type: %s", node.Type)
	}
	return name, node, nil
}

// quoteList renders names as ['a', 'b'].
func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("'%s'", n)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
