package openstack

import (
	"context"

	"github.com/openfroyo/heatdriver/pkg/engine"
)

// PingSuccessDescription is reported when Heat answered.
const PingSuccessDescription = "Reached Heat client successfully"

// Pinger checks that a deployment location is reachable.
type Pinger struct {
	translator *LocationTranslator
}

// NewPinger creates a Pinger using translator to open locations.
func NewPinger(translator *LocationTranslator) *Pinger {
	return &Pinger{translator: translator}
}

// Ping lists stacks once. Failures are reported in the response, never as
// an error.
func (p *Pinger) Ping(ctx context.Context, location engine.DeploymentLocation) *engine.PingResponse {
	loc, err := p.translator.FromDeploymentLocation(location)
	if err != nil {
		return &engine.PingResponse{Success: false, Description: err.Error()}
	}
	defer func() {
		if err := loc.Close(); err != nil {
			p.translator.logger.Warn().Err(err).Msg("Failed to close location after ping")
		}
	}()

	heat, err := loc.Heat(ctx)
	if err != nil {
		return &engine.PingResponse{Success: false, Description: err.Error()}
	}
	if _, err := heat.ListStacks(ctx); err != nil {
		return &engine.PingResponse{Success: false, Description: err.Error()}
	}
	return &engine.PingResponse{Success: true, Description: PingSuccessDescription}
}
