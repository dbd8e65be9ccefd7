package openstack

import (
	"github.com/openfroyo/heatdriver/pkg/engine"
	"gopkg.in/yaml.v3"
)

// HeatInputFilter selects the properties a Heat template declares as
// parameters.
type HeatInputFilter struct{}

// FilterUsedProperties returns the plain value of each property whose key is
// a parameter of template.
func (HeatInputFilter) FilterUsedProperties(template string, properties engine.PropValueMap) (map[string]interface{}, error) {
	var tpl struct {
		Parameters map[string]interface{} `yaml:"parameters"`
	}
	if err := yaml.Unmarshal([]byte(template), &tpl); err != nil {
		return nil, engine.NewInvalidTemplateError("failed to parse Heat template: %v", err)
	}

	used := make(map[string]interface{})
	for name := range tpl.Parameters {
		if value, ok := properties.Get(name); ok {
			used[name] = value
		}
	}
	return used, nil
}
