package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/openfroyo/heatdriver/pkg/driverfiles"
	"github.com/openfroyo/heatdriver/pkg/engine"
	"gopkg.in/yaml.v3"
)

// locationFile is a deployment location in YAML or JSON.
type locationFile struct {
	Name       string                 `yaml:"name"`
	Type       string                 `yaml:"type"`
	Properties map[string]interface{} `yaml:"properties"`
}

func readLocation(path string) (engine.DeploymentLocation, error) {
	var lf locationFile
	if err := readYAML(path, &lf); err != nil {
		return engine.DeploymentLocation{}, fmt.Errorf("failed to read deployment location: %w", err)
	}
	if lf.Name == "" {
		return engine.DeploymentLocation{}, fmt.Errorf("deployment location %s has no name", path)
	}
	if lf.Properties == nil {
		lf.Properties = map[string]interface{}{}
	}
	return engine.DeploymentLocation{Name: lf.Name, Type: lf.Type, Properties: lf.Properties}, nil
}

// readProperties reads a flat property document. An empty path yields an
// empty map.
func readProperties(path string) (engine.PropValueMap, error) {
	if path == "" {
		return engine.PropValueMap{}, nil
	}
	var values map[string]interface{}
	if err := readYAML(path, &values); err != nil {
		return nil, fmt.Errorf("failed to read properties: %w", err)
	}
	return engine.NewPropValueMap(values), nil
}

func readTopology(path string) (engine.AssociatedTopology, error) {
	topology := engine.AssociatedTopology{}
	if path == "" {
		return topology, nil
	}
	var entries map[string]struct {
		ID   string `yaml:"id"`
		Type string `yaml:"type"`
	}
	if err := readYAML(path, &entries); err != nil {
		return nil, fmt.Errorf("failed to read associated topology: %w", err)
	}
	for name, e := range entries {
		topology.Add(name, e.ID, e.Type)
	}
	return topology, nil
}

// readYAML decodes a YAML or JSON file; "-" reads stdin.
func readYAML(path string, out interface{}) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

// openDriverFiles opens a directory in place or extracts a zip archive into
// a temporary workspace. keep reports whether the files belong to the user.
func openDriverFiles(dir, archive string) (files engine.DriverFiles, keep bool, err error) {
	switch {
	case dir != "" && archive != "":
		return nil, false, fmt.Errorf("--files and --archive are mutually exclusive")
	case dir != "":
		ws, err := driverfiles.Open(dir)
		if err != nil {
			return nil, false, err
		}
		return ws, true, nil
	case archive != "":
		data, err := os.ReadFile(archive)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read archive: %w", err)
		}
		ws, err := driverfiles.FromZip(data, driverfiles.ExtractOptions{})
		if err != nil {
			return nil, false, err
		}
		return ws, false, nil
	default:
		return nil, false, nil
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
