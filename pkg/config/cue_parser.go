package config

import (
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// parseCUE evaluates a CUE configuration file and merges it onto cfg.
// Values left open in the file keep their current setting.
func parseCUE(cfg *Config, data []byte, filename string) error {
	ctx := cuecontext.New()
	val := ctx.CompileBytes(data, cue.Filename(filename))
	if err := val.Err(); err != nil {
		return convertCUEErrors(err)
	}
	if err := val.Validate(); err != nil {
		return convertCUEErrors(err)
	}

	doc, err := val.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to export %s: %w", filename, err)
	}
	if err := json.Unmarshal(doc, cfg); err != nil {
		return fmt.Errorf("failed to decode %s: %w", filename, err)
	}
	return nil
}
