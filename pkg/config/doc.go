// Package config loads the driver configuration.
//
// Sources are applied in order, each overriding the previous one:
//
//  1. built-in defaults (Default)
//  2. a YAML, JSON or CUE file (heatdriver.yaml unless another is named)
//  3. a .env file, which never overrides variables already set
//  4. HD_* environment variables
//
// The result is checked twice: with go-playground/validator struct tags and
// against a built-in CUE schema, which also covers cross-field rules such as
// requiring a tracing endpoint for the otlp exporter. All problems are
// reported together as ValidationErrors.
//
// Example heatdriver.yaml:
//
//	resource_driver:
//	  keep_files: false
//	adopt:
//	  skip_status_check: false
//	  adoptable_statuses: [CREATE_COMPLETE, ADOPT_COMPLETE]
//	server:
//	  address: ":8294"
//	  rate_limit: 50
//	  rate_burst: 100
//	  read_timeout: 30s
//	journal:
//	  enabled: true
//	  path: /var/lib/heatdriver/journal.db
//	policy:
//	  paths: [/etc/heatdriver/policies]
//	  watch: true
//	  enable: [protected-stacks]
//	log:
//	  level: debug
//	  format: json
package config
