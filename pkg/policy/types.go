package policy

import (
	"time"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is logged but never blocks a request.
	SeverityWarning Severity = "warning"

	// SeverityError blocks the request.
	SeverityError Severity = "error"

	// SeverityCritical blocks the request.
	SeverityCritical Severity = "critical"
)

// Blocks reports whether a violation of this severity rejects a request.
func (s Severity) Blocks() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy is a Rego module defining a deny set.
type Policy struct {
	// Name is the unique policy identifier.
	Name string `json:"name"`

	Description string `json:"description,omitempty"`

	// Rego is the policy source. The module must define a deny set of
	// strings or of objects with message and optional severity.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled controls whether the policy is evaluated.
	Enabled bool `json:"enabled"`

	// Builtin marks policies shipped with the driver.
	Builtin bool `json:"builtin,omitempty"`

	// Source is the file the policy was loaded from.
	Source string `json:"source,omitempty"`

	LoadedAt time.Time `json:"loaded_at"`
}

// Violation is a single deny result.
type Violation struct {
	Policy   string   `json:"policy"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Decision is the outcome of evaluating every enabled policy.
type Decision struct {
	// Allowed is false when any violation blocks.
	Allowed bool `json:"allowed"`

	Violations []Violation `json:"violations,omitempty"`

	// Warnings collect evaluation failures; they never block.
	Warnings []string `json:"warnings,omitempty"`

	// Evaluated names the policies that ran.
	Evaluated []string `json:"evaluated"`
}

// Input is the document policies see as input.
type Input struct {
	Operation          string                 `json:"operation"`
	ResourceProperties map[string]interface{} `json:"resourceProperties"`
	SystemProperties   map[string]interface{} `json:"systemProperties"`
	RequestProperties  map[string]interface{} `json:"requestProperties"`
	AssociatedTopology map[string]Entry       `json:"associatedTopology"`
	Location           Location               `json:"location"`
}

// Entry is an associated topology entry.
type Entry struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Location describes the target deployment location. Credential properties
// are removed.
type Location struct {
	Name       string                 `json:"name"`
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties"`
}
