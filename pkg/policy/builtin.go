package policy

// Built-in policy names. Built-ins are compiled at startup but only
// evaluated once enabled.
const (
	ProtectedStacksPolicy         = "protected-stacks"
	RequireResourceIdentityPolicy = "require-resource-identity"
)

// BuiltinPolicies returns the policies shipped with the driver, disabled.
func BuiltinPolicies() []Policy {
	return []Policy{
		protectedStacksPolicy(),
		requireResourceIdentityPolicy(),
	}
}

// protectedStacksPolicy refuses to delete resources marked protected.
func protectedStacksPolicy() Policy {
	return Policy{
		Name:        ProtectedStacksPolicy,
		Description: "Denies Delete when the resource property 'protected' is true",
		Severity:    SeverityError,
		Builtin:     true,
		Rego: `package heatdriver.builtin.protected_stacks

import rego.v1

deny contains violation if {
	input.operation == "Delete"
	is_protected(input.resourceProperties.protected)
	violation := {
		"message": sprintf("Resource '%s' is protected and cannot be deleted", [object.get(input.systemProperties, "resourceName", "unknown")]),
		"severity": "error",
	}
}

is_protected(value) if value == true

is_protected(value) if {
	is_string(value)
	lower(value) == "true"
}
`,
	}
}

// requireResourceIdentityPolicy requires the caller to identify the resource
// on Create, so the stack name is not random.
func requireResourceIdentityPolicy() Policy {
	return Policy{
		Name:        RequireResourceIdentityPolicy,
		Description: "Denies Create without the resourceId and resourceName system properties",
		Severity:    SeverityError,
		Builtin:     true,
		Rego: `package heatdriver.builtin.require_resource_identity

import rego.v1

deny contains violation if {
	input.operation == "Create"
	some key in ["resourceId", "resourceName"]
	not non_empty(object.get(input.systemProperties, key, ""))
	violation := {
		"message": sprintf("Create requires system property '%s'", [key]),
		"severity": "error",
	}
}

non_empty(value) if {
	is_string(value)
	value != ""
}
`,
	}
}
