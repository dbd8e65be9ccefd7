// Package policy evaluates Open Policy Agent (Rego) admission policies
// against lifecycle requests before the driver contacts the cloud.
//
// Every policy module defines a deny set. Entries are either strings or
// objects with a message and an optional severity:
//
//	package heatdriver.custom.naming
//
//	import rego.v1
//
//	deny contains msg if {
//		input.operation == "Create"
//		not startswith(input.systemProperties.resourceName, "prod-")
//		msg := "resource names must start with prod-"
//	}
//
// The input document holds operation, resourceProperties, systemProperties,
// requestProperties, associatedTopology and location (with credential
// properties removed). A violation with severity error or critical rejects
// the request with an engine policy denied error; warnings are only logged.
//
// Two built-in policies ship disabled and are enabled by name:
// protected-stacks and require-resource-identity. Policies loaded from files
// are enabled as soon as they load, and Engine.Watch reloads them with
// fsnotify when files change.
package policy
