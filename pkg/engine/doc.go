// Package engine provides the lifecycle core of the Heat resource driver.
//
// # Overview
//
// The driver manages the infrastructure behind a resource as a single Heat
// stack. Three lifecycle operations are supported:
//
//   - Create: create a stack from a Heat or TOSCA template, or reuse the stack
//     named by the stack_id resource property
//   - Adopt: take over management of an existing stack
//   - Delete: delete the managed stack, if there is one
//
// ExecuteLifecycle never waits for the stack engine. It returns an opaque
// request id of the form "{operation}::{stackID}::{nonce}" which callers pass
// to GetLifecycleExecution on their own cadence. Polling is stateless: the
// operation and stack id are recovered from the request id and the stack is
// fetched afresh on every call.
//
// # Status Mapping
//
// Stack statuses are mapped to IN_PROGRESS, COMPLETE or FAILED through a
// fixed table per operation. A status outside the table is reported as an
// unexpected state error rather than defaulted. Failures are reported as data
// on the LifecycleExecution, not as errors.
//
// # Collaborators
//
// The orchestrator talks to the outside world only through interfaces:
//
//   - EnvironmentFactory / Environment: scoped session per call, closed on every path
//   - StackClient: create, get, delete stacks
//   - NetworkClient: network and subnet lookups used by discovery
//   - TemplateTranslator: TOSCA to Heat translation
//   - InputFilter: selects the template's declared inputs
//   - DriverFiles: per-call file workspace
//   - Discoverer: resolves existing resources for FindReference
//
// # Error Classification
//
// Every error raised by the core is a *DriverError with a Kind:
//
//	if engine.IsNotFound(err) {
//	    // the stack is gone
//	}
//
// The only errors the orchestrator recovers from are not found errors while
// deleting a stack or polling a Delete request.
package engine
