package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Operation is a lifecycle operation the driver can execute.
type Operation string

const (
	// OperationCreate creates a stack, or reuses one named by the stack_id property.
	OperationCreate Operation = "Create"

	// OperationAdopt registers intent to manage an existing stack.
	OperationAdopt Operation = "Adopt"

	// OperationDelete deletes the managed stack, if any.
	OperationDelete Operation = "Delete"
)

// Operations lists every supported lifecycle operation.
var Operations = []Operation{OperationCreate, OperationAdopt, OperationDelete}

// ParseOperation resolves a lifecycle name case-insensitively.
func ParseOperation(name string) (Operation, error) {
	for _, op := range Operations {
		if strings.EqualFold(name, string(op)) {
			return op, nil
		}
	}
	return "", NewInvalidRequestError("Openstack driver only supports Create, Adopt and Delete transitions, not %s", name)
}

// Validate checks if the operation is one of the supported operations.
func (o Operation) Validate() error {
	switch o {
	case OperationCreate, OperationAdopt, OperationDelete:
		return nil
	default:
		return fmt.Errorf("invalid operation: %s", o)
	}
}

// String returns the wire name of the operation.
func (o Operation) String() string {
	return string(o)
}

// ExecutionStatus is the canonical progress of a lifecycle execution.
type ExecutionStatus string

const (
	// ExecutionInProgress indicates the stack is still transitioning.
	ExecutionInProgress ExecutionStatus = "IN_PROGRESS"

	// ExecutionComplete indicates the transition finished successfully.
	ExecutionComplete ExecutionStatus = "COMPLETE"

	// ExecutionFailed indicates the transition finished unsuccessfully.
	ExecutionFailed ExecutionStatus = "FAILED"
)

// IsTerminal returns true if no further polling is useful.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionComplete || s == ExecutionFailed
}

// Validate checks if the execution status is valid.
func (s ExecutionStatus) Validate() error {
	switch s {
	case ExecutionInProgress, ExecutionComplete, ExecutionFailed:
		return nil
	default:
		return fmt.Errorf("invalid execution status: %s", s)
	}
}

// MarshalJSON implements json.Marshaler.
func (s ExecutionStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler with validation.
func (s *ExecutionStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	status := ExecutionStatus(str)
	if err := status.Validate(); err != nil {
		return err
	}
	*s = status
	return nil
}

// TemplateKind identifies the flavour of template supplied in the driver files.
type TemplateKind string

const (
	// TemplateKindTOSCA is a TOSCA-style declarative description that needs translation.
	TemplateKindTOSCA TemplateKind = "TOSCA"

	// TemplateKindHeat is a native Heat (HOT) template.
	TemplateKindHeat TemplateKind = "HEAT"
)

// TemplateKinds lists the accepted template kinds in display order.
var TemplateKinds = []TemplateKind{TemplateKindTOSCA, TemplateKindHeat}

// ParseTemplateKind resolves a declared template type case-insensitively.
func ParseTemplateKind(value string) (TemplateKind, error) {
	for _, kind := range TemplateKinds {
		if strings.EqualFold(value, string(kind)) {
			return kind, nil
		}
	}
	names := make([]string, len(TemplateKinds))
	for i, kind := range TemplateKinds {
		names[i] = "'" + string(kind) + "'"
	}
	return "", NewDriverFilesError("Cannot create using template of type '%s'. Must be one of: [%s]",
		value, strings.Join(names, ", "))
}

// FailureCode categorizes a failed execution.
type FailureCode string

const (
	// FailureCodeInfrastructure is reported for every stack failure.
	FailureCodeInfrastructure FailureCode = "INFRASTRUCTURE_ERROR"
)

// Heat stack statuses referenced by the status tables.
const (
	StackCreateInProgress  = "CREATE_IN_PROGRESS"
	StackCreateComplete    = "CREATE_COMPLETE"
	StackCreateFailed      = "CREATE_FAILED"
	StackAdoptInProgress   = "ADOPT_IN_PROGRESS"
	StackAdoptComplete     = "ADOPT_COMPLETE"
	StackAdoptFailed       = "ADOPT_FAILED"
	StackDeleteInProgress  = "DELETE_IN_PROGRESS"
	StackDeleteComplete    = "DELETE_COMPLETE"
	StackDeleteFailed      = "DELETE_FAILED"
	StackResumeInProgress  = "RESUME_IN_PROGRESS"
	StackResumeComplete    = "RESUME_COMPLETE"
	StackCheckInProgress   = "CHECK_IN_PROGRESS"
	StackCheckComplete     = "CHECK_COMPLETE"
	StackCheckFailed       = "CHECK_FAILED"
	StackSuspendInProgress = "SUSPEND_IN_PROGRESS"
	StackSuspendComplete   = "SUSPEND_COMPLETE"
	StackUpdateComplete    = "UPDATE_COMPLETE"
)

// DefaultAdoptableStatuses are the stack statuses that complete an Adopt.
var DefaultAdoptableStatuses = []string{
	StackCreateComplete,
	StackAdoptComplete,
	StackResumeComplete,
	StackCheckComplete,
	StackUpdateComplete,
}
