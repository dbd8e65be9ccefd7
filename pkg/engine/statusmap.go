package engine

type statusSet map[string]struct{}

func newStatusSet(statuses ...string) statusSet {
	s := make(statusSet, len(statuses))
	for _, status := range statuses {
		s[status] = struct{}{}
	}
	return s
}

func (s statusSet) has(status string) bool {
	_, ok := s[status]
	return ok
}

// statusTable lists the stack statuses for each canonical status of one
// operation.
type statusTable struct {
	inProgress statusSet
	complete   statusSet
	failed     statusSet
}

func (t statusTable) lookup(status string) (ExecutionStatus, bool) {
	switch {
	case t.inProgress.has(status):
		return ExecutionInProgress, true
	case t.complete.has(status):
		return ExecutionComplete, true
	case t.failed.has(status):
		return ExecutionFailed, true
	}
	return "", false
}

var (
	createTable = statusTable{
		inProgress: newStatusSet(StackCreateInProgress, StackAdoptInProgress),
		complete:   newStatusSet(StackCreateComplete, StackAdoptComplete),
		failed:     newStatusSet(StackCreateFailed, StackAdoptFailed),
	}

	deleteTable = statusTable{
		inProgress: newStatusSet(StackDeleteInProgress),
		complete:   newStatusSet(StackDeleteComplete),
		failed:     newStatusSet(StackDeleteFailed),
	}

	adoptInProgress = newStatusSet(StackCreateInProgress, StackAdoptInProgress, StackResumeInProgress, StackCheckInProgress)
	adoptFailed     = newStatusSet(StackCreateFailed, StackAdoptFailed, StackCheckFailed, StackSuspendInProgress, StackSuspendComplete)
)

// StatusMapper maps external stack statuses to canonical execution statuses.
type StatusMapper struct {
	adopt           statusTable
	skipAdoptChecks bool
}

// StatusMapperConfig configures Adopt handling.
type StatusMapperConfig struct {
	// SkipAdoptStatusCheck makes every Adopt poll COMPLETE without inspecting the stack.
	SkipAdoptStatusCheck bool

	// AdoptableStatuses complete an Adopt. Defaults to DefaultAdoptableStatuses when empty.
	AdoptableStatuses []string
}

// NewStatusMapper creates a status mapper.
func NewStatusMapper(cfg StatusMapperConfig) *StatusMapper {
	adoptable := cfg.AdoptableStatuses
	if len(adoptable) == 0 {
		adoptable = DefaultAdoptableStatuses
	}
	return &StatusMapper{
		adopt: statusTable{
			inProgress: adoptInProgress,
			complete:   newStatusSet(adoptable...),
			failed:     adoptFailed,
		},
		skipAdoptChecks: cfg.SkipAdoptStatusCheck,
	}
}

// SkipsStatusCheck reports whether polls for op complete without fetching the stack.
func (m *StatusMapper) SkipsStatusCheck(op Operation) bool {
	return op == OperationAdopt && m.skipAdoptChecks
}

// Map returns the canonical status for a stack status observed while polling
// op. A status outside the operation's table is an unexpected state error.
func (m *StatusMapper) Map(op Operation, stackStatus string) (ExecutionStatus, error) {
	if m.SkipsStatusCheck(op) {
		return ExecutionComplete, nil
	}

	var table statusTable
	switch op {
	case OperationCreate:
		table = createTable
	case OperationDelete:
		table = deleteTable
	case OperationAdopt:
		table = m.adopt
	default:
		return "", NewInvalidRequestError("unsupported operation: %s", op)
	}

	status, ok := table.lookup(stackStatus)
	if !ok {
		return "", NewUnexpectedStateError("stack status '%s' is not a valid value for the %s transition", stackStatus, op)
	}
	return status, nil
}

// StackOutputs converts stack outputs to a map. No outputs yield nil rather
// than an empty map.
func StackOutputs(outputs []StackOutput) map[string]interface{} {
	if len(outputs) == 0 {
		return nil
	}
	values := make(map[string]interface{}, len(outputs))
	for _, o := range outputs {
		values[o.Key] = o.Value
	}
	return values
}
