package engine

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a DriverError so callers can decide how to react
// without parsing messages.
type ErrorKind string

const (
	// ErrorKindInvalidTemplate indicates malformed or unsupported declarative input,
	// including unsupported expression kinds.
	ErrorKindInvalidTemplate ErrorKind = "invalid_template"

	// ErrorKindInvalidRequest indicates an unsupported operation, a malformed
	// request id, an ill-formed Adopt topology or an attempt to adopt a deleted stack.
	ErrorKindInvalidRequest ErrorKind = "invalid_request"

	// ErrorKindNotFound indicates the target stack or resource does not exist.
	ErrorKindNotFound ErrorKind = "not_found"

	// ErrorKindAmbiguous indicates more than one exact-name match during discovery.
	ErrorKindAmbiguous ErrorKind = "ambiguous"

	// ErrorKindUnexpectedState indicates a stack status outside the table for the
	// current operation.
	ErrorKindUnexpectedState ErrorKind = "unexpected_state"

	// ErrorKindNotDiscovered indicates discovery found no matching resource.
	ErrorKindNotDiscovered ErrorKind = "not_discovered"

	// ErrorKindDriverFiles indicates the driver files are missing a required
	// template or name an unsupported template type.
	ErrorKindDriverFiles ErrorKind = "driver_files"

	// ErrorKindTranslation indicates the template translator rejected its input.
	ErrorKindTranslation ErrorKind = "translation"

	// ErrorKindPolicyDenied indicates an admission policy rejected the request.
	ErrorKindPolicyDenied ErrorKind = "policy_denied"
)

// DriverError is a classified error raised by the lifecycle core and its
// collaborators.
type DriverError struct {
	// Kind is the error classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Err is the underlying error, if any.
	Err error `json:"-"`
}

// Error implements the error interface. Only the message is returned so that
// callers can surface it verbatim.
func (e *DriverError) Error() string {
	if e.Message == "" && e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error for error chain inspection.
func (e *DriverError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is. Two DriverErrors match
// when they share a kind.
func (e *DriverError) Is(target error) bool {
	t, ok := target.(*DriverError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newError(kind ErrorKind, err error, format string, args ...interface{}) *DriverError {
	return &DriverError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// NewInvalidTemplateError creates a new invalid template error.
func NewInvalidTemplateError(format string, args ...interface{}) *DriverError {
	return newError(ErrorKindInvalidTemplate, nil, format, args...)
}

// NewInvalidRequestError creates a new invalid request error.
func NewInvalidRequestError(format string, args ...interface{}) *DriverError {
	return newError(ErrorKindInvalidRequest, nil, format, args...)
}

// NewNotFoundError creates a new not found error wrapping err.
func NewNotFoundError(err error, format string, args ...interface{}) *DriverError {
	return newError(ErrorKindNotFound, err, format, args...)
}

// NewAmbiguousError creates a new ambiguity error.
func NewAmbiguousError(format string, args ...interface{}) *DriverError {
	return newError(ErrorKindAmbiguous, nil, format, args...)
}

// NewUnexpectedStateError creates a new unexpected state error.
func NewUnexpectedStateError(format string, args ...interface{}) *DriverError {
	return newError(ErrorKindUnexpectedState, nil, format, args...)
}

// NewNotDiscoveredError creates a new not discovered error wrapping err.
func NewNotDiscoveredError(err error, format string, args ...interface{}) *DriverError {
	return newError(ErrorKindNotDiscovered, err, format, args...)
}

// NewDriverFilesError creates a new driver files error.
func NewDriverFilesError(format string, args ...interface{}) *DriverError {
	return newError(ErrorKindDriverFiles, nil, format, args...)
}

// NewTranslationError creates a new translation error wrapping err.
func NewTranslationError(err error, format string, args ...interface{}) *DriverError {
	return newError(ErrorKindTranslation, err, format, args...)
}

// NewPolicyDeniedError creates a new policy denied error.
func NewPolicyDeniedError(format string, args ...interface{}) *DriverError {
	return newError(ErrorKindPolicyDenied, nil, format, args...)
}

// KindOf returns the kind of the first DriverError in err's chain, or the
// empty kind when there is none.
func KindOf(err error) ErrorKind {
	var e *DriverError
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind returns true if err carries a DriverError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// IsNotFound returns true if the error is classified as not found.
func IsNotFound(err error) bool {
	return IsKind(err, ErrorKindNotFound)
}

// IsInvalidRequest returns true if the error is classified as an invalid request.
func IsInvalidRequest(err error) bool {
	return IsKind(err, ErrorKindInvalidRequest)
}

// IsInvalidTemplate returns true if the error is classified as an invalid template.
func IsInvalidTemplate(err error) bool {
	return IsKind(err, ErrorKindInvalidTemplate)
}

// IsNotDiscovered returns true if discovery found nothing.
func IsNotDiscovered(err error) bool {
	return IsKind(err, ErrorKindNotDiscovered)
}

// IsAmbiguous returns true if discovery found more than one match.
func IsAmbiguous(err error) bool {
	return IsKind(err, ErrorKindAmbiguous)
}

// IsUnexpectedState returns true if a stack status could not be mapped.
func IsUnexpectedState(err error) bool {
	return IsKind(err, ErrorKindUnexpectedState)
}

// IsTranslation returns true if the error came from the template translator.
func IsTranslation(err error) bool {
	return IsKind(err, ErrorKindTranslation)
}
