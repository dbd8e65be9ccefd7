package engine

import (
	"strings"

	"github.com/google/uuid"
)

// RequestIDSeparator separates the parts of a request id.
const RequestIDSeparator = "::"

// RequestID correlates a lifecycle execution with later polls. It is
// serialized as "{operation}::{stackID}::{nonce}".
type RequestID struct {
	Operation string
	StackID   string
	Nonce     string
}

// ComposeRequestID builds a serialized request id with a fresh random nonce.
func ComposeRequestID(op Operation, stackID string) string {
	return RequestID{
		Operation: string(op),
		StackID:   stackID,
		Nonce:     uuid.New().String(),
	}.String()
}

// ParseRequestID splits a serialized request id. The operation is not
// validated here.
func ParseRequestID(s string) (RequestID, error) {
	parts := strings.Split(s, RequestIDSeparator)
	if len(parts) != 3 {
		return RequestID{}, NewInvalidRequestError("request_id is not valid: %s", s)
	}
	return RequestID{Operation: parts[0], StackID: parts[1], Nonce: parts[2]}, nil
}

// String serializes the request id.
func (r RequestID) String() string {
	return r.Operation + RequestIDSeparator + r.StackID + RequestIDSeparator + r.Nonce
}
