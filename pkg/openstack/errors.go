package openstack

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/openfroyo/heatdriver/pkg/engine"
)

// APIError is a non-success response from an OpenStack service.
type APIError struct {
	// Service is the catalog service type, for example orchestration.
	Service string

	// Op is the client operation that failed.
	Op string

	// StatusCode is the HTTP status returned by the service.
	StatusCode int

	// Message is the error message extracted from the response body.
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s failed with status %d", e.Service, e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s %s failed with status %d: %s", e.Service, e.Op, e.StatusCode, e.Message)
}

// IsTemporary reports whether retrying the call later may succeed.
func (e *APIError) IsTemporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsAuthError reports whether the call was rejected for its credentials.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// translateError turns a gophercloud failure into an *APIError, or an engine
// not found error wrapping one for a 404.
func translateError(service, op string, err error) error {
	var codeErr gophercloud.ErrUnexpectedResponseCode
	if !errors.As(err, &codeErr) {
		return fmt.Errorf("%s %s request failed: %w", service, op, err)
	}
	apiErr := &APIError{
		Service:    service,
		Op:         op,
		StatusCode: codeErr.Actual,
		Message:    errorMessage(codeErr.Body),
	}
	if codeErr.Actual == http.StatusNotFound {
		return engine.NewNotFoundError(apiErr, "%s", apiErr.Error())
	}
	return apiErr
}

// errorMessage pulls a human readable message out of the error bodies used
// by Keystone, Heat and Neutron.
func errorMessage(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		NeutronError struct {
			Message string `json:"message"`
		} `json:"NeutronError"`
		Explanation string `json:"explanation"`
		Title       string `json:"title"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}
	switch {
	case payload.Error.Message != "":
		return payload.Error.Message
	case payload.NeutronError.Message != "":
		return payload.NeutronError.Message
	case payload.Explanation != "":
		return payload.Explanation
	default:
		return payload.Title
	}
}
