package api

import (
	"encoding/json"
	"net/http"

	"github.com/openfroyo/heatdriver/pkg/engine"
)

// errorKindInternal is reported for errors without an engine kind.
const errorKindInternal = "internal"

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes err with the status its kind maps to.
func writeError(w http.ResponseWriter, err error) {
	kind := string(engine.KindOf(err))
	if kind == "" {
		kind = errorKindInternal
	}
	writeJSON(w, StatusFor(err), ErrorBody{Kind: kind, Message: err.Error()})
}

// StatusFor maps an error to an HTTP status code.
func StatusFor(err error) int {
	switch engine.KindOf(err) {
	case engine.ErrorKindInvalidRequest,
		engine.ErrorKindInvalidTemplate,
		engine.ErrorKindDriverFiles,
		engine.ErrorKindTranslation,
		engine.ErrorKindPolicyDenied:
		return http.StatusBadRequest
	case engine.ErrorKindNotFound, engine.ErrorKindNotDiscovered:
		return http.StatusNotFound
	case engine.ErrorKindAmbiguous:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
