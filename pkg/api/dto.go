package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/openfroyo/heatdriver/pkg/engine"
)

// DeploymentLocation is the wire form of a deployment location.
type DeploymentLocation struct {
	Name       string                 `json:"name" validate:"required"`
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties"`
}

func (l DeploymentLocation) toEngine() engine.DeploymentLocation {
	props := l.Properties
	if props == nil {
		props = map[string]interface{}{}
	}
	return engine.DeploymentLocation{Name: l.Name, Type: l.Type, Properties: props}
}

// ExecuteRequest is the body of the execute endpoint.
type ExecuteRequest struct {
	LifecycleName      string                    `json:"lifecycleName" validate:"required"`
	DriverFiles        string                    `json:"driverFiles" validate:"omitempty,base64"`
	SystemProperties   engine.PropValueMap       `json:"systemProperties"`
	ResourceProperties engine.PropValueMap       `json:"resourceProperties"`
	RequestProperties  engine.PropValueMap       `json:"requestProperties"`
	AssociatedTopology engine.AssociatedTopology `json:"associatedTopology"`
	DeploymentLocation DeploymentLocation        `json:"deploymentLocation"`
}

func (r *ExecuteRequest) toEngine(files engine.DriverFiles) *engine.LifecycleRequest {
	req := &engine.LifecycleRequest{
		Lifecycle:          r.LifecycleName,
		ResourceProperties: r.ResourceProperties,
		SystemProperties:   r.SystemProperties,
		RequestProperties:  r.RequestProperties,
		AssociatedTopology: r.AssociatedTopology,
		Location:           r.DeploymentLocation.toEngine(),
		Files:              files,
	}
	if req.ResourceProperties == nil {
		req.ResourceProperties = engine.PropValueMap{}
	}
	if req.SystemProperties == nil {
		req.SystemProperties = engine.PropValueMap{}
	}
	if req.RequestProperties == nil {
		req.RequestProperties = engine.PropValueMap{}
	}
	if req.AssociatedTopology == nil {
		req.AssociatedTopology = engine.AssociatedTopology{}
	}
	return req
}

// ExecutionRequest is the body of the execution poll endpoint.
type ExecutionRequest struct {
	DeploymentLocation DeploymentLocation `json:"deploymentLocation"`
}

// FindReferenceRequest is the body of the find reference endpoint.
type FindReferenceRequest struct {
	InstanceName       string             `json:"instanceName" validate:"required"`
	DriverFiles        string             `json:"driverFiles" validate:"required,base64"`
	DeploymentLocation DeploymentLocation `json:"deploymentLocation"`
}

// PingRequest is the body of the admin ping endpoint.
type PingRequest struct {
	DeploymentLocation DeploymentLocation `json:"deploymentLocation"`
}

// decoder reads and validates request bodies.
type decoder struct {
	validate *validator.Validate
	maxBytes int64
}

func newDecoder(maxBytes int64) *decoder {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &decoder{validate: v, maxBytes: maxBytes}
}

// decode reads a JSON body into dst and validates it. Failures are invalid
// request errors.
func (d *decoder) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, d.maxBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return engine.NewInvalidRequestError("Request body exceeds %d bytes", tooLarge.Limit)
		}
		return engine.NewInvalidRequestError("Invalid request body: %v", err)
	}

	if err := d.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return engine.NewInvalidRequestError("Invalid request: %v", err)
		}
		problems := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s failed on the '%s' rule", fieldPath(fe), fe.Tag()))
		}
		return engine.NewInvalidRequestError("Invalid request: %s", strings.Join(problems, "; "))
	}
	return nil
}

// fieldPath drops the struct name from a validator namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
