package telemetry

import (
	"context"

	"github.com/openfroyo/heatdriver/pkg/engine"
)

const recorderSource = "orchestrator"

// LifecycleRecorder turns orchestrator outcomes into metrics and events. It
// implements engine.Observer.
type LifecycleRecorder struct {
	metrics *Metrics
	events  *EventPublisher
	logger  *Logger
}

var _ engine.Observer = (*LifecycleRecorder)(nil)

// NewLifecycleRecorder creates a recorder. Any argument may be nil.
func NewLifecycleRecorder(metrics *Metrics, events *EventPublisher, logger *Logger) *LifecycleRecorder {
	if metrics == nil {
		metrics = &Metrics{}
	}
	if logger == nil {
		logger = FromContext(context.Background())
	}
	return &LifecycleRecorder{
		metrics: metrics,
		events:  events,
		logger:  logger.NewComponentLogger("lifecycle_recorder"),
	}
}

// LifecycleExecuted records an ExecuteLifecycle outcome.
func (r *LifecycleRecorder) LifecycleExecuted(_ context.Context, op engine.Operation, req *engine.LifecycleRequest, resp *engine.ExecuteResponse, err error) {
	operation := op.String()
	if operation == "" {
		operation = req.Lifecycle
	}

	event := Event{
		Source:       recorderSource,
		Operation:    operation,
		ResourceID:   req.SystemProperties.GetString(engine.ResourceIDProperty),
		ResourceName: req.SystemProperties.GetString(engine.ResourceNameProperty),
		Location:     req.Location.Name,
	}

	if err != nil {
		r.metrics.RecordLifecycleRequest(operation, OutcomeRejected)
		r.metrics.RecordError(string(engine.KindOf(err)))
		event.Type = EventTypeLifecycleRejected
		event.Level = EventLevelError
		event.Message = err.Error()
		event.Data = map[string]interface{}{"kind": string(engine.KindOf(err))}
		r.publish(event)
		return
	}

	r.metrics.RecordLifecycleRequest(operation, OutcomeAccepted)
	event.Type = EventTypeLifecycleAccepted
	event.RequestID = resp.RequestID
	if rid, perr := engine.ParseRequestID(resp.RequestID); perr == nil {
		event.StackID = rid.StackID
	}
	event.Message = operation + " accepted"
	r.publish(event)
}

// ExecutionPolled records a GetLifecycleExecution outcome.
func (r *LifecycleRecorder) ExecutionPolled(_ context.Context, requestID string, exec *engine.LifecycleExecution, err error) {
	event := Event{
		Source:    recorderSource,
		Type:      EventTypeExecutionPolled,
		RequestID: requestID,
	}
	if rid, perr := engine.ParseRequestID(requestID); perr == nil {
		event.Operation = rid.Operation
		event.StackID = rid.StackID
	}

	if err != nil {
		r.metrics.RecordExecutionPolled(event.Operation, OutcomeError)
		r.metrics.RecordError(string(engine.KindOf(err)))
		event.Status = OutcomeError
		event.Level = EventLevelError
		event.Message = err.Error()
		r.publish(event)
		return
	}

	status := string(exec.Status)
	r.metrics.RecordExecutionPolled(event.Operation, status)
	event.Status = status
	event.Message = "execution " + status
	if exec.FailureDetails != nil {
		event.Level = EventLevelWarning
		event.Message = exec.FailureDetails.Description
		event.Data = map[string]interface{}{"failure_code": string(exec.FailureDetails.FailureCode)}
	}
	r.publish(event)
}

// ReferenceFound records a FindReference outcome.
func (r *LifecycleRecorder) ReferenceFound(_ context.Context, instanceName string, resp *engine.FindReferenceResponse, err error) {
	event := Event{
		Source: recorderSource,
		Data:   map[string]interface{}{"instance_name": instanceName},
	}

	switch {
	case err != nil:
		r.metrics.RecordDiscovery(OutcomeError)
		r.metrics.RecordError(string(engine.KindOf(err)))
		event.Type = EventTypeReferenceFailed
		event.Level = EventLevelError
		event.Message = err.Error()
	case resp == nil || resp.Result == nil:
		r.metrics.RecordDiscovery(OutcomeNotFound)
		event.Type = EventTypeReferenceMissing
		event.Message = "no reference found for " + instanceName
	default:
		r.metrics.RecordDiscovery(OutcomeFound)
		event.Type = EventTypeReferenceFound
		event.Message = "reference found for " + instanceName
		if names := resp.Result.AssociatedTopology.Names(); len(names) > 0 {
			entry, _ := resp.Result.AssociatedTopology.Get(names[0])
			event.ResourceID = entry.ID
			event.ResourceName = names[0]
		}
	}
	r.publish(event)
}

func (r *LifecycleRecorder) publish(event Event) {
	if r.events == nil {
		return
	}
	if err := r.events.Publish(event); err != nil {
		logger := r.logger.WithOperation(event.Operation).WithField("event_type", string(event.Type))
		if event.RequestID != "" {
			logger = logger.WithRequestID(event.RequestID)
		}
		if event.StackID != "" {
			logger = logger.WithStackID(event.StackID)
		}
		if event.Location != "" {
			logger = logger.WithLocation(event.Location)
		}
		logger.WithError(err).Warn("Failed to publish lifecycle event")
	}
}
