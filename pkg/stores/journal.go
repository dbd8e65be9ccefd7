package stores

import (
	"context"
	"encoding/json"
	"time"

	"github.com/openfroyo/heatdriver/pkg/engine"
	"github.com/openfroyo/heatdriver/pkg/telemetry"
	"github.com/rs/zerolog"
)

const recordTimeout = 5 * time.Second

// Journal writes telemetry events to a Store.
type Journal struct {
	store  Store
	logger zerolog.Logger
}

// NewJournal creates a journal writing to store.
func NewJournal(store Store, logger zerolog.Logger) *Journal {
	return &Journal{
		store:  store,
		logger: logger.With().Str("component", "request-journal").Logger(),
	}
}

// Subscribe attaches the journal to publisher.
func (j *Journal) Subscribe(publisher *telemetry.EventPublisher) {
	publisher.Subscribe(j.Record, nil)
}

// Record stores one event. Accepted lifecycle events create the request
// record; execution polls update it. Failures are logged, never returned,
// so the journal cannot affect request handling.
func (j *Journal) Record(event telemetry.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	log := j.logger.With().Str("event_type", event.Type).Str("request_id", event.RequestID).Logger()

	switch event.Type {
	case telemetry.EventTypeLifecycleAccepted:
		err := j.store.RecordRequest(ctx, &Request{
			RequestID:    event.RequestID,
			Operation:    event.Operation,
			StackID:      event.StackID,
			ResourceID:   event.ResourceID,
			ResourceName: event.ResourceName,
			Location:     event.Location,
			Status:       string(engine.ExecutionInProgress),
			Message:      event.Message,
			CreatedAt:    event.Timestamp,
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to journal request")
		}
	case telemetry.EventTypeExecutionPolled:
		status := event.Status
		if status == telemetry.OutcomeError {
			status = ""
		}
		err := j.store.RecordPoll(ctx, PollUpdate{
			RequestID: event.RequestID,
			Operation: event.Operation,
			StackID:   event.StackID,
			Status:    status,
			Message:   event.Message,
			At:        event.Timestamp,
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to journal poll")
		}
	}

	if err := j.store.AppendEvent(ctx, toStoreEvent(event)); err != nil {
		log.Error().Err(err).Msg("Failed to journal event")
	}
}

// Recent lists journaled requests, most recent first.
func (j *Journal) Recent(ctx context.Context, filter RequestFilter) ([]*Request, error) {
	return j.store.ListRequests(ctx, filter)
}

// Request returns one journaled request with its events.
func (j *Journal) Request(ctx context.Context, requestID string) (*Request, []*Event, error) {
	req, err := j.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	events, err := j.store.GetEvents(ctx, &requestID, nil, maxListLimit, 0)
	if err != nil {
		return nil, nil, err
	}
	return req, events, nil
}

func toStoreEvent(event telemetry.Event) *Event {
	out := &Event{
		EventID:   event.ID,
		Type:      event.Type,
		Level:     toLevel(event.Level),
		Status:    event.Status,
		Message:   event.Message,
		Timestamp: event.Timestamp,
	}
	if event.RequestID != "" {
		rid := event.RequestID
		out.RequestID = &rid
	}
	if details := eventDetails(event); len(details) > 0 {
		if data, err := json.Marshal(details); err == nil {
			s := string(data)
			out.Details = &s
		}
	}
	return out
}

func toLevel(level string) EventLevel {
	switch level {
	case telemetry.EventLevelWarning:
		return EventLevelWarning
	case telemetry.EventLevelError:
		return EventLevelError
	default:
		return EventLevelInfo
	}
}

// eventDetails keeps the event fields that have no column of their own.
func eventDetails(event telemetry.Event) map[string]interface{} {
	details := make(map[string]interface{}, len(event.Data)+5)
	for k, v := range event.Data {
		details[k] = v
	}
	for k, v := range map[string]string{
		"operation":    event.Operation,
		"stackId":      event.StackID,
		"resourceId":   event.ResourceID,
		"resourceName": event.ResourceName,
		"location":     event.Location,
	} {
		if v != "" {
			details[k] = v
		}
	}
	return details
}
