package stores

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a journal record does not exist.
var ErrNotFound = errors.New("not found")

// EventLevel represents the severity level of a journal event.
type EventLevel string

const (
	EventLevelInfo    EventLevel = "info"
	EventLevelWarning EventLevel = "warning"
	EventLevelError   EventLevel = "error"
)

// Request is a journaled lifecycle request.
type Request struct {
	RequestID    string    `json:"requestId"`
	Operation    string    `json:"operation"`
	StackID      string    `json:"stackId"`
	ResourceID   string    `json:"resourceId,omitempty"`
	ResourceName string    `json:"resourceName,omitempty"`
	Location     string    `json:"location,omitempty"`
	Status       string    `json:"status"`
	Message      string    `json:"message,omitempty"`
	Polls        int       `json:"polls"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Event is an append-only journal event. RequestID is nil for events that
// do not belong to an issued request, such as rejected requests and
// reference lookups.
type Event struct {
	ID        int64      `json:"id"`
	EventID   string     `json:"eventId"`
	RequestID *string    `json:"requestId,omitempty"`
	Type      string     `json:"type"`
	Level     EventLevel `json:"level"`
	Status    string     `json:"status,omitempty"`
	Message   string     `json:"message,omitempty"`
	Details   *string    `json:"details,omitempty"` // JSON blob
	Timestamp time.Time  `json:"timestamp"`
}

// RequestFilter narrows ListRequests. Empty fields match everything.
type RequestFilter struct {
	Operation string
	StackID   string
	Location  string
	Limit     int
	Offset    int
}

// PollUpdate is the outcome of one execution poll.
type PollUpdate struct {
	RequestID string
	Operation string
	StackID   string
	// Status is left unchanged on the request when empty.
	Status  string
	Message string
	At      time.Time
}

// Store defines the journal persistence layer.
type Store interface {
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	RecordRequest(ctx context.Context, req *Request) error
	RecordPoll(ctx context.Context, update PollUpdate) error
	GetRequest(ctx context.Context, requestID string) (*Request, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]*Request, error)

	AppendEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, requestID *string, eventType *string, limit, offset int) ([]*Event, error)

	HealthCheck(ctx context.Context) error
}
