package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a lifecycle event emitted by the driver.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	// Type is one of the EventType constants.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	RequestID    string `json:"request_id,omitempty"`
	Operation    string `json:"operation,omitempty"`
	StackID      string `json:"stack_id,omitempty"`
	ResourceID   string `json:"resource_id,omitempty"`
	ResourceName string `json:"resource_name,omitempty"`
	Location     string `json:"location,omitempty"`

	// Status is the reported execution status for poll events.
	Status string `json:"status,omitempty"`

	Message string `json:"message"`

	// Level is the event severity (info, warning, error).
	Level string `json:"level"`

	Data map[string]interface{} `json:"data,omitempty"`
}

// Event types.
const (
	EventTypeLifecycleAccepted = "lifecycle.accepted"
	EventTypeLifecycleRejected = "lifecycle.rejected"
	EventTypeExecutionPolled   = "execution.polled"
	EventTypeReferenceFound    = "reference.found"
	EventTypeReferenceMissing  = "reference.not_found"
	EventTypeReferenceFailed   = "reference.failed"
)

// Event levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

var (
	// ErrPublisherStopped is returned by Publish after Shutdown.
	ErrPublisherStopped = errors.New("event publisher stopped")

	// ErrBufferFull is returned when an async event cannot be queued.
	ErrBufferFull = errors.New("event buffer full, event dropped")
)

// EventSubscriber handles delivered events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher fans events out to subscribers. In async mode Publish never
// blocks: events are queued and delivered in order from a single goroutine.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	mu          sync.RWMutex
	wg          sync.WaitGroup
	stop        chan struct{}
	stopOnce    sync.Once

	// stateMu orders enqueues against Shutdown so nothing lands in buffer
	// after the delivery goroutine has drained it.
	stateMu sync.Mutex
	stopped bool
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a publisher and, in async mode, starts its
// delivery goroutine.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	ep := &EventPublisher{
		config: cfg,
		stop:   make(chan struct{}),
	}
	if !cfg.Enabled || !cfg.EnableAsync {
		return ep, nil
	}
	if cfg.BufferSize <= 0 {
		return nil, errors.New("event buffer size must be positive")
	}
	if ep.config.MaxBatchSize <= 0 {
		ep.config.MaxBatchSize = 1
	}

	ep.buffer = make(chan Event, cfg.BufferSize)
	ep.wg.Add(1)
	go ep.processEvents()
	return ep, nil
}

// Publish stamps and delivers an event to every matching subscriber.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Level == "" {
		event.Level = EventLevelInfo
	}

	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil
		}
	}
	ep.mu.RUnlock()

	if !ep.config.EnableAsync {
		select {
		case <-ep.stop:
			return ErrPublisherStopped
		default:
		}
		ep.deliverEvent(event)
		return nil
	}

	ep.stateMu.Lock()
	defer ep.stateMu.Unlock()
	if ep.stopped {
		return ErrPublisherStopped
	}
	select {
	case ep.buffer <- event:
		return nil
	default:
		return ErrBufferFull
	}
}

// Subscribe adds a subscriber; filter may be nil.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)
	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch[:0], event)
		drain:
			for len(batch) < ep.config.MaxBatchSize {
				select {
				case next := <-ep.buffer:
					batch = append(batch, next)
				default:
					break drain
				}
			}
			ep.flushBatch(batch)

		case <-ep.stop:
			for {
				select {
				case event := <-ep.buffer:
					ep.deliverEvent(event)
				default:
					return
				}
			}
		}
	}
}

func (ep *EventPublisher) flushBatch(events []Event) {
	for _, event := range events {
		ep.deliverEvent(event)
	}
}

func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown stops accepting events and waits for queued events to be
// delivered.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	ep.stopOnce.Do(func() {
		ep.stateMu.Lock()
		ep.stopped = true
		close(ep.stop)
		ep.stateMu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New("event publisher shutdown timeout")
	}
}

// FilterByLevel allows events at minLevel or above.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}
	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType allows events of the given types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}
	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByRequestID allows events for one request id.
func FilterByRequestID(requestID string) EventFilter {
	return func(event Event) bool {
		return event.RequestID == requestID
	}
}
