package quota

import (
	"context"
	"time"
)

// EventType type of engine event
type EventType string

const (
	// EventAdmitted request admitted within quota
	EventAdmitted EventType = "admitted"

	// EventRejected request rejected for exceeding quota
	EventRejected EventType = "rejected"

	// EventFailOpen store failure, request admitted unchecked
	EventFailOpen EventType = "fail_open"

	// EventViolation violation recorded, on its way to the sinks
	EventViolation EventType = "violation"

	// EventTableUpdated tier policy table swapped
	EventTableUpdated EventType = "table_updated"
)

// Event interface
type Event interface {
	Type() EventType
	Category() Category
	Context() context.Context
	Timestamp() time.Time
}

// BaseEvent basic event
type BaseEvent struct {
	eventType EventType
	category  Category
	ctx       context.Context
	timestamp time.Time
}

// NewBaseEvent creates a base event
func NewBaseEvent(ctx context.Context, eventType EventType, category Category, at time.Time) BaseEvent {
	return BaseEvent{
		eventType: eventType,
		category:  category,
		ctx:       ctx,
		timestamp: at,
	}
}

// Type Return event type
func (e *BaseEvent) Type() EventType {
	return e.eventType
}

// Category returns the category
func (e *BaseEvent) Category() Category {
	return e.category
}

// Context returns the context
func (e *BaseEvent) Context() context.Context {
	return e.ctx
}

// Timestamp Return timestamp
func (e *BaseEvent) Timestamp() time.Time {
	return e.timestamp
}

// AdmittedEvent request admitted
type AdmittedEvent struct {
	BaseEvent
	Key       string
	Tier      Tier
	Remaining int64
	Limit     int64
}

// RejectedEvent request rejected
type RejectedEvent struct {
	BaseEvent
	Key        string
	Tier       Tier
	RetryAfter time.Duration
	Delay      time.Duration
	ExceedBy   int64
}

// FailOpenEvent store failure
type FailOpenEvent struct {
	BaseEvent
	Key string
	Err error
}

// ViolationEvent carries a recorded violation to the sinks
type ViolationEvent struct {
	BaseEvent
	Violation Violation
}

// TableUpdatedEvent tier table swapped
type TableUpdatedEvent struct {
	BaseEvent
	Tiers int
}

// EventListener event listener interface
type EventListener interface {
	OnEvent(event Event)
}

// EventListenerFunc event listener function type
type EventListenerFunc func(event Event)

// OnEvent implements EventListener interface
func (f EventListenerFunc) OnEvent(event Event) {
	f(event)
}

// EventBus event bus interface
type EventBus interface {
	// Subscribe to event
	Subscribe(listener EventListener)

	// Publish event
	Publish(event Event)

	// Close event bus
	Close()
}
