package poller

import "sync"

// EventType identifies the kind of event fired on the bus.
type EventType int

const (
	// EventConnectionChanged carries a ConnectionPayload.
	EventConnectionChanged EventType = iota
	// EventStatusUpdated carries the refreshed Status.
	EventStatusUpdated
	// EventStatusCleared fires when the cached status is dropped on
	// disconnect. It has no payload.
	EventStatusCleared
)

// Event carries data about something the poller observed.
type Event struct {
	Type    EventType
	Payload any
}

// ConnectionPayload is the payload for EventConnectionChanged.
type ConnectionPayload struct {
	Old Connection
	New Connection
}

// Handler is a callback for bus subscribers.
type Handler func(Event)

// EventBus fans poller events out to subscribers.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewEventBus creates a ready-to-use event bus.
func NewEventBus() *EventBus {
	return &EventBus{handlers: make(map[EventType][]Handler)}
}

// Subscribe registers a handler for a given event type.
func (eb *EventBus) Subscribe(t EventType, h Handler) {
	eb.mu.Lock()
	eb.handlers[t] = append(eb.handlers[t], h)
	eb.mu.Unlock()
}

// Publish fires an event to all subscribed handlers synchronously.
func (eb *EventBus) Publish(e Event) {
	eb.mu.RLock()
	handlers := eb.handlers[e.Type]
	eb.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}
