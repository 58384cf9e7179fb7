package registry

import "sync"

// EventType names one of the four fixed lifecycle events the registry
// emits. Unlike a general-purpose bus this is a closed set — there is
// no dynamic topic creation.
type EventType string

const (
	EventInstanceRegistered EventType = "instanceRegistered"
	EventInstanceRemoved    EventType = "instanceRemoved"
	EventHealthCheckPassed  EventType = "healthCheckPassed"
	EventHealthCheckFailed  EventType = "healthCheckFailed"
)

// Event is the payload delivered to subscribers. ProbeBody is only
// populated for EventHealthCheckPassed.
type Event struct {
	Type      EventType
	Instance  Instance
	ProbeBody map[string]interface{}
}

// Handler receives one Event. A handler must not block indefinitely —
// delivery is synchronous, so a slow handler delays the caller that
// triggered the event.
type Handler func(Event)

// eventChannel fans out the four lifecycle events to optional
// subscribers, synchronously and in emission order, after the triggering
// state change has already been committed. A panicking handler is
// recovered and logged, never allowed to propagate into the Registry
// Core or Health Supervisor that triggered it.
type eventChannel struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	logger   Logger
}

func newEventChannel(logger Logger) *eventChannel {
	if logger == nil {
		logger = NoOpLogger{}
	}
	return &eventChannel{
		handlers: make(map[EventType][]Handler),
		logger:   logger,
	}
}

// Subscribe registers handler for the given event type. Intended to be
// called at startup; it is safe to call at any time but there is no
// unsubscribe — this is an observability hook, not a routing layer.
func (e *eventChannel) Subscribe(t EventType, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[t] = append(e.handlers[t], h)
}

// emit delivers ev to every subscriber of its type, synchronously, in
// registration order. Must be called only after the triggering state
// change has already been committed to the dual index.
func (e *eventChannel) emit(ev Event) {
	e.mu.RLock()
	handlers := e.handlers[ev.Type]
	e.mu.RUnlock()

	for _, h := range handlers {
		e.invokeSafely(ev, h)
	}
}

func (e *eventChannel) invokeSafely(ev Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event subscriber panicked", map[string]interface{}{
				"event_type":  string(ev.Type),
				"instance_id": ev.Instance.ID,
				"panic":       r,
			})
		}
	}()
	h(ev)
}
